package scale

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompactKnownEncodings(t *testing.T) {
	cases := []struct {
		value   uint64
		encoded []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x04}},
		{42, []byte{0xa8}},
		{63, []byte{0xfc}},
		{64, []byte{0x01, 0x01}},
		{69, []byte{0x15, 0x01}},
		{16383, []byte{0xfd, 0xff}},
		{16384, []byte{0x02, 0x00, 0x01, 0x00}},
		{1073741823, []byte{0xfe, 0xff, 0xff, 0xff}},
		{1073741824, []byte{0x03, 0x00, 0x00, 0x00, 0x40}},
	}
	for _, tc := range cases {
		var w Writer
		w.WriteCompact(tc.value)
		require.Equal(t, tc.encoded, w.Bytes(), "encode %d", tc.value)

		got, err := NewReader(tc.encoded).ReadCompact()
		require.NoError(t, err)
		require.Equal(t, tc.value, got.Uint64(), "decode %x", tc.encoded)
	}
}

func TestCompactBigValue(t *testing.T) {
	v, ok := new(big.Int).SetString("340282366920938463463374607431768211455", 10)
	require.True(t, ok)

	var w Writer
	w.WriteCompactBig(v)
	require.Equal(t, byte(0x33), w.Bytes()[0])

	got, err := NewReader(w.Bytes()).ReadCompact()
	require.NoError(t, err)
	require.Equal(t, 0, v.Cmp(got))
}

func TestSignedIntegers(t *testing.T) {
	r := NewReader([]byte{0xff, 0xfe, 0xff, 0x7f})
	v, err := r.ReadInt(1)
	require.NoError(t, err)
	require.Equal(t, int64(-1), v.Int64())

	v, err = r.ReadInt(2)
	require.NoError(t, err)
	require.Equal(t, int64(-2), v.Int64())

	v, err = r.ReadInt(1)
	require.NoError(t, err)
	require.Equal(t, int64(127), v.Int64())
}

func TestShortInputAndBadLength(t *testing.T) {
	_, err := NewReader([]byte{0x01}).ReadU32()
	require.ErrorIs(t, err, ErrShortInput)

	// Claims 1,000,000 entries with two bytes left.
	var w Writer
	w.WriteCompact(1_000_000)
	w.WriteRaw([]byte{0, 0})
	_, err = NewReader(w.Bytes()).ReadTextVec()
	require.Error(t, err)
}

func TestTextAndOption(t *testing.T) {
	var w Writer
	w.WriteTextVec([]string{"Transfer some", "free balance."})
	w.WriteBool(true)
	w.WriteByte(0x02)

	r := NewReader(w.Bytes())
	docs, err := r.ReadTextVec()
	require.NoError(t, err)
	require.Equal(t, []string{"Transfer some", "free balance."}, docs)

	some, err := r.ReadOption()
	require.NoError(t, err)
	require.True(t, some)

	_, err = r.ReadOption()
	require.Error(t, err)
	require.Zero(t, r.Remaining())
}

func TestTruncatedCompact(t *testing.T) {
	for _, in := range [][]byte{
		nil,
		{0x01},
		{0x02, 0x00},
		{0x03, 0x00, 0x00},
		{0x33, 0xff, 0xff},
	} {
		_, err := NewReader(in).ReadCompact()
		require.ErrorIs(t, err, ErrShortInput, "input %x", in)
	}
}

func TestFixedWidthRoundTrip(t *testing.T) {
	var w Writer
	w.WriteU16(0x0102)
	w.WriteU32(0x03040506)
	w.WriteU64(0x0708090a0b0c0d0e)
	require.Equal(t, []byte{
		0x02, 0x01,
		0x06, 0x05, 0x04, 0x03,
		0x0e, 0x0d, 0x0c, 0x0b, 0x0a, 0x09, 0x08, 0x07,
	}, w.Bytes())

	r := NewReader(w.Bytes())
	u16, err := r.ReadU16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x0102), u16)
	u32, err := r.ReadU32()
	require.NoError(t, err)
	require.Equal(t, uint32(0x03040506), u32)
	require.Equal(t, 6, r.Offset())
	u64, err := r.ReadU64()
	require.NoError(t, err)
	require.Equal(t, uint64(0x0708090a0b0c0d0e), u64)
	require.Zero(t, r.Remaining())
}
