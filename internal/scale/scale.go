// Package scale reads runtime metadata, call data and storage values, and
// builds the few encoded inputs the signer sends to a node, on top of the
// go-substrate-rpc-client SCALE codec.
package scale

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"unicode/utf8"

	codec "github.com/centrifuge/go-substrate-rpc-client/v4/scale"
)

// ErrShortInput is returned when the input ends before a value is complete.
var ErrShortInput = errors.New("scale: unexpected end of input")

// maxPreallocate caps slice capacity hints derived from untrusted lengths.
const maxPreallocate = 1 << 12

// Reader decodes from an in-memory buffer. Primitive reads go through the
// go-substrate-rpc-client decoder; Reader adds bounds checks against the
// remaining input so truncated data reports ErrShortInput.
type Reader struct {
	src  *bytes.Reader
	dec  *codec.Decoder
	size int
}

func NewReader(buf []byte) *Reader {
	src := bytes.NewReader(buf)
	return &Reader{src: src, dec: codec.NewDecoder(src), size: len(buf)}
}

// Remaining is the number of unread bytes.
func (r *Reader) Remaining() int {
	return r.src.Len()
}

func (r *Reader) Offset() int {
	return r.size - r.src.Len()
}

func (r *Reader) ReadByte() (byte, error) {
	if r.Remaining() < 1 {
		return 0, ErrShortInput
	}
	b, err := r.dec.ReadOneByte()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrShortInput, err)
	}
	return b, nil
}

// ReadBytes returns a copy of the next n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, ErrShortInput
	}
	out := make([]byte, n)
	if n == 0 {
		return out, nil
	}
	if err := r.dec.Read(out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShortInput, err)
	}
	return out, nil
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("scale: invalid bool byte 0x%02x", b)
	}
}

func (r *Reader) ReadU16() (uint16, error) {
	var v uint16
	return v, r.decodeFixed(&v, 2)
}

func (r *Reader) ReadU32() (uint32, error) {
	var v uint32
	return v, r.decodeFixed(&v, 4)
}

func (r *Reader) ReadU64() (uint64, error) {
	var v uint64
	return v, r.decodeFixed(&v, 8)
}

func (r *Reader) decodeFixed(target any, size int) error {
	if r.Remaining() < size {
		return ErrShortInput
	}
	if err := r.dec.Decode(target); err != nil {
		return fmt.Errorf("%w: %v", ErrShortInput, err)
	}
	return nil
}

// ReadUint reads an unsigned little-endian integer of size bytes.
func (r *Reader) ReadUint(size int) (*big.Int, error) {
	b, err := r.ReadBytes(size)
	if err != nil {
		return nil, err
	}
	return leToBig(b), nil
}

// ReadInt reads a two's complement little-endian integer of size bytes.
func (r *Reader) ReadInt(size int) (*big.Int, error) {
	b, err := r.ReadBytes(size)
	if err != nil {
		return nil, err
	}
	v := leToBig(b)
	if size > 0 && b[size-1]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(size*8)))
	}
	return v, nil
}

// ReadCompact reads a compact-encoded unsigned integer of any width.
func (r *Reader) ReadCompact() (*big.Int, error) {
	if r.Remaining() < 1 {
		return nil, ErrShortInput
	}
	v, err := r.dec.DecodeUintCompact()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShortInput, err)
	}
	return v, nil
}

// ReadCompactU32 reads a compact integer that must fit in 32 bits, which
// covers lengths and type ids.
func (r *Reader) ReadCompactU32() (uint32, error) {
	v, err := r.ReadCompact()
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() || v.Uint64() > 0xffffffff {
		return 0, fmt.Errorf("scale: compact value %s overflows u32", v)
	}
	return uint32(v.Uint64()), nil
}

// ReadLength reads a compact collection length and checks it against the
// remaining input so corrupted data cannot request huge allocations.
func (r *Reader) ReadLength() (int, error) {
	n, err := r.ReadCompactU32()
	if err != nil {
		return 0, err
	}
	if int(n) > r.Remaining()*8+8 {
		return 0, fmt.Errorf("scale: length %d exceeds remaining input", n)
	}
	return int(n), nil
}

// ReadByteVec reads a compact length prefixed byte vector.
func (r *Reader) ReadByteVec() ([]byte, error) {
	n, err := r.ReadLength()
	if err != nil {
		return nil, err
	}
	return r.ReadBytes(n)
}

func (r *Reader) ReadText() (string, error) {
	b, err := r.ReadByteVec()
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", errors.New("scale: text is not valid utf-8")
	}
	return string(b), nil
}

// ReadTextVec reads a Vec<Text>, which is how docs and paths are encoded.
func (r *Reader) ReadTextVec() ([]string, error) {
	n, err := r.ReadLength()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, capHint(n))
	for i := 0; i < n; i++ {
		s, err := r.ReadText()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// ReadOption reads an Option discriminant and reports whether a value follows.
func (r *Reader) ReadOption() (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("scale: invalid option byte 0x%02x", b)
	}
}

func capHint(n int) int {
	if n > maxPreallocate {
		return maxPreallocate
	}
	return n
}

func leToBig(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i := range b {
		be[len(b)-1-i] = b[i]
	}
	return new(big.Int).SetBytes(be)
}
