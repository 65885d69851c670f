package scale

import (
	"bytes"
	"math/big"

	codec "github.com/centrifuge/go-substrate-rpc-client/v4/scale"
)

// Writer appends SCALE-encoded values to an in-memory buffer. Encoding
// into a bytes.Buffer cannot fail, so the encoder's errors are dropped.
type Writer struct {
	buf bytes.Buffer
}

func (w *Writer) enc() *codec.Encoder {
	return codec.NewEncoder(&w.buf)
}

func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

func (w *Writer) WriteByte(b byte) error {
	return w.enc().PushByte(b)
}

func (w *Writer) WriteRaw(b []byte) {
	_ = w.enc().Write(b)
}

func (w *Writer) WriteBool(v bool) {
	_ = w.enc().Encode(v)
}

func (w *Writer) WriteU16(v uint16) {
	_ = w.enc().Encode(v)
}

func (w *Writer) WriteU32(v uint32) {
	_ = w.enc().Encode(v)
}

func (w *Writer) WriteU64(v uint64) {
	_ = w.enc().Encode(v)
}

// WriteUint writes v as an unsigned little-endian integer of size bytes.
func (w *Writer) WriteUint(v *big.Int, size int) {
	be := v.Bytes()
	le := make([]byte, size)
	for i := 0; i < len(be) && i < size; i++ {
		le[i] = be[len(be)-1-i]
	}
	w.WriteRaw(le)
}

func (w *Writer) WriteCompact(v uint64) {
	w.WriteCompactBig(new(big.Int).SetUint64(v))
}

// WriteCompactBig writes a compact integer of any width.
func (w *Writer) WriteCompactBig(v *big.Int) {
	_ = w.enc().EncodeUintCompact(*v)
}

func (w *Writer) WriteByteVec(b []byte) {
	w.WriteCompact(uint64(len(b)))
	w.WriteRaw(b)
}

func (w *Writer) WriteText(s string) {
	w.WriteByteVec([]byte(s))
}

func (w *Writer) WriteTextVec(items []string) {
	w.WriteCompact(uint64(len(items)))
	for _, s := range items {
		w.WriteText(s)
	}
}
