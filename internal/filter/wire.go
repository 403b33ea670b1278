package filter

import (
	"encoding/binary"
	"io"
	"math"
)

// wireWriter and wireReader serialize the little-endian primitives shared
// by every filter body. Both are sticky: the first error latches and all
// later calls are no-ops, so encoders can run straight-line and check once.

type wireWriter struct {
	w       io.Writer
	scratch [8]byte
	err     error
}

func (w *wireWriter) write(p []byte) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.Write(p)
}

func (w *wireWriter) u8(v uint8) {
	w.scratch[0] = v
	w.write(w.scratch[:1])
}

func (w *wireWriter) u16(v uint16) {
	binary.LittleEndian.PutUint16(w.scratch[:2], v)
	w.write(w.scratch[:2])
}

func (w *wireWriter) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.scratch[:4], v)
	w.write(w.scratch[:4])
}

func (w *wireWriter) u64(v uint64) {
	binary.LittleEndian.PutUint64(w.scratch[:8], v)
	w.write(w.scratch[:8])
}

func (w *wireWriter) f64(v float64) {
	w.u64(math.Float64bits(v))
}

type wireReader struct {
	r       io.Reader
	scratch [8]byte
	err     error
}

func (r *wireReader) read(p []byte) {
	if r.err != nil {
		return
	}
	if _, err := io.ReadFull(r.r, p); err != nil {
		r.err = ErrTruncated
	}
}

func (r *wireReader) u8() uint8 {
	r.read(r.scratch[:1])
	return r.scratch[0]
}

func (r *wireReader) u16() uint16 {
	r.read(r.scratch[:2])
	return binary.LittleEndian.Uint16(r.scratch[:2])
}

func (r *wireReader) u32() uint32 {
	r.read(r.scratch[:4])
	return binary.LittleEndian.Uint32(r.scratch[:4])
}

func (r *wireReader) u64() uint64 {
	r.read(r.scratch[:8])
	return binary.LittleEndian.Uint64(r.scratch[:8])
}

func (r *wireReader) f64() float64 {
	return math.Float64frombits(r.u64())
}

func (r *wireReader) bytes(n uint64) []byte {
	if r.err != nil {
		return nil
	}
	buf := make([]byte, n)
	r.read(buf)
	if r.err != nil {
		return nil
	}
	return buf
}
