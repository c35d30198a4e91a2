package tars

import (
	"math"

	"github.com/blockberries/tarsberry/internal/wire"
)

// Writer is an append-only buffer emitting Tars-encoded fields.
// Writers can be reused with Reset to reduce allocations.
//
// The zero value is ready to use; NewWriter pre-allocates a small buffer.
// Integer fields always use the narrowest width class, and zero-valued
// scalars collapse to a bare ZeroTag head.
type Writer struct {
	buf []byte
}

// NewWriter creates a new Writer with a small pre-allocated buffer.
func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 128)}
}

// NewWriterWithBuffer creates a Writer appending to the provided buffer.
func NewWriterWithBuffer(buf []byte) *Writer {
	return &Writer{buf: buf[:0]}
}

// Reset clears the writer for reuse, keeping the allocated capacity.
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
}

// Len returns the current length of the encoded data.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Cap returns the current capacity of the internal buffer.
func (w *Writer) Cap() int {
	return cap(w.buf)
}

// Bytes returns the encoded data.
// The returned slice is only valid until the next write or Reset.
// To get a stable copy, use BytesCopy.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// BytesCopy returns a copy of the encoded data.
func (w *Writer) BytesCopy() []byte {
	out := make([]byte, len(w.buf))
	copy(out, w.buf)
	return out
}

// Grow reserves capacity for n more bytes.
func (w *Writer) Grow(n int) {
	if len(w.buf)+n <= cap(w.buf) {
		return
	}
	newBuf := make([]byte, len(w.buf), len(w.buf)+n)
	copy(newBuf, w.buf)
	w.buf = newBuf
}

// WriteHead writes a field head: a single byte for tags below 15, a
// two-byte expanded head otherwise.
func (w *Writer) WriteHead(tag uint8, typ Type) {
	w.buf = wire.AppendHead(w.buf, tag, typ)
}

// WriteInt writes a signed integer in its narrowest form: ZeroTag for 0,
// then Int1, Int2, Int4, or Int8 by value range. All widths big-endian.
func (w *Writer) WriteInt(tag uint8, v int64) {
	switch {
	case v == 0:
		w.WriteHead(tag, TypeZeroTag)
	case v >= math.MinInt8 && v <= math.MaxInt8:
		w.WriteHead(tag, TypeInt1)
		w.buf = append(w.buf, byte(v))
	case v >= math.MinInt16 && v <= math.MaxInt16:
		w.WriteHead(tag, TypeInt2)
		w.buf = wire.AppendInt16(w.buf, int16(v))
	case v >= math.MinInt32 && v <= math.MaxInt32:
		w.WriteHead(tag, TypeInt4)
		w.buf = wire.AppendInt32(w.buf, int32(v))
	default:
		w.WriteHead(tag, TypeInt8)
		w.buf = wire.AppendInt64(w.buf, v)
	}
}

// WriteBool writes a boolean as an integer field (0 or 1).
func (w *Writer) WriteBool(tag uint8, v bool) {
	if v {
		w.WriteInt(tag, 1)
	} else {
		w.WriteInt(tag, 0)
	}
}

// WriteFloat writes a single-precision float. Zero (either sign)
// collapses to a bare ZeroTag head.
func (w *Writer) WriteFloat(tag uint8, v float32) {
	if v == 0 {
		w.WriteHead(tag, TypeZeroTag)
		return
	}
	w.WriteHead(tag, TypeFloat)
	w.buf = wire.AppendFloat32(w.buf, v)
}

// WriteDouble writes a double-precision float. Zero (either sign)
// collapses to a bare ZeroTag head.
func (w *Writer) WriteDouble(tag uint8, v float64) {
	if v == 0 {
		w.WriteHead(tag, TypeZeroTag)
		return
	}
	w.WriteHead(tag, TypeDouble)
	w.buf = wire.AppendFloat64(w.buf, v)
}

// WriteString writes a string field: String1 with a 1-byte length when
// the payload is at most 255 bytes, else String4 with a 4-byte length.
func (w *Writer) WriteString(tag uint8, s string) {
	if len(s) <= 255 {
		w.WriteHead(tag, TypeString1)
		w.buf = append(w.buf, byte(len(s)))
	} else {
		w.WriteHead(tag, TypeString4)
		w.buf = wire.AppendUint32(w.buf, uint32(len(s)))
	}
	w.buf = append(w.buf, s...)
}

// WriteStringBytes writes a string field from raw bytes.
func (w *Writer) WriteStringBytes(tag uint8, s []byte) {
	if len(s) <= 255 {
		w.WriteHead(tag, TypeString1)
		w.buf = append(w.buf, byte(len(s)))
	} else {
		w.WriteHead(tag, TypeString4)
		w.buf = wire.AppendUint32(w.buf, uint32(len(s)))
	}
	w.buf = append(w.buf, s...)
}

// WriteBytes writes a byte array as a SimpleList: head, subtype byte 0,
// the length as a compact integer under tag 0, then the raw bytes.
func (w *Writer) WriteBytes(tag uint8, b []byte) {
	w.WriteHead(tag, TypeSimpleList)
	w.buf = append(w.buf, 0)
	w.WriteInt(0, int64(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteStructBegin opens a nested struct under tag.
// It must be paired with WriteStructEnd.
func (w *Writer) WriteStructBegin(tag uint8) {
	w.WriteHead(tag, TypeStructBegin)
}

// WriteStructEnd closes the innermost struct. The terminator tag is 0.
func (w *Writer) WriteStructEnd() {
	w.WriteHead(0, TypeStructEnd)
}

// WriteListHead writes a List head and its element count.
func (w *Writer) WriteListHead(tag uint8, size int) {
	w.WriteHead(tag, TypeList)
	w.WriteInt(0, int64(size))
}

// WriteMapHead writes a Map head and its entry count.
func (w *Writer) WriteMapHead(tag uint8, size int) {
	w.WriteHead(tag, TypeMap)
	w.WriteInt(0, int64(size))
}

// WriteRaw appends pre-encoded bytes verbatim.
func (w *Writer) WriteRaw(b []byte) {
	w.buf = append(w.buf, b...)
}
