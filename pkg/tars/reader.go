package tars

import (
	"fmt"

	"github.com/blockberries/tarsberry/internal/wire"
)

// Reader is a zero-copy cursor over a Tars-encoded byte slice.
// Readers are lightweight, stack-local, and can be reused with Reset.
//
// All read methods report errors carrying the byte offset at which
// parsing began; head reads never leave the cursor in an in-between
// state on failure.
type Reader struct {
	data  []byte
	pos   int
	depth int
}

// NewReader creates a new Reader for the given data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Reset resets the reader to read from new data.
func (r *Reader) Reset(data []byte) {
	r.data = data
	r.pos = 0
	r.depth = 0
}

// Pos returns the current read position.
func (r *Reader) Pos() int {
	return r.pos
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	if r.pos >= len(r.data) {
		return 0
	}
	return len(r.data) - r.pos
}

// EOF returns true if all data has been read.
func (r *Reader) EOF() bool {
	return r.pos >= len(r.data)
}

// Remaining returns the unread portion of the data.
func (r *Reader) Remaining() []byte {
	if r.pos >= len(r.data) {
		return nil
	}
	return r.data[r.pos:]
}

// ensure checks that n more bytes are available, reporting an overflow
// anchored at start on failure.
func (r *Reader) ensure(n, start int) error {
	if r.pos+n > len(r.data) {
		return NewDecodeErrorAt(start, fmt.Sprintf("need %d more bytes, have %d", n, len(r.data)-r.pos), ErrUnexpectedEOF)
	}
	return nil
}

// ReadHead reads a field head (tag and wire type).
// The read is atomic: on any failure the position is unchanged.
func (r *Reader) ReadHead() (tag uint8, typ Type, err error) {
	start := r.pos
	tag, typ, n, err := wire.DecodeHead(r.data[r.pos:])
	if err != nil {
		if err == wire.ErrInvalidType {
			return 0, 0, NewDecodeErrorAt(start, fmt.Sprintf("type code %d out of range 0..=13", r.data[start]&0x0F), ErrInvalidWireType)
		}
		need := 1
		if len(r.data) > start && r.data[start]>>4 == 15 {
			need = 2
		}
		return 0, 0, NewDecodeErrorAt(start, fmt.Sprintf("need %d more bytes for head", need-(len(r.data)-start)), ErrUnexpectedEOF)
	}
	r.pos += n
	return tag, typ, nil
}

// PeekHead reads a field head without advancing the cursor.
func (r *Reader) PeekHead() (tag uint8, typ Type, err error) {
	pos := r.pos
	tag, typ, err = r.ReadHead()
	r.pos = pos
	return tag, typ, err
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	if err := r.ensure(1, r.pos); err != nil {
		return 0, err
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadBytes reads exactly n bytes without copying.
// The returned slice aliases the reader's input.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.ensure(n, r.pos); err != nil {
		return nil, err
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadInt reads a signed integer of the width implied by typ and widens
// it to int64. ZeroTag yields 0 without consuming payload bytes.
func (r *Reader) ReadInt(typ Type) (int64, error) {
	start := r.pos
	switch typ {
	case TypeZeroTag:
		return 0, nil
	case TypeInt1:
		if err := r.ensure(wire.Int1Size, start); err != nil {
			return 0, err
		}
		v := int8(r.data[r.pos])
		r.pos++
		return int64(v), nil
	case TypeInt2:
		if err := r.ensure(wire.Int2Size, start); err != nil {
			return 0, err
		}
		v, _ := wire.DecodeInt16(r.data[r.pos:])
		r.pos += wire.Int2Size
		return int64(v), nil
	case TypeInt4:
		if err := r.ensure(wire.Int4Size, start); err != nil {
			return 0, err
		}
		v, _ := wire.DecodeInt32(r.data[r.pos:])
		r.pos += wire.Int4Size
		return int64(v), nil
	case TypeInt8:
		if err := r.ensure(wire.Int8Size, start); err != nil {
			return 0, err
		}
		v, _ := wire.DecodeInt64(r.data[r.pos:])
		r.pos += wire.Int8Size
		return v, nil
	default:
		return 0, NewDecodeErrorAt(start, fmt.Sprintf("cannot read int from type %v", typ), ErrTypeMismatch)
	}
}

// ReadUint reads an unsigned integer of the width implied by typ and
// widens it to uint64.
func (r *Reader) ReadUint(typ Type) (uint64, error) {
	start := r.pos
	switch typ {
	case TypeZeroTag:
		return 0, nil
	case TypeInt1:
		if err := r.ensure(wire.Int1Size, start); err != nil {
			return 0, err
		}
		v := r.data[r.pos]
		r.pos++
		return uint64(v), nil
	case TypeInt2:
		if err := r.ensure(wire.Int2Size, start); err != nil {
			return 0, err
		}
		v, _ := wire.DecodeUint16(r.data[r.pos:])
		r.pos += wire.Int2Size
		return uint64(v), nil
	case TypeInt4:
		if err := r.ensure(wire.Int4Size, start); err != nil {
			return 0, err
		}
		v, _ := wire.DecodeUint32(r.data[r.pos:])
		r.pos += wire.Int4Size
		return uint64(v), nil
	case TypeInt8:
		if err := r.ensure(wire.Int8Size, start); err != nil {
			return 0, err
		}
		v, _ := wire.DecodeUint64(r.data[r.pos:])
		r.pos += wire.Int8Size
		return v, nil
	default:
		return 0, NewDecodeErrorAt(start, fmt.Sprintf("cannot read uint from type %v", typ), ErrTypeMismatch)
	}
}

// ReadFloat32 reads a single-precision float. ZeroTag yields 0.
func (r *Reader) ReadFloat32(typ Type) (float32, error) {
	start := r.pos
	switch typ {
	case TypeZeroTag:
		return 0, nil
	case TypeFloat:
		if err := r.ensure(wire.FloatSize, start); err != nil {
			return 0, err
		}
		v, _ := wire.DecodeFloat32(r.data[r.pos:])
		r.pos += wire.FloatSize
		return v, nil
	default:
		return 0, NewDecodeErrorAt(start, fmt.Sprintf("cannot read float from type %v", typ), ErrTypeMismatch)
	}
}

// ReadFloat64 reads a double-precision float. ZeroTag yields 0 and a
// Float payload is widened to float64.
func (r *Reader) ReadFloat64(typ Type) (float64, error) {
	start := r.pos
	switch typ {
	case TypeZeroTag:
		return 0, nil
	case TypeFloat:
		v, err := r.ReadFloat32(typ)
		return float64(v), err
	case TypeDouble:
		if err := r.ensure(wire.DoubleSize, start); err != nil {
			return 0, err
		}
		v, _ := wire.DecodeFloat64(r.data[r.pos:])
		r.pos += wire.DoubleSize
		return v, nil
	default:
		return 0, NewDecodeErrorAt(start, fmt.Sprintf("cannot read double from type %v", typ), ErrTypeMismatch)
	}
}

// ReadStringBytes reads a string payload and returns the raw bytes
// without copying. String1 carries a 1-byte length, String4 a big-endian
// 4-byte length. UTF-8 validation is the deserializer's responsibility.
func (r *Reader) ReadStringBytes(typ Type) ([]byte, error) {
	start := r.pos
	var n int
	switch typ {
	case TypeString1:
		if err := r.ensure(1, start); err != nil {
			return nil, err
		}
		n = int(r.data[r.pos])
		r.pos++
	case TypeString4:
		if err := r.ensure(4, start); err != nil {
			return nil, err
		}
		v, _ := wire.DecodeUint32(r.data[r.pos:])
		r.pos += 4
		n = int(v)
	default:
		return nil, NewDecodeErrorAt(start, fmt.Sprintf("cannot read string from type %v", typ), ErrTypeMismatch)
	}
	b, err := r.ReadBytes(n)
	if err != nil {
		r.pos = start
		return nil, err
	}
	return b, nil
}

// ReadSimpleListBytes reads a SimpleList payload: the mandatory subtype
// byte (must be 0, meaning "byte"), a size field, then size raw bytes.
// The returned slice aliases the reader's input.
func (r *Reader) ReadSimpleListBytes() ([]byte, error) {
	subtype, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if subtype != 0 {
		return nil, NewDecodeErrorAt(r.pos, fmt.Sprintf("SimpleList must contain Byte (0), got %d", subtype), ErrTypeMismatch)
	}
	n, err := r.ReadSize()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, NewDecodeErrorAt(r.pos, "invalid SimpleList size", ErrNegativeLength)
	}
	return r.ReadBytes(n)
}

// ReadSize reads a container size: a head followed by an integer value.
// The size keeps its sign so callers can reject negative values.
func (r *Reader) ReadSize() (int, error) {
	_, typ, err := r.ReadHead()
	if err != nil {
		return 0, err
	}
	v, err := r.ReadInt(typ)
	if err != nil {
		return 0, err
	}
	return int(int32(v)), nil
}

// SkipField advances past a value of the given wire type without
// materializing it. Container types recurse; recursion is capped at
// MaxDepth.
func (r *Reader) SkipField(typ Type) error {
	if r.depth > MaxDepth {
		return NewDecodeErrorAt(r.pos, "max recursion depth exceeded in skip", ErrMaxDepthExceeded)
	}
	r.depth++
	err := r.skipElement(typ)
	r.depth--
	return err
}

func (r *Reader) skipElement(typ Type) error {
	switch typ {
	case TypeInt1:
		return r.skip(wire.Int1Size)
	case TypeInt2:
		return r.skip(wire.Int2Size)
	case TypeInt4:
		return r.skip(wire.Int4Size)
	case TypeInt8:
		return r.skip(wire.Int8Size)
	case TypeFloat:
		return r.skip(wire.FloatSize)
	case TypeDouble:
		return r.skip(wire.DoubleSize)
	case TypeString1:
		n, err := r.ReadByte()
		if err != nil {
			return err
		}
		return r.skip(int(n))
	case TypeString4:
		start := r.pos
		if err := r.ensure(4, start); err != nil {
			return err
		}
		v, _ := wire.DecodeUint32(r.data[r.pos:])
		r.pos += 4
		return r.skip(int(v))
	case TypeZeroTag, TypeStructEnd:
		return nil
	case TypeSimpleList:
		subtype, err := r.ReadByte()
		if err != nil {
			return err
		}
		if subtype != 0 {
			return NewDecodeErrorAt(r.pos, fmt.Sprintf("SimpleList must contain Byte (0), got %d", subtype), ErrTypeMismatch)
		}
		n, err := r.ReadSize()
		if err != nil {
			return err
		}
		if n < 0 {
			return NewDecodeErrorAt(r.pos, "invalid SimpleList size", ErrNegativeLength)
		}
		return r.skip(n)
	case TypeMap:
		n, err := r.ReadSize()
		if err != nil {
			return err
		}
		if n < 0 {
			return NewDecodeErrorAt(r.pos, "invalid map size", ErrNegativeLength)
		}
		for i := 0; i < n*2; i++ {
			_, t, err := r.ReadHead()
			if err != nil {
				return err
			}
			if err := r.SkipField(t); err != nil {
				return err
			}
		}
		return nil
	case TypeList:
		n, err := r.ReadSize()
		if err != nil {
			return err
		}
		if n < 0 {
			return NewDecodeErrorAt(r.pos, "invalid list size", ErrNegativeLength)
		}
		for i := 0; i < n; i++ {
			_, t, err := r.ReadHead()
			if err != nil {
				return err
			}
			if err := r.SkipField(t); err != nil {
				return err
			}
		}
		return nil
	case TypeStructBegin:
		for {
			_, t, err := r.ReadHead()
			if err != nil {
				return err
			}
			if t == TypeStructEnd {
				return nil
			}
			if err := r.SkipField(t); err != nil {
				return err
			}
		}
	default:
		return NewDecodeErrorAt(r.pos, fmt.Sprintf("cannot skip type %v", typ), ErrInvalidWireType)
	}
}

func (r *Reader) skip(n int) error {
	if err := r.ensure(n, r.pos); err != nil {
		return err
	}
	r.pos += n
	return nil
}
