// Package wire implements the low-level Tars wire primitives:
// field head packing and big-endian fixed-width value encoding.
package wire

import "errors"

// Type identifies how a value is encoded on the wire.
// The type occupies the low 4 bits of a field head byte.
type Type uint8

const (
	// TypeInt1 is a 1-byte signed integer.
	TypeInt1 Type = 0

	// TypeInt2 is a 2-byte big-endian signed integer.
	TypeInt2 Type = 1

	// TypeInt4 is a 4-byte big-endian signed integer.
	TypeInt4 Type = 2

	// TypeInt8 is an 8-byte big-endian signed integer.
	TypeInt8 Type = 3

	// TypeFloat is a 4-byte big-endian IEEE 754 float.
	TypeFloat Type = 4

	// TypeDouble is an 8-byte big-endian IEEE 754 double.
	TypeDouble Type = 5

	// TypeString1 is a string with a 1-byte length prefix (len <= 255).
	TypeString1 Type = 6

	// TypeString4 is a string with a 4-byte big-endian length prefix.
	TypeString4 Type = 7

	// TypeMap begins a map: a size field under tag 0, then size entries,
	// each a key (tag 0) and a value (tag 1).
	TypeMap Type = 8

	// TypeList begins a list: a size field under tag 0, then size
	// elements each under tag 0.
	TypeList Type = 9

	// TypeStructBegin opens a nested struct.
	TypeStructBegin Type = 10

	// TypeStructEnd closes a nested struct. The terminator tag is
	// conventionally 0 and is ignored by readers.
	TypeStructEnd Type = 11

	// TypeZeroTag is an integer or float with value zero; the head byte
	// carries the whole field.
	TypeZeroTag Type = 12

	// TypeSimpleList is the byte-array specialization of List: a subtype
	// byte (0 = byte), a size field under tag 0, then size raw bytes.
	TypeSimpleList Type = 13
)

// String returns a human-readable name for the wire type.
func (t Type) String() string {
	switch t {
	case TypeInt1:
		return "Int1"
	case TypeInt2:
		return "Int2"
	case TypeInt4:
		return "Int4"
	case TypeInt8:
		return "Int8"
	case TypeFloat:
		return "Float"
	case TypeDouble:
		return "Double"
	case TypeString1:
		return "String1"
	case TypeString4:
		return "String4"
	case TypeMap:
		return "Map"
	case TypeList:
		return "List"
	case TypeStructBegin:
		return "StructBegin"
	case TypeStructEnd:
		return "StructEnd"
	case TypeZeroTag:
		return "ZeroTag"
	case TypeSimpleList:
		return "SimpleList"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the wire type is a known code (0..=13).
// Codes 14 and 15 are invalid.
func (t Type) IsValid() bool {
	return t <= TypeSimpleList
}

// Errors for head decoding.
var (
	// ErrTruncated indicates the data ended inside a head or value.
	ErrTruncated = errors.New("wire: truncated data")

	// ErrInvalidType indicates a type code outside 0..=13.
	ErrInvalidType = errors.New("wire: invalid type code")
)

// MaxShortTag is the largest tag that fits in a single-byte head.
// Tags 15..=255 require the two-byte expanded head.
const MaxShortTag = 14

// HeadSize returns the number of bytes a head for tag occupies (1 or 2).
func HeadSize(tag uint8) int {
	if tag <= MaxShortTag {
		return 1
	}
	return 2
}

// AppendHead appends a field head to buf and returns the extended buffer.
// Tags below 15 pack into a single byte (tag<<4 | type); larger tags emit
// the 0xF marker nibble followed by the tag byte.
func AppendHead(buf []byte, tag uint8, typ Type) []byte {
	if tag <= MaxShortTag {
		return append(buf, tag<<4|uint8(typ))
	}
	return append(buf, 0xF0|uint8(typ), tag)
}

// DecodeHead decodes a field head from data.
// Returns the tag, wire type, bytes consumed, and any error.
// On error zero bytes are consumed, so a failed decode is atomic.
func DecodeHead(data []byte) (tag uint8, typ Type, n int, err error) {
	if len(data) < 1 {
		return 0, 0, 0, ErrTruncated
	}
	b := data[0]
	typ = Type(b & 0x0F)
	tag = b >> 4
	n = 1
	if tag == 15 {
		if len(data) < 2 {
			return 0, 0, 0, ErrTruncated
		}
		tag = data[1]
		n = 2
	}
	if !typ.IsValid() {
		return 0, 0, 0, ErrInvalidType
	}
	return tag, typ, n, nil
}
