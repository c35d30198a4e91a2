package wire

import (
	"encoding/binary"
	"math"
)

// Size constants for fixed-width payloads.
const (
	Int1Size   = 1
	Int2Size   = 2
	Int4Size   = 4
	Int8Size   = 8
	FloatSize  = 4
	DoubleSize = 8
)

// AppendInt16 appends a 16-bit value in big-endian order.
func AppendInt16(buf []byte, v int16) []byte {
	return append(buf, byte(uint16(v)>>8), byte(v))
}

// AppendInt32 appends a 32-bit value in big-endian order.
func AppendInt32(buf []byte, v int32) []byte {
	return append(buf,
		byte(uint32(v)>>24),
		byte(uint32(v)>>16),
		byte(uint32(v)>>8),
		byte(v),
	)
}

// AppendInt64 appends a 64-bit value in big-endian order.
func AppendInt64(buf []byte, v int64) []byte {
	return append(buf,
		byte(uint64(v)>>56),
		byte(uint64(v)>>48),
		byte(uint64(v)>>40),
		byte(uint64(v)>>32),
		byte(uint64(v)>>24),
		byte(uint64(v)>>16),
		byte(uint64(v)>>8),
		byte(v),
	)
}

// AppendUint32 appends an unsigned 32-bit value in big-endian order.
// Used for String4 length prefixes.
func AppendUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// AppendFloat32 appends a float32 in big-endian IEEE 754 format.
func AppendFloat32(buf []byte, v float32) []byte {
	return AppendUint32(buf, math.Float32bits(v))
}

// AppendFloat64 appends a float64 in big-endian IEEE 754 format.
func AppendFloat64(buf []byte, v float64) []byte {
	return AppendInt64(buf, int64(math.Float64bits(v)))
}

// DecodeInt16 decodes a big-endian 16-bit signed value.
func DecodeInt16(data []byte) (int16, error) {
	if len(data) < Int2Size {
		return 0, ErrTruncated
	}
	return int16(binary.BigEndian.Uint16(data)), nil
}

// DecodeInt32 decodes a big-endian 32-bit signed value.
func DecodeInt32(data []byte) (int32, error) {
	if len(data) < Int4Size {
		return 0, ErrTruncated
	}
	return int32(binary.BigEndian.Uint32(data)), nil
}

// DecodeInt64 decodes a big-endian 64-bit signed value.
func DecodeInt64(data []byte) (int64, error) {
	if len(data) < Int8Size {
		return 0, ErrTruncated
	}
	return int64(binary.BigEndian.Uint64(data)), nil
}

// DecodeUint16 decodes a big-endian 16-bit unsigned value.
func DecodeUint16(data []byte) (uint16, error) {
	if len(data) < Int2Size {
		return 0, ErrTruncated
	}
	return binary.BigEndian.Uint16(data), nil
}

// DecodeUint32 decodes a big-endian 32-bit unsigned value.
func DecodeUint32(data []byte) (uint32, error) {
	if len(data) < Int4Size {
		return 0, ErrTruncated
	}
	return binary.BigEndian.Uint32(data), nil
}

// DecodeUint64 decodes a big-endian 64-bit unsigned value.
func DecodeUint64(data []byte) (uint64, error) {
	if len(data) < Int8Size {
		return 0, ErrTruncated
	}
	return binary.BigEndian.Uint64(data), nil
}

// DecodeFloat32 decodes a big-endian float32.
func DecodeFloat32(data []byte) (float32, error) {
	bits, err := DecodeUint32(data)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

// DecodeFloat64 decodes a big-endian float64.
func DecodeFloat64(data []byte) (float64, error) {
	bits, err := DecodeUint64(data)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(bits), nil
}
