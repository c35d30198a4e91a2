package tars

import (
	"encoding/binary"
	"fmt"
	"io"
)

// FrameConfig configures length-prefixed framing over a stream
// transport. The header byte order is independent of the payload, which
// is always big-endian Tars.
type FrameConfig struct {
	// LengthType is the header width in bytes: 1, 2, or 4.
	LengthType int

	// InclusiveLength counts the header itself in the length value.
	InclusiveLength bool

	// LittleEndianLength decodes/encodes the header little-endian.
	LittleEndianLength bool

	// MaxBufferSize bounds the decoder's internal buffer as a guard
	// against unbounded feeds. Zero means the default.
	MaxBufferSize int
}

// DefaultMaxBufferSize is the decoder buffer cap when none is set.
const DefaultMaxBufferSize = 10 * 1024 * 1024

// DefaultFrameConfig is the common Tars framing: a 4-byte big-endian
// inclusive length.
var DefaultFrameConfig = FrameConfig{
	LengthType:      4,
	InclusiveLength: true,
}

func (c FrameConfig) validate() error {
	switch c.LengthType {
	case 1, 2, 4:
		return nil
	default:
		return NewEncodeError(fmt.Sprintf("length type must be 1, 2, or 4, got %d", c.LengthType), nil)
	}
}

func (c FrameConfig) maxBuffer() int {
	if c.MaxBufferSize > 0 {
		return c.MaxBufferSize
	}
	return DefaultMaxBufferSize
}

// FrameDecoder splits a byte stream into complete length-prefixed
// packets. It is pull-based: Feed appends stream bytes, Next returns
// the next complete payload or nil when more bytes are needed, handling
// coalesced and fragmented packets.
type FrameDecoder struct {
	cfg FrameConfig
	buf []byte
}

// NewFrameDecoder creates a FrameDecoder with the given configuration.
func NewFrameDecoder(cfg FrameConfig) (*FrameDecoder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &FrameDecoder{cfg: cfg}, nil
}

// Buffered returns the number of bytes awaiting a complete packet.
func (d *FrameDecoder) Buffered() int {
	return len(d.buf)
}

// Feed appends stream bytes to the internal buffer.
// It fails with ErrMaxSizeExceeded when the buffer would exceed the
// configured cap.
func (d *FrameDecoder) Feed(data []byte) error {
	if len(d.buf)+len(data) > d.cfg.maxBuffer() {
		return NewDecodeError("frame buffer exceeded max size", ErrMaxSizeExceeded)
	}
	d.buf = append(d.buf, data...)
	return nil
}

// Next extracts the next complete packet's payload, draining it from
// the buffer atomically. It returns (nil, nil) when more bytes are
// needed.
func (d *FrameDecoder) Next() ([]byte, error) {
	headerLen := d.cfg.LengthType
	if len(d.buf) < headerLen {
		return nil, nil
	}

	length := d.decodeLength(d.buf[:headerLen])
	packetSize := length
	if !d.cfg.InclusiveLength {
		packetSize = length + headerLen
	}
	if packetSize < headerLen {
		return nil, NewDecodeError(fmt.Sprintf("frame length %d smaller than its %d-byte header", length, headerLen), ErrNegativeLength)
	}
	if packetSize > d.cfg.maxBuffer() {
		return nil, NewDecodeError(fmt.Sprintf("frame of %d bytes exceeds buffer cap", packetSize), ErrMaxSizeExceeded)
	}
	if len(d.buf) < packetSize {
		return nil, nil
	}

	payload := make([]byte, packetSize-headerLen)
	copy(payload, d.buf[headerLen:packetSize])
	n := copy(d.buf, d.buf[packetSize:])
	d.buf = d.buf[:n]
	return payload, nil
}

// NextDict extracts the next packet and decodes it through the raw
// codec. It returns (nil, nil) when more bytes are needed.
func (d *FrameDecoder) NextDict(opts Options) (Dict, error) {
	payload, err := d.Next()
	if err != nil || payload == nil {
		return nil, err
	}
	return RawUnmarshalWithOptions(payload, opts)
}

// NextInto extracts the next packet and decodes it into a record.
// It returns (false, nil) when more bytes are needed.
func (d *FrameDecoder) NextInto(v any, opts Options) (bool, error) {
	payload, err := d.Next()
	if err != nil || payload == nil {
		return false, err
	}
	return true, UnmarshalWithOptions(payload, v, opts)
}

func (d *FrameDecoder) decodeLength(header []byte) int {
	switch d.cfg.LengthType {
	case 1:
		return int(header[0])
	case 2:
		if d.cfg.LittleEndianLength {
			return int(binary.LittleEndian.Uint16(header))
		}
		return int(binary.BigEndian.Uint16(header))
	default:
		if d.cfg.LittleEndianLength {
			return int(binary.LittleEndian.Uint32(header))
		}
		return int(binary.BigEndian.Uint32(header))
	}
}

// FrameEncoder prepends a length header to each emitted payload.
// Oversized packets are rejected up front; a partial header is never
// written.
type FrameEncoder struct {
	cfg FrameConfig
	buf []byte
}

// NewFrameEncoder creates a FrameEncoder with the given configuration.
func NewFrameEncoder(cfg FrameConfig) (*FrameEncoder, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &FrameEncoder{cfg: cfg}, nil
}

// Pack appends one framed packet carrying payload.
func (e *FrameEncoder) Pack(payload []byte) error {
	headerLen := e.cfg.LengthType
	total := len(payload)
	if e.cfg.InclusiveLength {
		total += headerLen
	}

	var max int
	switch headerLen {
	case 1:
		max = 0xFF
	case 2:
		max = 0xFFFF
	default:
		max = int(uint32(0xFFFFFFFF))
	}
	if total > max {
		return NewEncodeError(fmt.Sprintf("packet of %d bytes too large for %d-byte length header", total, headerLen), ErrMaxSizeExceeded)
	}

	switch headerLen {
	case 1:
		e.buf = append(e.buf, byte(total))
	case 2:
		if e.cfg.LittleEndianLength {
			e.buf = binary.LittleEndian.AppendUint16(e.buf, uint16(total))
		} else {
			e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(total))
		}
	default:
		if e.cfg.LittleEndianLength {
			e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(total))
		} else {
			e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(total))
		}
	}
	e.buf = append(e.buf, payload...)
	return nil
}

// PackRecord marshals a record (or Dict) and appends it as one packet.
func (e *FrameEncoder) PackRecord(v any) error {
	payload, err := Marshal(v)
	if err != nil {
		return err
	}
	return e.Pack(payload)
}

// Bytes returns the accumulated framed stream.
func (e *FrameEncoder) Bytes() []byte {
	return e.buf
}

// Clear empties the internal buffer.
func (e *FrameEncoder) Clear() {
	e.buf = e.buf[:0]
}

// WriteTo flushes the accumulated stream to w and clears the buffer.
func (e *FrameEncoder) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(e.buf)
	if err == nil {
		e.Clear()
	}
	return int64(n), err
}
