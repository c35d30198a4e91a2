package tars

import "fmt"

// Scanner is a structure validator that walks a Tars byte slice without
// materializing values. It checks type-code validity, container length
// self-consistency, StructBegin/StructEnd pairing, and the recursion
// cap. It backs ProbeStruct and the embedded-struct detection of
// BytesAuto decoding.
type Scanner struct {
	r Reader
}

// NewScanner creates a Scanner over the given data.
func NewScanner(data []byte) *Scanner {
	return &Scanner{r: Reader{data: data}}
}

// EOF returns true if the scanner consumed all input.
func (s *Scanner) EOF() bool {
	return s.r.EOF()
}

// Pos returns the scanner's current byte offset.
func (s *Scanner) Pos() int {
	return s.r.Pos()
}

// ValidateStruct walks a struct body: a field sequence terminated by
// StructEnd, or, at the root only, by the end of input.
func (s *Scanner) ValidateStruct() error {
	if s.r.depth > MaxDepth {
		return NewDecodeErrorAt(s.r.Pos(), "max recursion depth exceeded", ErrMaxDepthExceeded)
	}
	s.r.depth++
	for !s.r.EOF() {
		_, typ, err := s.r.ReadHead()
		if err != nil {
			return err
		}
		if typ == TypeStructEnd {
			s.r.depth--
			return nil
		}
		if err := s.skipField(typ); err != nil {
			return err
		}
	}
	// Reaching EOF without StructEnd is only well-formed for the root
	// field sequence of a raw packet.
	if s.r.depth == 1 {
		s.r.depth--
		return nil
	}
	return NewDecodeErrorAt(s.r.Pos(), "unterminated struct", ErrUnexpectedEOF)
}

func (s *Scanner) skipField(typ Type) error {
	switch typ {
	case TypeStructBegin:
		return s.ValidateStruct()
	case TypeSimpleList:
		subtype, err := s.r.ReadByte()
		if err != nil {
			return err
		}
		if subtype != 0 {
			return NewDecodeErrorAt(s.r.Pos(), fmt.Sprintf("SimpleList must contain Byte (0), got %d", subtype), ErrTypeMismatch)
		}
		n, err := s.r.ReadSize()
		if err != nil {
			return err
		}
		if n < 0 {
			return NewDecodeErrorAt(s.r.Pos(), "invalid SimpleList size", ErrNegativeLength)
		}
		return s.r.skip(n)
	default:
		return s.r.SkipField(typ)
	}
}

// ValidStruct reports whether data is a complete, well-formed struct
// body: the scanner validates it and consumes every byte.
func ValidStruct(data []byte) bool {
	s := NewScanner(data)
	if err := s.ValidateStruct(); err != nil {
		return false
	}
	return s.EOF()
}
