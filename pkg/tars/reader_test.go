package tars

import (
	"bytes"
	"errors"
	"testing"
)

func TestReadHead(t *testing.T) {
	tests := []struct {
		data []byte
		tag  uint8
		typ  Type
		pos  int
	}{
		{[]byte{0x10}, 1, TypeInt1, 1},
		{[]byte{0x1C}, 1, TypeZeroTag, 1},
		{[]byte{0xF0, 0x0F}, 15, TypeInt1, 2},
		{[]byte{0xF0, 0xFF}, 255, TypeInt1, 2},
	}
	for _, tc := range tests {
		r := NewReader(tc.data)
		tag, typ, err := r.ReadHead()
		if err != nil {
			t.Fatalf("ReadHead(%x) error: %v", tc.data, err)
		}
		if tag != tc.tag || typ != tc.typ || r.Pos() != tc.pos {
			t.Errorf("ReadHead(%x) = (%d, %v) pos %d, want (%d, %v) pos %d",
				tc.data, tag, typ, r.Pos(), tc.tag, tc.typ, tc.pos)
		}
	}
}

func TestReadHeadAtomicOnFailure(t *testing.T) {
	// Expanded tag marker with the tag byte missing.
	r := NewReader([]byte{0xF0})
	_, _, err := r.ReadHead()
	if !errors.Is(err, ErrUnexpectedEOF) {
		t.Fatalf("err = %v, want ErrUnexpectedEOF", err)
	}
	if r.Pos() != 0 {
		t.Errorf("pos after failed ReadHead = %d, want 0", r.Pos())
	}

	// Invalid type code 14.
	r = NewReader([]byte{0x0E})
	_, _, err = r.ReadHead()
	if !errors.Is(err, ErrInvalidWireType) {
		t.Fatalf("err = %v, want ErrInvalidWireType", err)
	}
	if r.Pos() != 0 {
		t.Errorf("pos after invalid type = %d, want 0", r.Pos())
	}

	// Empty input.
	r = NewReader(nil)
	if _, _, err := r.ReadHead(); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("empty input err = %v, want ErrUnexpectedEOF", err)
	}
}

func TestPeekHead(t *testing.T) {
	r := NewReader([]byte{0x12, 0x00, 0x00, 0x00, 0x07})
	tag, typ, err := r.PeekHead()
	if err != nil {
		t.Fatal(err)
	}
	if tag != 1 || typ != TypeInt4 || r.Pos() != 0 {
		t.Errorf("PeekHead = (%d, %v) pos %d", tag, typ, r.Pos())
	}
	tag2, typ2, _ := r.ReadHead()
	if tag2 != tag || typ2 != typ || r.Pos() != 1 {
		t.Error("ReadHead after PeekHead disagrees")
	}
}

func TestReadIntWidths(t *testing.T) {
	data := []byte{
		0x2A,                   // Int1 = 42
		0x01, 0x00,             // Int2 = 256
		0x00, 0x01, 0x00, 0x00, // Int4 = 65536
		0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, // Int8 = 1<<32
	}
	r := NewReader(data)

	if v, err := r.ReadInt(TypeInt1); err != nil || v != 42 {
		t.Errorf("ReadInt(Int1) = (%d, %v), want 42", v, err)
	}
	if v, err := r.ReadInt(TypeInt2); err != nil || v != 256 {
		t.Errorf("ReadInt(Int2) = (%d, %v), want 256", v, err)
	}
	if v, err := r.ReadInt(TypeInt4); err != nil || v != 65536 {
		t.Errorf("ReadInt(Int4) = (%d, %v), want 65536", v, err)
	}
	if v, err := r.ReadInt(TypeInt8); err != nil || v != 1<<32 {
		t.Errorf("ReadInt(Int8) = (%d, %v), want 1<<32", v, err)
	}
	if v, err := r.ReadInt(TypeZeroTag); err != nil || v != 0 {
		t.Errorf("ReadInt(ZeroTag) = (%d, %v), want 0", v, err)
	}
	if !r.EOF() {
		t.Error("reader should be at EOF")
	}
}

func TestReadIntSignExtension(t *testing.T) {
	r := NewReader([]byte{0xFF})
	if v, _ := r.ReadInt(TypeInt1); v != -1 {
		t.Errorf("ReadInt(Int1, FF) = %d, want -1", v)
	}

	r = NewReader([]byte{0xFF})
	if v, _ := r.ReadUint(TypeInt1); v != 255 {
		t.Errorf("ReadUint(Int1, FF) = %d, want 255", v)
	}

	r = NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	if v, _ := r.ReadUint(TypeInt4); v != 4294967295 {
		t.Errorf("ReadUint(Int4) = %d, want 4294967295", v)
	}
}

func TestReadIntWrongType(t *testing.T) {
	r := NewReader(nil)
	if _, err := r.ReadInt(TypeString1); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("ReadInt(String1) err = %v, want ErrTypeMismatch", err)
	}
}

func TestReadIntTruncated(t *testing.T) {
	r := NewReader([]byte{0x00})
	if _, err := r.ReadInt(TypeInt2); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("ReadInt(Int2) short err = %v", err)
	}
	if _, err := r.ReadInt(TypeInt8); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("ReadInt(Int8) short err = %v", err)
	}
}

func TestReadFloats(t *testing.T) {
	w := NewWriter()
	w.WriteFloat(0, 1.5)
	w.WriteDouble(1, 2.5)
	w.WriteDouble(2, 0)

	r := NewReader(w.Bytes())
	_, typ, _ := r.ReadHead()
	if v, err := r.ReadFloat32(typ); err != nil || v != 1.5 {
		t.Errorf("ReadFloat32 = (%v, %v), want 1.5", v, err)
	}
	_, typ, _ = r.ReadHead()
	if v, err := r.ReadFloat64(typ); err != nil || v != 2.5 {
		t.Errorf("ReadFloat64 = (%v, %v), want 2.5", v, err)
	}
	_, typ, _ = r.ReadHead()
	if typ != TypeZeroTag {
		t.Fatalf("zero double head = %v", typ)
	}
	if v, _ := r.ReadFloat64(typ); v != 0 {
		t.Errorf("ReadFloat64(ZeroTag) = %v", v)
	}
}

func TestReadFloat64WidensFloat(t *testing.T) {
	w := NewWriter()
	w.WriteFloat(0, 1.25)
	r := NewReader(w.Bytes())
	_, typ, _ := r.ReadHead()
	if v, err := r.ReadFloat64(typ); err != nil || v != 1.25 {
		t.Errorf("ReadFloat64(Float) = (%v, %v), want 1.25", v, err)
	}
}

func TestReadStringBytes(t *testing.T) {
	data := append([]byte{0x05}, "Hello"...)
	data = append(data, 0x00, 0x00, 0x00, 0x05)
	data = append(data, "World"...)

	r := NewReader(data)
	if b, err := r.ReadStringBytes(TypeString1); err != nil || !bytes.Equal(b, []byte("Hello")) {
		t.Errorf("ReadStringBytes(String1) = (%q, %v)", b, err)
	}
	if b, err := r.ReadStringBytes(TypeString4); err != nil || !bytes.Equal(b, []byte("World")) {
		t.Errorf("ReadStringBytes(String4) = (%q, %v)", b, err)
	}
}

func TestReadStringNoUTF8Validation(t *testing.T) {
	r := NewReader([]byte{0x01, 0xFF})
	b, err := r.ReadStringBytes(TypeString1)
	if err != nil || !bytes.Equal(b, []byte{0xFF}) {
		t.Errorf("ReadStringBytes = (%x, %v), raw bytes expected", b, err)
	}
}

func TestReadStringTruncated(t *testing.T) {
	r := NewReader([]byte{0x05, 'H', 'e'})
	if _, err := r.ReadStringBytes(TypeString1); !errors.Is(err, ErrUnexpectedEOF) {
		t.Errorf("truncated string err = %v", err)
	}
}

func TestReadSimpleListBytes(t *testing.T) {
	w := NewWriter()
	w.WriteBytes(0, []byte("abc"))

	r := NewReader(w.Bytes())
	_, typ, _ := r.ReadHead()
	if typ != TypeSimpleList {
		t.Fatalf("head type = %v", typ)
	}
	b, err := r.ReadSimpleListBytes()
	if err != nil || !bytes.Equal(b, []byte("abc")) {
		t.Errorf("ReadSimpleListBytes = (%q, %v)", b, err)
	}
	if !r.EOF() {
		t.Error("reader should be at EOF")
	}
}

func TestReadSimpleListBadSubtype(t *testing.T) {
	// Subtype 1 instead of the mandatory 0.
	r := NewReader([]byte{0x0D, 0x01, 0x00, 0x01, 'a'})
	_, _, _ = r.ReadHead()
	if _, err := r.ReadSimpleListBytes(); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("bad subtype err = %v", err)
	}
}

func TestReadSimpleListNegativeSize(t *testing.T) {
	// Size -1 as Int1.
	r := NewReader([]byte{0x0D, 0x00, 0x00, 0xFF})
	_, _, _ = r.ReadHead()
	if _, err := r.ReadSimpleListBytes(); !errors.Is(err, ErrNegativeLength) {
		t.Errorf("negative size err = %v", err)
	}
}

func TestReadSize(t *testing.T) {
	w := NewWriter()
	w.WriteInt(0, 300)
	r := NewReader(w.Bytes())
	if n, err := r.ReadSize(); err != nil || n != 300 {
		t.Errorf("ReadSize = (%d, %v), want 300", n, err)
	}
}

func TestSkipFieldScalars(t *testing.T) {
	w := NewWriter()
	w.WriteInt(0, 100)
	w.WriteInt(1, 1000)
	w.WriteInt(2, 100000)
	w.WriteInt(3, 10000000000)
	w.WriteFloat(4, 1.23)
	w.WriteDouble(5, 4.56)
	w.WriteInt(6, 0)
	w.WriteString(7, "tail")

	r := NewReader(w.Bytes())
	for i := 0; i < 7; i++ {
		_, typ, err := r.ReadHead()
		if err != nil {
			t.Fatal(err)
		}
		if err := r.SkipField(typ); err != nil {
			t.Fatalf("SkipField %d: %v", i, err)
		}
	}
	_, typ, _ := r.ReadHead()
	b, err := r.ReadStringBytes(typ)
	if err != nil || string(b) != "tail" {
		t.Errorf("after skips got (%q, %v)", b, err)
	}
}

func TestSkipFieldContainers(t *testing.T) {
	w := NewWriter()
	// List of two ints.
	w.WriteListHead(0, 2)
	w.WriteInt(0, 1)
	w.WriteInt(0, 2)
	// Map with one entry.
	w.WriteMapHead(1, 1)
	w.WriteInt(0, 1)
	w.WriteString(1, "val")
	// SimpleList.
	w.WriteBytes(2, []byte("bytes"))
	// Nested struct.
	w.WriteStructBegin(3)
	w.WriteInt(0, 1)
	w.WriteStructEnd()

	r := NewReader(w.Bytes())
	for i := 0; i < 4; i++ {
		_, typ, err := r.ReadHead()
		if err != nil {
			t.Fatal(err)
		}
		if err := r.SkipField(typ); err != nil {
			t.Fatalf("SkipField container %d: %v", i, err)
		}
	}
	if !r.EOF() {
		t.Error("reader should be at EOF after skipping all fields")
	}
}

func TestSkipFieldDepthGuard(t *testing.T) {
	w := NewWriter()
	for i := 0; i < 102; i++ {
		w.WriteHead(0, TypeList)
		w.WriteInt(0, 1)
	}
	w.WriteHead(0, TypeZeroTag)

	r := NewReader(w.Bytes())
	_, typ, _ := r.ReadHead()
	if err := r.SkipField(typ); !errors.Is(err, ErrMaxDepthExceeded) {
		t.Errorf("deep skip err = %v, want ErrMaxDepthExceeded", err)
	}
}

func TestReaderReset(t *testing.T) {
	r := NewReader([]byte{0x00, 0x01})
	_, _, _ = r.ReadHead()
	r.Reset([]byte{0x1C})
	if r.Pos() != 0 || r.Len() != 1 {
		t.Errorf("after Reset pos=%d len=%d", r.Pos(), r.Len())
	}
}

func TestErrorCarriesOffset(t *testing.T) {
	r := NewReader([]byte{0x00, 0x01, 0x01})
	_, _, _ = r.ReadHead()          // offset 0
	_, _ = r.ReadInt(TypeInt1)      // offset 1
	_, _, _ = r.ReadHead()          // offset 2
	_, err := r.ReadInt(TypeInt2)   // truncated at offset 3
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("err = %T, want *DecodeError", err)
	}
	if de.Offset != 3 {
		t.Errorf("offset = %d, want 3", de.Offset)
	}
}
