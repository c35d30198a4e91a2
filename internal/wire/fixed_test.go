package wire

import (
	"bytes"
	"math"
	"testing"
)

func TestAppendInt16(t *testing.T) {
	tests := []struct {
		v        int16
		expected []byte
	}{
		{0, []byte{0x00, 0x00}},
		{1, []byte{0x00, 0x01}},
		{256, []byte{0x01, 0x00}},
		{-1, []byte{0xFF, 0xFF}},
		{math.MinInt16, []byte{0x80, 0x00}},
		{math.MaxInt16, []byte{0x7F, 0xFF}},
	}

	for _, tc := range tests {
		got := AppendInt16(nil, tc.v)
		if !bytes.Equal(got, tc.expected) {
			t.Errorf("AppendInt16(%d) = %x, want %x", tc.v, got, tc.expected)
		}
	}
}

func TestAppendInt32(t *testing.T) {
	tests := []struct {
		v        int32
		expected []byte
	}{
		{0, []byte{0x00, 0x00, 0x00, 0x00}},
		{1, []byte{0x00, 0x00, 0x00, 0x01}},
		{-1, []byte{0xFF, 0xFF, 0xFF, 0xFF}},
		{math.MaxInt32, []byte{0x7F, 0xFF, 0xFF, 0xFF}},
		{math.MinInt32, []byte{0x80, 0x00, 0x00, 0x00}},
	}

	for _, tc := range tests {
		got := AppendInt32(nil, tc.v)
		if !bytes.Equal(got, tc.expected) {
			t.Errorf("AppendInt32(%d) = %x, want %x", tc.v, got, tc.expected)
		}
	}
}

func TestAppendInt64(t *testing.T) {
	got := AppendInt64(nil, -1)
	want := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	if !bytes.Equal(got, want) {
		t.Errorf("AppendInt64(-1) = %x, want %x", got, want)
	}

	got = AppendInt64(nil, 1)
	want = []byte{0, 0, 0, 0, 0, 0, 0, 1}
	if !bytes.Equal(got, want) {
		t.Errorf("AppendInt64(1) = %x, want %x", got, want)
	}
}

func TestIntRoundTrip(t *testing.T) {
	values16 := []int16{0, 1, -1, 42, -42, math.MinInt16, math.MaxInt16}
	for _, v := range values16 {
		got, err := DecodeInt16(AppendInt16(nil, v))
		if err != nil || got != v {
			t.Errorf("DecodeInt16 round trip %d = (%d, %v)", v, got, err)
		}
	}

	values32 := []int32{0, 1, -1, 1 << 20, math.MinInt32, math.MaxInt32}
	for _, v := range values32 {
		got, err := DecodeInt32(AppendInt32(nil, v))
		if err != nil || got != v {
			t.Errorf("DecodeInt32 round trip %d = (%d, %v)", v, got, err)
		}
	}

	values64 := []int64{0, 1, -1, 1 << 40, math.MinInt64, math.MaxInt64}
	for _, v := range values64 {
		got, err := DecodeInt64(AppendInt64(nil, v))
		if err != nil || got != v {
			t.Errorf("DecodeInt64 round trip %d = (%d, %v)", v, got, err)
		}
	}
}

func TestFloatRoundTrip(t *testing.T) {
	values32 := []float32{0, 1.5, -1.5, math.MaxFloat32, float32(math.Inf(1))}
	for _, v := range values32 {
		got, err := DecodeFloat32(AppendFloat32(nil, v))
		if err != nil || got != v {
			t.Errorf("DecodeFloat32 round trip %v = (%v, %v)", v, got, err)
		}
	}

	values64 := []float64{0, 2.5, -2.5, math.MaxFloat64, math.Inf(-1)}
	for _, v := range values64 {
		got, err := DecodeFloat64(AppendFloat64(nil, v))
		if err != nil || got != v {
			t.Errorf("DecodeFloat64 round trip %v = (%v, %v)", v, got, err)
		}
	}
}

func TestFloatBigEndianLayout(t *testing.T) {
	// 1.0f32 is 0x3F800000 big-endian.
	got := AppendFloat32(nil, 1.0)
	want := []byte{0x3F, 0x80, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("AppendFloat32(1.0) = %x, want %x", got, want)
	}

	// 1.0f64 is 0x3FF0000000000000 big-endian.
	got = AppendFloat64(nil, 1.0)
	want = []byte{0x3F, 0xF0, 0, 0, 0, 0, 0, 0}
	if !bytes.Equal(got, want) {
		t.Errorf("AppendFloat64(1.0) = %x, want %x", got, want)
	}
}

func TestDecodeTruncated(t *testing.T) {
	if _, err := DecodeInt16([]byte{0x01}); err != ErrTruncated {
		t.Errorf("DecodeInt16 short input err = %v, want ErrTruncated", err)
	}
	if _, err := DecodeInt32([]byte{0x01, 0x02, 0x03}); err != ErrTruncated {
		t.Errorf("DecodeInt32 short input err = %v, want ErrTruncated", err)
	}
	if _, err := DecodeInt64(make([]byte, 7)); err != ErrTruncated {
		t.Errorf("DecodeInt64 short input err = %v, want ErrTruncated", err)
	}
	if _, err := DecodeFloat32(nil); err != ErrTruncated {
		t.Errorf("DecodeFloat32 nil input err = %v, want ErrTruncated", err)
	}
	if _, err := DecodeFloat64(make([]byte, 4)); err != ErrTruncated {
		t.Errorf("DecodeFloat64 short input err = %v, want ErrTruncated", err)
	}
}

func TestDecodeUnsigned(t *testing.T) {
	if v, err := DecodeUint16([]byte{0xFF, 0xFF}); err != nil || v != 65535 {
		t.Errorf("DecodeUint16(FFFF) = (%d, %v), want 65535", v, err)
	}
	if v, err := DecodeUint32([]byte{0xFF, 0xFF, 0xFF, 0xFF}); err != nil || v != 4294967295 {
		t.Errorf("DecodeUint32 = (%d, %v), want 4294967295", v, err)
	}
	if v, err := DecodeUint64([]byte{0, 0, 0, 0, 0, 0, 0, 1}); err != nil || v != 1 {
		t.Errorf("DecodeUint64 = (%d, %v), want 1", v, err)
	}
}
