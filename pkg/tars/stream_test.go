package tars

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestFrameEncoderVector(t *testing.T) {
	// 4-byte inclusive big-endian length over payload 0x00 0x01.
	e, err := NewFrameEncoder(DefaultFrameConfig)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Pack([]byte{0x00, 0x01}); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x00, 0x00, 0x00, 0x06, 0x00, 0x01}
	if !bytes.Equal(e.Bytes(), want) {
		t.Errorf("frame = %x, want %x", e.Bytes(), want)
	}
}

func TestFrameExclusiveLength(t *testing.T) {
	e, _ := NewFrameEncoder(FrameConfig{LengthType: 4, InclusiveLength: false})
	_ = e.Pack([]byte{0xAA, 0xBB, 0xCC})
	want := []byte{0x00, 0x00, 0x00, 0x03, 0xAA, 0xBB, 0xCC}
	if !bytes.Equal(e.Bytes(), want) {
		t.Errorf("exclusive frame = %x, want %x", e.Bytes(), want)
	}

	d, _ := NewFrameDecoder(FrameConfig{LengthType: 4, InclusiveLength: false})
	_ = d.Feed(e.Bytes())
	p, err := d.Next()
	if err != nil || !bytes.Equal(p, []byte{0xAA, 0xBB, 0xCC}) {
		t.Errorf("Next = (%x, %v)", p, err)
	}
}

func TestFrameLittleEndianLength(t *testing.T) {
	cfg := FrameConfig{LengthType: 2, InclusiveLength: true, LittleEndianLength: true}
	e, _ := NewFrameEncoder(cfg)
	_ = e.Pack([]byte{0x07})
	want := []byte{0x03, 0x00, 0x07}
	if !bytes.Equal(e.Bytes(), want) {
		t.Errorf("LE frame = %x, want %x", e.Bytes(), want)
	}

	d, _ := NewFrameDecoder(cfg)
	_ = d.Feed(e.Bytes())
	p, err := d.Next()
	if err != nil || !bytes.Equal(p, []byte{0x07}) {
		t.Errorf("LE Next = (%x, %v)", p, err)
	}
}

func TestFrameOneByteLength(t *testing.T) {
	cfg := FrameConfig{LengthType: 1, InclusiveLength: true}
	e, _ := NewFrameEncoder(cfg)
	_ = e.Pack([]byte("hi"))
	want := []byte{0x03, 'h', 'i'}
	if !bytes.Equal(e.Bytes(), want) {
		t.Errorf("1-byte frame = %x, want %x", e.Bytes(), want)
	}

	// Payload too large for the width is rejected up front.
	big := make([]byte, 300)
	if err := e.Pack(big); !errors.Is(err, ErrMaxSizeExceeded) {
		t.Errorf("oversized pack err = %v", err)
	}
	// Nothing partial was written.
	if !bytes.Equal(e.Bytes(), want) {
		t.Error("failed pack left partial bytes in the stream")
	}
}

func TestFramerByteByByteCompleteness(t *testing.T) {
	// Feeding a framed stream one byte at a time yields exactly the
	// original payload sequence.
	payloads := [][]byte{
		{0x01},
		{},
		bytes.Repeat([]byte{0xAB}, 300),
		{0xDE, 0xAD, 0xBE, 0xEF},
	}
	e, _ := NewFrameEncoder(DefaultFrameConfig)
	for _, p := range payloads {
		if err := e.Pack(p); err != nil {
			t.Fatal(err)
		}
	}
	stream := e.Bytes()

	d, _ := NewFrameDecoder(DefaultFrameConfig)
	var got [][]byte
	for _, b := range stream {
		if err := d.Feed([]byte{b}); err != nil {
			t.Fatal(err)
		}
		for {
			p, err := d.Next()
			if err != nil {
				t.Fatal(err)
			}
			if p == nil {
				break
			}
			got = append(got, p)
		}
	}
	if len(got) != len(payloads) {
		t.Fatalf("got %d payloads, want %d", len(got), len(payloads))
	}
	for i := range payloads {
		if !bytes.Equal(got[i], payloads[i]) {
			t.Errorf("payload %d = %x, want %x", i, got[i], payloads[i])
		}
	}
	if d.Buffered() != 0 {
		t.Errorf("decoder retained %d bytes", d.Buffered())
	}
}

func TestFrameDecoderNeedsMoreBytes(t *testing.T) {
	d, _ := NewFrameDecoder(DefaultFrameConfig)
	// Fewer bytes than the header width.
	_ = d.Feed([]byte{0x00, 0x00})
	if p, err := d.Next(); p != nil || err != nil {
		t.Errorf("short header Next = (%v, %v)", p, err)
	}
	// Header complete but payload missing.
	_ = d.Feed([]byte{0x00, 0x06})
	if p, err := d.Next(); p != nil || err != nil {
		t.Errorf("short payload Next = (%v, %v)", p, err)
	}
	// Remainder arrives.
	_ = d.Feed([]byte{0x11, 0x22})
	p, err := d.Next()
	if err != nil || !bytes.Equal(p, []byte{0x11, 0x22}) {
		t.Errorf("completed Next = (%x, %v)", p, err)
	}
}

func TestFrameDecoderMaxBuffer(t *testing.T) {
	d, _ := NewFrameDecoder(FrameConfig{LengthType: 4, InclusiveLength: true, MaxBufferSize: 8})
	if err := d.Feed(make([]byte, 9)); !errors.Is(err, ErrMaxSizeExceeded) {
		t.Errorf("over-feed err = %v", err)
	}
}

func TestFrameDecoderBadLength(t *testing.T) {
	// Inclusive length smaller than the header itself.
	d, _ := NewFrameDecoder(DefaultFrameConfig)
	_ = d.Feed([]byte{0x00, 0x00, 0x00, 0x01})
	if _, err := d.Next(); !errors.Is(err, ErrNegativeLength) {
		t.Errorf("bad length err = %v", err)
	}
}

func TestFrameConfigValidation(t *testing.T) {
	if _, err := NewFrameDecoder(FrameConfig{LengthType: 3}); err == nil {
		t.Error("length type 3 accepted")
	}
	if _, err := NewFrameEncoder(FrameConfig{LengthType: 0}); err == nil {
		t.Error("length type 0 accepted")
	}
}

func TestFramePackRecordAndDecode(t *testing.T) {
	e, _ := NewFrameEncoder(DefaultFrameConfig)
	if err := e.PackRecord(basicRecord{A: 1, B: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := e.PackRecord(Dict{2: "raw"}); err != nil {
		t.Fatal(err)
	}

	d, _ := NewFrameDecoder(DefaultFrameConfig)
	_ = d.Feed(e.Bytes())

	var rec basicRecord
	ok, err := d.NextInto(&rec, DefaultOptions)
	if err != nil || !ok {
		t.Fatalf("NextInto = (%v, %v)", ok, err)
	}
	if rec.A != 1 || rec.B != "x" {
		t.Errorf("framed record = %+v", rec)
	}

	dict, err := d.NextDict(DefaultOptions)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(dict, Dict{2: "raw"}) {
		t.Errorf("framed dict = %v", dict)
	}
}

func TestFrameWriteTo(t *testing.T) {
	e, _ := NewFrameEncoder(DefaultFrameConfig)
	_ = e.Pack([]byte{0x01})
	var sink bytes.Buffer
	n, err := e.WriteTo(&sink)
	if err != nil || n != 5 {
		t.Fatalf("WriteTo = (%d, %v)", n, err)
	}
	if e.Bytes() != nil && len(e.Bytes()) != 0 {
		t.Error("buffer not cleared after WriteTo")
	}
}
