package tars

import "reflect"

// The raw codec encodes and decodes tag-keyed records (Dict) directly
// against the wire, without any StructDef. Values pass through the
// any-value dispatcher in both directions.

// RawMarshal encodes a Dict as a bare field sequence (no surrounding
// StructBegin/StructEnd). Tags are emitted in ascending order.
func RawMarshal(d Dict) ([]byte, error) {
	return withEncodeBuffer(rawEncodeBuffer, func(w *Writer) error {
		return encodeDictFields(w, d, 0)
	})
}

// RawUnmarshal decodes a bare field sequence into a Dict using the
// default options.
func RawUnmarshal(data []byte) (Dict, error) {
	return RawUnmarshalWithOptions(data, DefaultOptions)
}

// RawUnmarshalWithOptions decodes a bare field sequence into a Dict.
// Duplicate tags are rejected.
func RawUnmarshalWithOptions(data []byte, opts Options) (Dict, error) {
	r := NewReader(data)
	return decodeDictBody(r, opts, 0, false)
}

// MarshalAny encodes a single any-dispatchable value under tag 0.
func MarshalAny(v any) ([]byte, error) {
	return withEncodeBuffer(rawEncodeBuffer, func(w *Writer) error {
		return encodeAnyValue(w, 0, reflect.ValueOf(v), 0)
	})
}

// UnmarshalAny decodes a single leading field and returns its value,
// ignoring the tag.
func UnmarshalAny(data []byte) (any, error) {
	return UnmarshalAnyWithOptions(data, DefaultOptions)
}

// UnmarshalAnyWithOptions decodes a single leading field with options.
func UnmarshalAnyWithOptions(data []byte, opts Options) (any, error) {
	r := NewReader(data)
	_, typ, err := r.ReadHead()
	if err != nil {
		return nil, err
	}
	return decodeAnyValue(r, typ, opts, 0)
}

// ProbeStruct reports whether data is a complete, well-formed struct
// body and, if so, decodes it into a non-empty Dict. It returns nil for
// payloads the scanner rejects, payloads the raw decoder cannot
// materialize, and empty mappings.
func ProbeStruct(data []byte) Dict {
	return ProbeStructWithOptions(data, DefaultOptions)
}

// ProbeStructWithOptions is ProbeStruct with explicit options.
func ProbeStructWithOptions(data []byte, opts Options) Dict {
	if !ValidStruct(data) {
		return nil
	}
	d, err := RawUnmarshalWithOptions(data, opts)
	if err != nil || len(d) == 0 {
		return nil
	}
	return d
}
