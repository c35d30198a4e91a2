package tars

import (
	"fmt"
	"reflect"
	"unicode/utf8"
)

// encodeAnyValue inspects the runtime type of a value and picks a wire
// shape for it: the dispatcher behind Any-typed fields and the raw
// codec. Nil values are elided.
func encodeAnyValue(w *Writer, tag uint8, v reflect.Value, depth int) error {
	if depth > MaxDepth {
		return NewEncodeError("max recursion depth exceeded", ErrMaxDepthExceeded)
	}
	if isNilValue(v) {
		return nil
	}
	v = deref(v)

	if d, ok := v.Interface().(Dict); ok {
		w.WriteStructBegin(tag)
		if err := encodeDictFields(w, d, depth+1); err != nil {
			return err
		}
		w.WriteStructEnd()
		return nil
	}

	switch v.Kind() {
	case reflect.Bool:
		w.WriteBool(tag, v.Bool())
		return nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		w.WriteInt(tag, v.Int())
		return nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		w.WriteInt(tag, int64(v.Uint()))
		return nil

	case reflect.Float32:
		w.WriteFloat(tag, float32(v.Float()))
		return nil

	case reflect.Float64:
		w.WriteDouble(tag, v.Float())
		return nil

	case reflect.String:
		w.WriteString(tag, v.String())
		return nil

	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			w.WriteBytes(tag, v.Bytes())
			return nil
		}
		fallthrough

	case reflect.Array:
		w.WriteListHead(tag, v.Len())
		for i := 0; i < v.Len(); i++ {
			if err := encodeAnyValue(w, 0, v.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil

	case reflect.Map:
		// A set-shaped map flattens to a List of its members.
		if v.Type().Elem() == reflect.TypeOf(struct{}{}) {
			keys := sortedMapKeys(v)
			w.WriteListHead(tag, len(keys))
			for _, k := range keys {
				if err := encodeAnyValue(w, 0, k, depth+1); err != nil {
					return err
				}
			}
			return nil
		}
		keys := sortedMapKeys(v)
		w.WriteMapHead(tag, len(keys))
		for _, k := range keys {
			if err := encodeAnyValue(w, 0, k, depth+1); err != nil {
				return err
			}
			if err := encodeAnyValue(w, 1, v.MapIndex(k), depth+1); err != nil {
				return err
			}
		}
		return nil

	case reflect.Struct:
		def, err := SchemaFor(v.Type())
		if err != nil {
			return err
		}
		w.WriteStructBegin(tag)
		if err := encodeStructFields(w, v, def, depth+1); err != nil {
			return err
		}
		w.WriteStructEnd()
		return nil

	default:
		return NewEncodeError("unsupported type for generic encoding: "+v.Type().String(), ErrTypeMismatch)
	}
}

// decodeAnyValue materializes the obvious Go value for a wire field:
// int64, float64, string, []any, map[any]any, Dict, or a BytesMode-
// promoted SimpleList payload.
func decodeAnyValue(r *Reader, typ Type, opts Options, depth int) (any, error) {
	if depth > MaxDepth {
		return nil, NewDecodeErrorAt(r.Pos(), "max recursion depth exceeded", ErrMaxDepthExceeded)
	}

	switch typ {
	case TypeZeroTag, TypeInt1, TypeInt2, TypeInt4, TypeInt8:
		return r.ReadInt(typ)

	case TypeFloat, TypeDouble:
		return r.ReadFloat64(typ)

	case TypeString1, TypeString4:
		b, err := r.ReadStringBytes(typ)
		if err != nil {
			return nil, err
		}
		return decodeStringPayload(b, opts, r.Pos()-len(b))

	case TypeSimpleList:
		b, err := r.ReadSimpleListBytes()
		if err != nil {
			return nil, err
		}
		return promoteBytes(b, opts, depth)

	case TypeList:
		n, err := r.ReadSize()
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, NewDecodeErrorAt(r.Pos(), "invalid list size", ErrNegativeLength)
		}
		out := make([]any, 0, minInt(n, 1024))
		for i := 0; i < n; i++ {
			_, et, err := r.ReadHead()
			if err != nil {
				return nil, err
			}
			elem, err := decodeAnyValue(r, et, opts, depth+1)
			if err != nil {
				return nil, prependPath(err, indexPath(i))
			}
			out = append(out, elem)
		}
		return out, nil

	case TypeMap:
		n, err := r.ReadSize()
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, NewDecodeErrorAt(r.Pos(), "invalid map size", ErrNegativeLength)
		}
		out := make(map[any]any, minInt(n, 1024))
		for i := 0; i < n; i++ {
			_, kt, err := r.ReadHead()
			if err != nil {
				return nil, err
			}
			key, err := decodeAnyValue(r, kt, opts, depth+1)
			if err != nil {
				return nil, err
			}
			_, vt, err := r.ReadHead()
			if err != nil {
				return nil, err
			}
			val, err := decodeAnyValue(r, vt, opts, depth+1)
			if err != nil {
				return nil, prependPath(err, keyPath(key))
			}
			if !reflect.TypeOf(key).Comparable() {
				return nil, NewDecodeErrorAt(r.Pos(), fmt.Sprintf("map key of type %T is not comparable", key), ErrTypeMismatch)
			}
			out[key] = val
		}
		return out, nil

	case TypeStructBegin:
		return decodeDictBody(r, opts, depth+1, true)

	default:
		return nil, NewDecodeErrorAt(r.Pos(), fmt.Sprintf("cannot decode value of type %v", typ), ErrInvalidWireType)
	}
}

// decodeDictBody reads a field sequence into a Dict. When untilEnd is
// set the sequence terminates at StructEnd; otherwise it runs to the
// end of input (the root sequence of a raw packet). Duplicate tags are
// rejected: the raw shape has no schema to arbitrate overwrites.
func decodeDictBody(r *Reader, opts Options, depth int, untilEnd bool) (Dict, error) {
	if depth > MaxDepth {
		return nil, NewDecodeErrorAt(r.Pos(), "max recursion depth exceeded", ErrMaxDepthExceeded)
	}
	out := Dict{}
	for {
		if r.EOF() {
			if untilEnd {
				return nil, NewDecodeErrorAt(r.Pos(), "unterminated struct", ErrUnexpectedEOF)
			}
			return out, nil
		}
		tag, typ, err := r.ReadHead()
		if err != nil {
			return nil, err
		}
		if typ == TypeStructEnd {
			if untilEnd {
				return out, nil
			}
			return nil, NewDecodeErrorAt(r.Pos(), "unexpected struct end", ErrTypeMismatch)
		}
		if _, dup := out[tag]; dup {
			return nil, NewDecodeErrorAt(r.Pos(), fmt.Sprintf("tag %d appears twice", tag), ErrDuplicateTag)
		}
		v, err := decodeAnyValue(r, typ, opts, depth+1)
		if err != nil {
			return nil, prependPath(err, tagPath(tag))
		}
		out[tag] = v
	}
}

// decodeStringPayload validates and converts a string payload.
// Invalid UTF-8 falls back to GBK when configured, else fails.
func decodeStringPayload(b []byte, opts Options, offset int) (string, error) {
	if utf8.Valid(b) {
		return string(b), nil
	}
	if opts.FallbackGBK {
		if s, err := decodeGBK(b); err == nil {
			return s, nil
		}
	}
	return "", NewDecodeErrorAt(offset, "string payload is not valid UTF-8", ErrInvalidUTF8)
}

// promoteBytes applies the BytesMode policy to a SimpleList payload.
// In Auto mode the struct probe runs before the text check and requires
// the scanner to consume the payload completely.
func promoteBytes(b []byte, opts Options, depth int) (any, error) {
	switch opts.Bytes {
	case BytesRaw:
		return copyBytes(b), nil

	case BytesString:
		if s, ok := textPayload(b, opts); ok {
			return s, nil
		}
		return copyBytes(b), nil

	case BytesAuto:
		if len(b) > 0 && ValidStruct(b) {
			inner := NewReader(b)
			inner.depth = depth
			if d, err := decodeDictBody(inner, opts, depth+1, false); err == nil && inner.EOF() {
				return d, nil
			}
		}
		if s, ok := textPayload(b, opts); ok {
			return s, nil
		}
		return copyBytes(b), nil

	default:
		return copyBytes(b), nil
	}
}

// textPayload reports whether a payload reads as safe text: no ASCII
// control characters other than tab, newline, and carriage return, no
// DEL, and valid UTF-8 (or GBK when the fallback is enabled).
func textPayload(b []byte, opts Options) (string, bool) {
	for _, c := range b {
		if c < 32 && c != '\t' && c != '\n' && c != '\r' {
			return "", false
		}
		if c == 127 {
			return "", false
		}
	}
	if utf8.Valid(b) {
		return string(b), true
	}
	if opts.FallbackGBK {
		if s, err := decodeGBK(b); err == nil {
			return s, true
		}
	}
	return "", false
}

func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
