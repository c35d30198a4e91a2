package tars

import (
	"fmt"
	"reflect"
	"sort"
)

// PreEncoder is implemented by records that need to normalize state
// before their fields are read for encoding.
type PreEncoder interface {
	PreEncode() error
}

// Marshal encodes a record into Tars binary format.
// The record must be a struct (or pointer to one) with a compilable
// schema, or a Dict, which is routed through the raw codec.
//
// Fields are emitted in ascending tag order. Nil-valued fields are
// omitted; under the omit-defaults policy, fields equal to their
// default are omitted as well.
func Marshal(v any) ([]byte, error) {
	if d, ok := v.(Dict); ok {
		return RawMarshal(d)
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, ErrNilPointer
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil, NewEncodeError("cannot marshal nil", ErrNilPointer)
	}
	def, err := SchemaFor(rv.Type())
	if err != nil {
		return nil, err
	}
	return withEncodeBuffer(structEncodeBuffer, func(w *Writer) error {
		return encodeStructFields(w, rv, def, 0)
	})
}

// MarshalWithSchema encodes a record under an explicit schema, bypassing
// the tag-derived one. The schema must have been compiled for the
// record's type.
func MarshalWithSchema(v any, def *StructDef) ([]byte, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, ErrNilPointer
		}
		rv = rv.Elem()
	}
	return withEncodeBuffer(structEncodeBuffer, func(w *Writer) error {
		return encodeStructFields(w, rv, def, 0)
	})
}

// encodeStructFields emits every present field of a record in ascending
// tag order.
func encodeStructFields(w *Writer, rv reflect.Value, def *StructDef, depth int) error {
	if depth > MaxDepth {
		return NewEncodeError("max recursion depth exceeded", ErrMaxDepthExceeded)
	}
	if err := runPreEncode(rv); err != nil {
		return err
	}

	for i := range def.Fields {
		f := &def.Fields[i]
		fv, err := fieldValue(rv, def, f)
		if err != nil {
			return err
		}
		// Nil fields are elided, optional and required alike; the
		// decode side restores defaults or reports the absence.
		if isNilValue(fv) {
			continue
		}
		if def.Config.OmitDefaults && equalsDefault(f, fv) {
			continue
		}

		baseExpr := f.Type
		if baseExpr.Kind == KindOptional {
			baseExpr = baseExpr.Elem
		}
		if (def.Config.SimpleList || f.WrapSimpleList) && baseExpr.Kind == KindStruct {
			// Wire-pack the nested record as SimpleList bytes; the
			// receiver re-detects the struct shape via the scanner.
			nested, err := marshalNested(deref(fv), baseExpr.Class, depth+1)
			if err != nil {
				return err
			}
			w.WriteBytes(f.Tag, nested)
			continue
		}

		if err := serializeValue(w, f.Tag, f.Type, fv, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// fieldValue reads the record attribute backing a field definition.
func fieldValue(rv reflect.Value, def *StructDef, f *FieldDef) (reflect.Value, error) {
	if f.index >= 0 && rv.Kind() == reflect.Struct {
		return rv.Field(f.index), nil
	}
	if rv.Kind() == reflect.Struct {
		fv := rv.FieldByName(f.Name)
		if fv.IsValid() {
			return fv, nil
		}
	}
	return reflect.Value{}, NewFieldEncodeError(def.Name, f.Name, "record has no such attribute", nil)
}

// marshalNested serializes a nested record into a fresh buffer.
func marshalNested(rv reflect.Value, t reflect.Type, depth int) ([]byte, error) {
	def, err := SchemaFor(t)
	if err != nil {
		return nil, err
	}
	var nested Writer
	if err := encodeStructFields(&nested, rv, def, depth); err != nil {
		return nil, err
	}
	return nested.Bytes(), nil
}

// equalsDefault reports whether a field equals its declared (or zero)
// default.
func equalsDefault(f *FieldDef, fv reflect.Value) bool {
	switch {
	case f.DefaultValue != nil:
		return reflect.DeepEqual(fv.Interface(), f.DefaultValue)
	case f.DefaultFunc != nil:
		return reflect.DeepEqual(fv.Interface(), f.DefaultFunc())
	default:
		return fv.IsZero()
	}
}

// runPreEncode invokes the record's PreEncode hook if present.
func runPreEncode(rv reflect.Value) error {
	if rv.CanAddr() {
		if h, ok := rv.Addr().Interface().(PreEncoder); ok {
			return h.PreEncode()
		}
	}
	if rv.CanInterface() {
		if h, ok := rv.Interface().(PreEncoder); ok {
			return h.PreEncode()
		}
	}
	return nil
}

// serializeValue dispatches one value on its type expression and emits
// it under the given tag.
func serializeValue(w *Writer, tag uint8, expr *TypeExpr, v reflect.Value, depth int) error {
	if depth > MaxDepth {
		return NewEncodeError("max recursion depth exceeded", ErrMaxDepthExceeded)
	}

	switch expr.Kind {
	case KindInt, KindLong:
		n, err := intValue(v)
		if err != nil {
			return err
		}
		w.WriteInt(tag, n)
		return nil

	case KindBool:
		w.WriteBool(tag, deref(v).Bool())
		return nil

	case KindFloat:
		w.WriteFloat(tag, float32(deref(v).Float()))
		return nil

	case KindDouble:
		w.WriteDouble(tag, deref(v).Float())
		return nil

	case KindString:
		w.WriteString(tag, deref(v).String())
		return nil

	case KindBytes:
		w.WriteBytes(tag, bytesValue(deref(v)))
		return nil

	case KindNone:
		return NewEncodeError("bare None type must be wrapped by Optional or Union", ErrTypeMismatch)

	case KindAny:
		return encodeAnyValue(w, tag, v, depth)

	case KindEnum:
		return serializeValue(w, tag, expr.Elem, v, depth)

	case KindOptional:
		if isNilValue(v) {
			return nil
		}
		return serializeValue(w, tag, expr.Elem, deref(v), depth)

	case KindUnion:
		variant, err := selectUnionVariant(expr, v)
		if err != nil {
			return err
		}
		if variant == nil {
			return nil
		}
		return serializeValue(w, tag, variant, deref(v), depth)

	case KindStruct:
		sv := deref(v)
		def, err := SchemaFor(expr.Class)
		if err != nil {
			return err
		}
		w.WriteStructBegin(tag)
		if err := encodeStructFields(w, sv, def, depth+1); err != nil {
			return err
		}
		w.WriteStructEnd()
		return nil

	case KindDict:
		return encodeDictStruct(w, tag, deref(v), depth)

	case KindTuple:
		sv := deref(v)
		arity := expr.Arity
		if expr.Items != nil {
			arity = len(expr.Items)
		}
		if sv.Len() != arity {
			return NewEncodeError(fmt.Sprintf("tuple length %d does not match arity %d", sv.Len(), arity), ErrTypeMismatch)
		}
		w.WriteListHead(tag, arity)
		for i := 0; i < arity; i++ {
			item := expr.Elem
			if expr.Items != nil {
				item = expr.Items[i]
			}
			if err := serializeValue(w, 0, item, sv.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil

	case KindNameMap:
		sv := deref(v)
		def, err := SchemaFor(expr.Class)
		if err != nil {
			return err
		}
		w.WriteMapHead(tag, len(def.Fields))
		for i := range def.Fields {
			f := &def.Fields[i]
			fv, err := fieldValue(sv, def, f)
			if err != nil {
				return err
			}
			w.WriteString(0, f.Name)
			if err := encodeAnyValue(w, 1, fv, depth+1); err != nil {
				return err
			}
		}
		return nil

	case KindList:
		sv := deref(v)
		w.WriteListHead(tag, sv.Len())
		for i := 0; i < sv.Len(); i++ {
			if err := serializeValue(w, 0, expr.Elem, sv.Index(i), depth+1); err != nil {
				return err
			}
		}
		return nil

	case KindSet:
		sv := deref(v)
		keys := sortedMapKeys(sv)
		w.WriteListHead(tag, len(keys))
		for _, k := range keys {
			if err := serializeValue(w, 0, expr.Elem, k, depth+1); err != nil {
				return err
			}
		}
		return nil

	case KindMap:
		sv := deref(v)
		keys := sortedMapKeys(sv)
		w.WriteMapHead(tag, len(keys))
		for _, k := range keys {
			if err := serializeValue(w, 0, expr.Key, k, depth+1); err != nil {
				return err
			}
			if err := serializeValue(w, 1, expr.Elem, sv.MapIndex(k), depth+1); err != nil {
				return err
			}
		}
		return nil

	default:
		return NewEncodeError("unsupported type expression "+expr.Kind.String(), ErrTypeMismatch)
	}
}

// encodeDictStruct emits a Dict as a nested struct: StructBegin, the
// entries in ascending tag order, StructEnd.
func encodeDictStruct(w *Writer, tag uint8, v reflect.Value, depth int) error {
	if depth > MaxDepth {
		return NewEncodeError("max recursion depth exceeded", ErrMaxDepthExceeded)
	}
	d, ok := v.Interface().(Dict)
	if !ok {
		return NewEncodeError("dict field must be a map[uint8]any", ErrTypeMismatch)
	}
	w.WriteStructBegin(tag)
	if err := encodeDictFields(w, d, depth+1); err != nil {
		return err
	}
	w.WriteStructEnd()
	return nil
}

// encodeDictFields emits the entries of a Dict sorted ascending by tag.
func encodeDictFields(w *Writer, d Dict, depth int) error {
	if depth > MaxDepth {
		return NewEncodeError("max recursion depth exceeded", ErrMaxDepthExceeded)
	}
	tags := make([]int, 0, len(d))
	for t := range d {
		tags = append(tags, int(t))
	}
	sort.Ints(tags)
	for _, t := range tags {
		if err := encodeAnyValue(w, uint8(t), reflect.ValueOf(d[uint8(t)]), depth+1); err != nil {
			return err
		}
	}
	return nil
}

// intValue widens any integer-kinded value (bools included) to int64.
func intValue(v reflect.Value) (int64, error) {
	v = deref(v)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return int64(v.Uint()), nil
	case reflect.Bool:
		if v.Bool() {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, NewEncodeError("cannot encode "+v.Kind().String()+" as integer", ErrTypeMismatch)
	}
}

// bytesValue extracts a byte slice from []byte-shaped values.
func bytesValue(v reflect.Value) []byte {
	if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8 {
		return v.Bytes()
	}
	if v.Kind() == reflect.String {
		return []byte(v.String())
	}
	// Integer sequences flagged Bytes: widen element by element.
	out := make([]byte, v.Len())
	for i := range out {
		out[i] = byte(v.Index(i).Int())
	}
	return out
}

// sortedMapKeys returns map keys in a deterministic order so encodes of
// the same value are byte-identical.
func sortedMapKeys(v reflect.Value) []reflect.Value {
	keys := v.MapKeys()
	if len(keys) <= 1 {
		return keys
	}
	switch keys[0].Kind() {
	case reflect.String:
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		sort.Slice(keys, func(i, j int) bool { return keys[i].Int() < keys[j].Int() })
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		sort.Slice(keys, func(i, j int) bool { return keys[i].Uint() < keys[j].Uint() })
	case reflect.Float32, reflect.Float64:
		sort.Slice(keys, func(i, j int) bool { return keys[i].Float() < keys[j].Float() })
	case reflect.Bool:
		sort.Slice(keys, func(i, j int) bool { return !keys[i].Bool() && keys[j].Bool() })
	default:
		sort.Slice(keys, func(i, j int) bool {
			return fmt.Sprint(keys[i].Interface()) < fmt.Sprint(keys[j].Interface())
		})
	}
	return keys
}
