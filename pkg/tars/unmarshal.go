package tars

import (
	"errors"
	"fmt"
	"reflect"
)

// PostDecoder is implemented by records that validate or normalize
// state after decoding. An error from the top-level record's PostDecode
// is returned as is; one from a nested record is wrapped with the decode
// path, except a *ValidationError, which passes through undecorated.
type PostDecoder interface {
	PostDecode() error
}

// Unmarshal decodes Tars binary data into a record.
// The target must be a non-nil pointer to a schema-compilable struct,
// or a *Dict, which is routed through the raw codec.
func Unmarshal(data []byte, v any) error {
	return UnmarshalWithOptions(data, v, DefaultOptions)
}

// UnmarshalWithOptions decodes data with the specified options.
func UnmarshalWithOptions(data []byte, v any, opts Options) error {
	if d, ok := v.(*Dict); ok {
		m, err := RawUnmarshalWithOptions(data, opts)
		if err != nil {
			return err
		}
		*d = m
		return nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr {
		return ErrNotPointer
	}
	if rv.IsNil() {
		return ErrNilPointer
	}
	elem := rv.Elem()
	def, err := SchemaFor(elem.Type())
	if err != nil {
		return err
	}

	r := NewReader(data)
	if err := decodeStruct(r, elem, def, opts, 0); err != nil {
		return err
	}
	if !r.EOF() {
		return NewDecodeErrorAt(r.Pos(), fmt.Sprintf("%d trailing bytes after record", r.Len()), ErrTrailingBytes)
	}
	return nil
}

// UnmarshalWithSchema decodes data into a record under an explicit
// schema, bypassing the tag-derived one.
func UnmarshalWithSchema(data []byte, v any, def *StructDef, opts Options) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr {
		return ErrNotPointer
	}
	if rv.IsNil() {
		return ErrNilPointer
	}
	r := NewReader(data)
	if err := decodeStruct(r, rv.Elem(), def, opts, 0); err != nil {
		return err
	}
	if !r.EOF() {
		return NewDecodeErrorAt(r.Pos(), fmt.Sprintf("%d trailing bytes after record", r.Len()), ErrTrailingBytes)
	}
	return nil
}

// decodeStruct consumes a field sequence into a record. The sequence
// ends at StructEnd (nested records) or at the end of input (the root).
// Unknown tags are skipped unless the schema forbids them; duplicate
// tags overwrite, keeping the last occurrence for forward compatibility
// with producers that re-emit updated fields.
func decodeStruct(r *Reader, rv reflect.Value, def *StructDef, opts Options, depth int) error {
	if depth > MaxDepth {
		return NewDecodeErrorAt(r.Pos(), "max recursion depth exceeded", ErrMaxDepthExceeded)
	}

	seen := newSeenSet(len(def.Fields))
	for {
		tag, typ, err := r.ReadHead()
		if err != nil {
			// A head-boundary overflow terminates the sequence: absent
			// trailing fields are resolved below.
			if errors.Is(err, ErrUnexpectedEOF) {
				break
			}
			return err
		}
		if typ == TypeStructEnd {
			break
		}

		f, ok := def.FieldByTag(tag)
		if !ok {
			if def.Config.ForbidUnknownTags {
				return NewDecodeErrorAt(r.Pos(), fmt.Sprintf("unknown tag %d in %s", tag, def.Name), ErrUnknownTag)
			}
			if err := r.SkipField(typ); err != nil {
				return err
			}
			continue
		}

		fv, err := fieldTarget(rv, def, f)
		if err != nil {
			return err
		}
		if err := decodeInto(r, typ, f.Type, fv, opts, depth+1); err != nil {
			return prependPath(err, fieldPath(f.Name))
		}
		if f.Constraints != nil {
			if err := applyConstraints(f.Name, f.Constraints, fv); err != nil {
				return err
			}
		}
		seen.mark(def.indexOfTag(tag))
	}

	// Resolve absent fields: default value, then factory, then nil for
	// optionals, then the required-field error.
	for i := range def.Fields {
		if seen.has(i) {
			continue
		}
		f := &def.Fields[i]
		switch {
		case f.DefaultValue != nil:
			fv, err := fieldTarget(rv, def, f)
			if err != nil {
				return err
			}
			if err := convertAssign(fv, f.DefaultValue); err != nil {
				return prependPath(err, fieldPath(f.Name))
			}
		case f.DefaultFunc != nil:
			fv, err := fieldTarget(rv, def, f)
			if err != nil {
				return err
			}
			if err := convertAssign(fv, f.DefaultFunc()); err != nil {
				return prependPath(err, fieldPath(f.Name))
			}
		case f.Optional:
			// Reset to the zero value (nil for pointer shapes).
			fv, err := fieldTarget(rv, def, f)
			if err != nil {
				return err
			}
			fv.SetZero()
		case f.Required:
			return NewDecodeError(fmt.Sprintf("required field %s.%s (tag %d) missing", def.Name, f.Name, f.Tag), ErrRequiredFieldMissing)
		}
	}

	return runPostDecode(rv)
}

// indexOfTag returns the field index for a known tag.
func (d *StructDef) indexOfTag(tag uint8) int {
	return int(d.tagLookup[tag])
}

// fieldTarget returns the settable attribute backing a field.
func fieldTarget(rv reflect.Value, def *StructDef, f *FieldDef) (reflect.Value, error) {
	if f.index >= 0 && rv.Kind() == reflect.Struct {
		return rv.Field(f.index), nil
	}
	if rv.Kind() == reflect.Struct {
		fv := rv.FieldByName(f.Name)
		if fv.IsValid() {
			return fv, nil
		}
	}
	return reflect.Value{}, NewDecodeError(fmt.Sprintf("record %s has no attribute %s", def.Name, f.Name), nil)
}

// runPostDecode invokes the record's PostDecode hook if present.
func runPostDecode(rv reflect.Value) error {
	if rv.CanAddr() {
		if h, ok := rv.Addr().Interface().(PostDecoder); ok {
			return h.PostDecode()
		}
	}
	return nil
}

// seenSet tracks decoded field indices: a bitmap for schemas of at most
// 64 fields, a bool vector beyond that.
type seenSet struct {
	bits uint64
	big  []bool
}

func newSeenSet(n int) *seenSet {
	s := &seenSet{}
	if n > 64 {
		s.big = make([]bool, n)
	}
	return s
}

func (s *seenSet) mark(i int) {
	if s.big != nil {
		s.big[i] = true
		return
	}
	s.bits |= 1 << uint(i)
}

func (s *seenSet) has(i int) bool {
	if s.big != nil {
		return s.big[i]
	}
	return s.bits&(1<<uint(i)) != 0
}

// decodeInto decodes one wire value into a settable target, dispatching
// on the semantic type expression.
func decodeInto(r *Reader, typ Type, expr *TypeExpr, v reflect.Value, opts Options, depth int) error {
	if depth > MaxDepth {
		return NewDecodeErrorAt(r.Pos(), "max recursion depth exceeded", ErrMaxDepthExceeded)
	}

	switch expr.Kind {
	case KindInt, KindLong:
		n, err := r.ReadInt(typ)
		if err != nil {
			return err
		}
		return setInt(v, n, r.Pos())

	case KindBool:
		n, err := r.ReadInt(typ)
		if err != nil {
			return err
		}
		v.SetBool(n != 0)
		return nil

	case KindFloat:
		f, err := r.ReadFloat32(typ)
		if err != nil {
			return err
		}
		v.SetFloat(float64(f))
		return nil

	case KindDouble:
		f, err := r.ReadFloat64(typ)
		if err != nil {
			return err
		}
		v.SetFloat(f)
		return nil

	case KindString:
		b, err := r.ReadStringBytes(typ)
		if err != nil {
			return err
		}
		s, err := decodeStringPayload(b, opts, r.Pos()-len(b))
		if err != nil {
			return err
		}
		v.SetString(s)
		return nil

	case KindBytes:
		return decodeBytesInto(r, typ, v)

	case KindEnum:
		return decodeInto(r, typ, expr.Elem, v, opts, depth)

	case KindOptional:
		if v.Kind() == reflect.Ptr {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			return decodeInto(r, typ, expr.Elem, v.Elem(), opts, depth)
		}
		return decodeInto(r, typ, expr.Elem, v, opts, depth)

	case KindUnion:
		// Variants are tried in declaration order. Several variants can
		// share a wire shape (two record types both arrive as
		// StructBegin), so a failed attempt rewinds the cursor and the
		// next candidate gets a clean read.
		savedPos, savedDepth := r.pos, r.depth
		var lastErr error
		for _, variant := range expr.Variants {
			if !wireMatches(variant, typ) {
				continue
			}
			target := reflect.New(variant.Class).Elem()
			if err := decodeInto(r, typ, variant, target, opts, depth); err != nil {
				lastErr = err
				r.pos, r.depth = savedPos, savedDepth
				continue
			}
			v.Set(target)
			return nil
		}
		if lastErr != nil {
			return lastErr
		}
		return NewDecodeErrorAt(r.Pos(), fmt.Sprintf("wire type %v matches no union variant", typ), ErrUnionNoMatch)

	case KindAny:
		val, err := decodeAnyValue(r, typ, opts, depth)
		if err != nil {
			return err
		}
		return convertAssign(v, val)

	case KindStruct:
		return decodeStructInto(r, typ, expr, v, opts, depth)

	case KindDict:
		if typ != TypeStructBegin {
			return NewDecodeErrorAt(r.Pos(), fmt.Sprintf("expected StructBegin for dict, got %v", typ), ErrTypeMismatch)
		}
		d, err := decodeDictBody(r, opts, depth+1, true)
		if err != nil {
			return err
		}
		v.Set(reflect.ValueOf(d))
		return nil

	case KindList:
		return decodeListInto(r, typ, expr, v, opts, depth)

	case KindTuple:
		return decodeTupleInto(r, typ, expr, v, opts, depth)

	case KindSet:
		return decodeSetInto(r, typ, expr, v, opts, depth)

	case KindMap:
		return decodeMapInto(r, typ, expr, v, opts, depth)

	case KindNameMap:
		return decodeNameMapInto(r, typ, expr, v, opts, depth)

	default:
		return NewDecodeErrorAt(r.Pos(), "unsupported type expression "+expr.Kind.String(), ErrTypeMismatch)
	}
}

// setInt assigns an int64 into any integer-kinded target, rejecting
// values the target cannot hold.
func setInt(v reflect.Value, n int64, offset int) error {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v.OverflowInt(n) {
			return NewDecodeErrorAt(offset, fmt.Sprintf("value %d overflows %s", n, v.Type()), ErrTypeMismatch)
		}
		v.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if n < 0 || v.OverflowUint(uint64(n)) {
			return NewDecodeErrorAt(offset, fmt.Sprintf("value %d overflows %s", n, v.Type()), ErrTypeMismatch)
		}
		v.SetUint(uint64(n))
		return nil
	case reflect.Bool:
		v.SetBool(n != 0)
		return nil
	default:
		return NewDecodeErrorAt(offset, "cannot assign integer to "+v.Type().String(), ErrTypeMismatch)
	}
}

// decodeBytesInto reads a Bytes field from SimpleList or from a List of
// integers (the evolution-tolerant twin encoding).
func decodeBytesInto(r *Reader, typ Type, v reflect.Value) error {
	switch typ {
	case TypeSimpleList:
		b, err := r.ReadSimpleListBytes()
		if err != nil {
			return err
		}
		v.SetBytes(copyBytes(b))
		return nil
	case TypeList:
		n, err := r.ReadSize()
		if err != nil {
			return err
		}
		if n < 0 {
			return NewDecodeErrorAt(r.Pos(), "invalid list size", ErrNegativeLength)
		}
		out := make([]byte, n)
		for i := 0; i < n; i++ {
			_, et, err := r.ReadHead()
			if err != nil {
				return err
			}
			b, err := r.ReadInt(et)
			if err != nil {
				return err
			}
			out[i] = byte(b)
		}
		v.SetBytes(out)
		return nil
	default:
		return NewDecodeErrorAt(r.Pos(), fmt.Sprintf("expected SimpleList or List for bytes, got %v", typ), ErrTypeMismatch)
	}
}

// decodeStructInto reads a nested record, either inline
// (StructBegin..StructEnd) or wire-packed as SimpleList bytes.
func decodeStructInto(r *Reader, typ Type, expr *TypeExpr, v reflect.Value, opts Options, depth int) error {
	def, err := SchemaFor(expr.Class)
	if err != nil {
		return err
	}
	switch typ {
	case TypeStructBegin:
		return decodeStruct(r, v, def, opts, depth+1)
	case TypeSimpleList:
		// A simplelist-packed record: the payload is a complete struct
		// body in its own right.
		b, err := r.ReadSimpleListBytes()
		if err != nil {
			return err
		}
		inner := NewReader(b)
		if err := decodeStruct(inner, v, def, opts, depth+1); err != nil {
			return err
		}
		if !inner.EOF() {
			return NewDecodeErrorAt(inner.Pos(), "trailing bytes in packed struct", ErrTrailingBytes)
		}
		return nil
	default:
		return NewDecodeErrorAt(r.Pos(), fmt.Sprintf("expected StructBegin for %s, got %v", def.Name, typ), ErrTypeMismatch)
	}
}

// decodeListInto reads a List (or a SimpleList short-circuit) into a
// slice target.
func decodeListInto(r *Reader, typ Type, expr *TypeExpr, v reflect.Value, opts Options, depth int) error {
	if typ == TypeSimpleList {
		// Byte payload decoded into an integer-element slice.
		b, err := r.ReadSimpleListBytes()
		if err != nil {
			return err
		}
		out := reflect.MakeSlice(v.Type(), len(b), len(b))
		for i, c := range b {
			if err := setInt(out.Index(i), int64(c), r.Pos()); err != nil {
				return err
			}
		}
		v.Set(out)
		return nil
	}
	if typ != TypeList {
		return NewDecodeErrorAt(r.Pos(), fmt.Sprintf("expected List, got %v", typ), ErrTypeMismatch)
	}
	n, err := r.ReadSize()
	if err != nil {
		return err
	}
	if n < 0 {
		return NewDecodeErrorAt(r.Pos(), "invalid list size", ErrNegativeLength)
	}
	out := reflect.MakeSlice(v.Type(), n, n)
	for i := 0; i < n; i++ {
		_, et, err := r.ReadHead()
		if err != nil {
			return err
		}
		if err := decodeInto(r, et, expr.Elem, out.Index(i), opts, depth+1); err != nil {
			return prependPath(err, indexPath(i))
		}
	}
	v.Set(out)
	return nil
}

// decodeTupleInto reads a fixed-arity sequence into an array (or slice)
// target, requiring the wire length to equal the arity.
func decodeTupleInto(r *Reader, typ Type, expr *TypeExpr, v reflect.Value, opts Options, depth int) error {
	if typ != TypeList {
		return NewDecodeErrorAt(r.Pos(), fmt.Sprintf("expected List for tuple, got %v", typ), ErrTypeMismatch)
	}
	arity := expr.Arity
	if expr.Items != nil {
		arity = len(expr.Items)
	}
	n, err := r.ReadSize()
	if err != nil {
		return err
	}
	if n != arity {
		return NewDecodeErrorAt(r.Pos(), fmt.Sprintf("tuple length %d does not match arity %d", n, arity), ErrTypeMismatch)
	}
	target := v
	if v.Kind() == reflect.Slice {
		target = reflect.MakeSlice(v.Type(), n, n)
	}
	for i := 0; i < n; i++ {
		_, et, err := r.ReadHead()
		if err != nil {
			return err
		}
		item := expr.Elem
		if expr.Items != nil {
			item = expr.Items[i]
		}
		if err := decodeInto(r, et, item, target.Index(i), opts, depth+1); err != nil {
			return prependPath(err, indexPath(i))
		}
	}
	if v.Kind() == reflect.Slice {
		v.Set(target)
	}
	return nil
}

// decodeSetInto reads a List into a set-shaped map target.
func decodeSetInto(r *Reader, typ Type, expr *TypeExpr, v reflect.Value, opts Options, depth int) error {
	if typ != TypeList {
		return NewDecodeErrorAt(r.Pos(), fmt.Sprintf("expected List for set, got %v", typ), ErrTypeMismatch)
	}
	n, err := r.ReadSize()
	if err != nil {
		return err
	}
	if n < 0 {
		return NewDecodeErrorAt(r.Pos(), "invalid list size", ErrNegativeLength)
	}
	out := reflect.MakeMapWithSize(v.Type(), n)
	member := reflect.ValueOf(struct{}{})
	for i := 0; i < n; i++ {
		_, et, err := r.ReadHead()
		if err != nil {
			return err
		}
		key := reflect.New(v.Type().Key()).Elem()
		if err := decodeInto(r, et, expr.Elem, key, opts, depth+1); err != nil {
			return prependPath(err, indexPath(i))
		}
		out.SetMapIndex(key, member)
	}
	v.Set(out)
	return nil
}

// decodeMapInto reads a Map into a map target.
func decodeMapInto(r *Reader, typ Type, expr *TypeExpr, v reflect.Value, opts Options, depth int) error {
	if typ != TypeMap {
		return NewDecodeErrorAt(r.Pos(), fmt.Sprintf("expected Map, got %v", typ), ErrTypeMismatch)
	}
	n, err := r.ReadSize()
	if err != nil {
		return err
	}
	if n < 0 {
		return NewDecodeErrorAt(r.Pos(), "invalid map size", ErrNegativeLength)
	}
	out := reflect.MakeMapWithSize(v.Type(), n)
	for i := 0; i < n; i++ {
		_, kt, err := r.ReadHead()
		if err != nil {
			return err
		}
		key := reflect.New(v.Type().Key()).Elem()
		if err := decodeInto(r, kt, expr.Key, key, opts, depth+1); err != nil {
			return err
		}
		_, vt, err := r.ReadHead()
		if err != nil {
			return err
		}
		val := reflect.New(v.Type().Elem()).Elem()
		if err := decodeInto(r, vt, expr.Elem, val, opts, depth+1); err != nil {
			return prependPath(err, keyPath(key.Interface()))
		}
		out.SetMapIndex(key, val)
	}
	v.Set(out)
	return nil
}

// decodeNameMapInto reads a name-keyed Map back into a record.
func decodeNameMapInto(r *Reader, typ Type, expr *TypeExpr, v reflect.Value, opts Options, depth int) error {
	if typ != TypeMap {
		return NewDecodeErrorAt(r.Pos(), fmt.Sprintf("expected Map for name-mapped record, got %v", typ), ErrTypeMismatch)
	}
	def, err := SchemaFor(expr.Class)
	if err != nil {
		return err
	}
	n, err := r.ReadSize()
	if err != nil {
		return err
	}
	if n < 0 {
		return NewDecodeErrorAt(r.Pos(), "invalid map size", ErrNegativeLength)
	}
	for i := 0; i < n; i++ {
		_, kt, err := r.ReadHead()
		if err != nil {
			return err
		}
		nameBytes, err := r.ReadStringBytes(kt)
		if err != nil {
			return err
		}
		name, err := decodeStringPayload(nameBytes, opts, r.Pos()-len(nameBytes))
		if err != nil {
			return err
		}
		_, vt, err := r.ReadHead()
		if err != nil {
			return err
		}
		val, err := decodeAnyValue(r, vt, opts, depth+1)
		if err != nil {
			return prependPath(err, fieldPath(name))
		}
		f, ok := def.FieldByName(name)
		if !ok {
			continue
		}
		fv, err := fieldTarget(v, def, f)
		if err != nil {
			return err
		}
		if err := convertAssign(fv, val); err != nil {
			return prependPath(err, fieldPath(name))
		}
	}
	return nil
}

// convertAssign assigns a decoded any-value into a typed target,
// converting numeric widths where the target can hold the value.
func convertAssign(dst reflect.Value, src any) error {
	if src == nil {
		dst.SetZero()
		return nil
	}
	sv := reflect.ValueOf(src)
	if sv.Type().AssignableTo(dst.Type()) {
		dst.Set(sv)
		return nil
	}
	if dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		return convertAssign(dst.Elem(), src)
	}
	switch dst.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr, reflect.Bool:
		if n, ok := src.(int64); ok {
			return setInt(dst, n, -1)
		}
	case reflect.Float32, reflect.Float64:
		switch n := src.(type) {
		case float64:
			dst.SetFloat(n)
			return nil
		case int64:
			dst.SetFloat(float64(n))
			return nil
		}
	case reflect.String:
		if s, ok := src.(string); ok {
			dst.SetString(s)
			return nil
		}
	}
	if sv.Type().ConvertibleTo(dst.Type()) {
		dst.Set(sv.Convert(dst.Type()))
		return nil
	}
	return NewDecodeError(fmt.Sprintf("cannot assign %T to %s", src, dst.Type()), ErrTypeMismatch)
}
