package tars

import (
	"fmt"
	"math"
	"reflect"
)

// valueMatchesType is the structural predicate behind union dispatch and
// constructor-time type checks. It inspects the runtime value only; no
// coercion is attempted.
func valueMatchesType(expr *TypeExpr, v reflect.Value) bool {
	switch expr.Kind {
	case KindAny:
		return true
	case KindNone:
		return isNilValue(v)
	case KindOptional:
		return isNilValue(v) || valueMatchesType(expr.Elem, deref(v))
	case KindBool:
		return v.Kind() == reflect.Bool
	case KindInt, KindLong:
		// Booleans are excluded even though they widen to integers on
		// the wire.
		switch v.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return v.Type().PkgPath() == ""
		}
		return false
	case KindFloat, KindDouble:
		return (v.Kind() == reflect.Float32 || v.Kind() == reflect.Float64) && v.Type().PkgPath() == ""
	case KindString:
		return v.Kind() == reflect.String && v.Type().PkgPath() == ""
	case KindBytes:
		return v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8
	case KindList:
		// Ordered sequences excluding strings, bytes, and maps.
		if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
			return false
		}
		return v.Kind() != reflect.Slice || v.Type().Elem().Kind() != reflect.Uint8
	case KindTuple:
		if v.Kind() != reflect.Array && v.Kind() != reflect.Slice {
			return false
		}
		arity := expr.Arity
		if expr.Items != nil {
			arity = len(expr.Items)
		}
		if v.Len() != arity {
			return false
		}
		if expr.Items != nil {
			for i, item := range expr.Items {
				if !valueMatchesType(item, deref(v.Index(i))) {
					return false
				}
			}
		}
		return true
	case KindSet:
		return v.Kind() == reflect.Map && v.Type().Elem() == reflect.TypeOf(struct{}{})
	case KindMap, KindDict:
		return v.Kind() == reflect.Map
	case KindUnion:
		if isNilValue(v) {
			return expr.AllowNil
		}
		for _, variant := range expr.Variants {
			if valueMatchesType(variant, v) {
				return true
			}
		}
		return false
	case KindStruct, KindNameMap:
		return v.IsValid() && v.Type() == expr.Class
	case KindEnum:
		return v.IsValid() && v.Type() == expr.Class
	default:
		return false
	}
}

// isNilValue reports whether the value is an absent/nil record attribute.
func isNilValue(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	default:
		return false
	}
}

// deref unwraps pointers and interfaces down to the concrete value.
func deref(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return v
		}
		v = v.Elem()
	}
	return v
}

// applyConstraints validates a decoded (or constructed) value against a
// field's constraint predicates. Failures surface as *ValidationError
// identifying the field and the violated predicate.
func applyConstraints(field string, c *Constraints, v reflect.Value) error {
	if c.empty() {
		return nil
	}
	v = deref(v)
	if !v.IsValid() {
		return nil
	}

	if c.Gt != nil || c.Ge != nil || c.Lt != nil || c.Le != nil {
		if f, ok := numericValue(v); ok {
			if err := checkNumeric(field, c, f); err != nil {
				return err
			}
		}
	}

	if c.MinLen != nil || c.MaxLen != nil {
		if n, ok := lengthOf(v); ok {
			if c.MinLen != nil && n < *c.MinLen {
				return NewValidationError(field, fmt.Sprintf("length %d is less than min_len %d", n, *c.MinLen))
			}
			if c.MaxLen != nil && n > *c.MaxLen {
				return NewValidationError(field, fmt.Sprintf("length %d exceeds max_len %d", n, *c.MaxLen))
			}
		}
	}

	if c.Pattern != nil && v.Kind() == reflect.String {
		if !c.Pattern.MatchString(v.String()) {
			return NewValidationError(field, fmt.Sprintf("%q does not match pattern %s", v.String(), c.Pattern))
		}
	}

	return nil
}

// checkNumeric applies ordering constraints. NaN satisfies none of them.
func checkNumeric(field string, c *Constraints, f float64) error {
	if math.IsNaN(f) {
		return NewValidationError(field, "NaN does not satisfy ordering constraints")
	}
	if c.Gt != nil && !(f > *c.Gt) {
		return NewValidationError(field, fmt.Sprintf("%v is not greater than %v", f, *c.Gt))
	}
	if c.Ge != nil && !(f >= *c.Ge) {
		return NewValidationError(field, fmt.Sprintf("%v is less than %v", f, *c.Ge))
	}
	if c.Lt != nil && !(f < *c.Lt) {
		return NewValidationError(field, fmt.Sprintf("%v is not less than %v", f, *c.Lt))
	}
	if c.Le != nil && !(f <= *c.Le) {
		return NewValidationError(field, fmt.Sprintf("%v is greater than %v", f, *c.Le))
	}
	return nil
}

// numericValue extracts a float64 from any numeric value.
func numericValue(v reflect.Value) (float64, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	default:
		return 0, false
	}
}

// lengthOf returns the length of strings and containers.
func lengthOf(v reflect.Value) (int, bool) {
	switch v.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return v.Len(), true
	default:
		return 0, false
	}
}

// selectUnionVariant resolves the variant for a value, consulting and
// warming the union's dispatch cache. For a given concrete type the
// chosen variant is deterministic, so cold and warm lookups agree.
func selectUnionVariant(expr *TypeExpr, v reflect.Value) (*TypeExpr, error) {
	if isNilValue(v) {
		if expr.AllowNil {
			return nil, nil
		}
		return nil, NewEncodeError("union does not accept nil", ErrUnionNoNone)
	}
	cv := deref(v)
	key := cv.Type()
	if idx, ok := expr.cache.lookup(key); ok {
		return expr.Variants[idx], nil
	}
	for i, variant := range expr.Variants {
		if valueMatchesType(variant, cv) {
			expr.cache.store(key, i)
			return variant, nil
		}
	}
	return nil, NewEncodeError("value of type "+key.String()+" matches no union variant", ErrUnionNoMatch)
}

// wireMatches reports whether an observed wire type can carry a value of
// the given expression; it backs union resolution on the decode side.
func wireMatches(expr *TypeExpr, typ Type) bool {
	switch expr.Kind {
	case KindAny:
		return true
	case KindNone:
		return false
	case KindOptional:
		return wireMatches(expr.Elem, typ)
	case KindInt, KindLong, KindBool, KindEnum:
		switch typ {
		case TypeZeroTag, TypeInt1, TypeInt2, TypeInt4, TypeInt8:
			return true
		}
		// Enums over strings or floats arrive under their inner shape.
		if expr.Kind == KindEnum && expr.Elem != nil {
			switch expr.Elem.Kind {
			case KindString:
				return typ == TypeString1 || typ == TypeString4
			case KindFloat, KindDouble:
				return typ == TypeFloat || typ == TypeDouble
			}
		}
		return false
	case KindFloat:
		return typ == TypeZeroTag || typ == TypeFloat
	case KindDouble:
		return typ == TypeZeroTag || typ == TypeFloat || typ == TypeDouble
	case KindString:
		return typ == TypeString1 || typ == TypeString4
	case KindBytes:
		return typ == TypeSimpleList || typ == TypeList
	case KindList, KindTuple, KindSet:
		return typ == TypeList || typ == TypeSimpleList
	case KindMap, KindNameMap:
		return typ == TypeMap
	case KindStruct, KindDict:
		return typ == TypeStructBegin
	case KindUnion:
		for _, v := range expr.Variants {
			if wireMatches(v, typ) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
