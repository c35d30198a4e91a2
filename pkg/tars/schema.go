package tars

import (
	"reflect"
	"regexp"
	"sync"
)

// Kind discriminates the semantic type expression of a field.
// The wire encoding is derived from the kind at dispatch time.
type Kind uint8

const (
	// KindInt is a signed integer up to 32 bits.
	KindInt Kind = iota

	// KindLong is a signed 64-bit integer.
	KindLong

	// KindBool is a boolean, widened to an integer 0/1 on the wire.
	KindBool

	// KindFloat is a single-precision float.
	KindFloat

	// KindDouble is a double-precision float.
	KindDouble

	// KindString is a UTF-8 string.
	KindString

	// KindBytes is a byte array, encoded as SimpleList; it decodes from
	// either SimpleList or List of integers.
	KindBytes

	// KindNone matches only nil; it must be wrapped by Optional or Union.
	KindNone

	// KindAny defers to the runtime type of the value.
	KindAny

	// KindOptional wraps Elem and additionally admits nil.
	KindOptional

	// KindUnion selects among Variants by runtime type, memoized in a
	// per-expression dispatch cache.
	KindUnion

	// KindList is a variable-length homogeneous sequence.
	KindList

	// KindTuple is a fixed-arity sequence: per-item expressions when
	// Items is set, else Arity repetitions of Elem.
	KindTuple

	// KindSet is an unordered collection, encoded as List.
	KindSet

	// KindMap is a key/value container.
	KindMap

	// KindStruct is a nested record with its own schema.
	KindStruct

	// KindDict is a schema-less tag-keyed record (Dict).
	KindDict

	// KindNameMap is a record encoded as a Map of field name to value.
	KindNameMap

	// KindEnum is a defined type serialized under its Inner primitive.
	KindEnum
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "Int"
	case KindLong:
		return "Long"
	case KindBool:
		return "Bool"
	case KindFloat:
		return "Float"
	case KindDouble:
		return "Double"
	case KindString:
		return "String"
	case KindBytes:
		return "Bytes"
	case KindNone:
		return "None"
	case KindAny:
		return "Any"
	case KindOptional:
		return "Optional"
	case KindUnion:
		return "Union"
	case KindList:
		return "List"
	case KindTuple:
		return "Tuple"
	case KindSet:
		return "Set"
	case KindMap:
		return "Map"
	case KindStruct:
		return "Struct"
	case KindDict:
		return "Dict"
	case KindNameMap:
		return "NameMap"
	case KindEnum:
		return "Enum"
	default:
		return "Unknown"
	}
}

// TypeExpr describes what a field's value means. It drives both the
// serializer and deserializer dispatch.
type TypeExpr struct {
	// Kind is the discriminant.
	Kind Kind

	// Elem is the element expression for Optional, List, Tuple (when
	// Items is nil), Set, Map values, and Enum inners.
	Elem *TypeExpr

	// Key is the key expression for Map.
	Key *TypeExpr

	// Items holds per-position expressions for heterogeneous tuples.
	Items []*TypeExpr

	// Arity is the fixed length of a homogeneous tuple.
	Arity int

	// Variants are the alternatives of a Union, deduplicated, with any
	// None variant lifted into optionality.
	Variants []*TypeExpr

	// AllowNil is set on unions that accept nil (a None or Optional
	// variant was supplied).
	AllowNil bool

	// Class is the runtime type identity for Struct, NameMap, Enum, and
	// concrete union variants.
	Class reflect.Type

	// cache memoizes union variant selection by runtime type.
	cache unionCache
}

// unionCache is a single-writer, many-reader map from runtime type
// identity to variant index. Entries are append-only for the process
// lifetime; duplicate writes are idempotent because variant selection
// is deterministic for a given type.
type unionCache struct {
	m sync.Map // reflect.Type -> int
}

func (c *unionCache) lookup(t reflect.Type) (int, bool) {
	v, ok := c.m.Load(t)
	if !ok {
		return 0, false
	}
	return v.(int), true
}

func (c *unionCache) store(t reflect.Type, idx int) {
	c.m.Store(t, idx)
}

// Constraints are optional per-field predicates applied after decoding
// and before union/constructor acceptance. Ordering constraints apply to
// numerics, length constraints to strings and containers, and the
// pattern to strings.
type Constraints struct {
	// Gt, Ge, Lt, Le bound numeric values. NaN never satisfies any
	// ordering constraint.
	Gt, Ge, Lt, Le *float64

	// MinLen and MaxLen bound string and container lengths.
	MinLen, MaxLen *int

	// Pattern must find a match in string values.
	Pattern *regexp.Regexp
}

// empty reports whether no constraint is set.
func (c *Constraints) empty() bool {
	return c == nil || (c.Gt == nil && c.Ge == nil && c.Lt == nil && c.Le == nil &&
		c.MinLen == nil && c.MaxLen == nil && c.Pattern == nil)
}

// FieldDef describes one field of a record schema.
//
// Invariants: at most one of DefaultValue and DefaultFunc is set;
// Required holds exactly when the field is neither optional nor
// defaulted; Optional fields may be absent on the wire and materialize
// as the zero value (nil for pointer fields).
type FieldDef struct {
	// Name is the record attribute the field binds to.
	Name string

	// Tag is the wire tag, 0..=255.
	Tag uint8

	// Type is the semantic type expression.
	Type *TypeExpr

	// DefaultValue is an owned default applied when the tag is absent.
	DefaultValue any

	// DefaultFunc produces a fresh default when the tag is absent.
	// Used for mutable defaults that must not be shared.
	DefaultFunc func() any

	// Optional marks the field absent-tolerant.
	Optional bool

	// Required marks the field mandatory on decode.
	Required bool

	// Constraints are the optional validation predicates.
	Constraints *Constraints

	// WrapSimpleList packs this struct-typed field as SimpleList bytes.
	WrapSimpleList bool

	// index is the reflect field index within the record struct, or -1
	// for builder-defined schemas without a backing struct.
	index int
}

// Config carries the per-schema policy flags. The object-model flags
// (Frozen, Order, Eq, KwOnly, Dict, Weakref, ReprOmitDefaults) are
// schema metadata consumed by host glue; OmitDefaults,
// ForbidUnknownTags, and SimpleList alter codec behavior.
type Config struct {
	// Frozen marks instances immutable post-construction.
	Frozen bool

	// Order enables total ordering by field tuple.
	Order bool

	// Eq enables structural equality by field tuple.
	Eq bool

	// ForbidUnknownTags fails decoding on any tag not in the schema.
	ForbidUnknownTags bool

	// OmitDefaults skips fields equal to their default on encode.
	OmitDefaults bool

	// ReprOmitDefaults skips default-valued fields in renderings only.
	ReprOmitDefaults bool

	// KwOnly restricts constructors to keyword arguments.
	KwOnly bool

	// Dict reserves per-instance dynamic attribute storage.
	Dict bool

	// Weakref reserves weak reference support.
	Weakref bool

	// SimpleList wire-packs struct-typed fields as SimpleList bytes.
	SimpleList bool
}

// StructDef is the compiled, cached description of a record type.
// It is built exactly once per type on first use and interned in a
// process-wide cache keyed by type identity.
type StructDef struct {
	// Type is the record's runtime type identity (nil for schemas built
	// without a backing struct).
	Type reflect.Type

	// Name is the record type name.
	Name string

	// Fields are the field definitions, strictly ascending by tag.
	Fields []FieldDef

	// Config is the schema policy.
	Config Config

	// tagLookup maps tag -> field index for tags 0..=maxTag; -1 marks
	// tags with no field.
	tagLookup []int16

	// byName maps field name -> field index.
	byName map[string]int
}

// FieldByTag returns the field definition for a wire tag, if any.
func (d *StructDef) FieldByTag(tag uint8) (*FieldDef, bool) {
	if int(tag) >= len(d.tagLookup) {
		return nil, false
	}
	i := d.tagLookup[tag]
	if i < 0 {
		return nil, false
	}
	return &d.Fields[i], true
}

// FieldByName returns the field definition for an attribute name, if any.
func (d *StructDef) FieldByName(name string) (*FieldDef, bool) {
	i, ok := d.byName[name]
	if !ok {
		return nil, false
	}
	return &d.Fields[i], true
}

// Primitive expression singletons shared by the compiler.
var (
	exprInt    = &TypeExpr{Kind: KindInt}
	exprLong   = &TypeExpr{Kind: KindLong}
	exprBool   = &TypeExpr{Kind: KindBool}
	exprFloat  = &TypeExpr{Kind: KindFloat}
	exprDouble = &TypeExpr{Kind: KindDouble}
	exprString = &TypeExpr{Kind: KindString}
	exprBytes  = &TypeExpr{Kind: KindBytes}
	exprAny    = &TypeExpr{Kind: KindAny}
	exprDict   = &TypeExpr{Kind: KindDict}
)

// IntExpr returns the Int primitive expression.
func IntExpr() *TypeExpr { return exprInt }

// LongExpr returns the Long primitive expression.
func LongExpr() *TypeExpr { return exprLong }

// BoolExpr returns the Bool primitive expression.
func BoolExpr() *TypeExpr { return exprBool }

// FloatExpr returns the Float primitive expression.
func FloatExpr() *TypeExpr { return exprFloat }

// DoubleExpr returns the Double primitive expression.
func DoubleExpr() *TypeExpr { return exprDouble }

// StringExpr returns the String primitive expression.
func StringExpr() *TypeExpr { return exprString }

// BytesExpr returns the Bytes expression.
func BytesExpr() *TypeExpr { return exprBytes }

// AnyExpr returns the Any expression.
func AnyExpr() *TypeExpr { return exprAny }

// DictExpr returns the tag-keyed raw record expression.
func DictExpr() *TypeExpr { return exprDict }

// OptionalExpr wraps inner in optionality. Optional(Optional(x))
// collapses to Optional(x).
func OptionalExpr(inner *TypeExpr) *TypeExpr {
	if inner.Kind == KindOptional {
		return inner
	}
	return &TypeExpr{Kind: KindOptional, Elem: inner}
}

// ListExpr returns a List of inner.
func ListExpr(inner *TypeExpr) *TypeExpr {
	return &TypeExpr{Kind: KindList, Elem: inner}
}

// TupleExpr returns a fixed-arity heterogeneous tuple.
func TupleExpr(items ...*TypeExpr) *TypeExpr {
	return &TypeExpr{Kind: KindTuple, Items: items, Arity: len(items)}
}

// SetExpr returns a Set of inner.
func SetExpr(inner *TypeExpr) *TypeExpr {
	return &TypeExpr{Kind: KindSet, Elem: inner}
}

// MapExpr returns a Map from key to value.
func MapExpr(key, value *TypeExpr) *TypeExpr {
	return &TypeExpr{Kind: KindMap, Key: key, Elem: value}
}

// StructExpr returns a nested record expression for the given type.
func StructExpr(t reflect.Type) *TypeExpr {
	return &TypeExpr{Kind: KindStruct, Class: t}
}

// NameMapExpr returns a record-as-name-keyed-map expression.
func NameMapExpr(t reflect.Type) *TypeExpr {
	return &TypeExpr{Kind: KindNameMap, Class: t}
}

// EnumExpr returns an enum expression for a defined type and its inner
// primitive.
func EnumExpr(t reflect.Type, inner *TypeExpr) *TypeExpr {
	return &TypeExpr{Kind: KindEnum, Class: t, Elem: inner}
}

// UnionExpr builds a union over variants. Variants are deduplicated by
// kind and class; None variants are lifted into AllowNil, and a single
// surviving variant with AllowNil collapses to Optional.
func UnionExpr(variants ...*TypeExpr) *TypeExpr {
	u := &TypeExpr{Kind: KindUnion}
	seen := make(map[string]bool, len(variants))
	for _, v := range variants {
		if v.Kind == KindNone {
			u.AllowNil = true
			continue
		}
		if v.Kind == KindOptional {
			u.AllowNil = true
			v = v.Elem
		}
		key := v.Kind.String()
		if v.Class != nil {
			key += ":" + v.Class.String()
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		u.Variants = append(u.Variants, v)
	}
	if len(u.Variants) == 1 && u.AllowNil {
		return OptionalExpr(u.Variants[0])
	}
	return u
}
