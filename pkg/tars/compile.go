package tars

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// schemaCache interns compiled StructDefs keyed by reflect.Type.
// Go types are never unloaded, so the weak-handle eviction of a
// reflective host degenerates to a plain concurrent map; the cache
// still guarantees one *StructDef per type for the process lifetime.
var schemaCache sync.Map

// SchemaFor returns the compiled schema for a record type, building and
// interning it on first use. The argument may be a struct type or a
// pointer to one.
//
// Calling SchemaFor twice for the same type returns the same *StructDef.
func SchemaFor(t reflect.Type) (*StructDef, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := schemaCache.Load(t); ok {
		return cached.(*StructDef), nil
	}
	if t.Kind() != reflect.Struct {
		return nil, NewEncodeError("schema target must be a struct, got "+t.String(), ErrTypeMismatch)
	}

	fields, cfg, err := fieldsFromStructTags(t)
	if err != nil {
		return nil, err
	}
	def, err := CompileFields(t, t.Name(), fields, cfg)
	if err != nil {
		return nil, err
	}

	// A racing first-use compilation may have won; both paths observe
	// the same interned definition.
	actual, _ := schemaCache.LoadOrStore(t, def)
	return actual.(*StructDef), nil
}

// SchemaOf is a generic convenience wrapper over SchemaFor.
func SchemaOf[T any]() (*StructDef, error) {
	return SchemaFor(reflect.TypeOf((*T)(nil)).Elem())
}

// ConfigProvider lets a record type override its schema policy flags.
type ConfigProvider interface {
	TarsConfig() Config
}

var configProviderType = reflect.TypeOf((*ConfigProvider)(nil)).Elem()

// fieldsFromStructTags builds a field list from `tars:"..."` struct
// tags. Untagged exported fields are assigned sequential tags following
// the previous field.
func fieldsFromStructTags(t reflect.Type) ([]FieldDef, Config, error) {
	var cfg Config
	if t.Implements(configProviderType) {
		cfg = reflect.New(t).Elem().Interface().(ConfigProvider).TarsConfig()
	} else if reflect.PtrTo(t).Implements(configProviderType) {
		cfg = reflect.New(t).Interface().(ConfigProvider).TarsConfig()
	}

	fields := make([]FieldDef, 0, t.NumField())
	nextTag := 0
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := f.Tag.Get("tars")
		if tag == "-" {
			continue
		}

		fd := FieldDef{Name: f.Name, index: i}
		asMap := false
		if tag != "" {
			parsedTag, opts, err := parseFieldTag(tag)
			if err != nil {
				return nil, cfg, NewEncodeError(fmt.Sprintf("field %s.%s: %v", t.Name(), f.Name, err), nil)
			}
			if parsedTag >= 0 {
				fd.Tag = uint8(parsedTag)
			} else {
				fd.Tag = uint8(nextTag)
			}
			if err := applyFieldOptions(&fd, opts, &asMap); err != nil {
				return nil, cfg, NewEncodeError(fmt.Sprintf("field %s.%s: %v", t.Name(), f.Name, err), nil)
			}
		} else {
			fd.Tag = uint8(nextTag)
		}
		nextTag = int(fd.Tag) + 1

		expr, err := typeExprOf(f.Type)
		if err != nil {
			return nil, cfg, NewEncodeError(fmt.Sprintf("field %s.%s: %v", t.Name(), f.Name, err), nil)
		}
		if asMap {
			inner := expr
			if inner.Kind == KindOptional {
				inner = inner.Elem
			}
			if inner.Kind != KindStruct {
				return nil, cfg, NewEncodeError(fmt.Sprintf("field %s.%s: asmap requires a struct type", t.Name(), f.Name), nil)
			}
			nm := NameMapExpr(inner.Class)
			if expr.Kind == KindOptional {
				expr = OptionalExpr(nm)
			} else {
				expr = nm
			}
		}
		if expr.Kind == KindOptional {
			fd.Optional = true
		}
		// A nil-able Go shape (slice, map, interface) is elided on
		// encode when nil, so it may legitimately be absent on the
		// wire; it is optional unless explicitly marked required.
		if !fd.Required && !fd.Optional && isNilableKind(f.Type.Kind()) {
			fd.Optional = true
		}
		// Under omit-defaults every remaining field implicitly
		// defaults to its zero value, so default-elided fields decode
		// back to what the encoder skipped.
		if cfg.OmitDefaults && !fd.Optional && fd.DefaultValue == nil && fd.DefaultFunc == nil {
			fd.DefaultValue = reflect.Zero(f.Type).Interface()
		}
		fd.Type = expr
		fields = append(fields, fd)
	}
	return fields, cfg, nil
}

// isNilableKind reports whether a Go kind has a nil zero value that the
// encoder elides.
func isNilableKind(k reflect.Kind) bool {
	switch k {
	case reflect.Slice, reflect.Map, reflect.Interface, reflect.Ptr:
		return true
	default:
		return false
	}
}

// parseFieldTag splits a `tars` struct tag into its numeric tag and
// option list. A leading empty segment keeps the auto-assigned tag.
func parseFieldTag(tag string) (int, []string, error) {
	parts := strings.Split(tag, ",")
	num := -1
	if parts[0] != "" {
		n, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, nil, fmt.Errorf("invalid tag number %q", parts[0])
		}
		if n < 0 || n > MaxTag {
			return 0, nil, fmt.Errorf("tag %d out of range 0..=255", n)
		}
		num = n
	}
	return num, parts[1:], nil
}

// applyFieldOptions interprets tag options: presence markers
// (optional, required, simplelist, asmap) and constraint predicates
// (gt=, ge=, lt=, le=, minlen=, maxlen=, pattern=).
func applyFieldOptions(fd *FieldDef, opts []string, asMap *bool) error {
	var c Constraints
	for _, opt := range opts {
		if opt == "" {
			continue
		}
		key, val, hasVal := strings.Cut(opt, "=")
		switch key {
		case "optional":
			fd.Optional = true
		case "required":
			fd.Required = true
		case "simplelist":
			fd.WrapSimpleList = true
		case "asmap":
			*asMap = true
		case "gt", "ge", "lt", "le":
			if !hasVal {
				return fmt.Errorf("option %q requires a value", key)
			}
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return fmt.Errorf("option %q: %v", key, err)
			}
			switch key {
			case "gt":
				c.Gt = &f
			case "ge":
				c.Ge = &f
			case "lt":
				c.Lt = &f
			case "le":
				c.Le = &f
			}
		case "minlen", "maxlen":
			if !hasVal {
				return fmt.Errorf("option %q requires a value", key)
			}
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return fmt.Errorf("option %q: invalid length %q", key, val)
			}
			if key == "minlen" {
				c.MinLen = &n
			} else {
				c.MaxLen = &n
			}
		case "pattern":
			if !hasVal {
				return fmt.Errorf("option %q requires a value", key)
			}
			re, err := regexp.Compile(val)
			if err != nil {
				return fmt.Errorf("option %q: %v", key, err)
			}
			c.Pattern = re
		default:
			return fmt.Errorf("unknown option %q", key)
		}
	}
	if !c.empty() {
		fd.Constraints = &c
	}
	if fd.Optional && fd.Required {
		return fmt.Errorf("field cannot be both optional and required")
	}
	return nil
}

// CompileFields builds a StructDef from an abstract field list.
// The list may come from struct tags, from a hand-written builder, or
// from generated glue; the compiler itself is reflection-free.
//
// Compilation validates tag uniqueness (naming both colliding fields),
// sorts fields ascending by tag, builds the dense tag lookup table, and
// derives each field's Required flag. No default is injected for
// optional fields; absent ones are zeroed at decode time.
func CompileFields(t reflect.Type, name string, fields []FieldDef, cfg Config) (*StructDef, error) {
	byTag := make(map[uint8]string, len(fields))
	for _, f := range fields {
		if prev, ok := byTag[f.Tag]; ok {
			return nil, NewEncodeError(
				fmt.Sprintf("%s: duplicate tag %d on fields %q and %q", name, f.Tag, prev, f.Name),
				ErrDuplicateTag)
		}
		byTag[f.Tag] = f.Name
		if f.DefaultValue != nil && f.DefaultFunc != nil {
			return nil, NewEncodeError(
				fmt.Sprintf("%s.%s: both default value and default factory set", name, f.Name), nil)
		}
		if f.Type == nil {
			return nil, NewEncodeError(fmt.Sprintf("%s.%s: missing type expression", name, f.Name), nil)
		}
	}

	sorted := make([]FieldDef, len(fields))
	copy(sorted, fields)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Tag < sorted[j].Tag })

	maxTag := 0
	if len(sorted) > 0 {
		maxTag = int(sorted[len(sorted)-1].Tag)
	}
	lookup := make([]int16, maxTag+1)
	for i := range lookup {
		lookup[i] = -1
	}
	byName := make(map[string]int, len(sorted))
	for i := range sorted {
		f := &sorted[i]
		lookup[f.Tag] = int16(i)
		byName[f.Name] = i
		// Bind the field to its struct index; builder-supplied
		// definitions resolve by name, falling back to the slower
		// name lookup for promoted fields.
		f.index = -1
		if t != nil && t.Kind() == reflect.Struct {
			if sf, ok := t.FieldByName(f.Name); ok && len(sf.Index) == 1 {
				f.index = sf.Index[0]
			}
		}
		// A required field may be neither optional nor defaulted.
		if f.Required && (f.Optional || f.DefaultValue != nil || f.DefaultFunc != nil) {
			return nil, NewEncodeError(
				fmt.Sprintf("%s.%s: required field cannot be optional or defaulted", name, f.Name), nil)
		}
		// Required holds exactly when the field is neither optional
		// nor defaulted; the explicit tag option only confirms it.
		if !f.Optional && f.DefaultValue == nil && f.DefaultFunc == nil {
			f.Required = true
		}
	}

	return &StructDef{
		Type:      t,
		Name:      name,
		Fields:    sorted,
		Config:    cfg,
		tagLookup: lookup,
		byName:    byName,
	}, nil
}

// typeExprOf derives the semantic type expression for a Go type.
func typeExprOf(t reflect.Type) (*TypeExpr, error) {
	// Defined non-struct types behave as enums: serialized under their
	// inner primitive, reconstructed through the named type.
	if t.PkgPath() != "" && t.Kind() != reflect.Struct && t.Kind() != reflect.Interface &&
		t.Kind() != reflect.Map && t.Kind() != reflect.Slice && t.Kind() != reflect.Array &&
		t.Kind() != reflect.Ptr {
		inner, err := primitiveExprOf(t.Kind())
		if err != nil {
			return nil, fmt.Errorf("enum type %s: %v", t, err)
		}
		return EnumExpr(t, inner), nil
	}

	switch t.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16,
		reflect.Int, reflect.Int64, reflect.Uint32, reflect.Uint64, reflect.Uint, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.String:
		return primitiveExprOf(t.Kind())
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return exprBytes, nil
		}
		elem, err := typeExprOf(t.Elem())
		if err != nil {
			return nil, err
		}
		return ListExpr(elem), nil
	case reflect.Array:
		elem, err := typeExprOf(t.Elem())
		if err != nil {
			return nil, err
		}
		return &TypeExpr{Kind: KindTuple, Elem: elem, Arity: t.Len()}, nil
	case reflect.Map:
		if t.Key().Kind() == reflect.Uint8 && t.Elem().Kind() == reflect.Interface && t.Elem().NumMethod() == 0 {
			return exprDict, nil
		}
		if t.Elem() == reflect.TypeOf(struct{}{}) {
			key, err := typeExprOf(t.Key())
			if err != nil {
				return nil, err
			}
			return SetExpr(key), nil
		}
		key, err := typeExprOf(t.Key())
		if err != nil {
			return nil, err
		}
		val, err := typeExprOf(t.Elem())
		if err != nil {
			return nil, err
		}
		return MapExpr(key, val), nil
	case reflect.Ptr:
		inner, err := typeExprOf(t.Elem())
		if err != nil {
			return nil, err
		}
		return OptionalExpr(inner), nil
	case reflect.Struct:
		return StructExpr(t), nil
	case reflect.Interface:
		if variants, ok := DefaultUnions.Variants(t); ok {
			u := UnionExpr(variants...)
			u.Class = t
			return u, nil
		}
		if t.NumMethod() == 0 {
			return exprAny, nil
		}
		return nil, fmt.Errorf("interface %s has no registered union variants", t)
	default:
		return nil, fmt.Errorf("unsupported type %s", t)
	}
}

func primitiveExprOf(k reflect.Kind) (*TypeExpr, error) {
	switch k {
	case reflect.Bool:
		return exprBool, nil
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16:
		return exprInt, nil
	case reflect.Int, reflect.Int64, reflect.Uint32, reflect.Uint64, reflect.Uint, reflect.Uintptr:
		return exprLong, nil
	case reflect.Float32:
		return exprFloat, nil
	case reflect.Float64:
		return exprDouble, nil
	case reflect.String:
		return exprString, nil
	default:
		return nil, fmt.Errorf("kind %v is not a primitive", k)
	}
}

// UnionRegistry maps interface types to their union variants for
// polymorphic fields. It is safe for concurrent use.
type UnionRegistry struct {
	mu       sync.RWMutex
	variants map[reflect.Type][]*TypeExpr
}

// NewUnionRegistry creates an empty union registry.
func NewUnionRegistry() *UnionRegistry {
	return &UnionRegistry{variants: make(map[reflect.Type][]*TypeExpr)}
}

// DefaultUnions is the global default union registry.
var DefaultUnions = NewUnionRegistry()

// RegisterVariant registers concrete type V as a union variant of
// interface I. Variant order is registration order; re-registering the
// same variant is a no-op.
func RegisterVariant[I any, V any]() error {
	iface := reflect.TypeOf((*I)(nil)).Elem()
	variant := reflect.TypeOf((*V)(nil)).Elem()
	return DefaultUnions.Register(iface, variant)
}

// Register adds a concrete variant type to an interface's union.
func (r *UnionRegistry) Register(iface, variant reflect.Type) error {
	if iface.Kind() != reflect.Interface {
		return NewEncodeError("union target "+iface.String()+" is not an interface", ErrTypeMismatch)
	}
	expr, err := typeExprOf(variant)
	if err != nil {
		return NewEncodeError("union variant "+variant.String()+": "+err.Error(), nil)
	}
	if expr.Class == nil {
		expr = &TypeExpr{Kind: expr.Kind, Elem: expr.Elem, Key: expr.Key, Class: variant}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.variants[iface] {
		if v.Class == variant {
			return nil
		}
	}
	r.variants[iface] = append(r.variants[iface], expr)
	return nil
}

// Variants returns the registered union variants for an interface type.
func (r *UnionRegistry) Variants(iface reflect.Type) ([]*TypeExpr, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variants[iface]
	return v, ok
}
