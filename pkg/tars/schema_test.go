package tars

import (
	"errors"
	"reflect"
	"testing"
)

type lookupRecord struct {
	A int64  `tars:"0"`
	B string `tars:"3"`
	C bool   `tars:"17"`
}

func TestSchemaForBasic(t *testing.T) {
	def, err := SchemaOf[lookupRecord]()
	if err != nil {
		t.Fatal(err)
	}
	if def.Name != "lookupRecord" {
		t.Errorf("Name = %q", def.Name)
	}
	if len(def.Fields) != 3 {
		t.Fatalf("len(Fields) = %d", len(def.Fields))
	}
	// Fields sorted strictly ascending by tag.
	for i := 1; i < len(def.Fields); i++ {
		if def.Fields[i-1].Tag >= def.Fields[i].Tag {
			t.Errorf("fields not ascending: %d then %d", def.Fields[i-1].Tag, def.Fields[i].Tag)
		}
	}
}

func TestTagLookupTable(t *testing.T) {
	def, err := SchemaOf[lookupRecord]()
	if err != nil {
		t.Fatal(err)
	}
	// Every tag maps to a field exactly when the field carries that tag.
	for tag := 0; tag <= 17; tag++ {
		f, ok := def.FieldByTag(uint8(tag))
		want := tag == 0 || tag == 3 || tag == 17
		if ok != want {
			t.Errorf("FieldByTag(%d) ok = %v, want %v", tag, ok, want)
		}
		if ok && f.Tag != uint8(tag) {
			t.Errorf("FieldByTag(%d).Tag = %d", tag, f.Tag)
		}
	}
	// Tags beyond the table are absent.
	if _, ok := def.FieldByTag(200); ok {
		t.Error("FieldByTag(200) should be absent")
	}
}

func TestSchemaForIdempotent(t *testing.T) {
	a, err := SchemaOf[lookupRecord]()
	if err != nil {
		t.Fatal(err)
	}
	b, err := SchemaOf[lookupRecord]()
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("SchemaOf returned different pointers for the same type")
	}
	c, err := SchemaFor(reflect.TypeOf(&lookupRecord{}))
	if err != nil {
		t.Fatal(err)
	}
	if a != c {
		t.Error("pointer and value types should share one schema")
	}
}

type dupTagRecord struct {
	A int64 `tars:"1"`
	B int64 `tars:"1"`
}

func TestDuplicateTagDiagnostic(t *testing.T) {
	_, err := SchemaOf[dupTagRecord]()
	if !errors.Is(err, ErrDuplicateTag) {
		t.Fatalf("err = %v, want ErrDuplicateTag", err)
	}
	// Both field names appear in the diagnostic.
	msg := err.Error()
	if !contains(msg, "A") || !contains(msg, "B") {
		t.Errorf("diagnostic %q does not name both fields", msg)
	}
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

type autoTagRecord struct {
	First  int64
	Second string
	Third  bool `tars:"7"`
	Fourth int64
}

func TestAutoAssignedTags(t *testing.T) {
	def, err := SchemaOf[autoTagRecord]()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]uint8{"First": 0, "Second": 1, "Third": 7, "Fourth": 8}
	for name, tag := range want {
		f, ok := def.FieldByName(name)
		if !ok || f.Tag != tag {
			t.Errorf("field %s tag = %v (ok=%v), want %d", name, f, ok, tag)
		}
	}
}

type presenceRecord struct {
	Plain    int64   `tars:"0"`
	Opt      string  `tars:"1,optional"`
	Ptr      *int64  `tars:"2"`
	List     []int32 `tars:"3"`
	Explicit []byte  `tars:"4,required"`
}

func TestRequiredDerivation(t *testing.T) {
	// Required holds exactly when a field is neither optional nor
	// defaulted; nil-able shapes are optional unless marked required.
	def, err := SchemaOf[presenceRecord]()
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]struct{ optional, required bool }{
		"Plain":    {false, true},
		"Opt":      {true, false},
		"Ptr":      {true, false},
		"List":     {true, false},
		"Explicit": {false, true},
	}
	for name, w := range want {
		f, ok := def.FieldByName(name)
		if !ok {
			t.Fatalf("field %s missing", name)
		}
		if f.Optional != w.optional || f.Required != w.required {
			t.Errorf("%s: optional=%v required=%v, want optional=%v required=%v",
				name, f.Optional, f.Required, w.optional, w.required)
		}
	}

	// Defaulted builder fields are never required.
	bdef, err := CompileFields(nil, "b", []FieldDef{
		{Name: "A", Tag: 0, Type: LongExpr(), DefaultValue: int64(1)},
		{Name: "B", Tag: 1, Type: LongExpr(), DefaultFunc: func() any { return int64(2) }},
		{Name: "C", Tag: 2, Type: LongExpr()},
	}, Config{})
	if err != nil {
		t.Fatal(err)
	}
	for name, required := range map[string]bool{"A": false, "B": false, "C": true} {
		f, _ := bdef.FieldByName(name)
		if f.Required != required {
			t.Errorf("builder %s: required = %v, want %v", name, f.Required, required)
		}
	}
}

type skipFieldRecord struct {
	Keep    int64 `tars:"0"`
	Ignored string `tars:"-"`
	hidden  int64
}

func TestSkippedAndUnexportedFields(t *testing.T) {
	_ = skipFieldRecord{hidden: 1} // silence unused
	def, err := SchemaOf[skipFieldRecord]()
	if err != nil {
		t.Fatal(err)
	}
	if len(def.Fields) != 1 || def.Fields[0].Name != "Keep" {
		t.Errorf("Fields = %+v", def.Fields)
	}
}

func TestTypeExprDerivation(t *testing.T) {
	tests := []struct {
		typ  reflect.Type
		kind Kind
	}{
		{reflect.TypeOf(int8(0)), KindInt},
		{reflect.TypeOf(int16(0)), KindInt},
		{reflect.TypeOf(int32(0)), KindInt},
		{reflect.TypeOf(int64(0)), KindLong},
		{reflect.TypeOf(int(0)), KindLong},
		{reflect.TypeOf(false), KindBool},
		{reflect.TypeOf(float32(0)), KindFloat},
		{reflect.TypeOf(float64(0)), KindDouble},
		{reflect.TypeOf(""), KindString},
		{reflect.TypeOf([]byte(nil)), KindBytes},
		{reflect.TypeOf([]int32(nil)), KindList},
		{reflect.TypeOf([3]int64{}), KindTuple},
		{reflect.TypeOf(map[string]int64(nil)), KindMap},
		{reflect.TypeOf(map[int32]struct{}(nil)), KindSet},
		{reflect.TypeOf(Dict(nil)), KindDict},
		{reflect.TypeOf((*int64)(nil)), KindOptional},
		{reflect.TypeOf(struct{ X int }{}), KindStruct},
	}
	for _, tc := range tests {
		expr, err := typeExprOf(tc.typ)
		if err != nil {
			t.Errorf("typeExprOf(%v): %v", tc.typ, err)
			continue
		}
		if expr.Kind != tc.kind {
			t.Errorf("typeExprOf(%v).Kind = %v, want %v", tc.typ, expr.Kind, tc.kind)
		}
	}
}

func TestTypeExprAnyInterface(t *testing.T) {
	expr, err := typeExprOf(reflect.TypeOf((*any)(nil)).Elem())
	if err != nil || expr.Kind != KindAny {
		t.Errorf("any expr = (%v, %v)", expr, err)
	}
}

type enumColor int32

func TestTypeExprEnum(t *testing.T) {
	expr, err := typeExprOf(reflect.TypeOf(enumColor(0)))
	if err != nil {
		t.Fatal(err)
	}
	if expr.Kind != KindEnum || expr.Elem.Kind != KindInt {
		t.Errorf("enum expr = %v/%v", expr.Kind, expr.Elem.Kind)
	}
	if expr.Class != reflect.TypeOf(enumColor(0)) {
		t.Error("enum class identity mismatch")
	}
}

func TestOptionalCollapses(t *testing.T) {
	inner := OptionalExpr(LongExpr())
	outer := OptionalExpr(inner)
	if outer != inner {
		t.Error("Optional(Optional(x)) should collapse to Optional(x)")
	}
}

func TestUnionExprNormalization(t *testing.T) {
	// None is lifted, duplicates are removed.
	u := UnionExpr(LongExpr(), &TypeExpr{Kind: KindNone}, LongExpr(), StringExpr())
	if u.Kind != KindUnion {
		t.Fatalf("kind = %v", u.Kind)
	}
	if !u.AllowNil {
		t.Error("None variant should lift into AllowNil")
	}
	if len(u.Variants) != 2 {
		t.Errorf("variants = %d, want 2 (deduplicated)", len(u.Variants))
	}

	// A single surviving variant with nil collapses to Optional.
	o := UnionExpr(StringExpr(), &TypeExpr{Kind: KindNone})
	if o.Kind != KindOptional {
		t.Errorf("single-variant nil union = %v, want Optional", o.Kind)
	}
}

func TestCompileFieldsValidation(t *testing.T) {
	// Both default value and factory set.
	_, err := CompileFields(nil, "bad", []FieldDef{{
		Name: "A", Tag: 0, Type: LongExpr(),
		DefaultValue: int64(1), DefaultFunc: func() any { return int64(2) },
	}}, Config{})
	if err == nil {
		t.Error("conflicting defaults accepted")
	}

	// Required and defaulted.
	_, err = CompileFields(nil, "bad", []FieldDef{{
		Name: "A", Tag: 0, Type: LongExpr(), Required: true, DefaultValue: int64(1),
	}}, Config{})
	if err == nil {
		t.Error("required+default accepted")
	}

	// Missing type expression.
	_, err = CompileFields(nil, "bad", []FieldDef{{Name: "A", Tag: 0}}, Config{})
	if err == nil {
		t.Error("missing type expression accepted")
	}
}

type constraintTagRecord struct {
	Score int64  `tars:"0,ge=0,le=100"`
	Name  string `tars:"1,minlen=1,maxlen=8"`
	Code  string `tars:"2,optional,pattern=^[A-Z]+$"`
}

func TestConstraintTagParsing(t *testing.T) {
	def, err := SchemaOf[constraintTagRecord]()
	if err != nil {
		t.Fatal(err)
	}
	f, _ := def.FieldByName("Score")
	if f.Constraints == nil || *f.Constraints.Ge != 0 || *f.Constraints.Le != 100 {
		t.Errorf("Score constraints = %+v", f.Constraints)
	}
	f, _ = def.FieldByName("Name")
	if f.Constraints == nil || *f.Constraints.MinLen != 1 || *f.Constraints.MaxLen != 8 {
		t.Errorf("Name constraints = %+v", f.Constraints)
	}
	f, _ = def.FieldByName("Code")
	if f.Constraints == nil || f.Constraints.Pattern == nil {
		t.Fatalf("Code constraints = %+v", f.Constraints)
	}
	if !f.Constraints.Pattern.MatchString("ABC") || f.Constraints.Pattern.MatchString("abc") {
		t.Error("pattern compiled incorrectly")
	}
}
