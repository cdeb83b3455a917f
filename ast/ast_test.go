package ast

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/npillmayer/rulegen"
	"github.com/npillmayer/rulegen/schema"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func testSchema() *schema.Schema {
	s := schema.New()
	s.Fixed("op_add", "lhs", "rhs")
	s.Fixed("op_neg", "expr")
	s.Fixed("op_var")
	s.Fixed("op_int_const")
	s.Fixed("op_string")
	s.Fixed("op_conv_int", "expr")
	s.Define("op_if", []schema.Field{{Name: "cond"}, {Name: "then"}, {Name: "else", Optional: true}}, nil)
	s.Variadic("op_func_call", "args", 0, "target")
	s.Wrappers["op_conv_int"] = "expr"
	return s
}

func TestMakeAndRender(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.ast")
	defer teardown()
	//
	tree := NewTree(testSchema())
	a := tree.NewWithPayload("op_var", "a")
	zero := tree.NewWithPayload("op_int_const", "0")
	add := tree.New("op_add", a, zero)
	if s := tree.String(add); s != `(op_add (op_var "a") (op_int_const "0"))` {
		t.Errorf("unexpected rendering: %s", s)
	}
	if _, err := tree.Make("op_add", "", []NodeID{a}); err == nil {
		t.Errorf("expected arity error for op_add with 1 child")
	}
	if _, err := tree.Make("op_if", "", []NodeID{a, Nil, Nil}); err == nil {
		t.Errorf("expected error for absent non-optional field")
	}
	cond := tree.New("op_if", tree.Clone(a), tree.Clone(zero), Nil)
	if !strings.HasSuffix(tree.String(cond), " nil)") {
		t.Errorf("absent optional field should render as nil: %s", tree.String(cond))
	}
	call := tree.New("op_func_call", tree.NewWithPayload("op_var", "f"), tree.Clone(a), tree.Clone(a))
	if tree.RangeLen(call) != 2 || tree.Field(call, 0) == Nil {
		t.Errorf("op_func_call children not distributed: %s", tree.String(call))
	}
}

func TestRetireAndReuse(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.ast")
	defer teardown()
	//
	tree := NewTree(testSchema())
	a := tree.NewWithPayload("op_var", "a")
	b := tree.NewWithPayload("op_var", "b")
	size := tree.Size()
	tree.Retire(b)
	if !tree.IsRetired(b) || tree.FreeCount() != 1 || tree.Size() != size-1 {
		t.Fatalf("retirement not recorded")
	}
	c := tree.NewWithPayload("op_int_const", "1")
	if c != b {
		t.Errorf("expected slot #%d to be re-used, got #%d", b, c)
	}
	if tree.ReuseCount() != 1 || tree.FreeCount() != 0 {
		t.Errorf("re-use not counted")
	}
	if tree.Payload(c) != "1" || tree.Payload(a) != "a" {
		t.Errorf("re-used node carries stale data")
	}
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic on access to retired node")
		}
	}()
	tree.Retire(c)
	tree.Op(c)
}

func TestCloneAndSame(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.ast")
	defer teardown()
	//
	tree := NewTree(testSchema())
	add := tree.New("op_add", tree.NewWithPayload("op_var", "a"), tree.NewWithPayload("op_int_const", "0"))
	tree.SetLocationRecursively(add, rulegen.Location{File: "x.go", Line: 7})
	clone := tree.Clone(add)
	if clone == add {
		t.Fatalf("clone must be a fresh node")
	}
	if !tree.Same(add, clone) {
		t.Errorf("clone should be structurally equal to original")
	}
	if tree.Field(clone, 0) == tree.Field(add, 0) {
		t.Errorf("clone must be deep")
	}
	if tree.Location(tree.Field(clone, 1)).Line != 7 {
		t.Errorf("clone should keep locations")
	}
	tree.SetPayload(tree.Field(clone, 0), "b")
	if tree.Same(add, clone) {
		t.Errorf("payload difference not detected")
	}
	if tree.Same(add, Nil) {
		t.Errorf("node compared equal to Nil")
	}
}

func TestPostOrder(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.ast")
	defer teardown()
	//
	tree := NewTree(testSchema())
	v := func(p string) NodeID { return tree.NewWithPayload("op_var", p) }
	root := tree.New("op_add", tree.New("op_add", v("4"), v("5")), tree.New("op_neg", v("6")))
	var order []string
	r, err := tree.PostOrder(root, func(n NodeID) (NodeID, error) {
		if p := tree.Payload(n); p != "" {
			order = append(order, p)
		} else {
			order = append(order, tree.Op(n))
		}
		if tree.Op(n) == "op_neg" { // replace neg(x) by x
			return tree.Field(n, 0), nil
		}
		return n, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{"4", "5", "op_add", "6", "op_neg", "op_add"}
	if diff := cmp.Diff(expected, order); diff != "" {
		t.Errorf("visiting order mismatch (-want +got):\n%s", diff)
	}
	if r != root {
		t.Errorf("root should not have been replaced")
	}
	if s := tree.String(root); s != `(op_add (op_add (op_var "4") (op_var "5")) (op_var "6"))` {
		t.Errorf("child replacement not performed: %s", s)
	}
	pre := tree.PreOrder(root)
	if len(pre) != 5 || pre[0] != root {
		t.Errorf("unexpected pre-order: %v", pre)
	}
}

func TestUnwrap(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.ast")
	defer teardown()
	//
	tree := NewTree(testSchema())
	lit := tree.NewWithPayload("op_int_const", "42")
	conv := tree.New("op_conv_int", tree.New("op_conv_int", lit))
	if tree.Unwrap(conv, "op_int_const") != lit {
		t.Errorf("expected to unwrap to the literal")
	}
	if n, ok := tree.IntValue(conv); !ok || n != 42 {
		t.Errorf("expected int value 42, have %d (%v)", n, ok)
	}
	if _, ok := tree.StringValue(conv); ok {
		t.Errorf("int literal should not unwrap as string")
	}
	neg := tree.New("op_neg", tree.Clone(lit))
	if tree.Unwrap(neg, "op_int_const") != Nil {
		t.Errorf("op_neg is not a wrapper")
	}
}

func TestLiteralValues(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.ast")
	defer teardown()
	//
	s := testSchema()
	s.Fixed("op_float_const")
	s.Fixed("op_true")
	s.Fixed("op_false")
	s.Variadic("op_array", "elems", 0)
	tree := NewTree(s)
	pi := tree.New("op_conv_int", tree.NewWithPayload("op_float_const", "3.5"))
	if f, ok := tree.FloatValue(pi); !ok || f != 3.5 {
		t.Errorf("expected float value 3.5, have %g (%v)", f, ok)
	}
	if _, ok := tree.IntValue(pi); ok {
		t.Errorf("float literal should not unwrap as int")
	}
	if b, ok := tree.BoolValue(tree.New("op_true")); !ok || !b {
		t.Errorf("expected op_true to be boolean true")
	}
	if b, ok := tree.BoolValue(tree.New("op_conv_int", tree.New("op_false"))); !ok || b {
		t.Errorf("expected wrapped op_false to be boolean false")
	}
	if _, ok := tree.BoolValue(pi); ok {
		t.Errorf("float literal should not be boolean")
	}
	one, two := tree.NewWithPayload("op_int_const", "1"), tree.NewWithPayload("op_int_const", "2")
	arr := tree.New("op_array", one, two)
	elems, ok := tree.ArrayValue(arr)
	if !ok {
		t.Fatalf("expected op_array to be an array literal")
	}
	if diff := cmp.Diff([]NodeID{one, two}, elems); diff != "" {
		t.Errorf("array elements mismatch (-want +got):\n%s", diff)
	}
	if _, ok := tree.ArrayValue(one); ok {
		t.Errorf("int literal should not be an array")
	}
}
