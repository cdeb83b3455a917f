package rewrite

import (
	"errors"
	"testing"

	"github.com/npillmayer/rulegen"
	"github.com/npillmayer/rulegen/ast"
	"github.com/npillmayer/rulegen/schema"
	"github.com/npillmayer/schuko/gconf"
	"github.com/npillmayer/schuko/schukonf/testconfig"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func testTree() *ast.Tree {
	s := schema.New()
	s.Fixed("op_a", "x")
	s.Fixed("op_b", "x")
	s.Fixed("op_c", "x")
	s.Fixed("op_add", "lhs", "rhs")
	s.Fixed("op_var")
	s.Fixed("op_int_const")
	return ast.NewTree(s)
}

// swap rewrites op_a(x) to op_b(x) and op_b(x) to op_a(x).
func swap(ctx *Context, v ast.NodeID) (ast.NodeID, bool) {
	t := ctx.Tree
	var op string
	switch t.Op(v) {
	case "op_a":
		op = "op_b"
	case "op_b":
		op = "op_a"
	default:
		return v, false
	}
	ctx.Begin()
	x := t.Field(v, 0)
	r := ctx.Create(op, x)
	ctx.PropagateLocation(r, t.Location(v))
	ctx.Retire(v)
	return r, true
}

func TestFixpointCycle(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.rewrite")
	defer teardown()
	//
	tree := testTree()
	ctx := NewContext(tree)
	v := tree.New("op_a", tree.NewWithPayload("op_var", "z"))
	calls := 0
	d := DispatchFunc(func(ctx *Context, v ast.NodeID) (ast.NodeID, bool) {
		calls++
		return swap(ctx, v)
	})
	_, err := Fixpoint(ctx, d, v)
	if err == nil {
		t.Fatalf("expected a rewrite cycle to be detected")
	}
	if !errors.Is(err, ErrRewriteCycle) {
		t.Errorf("expected ErrRewriteCycle, got %v", err)
	}
	var cerr *CycleError
	if !errors.As(err, &cerr) || len(cerr.Ops) != MaxAttempts {
		t.Errorf("expected a CycleError after %d rewrites, got %v", MaxAttempts, err)
	}
	if calls != MaxAttempts {
		t.Errorf("expected cycle to fault on attempt %d, faulted on %d", MaxAttempts, calls)
	}
	if ctx.Stats.Changes != MaxAttempts {
		t.Errorf("expected %d changes, have %d", MaxAttempts, ctx.Stats.Changes)
	}
}

func TestFixpointCyclePanics(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.rewrite")
	defer teardown()
	gconf.Initialize(testconfig.Conf{"panic-on-rewrite-cycle": true})
	defer gconf.Initialize(testconfig.Conf{})
	//
	tree := testTree()
	ctx := NewContext(tree)
	v := tree.New("op_b", tree.NewWithPayload("op_var", "z"))
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrRewriteCycle) {
			t.Errorf("expected a panic with ErrRewriteCycle, got %v", r)
		}
	}()
	Fixpoint(ctx, DispatchFunc(swap), v)
	t.Errorf("rewrite cycle did not panic")
}

func TestFixpointSettles(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.rewrite")
	defer teardown()
	//
	tree := testTree()
	ctx := NewContext(tree)
	// op_a → op_b → op_c, which is stable
	chain := DispatchFunc(func(ctx *Context, v ast.NodeID) (ast.NodeID, bool) {
		t := ctx.Tree
		switch t.Op(v) {
		case "op_a":
			r := ctx.Create("op_b", t.Field(v, 0))
			ctx.Retire(v)
			return r, true
		case "op_b":
			r := ctx.Create("op_c", t.Field(v, 0))
			ctx.Retire(v)
			return r, true
		}
		return v, false
	})
	v := tree.New("op_a", tree.NewWithPayload("op_var", "z"))
	tree.SetLocation(v, rulegen.Location{File: "f.go", Line: 3})
	r, err := Fixpoint(ctx, chain, v)
	if err != nil {
		t.Fatal(err)
	}
	if tree.Op(r) != "op_c" {
		t.Errorf("expected op_c, have %s", tree.String(r))
	}
	if ctx.Stats.Retired != 2 {
		t.Errorf("expected 2 retired nodes, have %d", ctx.Stats.Retired)
	}
	// idempotence
	r2, changed := chain.Dispatch(ctx, r)
	if changed || r2 != r {
		t.Errorf("dispatching a stable node should report it unchanged")
	}
}

func TestRunPostOrder(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.rewrite")
	defer teardown()
	//
	tree := testTree()
	ctx := NewContext(tree)
	// op_add(x, op_int_const "0") → x
	zero := DispatchFunc(func(ctx *Context, v ast.NodeID) (ast.NodeID, bool) {
		t := ctx.Tree
		if t.Op(v) != "op_add" {
			return v, false
		}
		rhs := t.Field(v, 1)
		if t.Op(rhs) != "op_int_const" || t.Payload(rhs) != "0" {
			return v, false
		}
		ctx.Begin()
		x := t.Field(v, 0)
		ctx.Retire(rhs)
		ctx.PropagateLocation(x, t.Location(v))
		ctx.Retire(v)
		return x, true
	})
	z := func() ast.NodeID { return tree.NewWithPayload("op_int_const", "0") }
	inner := tree.New("op_add", tree.NewWithPayload("op_var", "a"), z())
	body := tree.New("op_add", inner, z())
	tree.SetLocation(body, rulegen.Location{File: "f.go", Line: 9})
	fn := &ast.Function{Name: "f", Body: body}
	if err := Run(ctx, zero, fn); err != nil {
		t.Fatal(err)
	}
	if s := tree.String(fn.Body); s != `(op_var "a")` {
		t.Errorf("expected body to collapse to variable a, have %s", s)
	}
	if tree.Location(fn.Body).Line != 9 {
		t.Errorf("expected location of outermost add, have %v", tree.Location(fn.Body))
	}
	if ctx.Stats.Retired != 4 {
		t.Errorf("expected 4 retired nodes, have %d", ctx.Stats.Retired)
	}
}

func TestRunCycleFails(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.rewrite")
	defer teardown()
	//
	tree := testTree()
	fn := &ast.Function{Name: "loop", Body: tree.New("op_a", tree.NewWithPayload("op_var", "z"))}
	err := Pass(DispatchFunc(swap))(NewContext(tree), fn)
	if !errors.Is(err, ErrRewriteCycle) {
		t.Errorf("expected pass to fail with a rewrite cycle, got %v", err)
	}
}

func TestTruthy(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.rewrite")
	defer teardown()
	//
	var nilptr *int
	falsy := []interface{}{nil, false, "", 0, int64(0), 0.0, []int{}, ast.Nil, nilptr, errors.New("x")}
	for _, x := range falsy {
		if Truthy(x) {
			t.Errorf("expected %#v to be falsy", x)
		}
	}
	truthy := []interface{}{true, "x", 1, uint8(2), 0.5, []int{1}, ast.NodeID(3), struct{}{}}
	for _, x := range truthy {
		if !Truthy(x) {
			t.Errorf("expected %#v to be truthy", x)
		}
	}
}
