package rules

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/npillmayer/rulegen"
	"github.com/npillmayer/rulegen/ast"
	"github.com/npillmayer/rulegen/pattern"
	"github.com/npillmayer/rulegen/rewrite"
	"github.com/npillmayer/rulegen/schema"
	"github.com/npillmayer/schuko/tracing/gotestingadapter"
)

func testSchema() *schema.Schema {
	s := schema.New()
	s.Fixed("op_add", "lhs", "rhs")
	s.Fixed("op_f", "a", "b")
	s.Fixed("op_neg", "expr")
	s.Fixed("op_not", "expr")
	s.Fixed("op_var")
	s.Fixed("op_int_const")
	s.Fixed("op_string")
	s.Fixed("op_conv_int", "expr")
	s.Variadic("op_func_call", "args", 0)
	s.Variadic("op_seq", "stmts", 0)
	s.Variadic("op_block", "stmts", 0)
	s.Variadic("op_index", "keys", 1, "array")
	s.Define("op_if", []schema.Field{{Name: "cond"}, {Name: "then"}, {Name: "else", Optional: true}}, nil)
	return s
}

// helpers to build patterns

func n(op string, members ...*pattern.Expr) *pattern.Expr { return pattern.Node(op, members...) }
func w(name string) *pattern.Expr { return pattern.Wildcard(name) }
func lit(op, payload string) *pattern.Expr { return pattern.Node(op).WithLiteral(payload) }

func rule(line int, match, rewrite *pattern.Expr) *pattern.Rule {
	return pattern.NewRule(match.At(line), rewrite.At(line), "")
}

func compile(t *testing.T, rs ...*pattern.Rule) *Program {
	t.Helper()
	prog, err := Compile("test.rules", rs, testSchema())
	if err != nil {
		t.Fatal(err)
	}
	return prog
}

func engine(t *testing.T, rs ...*pattern.Rule) *Engine {
	t.Helper()
	e, err := NewEngine(compile(t, rs...), nil)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func newContext() *rewrite.Context {
	return rewrite.NewContext(ast.NewTree(testSchema()))
}

func variable(ctx *rewrite.Context, name string) ast.NodeID {
	return ctx.Tree.NewWithPayload("op_var", name)
}

// --- Tests -----------------------------------------------------------------

func TestGroupsInOrderOfAppearance(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.rules")
	defer teardown()
	//
	prog := compile(t,
		rule(1, n("op_neg", n("op_neg", w("x"))), w("x")),
		rule(2, n("op_add", w("x"), lit("op_int_const", "0")), w("x")),
		rule(3, n("op_neg", lit("op_int_const", "0")), lit("op_int_const", "0")),
	)
	var ops []string
	for _, g := range prog.Groups {
		ops = append(ops, g.Op)
	}
	if diff := cmp.Diff([]string{"op_neg", "op_add"}, ops); diff != "" {
		t.Errorf("group order mismatch (-want +got):\n%s", diff)
	}
	neg := prog.Group("op_neg")
	if len(neg.Blocks) != 2 || neg.Blocks[0].Rule.Line != 1 || neg.Blocks[1].Rule.Line != 3 {
		t.Errorf("rules of op_neg not in file order")
	}
	if prog.Size() != 3 || prog.Name != "test" {
		t.Errorf("unexpected program %s of size %d", prog.Name, prog.Size())
	}
}

func TestInPlaceEligibility(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.rules")
	defer teardown()
	//
	prog := compile(t,
		rule(1, n("op_add", w("x"), w("y")), n("op_add", w("y"), w("x"))),
		rule(2, lit("op_int_const", "1"), lit("op_int_const", "one")),
		rule(3, n("op_f", w("x"), w("y")), n("op_add", w("x"), w("y"))),
		rule(4, n("op_func_call", w("x")), n("op_func_call", w("x"), w("x"))),
	)
	add := prog.Group("op_add").Blocks[0].Commit
	if !add.InPlace {
		t.Errorf("swapping operands of op_add should be done in place")
	}
	k := prog.Group("op_int_const").Blocks[0].Commit
	if !k.InPlace {
		t.Errorf("op_int_const → op_int_const should be done in place")
	}
	for _, reg := range k.Retire {
		if reg == 0 {
			t.Errorf("in-place root must not be retired")
		}
	}
	if prog.Group("op_f").Blocks[0].Commit.InPlace {
		t.Errorf("different root operators require a new node")
	}
	call := prog.Group("op_func_call").Blocks[0].Commit
	if call.InPlace {
		t.Errorf("variadic root operators require a new node")
	}
	if diff := cmp.Diff([]int{0}, call.Retire); diff != "" {
		t.Errorf("unnamed reclaimable root should be retired (-want +got):\n%s", diff)
	}
	//
	ctx := newContext()
	e, err := NewEngine(prog, nil)
	if err != nil {
		t.Fatal(err)
	}
	a, b := variable(ctx, "a"), variable(ctx, "b")
	v := ctx.Tree.New("op_add", a, b)
	r, changed := e.Dispatch(ctx, v)
	if !changed || r != v {
		t.Fatalf("expected op_add to be updated in place")
	}
	if ctx.Tree.Field(v, 0) != b || ctx.Tree.Field(v, 1) != a {
		t.Errorf("operands not swapped: %s", ctx.Tree.String(v))
	}
}

func TestVariadicExactCount(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.rules")
	defer teardown()
	//
	three := rule(1, n("op_seq", w("a"), w("b"), w("c")), w("a"))
	four := rule(2, n("op_seq", w("a"), w("b"), w("c"), w("d")), w("a"))
	e := engine(t, three, four)
	ctx := newContext()
	seq := ctx.Tree.New("op_seq", variable(ctx, "x"), variable(ctx, "y"), variable(ctx, "z"))
	b3 := e.Program().Group("op_seq").Blocks[0]
	b4 := e.Program().Group("op_seq").Blocks[1]
	if _, ok := e.Apply(ctx, b4, seq); ok {
		t.Errorf("pattern with 4 elements should not match a range of length 3")
	}
	r, ok := e.Apply(ctx, b3, seq)
	if !ok {
		t.Fatalf("pattern with 3 elements should match a range of length 3")
	}
	if ctx.Tree.Payload(r) != "x" {
		t.Errorf("expected first element, have %s", ctx.Tree.String(r))
	}
}

func TestFullRangeSpread(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.rules")
	defer teardown()
	//
	var seen []int
	ev := Funcs{
		"len(xs) >= 0": func(b *Bindings) interface{} {
			seen = append(seen, len(b.Range("xs")))
			return true
		},
	}
	r := pattern.NewRule(
		n("op_seq", w("xs")).SpreadLast().At(1),
		n("op_block", w("xs")).SpreadLast().At(1),
		"len(xs) >= 0")
	e, err := NewEngine(compile(t, r), ev)
	if err != nil {
		t.Fatal(err)
	}
	for _, length := range []int{0, 1, 5} {
		ctx := newContext()
		kids := make([]ast.NodeID, length)
		for i := range kids {
			kids[i] = variable(ctx, strconv.Itoa(i))
		}
		seq := ctx.Tree.New("op_seq", kids...)
		res, changed := e.Dispatch(ctx, seq)
		if !changed {
			t.Fatalf("spread should match range of length %d", length)
		}
		if ctx.Tree.Op(res) != "op_block" || ctx.Tree.RangeLen(res) != length {
			t.Errorf("expected op_block with %d elements, have %s", length, ctx.Tree.String(res))
		}
		if diff := cmp.Diff(kids, ctx.Tree.Range(res)); diff != "" {
			t.Errorf("range elements should be re-used (-want +got):\n%s", diff)
		}
	}
	if diff := cmp.Diff([]int{0, 1, 5}, seen); diff != "" {
		t.Errorf("bound range lengths mismatch (-want +got):\n%s", diff)
	}
}

func TestSpreadVariants(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.rules")
	defer teardown()
	//
	prefix := rule(1, n("op_seq", w("a"), w("")).SpreadLast(), w("a"))
	typed := rule(2, n("op_block", w("a"), n("op_var").Named("v")).SpreadLast(), w("v"))
	rest := rule(3, n("op_func_call", w("a"), w("xs")).SpreadLast(), n("op_seq", w("xs"), w("a")))
	e := engine(t, prefix, typed, rest)
	ctx := newContext()
	tree := ctx.Tree
	//
	if _, ok := e.Dispatch(ctx, tree.New("op_seq")); ok {
		t.Errorf("a, ... should not match an empty range")
	}
	if r, ok := e.Dispatch(ctx, tree.New("op_seq", variable(ctx, "p"), variable(ctx, "q"))); !ok || tree.Payload(r) != "p" {
		t.Errorf("a, ... should match any range with at least one element")
	}
	if _, ok := e.Dispatch(ctx, tree.New("op_block", variable(ctx, "p"))); ok {
		t.Errorf("typed spread member requires an element of its own")
	}
	blk := tree.New("op_block", variable(ctx, "p"), variable(ctx, "q"), tree.NewWithPayload("op_int_const", "1"))
	if r, ok := e.Dispatch(ctx, blk); !ok || tree.Payload(r) != "q" {
		t.Errorf("typed spread member should match the second element")
	}
	call := tree.New("op_func_call", variable(ctx, "p"), variable(ctx, "q"), variable(ctx, "r"))
	r, ok := e.Dispatch(ctx, call)
	if !ok {
		t.Fatalf("a, xs... should match a call with arguments")
	}
	if s := tree.String(r); s != `(op_seq (op_var "q") (op_var "r") (op_var "p"))` {
		t.Errorf("unexpected rewrite: %s", s)
	}
}

func TestRepeatedVariable(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.rules")
	defer teardown()
	//
	e := engine(t, rule(1, n("op_f", w("x"), w("x")), w("x")))
	ctx := newContext()
	same := ctx.Tree.New("op_f", variable(ctx, "a"), variable(ctx, "a"))
	r, changed := e.Dispatch(ctx, same)
	if !changed || ctx.Tree.Payload(r) != "a" {
		t.Errorf("f(x, x) should match f(a, a)")
	}
	different := ctx.Tree.New("op_f", variable(ctx, "a"), variable(ctx, "b"))
	r, changed = e.Dispatch(ctx, different)
	if changed || r != different {
		t.Errorf("f(x, x) should not match f(a, b)")
	}
}

func TestAbsentOptionalField(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.rules")
	defer teardown()
	//
	prog := compile(t, rule(1, n("op_if", w("c"), w("a"), w("e")), n("op_if", w("c"), w("e"), w("a"))))
	checks := 0
	for _, step := range prog.Group("op_if").Blocks[0].Steps {
		if s, ok := step.(CheckPresent); ok {
			checks++
			if s.Field != 2 || s.Name != "else" {
				t.Errorf("presence check for the wrong field: %s", s)
			}
		}
	}
	if checks != 1 {
		t.Errorf("expected 1 presence check, have %d", checks)
	}
	e, err := NewEngine(prog, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := newContext()
	absent := ctx.Tree.New("op_if", variable(ctx, "c"), variable(ctx, "t"), ast.Nil)
	r, changed := e.Dispatch(ctx, absent)
	if changed || r != absent {
		t.Errorf("rule should not match op_if without else, have %s", ctx.Tree.String(r))
	}
	present := ctx.Tree.New("op_if", variable(ctx, "c"), variable(ctx, "t"), variable(ctx, "f"))
	r, changed = e.Dispatch(ctx, present)
	if !changed {
		t.Fatalf("rule should match op_if with else")
	}
	if s := ctx.Tree.String(r); s != `(op_if (op_var "c") (op_var "f") (op_var "t"))` {
		t.Errorf("unexpected rewrite: %s", s)
	}
}

func TestLiteralPayload(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.rules")
	defer teardown()
	//
	e := engine(t, rule(1, lit("op_var", "foo"), lit("op_int_const", "1")))
	ctx := newContext()
	if r, changed := e.Dispatch(ctx, variable(ctx, "foo")); !changed || ctx.Tree.Op(r) != "op_int_const" {
		t.Errorf("payload foo should match")
	}
	bar := variable(ctx, "bar")
	if r, changed := e.Dispatch(ctx, bar); changed || r != bar {
		t.Errorf("payload bar should fall through")
	}
}

func TestAdditiveIdentity(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.rules")
	defer teardown()
	//
	r := rule(7, n("op_add", w("x"), lit("op_int_const", "0")), w("x"))
	e := engine(t, r)
	block := e.Program().Group("op_add").Blocks[0]
	if len(block.Commit.Retire) != 1 || block.Regs[block.Commit.Retire[0]].Path != "v.rhs" {
		t.Errorf("expected the constant to be in the retirement set, have %v", block.Commit.Retire)
	}
	ctx := newContext()
	tree := ctx.Tree
	a := variable(ctx, "a")
	zero := tree.NewWithPayload("op_int_const", "0")
	add := tree.New("op_add", a, zero)
	loc := rulegen.Location{File: "main.go", Line: 42, Col: 3}
	tree.SetLocation(add, loc)
	fn := &ast.Function{Name: "main", Body: add}
	if err := rewrite.Run(ctx, e, fn); err != nil {
		t.Fatal(err)
	}
	if fn.Body != a {
		t.Errorf("expected the variable itself as result, have %s", tree.String(fn.Body))
	}
	if tree.Location(fn.Body) != loc {
		t.Errorf("expected location %s, have %s", loc, tree.Location(fn.Body))
	}
	if !tree.IsRetired(zero) {
		t.Errorf("constant 0 should have been retired")
	}
	if e.Hits(0) != 1 {
		t.Errorf("expected rule to be applied once, was %d", e.Hits(0))
	}
	// idempotence
	for i := 0; i < 2; i++ {
		v, changed := e.Dispatch(ctx, fn.Body)
		if changed || v != a {
			t.Errorf("stable node reported as changed")
		}
	}
}

func TestCloneOnSecondReference(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.rules")
	defer teardown()
	//
	twice := rule(1, n("op_neg", w("x")), n("op_add", w("x"), w("x")))
	nested := rule(2, n("op_not", n("op_neg", w("x")).Named("e")), n("op_add", w("e"), w("x")))
	e := engine(t, twice, nested)
	b := e.Program().Group("op_neg").Blocks[0].Commit.Build
	if b.Kids[0].Clone || !b.Kids[1].Clone {
		t.Errorf("expected first reference re-used and second cloned: %s", b)
	}
	b = e.Program().Group("op_not").Blocks[0].Commit.Build
	if b.Kids[0].Clone || !b.Kids[1].Clone {
		t.Errorf("capture nested in a re-used capture must be cloned: %s", b)
	}
	//
	ctx := newContext()
	tree := ctx.Tree
	x := variable(ctx, "a")
	tree.SetLocation(x, rulegen.Location{Line: 1})
	neg := tree.New("op_neg", x)
	tree.SetLocation(neg, rulegen.Location{Line: 2})
	r, _ := e.Dispatch(ctx, neg)
	lhs, rhs := tree.Field(r, 0), tree.Field(r, 1)
	if lhs != x || rhs == x || !tree.Same(lhs, rhs) {
		t.Errorf("expected x and a clone of x, have #%d and #%d", lhs, rhs)
	}
	if tree.Location(r).Line != 2 || tree.Location(lhs).Line != 1 || tree.Location(rhs).Line != 1 {
		t.Errorf("captured nodes and clones must keep their locations")
	}
}

func TestFreshNodesGetLocation(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.rules")
	defer teardown()
	//
	e := engine(t, rule(1, n("op_not", w("x")), n("op_add", n("op_neg", w("x")), lit("op_int_const", "1"))))
	ctx := newContext()
	tree := ctx.Tree
	x := variable(ctx, "a")
	tree.SetLocation(x, rulegen.Location{Line: 1})
	not := tree.New("op_not", x)
	tree.SetLocation(not, rulegen.Location{Line: 5})
	r, _ := e.Dispatch(ctx, not)
	for _, v := range []ast.NodeID{r, tree.Field(r, 0), tree.Field(r, 1)} {
		if tree.Location(v).Line != 5 {
			t.Errorf("fresh node %s should have location of matched node", tree.String(v))
		}
	}
	if tree.Location(x).Line != 1 {
		t.Errorf("re-used capture should keep its location")
	}
}

func TestGuardAndBindings(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.rules")
	defer teardown()
	//
	r := pattern.NewRule(
		n("op_func_call", n("op_string").Named("s")).WithLiteral("strlen").At(3),
		n("op_int_const").WithPayloadRef("n").At(3),
		"len(s) > 0",
		pattern.Binding{Name: "n", Expr: pattern.NewOpaque("lenOf(s)", 4)},
		pattern.Binding{Name: "ok", Expr: pattern.NewOpaque("ascii(s)", 5), Checked: true},
	)
	ev := Funcs{
		"len(s) > 0": func(b *Bindings) interface{} { return len(b.Payload("s")) > 0 },
		"lenOf(s)":   func(b *Bindings) interface{} { return len(b.Payload("s")) },
		"ascii(s)":   func(b *Bindings) interface{} { return !strings.ContainsRune(b.Payload("s"), 'ä') },
	}
	prog := compile(t, r)
	e, err := NewEngine(prog, ev)
	if err != nil {
		t.Fatal(err)
	}
	ctx := newContext()
	tree := ctx.Tree
	call := func(arg string) ast.NodeID {
		return tree.NewWithPayload("op_func_call", "strlen", tree.NewWithPayload("op_string", arg))
	}
	res, changed := e.Dispatch(ctx, call("hello"))
	if !changed || tree.String(res) != `(op_int_const "5")` {
		t.Errorf("expected strlen to be folded, have %s", tree.String(res))
	}
	if ctx.Stats.Retired != 1 {
		t.Errorf("unnamed call node should be retired, %d nodes retired", ctx.Stats.Retired)
	}
	if _, changed := e.Dispatch(ctx, call("")); changed {
		t.Errorf("guard should reject empty strings")
	}
	if _, changed := e.Dispatch(ctx, call("bär")); changed {
		t.Errorf("checked binding should reject non-ascii strings")
	}
	//
	if _, err := NewEngine(prog, Funcs{}); err == nil {
		t.Errorf("expected unresolved guard to be reported")
	}
	e, err = NewEngine(prog, Funcs{}, SkipUnresolved())
	if err != nil {
		t.Fatal(err)
	}
	if !e.Skipped(0) {
		t.Errorf("expected rule to be skipped")
	}
	if _, changed := e.Dispatch(ctx, call("hello")); changed {
		t.Errorf("skipped rule should not apply")
	}
}

func TestUnwrapLiteral(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.rules")
	defer teardown()
	//
	s := testSchema()
	s.Wrappers["op_conv_int"] = "expr"
	r := rule(1, n("op_neg", lit("op_int_const", "0")), lit("op_int_const", "0"))
	prog, err := Compile("wrap.rules", []*pattern.Rule{r}, s)
	if err != nil {
		t.Fatal(err)
	}
	e, _ := NewEngine(prog, nil)
	ctx := rewrite.NewContext(ast.NewTree(s))
	tree := ctx.Tree
	wrapped := tree.New("op_conv_int", tree.NewWithPayload("op_int_const", "0"))
	neg := tree.New("op_neg", wrapped)
	res, changed := e.Dispatch(ctx, neg)
	if !changed || tree.String(res) != `(op_int_const "0")` {
		t.Errorf("expected -conv(0) to be folded, have %s", tree.String(res))
	}
	if ctx.Stats.Retired != 1 || tree.ReuseCount() != 1 {
		t.Errorf("expected the wrapper of the constant to be retired and re-used")
	}
}

func TestRewriteCycle(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.rules")
	defer teardown()
	//
	e := engine(t,
		rule(1, n("op_neg", w("x")), n("op_not", w("x"))),
		rule(2, n("op_not", w("x")), n("op_neg", w("x"))),
	)
	ctx := newContext()
	fn := &ast.Function{Name: "f", Body: ctx.Tree.New("op_neg", variable(ctx, "a"))}
	err := e.Pass()(ctx, fn)
	if !errors.Is(err, rewrite.ErrRewriteCycle) {
		t.Fatalf("expected rewrite cycle, got %v", err)
	}
	if e.Hits(0)+e.Hits(1) != rewrite.MaxAttempts {
		t.Errorf("expected %d rewrites before faulting, have %d", rewrite.MaxAttempts, e.Hits(0)+e.Hits(1))
	}
}

func TestCompileErrors(t *testing.T) {
	teardown := gotestingadapter.QuickConfig(t, "rulegen.rules")
	defer teardown()
	//
	cases := []struct {
		rule *pattern.Rule
		msg  string
	}{
		{rule(11, n("op_unknown", w("x")), w("x")), "unknown operator"},
		{rule(12, n("op_add", n("op_nope"), w("x")), w("x")), "unknown operator op_nope"},
		{rule(13, n("op_add", w("x"), w("y")).SpreadLast(), w("x")), "no variadic range"},
		{rule(14, n("op_add", w("x")), w("x")), "expects 2 children"},
		{rule(15, n("op_index", w("x")), w("x")), "at least 1 elements"},
		{rule(16, n("op_index", w("x"), w("y")).SpreadLast(), w("x")), ""},
		{rule(17, n("op_seq", n("op_seq", w("xs")).SpreadLast(), w("xs")).SpreadLast(), w("xs")), "cannot be repeated"},
		{rule(18, n("op_neg", w("x")), n("op_add", w("x"))), "expects 2 children, replacement"},
		{rule(19, n("op_seq", w("xs")).SpreadLast(), n("op_neg", w("xs")).SpreadLast()), "cannot be spliced"},
		{rule(20, n("op_seq", w("xs")).SpreadLast(), w("xs")), "cannot be the range"},
		{rule(21, n("op_neg", w("x")), w("y")), "unbound capture"},
		{rule(22, n("op_neg", n("op_int_const").WithPayloadRef("c")), w("c")), "cannot reference c"},
		{pattern.NewRule(n("op_neg", w("x")).At(23), w("x").At(23), "",
			pattern.Binding{Name: "x", Expr: pattern.NewOpaque("1", 0)}), "binding x shadows"},
	}
	for _, c := range cases {
		_, err := Compile("bad.rules", []*pattern.Rule{c.rule}, testSchema())
		if c.msg == "" {
			if err != nil {
				t.Errorf("line %d: unexpected error %v", c.rule.Line, err)
			}
			continue
		}
		var rerr *Error
		if !errors.As(err, &rerr) {
			t.Errorf("line %d: expected *Error, have %v", c.rule.Line, err)
			continue
		}
		if rerr.Line != c.rule.Line || rerr.File != "bad.rules" {
			t.Errorf("expected error at bad.rules:%d, have %s", c.rule.Line, rerr)
		}
		if !strings.Contains(rerr.Msg, c.msg) {
			t.Errorf("line %d: expected %q in error, have %q", c.rule.Line, c.msg, rerr.Msg)
		}
		if strings.HasPrefix(rerr.Msg, "line ") {
			t.Errorf("line %d: message repeats the position: %q", c.rule.Line, rerr.Msg)
		}
	}
}
