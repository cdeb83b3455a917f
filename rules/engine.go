package rules

import (
	"fmt"
	"strings"

	"github.com/npillmayer/rulegen/ast"
	"github.com/npillmayer/rulegen/pattern"
	"github.com/npillmayer/rulegen/rewrite"
)

// Func is the compiled form of an opaque guard or binding expression.
type Func func(b *Bindings) interface{}

// Evaluator compiles opaque expressions for the engine.
type Evaluator interface {
	Compile(expr pattern.Opaque) (Func, error)
}

// Funcs is an Evaluator which looks up expressions by their text.
type Funcs map[string]Func

// Compile returns the function registered for the text of expr.
func (fs Funcs) Compile(expr pattern.Opaque) (Func, error) {
	if f, ok := fs[strings.TrimSpace(expr.Text)]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("no function for expression %s", expr)
}

// Bindings gives compiled expressions access to the names a rule has bound.
type Bindings struct {
	Tree  *ast.Tree
	block *Block
	frame *frame
}

// Node returns the node bound to a capture name, or ast.Nil.
func (b *Bindings) Node(name string) ast.NodeID {
	if c := b.block.Capture(name); c != nil && c.Kind == NodeKind {
		return b.frame.nodes[c.Reg]
	}
	return ast.Nil
}

// Range returns the nodes bound to a range capture.
func (b *Bindings) Range(name string) []ast.NodeID {
	if c := b.block.Capture(name); c != nil && c.Kind == RangeKind {
		return b.frame.ranges[c.Reg]
	}
	return nil
}

// Value returns the value of an auxiliary binding.
func (b *Bindings) Value(name string) interface{} {
	if c := b.block.Capture(name); c != nil && c.Kind == ValueKind {
		return b.frame.values[c.Reg]
	}
	return nil
}

// Payload returns the payload of the node bound to a capture name, or "".
func (b *Bindings) Payload(name string) string {
	if v := b.Node(name); v != ast.Nil {
		return b.Tree.Payload(v)
	}
	return ""
}

// frame holds the registers of a rule attempt.
type frame struct {
	nodes  []ast.NodeID
	ranges [][]ast.NodeID
	values []interface{}
}

func (f *frame) reset(n int) {
	if cap(f.nodes) < n {
		f.nodes = make([]ast.NodeID, n)
		f.ranges = make([][]ast.NodeID, n)
		f.values = make([]interface{}, n)
		return
	}
	f.nodes, f.ranges, f.values = f.nodes[:n], f.ranges[:n], f.values[:n]
	for i := 0; i < n; i++ {
		f.nodes[i], f.ranges[i], f.values[i] = ast.Nil, nil, nil
	}
}

// --- Engine ----------------------------------------------------------------

// Engine executes a compiled program. It implements rewrite.Dispatcher.
// An engine is not safe for concurrent use.
type Engine struct {
	prog           *Program
	groups         map[string]*Group
	funcs          map[*Block][]Func // guard and bindings, in step order
	skipped        map[*Block]bool
	skipUnresolved bool
	hits           []int
	frame          frame
}

// Option configures an engine.
type Option func(*Engine)

// SkipUnresolved lets an engine ignore rules with guards or bindings the
// evaluator cannot compile, instead of failing.
func SkipUnresolved() Option {
	return func(e *Engine) {
		e.skipUnresolved = true
	}
}

// NewEngine prepares a program for execution. Every guard and binding is
// compiled with ev, which may be nil for programs without them.
func NewEngine(prog *Program, ev Evaluator, opts ...Option) (*Engine, error) {
	e := &Engine{
		prog:    prog,
		groups:  make(map[string]*Group, len(prog.Groups)),
		funcs:   make(map[*Block][]Func),
		skipped: make(map[*Block]bool),
		hits:    make([]int, len(prog.Rules)),
	}
	for _, opt := range opts {
		opt(e)
	}
	for _, g := range prog.Groups {
		e.groups[g.Op] = g
		for _, b := range g.Blocks {
			if err := e.prepare(b, ev); err != nil {
				if !e.skipUnresolved {
					return nil, err
				}
				tracer().Infof("skipping rule at line %d: %v", b.Rule.Line, err)
				e.skipped[b] = true
			}
		}
	}
	return e, nil
}

func (e *Engine) prepare(b *Block, ev Evaluator) error {
	for _, s := range b.Steps {
		var expr pattern.Opaque
		switch s := s.(type) {
		case Guard:
			expr = s.Expr
		case Let:
			expr = s.Binding.Expr
		default:
			continue
		}
		if ev == nil {
			return ruleError(b.Rule, "no evaluator for expression %s", expr)
		}
		f, err := ev.Compile(expr)
		if err != nil {
			return ruleError(b.Rule, "%v", err)
		}
		e.funcs[b] = append(e.funcs[b], f)
	}
	return nil
}

// Program returns the program the engine executes.
func (e *Engine) Program() *Program {
	return e.prog
}

// Hits returns how often the rule at position i of the rule file has been
// applied.
func (e *Engine) Hits(i int) int {
	return e.hits[i]
}

// Skipped is a predicate: has the rule at position i been skipped because of
// an unresolved expression?
func (e *Engine) Skipped(i int) bool {
	for b := range e.skipped {
		if b.Index == i {
			return true
		}
	}
	return false
}

// Pass returns a pass function applying the engine to a function body.
func (e *Engine) Pass() rewrite.PassFunc {
	return rewrite.Pass(e)
}

// Dispatch attempts the rules for the operator of v, in file order. The first
// rule which matches is committed.
func (e *Engine) Dispatch(ctx *rewrite.Context, v ast.NodeID) (ast.NodeID, bool) {
	g, ok := e.groups[ctx.Tree.Op(v)]
	if !ok {
		return v, false
	}
	for _, b := range g.Blocks {
		if e.skipped[b] {
			continue
		}
		if r, ok := e.attempt(ctx, b, v); ok {
			e.hits[b.Index]++
			return r, true
		}
	}
	return v, false
}

// Apply attempts a single rule on v.
func (e *Engine) Apply(ctx *rewrite.Context, b *Block, v ast.NodeID) (ast.NodeID, bool) {
	if e.skipped[b] || ctx.Tree.Op(v) != b.Rule.Match.Op {
		return v, false
	}
	return e.attempt(ctx, b, v)
}

func (e *Engine) attempt(ctx *rewrite.Context, b *Block, v ast.NodeID) (ast.NodeID, bool) {
	f := &e.frame
	f.reset(len(b.Regs))
	f.nodes[0] = v
	if !e.match(ctx.Tree, b, f) {
		return v, false
	}
	tracer().Debugf("rule at line %d matches %s", b.Rule.Line, ctx.Tree.String(v))
	return e.commit(ctx, b, f, v), true
}

func (e *Engine) match(t *ast.Tree, b *Block, f *frame) bool {
	funcs := e.funcs[b]
	bindings := &Bindings{Tree: t, block: b, frame: f}
	for _, step := range b.Steps {
		switch s := step.(type) {
		case LoadField:
			f.nodes[s.Dst] = t.Field(f.nodes[s.Src], s.Field)
		case CheckPresent:
			if !t.Has(f.nodes[s.Src], s.Field) {
				return false
			}
		case LoadRangeElem:
			f.nodes[s.Dst] = t.RangeAt(f.nodes[s.Src], s.Index)
		case Unwrap:
			f.nodes[s.Dst] = t.Unwrap(f.nodes[s.Src], s.Op)
		case CheckOp:
			if !t.Is(f.nodes[s.Reg], s.Op) {
				return false
			}
		case CheckRangeLen:
			n := t.RangeLen(f.nodes[s.Reg])
			if n < s.N || (!s.AtLeast && n != s.N) {
				return false
			}
		case CheckPayload:
			if t.Payload(f.nodes[s.Reg]) != s.Literal {
				return false
			}
		case Bind:
		case BindRange:
			f.ranges[s.Dst] = t.Range(f.nodes[s.Src])[s.From:]
		case CheckSame:
			if !t.Same(f.nodes[s.Reg], f.nodes[s.Other]) {
				return false
			}
		case Guard:
			if !rewrite.Truthy(funcs[0](bindings)) {
				return false
			}
			funcs = funcs[1:]
		case Let:
			val := funcs[0](bindings)
			funcs = funcs[1:]
			if s.Binding.Checked && !rewrite.Truthy(val) {
				return false
			}
			f.values[s.Dst] = val
		default:
			panic(fmt.Sprintf("unknown matching step %T", step))
		}
	}
	return true
}

func (e *Engine) commit(ctx *rewrite.Context, b *Block, f *frame, v ast.NodeID) ast.NodeID {
	t := ctx.Tree
	loc := t.Location(v)
	c := b.Commit
	ctx.Begin()
	for _, reg := range c.Retire {
		ctx.Retire(f.nodes[reg])
	}
	var r ast.NodeID
	if c.InPlace {
		if len(c.Build.Kids) > 0 {
			ctx.Update(v, e.buildKids(ctx, c.Build, f)...)
		}
		if p := e.payload(ctx, c.Build, f); p != nil {
			t.SetPayload(v, *p)
		}
		r = v
	} else {
		r = e.build(ctx, c.Build, f)[0]
	}
	ctx.PropagateLocation(r, loc)
	return r
}

// build constructs the replacement described by b. References to range
// captures result in any number of nodes, all other builds in one node.
func (e *Engine) build(ctx *rewrite.Context, b *Build, f *frame) []ast.NodeID {
	if b.IsSplice() {
		rng := f.ranges[b.Capture.Reg]
		if b.Clone {
			return ctx.CloneRange(rng)
		}
		return rng
	}
	if b.IsCapture() {
		v := f.nodes[b.Capture.Reg]
		if b.Clone {
			v = ctx.Clone(v)
		}
		return []ast.NodeID{v}
	}
	kids := e.buildKids(ctx, b, f)
	payload := ""
	if p := e.payload(ctx, b, f); p != nil {
		payload = *p
	}
	return []ast.NodeID{ctx.CreateWithPayload(b.Op, payload, kids...)}
}

func (e *Engine) buildKids(ctx *rewrite.Context, b *Build, f *frame) []ast.NodeID {
	kids := make([]ast.NodeID, 0, len(b.Kids))
	for _, k := range b.Kids {
		kids = append(kids, e.build(ctx, k, f)...)
	}
	return kids
}

func (e *Engine) payload(ctx *rewrite.Context, b *Build, f *frame) *string {
	if b.Literal != nil {
		return b.Literal
	}
	if b.PayloadRef == nil {
		return nil
	}
	var p string
	if b.PayloadRef.Kind == ValueKind {
		p = rewrite.Text(f.values[b.PayloadRef.Reg])
	} else {
		p = ctx.PayloadOf(f.nodes[b.PayloadRef.Reg])
	}
	return &p
}
