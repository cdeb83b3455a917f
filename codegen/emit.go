package codegen

import (
	"fmt"
	"go/token"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/npillmayer/rulegen/rules"
	"github.com/pkg/errors"
	"golang.org/x/tools/imports"
)

// Import paths of the runtime packages generated code depends on.
const (
	astPackage     = "github.com/npillmayer/rulegen/ast"
	rewritePackage = "github.com/npillmayer/rulegen/rewrite"
)

// Options control code generation.
type Options struct {
	Package    string // package clause of the generated units; default derived from the program name
	FormatOnly bool   // do not add imports for packages referenced by guards and bindings
}

// Result holds the generated units for a program.
type Result struct {
	Name        string // name of the pass variable
	DeclName    string // suggested file name of the declaration unit
	ImplName    string // suggested file name of the implementation unit
	Decl, Impl  []byte
	Fingerprint string
}

// Generate emits Go source for a program. Output is deterministic for a given
// program and options.
func Generate(prog *rules.Program, opts Options) (*Result, error) {
	g := newGenerator(prog, opts)
	fp, err := Fingerprint(prog)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Name:        g.passVar,
		DeclName:    g.fileBase + "_rules.go",
		ImplName:    g.fileBase + "_rules_impl.go",
		Fingerprint: fp,
	}
	g.decl(fp)
	if res.Decl, err = g.format(res.DeclName); err != nil {
		return nil, err
	}
	g.p = NewPrinter(filepath.Base(prog.File))
	if err = g.impl(); err != nil {
		return nil, err
	}
	if res.Impl, err = g.format(res.ImplName); err != nil {
		return nil, err
	}
	tracer().Infof("generated %s for %d rules of %s", res.Name, prog.Size(), prog.File)
	return res, nil
}

type generator struct {
	prog     *rules.Program
	opts     Options
	p        *Printer
	source   string // base name of the rule file
	fileBase string // base name of generated files
	typeName string // pass type
	passVar  string // exported pass variable
	runFunc  string // function the pass variable is set to
}

func newGenerator(prog *rules.Program, opts Options) *generator {
	camel := camelCase(prog.Name)
	g := &generator{
		prog:     prog,
		opts:     opts,
		source:   filepath.Base(prog.File),
		fileBase: strings.ToLower(identifier(prog.Name, '_')),
		typeName: lowerFirst(camel) + "Rules",
		passVar:  "Run" + camel + "RulesPass",
		runFunc:  "run" + camel + "Rules",
	}
	if g.opts.Package == "" {
		g.opts.Package = strings.ToLower(identifier(prog.Name, 0))
	}
	g.p = NewPrinter(g.source)
	return g
}

func (g *generator) format(filename string) ([]byte, error) {
	src := g.p.Bytes()
	out, err := imports.Process(filename, src, &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: g.opts.FormatOnly,
	})
	if err != nil {
		tracer().Errorf("cannot format generated code:\n%s", src)
		return nil, errors.Wrapf(err, "formatting %s", filename)
	}
	return out, nil
}

func (g *generator) header() {
	g.p.Printf("// Code generated by rulegen from %s. DO NOT EDIT.", g.source)
}

// --- Declaration unit ------------------------------------------------------

func (g *generator) decl(fingerprint string) {
	p := g.p
	g.header()
	p.Printf("%s%s", fingerprintPrefix, fingerprint)
	p.Blank()
	p.Printf("package %s", g.opts.Package)
	p.Blank()
	p.Printf("import %q", rewritePackage)
	p.Blank()
	p.Printf("// %s applies the rules of %s to every node of a function, children", g.passVar, g.source)
	p.Printf("// before their parents, until no rule applies any more.")
	p.Printf("var %s rewrite.PassFunc = %s", g.passVar, g.runFunc)
}

// --- Implementation unit ---------------------------------------------------

func (g *generator) impl() error {
	p := g.p
	g.header()
	p.Blank()
	p.Printf("package %s", g.opts.Package)
	p.Blank()
	p.Printf("import (")
	p.In().Printf("%q", astPackage)
	p.Printf("%q", rewritePackage)
	p.Out().Printf(")")
	p.Blank()
	p.Printf("// %s is the rewrite pass for %s.", g.typeName, g.source)
	p.Printf("type %s struct{}", g.typeName)
	p.Blank()
	p.Printf("func %s(ctx *rewrite.Context, fn *ast.Function) error {", g.runFunc)
	p.In().Printf("return rewrite.Run(ctx, %s{}, fn)", g.typeName)
	p.Out().Printf("}")
	p.Blank()
	g.dispatch()
	for _, grp := range g.prog.Groups {
		g.group(grp)
	}
	for _, grp := range g.prog.Groups {
		for _, b := range grp.Blocks {
			if err := g.rule(b); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *generator) dispatch() {
	p := g.p
	p.Printf("// Dispatch implements rewrite.Dispatcher.")
	p.Printf("func (p %s) Dispatch(ctx *rewrite.Context, v ast.NodeID) (ast.NodeID, bool) {", g.typeName)
	p.In().Printf("switch ctx.Tree.Op(v) {")
	for _, grp := range g.prog.Groups {
		p.Printf("case %q:", grp.Op)
		p.In().Printf("return p.%s(ctx, v)", groupMethod(grp.Op))
		p.Out()
	}
	p.Printf("}")
	p.Printf("return v, false")
	p.Out().Printf("}")
	p.Blank()
}

func (g *generator) group(grp *rules.Group) {
	p := g.p
	p.Printf("// %s tries the rules for %s, in order.", groupMethod(grp.Op), grp.Op)
	p.Printf("func (p %s) %s(ctx *rewrite.Context, v ast.NodeID) (ast.NodeID, bool) {", g.typeName, groupMethod(grp.Op))
	p.In()
	for _, b := range grp.Blocks {
		p.WriteLine(fmt.Sprintf("if r, ok := p.%s(ctx, v); ok {", ruleMethod(b)), b.Rule.Line)
		p.In().Printf("return r, true")
		p.Out().Printf("}")
	}
	p.Printf("return v, false")
	p.Out().Printf("}")
	p.Blank()
}

// rule emits the method for a compiled rule. Every failing check returns the
// matched node unchanged.
func (g *generator) rule(b *rules.Block) error {
	p := g.p
	p.Comment(fmt.Sprintf("%s implements the rule at %s:%d\n\n    %s",
		ruleMethod(b), g.source, b.Rule.Line, b.Rule.Match.Text()))
	p.Comment(fmt.Sprintf("    -> %s", b.Rule.Rewrite.Text()))
	if b.Rule.Guard != nil {
		p.Comment("    where " + b.Rule.Guard.String())
	}
	for _, l := range b.Rule.Lets {
		p.Comment("    " + l.String())
	}
	p.WriteLine(fmt.Sprintf("func (p %s) %s(ctx *rewrite.Context, v_ ast.NodeID) (ast.NodeID, bool) {",
		g.typeName, ruleMethod(b)), b.Rule.Line)
	p.In().Printf("t := ctx.Tree")
	used := usedRegs(b)
	reg := func(i int) string { return b.Regs[i].Name }
	fail := func(cond string, line int) {
		p.WriteLine("if "+cond+" {", line)
		p.In().Printf("return v_, false")
		p.Out().Printf("}")
	}
	load := func(dst int, expr string) {
		p.Printf("%s := %s", reg(dst), expr)
		if !used[dst] {
			p.Printf("_ = %s", reg(dst))
		}
	}
	for _, step := range b.Steps {
		switch s := step.(type) {
		case rules.LoadField:
			load(s.Dst, fmt.Sprintf("t.Field(%s, %d)", reg(s.Src), s.Field))
		case rules.CheckPresent:
			fail(fmt.Sprintf("!t.Has(%s, %d)", reg(s.Src), s.Field), 0)
		case rules.LoadRangeElem:
			load(s.Dst, fmt.Sprintf("t.RangeAt(%s, %d)", reg(s.Src), s.Index))
		case rules.Unwrap:
			load(s.Dst, fmt.Sprintf("t.Unwrap(%s, %q)", reg(s.Src), s.Op))
		case rules.CheckOp:
			fail(fmt.Sprintf("!t.Is(%s, %q)", reg(s.Reg), s.Op), 0)
		case rules.CheckRangeLen:
			rel := "!="
			if s.AtLeast {
				rel = "<"
			}
			fail(fmt.Sprintf("t.RangeLen(%s) %s %d", reg(s.Reg), rel, s.N), 0)
		case rules.CheckPayload:
			fail(fmt.Sprintf("t.Payload(%s) != %q", reg(s.Reg), s.Literal), 0)
		case rules.Bind:
			p.Printf("%s := %s", varName(s.Name), reg(s.Reg))
			p.Printf("_ = %s", varName(s.Name))
		case rules.BindRange:
			p.Printf("%s := t.Range(%s)[%d:]", varName(s.Name), reg(s.Src), s.From)
			p.Printf("_ = %s", varName(s.Name))
		case rules.CheckSame:
			fail(fmt.Sprintf("!t.Same(%s, %s)", reg(s.Reg), reg(s.Other)), 0)
		case rules.Guard:
			fail(fmt.Sprintf("!rewrite.Truthy(%s)", s.Expr.Substitute(varName)), s.Expr.Line)
		case rules.Let:
			nm := varName(s.Binding.Name)
			p.WriteLine(fmt.Sprintf("%s := %s", nm, s.Binding.Expr.Substitute(varName)), s.Binding.Line)
			if s.Binding.Checked {
				fail(fmt.Sprintf("!rewrite.Truthy(%s)", nm), 0)
			} else {
				p.Printf("_ = %s", nm)
			}
		default:
			return fmt.Errorf("%s:%d: cannot generate code for step %s", g.source, b.Rule.Line, step)
		}
	}
	g.commit(b)
	p.Out().Printf("}")
	p.Blank()
	return nil
}

func (g *generator) commit(b *rules.Block) {
	p, c := g.p, b.Commit
	p.WriteLine("loc := t.Location(v_)", b.Rule.Line)
	p.Printf("ctx.Begin()")
	for _, r := range c.Retire {
		p.Printf("ctx.Retire(%s)", b.Regs[r].Name)
	}
	if c.InPlace {
		if len(c.Build.Kids) > 0 {
			p.Printf("ctx.Update(v_, %s)", g.kids(c.Build.Kids))
		}
		if payload := g.payload(c.Build); payload != "" {
			p.Printf("t.SetPayload(v_, %s)", payload)
		}
		p.Printf("ctx.PropagateLocation(v_, loc)")
		p.Printf("return v_, true")
		return
	}
	p.Printf("r_ := %s", g.build(c.Build))
	p.Printf("ctx.PropagateLocation(r_, loc)")
	p.Printf("return r_, true")
}

// build returns an expression constructing b.
func (g *generator) build(b *rules.Build) string {
	if b.IsCapture() {
		nm := varName(b.Capture.Name)
		switch {
		case b.Clone && b.IsSplice():
			return "ctx.CloneRange(" + nm + ")"
		case b.Clone:
			return "ctx.Clone(" + nm + ")"
		}
		return nm
	}
	var args []string
	args = append(args, strconv.Quote(b.Op))
	create := "ctx.Create"
	if payload := g.payload(b); payload != "" {
		create = "ctx.CreateWithPayload"
		args = append(args, payload)
	}
	if len(b.Kids) > 0 {
		args = append(args, g.kids(b.Kids))
	}
	return create + "(" + strings.Join(args, ", ") + ")"
}

// kids returns the argument list for the children of a node. Spliced ranges
// are appended to a slice, which is passed as the variadic argument.
func (g *generator) kids(kids []*rules.Build) string {
	splices := false
	for _, k := range kids {
		splices = splices || k.IsSplice()
	}
	if !splices {
		var args []string
		for _, k := range kids {
			args = append(args, g.build(k))
		}
		return strings.Join(args, ", ")
	}
	acc := "[]ast.NodeID{}"
	var run []string
	flush := func() {
		if len(run) > 0 {
			acc = "append(" + acc + ", " + strings.Join(run, ", ") + ")"
			run = nil
		}
	}
	for _, k := range kids {
		if k.IsSplice() {
			flush()
			acc = "append(" + acc + ", " + g.build(k) + "...)"
		} else {
			run = append(run, g.build(k))
		}
	}
	flush()
	return acc + "..."
}

// payload returns an expression for the payload of a node to build, or "".
func (g *generator) payload(b *rules.Build) string {
	switch {
	case b.Literal != nil:
		return strconv.Quote(*b.Literal)
	case b.PayloadRef == nil:
		return ""
	case b.PayloadRef.Kind == rules.ValueKind:
		return "rewrite.Text(" + varName(b.PayloadRef.Name) + ")"
	}
	return "ctx.PayloadOf(" + varName(b.PayloadRef.Name) + ")"
}

// usedRegs finds the registers which are read by a step or by the commit.
func usedRegs(b *rules.Block) map[int]bool {
	used := map[int]bool{0: true}
	for _, step := range b.Steps {
		switch s := step.(type) {
		case rules.LoadField:
			used[s.Src] = true
		case rules.CheckPresent:
			used[s.Src] = true
		case rules.LoadRangeElem:
			used[s.Src] = true
		case rules.Unwrap:
			used[s.Src] = true
		case rules.CheckOp:
			used[s.Reg] = true
		case rules.CheckRangeLen:
			used[s.Reg] = true
		case rules.CheckPayload:
			used[s.Reg] = true
		case rules.Bind:
			used[s.Reg] = true
		case rules.BindRange:
			used[s.Src] = true
		case rules.CheckSame:
			used[s.Reg] = true
			used[s.Other] = true
		}
	}
	for _, r := range b.Commit.Retire {
		used[r] = true
	}
	return used
}

// --- Names -----------------------------------------------------------------

// reserved holds the names generated code uses for its own variables and
// imported packages.
var reserved = map[string]bool{
	"t": true, "ctx": true, "p": true, "loc": true, "ast": true, "rewrite": true,
}

// varName maps a bound name of a rule to a Go variable name.
func varName(name string) string {
	if token.IsKeyword(name) || reserved[name] {
		return "cap_" + name
	}
	return name
}

func ruleMethod(b *rules.Block) string {
	return "rule" + strconv.Itoa(b.Index)
}

func groupMethod(op string) string {
	return "on" + camelCase(op)
}

// identifier replaces every character of s which may not appear in a Go
// identifier by sep (or drops it, if sep is 0).
func identifier(s string, sep rune) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}
		if sep == 0 {
			return -1
		}
		return sep
	}, s)
}

// camelCase converts "op_int_const" to "OpIntConst".
func camelCase(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 || unicode.IsDigit([]rune(b.String())[0]) {
		return "R" + b.String()
	}
	return b.String()
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
