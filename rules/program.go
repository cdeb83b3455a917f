package rules

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/npillmayer/rulegen/pattern"
	"github.com/npillmayer/rulegen/schema"
)

// Program is a compiled rule file.
type Program struct {
	Name   string // name of the rule set, derived from the file name
	File   string
	Schema *schema.Schema
	Rules  []*pattern.Rule
	Groups []*Group // in order of first appearance of their operator
}

// Group holds the compiled rules for one root operator, in file order.
type Group struct {
	Op     string
	Blocks []*Block
}

// Block is a compiled rule.
type Block struct {
	Rule     *pattern.Rule
	Index    int   // position of the rule in the file
	Regs     []Reg // register 0 holds the matched node
	Steps    []Step
	Captures []*Capture // bound names, captures first
	Commit   *Commit
}

// Reg is a register of a block. Name is used as a variable name in generated
// code, Path describes how the register is reached from the matched node.
type Reg struct {
	Name string
	Path string
}

// Capture returns the bound name nm, or nil.
func (b *Block) Capture(nm string) *Capture {
	for _, c := range b.Captures {
		if c.Name == nm {
			return c
		}
	}
	return nil
}

// Name returns a name for the rule set of a rule file: the base name of the
// file without extension.
func Name(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Compile compiles rules against a schema. The rules should come from a
// single file, which is used to name the program. Compile stops at the first
// erroneous rule and returns an *Error.
func Compile(file string, rules []*pattern.Rule, s *schema.Schema) (*Program, error) {
	prog := &Program{Name: Name(file), File: file, Schema: s, Rules: rules}
	groups := linkedhashmap.New()
	for i, r := range rules {
		if r.File == "" {
			r.File = file
		}
		if err := r.Validate(); err != nil {
			return nil, invalidRule(r, err)
		}
		if !s.Has(r.Match.Op) {
			return nil, ruleError(r, "unknown operator %s", r.Match.Op)
		}
		block, err := compileRule(r, i, s)
		if err != nil {
			tracer().Errorf(err.Error())
			return nil, err
		}
		g, found := groups.Get(r.Match.Op)
		if !found {
			g = &Group{Op: r.Match.Op}
			groups.Put(r.Match.Op, g)
		}
		g.(*Group).Blocks = append(g.(*Group).Blocks, block)
	}
	for _, g := range groups.Values() {
		prog.Groups = append(prog.Groups, g.(*Group))
	}
	tracer().Infof("compiled %d rules for %d operators from %s", len(rules), len(prog.Groups), file)
	return prog, nil
}

// Group returns the group for operator op, or nil.
func (p *Program) Group(op string) *Group {
	for _, g := range p.Groups {
		if g.Op == op {
			return g
		}
	}
	return nil
}

// Size returns the number of compiled rules.
func (p *Program) Size() int {
	n := 0
	for _, g := range p.Groups {
		n += len(g.Blocks)
	}
	return n
}

// --- Steps -----------------------------------------------------------------

// Step is a matching step of a block. The set of steps is closed; clients
// switch over the concrete types.
type Step interface {
	fmt.Stringer
	isStep()
}

// LoadField loads fixed field Field of the node in register Src into Dst.
type LoadField struct {
	Dst, Src int
	Field    int
	Name     string // name of the field
}

// CheckPresent checks that the optional fixed field Field of the node in
// register Src is present.
type CheckPresent struct {
	Src   int
	Field int
	Name  string // name of the field
}

// LoadRangeElem loads element Index of the range of the node in register Src
// into Dst.
type LoadRangeElem struct {
	Dst, Src int
	Index    int
}

// Unwrap looks through value-preserving wrappers of the node in Src and loads
// the first node of operator Op into Dst, or Nil.
type Unwrap struct {
	Dst, Src int
	Op       string
}

// CheckOp checks that register Reg holds a node of operator Op.
type CheckOp struct {
	Reg int
	Op  string
}

// CheckRangeLen checks the number of range elements of the node in Reg: exactly
// N, or at least N if AtLeast is set.
type CheckRangeLen struct {
	Reg     int
	N       int
	AtLeast bool
}

// CheckPayload checks the payload of the node in Reg.
type CheckPayload struct {
	Reg     int
	Literal string
}

// Bind binds a capture name to the node in Reg.
type Bind struct {
	Name string
	Reg  int
}

// BindRange binds a capture name to the range elements of the node in Src,
// starting at From. The range is stored in register Dst.
type BindRange struct {
	Name     string
	Dst, Src int
	From     int
}

// CheckSame checks that the node in Reg is structurally equal to the node
// captured in Other before.
type CheckSame struct {
	Name       string
	Reg, Other int
}

// Guard evaluates the guard of a rule.
type Guard struct {
	Expr pattern.Opaque
}

// Let evaluates an auxiliary binding into register Dst. A checked binding
// fails if its value is not truthy.
type Let struct {
	Binding pattern.Binding
	Dst     int
}

func (LoadField) isStep()     {}
func (CheckPresent) isStep()  {}
func (LoadRangeElem) isStep() {}
func (Unwrap) isStep()        {}
func (CheckOp) isStep()       {}
func (CheckRangeLen) isStep() {}
func (CheckPayload) isStep()  {}
func (Bind) isStep()          {}
func (BindRange) isStep()     {}
func (CheckSame) isStep()     {}
func (Guard) isStep()         {}
func (Let) isStep()           {}

func (s LoadField) String() string {
	return fmt.Sprintf("r%d := field %d (%s) of r%d", s.Dst, s.Field, s.Name, s.Src)
}
func (s CheckPresent) String() string {
	return fmt.Sprintf("check field %d (%s) of r%d is present", s.Field, s.Name, s.Src)
}
func (s LoadRangeElem) String() string {
	return fmt.Sprintf("r%d := range[%d] of r%d", s.Dst, s.Index, s.Src)
}
func (s Unwrap) String() string {
	return fmt.Sprintf("r%d := unwrap r%d to %s", s.Dst, s.Src, s.Op)
}
func (s CheckOp) String() string {
	return fmt.Sprintf("check r%d is %s", s.Reg, s.Op)
}
func (s CheckRangeLen) String() string {
	rel := "=="
	if s.AtLeast {
		rel = ">="
	}
	return fmt.Sprintf("check len(range r%d) %s %d", s.Reg, rel, s.N)
}
func (s CheckPayload) String() string {
	return fmt.Sprintf("check payload of r%d is %q", s.Reg, s.Literal)
}
func (s Bind) String() string {
	return fmt.Sprintf("bind %s to r%d", s.Name, s.Reg)
}
func (s BindRange) String() string {
	return fmt.Sprintf("bind %s to r%d := range[%d:] of r%d", s.Name, s.Dst, s.From, s.Src)
}
func (s CheckSame) String() string {
	return fmt.Sprintf("check r%d same as %s (r%d)", s.Reg, s.Name, s.Other)
}
func (s Guard) String() string {
	return "guard " + s.Expr.String()
}
func (s Let) String() string {
	return fmt.Sprintf("%s into r%d", s.Binding, s.Dst)
}

// --- Commit ----------------------------------------------------------------

// Commit describes the rewrite of a matched node.
type Commit struct {
	InPlace bool   // update the matched node instead of allocating a new one
	Retire  []int  // registers to retire before building
	Build   *Build // the replacement
}

// Build describes the construction of a node of the replacement. It is either
// a reference to a capture or a node to create (or update, for the root of an
// in-place commit).
type Build struct {
	Capture    *Capture // capture reference
	Clone      bool     // clone the captured node(s) instead of re-using them
	Op         string
	Literal    *string
	PayloadRef *Capture // payload taken from a bound name
	Kids       []*Build
	Line       int
}

// IsCapture is true for capture references.
func (b *Build) IsCapture() bool {
	return b.Capture != nil
}

// IsSplice is true for references to range captures.
func (b *Build) IsSplice() bool {
	return b.Capture != nil && b.Capture.Kind == RangeKind
}

func (b *Build) String() string {
	if b.IsCapture() {
		s := b.Capture.Name
		if b.IsSplice() {
			s += "..."
		}
		if b.Clone {
			s = "clone(" + s + ")"
		}
		return s
	}
	var sb strings.Builder
	sb.WriteString(b.Op)
	if b.Literal != nil {
		sb.WriteString(fmt.Sprintf("[%q]", *b.Literal))
	} else if b.PayloadRef != nil {
		sb.WriteString("[" + b.PayloadRef.Name + "]")
	}
	if len(b.Kids) > 0 {
		sb.WriteByte('(')
		for i, k := range b.Kids {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(k.String())
		}
		sb.WriteByte(')')
	}
	return sb.String()
}
