package rules

import (
	"strconv"
	"strings"

	"github.com/npillmayer/rulegen/pattern"
	"github.com/npillmayer/rulegen/schema"
)

// compiler holds the state of compiling a single rule. It is discarded after
// the rule.
type compiler struct {
	rule     *pattern.Rule
	schema   *schema.Schema
	block    *Block
	captures *scope // captures of the match side
	lets     *scope // auxiliary bindings
	retire   []retirement
}

// retirement is a candidate for the retirement set of a rule.
type retirement struct {
	reg       int
	enclosing []string
}

func compileRule(r *pattern.Rule, index int, s *schema.Schema) (*Block, error) {
	c := &compiler{
		rule:   r,
		schema: s,
		block:  &Block{Rule: r, Index: index},
	}
	c.captures = newScope("captures", nil)
	c.lets = newScope("lets", c.captures)
	root := c.newReg("v_", "v")
	if err := c.match(r.Match, root, root, nil); err != nil {
		return nil, err
	}
	if r.Guard != nil && !r.Guard.IsEmpty() {
		c.emit(Guard{Expr: *r.Guard})
	}
	for _, l := range r.Lets {
		if strings.HasSuffix(l.Name, "_") {
			return nil, ruleError(r, "binding name %s may not end in '_'", l.Name)
		}
		cpt, found := c.lets.tab.resolveOrDefine(l.Name)
		if found {
			return nil, ruleError(r, "binding %s defined twice", l.Name)
		}
		cpt.withKind(ValueKind).Reg = c.newReg(l.Name, "let "+l.Name)
		c.emit(Let{Binding: l, Dst: cpt.Reg})
	}
	c.block.Captures = c.lets.all()
	commit, err := c.compileCommit()
	if err != nil {
		return nil, err
	}
	c.block.Commit = commit
	tracer().Debugf("rule %d (line %d): %s", index, r.Line, r)
	return c.block, nil
}

func (c *compiler) newReg(name, path string) int {
	c.block.Regs = append(c.block.Regs, Reg{Name: name, Path: path})
	return len(c.block.Regs) - 1
}

func (c *compiler) emit(s Step) {
	c.block.Steps = append(c.block.Steps, s)
}

func (c *compiler) errorf(e *pattern.Expr, format string, args ...interface{}) *Error {
	err := ruleError(c.rule, format, args...)
	if e != nil && e.Line > 0 {
		err.Line = e.Line
	}
	return err
}

// childName derives the register name for child i of the node in register
// parent: "v_" → "v0_", "v0_" → "v02_".
func childName(parent string, i int) string {
	return strings.TrimSuffix(parent, "_") + strconv.Itoa(i) + "_"
}

// match compiles the pattern expression e for the node in register reg. raw is
// the register the node has been loaded into before unwrapping (or reg, if it
// has not been unwrapped). enclosing lists the named expressions e is nested in.
func (c *compiler) match(e *pattern.Expr, reg, raw int, enclosing []string) error {
	if e.IsWildcard() {
		switch {
		case e.IsDiscard():
			c.retire = append(c.retire, retirement{reg: raw, enclosing: enclosing})
		case e.IsCapture():
			return c.bind(e, reg, enclosing)
		}
		return nil
	}
	info, err := c.schema.Get(e.Op)
	if err != nil {
		return c.errorf(e, "unknown operator %s", e.Op)
	}
	if reg != 0 {
		c.emit(CheckOp{Reg: reg, Op: e.Op})
	}
	if e.PayloadRef != "" {
		return c.errorf(e, "payload of %s cannot reference %s in a pattern", e.Op, e.PayloadRef)
	}
	if e.Literal != nil {
		c.emit(CheckPayload{Reg: reg, Literal: *e.Literal})
	}
	switch {
	case e.IsCapture():
		if err := c.bind(e, reg, enclosing); err != nil {
			return err
		}
		enclosing = append(append([]string{}, enclosing...), e.Name)
	case e.IsDiscard() || c.schema.IsReclaimable(e.Op):
		c.retire = append(c.retire, retirement{reg: raw, enclosing: enclosing})
	}
	return c.matchMembers(e, info, reg, enclosing)
}

// bind binds a capture name to a register, or checks the register against the
// earlier binding of the same name.
func (c *compiler) bind(e *pattern.Expr, reg int, enclosing []string) error {
	if strings.HasSuffix(e.Name, "_") {
		return c.errorf(e, "capture name %s may not end in '_'", e.Name)
	}
	cpt, found := c.captures.tab.resolveOrDefine(e.Name)
	if !found {
		cpt.withKind(NodeKind).Reg = reg
		cpt.Enclosing = append([]string{}, enclosing...)
		c.emit(Bind{Name: e.Name, Reg: reg})
		return nil
	}
	if cpt.Kind != NodeKind {
		return c.errorf(e, "%s is bound to a range and cannot be repeated", e.Name)
	}
	c.emit(CheckSame{Name: e.Name, Reg: reg, Other: cpt.Reg})
	return nil
}

// matchMembers compiles the members of e. A pattern without members does not
// constrain the children of a node.
func (c *compiler) matchMembers(e *pattern.Expr, info *schema.OpInfo, reg int, enclosing []string) error {
	n := len(e.Members)
	if n == 0 {
		return nil
	}
	if !info.HasChildren() {
		return c.errorf(e, "%s does not have children", e.Op)
	}
	individually := n // members [0, individually) are matched one by one
	var rest Step      // binds the rest of a range
	if !info.IsVariadic() {
		if e.HasSpread() {
			return c.errorf(e, "spread marker in %s, which has no variadic range", e.Op)
		}
		if n != info.Arity() {
			return c.errorf(e, "%s expects %d children, pattern has %d", e.Op, info.Arity(), n)
		}
	} else {
		if n < info.Arity() {
			return c.errorf(e, "%s expects at least %d children, pattern has %d", e.Op, info.Arity(), n)
		}
		k := n - info.Arity() // members mapped into the range
		if e.HasSpread() {
			if e.Spread != n-1 {
				return c.errorf(e, "spread marker must be on the last member of %s", e.Op)
			}
			if e.Spread < info.RangeStart() {
				return c.errorf(e, "spread marker on fixed field %s of %s",
					info.Fields[e.Spread].Name, e.Op)
			}
			last := e.Members[n-1]
			switch {
			case last.IsWildcard() && last.IsCapture():
				cpt, found := c.captures.tab.resolveOrDefine(last.Name)
				if found {
					return c.errorf(e, "range %s cannot be repeated", last.Name)
				}
				cpt.withKind(RangeKind).Reg = c.newReg("r"+last.Name+"_", c.path(reg)+"["+strconv.Itoa(k-1)+":]")
				cpt.Enclosing = append([]string{}, enclosing...)
				c.emit(CheckRangeLen{Reg: reg, N: k - 1, AtLeast: true})
				individually = n - 1
				rest = BindRange{Name: last.Name, Dst: cpt.Reg, Src: reg, From: k - 1}
			case last.IsWildcard():
				c.emit(CheckRangeLen{Reg: reg, N: k - 1, AtLeast: true})
				individually = n - 1
			default:
				c.emit(CheckRangeLen{Reg: reg, N: k, AtLeast: true})
			}
		} else {
			if k < info.Range.Min {
				return c.errorf(e, "%s needs at least %d elements in %s, pattern has %d",
					e.Op, info.Range.Min, info.Range.Name, k)
			}
			c.emit(CheckRangeLen{Reg: reg, N: k})
		}
	}
	for i := 0; i < individually; i++ {
		m := e.Members[i]
		if m.IsWildcard() && !m.IsCapture() && !m.IsDiscard() {
			continue
		}
		f, offset, _ := info.Arg(i)
		child := c.newReg(childName(c.block.Regs[reg].Name, i), c.path(reg)+"."+f.Name)
		if offset < 0 {
			if f.Optional {
				c.emit(CheckPresent{Src: reg, Field: i, Name: f.Name})
			}
			c.emit(LoadField{Dst: child, Src: reg, Field: i, Name: f.Name})
		} else {
			c.block.Regs[child].Path = c.path(reg) + "." + f.Name + "[" + strconv.Itoa(offset) + "]"
			c.emit(LoadRangeElem{Dst: child, Src: reg, Index: offset})
		}
		raw := child
		if !m.IsWildcard() && c.unwraps(m.Op) {
			child = c.newReg(strings.TrimSuffix(c.block.Regs[raw].Name, "_")+"u_", c.path(raw)+"↓")
			c.emit(Unwrap{Dst: child, Src: raw, Op: m.Op})
		}
		if err := c.match(m, child, raw, enclosing); err != nil {
			return err
		}
	}
	if rest != nil {
		c.emit(rest)
	}
	return nil
}

// unwraps is true if matching op looks through wrapper nodes.
func (c *compiler) unwraps(op string) bool {
	if len(c.schema.Wrappers) == 0 {
		return false
	}
	_, ok := c.schema.LiteralRole(op)
	return ok
}

func (c *compiler) path(reg int) string {
	return c.block.Regs[reg].Path
}
