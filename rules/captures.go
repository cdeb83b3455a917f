package rules

import (
	"fmt"
)

// Names bound while compiling a rule. Captures of the match side live in the
// outer scope, auxiliary bindings in an inner one.

// Kind is the kind of value a bound name refers to.
type Kind int8

// Kinds of bound names.
const (
	Undefined Kind = iota
	NodeKind       // a single node
	RangeKind      // a sequence of nodes
	ValueKind      // the value of an auxiliary binding
)

func (k Kind) String() string {
	switch k {
	case NodeKind:
		return "node"
	case RangeKind:
		return "range"
	case ValueKind:
		return "value"
	}
	return "undefined"
}

// Capture is a name bound by a rule, together with the register holding its
// value.
type Capture struct {
	Name      string
	Kind      Kind
	Reg       int
	Enclosing []string // named pattern expressions the capture is nested in
}

func newCapture(nm string) *Capture {
	return &Capture{Name: nm, Reg: -1}
}

func (c *Capture) withKind(k Kind) *Capture {
	c.Kind = k
	return c
}

func (c *Capture) String() string {
	return fmt.Sprintf("<%s %s @%d>", c.Kind, c.Name, c.Reg)
}

// --- Capture tables --------------------------------------------------------

// captureTable stores captures by name and remembers the order of definition.
type captureTable struct {
	table map[string]*Capture
	order []string
}

func newCaptureTable() *captureTable {
	return &captureTable{table: make(map[string]*Capture)}
}

func (t *captureTable) resolve(nm string) *Capture {
	return t.table[nm]
}

// resolveOrDefine finds a capture in the table or inserts a new one. It returns
// the capture and a flag signalling whether the capture has already been present.
func (t *captureTable) resolveOrDefine(nm string) (*Capture, bool) {
	if c := t.resolve(nm); c != nil {
		return c, true
	}
	c := newCapture(nm)
	t.table[nm] = c
	t.order = append(t.order, nm)
	return c, false
}

func (t *captureTable) size() int {
	return len(t.order)
}

// each iterates over the captures in order of definition.
func (t *captureTable) each(f func(*Capture)) {
	for _, nm := range t.order {
		f(t.table[nm])
	}
}

// --- Scopes ----------------------------------------------------------------

// scope is a named scope of bound names. Scopes link back to a parent scope.
type scope struct {
	name   string
	parent *scope
	tab    *captureTable
}

func newScope(nm string, parent *scope) *scope {
	return &scope{name: nm, parent: parent, tab: newCaptureTable()}
}

func (s *scope) String() string {
	return fmt.Sprintf("<scope %s>", s.name)
}

// resolve finds a name in s or in one of its ancestors.
func (s *scope) resolve(nm string) (*Capture, *scope) {
	for ; s != nil; s = s.parent {
		if c := s.tab.resolve(nm); c != nil {
			return c, s
		}
	}
	return nil, nil
}

// all returns the captures of s and its ancestors, outermost first.
func (s *scope) all() []*Capture {
	var caps []*Capture
	if s.parent != nil {
		caps = s.parent.all()
	}
	s.tab.each(func(c *Capture) {
		caps = append(caps, c)
	})
	return caps
}
