package pattern

import (
	"fmt"
	"strconv"
	"strings"
)

// Any is the operator of wildcard expressions.
const Any = "ANY"

// Discard is the reserved capture name matching anything without retaining it.
const Discard = "_"

// NoSpread marks expressions without a spread marker.
const NoSpread = -1

// Expr is a pattern expression. It is used for both the match side and the
// rewrite side of a rule.
type Expr struct {
	Op         string  // node kind or Any
	Name       string  // optional capture name, Discard for "_"
	Members    []*Expr // ordered children
	Literal    *string // literal payload, if any
	PayloadRef string  // rewrite side: payload taken from a bound name
	Spread     int     // index of the member carrying the spread marker, or NoSpread
	Line       int     // source line of the expression
	Source     string  // source text of the expression, if known
}

// Wildcard creates an expression matching any node. name may be empty,
// Discard or a capture name.
func Wildcard(name string) *Expr {
	return &Expr{Op: Any, Name: name, Spread: NoSpread}
}

// Node creates a typed expression.
func Node(op string, members ...*Expr) *Expr {
	return &Expr{Op: op, Members: members, Spread: NoSpread}
}

// Named sets the capture name of an expression and returns it (for chaining).
func (e *Expr) Named(name string) *Expr {
	e.Name = name
	return e
}

// WithLiteral sets the literal payload of an expression and returns it.
func (e *Expr) WithLiteral(lit string) *Expr {
	e.Literal = &lit
	return e
}

// WithPayloadRef makes the payload of a rewrite expression come from a bound
// name and returns the expression.
func (e *Expr) WithPayloadRef(name string) *Expr {
	e.PayloadRef = name
	return e
}

// SpreadLast marks the last member as carrying the spread marker and returns
// the expression.
func (e *Expr) SpreadLast() *Expr {
	e.Spread = len(e.Members) - 1
	return e
}

// At sets the source line of an expression and returns it.
func (e *Expr) At(line int) *Expr {
	e.Line = line
	return e
}

// IsWildcard is a predicate: is e an ANY pattern?
func (e *Expr) IsWildcard() bool {
	return e.Op == Any
}

// IsDiscard is a predicate: is e named "_"?
func (e *Expr) IsDiscard() bool {
	return e.Name == Discard
}

// IsCapture is true for expressions which bind a name.
func (e *Expr) IsCapture() bool {
	return e.Name != "" && e.Name != Discard
}

// HasSpread is a predicate: does one of e's members carry the spread marker?
func (e *Expr) HasSpread() bool {
	return e.Spread != NoSpread
}

// HasPayload is true if e specifies a payload, either literal or by reference.
func (e *Expr) HasPayload() bool {
	return e.Literal != nil || e.PayloadRef != ""
}

// ValidationError reports a rule or expression which violates a structural
// invariant. Line is 0 if the offending part carries no position.
type ValidationError struct {
	Line int
	Msg  string
}

func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

func invalid(line int, format string, args ...interface{}) error {
	return &ValidationError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Validate checks the structural invariants of an expression tree:
// wildcards have neither members nor payloads, and a spread marker indexes an
// existing member.
func (e *Expr) Validate() error {
	if e.Op == "" {
		return invalid(e.Line, "expression without operator")
	}
	if e.IsWildcard() {
		if len(e.Members) > 0 {
			return invalid(e.Line, "wildcard %q cannot have members", e.Name)
		}
		if e.HasPayload() {
			return invalid(e.Line, "wildcard %q cannot have a payload", e.Name)
		}
	}
	if e.Literal != nil && e.PayloadRef != "" {
		return invalid(e.Line, "%s has both a literal and a referenced payload", e.Op)
	}
	if e.Spread != NoSpread && (e.Spread < 0 || e.Spread >= len(e.Members)) {
		return invalid(e.Line, "spread marker out of range for %s", e.Op)
	}
	for _, m := range e.Members {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Walk calls f for e and all of its sub-expressions, pre-order. If f returns
// false, the members of the current expression are skipped.
func (e *Expr) Walk(f func(x *Expr) bool) {
	if !f(e) {
		return
	}
	for _, m := range e.Members {
		m.Walk(f)
	}
}

// Captures returns the capture names of an expression tree in order of first
// appearance.
func (e *Expr) Captures() []string {
	var names []string
	seen := make(map[string]bool)
	e.Walk(func(x *Expr) bool {
		if x.IsCapture() && !seen[x.Name] {
			seen[x.Name] = true
			names = append(names, x.Name)
		}
		return true
	})
	return names
}

// Count returns the number of references to capture name in an expression tree.
func (e *Expr) Count(name string) int {
	n := 0
	e.Walk(func(x *Expr) bool {
		if x.Name == name {
			n++
		}
		return true
	})
	return n
}

// String renders an expression in rule-language syntax.
func (e *Expr) String() string {
	var b strings.Builder
	e.write(&b)
	return b.String()
}

func (e *Expr) write(b *strings.Builder) {
	if e.IsWildcard() {
		if e.Name == "" {
			b.WriteString(Discard)
		} else {
			b.WriteString(e.Name)
		}
		return
	}
	if e.Name != "" {
		b.WriteString(e.Name)
		b.WriteByte(':')
	}
	b.WriteString(e.Op)
	if e.Literal != nil {
		b.WriteString("[" + strconv.Quote(*e.Literal) + "]")
	} else if e.PayloadRef != "" {
		b.WriteString("[" + e.PayloadRef + "]")
	}
	if len(e.Members) == 0 {
		return
	}
	b.WriteByte('(')
	for i, m := range e.Members {
		if i > 0 {
			b.WriteString(", ")
		}
		if i == e.Spread && m.IsWildcard() && m.Name == "" {
			b.WriteString("...")
			continue
		}
		m.write(b)
		if i == e.Spread {
			b.WriteString("...")
		}
	}
	b.WriteByte(')')
}

// Text returns the source text of an expression if known, its rendering otherwise.
func (e *Expr) Text() string {
	if e.Source != "" {
		return e.Source
	}
	return e.String()
}
