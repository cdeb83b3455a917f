package pattern

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/exp/slices"
)

// Opaque is a passthrough expression of the target language, as used for
// guards and auxiliary bindings. It is never interpreted. Refs holds the bound
// names the text may reference, in order of first appearance.
type Opaque struct {
	Text string
	Refs []string
	Line int
}

// NewOpaque creates an opaque expression from raw text.
func NewOpaque(text string, line int) Opaque {
	return Opaque{Text: strings.TrimSpace(text), Line: line}
}

// IsEmpty is true if there is no text.
func (o Opaque) IsEmpty() bool {
	return o.Text == ""
}

// Resolve returns a copy of o with Refs set to the identifiers in o's text which
// are contained in bound.
func (o Opaque) Resolve(bound []string) Opaque {
	o.Refs = nil
	scanIdentifiers(o.Text, func(id string, _, _ int) {
		if slices.Contains(bound, id) && !slices.Contains(o.Refs, id) {
			o.Refs = append(o.Refs, id)
		}
	})
	return o
}

// Substitute replaces every reference to a bound name by the result of subst.
// Text inside string or character literals is left untouched.
func (o Opaque) Substitute(subst func(name string) string) string {
	if len(o.Refs) == 0 {
		return o.Text
	}
	var b strings.Builder
	last := 0
	scanIdentifiers(o.Text, func(id string, from, to int) {
		if !slices.Contains(o.Refs, id) {
			return
		}
		b.WriteString(o.Text[last:from])
		b.WriteString(subst(id))
		last = to
	})
	b.WriteString(o.Text[last:])
	return b.String()
}

func (o Opaque) String() string {
	return "`" + o.Text + "`"
}

// scanIdentifiers calls f for every identifier outside of quoted literals.
// Identifiers directly following a '.' are selectors and are skipped.
func scanIdentifiers(text string, f func(id string, from, to int)) {
	runes := []rune(text)
	pos := make([]int, len(runes)+1) // rune index → byte offset
	off := 0
	for i, r := range runes {
		pos[i] = off
		off += len(string(r))
	}
	pos[len(runes)] = off
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case r == '"' || r == '\'' || r == '`':
			j := i + 1
			for j < len(runes) && runes[j] != r {
				if runes[j] == '\\' && r != '`' {
					j++
				}
				j++
			}
			i = j + 1
		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			if i == 0 || runes[i-1] != '.' {
				f(string(runes[i:j]), pos[i], pos[j])
			}
			i = j
		default:
			i++
		}
	}
}

// --- Rules -----------------------------------------------------------------

// Binding is an auxiliary binding of a rule. If Checked is set, the rule does
// not apply if the bound value is empty or false.
type Binding struct {
	Name    string
	Expr    Opaque
	Checked bool
	Line    int
}

func (b Binding) String() string {
	kw := "let"
	if b.Checked {
		kw = "check"
	}
	return fmt.Sprintf("%s %s = %s", kw, b.Name, b.Expr)
}

// Rule is a rewrite rule: a pattern to match, a replacement, an optional guard
// and auxiliary bindings. Rules are immutable once constructed.
type Rule struct {
	Match   *Expr
	Rewrite *Expr
	Guard   *Opaque
	Lets    []Binding
	File    string
	Line    int
}

// NewRule creates a rule for match and rewrite. Guard and bindings are
// resolved against the names the match side binds.
func NewRule(match, rewrite *Expr, guard string, lets ...Binding) *Rule {
	r := &Rule{Match: match, Rewrite: rewrite, Line: match.Line}
	if guard != "" {
		g := NewOpaque(guard, match.Line)
		r.Guard = &g
	}
	r.Lets = lets
	r.Resolve()
	return r
}

// Resolve sets the references of the guard and the bindings. The guard may see
// all captures of the match side; every binding may additionally see the
// bindings declared before it.
func (r *Rule) Resolve() {
	bound := r.Match.Captures()
	if r.Guard != nil {
		g := r.Guard.Resolve(bound)
		r.Guard = &g
	}
	for i := range r.Lets {
		r.Lets[i].Expr = r.Lets[i].Expr.Resolve(bound)
		bound = append(bound, r.Lets[i].Name)
	}
}

// Bound returns all names bound by a rule: captures first, then bindings.
func (r *Rule) Bound() []string {
	bound := r.Match.Captures()
	for _, l := range r.Lets {
		bound = append(bound, l.Name)
	}
	return bound
}

// Validate checks the invariants of a rule. It does not consult a schema.
func (r *Rule) Validate() error {
	if r.Match == nil || r.Rewrite == nil {
		return invalid(r.Line, "incomplete rule")
	}
	if r.Match.IsWildcard() {
		return invalid(r.Line, "rule must match a concrete operator, not a wildcard")
	}
	if err := r.Match.Validate(); err != nil {
		return err
	}
	if err := r.Rewrite.Validate(); err != nil {
		return err
	}
	var err error
	r.Match.Walk(func(x *Expr) bool {
		if x.PayloadRef != "" && err == nil {
			err = invalid(r.Line, "payload of %s cannot reference %s in a pattern", x.Op, x.PayloadRef)
		}
		return true
	})
	if err != nil {
		return err
	}
	captures := r.Match.Captures()
	bound := append([]string{}, captures...)
	for _, l := range r.Lets {
		if l.Name == "" || l.Name == Discard {
			return invalid(l.Line, "binding needs a name")
		}
		if slices.Contains(bound, l.Name) {
			return invalid(l.Line, "binding %s shadows a bound name", l.Name)
		}
		bound = append(bound, l.Name)
	}
	r.Rewrite.Walk(func(x *Expr) bool {
		if err != nil {
			return false
		}
		switch {
		case x.IsWildcard() && x.Name == "":
			err = invalid(r.Line, "rewrite cannot contain an anonymous wildcard")
		case x.IsWildcard() && x.IsDiscard():
			err = invalid(r.Line, "rewrite cannot reference the discard name")
		case x.IsWildcard() && x.Name != "" && !slices.Contains(captures, x.Name):
			err = invalid(r.Line, "rewrite references unbound capture %s", x.Name)
		case !x.IsWildcard() && x.Name != "":
			err = invalid(r.Line, "rewrite node %s cannot be named", x.Op)
		case x.PayloadRef != "" && !slices.Contains(bound, x.PayloadRef):
			err = invalid(r.Line, "payload references unbound name %s", x.PayloadRef)
		}
		return true
	})
	return err
}

func (r *Rule) String() string {
	var b strings.Builder
	b.WriteString(r.Match.Text())
	b.WriteString(" -> ")
	b.WriteString(r.Rewrite.Text())
	if r.Guard != nil {
		b.WriteString(" where ")
		b.WriteString(r.Guard.String())
	}
	for _, l := range r.Lets {
		b.WriteByte(' ')
		b.WriteString(l.String())
	}
	return b.String()
}
