package rules

import (
	"github.com/emirpasic/gods/sets/hashset"
	"github.com/npillmayer/rulegen/pattern"
	"github.com/npillmayer/rulegen/schema"
)

// rewriteCompiler holds the state of compiling the replacement of a rule.
type rewriteCompiler struct {
	*compiler
	inPlace    bool
	referenced *hashset.Set    // capture names referenced by the replacement
	refs       map[string]int // references compiled so far, per capture
}

// compileCommit decides between in-place update and new allocation, computes
// the retirement set and compiles the replacement.
func (c *compiler) compileCommit() (*Commit, error) {
	r := c.rule
	rc := &rewriteCompiler{
		compiler:   c,
		referenced: hashset.New(),
		refs:       make(map[string]int),
	}
	for _, nm := range r.Rewrite.Captures() {
		rc.referenced.Add(nm)
	}
	if !r.Rewrite.IsWildcard() && r.Rewrite.Op == r.Match.Op {
		info, err := c.schema.Get(r.Match.Op)
		if err != nil {
			return nil, c.errorf(r.Rewrite, "unknown operator %s", r.Match.Op)
		}
		rc.inPlace = !info.IsVariadic()
	}
	commit := &Commit{InPlace: rc.inPlace}
	for _, cand := range c.retire {
		if rc.inPlace && cand.reg == 0 {
			continue
		}
		if rc.insideReferenced(cand.enclosing) {
			continue
		}
		commit.Retire = append(commit.Retire, cand.reg)
	}
	build, err := rc.build(r.Rewrite, true)
	if err != nil {
		return nil, err
	}
	commit.Build = build
	tracer().Debugf("commit: in-place=%v, retire=%v, build %s", commit.InPlace, commit.Retire, build)
	return commit, nil
}

// insideReferenced is true if one of the enclosing captures is re-used by the
// replacement.
func (rc *rewriteCompiler) insideReferenced(enclosing []string) bool {
	for _, nm := range enclosing {
		if rc.referenced.Contains(nm) {
			return true
		}
	}
	return false
}

func (rc *rewriteCompiler) build(e *pattern.Expr, isRoot bool) (*Build, error) {
	if e.IsWildcard() {
		return rc.reference(e, isRoot)
	}
	info, err := rc.schema.Get(e.Op)
	if err != nil {
		return nil, rc.errorf(e, "unknown operator %s in replacement", e.Op)
	}
	b := &Build{Op: e.Op, Literal: e.Literal, Line: e.Line}
	if e.PayloadRef != "" {
		cpt, _ := rc.lets.resolve(e.PayloadRef)
		if cpt == nil {
			return nil, rc.errorf(e, "payload references unbound name %s", e.PayloadRef)
		}
		if cpt.Kind == RangeKind {
			return nil, rc.errorf(e, "payload of %s cannot come from range %s", e.Op, e.PayloadRef)
		}
		b.PayloadRef = cpt
	}
	for i, m := range e.Members {
		kid, err := rc.build(m, false)
		if err != nil {
			return nil, err
		}
		if i == e.Spread && !kid.IsSplice() {
			return nil, rc.errorf(e, "spread marker on %s, which is not a range", m)
		}
		b.Kids = append(b.Kids, kid)
	}
	if err := rc.checkShape(e, info, b); err != nil {
		return nil, err
	}
	return b, nil
}

// reference compiles a reference to a capture. The first reference re-uses the
// captured node. Later references, references to captures nested inside another
// re-used capture, and references to the matched node inside an in-place update
// are cloned.
func (rc *rewriteCompiler) reference(e *pattern.Expr, isRoot bool) (*Build, error) {
	cpt, _ := rc.captures.resolve(e.Name)
	if cpt == nil {
		return nil, rc.errorf(e, "replacement references unbound capture %s", e.Name)
	}
	if isRoot && cpt.Kind == RangeKind {
		return nil, rc.errorf(e, "replacement cannot be the range %s", e.Name)
	}
	rc.refs[e.Name]++
	b := &Build{Capture: cpt, Line: e.Line}
	b.Clone = rc.refs[e.Name] > 1 ||
		rc.insideReferenced(cpt.Enclosing) ||
		(rc.inPlace && cpt.Reg == 0)
	return b, nil
}

// checkShape checks the children of a node to build against the schema.
// Spliced ranges have a length unknown until runtime, so they may only
// appear in the variadic range of an operator.
func (rc *rewriteCompiler) checkShape(e *pattern.Expr, info *schema.OpInfo, b *Build) error {
	splices := 0
	for i, k := range b.Kids {
		if k.IsSplice() {
			if i < info.Arity() || !info.IsVariadic() {
				return rc.errorf(e, "range %s cannot be spliced into %s at position %d",
					k.Capture.Name, e.Op, i)
			}
			splices++
		}
	}
	n := len(b.Kids)
	if !info.IsVariadic() {
		if n != info.Arity() {
			return rc.errorf(e, "%s expects %d children, replacement has %d", e.Op, info.Arity(), n)
		}
		return nil
	}
	if n < info.Arity() {
		return rc.errorf(e, "%s expects at least %d children, replacement has %d", e.Op, info.Arity(), n)
	}
	if splices == 0 && n-info.Arity() < info.Range.Min {
		return rc.errorf(e, "%s needs at least %d elements in %s, replacement has %d",
			e.Op, info.Range.Min, info.Range.Name, n-info.Arity())
	}
	return nil
}
