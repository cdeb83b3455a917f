package rewrite

import (
	"errors"
	"fmt"

	"github.com/npillmayer/rulegen"
	"github.com/npillmayer/rulegen/ast"
	"github.com/npillmayer/schuko/gconf"
)

// MaxAttempts is the number of consecutive changes at a single node after
// which a rule set is considered to contain a rewrite cycle.
const MaxAttempts = 10

// ErrRewriteCycle is matched by errors reporting a rewrite cycle.
var ErrRewriteCycle = errors.New("rewrite cycle")

// CycleError reports a node which did not settle after MaxAttempts rewrites.
// Ops holds the operator of the node after each attempt.
type CycleError struct {
	Op       string
	Location rulegen.Location
	Ops      []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: rewrite cycle at %s, node did not settle after %d rewrites: %v",
		e.Location, e.Op, MaxAttempts, e.Ops)
}

// Unwrap makes errors.Is(err, ErrRewriteCycle) hold.
func (e *CycleError) Unwrap() error {
	return ErrRewriteCycle
}

// Dispatcher attempts the rules applicable to a node. It returns the rewritten
// node and true, or the unchanged node and false.
type Dispatcher interface {
	Dispatch(ctx *Context, v ast.NodeID) (ast.NodeID, bool)
}

// DispatchFunc adapts a function to the Dispatcher interface.
type DispatchFunc func(ctx *Context, v ast.NodeID) (ast.NodeID, bool)

// Dispatch calls f(ctx, v).
func (f DispatchFunc) Dispatch(ctx *Context, v ast.NodeID) (ast.NodeID, bool) {
	return f(ctx, v)
}

// Fixpoint applies d to v until d reports no change. If v has been rewritten
// MaxAttempts times without settling, Fixpoint returns a *CycleError (or
// panics, if configuration flag "panic-on-rewrite-cycle" is set).
func Fixpoint(ctx *Context, d Dispatcher, v ast.NodeID) (ast.NodeID, error) {
	loc := ctx.Tree.Location(v)
	var ops []string
	for attempts := 0; ; {
		r, changed := d.Dispatch(ctx, v)
		if !changed {
			return r, nil
		}
		v = r
		attempts++
		ops = append(ops, ctx.Tree.Op(v))
		tracer().Debugf("rewrite #%d: %s", attempts, ctx.Tree.String(v))
		if attempts >= MaxAttempts {
			err := &CycleError{Op: ctx.Tree.Op(v), Location: loc, Ops: ops}
			tracer().Errorf(err.Error())
			if gconf.GetBool("panic-on-rewrite-cycle") {
				panic(err)
			}
			return v, err
		}
	}
}
