package rewrite

import (
	"fmt"
	"reflect"

	"github.com/npillmayer/rulegen/ast"
)

// PassFunc is the signature of a rewrite pass over a function.
type PassFunc func(ctx *Context, fn *ast.Function) error

// Run drives d to a fixpoint at every node of the body of fn, children before
// their parents. If the body's root is rewritten, fn.Body is updated.
// Run stops at the first rewrite cycle.
func Run(ctx *Context, d Dispatcher, fn *ast.Function) error {
	if fn == nil || fn.Body == ast.Nil {
		return nil
	}
	tracer().Debugf("rewrite pass over %s", fn.Name)
	body, err := ctx.Tree.PostOrder(fn.Body, func(v ast.NodeID) (ast.NodeID, error) {
		return Fixpoint(ctx, d, v)
	})
	if err != nil {
		return fmt.Errorf("function %s: %w", fn.Name, err)
	}
	fn.Body = body
	return nil
}

// Pass creates a pass function for a dispatcher.
func Pass(d Dispatcher) PassFunc {
	return func(ctx *Context, fn *ast.Function) error {
		return Run(ctx, d, fn)
	}
}

// Text converts the value of a binding to a payload string.
func Text(x interface{}) string {
	switch v := x.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	return fmt.Sprint(x)
}

// Truthy decides if the value of a checked binding lets a rule apply:
// nil, false, zero numbers, empty strings, empty collections and ast.Nil do not.
func Truthy(x interface{}) bool {
	switch v := x.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case ast.NodeID:
		return v != ast.Nil
	case error:
		return false
	}
	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface, reflect.Func, reflect.Chan:
		return !rv.IsNil()
	}
	return true
}
