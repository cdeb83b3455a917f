package rewrite

import (
	"github.com/npillmayer/rulegen"
	"github.com/npillmayer/rulegen/ast"
)

// Stats counts the tree operations performed through a Context.
type Stats struct {
	Changes int // committed rewrites
	Created int // nodes allocated by rewrites
	Cloned  int // subtrees cloned
	Retired int // nodes retired
}

// Context is the explicit state of a rewrite pass. It wraps the tree being
// rewritten and keeps track of nodes created during the current commit, which
// is needed for location propagation.
//
// A Context must not be shared between concurrent passes.
type Context struct {
	Tree  *ast.Tree
	Stats Stats
	fresh []ast.NodeID // nodes created since the last call to Begin
}

// NewContext creates a rewrite context for a tree.
func NewContext(tree *ast.Tree) *Context {
	return &Context{Tree: tree}
}

// Begin starts a commit. Nodes created from now on are considered fresh.
func (ctx *Context) Begin() {
	ctx.fresh = ctx.fresh[:0]
}

// Create allocates a node without payload, see CreateWithPayload.
func (ctx *Context) Create(op string, kids ...ast.NodeID) ast.NodeID {
	return ctx.CreateWithPayload(op, "", kids...)
}

// CreateWithPayload allocates a node, re-using retired slots first. kids
// are distributed to the fixed fields and the range of op. Create panics if
// kids do not fit the schema: compiled rules have been checked against the
// schema, so this is an internal error.
func (ctx *Context) CreateWithPayload(op string, payload string, kids ...ast.NodeID) ast.NodeID {
	v := ctx.Tree.NewWithPayload(op, payload, kids...)
	ctx.fresh = append(ctx.fresh, v)
	ctx.Stats.Created++
	return v
}

// Clone copies a subtree. Clones keep their original locations.
func (ctx *Context) Clone(v ast.NodeID) ast.NodeID {
	if v == ast.Nil {
		return ast.Nil
	}
	ctx.Stats.Cloned++
	return ctx.Tree.Clone(v)
}

// CloneRange copies a sequence of subtrees.
func (ctx *Context) CloneRange(vs []ast.NodeID) []ast.NodeID {
	ctx.Stats.Cloned += len(vs)
	return ctx.Tree.CloneRange(vs)
}

// Retire hands a node back to the tree's free list. The node must not be
// referenced afterwards.
func (ctx *Context) Retire(v ast.NodeID) {
	if v == ast.Nil || ctx.Tree.IsRetired(v) {
		return
	}
	ctx.Tree.Retire(v)
	ctx.Stats.Retired++
}

// Update overwrites the children of node v in place.
func (ctx *Context) Update(v ast.NodeID, kids ...ast.NodeID) {
	ctx.Tree.SetChildren(v, kids...)
}

// PayloadOf returns the payload of v, or "" for ast.Nil.
func (ctx *Context) PayloadOf(v ast.NodeID) string {
	if v == ast.Nil {
		return ""
	}
	return ctx.Tree.Payload(v)
}

// PropagateLocation ends a commit: the result of a rewrite gets the location
// loc of the matched node, and so does every node created since Begin.
// Captured or cloned subtrees keep their own locations.
func (ctx *Context) PropagateLocation(result ast.NodeID, loc rulegen.Location) {
	ctx.Tree.SetLocation(result, loc)
	for _, v := range ctx.fresh {
		if !ctx.Tree.IsRetired(v) {
			ctx.Tree.SetLocation(v, loc)
		}
	}
	ctx.fresh = ctx.fresh[:0]
	ctx.Stats.Changes++
}
