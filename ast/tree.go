package ast

import (
	"fmt"

	"github.com/emirpasic/gods/lists/arraylist"
	"github.com/npillmayer/rulegen"
	"github.com/npillmayer/rulegen/schema"
)

// NodeID addresses a node in a Tree.
type NodeID int32

// Nil is the null node. It is used for absent optional fields.
const Nil NodeID = 0

type node struct {
	op      string
	payload string
	fields  []NodeID
	rng     []NodeID
	loc     rulegen.Location
	retired bool
}

// Tree is an arena of nodes. The shape of nodes is governed by a schema.
// A Tree is not safe for concurrent use.
type Tree struct {
	Schema *schema.Schema
	nodes  []node
	free   *arraylist.List // retired slots, re-used LIFO
	reused int
}

// Function is a unit of code: a name and the root of its body.
type Function struct {
	Name string
	Body NodeID
}

// NewTree creates an empty tree for a schema.
func NewTree(s *schema.Schema) *Tree {
	return &Tree{
		Schema: s,
		nodes:  make([]node, 1, 64), // slot 0 is Nil
		free:   arraylist.New(),
	}
}

// Make creates a node for operator op. kids are distributed to the fixed
// fields in schema order; the remaining kids form the variadic range.
func (t *Tree) Make(op string, payload string, kids []NodeID) (NodeID, error) {
	info, err := t.Schema.Get(op)
	if err != nil {
		return Nil, err
	}
	fields, rng, err := distribute(info, kids)
	if err != nil {
		return Nil, err
	}
	for _, k := range kids {
		if k != Nil {
			t.check(k)
		}
	}
	return t.alloc(node{op: op, payload: payload, fields: fields, rng: rng}), nil
}

// New creates a node without payload. It panics if kids do not fit op's schema
// entry; use Make to get an error instead.
func (t *Tree) New(op string, kids ...NodeID) NodeID {
	return t.NewWithPayload(op, "", kids...)
}

// NewWithPayload creates a node with a payload, see New.
func (t *Tree) NewWithPayload(op string, payload string, kids ...NodeID) NodeID {
	id, err := t.Make(op, payload, kids)
	if err != nil {
		panic(err)
	}
	return id
}

func distribute(info *schema.OpInfo, kids []NodeID) (fields, rng []NodeID, err error) {
	n := info.Arity()
	if len(kids) < n || (!info.IsVariadic() && len(kids) != n) {
		return nil, nil, fmt.Errorf("%s expects %s children, got %d", info.Op, arityString(info), len(kids))
	}
	for i, f := range info.Fields {
		if kids[i] == Nil && !f.Optional {
			return nil, nil, fmt.Errorf("%s: field %s is not optional", info.Op, f.Name)
		}
	}
	fields = append(make([]NodeID, 0, n), kids[:n]...)
	if info.IsVariadic() {
		rng = append(make([]NodeID, 0, len(kids)-n), kids[n:]...)
		for _, k := range rng {
			if k == Nil {
				return nil, nil, fmt.Errorf("%s: nil element in range %s", info.Op, info.Range.Name)
			}
		}
	}
	return fields, rng, nil
}

func arityString(info *schema.OpInfo) string {
	if info.IsVariadic() {
		return fmt.Sprintf("at least %d", info.Arity())
	}
	return fmt.Sprintf("%d", info.Arity())
}

func (t *Tree) alloc(n node) NodeID {
	if t.free.Size() > 0 {
		last := t.free.Size() - 1
		v, _ := t.free.Get(last)
		t.free.Remove(last)
		id := v.(NodeID)
		t.nodes[id] = n
		t.reused++
		tracer().Debugf("re-using retired node #%d for %s", id, n.op)
		return id
	}
	t.nodes = append(t.nodes, n)
	return NodeID(len(t.nodes) - 1)
}

// check panics if v is not a live node of t.
func (t *Tree) check(v NodeID) *node {
	if v <= Nil || int(v) >= len(t.nodes) {
		panic(fmt.Sprintf("invalid node id #%d", v))
	}
	n := &t.nodes[v]
	if n.retired {
		panic(fmt.Sprintf("access to retired node #%d", v))
	}
	return n
}

// Op returns the operator of node v.
func (t *Tree) Op(v NodeID) string {
	return t.check(v).op
}

// Is is a predicate: is v a node of operator op? Is is false for Nil.
func (t *Tree) Is(v NodeID, op string) bool {
	return v != Nil && t.check(v).op == op
}

// Info returns the schema entry of node v.
func (t *Tree) Info(v NodeID) *schema.OpInfo {
	return t.Schema.MustGet(t.Op(v))
}

// Payload returns the literal payload of node v.
func (t *Tree) Payload(v NodeID) string {
	return t.check(v).payload
}

// SetPayload overwrites the payload of node v.
func (t *Tree) SetPayload(v NodeID, payload string) {
	t.check(v).payload = payload
}

// Location returns the source location of node v.
func (t *Tree) Location(v NodeID) rulegen.Location {
	return t.check(v).loc
}

// SetLocation sets the source location of node v.
func (t *Tree) SetLocation(v NodeID, loc rulegen.Location) {
	t.check(v).loc = loc
}

// SetLocationRecursively sets the location of v and all of its descendants.
func (t *Tree) SetLocationRecursively(v NodeID, loc rulegen.Location) {
	t.SetLocation(v, loc)
	for _, c := range t.Children(v) {
		if c != Nil {
			t.SetLocationRecursively(c, loc)
		}
	}
}

// Field returns the i-th fixed field of node v. Absent optional fields are Nil.
func (t *Tree) Field(v NodeID, i int) NodeID {
	n := t.check(v)
	if i < 0 || i >= len(n.fields) {
		panic(fmt.Sprintf("%s #%d has no field %d", n.op, v, i))
	}
	return n.fields[i]
}

// Has is a predicate: is the i-th fixed field of node v present?
func (t *Tree) Has(v NodeID, i int) bool {
	return t.Field(v, i) != Nil
}

// SetField replaces the i-th fixed field of node v.
func (t *Tree) SetField(v NodeID, i int, c NodeID) {
	t.Field(v, i) // bounds check
	t.nodes[v].fields[i] = c
}

// Range returns the variadic range of node v. Clients must not modify the
// returned slice.
func (t *Tree) Range(v NodeID) []NodeID {
	return t.check(v).rng
}

// RangeLen returns the number of elements in the variadic range of node v.
func (t *Tree) RangeLen(v NodeID) int {
	return len(t.check(v).rng)
}

// RangeAt returns the k-th element of the variadic range of node v.
func (t *Tree) RangeAt(v NodeID, k int) NodeID {
	n := t.check(v)
	if k < 0 || k >= len(n.rng) {
		panic(fmt.Sprintf("%s #%d: range index %d out of bounds", n.op, v, k))
	}
	return n.rng[k]
}

// Children returns the fixed fields followed by the range elements of node v,
// as a fresh slice.
func (t *Tree) Children(v NodeID) []NodeID {
	n := t.check(v)
	ch := make([]NodeID, 0, len(n.fields)+len(n.rng))
	ch = append(ch, n.fields...)
	return append(ch, n.rng...)
}

// SetChild replaces the child at position slot, counting fixed fields first,
// then range elements.
func (t *Tree) SetChild(v NodeID, slot int, c NodeID) {
	n := t.check(v)
	if slot < len(n.fields) {
		n.fields[slot] = c
		return
	}
	k := slot - len(n.fields)
	if k >= len(n.rng) {
		panic(fmt.Sprintf("%s #%d has no child slot %d", n.op, v, slot))
	}
	n.rng[k] = c
}

// SetChildren overwrites all children of node v, distributing kids as Make does.
// The previous children are dropped, not retired.
func (t *Tree) SetChildren(v NodeID, kids ...NodeID) {
	n := t.check(v)
	fields, rng, err := distribute(t.Schema.MustGet(n.op), kids)
	if err != nil {
		panic(err)
	}
	n.fields, n.rng = fields, rng
}

// --- Retirement and cloning ------------------------------------------------

// Retire returns node v to the free list. Its children are not retired.
func (t *Tree) Retire(v NodeID) {
	n := t.check(v)
	tracer().Debugf("retiring %s #%d", n.op, v)
	*n = node{op: n.op, retired: true}
	t.free.Add(v)
}

// IsRetired is a predicate: has v been retired (and not re-used since)?
func (t *Tree) IsRetired(v NodeID) bool {
	if v <= Nil || int(v) >= len(t.nodes) {
		return false
	}
	return t.nodes[v].retired
}

// FreeCount returns the number of retired slots waiting for re-use.
func (t *Tree) FreeCount() int {
	return t.free.Size()
}

// ReuseCount returns how many allocations have been served from retired slots.
func (t *Tree) ReuseCount() int {
	return t.reused
}

// Size returns the number of live nodes.
func (t *Tree) Size() int {
	return len(t.nodes) - 1 - t.free.Size()
}

// Clone allocates a deep copy of the subtree rooted at v. Locations are copied.
func (t *Tree) Clone(v NodeID) NodeID {
	if v == Nil {
		return Nil
	}
	n := *t.check(v)
	fields := make([]NodeID, len(n.fields))
	for i, f := range n.fields {
		fields[i] = t.Clone(f)
	}
	var rng []NodeID
	if n.rng != nil {
		rng = t.CloneRange(n.rng)
	}
	return t.alloc(node{op: n.op, payload: n.payload, fields: fields, rng: rng, loc: n.loc})
}

// CloneRange clones every node of a sequence.
func (t *Tree) CloneRange(ids []NodeID) []NodeID {
	clones := make([]NodeID, len(ids))
	for i, id := range ids {
		clones[i] = t.Clone(id)
	}
	return clones
}

// --- Equality --------------------------------------------------------------

// Same is a predicate: are the subtrees rooted at a and b structurally equal?
// Operators, payloads and children are compared; locations are not.
func (t *Tree) Same(a, b NodeID) bool {
	if a == b {
		return true
	}
	if a == Nil || b == Nil {
		return false
	}
	na, nb := t.check(a), t.check(b)
	if na.op != nb.op || na.payload != nb.payload ||
		len(na.fields) != len(nb.fields) || len(na.rng) != len(nb.rng) {
		return false
	}
	for i := range na.fields {
		if !t.Same(na.fields[i], nb.fields[i]) {
			return false
		}
	}
	return t.SameRange(na.rng, nb.rng)
}

// SameRange compares two sequences of nodes element-wise with Same.
func (t *Tree) SameRange(a, b []NodeID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !t.Same(a[i], b[i]) {
			return false
		}
	}
	return true
}
