package ast

import (
	"github.com/emirpasic/gods/stacks/arraystack"
)

// frame is a stack entry of a post-order walk: a node and the index of the
// next child slot to descend into.
type frame struct {
	v    NodeID
	next int
}

// NodeMapper is a function mapping a node to its replacement. Returning the
// input node leaves the tree unchanged at this position.
type NodeMapper func(v NodeID) (NodeID, error)

// PostOrder walks the subtree rooted at root depth-first, children before their
// parent, and calls f for every node. If f returns a different node, the child
// slot of the parent is updated. PostOrder returns the (possibly replaced) root.
// The walk stops at the first error.
//
// The example tree
//
//          1
//        /   \
//      2       3
//     / \     / \
//    4   5   6   7
//
// is visited as 4 5 2 6 7 3 1.
func (t *Tree) PostOrder(root NodeID, f NodeMapper) (NodeID, error) {
	if root == Nil {
		return Nil, nil
	}
	stack := arraystack.New()
	stack.Push(&frame{v: root})
	var result NodeID
	for !stack.Empty() {
		top, _ := stack.Peek()
		fr := top.(*frame)
		children := t.Children(fr.v)
		for fr.next < len(children) && children[fr.next] == Nil {
			fr.next++
		}
		if fr.next < len(children) {
			stack.Push(&frame{v: children[fr.next]})
			fr.next++
			continue
		}
		stack.Pop()
		r, err := f(fr.v)
		if err != nil {
			return root, err
		}
		if stack.Empty() {
			result = r
			break
		}
		if r != fr.v {
			p, _ := stack.Peek()
			parent := p.(*frame)
			t.SetChild(parent.v, parent.next-1, r)
		}
	}
	return result, nil
}

// PreOrder returns the nodes of the subtree rooted at root in pre-order.
func (t *Tree) PreOrder(root NodeID) []NodeID {
	if root == Nil {
		return nil
	}
	var nodes []NodeID
	stack := arraystack.New()
	stack.Push(root)
	for !stack.Empty() {
		top, _ := stack.Pop()
		v := top.(NodeID)
		nodes = append(nodes, v)
		children := t.Children(v)
		for i := len(children) - 1; i >= 0; i-- {
			if children[i] != Nil {
				stack.Push(children[i])
			}
		}
	}
	return nodes
}
