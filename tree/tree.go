// Package tree walks plan trees top-down and bottom-up while carrying a value per node.
package tree

import (
	"fmt"

	"github.com/squareup/planopt/errors"
	"github.com/squareup/planopt/plan"
)

// Annotated mirrors a plan tree with the payload computed for each node on the way down.
type Annotated[T any] struct {
	Node     plan.Node
	Payload  T
	Children []*Annotated[T]
}

// DownFunc receives a node and the payload its parent computed for it. It returns the node to keep, one payload
// per child, and the payload to store for the node itself.
type DownFunc[T any] func(node plan.Node, payload T) (plan.Node, []T, T, error)

// UpFunc receives a node, its stored down payload and the up payloads of its children, and returns the node to
// keep in the tree and the payload to hand to its parent.
type UpFunc[T any, U any] func(node plan.Node, payload T, children []U) (plan.Node, U, error)

// PropagateDown computes payloads from root to leaves.
func PropagateDown[T any](root plan.Node, payload T, down DownFunc[T]) (*Annotated[T], error) {
	node, childPayloads, self, err := down(root, payload)
	if err != nil {
		return nil, err
	}
	children := node.Children()
	if len(childPayloads) != len(children) {
		return nil, errors.WithStack(errors.NewInternalError(fmt.Sprintf("%d payloads computed for %d children of %s",
			len(childPayloads), len(children), node.Describe())))
	}
	res := &Annotated[T]{Node: node, Payload: self, Children: make([]*Annotated[T], len(children))}
	for i, child := range children {
		res.Children[i], err = PropagateDown(child, childPayloads[i], down)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// TransformUp computes payloads from leaves to root. When up replaces a child, the parent is rebuilt over the new
// child before up is called for the parent.
func TransformUp[T any, U any](a *Annotated[T], up UpFunc[T, U]) (plan.Node, U, error) {
	node := a.Node
	children := node.Children()
	if len(a.Children) != len(children) {
		var zero U
		return nil, zero, errors.WithStack(errors.NewInternalError(fmt.Sprintf(
			"annotated tree has %d children for %s, which has %d", len(a.Children), node.Describe(), len(children))))
	}
	newChildren := make([]plan.Node, len(children))
	childPayloads := make([]U, len(children))
	changed := false
	for i, child := range a.Children {
		newChild, payload, err := TransformUp(child, up)
		if err != nil {
			var zero U
			return nil, zero, err
		}
		newChildren[i] = newChild
		childPayloads[i] = payload
		if newChild != children[i] {
			changed = true
		}
	}
	if changed {
		var err error
		node, err = node.WithNewChildren(newChildren)
		if err != nil {
			var zero U
			return nil, zero, err
		}
	}
	return up(node, a.Payload, childPayloads)
}

// TransformWithPayload runs PropagateDown followed by TransformUp and returns the rewritten root together with
// the payload the root handed up.
func TransformWithPayload[T any, U any](root plan.Node, payload T, down DownFunc[T], up UpFunc[T, U]) (plan.Node, U, error) {
	annotated, err := PropagateDown(root, payload, down)
	if err != nil {
		var zero U
		return nil, zero, err
	}
	return TransformUp(annotated, up)
}
