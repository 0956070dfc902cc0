package plan

import (
	"fmt"

	"github.com/squareup/planopt/errors"
	"github.com/squareup/planopt/expr"
)

// Node is an operator in a physical plan. Nodes are immutable: rewriting a plan builds new nodes with
// WithNewChildren and leaves the originals untouched.
type Node interface {
	Schema() *Schema
	Children() []Node
	// WithNewChildren returns a node of the same kind and configuration over the given inputs.
	WithNewChildren(children []Node) (Node, error)
	// MaintainsInputOrder reports, per input, whether rows leave in the order they arrived in each partition.
	MaintainsInputOrder() []bool
	// OutputOrdering is nil when the output has no known order.
	OutputOrdering() expr.Ordering
	OutputPartitioning() Partitioning
	EquivalenceProperties() *EquivalenceProperties
	// Unbounded is true when the node produces rows from a source with no known end.
	Unbounded() bool
	// RequiredInputOrdering returns, per input, the ordering the operator needs its input to have, or nil.
	RequiredInputOrdering() []expr.Ordering
	// Describe renders the node on a single line, without its children.
	Describe() string
}

type nodeBase struct {
	schema   *Schema
	children []Node
}

func (n *nodeBase) Schema() *Schema {
	return n.schema
}

func (n *nodeBase) Children() []Node {
	return n.children
}

func (n *nodeBase) Unbounded() bool {
	for _, child := range n.children {
		if child.Unbounded() {
			return true
		}
	}
	return false
}

func (n *nodeBase) RequiredInputOrdering() []expr.Ordering {
	return make([]expr.Ordering, len(n.children))
}

func (n *nodeBase) input() Node {
	return n.children[0]
}

func checkChildCount(operator string, children []Node, expected int) error {
	if len(children) != expected {
		return errors.WithStack(errors.NewInvalidPlanError(operator,
			fmt.Sprintf("expected %d inputs, got %d", expected, len(children))))
	}
	return nil
}

func checkInput(operator string, input Node) error {
	if input == nil {
		return errors.WithStack(errors.NewInvalidPlanError(operator, "input is required"))
	}
	return nil
}
