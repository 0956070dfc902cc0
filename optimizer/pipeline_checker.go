package optimizer

import (
	"github.com/squareup/planopt/conf"
	"github.com/squareup/planopt/errors"
	"github.com/squareup/planopt/plan"
)

// PipelineChecker rejects plans that can never produce output over an unbounded input. A Sort has to see all of
// its input before emitting anything, and an operator that needs its input in a given order cannot wait for the
// input to end and sort it, so the input has to arrive in that order.
type PipelineChecker struct{}

func (p *PipelineChecker) Name() string {
	return "PipelineChecker"
}

func (p *PipelineChecker) Optimize(root plan.Node, _ *conf.Config) (plan.Node, error) {
	if err := checkPipeline(root); err != nil {
		return nil, err
	}
	return root, nil
}

func checkPipeline(node plan.Node) error {
	children := node.Children()
	if _, ok := node.(*plan.Sort); ok && len(children) == 1 && children[0].Unbounded() {
		return errors.WithStack(errors.NewUnboundedSortError(node.Describe()))
	}
	for i, required := range node.RequiredInputOrdering() {
		if len(required) == 0 || i >= len(children) {
			continue
		}
		child := children[i]
		if child.Unbounded() && !child.EquivalenceProperties().OrderingSatisfy(required) {
			return errors.WithStack(errors.NewUnboundedPipelineError(node.Describe(), required.String()))
		}
	}
	for _, child := range children {
		if err := checkPipeline(child); err != nil {
			return err
		}
	}
	return nil
}
