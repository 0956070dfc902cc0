package plan

import (
	"fmt"
	"strings"

	"github.com/squareup/planopt/expr"
)

// Repartition redistributes its input's rows into a new partitioning. Rows of different input partitions are
// interleaved as they arrive unless preserveOrder is set, in which case each output partition merges its inputs
// on the input ordering.
type Repartition struct {
	nodeBase
	partitioning  Partitioning
	preserveOrder bool
	eqProps       *EquivalenceProperties
}

func NewRepartition(input Node, partitioning Partitioning) (*Repartition, error) {
	if err := checkInput("Repartition", input); err != nil {
		return nil, err
	}
	if err := partitioning.Validate(input.Schema()); err != nil {
		return nil, err
	}
	r := &Repartition{
		nodeBase:     nodeBase{schema: input.Schema(), children: []Node{input}},
		partitioning: partitioning,
	}
	r.eqProps = r.computeEquivalenceProperties()
	return r, nil
}

// WithPreserveOrder returns a copy of r that keeps the input ordering. The flag is only set if there is an
// ordering to keep and more than one input partition to merge.
func (r *Repartition) WithPreserveOrder() *Repartition {
	res := &Repartition{
		nodeBase:      r.nodeBase,
		partitioning:  r.partitioning,
		preserveOrder: len(r.input().OutputOrdering()) > 0 && r.inputPartitions() > 1,
	}
	res.eqProps = res.computeEquivalenceProperties()
	return res
}

func (r *Repartition) computeEquivalenceProperties() *EquivalenceProperties {
	in := r.input().EquivalenceProperties()
	if r.maintainsInputOrder() {
		return in
	}
	return in.WithOrderings()
}

func (r *Repartition) Partitioning() Partitioning {
	return r.partitioning
}

func (r *Repartition) PreserveOrder() bool {
	return r.preserveOrder
}

func (r *Repartition) inputPartitions() int {
	return r.input().OutputPartitioning().PartitionCount()
}

func (r *Repartition) maintainsInputOrder() bool {
	return r.preserveOrder || r.inputPartitions() <= 1
}

func (r *Repartition) WithNewChildren(children []Node) (Node, error) {
	if err := checkChildCount("Repartition", children, 1); err != nil {
		return nil, err
	}
	res, err := NewRepartition(children[0], r.partitioning)
	if err != nil {
		return nil, err
	}
	if r.preserveOrder {
		return res.WithPreserveOrder(), nil
	}
	return res, nil
}

func (r *Repartition) MaintainsInputOrder() []bool {
	return []bool{r.maintainsInputOrder()}
}

func (r *Repartition) OutputOrdering() expr.Ordering {
	if r.maintainsInputOrder() {
		return r.input().OutputOrdering()
	}
	return nil
}

func (r *Repartition) OutputPartitioning() Partitioning {
	return r.partitioning
}

func (r *Repartition) EquivalenceProperties() *EquivalenceProperties {
	return r.eqProps
}

func (r *Repartition) Describe() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Repartition: partitioning=%s, input_partitions=%d", r.partitioning, r.inputPartitions()))
	if r.preserveOrder {
		sb.WriteString(fmt.Sprintf(", preserve_order=true, sort_exprs=%s", r.input().OutputOrdering()))
	}
	return sb.String()
}
