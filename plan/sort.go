package plan

import (
	"fmt"

	"github.com/squareup/planopt/errors"
	"github.com/squareup/planopt/expr"
)

// Sort fully sorts its input. Unless preservePartitioning is set, all input partitions are sorted into a single
// output partition.
type Sort struct {
	nodeBase
	ordering             expr.Ordering
	preservePartitioning bool
	eqProps              *EquivalenceProperties
}

func NewSort(input Node, ordering expr.Ordering, preservePartitioning bool) (*Sort, error) {
	if err := checkInput("Sort", input); err != nil {
		return nil, err
	}
	if len(ordering) == 0 {
		return nil, errors.WithStack(errors.NewInvalidPlanError("Sort", "at least one sort expression is required"))
	}
	if err := validateExprs("Sort", input.Schema(), ordering.Exprs()...); err != nil {
		return nil, err
	}
	return &Sort{
		nodeBase:             nodeBase{schema: input.Schema(), children: []Node{input}},
		ordering:             ordering,
		preservePartitioning: preservePartitioning,
		eqProps:              input.EquivalenceProperties().WithOrderings(ordering),
	}, nil
}

func (s *Sort) Ordering() expr.Ordering {
	return s.ordering
}

func (s *Sort) PreservePartitioning() bool {
	return s.preservePartitioning
}

func (s *Sort) WithNewChildren(children []Node) (Node, error) {
	if err := checkChildCount("Sort", children, 1); err != nil {
		return nil, err
	}
	return NewSort(children[0], s.ordering, s.preservePartitioning)
}

func (s *Sort) MaintainsInputOrder() []bool {
	return []bool{false}
}

func (s *Sort) OutputOrdering() expr.Ordering {
	return s.ordering
}

func (s *Sort) OutputPartitioning() Partitioning {
	if s.preservePartitioning {
		return s.input().OutputPartitioning()
	}
	return NewUnknownPartitioning(1)
}

func (s *Sort) EquivalenceProperties() *EquivalenceProperties {
	return s.eqProps
}

func (s *Sort) Describe() string {
	if s.preservePartitioning {
		return fmt.Sprintf("Sort: expr=[%s], preserve_partitioning=true", s.ordering)
	}
	return fmt.Sprintf("Sort: expr=[%s]", s.ordering)
}

// SortPreservingMerge merges input partitions that are each sorted by ordering into one sorted partition.
type SortPreservingMerge struct {
	nodeBase
	ordering expr.Ordering
	eqProps  *EquivalenceProperties
}

func NewSortPreservingMerge(input Node, ordering expr.Ordering) (*SortPreservingMerge, error) {
	if err := checkInput("SortPreservingMerge", input); err != nil {
		return nil, err
	}
	if len(ordering) == 0 {
		return nil, errors.WithStack(errors.NewInvalidPlanError("SortPreservingMerge",
			"at least one sort expression is required"))
	}
	if err := validateExprs("SortPreservingMerge", input.Schema(), ordering.Exprs()...); err != nil {
		return nil, err
	}
	return &SortPreservingMerge{
		nodeBase: nodeBase{schema: input.Schema(), children: []Node{input}},
		ordering: ordering,
		eqProps:  input.EquivalenceProperties().WithOrderings(ordering),
	}, nil
}

func (s *SortPreservingMerge) Ordering() expr.Ordering {
	return s.ordering
}

func (s *SortPreservingMerge) WithNewChildren(children []Node) (Node, error) {
	if err := checkChildCount("SortPreservingMerge", children, 1); err != nil {
		return nil, err
	}
	return NewSortPreservingMerge(children[0], s.ordering)
}

func (s *SortPreservingMerge) MaintainsInputOrder() []bool {
	return []bool{true}
}

func (s *SortPreservingMerge) OutputOrdering() expr.Ordering {
	return s.ordering
}

func (s *SortPreservingMerge) OutputPartitioning() Partitioning {
	return NewUnknownPartitioning(1)
}

func (s *SortPreservingMerge) EquivalenceProperties() *EquivalenceProperties {
	return s.eqProps
}

func (s *SortPreservingMerge) RequiredInputOrdering() []expr.Ordering {
	return []expr.Ordering{s.ordering}
}

func (s *SortPreservingMerge) Describe() string {
	return fmt.Sprintf("SortPreservingMerge: [%s]", s.ordering)
}
