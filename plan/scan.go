package plan

import (
	"fmt"
	"strings"

	"github.com/squareup/planopt/errors"
	"github.com/squareup/planopt/expr"
)

type scanBase struct {
	nodeBase
	name       string
	partitions int
	ordering   expr.Ordering
	eqProps    *EquivalenceProperties
}

func newScanBase(operator string, name string, schema *Schema, partitions int, ordering expr.Ordering) (scanBase, error) {
	if partitions < 1 {
		return scanBase{}, errors.WithStack(errors.NewInvalidPlanError(operator,
			fmt.Sprintf("partitions must be >= 1, got %d", partitions)))
	}
	if err := validateExprs(operator, schema, ordering.Exprs()...); err != nil {
		return scanBase{}, err
	}
	eqProps := NewEquivalenceProperties()
	eqProps.AddOrdering(ordering)
	return scanBase{
		nodeBase:   nodeBase{schema: schema},
		name:       name,
		partitions: partitions,
		ordering:   ordering,
		eqProps:    eqProps,
	}, nil
}

func (s *scanBase) MaintainsInputOrder() []bool {
	return nil
}

func (s *scanBase) OutputOrdering() expr.Ordering {
	return s.ordering
}

func (s *scanBase) OutputPartitioning() Partitioning {
	return NewUnknownPartitioning(s.partitions)
}

func (s *scanBase) EquivalenceProperties() *EquivalenceProperties {
	return s.eqProps
}

func (s *scanBase) describe(label string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s, columns=[%s], partitions=%d", label, strings.Join(s.schema.ColumnNames(), ", "),
		s.partitions))
	if len(s.ordering) > 0 {
		sb.WriteString(fmt.Sprintf(", output_ordering=[%s]", s.ordering))
	}
	return sb.String()
}

// TableScan reads a finite table.
type TableScan struct {
	scanBase
}

func NewTableScan(table string, schema *Schema, partitions int, ordering expr.Ordering) (*TableScan, error) {
	base, err := newScanBase("TableScan", table, schema, partitions, ordering)
	if err != nil {
		return nil, err
	}
	return &TableScan{scanBase: base}, nil
}

func (t *TableScan) Table() string {
	return t.name
}

func (t *TableScan) WithNewChildren(children []Node) (Node, error) {
	if err := checkChildCount("TableScan", children, 0); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *TableScan) Unbounded() bool {
	return false
}

func (t *TableScan) Describe() string {
	return t.describe("TableScan: table=" + t.name)
}

// SourceScan reads a stream that never ends, such as a topic.
type SourceScan struct {
	scanBase
}

func NewSourceScan(source string, schema *Schema, partitions int, ordering expr.Ordering) (*SourceScan, error) {
	base, err := newScanBase("SourceScan", source, schema, partitions, ordering)
	if err != nil {
		return nil, err
	}
	return &SourceScan{scanBase: base}, nil
}

func (s *SourceScan) Source() string {
	return s.name
}

func (s *SourceScan) WithNewChildren(children []Node) (Node, error) {
	if err := checkChildCount("SourceScan", children, 0); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SourceScan) Unbounded() bool {
	return true
}

func (s *SourceScan) Describe() string {
	return s.describe("SourceScan: source=" + s.name) + ", unbounded=true"
}
