package plan

import (
	"fmt"
	"strings"

	"github.com/squareup/planopt/common"
	"github.com/squareup/planopt/errors"
	"github.com/squareup/planopt/expr"
)

// Filter passes through the rows for which the predicate holds.
type Filter struct {
	nodeBase
	predicate expr.Expression
	eqProps   *EquivalenceProperties
}

func NewFilter(input Node, predicate expr.Expression) (*Filter, error) {
	if err := checkInput("Filter", input); err != nil {
		return nil, err
	}
	if predicate == nil {
		return nil, errors.WithStack(errors.NewInvalidPlanError("Filter", "predicate is required"))
	}
	if err := validateExprs("Filter", input.Schema(), predicate); err != nil {
		return nil, err
	}
	eqProps := input.EquivalenceProperties().Clone()
	for _, conj := range expr.Conjuncts(predicate) {
		cmp, ok := conj.(*expr.BinaryExpr)
		if !ok || cmp.Op != expr.OpEq {
			continue
		}
		_, leftCol := cmp.Left.(*expr.Column)
		_, rightCol := cmp.Right.(*expr.Column)
		_, leftLit := cmp.Left.(*expr.Literal)
		_, rightLit := cmp.Right.(*expr.Literal)
		switch {
		case leftCol && rightCol:
			eqProps.AddEqualConditions(cmp.Left, cmp.Right)
		case leftCol && rightLit:
			eqProps.AddConstants(cmp.Left)
		case leftLit && rightCol:
			eqProps.AddConstants(cmp.Right)
		}
	}
	return &Filter{
		nodeBase:  nodeBase{schema: input.Schema(), children: []Node{input}},
		predicate: predicate,
		eqProps:   eqProps,
	}, nil
}

func (f *Filter) Predicate() expr.Expression {
	return f.predicate
}

func (f *Filter) WithNewChildren(children []Node) (Node, error) {
	if err := checkChildCount("Filter", children, 1); err != nil {
		return nil, err
	}
	return NewFilter(children[0], f.predicate)
}

func (f *Filter) MaintainsInputOrder() []bool {
	return []bool{true}
}

func (f *Filter) OutputOrdering() expr.Ordering {
	return f.input().OutputOrdering()
}

func (f *Filter) OutputPartitioning() Partitioning {
	return f.input().OutputPartitioning()
}

func (f *Filter) EquivalenceProperties() *EquivalenceProperties {
	return f.eqProps
}

func (f *Filter) Describe() string {
	return fmt.Sprintf("Filter: %s", f.predicate)
}

// Projection computes one output column per expression.
type Projection struct {
	nodeBase
	exprs   []expr.Expression
	names   []string
	eqProps *EquivalenceProperties
}

func NewProjection(input Node, exprs []expr.Expression, names []string) (*Projection, error) {
	if err := checkInput("Projection", input); err != nil {
		return nil, err
	}
	if len(exprs) == 0 || len(exprs) != len(names) {
		return nil, errors.WithStack(errors.NewInvalidPlanError("Projection",
			fmt.Sprintf("needs one name per expression, got %d expressions and %d names", len(exprs), len(names))))
	}
	inSchema := input.Schema()
	if err := validateExprs("Projection", inSchema, exprs...); err != nil {
		return nil, err
	}
	cols := make([]common.ColumnInfo, len(exprs))
	for i, e := range exprs {
		colType := common.UnknownColumnType
		switch ex := e.(type) {
		case *expr.Column:
			colType = inSchema.Columns[ex.Index].ColumnType
		case *expr.BinaryExpr:
			colType = common.BooleanColumnType
		}
		cols[i] = common.ColumnInfo{Name: names[i], ColumnType: colType}
	}
	return &Projection{
		nodeBase: nodeBase{schema: NewSchema(cols...), children: []Node{input}},
		exprs:    exprs,
		names:    names,
		eqProps:  input.EquivalenceProperties().Project(exprs, names),
	}, nil
}

func (p *Projection) Exprs() []expr.Expression {
	return p.exprs
}

func (p *Projection) WithNewChildren(children []Node) (Node, error) {
	if err := checkChildCount("Projection", children, 1); err != nil {
		return nil, err
	}
	return NewProjection(children[0], p.exprs, p.names)
}

func (p *Projection) MaintainsInputOrder() []bool {
	return []bool{true}
}

func (p *Projection) OutputOrdering() expr.Ordering {
	inEq := p.input().EquivalenceProperties()
	return inEq.projectOrdering(p.input().OutputOrdering(), projectionTargets(p.exprs, p.names))
}

// OutputPartitioning keeps hash partitioning when every hash expression survives the projection.
func (p *Projection) OutputPartitioning() Partitioning {
	in := p.input().OutputPartitioning()
	if in.Scheme != Hash {
		return in
	}
	inEq := p.input().EquivalenceProperties()
	targets := projectionTargets(p.exprs, p.names)
	exprs := make([]expr.Expression, len(in.Exprs))
	for i, e := range in.Exprs {
		projected, ok := expr.RewriteColumns(e, func(c *expr.Column) (expr.Expression, bool) {
			out := inEq.projectExpr(c, targets)
			return out, out != nil
		})
		if !ok {
			return NewUnknownPartitioning(in.Count)
		}
		exprs[i] = projected
	}
	return NewHashPartitioning(exprs, in.Count)
}

func (p *Projection) EquivalenceProperties() *EquivalenceProperties {
	return p.eqProps
}

func (p *Projection) Describe() string {
	parts := make([]string, len(p.exprs))
	for i, e := range p.exprs {
		parts[i] = fmt.Sprintf("%s as %s", e, p.names[i])
	}
	return fmt.Sprintf("Projection: expr=[%s]", strings.Join(parts, ", "))
}

// CoalesceBatches buffers small batches into batches of around targetBatchSize rows.
type CoalesceBatches struct {
	nodeBase
	targetBatchSize int
}

func NewCoalesceBatches(input Node, targetBatchSize int) (*CoalesceBatches, error) {
	if err := checkInput("CoalesceBatches", input); err != nil {
		return nil, err
	}
	if targetBatchSize < 1 {
		return nil, errors.WithStack(errors.NewInvalidPlanError("CoalesceBatches",
			fmt.Sprintf("target_batch_size must be >= 1, got %d", targetBatchSize)))
	}
	return &CoalesceBatches{
		nodeBase:        nodeBase{schema: input.Schema(), children: []Node{input}},
		targetBatchSize: targetBatchSize,
	}, nil
}

func (c *CoalesceBatches) WithNewChildren(children []Node) (Node, error) {
	if err := checkChildCount("CoalesceBatches", children, 1); err != nil {
		return nil, err
	}
	return NewCoalesceBatches(children[0], c.targetBatchSize)
}

func (c *CoalesceBatches) MaintainsInputOrder() []bool {
	return []bool{true}
}

func (c *CoalesceBatches) OutputOrdering() expr.Ordering {
	return c.input().OutputOrdering()
}

func (c *CoalesceBatches) OutputPartitioning() Partitioning {
	return c.input().OutputPartitioning()
}

func (c *CoalesceBatches) EquivalenceProperties() *EquivalenceProperties {
	return c.input().EquivalenceProperties()
}

func (c *CoalesceBatches) Describe() string {
	return fmt.Sprintf("CoalesceBatches: target_batch_size=%d", c.targetBatchSize)
}

// CoalescePartitions merges all input partitions into one, in no particular order.
type CoalescePartitions struct {
	nodeBase
	eqProps *EquivalenceProperties
}

func NewCoalescePartitions(input Node) (*CoalescePartitions, error) {
	if err := checkInput("CoalescePartitions", input); err != nil {
		return nil, err
	}
	return &CoalescePartitions{
		nodeBase: nodeBase{schema: input.Schema(), children: []Node{input}},
		eqProps:  input.EquivalenceProperties().WithOrderings(),
	}, nil
}

func (c *CoalescePartitions) WithNewChildren(children []Node) (Node, error) {
	if err := checkChildCount("CoalescePartitions", children, 1); err != nil {
		return nil, err
	}
	return NewCoalescePartitions(children[0])
}

func (c *CoalescePartitions) MaintainsInputOrder() []bool {
	return []bool{false}
}

func (c *CoalescePartitions) OutputOrdering() expr.Ordering {
	return nil
}

func (c *CoalescePartitions) OutputPartitioning() Partitioning {
	return NewUnknownPartitioning(1)
}

func (c *CoalescePartitions) EquivalenceProperties() *EquivalenceProperties {
	return c.eqProps
}

func (c *CoalescePartitions) Describe() string {
	return "CoalescePartitions"
}
