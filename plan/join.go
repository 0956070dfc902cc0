package plan

import (
	"fmt"
	"strings"

	"github.com/squareup/planopt/errors"
	"github.com/squareup/planopt/expr"
)

type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
	RightJoin
	FullJoin
)

var joinTypeNames = []string{"Inner", "Left", "Right", "Full"}

func (j JoinType) String() string {
	return joinTypeNames[j]
}

// ParseJoinType accepts the join type names case-insensitively.
func ParseJoinType(s string) (JoinType, error) {
	for i, name := range joinTypeNames {
		if strings.EqualFold(name, s) {
			return JoinType(i), nil
		}
	}
	return 0, errors.WithStack(errors.NewInvalidPlanError("HashJoin", fmt.Sprintf("unknown join type %s", s)))
}

// JoinOn is one equality condition of a join: Left is evaluated against the left input and Right against the
// right input.
type JoinOn struct {
	Left  expr.Expression
	Right expr.Expression
}

// HashJoin is a partitioned hash join. The output columns are the left input's followed by the right input's.
type HashJoin struct {
	nodeBase
	on       []JoinOn
	joinType JoinType
	eqProps  *EquivalenceProperties
}

func NewHashJoin(left Node, right Node, on []JoinOn, joinType JoinType) (*HashJoin, error) {
	if err := checkInput("HashJoin", left); err != nil {
		return nil, err
	}
	if err := checkInput("HashJoin", right); err != nil {
		return nil, err
	}
	if len(on) == 0 {
		return nil, errors.WithStack(errors.NewInvalidPlanError("HashJoin", "at least one join condition is required"))
	}
	for _, cond := range on {
		if err := validateExprs("HashJoin", left.Schema(), cond.Left); err != nil {
			return nil, err
		}
		if err := validateExprs("HashJoin", right.Schema(), cond.Right); err != nil {
			return nil, err
		}
	}
	j := &HashJoin{
		nodeBase: nodeBase{schema: left.Schema().Concat(right.Schema()), children: []Node{left, right}},
		on:       on,
		joinType: joinType,
	}
	j.eqProps = j.computeEquivalenceProperties()
	return j, nil
}

func (j *HashJoin) computeEquivalenceProperties() *EquivalenceProperties {
	left, right := j.children[0], j.children[1]
	offset := left.Schema().Len()
	res := NewEquivalenceProperties()
	switch j.joinType {
	case InnerJoin:
		res.Merge(left.EquivalenceProperties())
		res.Merge(right.EquivalenceProperties().Shift(offset))
		for _, cond := range j.on {
			res.AddEqualConditions(cond.Left, expr.ShiftColumns(cond.Right, offset))
		}
	case LeftJoin:
		res.Merge(left.EquivalenceProperties())
	case RightJoin:
		res.Merge(right.EquivalenceProperties().Shift(offset))
	}
	return res
}

func (j *HashJoin) On() []JoinOn {
	return j.on
}

func (j *HashJoin) JoinType() JoinType {
	return j.joinType
}

func (j *HashJoin) WithNewChildren(children []Node) (Node, error) {
	if err := checkChildCount("HashJoin", children, 2); err != nil {
		return nil, err
	}
	return NewHashJoin(children[0], children[1], j.on, j.joinType)
}

func (j *HashJoin) MaintainsInputOrder() []bool {
	return []bool{false, false}
}

func (j *HashJoin) OutputOrdering() expr.Ordering {
	return nil
}

func (j *HashJoin) OutputPartitioning() Partitioning {
	return j.children[0].OutputPartitioning()
}

func (j *HashJoin) EquivalenceProperties() *EquivalenceProperties {
	return j.eqProps
}

func (j *HashJoin) Describe() string {
	parts := make([]string, len(j.on))
	for i, cond := range j.on {
		parts[i] = fmt.Sprintf("(%s, %s)", cond.Left, cond.Right)
	}
	return fmt.Sprintf("HashJoin: join_type=%s, on=[%s]", j.joinType, strings.Join(parts, ", "))
}
