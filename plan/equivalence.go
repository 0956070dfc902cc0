package plan

import (
	"github.com/squareup/planopt/expr"
)

// EquivalenceProperties describes what is known about an operator's output beyond its schema: groups of
// expressions that always hold equal values, expressions that are constant, and orderings the output satisfies.
//
// Values are built while constructing a node and are read-only once the node exists.
type EquivalenceProperties struct {
	classes   [][]expr.Expression
	constants []expr.Expression
	orderings []expr.Ordering
}

func NewEquivalenceProperties() *EquivalenceProperties {
	return &EquivalenceProperties{}
}

func (e *EquivalenceProperties) Clone() *EquivalenceProperties {
	res := &EquivalenceProperties{
		classes:   make([][]expr.Expression, len(e.classes)),
		constants: append([]expr.Expression(nil), e.constants...),
		orderings: append([]expr.Ordering(nil), e.orderings...),
	}
	for i, class := range e.classes {
		res.classes[i] = append([]expr.Expression(nil), class...)
	}
	return res
}

// WithOrderings returns a copy of e that keeps the classes and constants but knows only the given orderings.
func (e *EquivalenceProperties) WithOrderings(orderings ...expr.Ordering) *EquivalenceProperties {
	res := e.Clone()
	res.orderings = nil
	for _, o := range orderings {
		res.AddOrdering(o)
	}
	return res
}

func (e *EquivalenceProperties) Classes() [][]expr.Expression {
	return e.classes
}

func (e *EquivalenceProperties) Constants() []expr.Expression {
	return e.constants
}

func (e *EquivalenceProperties) Orderings() []expr.Ordering {
	return e.orderings
}

// AddEqualConditions records that left and right always hold the same value, merging classes as needed.
func (e *EquivalenceProperties) AddEqualConditions(left expr.Expression, right expr.Expression) {
	if left.Equal(right) {
		return
	}
	li, ri := e.classIndex(left), e.classIndex(right)
	switch {
	case li == -1 && ri == -1:
		e.classes = append(e.classes, []expr.Expression{left, right})
	case li == -1:
		e.classes[ri] = append(e.classes[ri], left)
	case ri == -1:
		e.classes[li] = append(e.classes[li], right)
	case li != ri:
		e.classes[li] = append(e.classes[li], e.classes[ri]...)
		e.classes = append(e.classes[:ri], e.classes[ri+1:]...)
	}
}

func (e *EquivalenceProperties) AddConstants(exprs ...expr.Expression) {
	for _, ex := range exprs {
		if !expr.Contains(e.constants, ex) {
			e.constants = append(e.constants, ex)
		}
	}
}

func (e *EquivalenceProperties) AddOrdering(o expr.Ordering) {
	if len(o) == 0 {
		return
	}
	for _, existing := range e.orderings {
		if existing.Equal(o) {
			return
		}
	}
	e.orderings = append(e.orderings, o)
}

// Merge adds the classes and constants of other. Orderings are not merged.
func (e *EquivalenceProperties) Merge(other *EquivalenceProperties) {
	for _, class := range other.classes {
		for _, member := range class[1:] {
			e.AddEqualConditions(class[0], member)
		}
	}
	e.AddConstants(other.constants...)
}

// Shift returns a copy of e with every column reference moved right by offset.
func (e *EquivalenceProperties) Shift(offset int) *EquivalenceProperties {
	res := NewEquivalenceProperties()
	for _, class := range e.classes {
		shifted := make([]expr.Expression, len(class))
		for i, member := range class {
			shifted[i] = expr.ShiftColumns(member, offset)
		}
		res.classes = append(res.classes, shifted)
	}
	for _, c := range e.constants {
		res.constants = append(res.constants, expr.ShiftColumns(c, offset))
	}
	for _, o := range e.orderings {
		shifted := make(expr.Ordering, len(o))
		for i, se := range o {
			shifted[i] = expr.NewSortExpr(expr.ShiftColumns(se.Expr, offset), se.Options)
		}
		res.orderings = append(res.orderings, shifted)
	}
	return res
}

func (e *EquivalenceProperties) classIndex(ex expr.Expression) int {
	for i, class := range e.classes {
		if expr.Contains(class, ex) {
			return i
		}
	}
	return -1
}

// classOf returns every expression known to be equal to ex, ex included and first.
func (e *EquivalenceProperties) classOf(ex expr.Expression) []expr.Expression {
	res := []expr.Expression{ex}
	if i := e.classIndex(ex); i != -1 {
		for _, member := range e.classes[i] {
			if !member.Equal(ex) {
				res = append(res, member)
			}
		}
	}
	return res
}

// NormalizeExpr replaces ex with the representative of its class.
func (e *EquivalenceProperties) NormalizeExpr(ex expr.Expression) expr.Expression {
	if i := e.classIndex(ex); i != -1 {
		return e.classes[i][0]
	}
	return ex
}

func (e *EquivalenceProperties) IsConstant(ex expr.Expression) bool {
	for _, member := range e.classOf(ex) {
		if expr.Contains(e.constants, member) {
			return true
		}
	}
	return false
}

// NormalizeOrdering rewrites o in terms of class representatives, then drops keys on constant expressions and
// keys whose expression already appeared earlier in the ordering.
func (e *EquivalenceProperties) NormalizeOrdering(o expr.Ordering) expr.Ordering {
	var res expr.Ordering
	var seen []expr.Expression
	for _, se := range o {
		if e.IsConstant(se.Expr) {
			continue
		}
		norm := e.NormalizeExpr(se.Expr)
		if expr.Contains(seen, norm) {
			continue
		}
		seen = append(seen, norm)
		res = append(res, expr.NewSortExpr(norm, se.Options))
	}
	return res
}

// OrderingSatisfy returns true if rows with these properties are already sorted by required.
func (e *EquivalenceProperties) OrderingSatisfy(required expr.Ordering) bool {
	req := e.NormalizeOrdering(required)
	if len(req) == 0 {
		return true
	}
	for _, o := range e.orderings {
		if e.NormalizeOrdering(o).HasPrefix(req) {
			return true
		}
	}
	return false
}

// Project re-expresses e in terms of the output of a projection computing exprs named names. Classes keep the
// members that are projected, and each ordering is cut at its first key that is neither projected nor constant.
func (e *EquivalenceProperties) Project(exprs []expr.Expression, names []string) *EquivalenceProperties {
	targets := projectionTargets(exprs, names)
	res := NewEquivalenceProperties()
	for _, class := range e.classes {
		var outs []expr.Expression
		for _, member := range class {
			outs = append(outs, targets(member)...)
		}
		if len(outs) < 2 {
			continue
		}
		for _, out := range outs[1:] {
			res.AddEqualConditions(outs[0], out)
		}
	}
	for _, ex := range exprs {
		outs := targets(ex)
		for _, out := range outs[1:] {
			res.AddEqualConditions(outs[0], out)
		}
	}
	for _, c := range e.constants {
		res.AddConstants(targets(c)...)
	}
	for _, o := range e.orderings {
		res.AddOrdering(e.projectOrdering(o, targets))
	}
	return res
}

func (e *EquivalenceProperties) projectOrdering(o expr.Ordering, targets func(expr.Expression) []expr.Expression) expr.Ordering {
	var res expr.Ordering
	for _, se := range o {
		out := e.projectExpr(se.Expr, targets)
		if out == nil {
			if e.IsConstant(se.Expr) {
				continue
			}
			break
		}
		res = append(res, expr.NewSortExpr(out, se.Options))
	}
	return res
}

func (e *EquivalenceProperties) projectExpr(ex expr.Expression, targets func(expr.Expression) []expr.Expression) expr.Expression {
	for _, candidate := range e.classOf(ex) {
		if outs := targets(candidate); len(outs) > 0 {
			return outs[0]
		}
	}
	return nil
}

// projectionTargets returns a lookup from an input expression to the output columns that carry its value.
func projectionTargets(exprs []expr.Expression, names []string) func(expr.Expression) []expr.Expression {
	return func(in expr.Expression) []expr.Expression {
		var outs []expr.Expression
		for i, ex := range exprs {
			if ex.Equal(in) {
				outs = append(outs, expr.NewColumn(names[i], i))
			}
		}
		return outs
	}
}
