package expr

import (
	"fmt"
	"strings"
)

// Expression is a scalar expression evaluated against the rows of an operator's input.
type Expression interface {
	fmt.Stringer
	Equal(other Expression) bool
	// Columns returns every column the expression references, in order of appearance.
	Columns() []*Column
}

// Column refers to the column at Index of the input schema. Name is carried for display only.
type Column struct {
	Name  string
	Index int
}

func NewColumn(name string, index int) *Column {
	return &Column{Name: name, Index: index}
}

func (c *Column) String() string {
	return fmt.Sprintf("%s@%d", c.Name, c.Index)
}

func (c *Column) Equal(other Expression) bool {
	oc, ok := other.(*Column)
	return ok && oc.Name == c.Name && oc.Index == c.Index
}

func (c *Column) Columns() []*Column {
	return []*Column{c}
}

// Literal is a constant as written in the plan text, e.g. 3 or 'foo'.
type Literal struct {
	Value string
}

func NewLiteral(value string) *Literal {
	return &Literal{Value: value}
}

func (l *Literal) String() string {
	return l.Value
}

func (l *Literal) Equal(other Expression) bool {
	ol, ok := other.(*Literal)
	return ok && ol.Value == l.Value
}

func (l *Literal) Columns() []*Column {
	return nil
}

type Operator int

const (
	OpEq Operator = iota
	OpNotEq
	OpLt
	OpLtEq
	OpGt
	OpGtEq
	OpAnd
	OpOr
)

var operatorSymbols = []string{"=", "!=", "<", "<=", ">", ">=", "AND", "OR"}

func (o Operator) String() string {
	return operatorSymbols[o]
}

// ParseOperator maps a comparison or boolean symbol to its Operator.
func ParseOperator(s string) (Operator, bool) {
	if s == "<>" {
		return OpNotEq, true
	}
	for i, sym := range operatorSymbols {
		if strings.EqualFold(sym, s) {
			return Operator(i), true
		}
	}
	return 0, false
}

type BinaryExpr struct {
	Left  Expression
	Op    Operator
	Right Expression
}

func NewBinaryExpr(left Expression, op Operator, right Expression) *BinaryExpr {
	return &BinaryExpr{Left: left, Op: op, Right: right}
}

func (b *BinaryExpr) String() string {
	return fmt.Sprintf("%s %s %s", b.Left, b.Op, b.Right)
}

func (b *BinaryExpr) Equal(other Expression) bool {
	ob, ok := other.(*BinaryExpr)
	return ok && ob.Op == b.Op && ob.Left.Equal(b.Left) && ob.Right.Equal(b.Right)
}

func (b *BinaryExpr) Columns() []*Column {
	return append(b.Left.Columns(), b.Right.Columns()...)
}

// Conjuncts splits e on AND.
func Conjuncts(e Expression) []Expression {
	if b, ok := e.(*BinaryExpr); ok && b.Op == OpAnd {
		return append(Conjuncts(b.Left), Conjuncts(b.Right)...)
	}
	return []Expression{e}
}

// RewriteColumns returns a copy of e with every column replaced by the result of f. If f reports that a column
// has no replacement the whole rewrite fails and ok is false.
func RewriteColumns(e Expression, f func(*Column) (Expression, bool)) (Expression, bool) {
	switch ex := e.(type) {
	case *Column:
		return f(ex)
	case *BinaryExpr:
		left, ok := RewriteColumns(ex.Left, f)
		if !ok {
			return nil, false
		}
		right, ok := RewriteColumns(ex.Right, f)
		if !ok {
			return nil, false
		}
		return NewBinaryExpr(left, ex.Op, right), true
	default:
		return e, true
	}
}

// ShiftColumns moves every column reference right by offset. Used when an expression over one join input is
// re-expressed against the join output.
func ShiftColumns(e Expression, offset int) Expression {
	res, _ := RewriteColumns(e, func(c *Column) (Expression, bool) {
		return NewColumn(c.Name, c.Index+offset), true
	})
	return res
}

func Contains(exprs []Expression, e Expression) bool {
	return IndexOf(exprs, e) != -1
}

func IndexOf(exprs []Expression, e Expression) int {
	for i, ex := range exprs {
		if ex.Equal(e) {
			return i
		}
	}
	return -1
}

func JoinStrings(exprs []Expression) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
