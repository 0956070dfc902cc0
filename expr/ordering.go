package expr

import (
	"strings"

	"github.com/cznic/mathutil"
)

// SortOptions default to ascending with nulls first.
type SortOptions struct {
	Descending bool
	NullsFirst bool
}

var DefaultSortOptions = SortOptions{NullsFirst: true}

func (o SortOptions) String() string {
	switch {
	case !o.Descending && o.NullsFirst:
		return "ASC"
	case !o.Descending:
		return "ASC NULLS LAST"
	case o.NullsFirst:
		return "DESC"
	default:
		return "DESC NULLS LAST"
	}
}

type SortExpr struct {
	Expr    Expression
	Options SortOptions
}

func NewSortExpr(e Expression, options SortOptions) SortExpr {
	return SortExpr{Expr: e, Options: options}
}

func (s SortExpr) String() string {
	return s.Expr.String() + " " + s.Options.String()
}

func (s SortExpr) Equal(other SortExpr) bool {
	return s.Options == other.Options && s.Expr.Equal(other.Expr)
}

// Ordering is a lexicographic sort order. An empty Ordering means no known order.
type Ordering []SortExpr

func (o Ordering) String() string {
	parts := make([]string, len(o))
	for i, se := range o {
		parts[i] = se.String()
	}
	return strings.Join(parts, ", ")
}

func (o Ordering) Equal(other Ordering) bool {
	return len(o) == len(other) && CommonPrefixLen(o, other) == len(o)
}

// HasPrefix returns true if the first len(prefix) keys of o equal prefix.
func (o Ordering) HasPrefix(prefix Ordering) bool {
	return CommonPrefixLen(o, prefix) == len(prefix)
}

func (o Ordering) Exprs() []Expression {
	exprs := make([]Expression, len(o))
	for i, se := range o {
		exprs[i] = se.Expr
	}
	return exprs
}

func CommonPrefixLen(a Ordering, b Ordering) int {
	n := mathutil.Min(len(a), len(b))
	for i := 0; i < n; i++ {
		if !a[i].Equal(b[i]) {
			return i
		}
	}
	return n
}
