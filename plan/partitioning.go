package plan

import (
	"fmt"

	"github.com/squareup/planopt/errors"
	"github.com/squareup/planopt/expr"
)

type PartitioningScheme int

const (
	RoundRobinBatch PartitioningScheme = iota
	Hash
	UnknownPartitioning
)

// Partitioning describes how an operator's output rows are split across partitions.
type Partitioning struct {
	Scheme PartitioningScheme
	Exprs  []expr.Expression
	Count  int
}

func NewRoundRobinPartitioning(count int) Partitioning {
	return Partitioning{Scheme: RoundRobinBatch, Count: count}
}

func NewHashPartitioning(exprs []expr.Expression, count int) Partitioning {
	return Partitioning{Scheme: Hash, Exprs: exprs, Count: count}
}

func NewUnknownPartitioning(count int) Partitioning {
	return Partitioning{Scheme: UnknownPartitioning, Count: count}
}

func (p Partitioning) PartitionCount() int {
	return p.Count
}

func (p Partitioning) String() string {
	switch p.Scheme {
	case RoundRobinBatch:
		return fmt.Sprintf("RoundRobinBatch(%d)", p.Count)
	case Hash:
		return fmt.Sprintf("Hash([%s], %d)", expr.JoinStrings(p.Exprs), p.Count)
	default:
		return fmt.Sprintf("UnknownPartitioning(%d)", p.Count)
	}
}

func (p Partitioning) Equal(other Partitioning) bool {
	if p.Scheme != other.Scheme || p.Count != other.Count || len(p.Exprs) != len(other.Exprs) {
		return false
	}
	for i, e := range p.Exprs {
		if !e.Equal(other.Exprs[i]) {
			return false
		}
	}
	return true
}

// Validate checks the partitioning can be produced from input rows with the given schema.
func (p Partitioning) Validate(input *Schema) error {
	if p.Count < 1 {
		return errors.WithStack(errors.NewInvalidPartitioningError(
			fmt.Sprintf("partition count must be >= 1, got %d", p.Count)))
	}
	if p.Scheme != Hash {
		return nil
	}
	if len(p.Exprs) == 0 {
		return errors.WithStack(errors.NewInvalidPartitioningError("hash partitioning requires at least one expression"))
	}
	if c := input.missingColumn(p.Exprs...); c != nil {
		return errors.WithStack(errors.NewInvalidPartitioningError(
			fmt.Sprintf("hash expression %s is not in input schema %s", c, input)))
	}
	return nil
}
