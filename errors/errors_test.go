package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlanErrorFormat(t *testing.T) {
	err := NewInvalidPartitioningError("partition count must be >= 1, got 0")
	require.Equal(t, "PLN0002 - Invalid partitioning: partition count must be >= 1, got 0", err.Error())
	require.Equal(t, InvalidPartitioning, err.Code)
}

func TestHasCodeThroughWraps(t *testing.T) {
	err := Wrap(WithStack(NewInvalidPlanError("Sort", "no sort keys")), "building alternative")
	require.True(t, HasCode(err, InvalidPlan))
	require.False(t, HasCode(err, InvalidPartitioning))
	require.False(t, HasCode(New("plain"), InvalidPlan))
	require.Equal(t, "building alternative: PLN0003 - Invalid Sort: no sort keys", err.Error())
}

func TestCause(t *testing.T) {
	root := NewInvalidConfigurationError("TargetPartitions must be >= 1")
	err := Wrapf(WithStack(root), "loading %s", "planopt.hcl")
	require.Equal(t, root, Cause(err))
	require.True(t, Is(err, root))
}

func TestNilWraps(t *testing.T) {
	require.Nil(t, Wrap(nil, "x"))
	require.Nil(t, Wrapf(nil, "x %d", 1))
	require.Nil(t, WithStack(nil))
}

func TestFormatPlusV(t *testing.T) {
	err := Errorf("bad plan %d", 7)
	s := fmt.Sprintf("%+v", err)
	require.Contains(t, s, "bad plan 7")
	require.Contains(t, s, "TestFormatPlusV")
	require.Equal(t, "bad plan 7", fmt.Sprintf("%v", err))
	require.Equal(t, `"bad plan 7"`, fmt.Sprintf("%q", err))
}

func TestRedundantStackSuppressed(t *testing.T) {
	inner := New("inner")
	outer := WithStack(inner)
	se, ok := outer.(*stackErr)
	require.True(t, ok)
	require.Nil(t, se.StackTrace())
}
