package plan

import (
	"testing"

	"github.com/squareup/planopt/common"
	"github.com/squareup/planopt/errors"
	"github.com/squareup/planopt/expr"
	"github.com/stretchr/testify/require"
)

func testSchema() *Schema {
	return NewSchema(
		common.ColumnInfo{Name: "a", ColumnType: common.IntColumnType},
		common.ColumnInfo{Name: "c", ColumnType: common.IntColumnType},
		common.ColumnInfo{Name: "d", ColumnType: common.VarcharColumnType},
	)
}

func col(schema *Schema, name string) *expr.Column {
	return schema.Column(name)
}

func asc(schema *Schema, names ...string) expr.Ordering {
	var o expr.Ordering
	for _, name := range names {
		o = append(o, expr.NewSortExpr(col(schema, name), expr.SortOptions{}))
	}
	return o
}

func sortedScan(t *testing.T, partitions int) *TableScan {
	t.Helper()
	s := testSchema()
	scan, err := NewTableScan("t", s, partitions, asc(s, "a"))
	require.NoError(t, err)
	return scan
}

func TestScan(t *testing.T) {
	scan := sortedScan(t, 1)
	require.False(t, scan.Unbounded())
	require.Equal(t, "TableScan: table=t, columns=[a, c, d], partitions=1, output_ordering=[a@0 ASC NULLS LAST]",
		scan.Describe())
	require.Equal(t, 1, scan.OutputPartitioning().PartitionCount())
	require.Empty(t, scan.Children())

	source, err := NewSourceScan("s", testSchema(), 1, nil)
	require.NoError(t, err)
	require.True(t, source.Unbounded())
	require.Equal(t, "SourceScan: source=s, columns=[a, c, d], partitions=1, unbounded=true", source.Describe())

	_, err = NewTableScan("t", testSchema(), 0, nil)
	require.True(t, errors.HasCode(err, errors.InvalidPlan))
	_, err = NewTableScan("t", testSchema(), 1, expr.Ordering{expr.NewSortExpr(expr.NewColumn("z", 7), expr.SortOptions{})})
	require.True(t, errors.HasCode(err, errors.InvalidPlan))
}

func TestUnboundedPropagates(t *testing.T) {
	source, err := NewSourceScan("s", testSchema(), 1, nil)
	require.NoError(t, err)
	rr, err := NewRepartition(source, NewRoundRobinPartitioning(8))
	require.NoError(t, err)
	cp, err := NewCoalescePartitions(rr)
	require.NoError(t, err)
	require.True(t, cp.Unbounded())

	join, err := NewHashJoin(sortedScan(t, 1), cp, []JoinOn{{Left: col(testSchema(), "c"), Right: col(testSchema(), "c")}},
		InnerJoin)
	require.NoError(t, err)
	require.True(t, join.Unbounded())
}

func TestRepartitionMaintainsOrder(t *testing.T) {
	scan := sortedScan(t, 1)
	// a single input partition keeps its order without being asked to
	rr, err := NewRepartition(scan, NewRoundRobinPartitioning(8))
	require.NoError(t, err)
	require.Equal(t, []bool{true}, rr.MaintainsInputOrder())
	require.Equal(t, asc(testSchema(), "a"), rr.OutputOrdering())
	require.False(t, rr.WithPreserveOrder().PreserveOrder())

	hash, err := NewRepartition(rr, NewHashPartitioning([]expr.Expression{col(testSchema(), "c")}, 8))
	require.NoError(t, err)
	require.Equal(t, []bool{false}, hash.MaintainsInputOrder())
	require.Nil(t, hash.OutputOrdering())
	require.False(t, hash.EquivalenceProperties().OrderingSatisfy(asc(testSchema(), "a")))
	require.Equal(t, "Repartition: partitioning=Hash([c@1], 8), input_partitions=8", hash.Describe())

	preserving := hash.WithPreserveOrder()
	require.True(t, preserving.PreserveOrder())
	require.Equal(t, []bool{true}, preserving.MaintainsInputOrder())
	require.Equal(t, asc(testSchema(), "a"), preserving.OutputOrdering())
	require.True(t, preserving.EquivalenceProperties().OrderingSatisfy(asc(testSchema(), "a")))
	require.Equal(t,
		"Repartition: partitioning=Hash([c@1], 8), input_partitions=8, preserve_order=true, sort_exprs=a@0 ASC NULLS LAST",
		preserving.Describe())
	// the original is untouched
	require.False(t, hash.PreserveOrder())

	rebuilt, err := preserving.WithNewChildren([]Node{rr})
	require.NoError(t, err)
	require.True(t, rebuilt.(*Repartition).PreserveOrder())
}

func TestRepartitionPreserveOrderNeedsOrdering(t *testing.T) {
	scan, err := NewTableScan("t", testSchema(), 4, nil)
	require.NoError(t, err)
	hash, err := NewRepartition(scan, NewHashPartitioning([]expr.Expression{col(testSchema(), "c")}, 8))
	require.NoError(t, err)
	require.False(t, hash.WithPreserveOrder().PreserveOrder())
}

func TestRepartitionInvalidPartitioning(t *testing.T) {
	scan := sortedScan(t, 1)
	_, err := NewRepartition(scan, NewRoundRobinPartitioning(0))
	require.True(t, errors.HasCode(err, errors.InvalidPartitioning))
	_, err = NewRepartition(scan, NewHashPartitioning(nil, 8))
	require.True(t, errors.HasCode(err, errors.InvalidPartitioning))
	_, err = NewRepartition(scan, NewHashPartitioning([]expr.Expression{expr.NewColumn("x", 0)}, 8))
	require.True(t, errors.HasCode(err, errors.InvalidPartitioning))
	require.Equal(t, "PLN0002 - Invalid partitioning: hash expression x@0 is not in input schema [a INT, c INT, d VARCHAR]",
		errors.Cause(err).Error())
}

func TestSortAndMerge(t *testing.T) {
	s := testSchema()
	scan, err := NewTableScan("t", s, 4, nil)
	require.NoError(t, err)
	sort, err := NewSort(scan, asc(s, "c"), true)
	require.NoError(t, err)
	require.Equal(t, 4, sort.OutputPartitioning().PartitionCount())
	require.Equal(t, []bool{false}, sort.MaintainsInputOrder())
	require.Equal(t, "Sort: expr=[c@1 ASC NULLS LAST], preserve_partitioning=true", sort.Describe())

	single, err := NewSort(scan, asc(s, "c"), false)
	require.NoError(t, err)
	require.Equal(t, 1, single.OutputPartitioning().PartitionCount())

	spm, err := NewSortPreservingMerge(sort, asc(s, "c"))
	require.NoError(t, err)
	require.Equal(t, 1, spm.OutputPartitioning().PartitionCount())
	require.Equal(t, []expr.Ordering{asc(s, "c")}, spm.RequiredInputOrdering())
	require.Equal(t, []expr.Ordering{nil}, sort.RequiredInputOrdering())
	require.Equal(t, "SortPreservingMerge: [c@1 ASC NULLS LAST]", spm.Describe())

	_, err = NewSort(scan, nil, false)
	require.True(t, errors.HasCode(err, errors.InvalidPlan))
}

func TestCoalescePartitionsLosesOrder(t *testing.T) {
	scan := sortedScan(t, 4)
	cp, err := NewCoalescePartitions(scan)
	require.NoError(t, err)
	require.Nil(t, cp.OutputOrdering())
	require.Equal(t, []bool{false}, cp.MaintainsInputOrder())
	require.Equal(t, 1, cp.OutputPartitioning().PartitionCount())
	require.False(t, cp.EquivalenceProperties().OrderingSatisfy(asc(testSchema(), "a")))
}

func TestFilterEquivalences(t *testing.T) {
	s := testSchema()
	scan := sortedScan(t, 1)
	pred := expr.NewBinaryExpr(
		expr.NewBinaryExpr(col(s, "a"), expr.OpEq, col(s, "c")),
		expr.OpAnd,
		expr.NewBinaryExpr(col(s, "d"), expr.OpEq, expr.NewLiteral("'x'")))
	filter, err := NewFilter(scan, pred)
	require.NoError(t, err)
	require.Equal(t, []bool{true}, filter.MaintainsInputOrder())
	eq := filter.EquivalenceProperties()
	// ordered by a, and a = c
	require.True(t, eq.OrderingSatisfy(asc(s, "c")))
	// d is constant so it can be skipped anywhere in a requirement
	require.True(t, eq.OrderingSatisfy(asc(s, "d", "a")))
	require.True(t, eq.OrderingSatisfy(asc(s, "a", "c")))
	require.False(t, eq.OrderingSatisfy(expr.Ordering{expr.NewSortExpr(col(s, "a"), expr.SortOptions{Descending: true})}))
	// the scan's own properties are not affected
	require.False(t, scan.EquivalenceProperties().OrderingSatisfy(asc(s, "c")))
	require.Equal(t, "Filter: a@0 = c@1 AND d@2 = 'x'", filter.Describe())
}

func TestEquivalenceClassMerge(t *testing.T) {
	a, b, c, d := expr.NewColumn("a", 0), expr.NewColumn("b", 1), expr.NewColumn("c", 2), expr.NewColumn("d", 3)
	eq := NewEquivalenceProperties()
	eq.AddEqualConditions(a, b)
	eq.AddEqualConditions(c, d)
	require.Len(t, eq.Classes(), 2)
	eq.AddEqualConditions(b, d)
	require.Len(t, eq.Classes(), 1)
	require.True(t, eq.NormalizeExpr(d).Equal(a))
	eq.AddOrdering(expr.Ordering{expr.NewSortExpr(c, expr.SortOptions{})})
	require.True(t, eq.OrderingSatisfy(expr.Ordering{expr.NewSortExpr(b, expr.SortOptions{}), expr.NewSortExpr(d, expr.SortOptions{})}))
	require.True(t, eq.OrderingSatisfy(nil))
}

func TestProjection(t *testing.T) {
	s := testSchema()
	scan, err := NewTableScan("t", s, 1, asc(s, "a", "c"))
	require.NoError(t, err)

	proj, err := NewProjection(scan, []expr.Expression{col(s, "c"), col(s, "a")}, []string{"c", "a"})
	require.NoError(t, err)
	ps := proj.Schema()
	require.Equal(t, []string{"c", "a"}, ps.ColumnNames())
	require.Equal(t, "a@1 ASC NULLS LAST, c@0 ASC NULLS LAST", proj.OutputOrdering().String())
	require.True(t, proj.EquivalenceProperties().OrderingSatisfy(asc(ps, "a", "c")))
	require.Equal(t, "Projection: expr=[c@1 as c, a@0 as a]", proj.Describe())

	// dropping a truncates the ordering at its first key
	dropped, err := NewProjection(scan, []expr.Expression{col(s, "c")}, []string{"c"})
	require.NoError(t, err)
	require.Nil(t, dropped.OutputOrdering())
	require.Empty(t, dropped.EquivalenceProperties().Orderings())

	_, err = NewProjection(scan, []expr.Expression{col(s, "c")}, nil)
	require.True(t, errors.HasCode(err, errors.InvalidPlan))
}

func TestProjectionPartitioning(t *testing.T) {
	s := testSchema()
	scan := sortedScan(t, 1)
	hash, err := NewRepartition(scan, NewHashPartitioning([]expr.Expression{col(s, "c")}, 8))
	require.NoError(t, err)
	kept, err := NewProjection(hash, []expr.Expression{col(s, "a"), col(s, "c")}, []string{"a", "c2"})
	require.NoError(t, err)
	require.Equal(t, "Hash([c2@1], 8)", kept.OutputPartitioning().String())
	lost, err := NewProjection(hash, []expr.Expression{col(s, "a")}, []string{"a"})
	require.NoError(t, err)
	require.Equal(t, "UnknownPartitioning(8)", lost.OutputPartitioning().String())
}

func TestHashJoin(t *testing.T) {
	s := testSchema()
	left := sortedScan(t, 1)
	right := sortedScan(t, 1)
	join, err := NewHashJoin(left, right, []JoinOn{{Left: col(s, "c"), Right: col(s, "c")}}, InnerJoin)
	require.NoError(t, err)
	require.Equal(t, 6, join.Schema().Len())
	require.Equal(t, []bool{false, false}, join.MaintainsInputOrder())
	require.Nil(t, join.OutputOrdering())
	require.Equal(t, "HashJoin: join_type=Inner, on=[(c@1, c@1)]", join.Describe())
	eq := join.EquivalenceProperties()
	require.True(t, eq.NormalizeExpr(expr.NewColumn("c", 4)).Equal(expr.NewColumn("c", 1)))

	left2, err := NewHashJoin(left, right, []JoinOn{{Left: col(s, "c"), Right: col(s, "c")}}, LeftJoin)
	require.NoError(t, err)
	require.Empty(t, left2.EquivalenceProperties().Classes())

	jt, err := ParseJoinType("full")
	require.NoError(t, err)
	require.Equal(t, FullJoin, jt)
	_, err = ParseJoinType("cross")
	require.Error(t, err)

	_, err = join.WithNewChildren([]Node{left})
	require.True(t, errors.HasCode(err, errors.InvalidPlan))
}

func TestFormatAndFingerprint(t *testing.T) {
	s := testSchema()
	scan := sortedScan(t, 1)
	rr, err := NewRepartition(scan, NewRoundRobinPartitioning(8))
	require.NoError(t, err)
	sort, err := NewSort(rr, asc(s, "a"), true)
	require.NoError(t, err)
	spm, err := NewSortPreservingMerge(sort, asc(s, "a"))
	require.NoError(t, err)

	expected := []string{
		"SortPreservingMerge: [a@0 ASC NULLS LAST]",
		"  Sort: expr=[a@0 ASC NULLS LAST], preserve_partitioning=true",
		"    Repartition: partitioning=RoundRobinBatch(8), input_partitions=1",
		"      TableScan: table=t, columns=[a, c, d], partitions=1, output_ordering=[a@0 ASC NULLS LAST]",
	}
	require.Equal(t, expected, Lines(spm))

	rebuilt, err := spm.WithNewChildren([]Node{sort})
	require.NoError(t, err)
	require.Equal(t, Fingerprint(spm), Fingerprint(rebuilt))
	require.NotEqual(t, Fingerprint(spm), Fingerprint(sort))
	require.Len(t, FingerprintString(spm), 16)
}
