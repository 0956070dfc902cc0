package optimizer

import (
	"fmt"
	"sync"
	"testing"

	"github.com/squareup/planopt/conf"
	"github.com/squareup/planopt/errors"
	"github.com/squareup/planopt/expr"
	"github.com/squareup/planopt/metrics"
	"github.com/squareup/planopt/plan"
	"github.com/squareup/planopt/plan/parser"
	"github.com/stretchr/testify/require"
)

type countingFactory struct {
	lock     sync.Mutex
	counters map[string]*countingCounter
}

type countingCounter struct {
	lock  sync.Mutex
	count int
}

func (c *countingCounter) Inc() {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.count++
}

func (c *countingCounter) value() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.count
}

func newCountingFactory() *countingFactory {
	return &countingFactory{counters: map[string]*countingCounter{}}
}

func (f *countingFactory) CreateCounter(name string, _ string) (metrics.Counter, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	c := &countingCounter{}
	f.counters[name] = c
	return c, nil
}

func (f *countingFactory) Start() error {
	return nil
}

func (f *countingFactory) Stop() error {
	return nil
}

func (f *countingFactory) count(name string) int {
	f.lock.Lock()
	defer f.lock.Unlock()
	c, ok := f.counters[name]
	if !ok {
		return -1
	}
	return c.value()
}

func TestNewOptimizerRules(t *testing.T) {
	o, err := NewOptimizer(conf.NewTestConfig(false), nil)
	require.NoError(t, err)
	require.Equal(t, 2, len(o.Rules()))
	require.Equal(t, "ReplaceWithOrderPreservingVariants", o.Rules()[0].Name())
	require.Equal(t, "PipelineChecker", o.Rules()[1].Name())

	cfg := conf.NewTestConfig(false)
	cfg.SkipPipelineCheck = true
	o, err = NewOptimizer(cfg, nil)
	require.NoError(t, err)
	require.Equal(t, 1, len(o.Rules()))
}

func TestNewOptimizerInvalidConfig(t *testing.T) {
	cfg := conf.NewTestConfig(false)
	cfg.TargetPartitions = 0
	_, err := NewOptimizer(cfg, nil)
	require.Error(t, err)
	require.True(t, errors.HasCode(err, errors.InvalidConfiguration))
}

func TestOptimizerMetrics(t *testing.T) {
	cfg := conf.NewTestConfig(false)
	factory := newCountingFactory()
	o, err := NewOptimizer(cfg, factory)
	require.NoError(t, err)

	_, err = o.Optimize(scenarioNamed(t, "MultipleInputRepartition1").build(t, true, cfg))
	require.NoError(t, err)
	require.Equal(t, 2, factory.count("planopt_rule_runs_total"))
	require.Equal(t, 1, factory.count("planopt_sorts_removed_total"))
	require.Equal(t, 0, factory.count("planopt_alternatives_discarded_total"))

	// the sort stays over the stream, so only the first rule completes
	_, err = o.Optimize(scenarioNamed(t, "DifferentOrderings").build(t, true, cfg))
	require.True(t, errors.HasCode(err, errors.UnboundedPipeline))
	require.Equal(t, 3, factory.count("planopt_rule_runs_total"))
	require.Equal(t, 1, factory.count("planopt_sorts_removed_total"))
	require.Equal(t, 1, factory.count("planopt_alternatives_discarded_total"))
}

func TestOptimizerDebugLogging(t *testing.T) {
	cfg := conf.NewTestConfig(false)
	cfg.Debug = true
	o, err := NewOptimizer(cfg, nil)
	require.NoError(t, err)
	sc := scenarioNamed(t, "LostOrdering")
	optimized, err := o.Optimize(sc.build(t, true, cfg))
	require.NoError(t, err)
	require.Equal(t, sc.expected(true, false), plan.Lines(optimized))
}

type dropColumnRule struct{}

func (d *dropColumnRule) Name() string {
	return "DropColumn"
}

func (d *dropColumnRule) Optimize(root plan.Node, _ *conf.Config) (plan.Node, error) {
	first := root.Schema().Columns[0].Name
	return plan.NewProjection(root, []expr.Expression{root.Schema().Column(first)}, []string{first})
}

type failingRule struct{}

func (f *failingRule) Name() string {
	return "Failing"
}

func (f *failingRule) Optimize(plan.Node, *conf.Config) (plan.Node, error) {
	return nil, errors.WithStack(errors.NewInternalError("boom"))
}

func TestOptimizerRejectsSchemaChange(t *testing.T) {
	cfg := conf.NewTestConfig(false)
	root := scenarioNamed(t, "LostOrdering").build(t, false, cfg)
	o := NewOptimizerWithRules(cfg, &dropColumnRule{})
	_, err := o.Optimize(root)
	require.Error(t, err)
	require.True(t, errors.HasCode(err, errors.SchemaChanged))
}

func TestOptimizerStopsAtFailingRule(t *testing.T) {
	cfg := conf.NewTestConfig(false)
	root := scenarioNamed(t, "LostOrdering").build(t, false, cfg)
	o := NewOptimizerWithRules(cfg, &failingRule{}, &dropColumnRule{})
	res, err := o.Optimize(root)
	require.Nil(t, res)
	require.True(t, errors.HasCode(err, errors.InternalError))
	require.Contains(t, err.Error(), "rule Failing failed")
}

func TestPipelineCheckerRejectsUnorderedMerge(t *testing.T) {
	cfg := conf.NewTestConfig(false)
	root, err := parser.ParsePlan(`
sort_preserving_merge(order = [a]) {
  repartition(scheme = hash, keys = [c]) {
    repartition() {
      source_scan(name = t, columns = [a, c], order = [a])
    }
  }
}`, cfg)
	require.NoError(t, err)
	_, err = (&PipelineChecker{}).Optimize(root, cfg)
	require.Error(t, err)
	require.True(t, errors.HasCode(err, errors.UnboundedPipeline))

	// the same plan over a table can simply be sorted by the merge's input
	bounded, err := parser.ParsePlan(`
sort_preserving_merge(order = [a]) {
  repartition(scheme = hash, keys = [c]) {
    repartition() {
      table_scan(name = t, columns = [a, c], order = [a])
    }
  }
}`, cfg)
	require.NoError(t, err)
	res, err := (&PipelineChecker{}).Optimize(bounded, cfg)
	require.NoError(t, err)
	require.Same(t, bounded, res)
}

func TestPipelineCheckerAcceptsOrderedMerge(t *testing.T) {
	cfg := conf.NewTestConfig(false)
	root, err := parser.ParsePlan(`
sort_preserving_merge(order = [a]) {
  repartition(scheme = hash, keys = [c], preserve_order = true) {
    repartition() {
      source_scan(name = t, columns = [a, c], order = [a])
    }
  }
}`, cfg)
	require.NoError(t, err)
	res, err := (&PipelineChecker{}).Optimize(root, cfg)
	require.NoError(t, err)
	require.Same(t, root, res)
}

func TestPipelineCheckerRejectsSortOverStream(t *testing.T) {
	cfg := conf.NewTestConfig(false)
	text := `
sort(order = [a]) {
  coalesce_partitions() {
    repartition(scheme = hash, keys = [c]) {
      repartition() {
        %s(name = t, columns = [a, c])
      }
    }
  }
}`
	root, err := parser.ParsePlan(fmt.Sprintf(text, "source_scan"), cfg)
	require.NoError(t, err)
	_, err = (&PipelineChecker{}).Optimize(root, cfg)
	require.Error(t, err)
	require.True(t, errors.HasCode(err, errors.UnboundedPipeline))
	require.Contains(t, err.Error(), "Sort: expr=[a@0 ASC] has to read all of its unbounded input")

	o, err := NewOptimizer(cfg, nil)
	require.NoError(t, err)
	res, err := o.Optimize(root)
	require.Nil(t, res)
	require.True(t, errors.HasCode(err, errors.UnboundedPipeline))

	bounded, err := parser.ParsePlan(fmt.Sprintf(text, "table_scan"), cfg)
	require.NoError(t, err)
	res, err = (&PipelineChecker{}).Optimize(bounded, cfg)
	require.NoError(t, err)
	require.Same(t, bounded, res)
}

func TestPipelineCheckerAcceptsSortBelowBoundedJoinSide(t *testing.T) {
	cfg := conf.NewTestConfig(false)
	root, err := parser.ParsePlan(`
hash_join(on = [(c, c)]) {
  source_scan(name = s, columns = [a, c])
  sort(order = [b]) {
    table_scan(name = t, columns = [b, c])
  }
}`, cfg)
	require.NoError(t, err)
	res, err := (&PipelineChecker{}).Optimize(root, cfg)
	require.NoError(t, err)
	require.Same(t, root, res)
}

func TestSkipPipelineCheck(t *testing.T) {
	cfg := conf.NewTestConfig(false)
	text := `
sort_preserving_merge(order = [a]) {
  repartition(scheme = hash, keys = [c]) {
    repartition() {
      source_scan(name = t, columns = [a, c], order = [a])
    }
  }
}`
	root, err := parser.ParsePlan(text, cfg)
	require.NoError(t, err)

	// nothing sorts here, so the rule leaves the merge over unordered input in place
	o, err := NewOptimizer(cfg, nil)
	require.NoError(t, err)
	_, err = o.Optimize(root)
	require.True(t, errors.HasCode(err, errors.UnboundedPipeline))

	cfg.SkipPipelineCheck = true
	o, err = NewOptimizer(cfg, nil)
	require.NoError(t, err)
	res, err := o.Optimize(root)
	require.NoError(t, err)
	require.Equal(t, plan.Lines(root), plan.Lines(res))
}
