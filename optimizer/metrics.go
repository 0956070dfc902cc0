package optimizer

import (
	"github.com/squareup/planopt/errors"
	"github.com/squareup/planopt/metrics"
)

type optimizerMetrics struct {
	ruleRuns              metrics.Counter
	sortsRemoved          metrics.Counter
	alternativesDiscarded metrics.Counter
}

func newOptimizerMetrics(factory metrics.Factory) (*optimizerMetrics, error) {
	ruleRuns, err := factory.CreateCounter("planopt_rule_runs_total", "Number of optimizer rule applications")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	sortsRemoved, err := factory.CreateCounter("planopt_sorts_removed_total",
		"Number of sorts removed by swapping in order preserving variants")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	discarded, err := factory.CreateCounter("planopt_alternatives_discarded_total",
		"Number of order preserving alternatives built but not used")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &optimizerMetrics{
		ruleRuns:              ruleRuns,
		sortsRemoved:          sortsRemoved,
		alternativesDiscarded: discarded,
	}, nil
}

func noopMetrics() *optimizerMetrics {
	m, _ := newOptimizerMetrics(metrics.NewNoopFactory())
	return m
}
