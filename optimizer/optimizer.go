package optimizer

import (
	log "github.com/sirupsen/logrus"
	"github.com/squareup/planopt/conf"
	"github.com/squareup/planopt/errors"
	"github.com/squareup/planopt/metrics"
	"github.com/squareup/planopt/plan"
)

// Rule is a single rewrite of a physical plan.
type Rule interface {
	Name() string
	Optimize(root plan.Node, cfg *conf.Config) (plan.Node, error)
}

// Optimizer applies its rules to a plan in order. A rule that fails aborts the whole run; no partially rewritten
// plan is returned.
type Optimizer struct {
	cfg     *conf.Config
	rules   []Rule
	metrics *optimizerMetrics
}

// NewOptimizer returns an optimizer with the default rules. factory may be nil.
func NewOptimizer(cfg *conf.Config, factory metrics.Factory) (*Optimizer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		factory = metrics.NewNoopFactory()
	}
	m, err := newOptimizerMetrics(factory)
	if err != nil {
		return nil, err
	}
	replace := NewReplaceWithOrderPreservingVariants()
	replace.metrics = m
	rules := []Rule{replace}
	if !cfg.SkipPipelineCheck {
		rules = append(rules, &PipelineChecker{})
	}
	return &Optimizer{cfg: cfg, rules: rules, metrics: m}, nil
}

// NewOptimizerWithRules returns an optimizer that applies exactly the given rules.
func NewOptimizerWithRules(cfg *conf.Config, rules ...Rule) *Optimizer {
	return &Optimizer{cfg: cfg, rules: rules, metrics: noopMetrics()}
}

func (o *Optimizer) Rules() []Rule {
	return o.rules
}

func (o *Optimizer) Optimize(root plan.Node) (plan.Node, error) {
	current := root
	for _, rule := range o.rules {
		next, err := rule.Optimize(current, o.cfg)
		if err != nil {
			return nil, errors.Wrapf(err, "rule %s failed", rule.Name())
		}
		if !next.Schema().Equal(current.Schema()) {
			return nil, errors.WithStack(errors.NewSchemaChangedError(rule.Name(), current.Schema().Fields(),
				next.Schema().Fields()))
		}
		o.metrics.ruleRuns.Inc()
		if o.cfg.Debug {
			log.Debugf("rule %s: plan %s -> %s\n%s", rule.Name(), plan.FingerprintString(current),
				plan.FingerprintString(next), plan.Format(next))
		}
		current = next
	}
	return current, nil
}
