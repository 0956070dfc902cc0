package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/squareup/planopt/conf"
	"github.com/squareup/planopt/errors"
	"github.com/squareup/planopt/metrics"
	"github.com/squareup/planopt/optimizer"
	"github.com/squareup/planopt/plan"
	"github.com/squareup/planopt/plan/parser"
)

// session holds the optimizer settings shared by the statements of one run.
type session struct {
	cfg       *conf.Config
	factory   metrics.Factory
	optimizer *optimizer.Optimizer
	in        io.Reader
	out       io.Writer

	repartitionPreferred bool
	mergePreferred       bool
}

func newSession(cfg *conf.Config, factory metrics.Factory, in io.Reader, out io.Writer) (*session, error) {
	s := &session{cfg: cfg, factory: factory, in: in, out: out}
	if err := s.rebuild(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *session) setRuleFlags(repartitionPreferred bool, mergePreferred bool) {
	s.repartitionPreferred = repartitionPreferred
	s.mergePreferred = mergePreferred
	s.applyRuleFlags()
}

func (s *session) rebuild() error {
	o, err := optimizer.NewOptimizer(s.cfg, s.factory)
	if err != nil {
		return err
	}
	s.optimizer = o
	s.applyRuleFlags()
	return nil
}

func (s *session) applyRuleFlags() {
	for _, rule := range s.optimizer.Rules() {
		if r, ok := rule.(*optimizer.ReplaceWithOrderPreservingVariants); ok {
			r.RepartitionPreferred = s.repartitionPreferred
			r.MergePreferred = s.mergePreferred
		}
	}
}

// optimize parses text as a plan and returns the optimized plan. When showInput is set the parsed plan is printed
// first.
func (s *session) optimize(text string, showInput bool) (string, error) {
	root, err := parser.ParsePlan(text, s.cfg)
	if err != nil {
		return "", err
	}
	log.Debugf("optimizing plan %s", plan.FingerprintString(root))
	optimized, err := s.optimizer.Optimize(root)
	if err != nil {
		return "", err
	}
	if showInput {
		return fmt.Sprintf("input:\n%s\noptimized:\n%s", plan.Format(root), plan.Format(optimized)), nil
	}
	return plan.Format(optimized), nil
}

// execute runs one shell statement, either "set <option> <value>" or a plan, and prints the result. Errors a user
// can fix are printed, anything else is returned.
func (s *session) execute(statement string) error {
	statement = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(statement), ";"))
	if statement == "" {
		return nil
	}
	var res string
	var err error
	if fields := strings.Fields(statement); strings.EqualFold(fields[0], "set") {
		res, err = s.set(fields[1:])
	} else {
		res, err = s.optimize(statement, false)
	}
	if err != nil {
		var pe errors.PlanError
		if !errors.As(err, &pe) {
			return err
		}
		res = pe.Msg
	}
	_, err = fmt.Fprintln(s.out, res)
	return errors.WithStack(err)
}

func (s *session) set(args []string) (string, error) {
	if len(args) != 2 {
		return "", errors.NewInvalidConfigurationError("usage: set <option> <value>")
	}
	option, value := strings.ToLower(args[0]), args[1]
	prev := *s.cfg
	switch option {
	case "prefer_existing_sort", "skip_pipeline_check", "debug", "repartition_preferred", "merge_preferred":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", errors.NewInvalidConfigurationError(fmt.Sprintf("%s must be true or false", option))
		}
		switch option {
		case "prefer_existing_sort":
			s.cfg.PreferExistingSort = b
		case "skip_pipeline_check":
			s.cfg.SkipPipelineCheck = b
		case "debug":
			s.cfg.Debug = b
		case "repartition_preferred":
			s.repartitionPreferred = b
		case "merge_preferred":
			s.mergePreferred = b
		}
	case "target_partitions", "batch_size":
		i, err := strconv.Atoi(value)
		if err != nil {
			return "", errors.NewInvalidConfigurationError(fmt.Sprintf("%s must be a number", option))
		}
		if option == "target_partitions" {
			s.cfg.TargetPartitions = i
		} else {
			s.cfg.BatchSize = i
		}
	default:
		return "", errors.NewInvalidConfigurationError(fmt.Sprintf("unknown option %s", option))
	}
	if err := s.rebuild(); err != nil {
		*s.cfg = prev
		return "", err
	}
	return "OK", nil
}
