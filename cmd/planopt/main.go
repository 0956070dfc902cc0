package main

import (
	"io"
	"os"

	"github.com/alecthomas/kong"
	konghcl "github.com/alecthomas/kong-hcl/v2"
	log "github.com/sirupsen/logrus"
	"github.com/squareup/planopt/conf"
	"github.com/squareup/planopt/errors"
	plog "github.com/squareup/planopt/log"
	"github.com/squareup/planopt/metrics"
	"github.com/squareup/planopt/metrics/prometheus"
)

type arguments struct {
	Config               kong.ConfigFlag `help:"Path to config file" type:"existingfile"`
	Log                  plog.Config     `help:"Configuration for the logger" embed:"" prefix:"log-"`
	Optimizer            conf.Config     `help:"Optimizer configuration" embed:"" prefix:"opt-"`
	RepartitionPreferred bool            `help:"Swap repartitions for order preserving ones to remove sorts on bounded input"`
	MergePreferred       bool            `help:"Swap partition coalescing for sort preserving merges to remove sorts on bounded input"`

	Explain ExplainCommand `cmd:"" help:"Optimize the plan in a file and print it"`
	Shell   ShellCommand   `cmd:"" help:"Read plans interactively and print them optimized"`
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, in io.Reader, out io.Writer) error {
	cfg := arguments{}
	parser, err := kong.New(&cfg, kong.Configuration(konghcl.Loader))
	if err != nil {
		return errors.WithStack(err)
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := cfg.Log.Configure(); err != nil {
		return err
	}
	if err := cfg.Optimizer.Validate(); err != nil {
		return err
	}
	var factory metrics.Factory = metrics.NewNoopFactory()
	if cfg.Optimizer.EnableMetrics {
		factory = prometheus.NewFactory(cfg.Optimizer)
	}
	sess, err := newSession(&cfg.Optimizer, factory, in, out)
	if err != nil {
		return err
	}
	sess.setRuleFlags(cfg.RepartitionPreferred, cfg.MergePreferred)
	if err := factory.Start(); err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		if err := factory.Stop(); err != nil {
			log.Warnf("failed to stop metrics: %v", err)
		}
	}()
	return kctx.Run(sess)
}
