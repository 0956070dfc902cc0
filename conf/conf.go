package conf

import (
	"github.com/squareup/planopt/errors"
)

const (
	DefaultTargetPartitions  = 8
	DefaultBatchSize         = 8192
	DefaultMetricsListenAddr = "localhost:2112"
)

// Config holds the session-wide options the physical optimizer reads. The kong tags let the CLI embed it and load
// it from an HCL config file.
type Config struct {
	// PreferExistingSort makes the optimizer swap order-losing operators for their order-preserving variants whenever
	// that lets it drop a sort, even on bounded input.
	PreferExistingSort bool   `json:"prefer_existing_sort,omitempty" help:"Replace order-losing operators with order-preserving variants to remove sorts, even for bounded input"`
	TargetPartitions   int    `json:"target_partitions,omitempty" help:"Partition count used by repartitions that do not specify one" default:"8"`
	BatchSize          int    `json:"batch_size,omitempty" help:"Target batch size used by coalesce_batches when not specified" default:"8192"`
	SkipPipelineCheck  bool   `json:"skip_pipeline_check,omitempty" help:"Do not reject optimized plans that cannot run on their unbounded sources"`
	Debug              bool   `json:"debug,omitempty" help:"Log every plan before and after each rule"`
	EnableMetrics      bool   `json:"enable_metrics,omitempty" help:"Export optimizer metrics over HTTP"`
	MetricsListenAddr  string `json:"metrics_listen_addr,omitempty" help:"Address of the metrics HTTP server" default:"localhost:2112"`
}

func (c *Config) Validate() error {
	if c.TargetPartitions < 1 {
		return errors.NewInvalidConfigurationError("TargetPartitions must be >= 1")
	}
	if c.BatchSize < 1 {
		return errors.NewInvalidConfigurationError("BatchSize must be >= 1")
	}
	if c.EnableMetrics && c.MetricsListenAddr == "" {
		return errors.NewInvalidConfigurationError("MetricsListenAddr must be specified when EnableMetrics is true")
	}
	return nil
}

func NewDefaultConfig() *Config {
	return &Config{
		TargetPartitions:  DefaultTargetPartitions,
		BatchSize:         DefaultBatchSize,
		MetricsListenAddr: DefaultMetricsListenAddr,
	}
}

// NewTestConfig returns the default config with the given sort preference.
func NewTestConfig(preferExistingSort bool) *Config {
	cfg := NewDefaultConfig()
	cfg.PreferExistingSort = preferExistingSort
	return cfg
}
