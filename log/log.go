package log

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/squareup/planopt/errors"
)

// TimestampFormat is the timestamp layout of text log lines.
const TimestampFormat = "2006-01-02 15:04:05.000000"

// Config contains the configuration for the global logger.
type Config struct {
	Format string `help:"Format to write log lines in" enum:"text,json" default:"text"`
	Level  string `help:"Lowest log level that will be emitted" enum:"trace,debug,info,warn,error" default:"info"`
	File   string `help:"File to direct logs to. If left blank, or '-', logs will go to stderr" default:"-"`
}

// Configure the global logger
func (cfg *Config) Configure() error {
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return errors.WithStack(err)
		}
		log.SetOutput(f)
	}
	if cfg.Level != "" {
		level, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return errors.WithStack(err)
		}
		log.SetLevel(level)
	}
	switch cfg.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			DisableQuote:    true,
			FullTimestamp:   true,
			TimestampFormat: TimestampFormat,
		})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return errors.NewInvalidConfigurationError("log format must be either text or json")
	}
	return nil
}
