// Package config defines the engine's environment/YAML-backed settings
// (spec.md §6 "Config / environment").
package config

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/quantlab/backtest-engine/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config mirrors the options spec.md §6 recognises; yaml tags match the
// dotted option names (e.g. db.url -> db: {url: ...}).
type Config struct {
	DB struct {
		URL string `yaml:"url" validate:"required" jsonschema:"title=Database URL,description=Cache and persistence connection string"`
	} `yaml:"db"`

	Job struct {
		DefaultTimeoutSeconds int     `yaml:"default_timeout_seconds" validate:"required,gt=0" jsonschema:"title=Default Job Timeout (s),default=600"`
		UsercodeTimeoutMs     int     `yaml:"usercode_timeout_ms" validate:"required,gt=0" jsonschema:"title=Per-call User Code Timeout (ms),default=1000"`
		PanelWorkers          int     `yaml:"panel_workers" validate:"required,gt=0" jsonschema:"title=Panel Worker Pool Size,default=4"`
		LotSize               float64 `yaml:"lot_size" validate:"required,gt=0" jsonschema:"title=Lot Size (shares),default=100"`
		DefaultBenchmark      string  `yaml:"default_benchmark" validate:"required" jsonschema:"title=Default Benchmark Index,default=000300.SH"`
		TradingDaysPerYear    int     `yaml:"trading_days_per_year" validate:"required,gt=0" jsonschema:"title=Trading Days Per Year,default=252"`
	} `yaml:"job"`
}

// Default returns the spec's documented defaults (spec.md §6), with
// db.url left empty for the caller to fill in.
func Default() Config {
	var c Config

	c.Job.DefaultTimeoutSeconds = 600
	c.Job.UsercodeTimeoutMs = 1000
	c.Job.PanelWorkers = 4
	c.Job.LotSize = 100
	c.Job.DefaultBenchmark = "000300.SH"
	c.Job.TradingDaysPerYear = 252

	return c
}

// Load reads and validates a YAML config file, layering it over Default().
func Load(path string) (Config, error) {
	cfg := Default()

	bytes, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config file %s", path)
	}

	if err := yaml.Unmarshal(bytes, &cfg); err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to parse config file %s", path)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "invalid config in %s", path)
	}

	return cfg, nil
}
