// Package config loads the settings of the stacksampler CLI from an
// optional YAML file.
package config

import (
	"os"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/maxgio92/stacksampler/pkg/launcher"
	"github.com/maxgio92/stacksampler/pkg/recorder"
)

// Config holds the profile command settings.
type Config struct {
	// Interval is the sleep between two samples.
	Interval time.Duration `yaml:"interval"`
	// Duration is how long the workload is profiled.
	Duration time.Duration `yaml:"duration"`
	// Filter is the regular expression applied to frame descriptors.
	Filter string `yaml:"filter"`
	// Limit is the number of rows reported.
	Limit int `yaml:"limit"`

	Workload Workload `yaml:"workload"`

	LogLevel string `yaml:"log_level"`
	Pretty   bool   `yaml:"pretty"`
}

// Workload describes the synthetic load profiled by the CLI.
type Workload struct {
	Workers int           `yaml:"workers"`
	Spin    time.Duration `yaml:"spin"`
	Sleep   time.Duration `yaml:"sleep"`
}

func Default() *Config {
	return &Config{
		Interval: launcher.DefaultInterval,
		Duration: 5 * time.Second,
		Filter:   recorder.MatchAll,
		Limit:    recorder.DefaultMaxRecords,
		Workload: Workload{
			Workers: 2,
			Spin:    30 * time.Millisecond,
			Sleep:   10 * time.Millisecond,
		},
		LogLevel: "info",
		Pretty:   true,
	}
}

// Load reads the YAML file at path over the defaults.
// An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "error parsing config file %s", path)
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Interval <= 0 || c.Interval >= launcher.MaxInterval {
		return errors.Wrapf(launcher.ErrInvalidInterval, "got %s", c.Interval)
	}
	if c.Duration <= 0 {
		return errors.Errorf("duration must be positive, got %s", c.Duration)
	}
	if _, err := regexp.Compile(c.Filter); err != nil {
		return errors.Wrapf(recorder.ErrInvalidFilter, "error compiling %q: %v", c.Filter, err)
	}
	if c.Limit < 0 {
		return errors.Errorf("limit must not be negative, got %d", c.Limit)
	}
	if c.Workload.Workers < 1 {
		return errors.Errorf("workload needs at least one worker, got %d", c.Workload.Workers)
	}
	if c.Workload.Spin < 0 || c.Workload.Sleep < 0 {
		return errors.New("workload spin and sleep must not be negative")
	}
	if c.Workload.Spin == 0 && c.Workload.Sleep == 0 {
		return errors.New("workload spin and sleep cannot be both zero")
	}

	return nil
}
