// Package deviceconfig loads the YAML file describing device calibration
// and storage locations (spec.md §6), mirroring
// acquisition_control.py's get_instances(configuration_file).
package deviceconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level device configuration file shape.
type Config struct {
	Calibration Calibration `yaml:"calibration"`
	Storage     Storage     `yaml:"storage"`
}

// Calibration mirrors the static per-channel calibration values the
// Controller folds into every unroll call.
type Calibration struct {
	OutputLimits       [4]float64    `yaml:"output_limits"`
	GPAGain            [4]float64    `yaml:"gpa_gain"`
	GradientEfficiency [4]float64    `yaml:"gradient_efficiency"`
	RFToMillivolt      float64       `yaml:"rf_to_mvolt"`
	SpcmDwellTimeNs    int64         `yaml:"spcm_dwell_time_ns"`
	RFDeadTimeNs       int64         `yaml:"rf_dead_time_ns"`
	RFRingdownTimeNs   int64         `yaml:"rf_ringdown_time_ns"`
	SampleRateHz       float64       `yaml:"sample_rate_hz"`
	ChannelScale       []float64     `yaml:"channel_scale"`
}

// SpcmDwellTime returns the configured dwell time as a time.Duration.
func (c Calibration) SpcmDwellTime() time.Duration { return time.Duration(c.SpcmDwellTimeNs) }

// RFDeadTime returns the configured RF dead time as a time.Duration.
func (c Calibration) RFDeadTime() time.Duration { return time.Duration(c.RFDeadTimeNs) }

// RFRingdownTime returns the configured RF ringdown time as a time.Duration.
func (c Calibration) RFRingdownTime() time.Duration { return time.Duration(c.RFRingdownTimeNs) }

// Storage names where session directories are written.
type Storage struct {
	Root string `yaml:"root"`
}

// Load reads and parses the device configuration file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("deviceconfig: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("deviceconfig: parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	for i, limit := range c.Calibration.OutputLimits {
		if limit == 0 {
			return fmt.Errorf("deviceconfig: output_limits[%d] must be non-zero", i)
		}
	}
	if c.Calibration.SampleRateHz <= 0 {
		return fmt.Errorf("deviceconfig: sample_rate_hz must be positive")
	}
	if c.Storage.Root == "" {
		return fmt.Errorf("deviceconfig: storage.root must be set")
	}
	return nil
}
