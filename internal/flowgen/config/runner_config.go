// Package config provides the ambient configuration surfaces around a flow
// run: an optional YAML RunnerConfig for HTTP tuning and console verbosity,
// and JSON Schema validation of the flow document itself before it is
// parsed into the flow data model.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RunnerConfig holds ambient settings that apply to an entire run but are
// not part of the flow document itself: HTTP client tuning and console
// verbosity. It is always optional; zero values fall back to the core's
// own defaults.
type RunnerConfig struct {
	HTTP    HTTPClientConfig `yaml:"http"`
	Console ConsoleConfig    `yaml:"console"`
}

// HTTPClientConfig tunes the connection pool shared by every HTTP step in
// the run.
type HTTPClientConfig struct {
	MaxIdleConns        int      `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int      `yaml:"max_idle_conns_per_host"`
	IdleConnTimeout     Duration `yaml:"idle_conn_timeout"`
}

// ConsoleConfig controls the live reporter's verbosity.
type ConsoleConfig struct {
	Quiet            bool `yaml:"quiet"`
	DisableProgress  bool `yaml:"disable_progress"`
}

// Duration wraps time.Duration so it can be written in YAML as a plain
// string like "30s" rather than a raw integer of nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: parsing duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// LoadRunnerConfig reads and parses a YAML RunnerConfig from path. A missing
// file is an error; it wraps the underlying fs.ErrNotExist, so callers that
// want "absent means defaults" can detect it with errors.Is.
func LoadRunnerConfig(path string) (*RunnerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading runner config %q: %w", path, err)
	}

	var cfg RunnerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing runner config %q: %w", path, err)
	}
	return &cfg, nil
}
