// Copyright 2024 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"sigs.k8s.io/yaml"

	logger "github.com/intel/wsreclaim/pkg/log"
	"github.com/intel/wsreclaim/pkg/monitor"
	"github.com/intel/wsreclaim/pkg/reclaim"
	"github.com/intel/wsreclaim/pkg/sampler"
	"github.com/intel/wsreclaim/pkg/workingset"
)

const (
	// DefaultColdAgeThresholdMs is the default cold age threshold.
	DefaultColdAgeThresholdMs = 120000
	// DefaultReclaimInterval is the default time between reclaim cycles.
	DefaultReclaimInterval = 10 * time.Second
	// DefaultSampleInterval is the default time between monitoring samples.
	DefaultSampleInterval = time.Second
	// DefaultMaxWait is the default time to wait for the workload to start.
	DefaultMaxWait = 10 * time.Second
	// DefaultOutput is the default monitoring output file.
	DefaultOutput = "cgroup-statistics.csv"
)

// Config is the configuration of wsreclaim.
type Config struct {
	// Cgroup is the managed group, absolute or relative to CgroupRoot.
	Cgroup string `json:"cgroup"`
	// CgroupRoot is the cgroup v2 mount point.
	CgroupRoot string `json:"cgroupRoot,omitempty"`
	// SysfsRoot is the sysfs mount point.
	SysfsRoot string `json:"sysfsRoot,omitempty"`
	// MetricsAddr is the address to serve prometheus metrics on, if any.
	MetricsAddr string `json:"metricsAddr,omitempty"`
	// PidFile overrides the default PID file path.
	PidFile string `json:"pidFile,omitempty"`
	// Log configures logging.
	Log LogConfig `json:"log"`
	// Reclaim configures the reclaim engine.
	Reclaim ReclaimConfig `json:"reclaim"`
	// Monitor configures telemetry sessions.
	Monitor MonitorConfig `json:"monitor"`
	// Reporting configures kernel working set reporting.
	Reporting ReportingConfig `json:"reporting"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level   string   `json:"level,omitempty"`
	Debug   []string `json:"debug,omitempty"`
	Backend string   `json:"backend,omitempty"`
}

// ReclaimConfig configures the reclaim engine.
type ReclaimConfig struct {
	Policy             string   `json:"policy,omitempty"`
	ColdAgeThresholdMs uint64   `json:"coldAgeThresholdMs"`
	Interval           Duration `json:"interval"`
	Nodes              string   `json:"nodes,omitempty"`
	DisableZswap       bool     `json:"disableZswap,omitempty"`
}

// MonitorConfig configures telemetry sessions.
type MonitorConfig struct {
	Interval Duration `json:"interval"`
	Timeout  Duration `json:"timeout,omitempty"`
	MaxWait  Duration `json:"maxWait,omitempty"`
	Metrics  []string `json:"metrics,omitempty"`
	Output   string   `json:"output,omitempty"`
	Command  []string `json:"command,omitempty"`
}

// ReportingConfig configures kernel working set reporting.
type ReportingConfig struct {
	// PageAgeIntervals is "<node>,<ageMs>,<ageMs>...;<node>,...".
	PageAgeIntervals string `json:"pageAgeIntervals,omitempty"`
	// NodeRefreshIntervals is "<node>,<intervalMs>;<node>,...".
	NodeRefreshIntervals string `json:"nodeRefreshIntervals,omitempty"`
	// CgroupRefreshIntervals is "<node>,<intervalMs>;<node>,...".
	CgroupRefreshIntervals string `json:"cgroupRefreshIntervals,omitempty"`
}

// Error is returned for an invalid configuration.
type Error struct {
	err error
}

func (e *Error) Error() string {
	return "invalid configuration: " + e.err.Error()
}

// Unwrap returns the underlying errors.
func (e *Error) Unwrap() error {
	return e.err
}

// NewError wraps err as a configuration error.
func NewError(err error) *Error {
	return &Error{err: err}
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level: logger.DefaultLevel.String(),
		},
		Reclaim: ReclaimConfig{
			Policy:             reclaim.PolicyPeriodic.String(),
			ColdAgeThresholdMs: DefaultColdAgeThresholdMs,
			Interval:           Duration(DefaultReclaimInterval),
			Nodes:              "all",
		},
		Monitor: MonitorConfig{
			Interval: Duration(DefaultSampleInterval),
			MaxWait:  Duration(DefaultMaxWait),
			Metrics:  sampler.DefaultSources(),
			Output:   DefaultOutput,
		},
	}
}

// Load reads the configuration file at path on top of the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read configuration")
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return cfg, nil
}

// Parse parses YAML (or JSON) configuration data on top of the defaults.
// Unknown fields are an error.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, &Error{err: err}
	}
	return cfg, nil
}

// Dump returns the configuration as YAML.
func (c *Config) Dump() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "<failed to dump configuration: " + err.Error() + ">"
	}
	return string(data)
}

// Validate checks the whole configuration, reporting every problem found.
func (c *Config) Validate() error {
	var errs *multierror.Error

	if c.Log.Level != "" {
		if _, err := logger.ParseLevel(c.Log.Level); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if _, err := c.ReclaimConfig(); err != nil {
		errs = multierror.Append(errs, err)
	}
	if c.Monitor.Interval <= 0 {
		errs = multierror.Append(errs, errors.Errorf("monitor interval must be positive, got %v", c.Monitor.Interval))
	}
	if c.Monitor.Timeout < 0 || c.Monitor.MaxWait < 0 {
		errs = multierror.Append(errs, errors.New("monitor timeouts must not be negative"))
	}
	if c.Monitor.Output == "" {
		errs = multierror.Append(errs, errors.New("no monitor output file given"))
	}
	if _, err := sampler.New(nil, c.Monitor.Metrics); err != nil {
		errs = multierror.Append(errs, err)
	}
	if _, err := c.WorkingsetReporting(); err != nil {
		errs = multierror.Append(errs, err)
	}

	if err := errs.ErrorOrNil(); err != nil {
		return &Error{err: err}
	}
	return nil
}

// ReclaimConfig returns the reclaim engine configuration.
func (c *Config) ReclaimConfig() (reclaim.Config, error) {
	var errs *multierror.Error

	policy, err := reclaim.ParsePolicyKind(c.Reclaim.Policy)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	nodes, err := workingset.ParseNodeSelector(c.Reclaim.Nodes)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	rc := reclaim.Config{
		Policy:             policy,
		ColdAgeThresholdMs: c.Reclaim.ColdAgeThresholdMs,
		Interval:           time.Duration(c.Reclaim.Interval),
		Nodes:              nodes,
	}
	if err := errs.ErrorOrNil(); err != nil {
		return rc, err
	}
	if err := rc.Validate(); err != nil {
		return rc, err
	}
	return rc, nil
}

// MonitorConfig returns the monitoring session configuration.
func (c *Config) MonitorConfig() monitor.Config {
	return monitor.Config{
		Interval: time.Duration(c.Monitor.Interval),
		Timeout:  time.Duration(c.Monitor.Timeout),
		MaxWait:  time.Duration(c.Monitor.MaxWait),
		Sources:  append([]string(nil), c.Monitor.Metrics...),
		Output:   c.Monitor.Output,
	}
}

// WorkingsetReporting returns the working set reporting setup.
func (c *Config) WorkingsetReporting() (*workingset.Reporting, error) {
	var (
		r    = &workingset.Reporting{}
		errs *multierror.Error
		err  error
	)
	if spec := c.Reporting.PageAgeIntervals; spec != "" {
		if r.PageAge, err = workingset.ParsePageAgeIntervals(spec); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if spec := c.Reporting.NodeRefreshIntervals; spec != "" {
		if r.NodeRefresh, err = workingset.ParseRefreshIntervals(spec); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if spec := c.Reporting.CgroupRefreshIntervals; spec != "" {
		if r.Refresh, err = workingset.ParseRefreshIntervals(spec); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return r, errs.ErrorOrNil()
}
