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

package main

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/intel/wsreclaim/pkg/cgroups"
	"github.com/intel/wsreclaim/pkg/config"
	"github.com/intel/wsreclaim/pkg/instrumentation"
	logger "github.com/intel/wsreclaim/pkg/log"
	"github.com/intel/wsreclaim/pkg/sysfs"
	"github.com/intel/wsreclaim/pkg/workingset"
)

// options are the command line options, overriding the configuration file.
type options struct {
	configFile  string
	cgroupRoot  string
	sysfsRoot   string
	logLevel    string
	logDebug    []string
	logBackend  string
	metricsAddr string
	pidFile     string

	policy       string
	threshold    uint64
	reclaimEvery config.Duration
	nodes        string
	disableZswap bool

	sampleEvery config.Duration
	timeout     config.Duration
	maxWait     config.Duration
	metrics     []string
	output      string

	pageAgeIntervals       string
	nodeRefreshIntervals   string
	cgroupRefreshIntervals string
}

func (o *options) addGlobalFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVarP(&o.configFile, "config", "c", "", "YAML configuration file")
	f.StringVar(&o.cgroupRoot, "cgroup-root", "", "cgroup v2 mount point (default /sys/fs/cgroup)")
	f.StringVar(&o.sysfsRoot, "sysfs-root", "", "sysfs mount point (default /sys)")
	f.StringVar(&o.logLevel, "log-level", "", "lowest severity to log: debug, info, warning, error")
	f.StringSliceVar(&o.logDebug, "log-debug", nil, "enable debug logging for the given sources ('*' for all)")
	f.StringVar(&o.logBackend, "logger", "", "logging backend: klog or fmt")
	f.StringVar(&o.metricsAddr, "metrics-addr", "", "address to serve prometheus metrics on")
}

func (o *options) addReportingFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.pageAgeIntervals, "page-age-intervals", "",
		"per-node page age bins: <node>,<ageMs>,<ageMs>...;<node>,...")
	f.StringVar(&o.nodeRefreshIntervals, "node-refresh-intervals", "",
		"per-node report refresh intervals: <node>,<intervalMs>;...")
	f.StringVar(&o.cgroupRefreshIntervals, "cgroup-refresh-intervals", "",
		"per-node refresh intervals of the cgroup: <node>,<intervalMs>;...")
}

// load loads the configuration file, applies the command line overrides,
// sets up logging and validates the result.
func (o *options) load(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.Default()
	if o.configFile != "" {
		var err error
		if cfg, err = config.Load(o.configFile); err != nil {
			return nil, err
		}
	}

	if len(args) > 0 {
		cfg.Cgroup = args[0]
	}
	changed := cmd.Flags().Changed
	override := func(flag string, set func()) {
		if changed(flag) {
			set()
		}
	}
	override("cgroup-root", func() { cfg.CgroupRoot = o.cgroupRoot })
	override("sysfs-root", func() { cfg.SysfsRoot = o.sysfsRoot })
	override("log-level", func() { cfg.Log.Level = o.logLevel })
	override("log-debug", func() { cfg.Log.Debug = o.logDebug })
	override("logger", func() { cfg.Log.Backend = o.logBackend })
	override("metrics-addr", func() { cfg.MetricsAddr = o.metricsAddr })
	override("pidfile", func() { cfg.PidFile = o.pidFile })
	override("policy", func() { cfg.Reclaim.Policy = o.policy })
	override("cold-age-threshold-ms", func() { cfg.Reclaim.ColdAgeThresholdMs = o.threshold })
	override("reclaim-interval", func() { cfg.Reclaim.Interval = o.reclaimEvery })
	override("nodes", func() { cfg.Reclaim.Nodes = o.nodes })
	override("disable-zswap", func() { cfg.Reclaim.DisableZswap = o.disableZswap })
	override("interval", func() { cfg.Monitor.Interval = o.sampleEvery })
	override("timeout", func() { cfg.Monitor.Timeout = o.timeout })
	override("max-wait", func() { cfg.Monitor.MaxWait = o.maxWait })
	override("metrics", func() { cfg.Monitor.Metrics = o.metrics })
	override("output", func() { cfg.Monitor.Output = o.output })
	override("page-age-intervals", func() { cfg.Reporting.PageAgeIntervals = o.pageAgeIntervals })
	override("node-refresh-intervals", func() { cfg.Reporting.NodeRefreshIntervals = o.nodeRefreshIntervals })
	override("cgroup-refresh-intervals", func() { cfg.Reporting.CgroupRefreshIntervals = o.cgroupRefreshIntervals })

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := setupLogging(cfg.Log); err != nil {
		return nil, config.NewError(err)
	}
	if cfg.CgroupRoot != "" {
		cgroups.SetMountDir(cfg.CgroupRoot)
	}
	log.Debug("effective configuration:\n%s", cfg.Dump())

	return cfg, nil
}

func setupLogging(cfg config.LogConfig) error {
	if cfg.Backend != "" {
		if err := logger.SetBackend(cfg.Backend); err != nil {
			return err
		}
	}
	level, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	if len(cfg.Debug) > 0 {
		logger.SetDebug(cfg.Debug...)
	}
	return nil
}

// openGroup returns the configured cgroup, which must be given.
func openGroup(cfg *config.Config) (*cgroups.Group, error) {
	if strings.TrimSpace(cfg.Cgroup) == "" {
		return nil, config.NewError(errors.New("no cgroup given"))
	}
	group := cgroups.New(cfg.Cgroup)
	if ok, err := cgroups.IsCgroup2(group.Path()); err != nil {
		return nil, err
	} else if !ok {
		log.Warn("%s is not on a cgroup v2 filesystem", group.Path())
	}
	return group, nil
}

// configureReporting sets up kernel working set reporting, if configured.
func configureReporting(cfg *config.Config, group workingset.EntryWriter) error {
	r, err := cfg.WorkingsetReporting()
	if err != nil {
		return config.NewError(err)
	}
	return r.Apply(sysfs.NewSystem(cfg.SysfsRoot), group)
}

// startMetrics starts serving metrics from the given registry, if enabled.
func startMetrics(addr string, reg prometheus.Gatherer) (func(), error) {
	if addr == "" {
		return func() {}, nil
	}
	svc := instrumentation.NewService()
	svc.RegisterGatherer(reg)
	if err := svc.Start(addr); err != nil {
		return nil, err
	}
	log.Info("serving metrics on http://%s%s", svc.Address(), instrumentation.PrometheusMetricsPath)
	return svc.Stop, nil
}
