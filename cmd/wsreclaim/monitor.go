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
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/intel/wsreclaim/pkg/config"
	"github.com/intel/wsreclaim/pkg/metrics"
	"github.com/intel/wsreclaim/pkg/monitor"
	"github.com/intel/wsreclaim/pkg/workingset"
	"github.com/intel/wsreclaim/pkg/workload"
)

func newMonitorCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor [flags] [cgroup] [-- command [args...]]",
		Short: "Sample cgroup memory statistics into a CSV file",
		Long: `Sample the memory counters of the cgroup on a fixed interval and write
them as a CSV time series once sampling stops. If a command is given it is
started inside the group and sampling stops when it leaves the group,
otherwise sampling stops when the group becomes empty.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runMonitor(cmd, args)
		},
	}

	f := cmd.Flags()
	f.Var(&o.sampleEvery, "interval", "time between samples")
	f.Var(&o.timeout, "timeout", "stop sampling after this much time (0 for no limit)")
	f.Var(&o.maxWait, "max-wait", "time to wait for the workload to appear in the group")
	f.StringSliceVar(&o.metrics, "metrics", nil, "metric sources to sample")
	f.StringVarP(&o.output, "output", "o", "", "CSV output file")
	o.addReportingFlags(cmd)

	return cmd
}

func (o *options) runMonitor(cmd *cobra.Command, args []string) error {
	var command []string
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		args, command = args[:dash], args[dash:]
	}
	if len(args) > 1 {
		return config.NewError(errors.Errorf("expected at most one cgroup, got %q", args))
	}

	cfg, err := o.load(cmd, args)
	if err != nil {
		return err
	}
	if len(command) > 0 {
		cfg.Monitor.Command = command
	}
	group, err := openGroup(cfg)
	if err != nil {
		return err
	}
	if err := configureReporting(cfg, group); err != nil {
		return err
	}

	session, err := monitor.NewSession(cfg.MonitorConfig(), group)
	if err != nil {
		return err
	}

	reg, err := metrics.NewRegistry(
		metrics.NewGroupCollector(group, cfg.Reclaim.ColdAgeThresholdMs, workingset.AllNodes()),
	)
	if err != nil {
		return err
	}
	stop, err := startMetrics(cfg.MetricsAddr, reg)
	if err != nil {
		return err
	}
	defer stop()

	if len(cfg.Monitor.Command) > 0 {
		launcher := &workload.ShellLauncher{}
		w, err := launcher.Launch(cmd.Context(), group.Path(), cfg.Monitor.Command)
		if err != nil {
			return err
		}
		log.Info("started workload %q with pid %d", cfg.Monitor.Command, w.Pid())
		session.TrackPid(w.Pid())
		defer func() {
			if err := w.Wait(); err != nil {
				log.Info("workload exited: %v", err)
			}
		}()
	}

	reason, err := session.Run(cmd.Context())
	if err != nil {
		return err
	}
	log.Info("monitoring of %s stopped: %s", group, reason)

	path, err := session.Persist()
	if err != nil {
		return err
	}
	log.Info("statistics written to %s", path)

	return nil
}
