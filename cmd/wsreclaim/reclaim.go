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
	"github.com/spf13/cobra"

	"github.com/intel/wsreclaim/pkg/loop"
	"github.com/intel/wsreclaim/pkg/metrics"
	"github.com/intel/wsreclaim/pkg/pidfile"
	"github.com/intel/wsreclaim/pkg/reclaim"
	"github.com/intel/wsreclaim/pkg/sysfs"
)

func newReclaimCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reclaim [flags] [cgroup]",
		Short: "Periodically reclaim cold memory of a cgroup",
		Long: `Periodically estimate the memory of the cgroup not accessed for at least
the cold age threshold and request the kernel to reclaim it. Exits once the
group has no processes left.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runReclaim(cmd, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.pidFile, "pidfile", "", "PID file guarding the group (default depends on the group)")
	f.StringVar(&o.policy, "policy", reclaim.PolicyPeriodic.String(), "reclaim policy")
	f.Uint64Var(&o.threshold, "cold-age-threshold-ms", 0, "age in milliseconds after which memory is cold")
	f.Var(&o.reclaimEvery, "reclaim-interval", "time between reclaim cycles")
	f.StringVar(&o.nodes, "nodes", "all", "NUMA nodes to reclaim from, 'all' or a list like 0,2-3")
	f.BoolVar(&o.disableZswap, "disable-zswap", false, "disable zswap before reclaiming")
	o.addReportingFlags(cmd)

	return cmd
}

func (o *options) runReclaim(cmd *cobra.Command, args []string) error {
	cfg, err := o.load(cmd, args)
	if err != nil {
		return err
	}
	rc, err := cfg.ReclaimConfig()
	if err != nil {
		return err
	}
	group, err := openGroup(cfg)
	if err != nil {
		return err
	}

	path := cfg.PidFile
	if path == "" {
		path = pidfile.DefaultPath(group.Path())
	}
	pf := pidfile.New(path)
	if err := pf.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := pf.Remove(); err != nil {
			log.Warn("%v", err)
		}
	}()

	if err := configureReporting(cfg, group); err != nil {
		return err
	}
	if cfg.Reclaim.DisableZswap {
		if err := sysfs.NewSystem(cfg.SysfsRoot).SetZswapEnabled(false); err != nil {
			return err
		}
		log.Info("zswap disabled")
	}

	engine, err := reclaim.NewEngine(rc, group)
	if err != nil {
		return err
	}

	reg, err := metrics.NewRegistry(
		metrics.NewEngineCollector(engine),
		metrics.NewGroupCollector(group, rc.ColdAgeThresholdMs, rc.Nodes),
	)
	if err != nil {
		return err
	}
	stop, err := startMetrics(cfg.MetricsAddr, reg)
	if err != nil {
		return err
	}
	defer stop()

	reason, err := engine.Run(cmd.Context(), &loop.Loop{})
	if err != nil {
		return err
	}
	log.Info("reclaim of %s stopped: %s", group, reason)
	log.Info("%s", engine.Dump())

	return nil
}
