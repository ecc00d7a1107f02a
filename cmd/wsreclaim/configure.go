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

	"github.com/intel/wsreclaim/pkg/cgroups"
	"github.com/intel/wsreclaim/pkg/workingset"
)

func newConfigureCommand(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure [flags] [cgroup]",
		Short: "Configure kernel working set reporting",
		Long: `Configure the page age histogram bins and refresh intervals of the NUMA
nodes and, if a cgroup is given, the per-node refresh intervals of the group.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runConfigure(cmd, args)
		},
	}
	o.addReportingFlags(cmd)

	return cmd
}

func (o *options) runConfigure(cmd *cobra.Command, args []string) error {
	cfg, err := o.load(cmd, args)
	if err != nil {
		return err
	}

	var group workingset.EntryWriter
	if cfg.Cgroup != "" {
		group = cgroups.New(cfg.Cgroup)
	} else if cfg.Reporting.CgroupRefreshIntervals != "" {
		log.Warn("no cgroup given, ignoring cgroup refresh intervals")
	}

	return configureReporting(cfg, group)
}
