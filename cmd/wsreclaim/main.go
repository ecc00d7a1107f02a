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
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	logger "github.com/intel/wsreclaim/pkg/log"
	"github.com/intel/wsreclaim/pkg/version"
)

var log = logger.Get("wsreclaim")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		log.Error("%v", err)
		logger.Flush()
		os.Exit(1)
	}
	logger.Flush()
}

func newRootCommand() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:   "wsreclaim",
		Short: "Working set driven cold memory reclaim for cgroups",
		Long: `wsreclaim estimates how much memory of a cgroup has not been used for a
configurable time, using the kernel's per-NUMA-node working set page age
histograms, and periodically asks the kernel to reclaim that cold memory.
It can also sample cgroup memory counters into a CSV time series.

An invalid configuration, a failure to save the CSV output and any failure
to set up the group, working set reporting, zswap, the PID file or the
metrics endpoint exit with status 1. A workload leaving the group, or never
entering it, is a normal exit with status 0.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	o.addGlobalFlags(root)
	root.SetGlobalNormalizationFunc(normalizeFlagName)

	root.AddCommand(
		newReclaimCommand(o),
		newMonitorCommand(o),
		newConfigureCommand(o),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				version.Fprint(cmd.OutOrStdout(), filepath.Base(os.Args[0]))
			},
		},
	)
	return root
}

// normalizeFlagName accepts underscores in place of dashes in flag names.
func normalizeFlagName(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}
