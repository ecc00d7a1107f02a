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
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intel/wsreclaim/pkg/config"
)

func parseReclaimFlags(t *testing.T, args ...string) (*options, *cobra.Command) {
	o := &options{}
	cmd := newReclaimCommand(o)
	o.addGlobalFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return o, cmd
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "wsreclaim.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
cgroup: from-file
reclaim:
  coldAgeThresholdMs: 5000
  interval: 5s
  nodes: "0"
`), 0644))

	o, cmd := parseReclaimFlags(t,
		"--config", file,
		"--cold-age-threshold-ms", "60000",
		"--nodes", "0-1",
	)
	cfg, err := o.load(cmd, []string{"from-args"})
	require.NoError(t, err)

	assert.Equal(t, "from-args", cfg.Cgroup)
	assert.Equal(t, uint64(60000), cfg.Reclaim.ColdAgeThresholdMs)
	assert.Equal(t, config.Duration(5*time.Second), cfg.Reclaim.Interval)
	assert.Equal(t, "0-1", cfg.Reclaim.Nodes)
	assert.Equal(t, config.DefaultOutput, cfg.Monitor.Output)
}

func TestInvalidFlagsAreConfigErrors(t *testing.T) {
	o, cmd := parseReclaimFlags(t,
		"--policy", "aggressive",
		"--nodes", "x",
	)
	_, err := o.load(cmd, nil)
	require.Error(t, err)

	var cfgErr *config.Error
	assert.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "aggressive")
}

func TestReclaimRequiresGroup(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"reclaim", "--sysfs-root", t.TempDir()})
	root.SetOut(&bytes.Buffer{})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no cgroup given")
}

func TestUnderscoreFlags(t *testing.T) {
	root := newRootCommand()
	cmd, _, err := root.Find([]string{"configure"})
	require.NoError(t, err)
	require.NoError(t, cmd.ParseFlags([]string{"--page_age_intervals", "0,1000,2000"}))
	f := cmd.Flags().Lookup("page-age-intervals")
	require.NotNil(t, f)
	assert.Equal(t, "0,1000,2000", f.Value.String())
}

func TestExitStatusDocumented(t *testing.T) {
	root := newRootCommand()
	assert.Contains(t, root.Long, "exit with status 1")
	assert.Contains(t, root.Long, "PID file")
}

func TestVersion(t *testing.T) {
	out := &bytes.Buffer{}
	root := newRootCommand()
	root.SetArgs([]string{"version"})
	root.SetOut(out)
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "version")
}
