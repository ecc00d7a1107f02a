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

package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/intel/wsreclaim/pkg/config"
	"github.com/intel/wsreclaim/pkg/reclaim"
	"github.com/intel/wsreclaim/pkg/workingset"
)

func TestDefaults(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())

	rc, err := cfg.ReclaimConfig()
	require.NoError(t, err)
	require.Equal(t, reclaim.PolicyPeriodic, rc.Policy)
	require.Equal(t, uint64(config.DefaultColdAgeThresholdMs), rc.ColdAgeThresholdMs)
	require.Equal(t, config.DefaultReclaimInterval, rc.Interval)
	require.True(t, rc.Nodes.All())

	mc := cfg.MonitorConfig()
	require.Equal(t, time.Second, mc.Interval)
	require.Equal(t, config.DefaultOutput, mc.Output)
}

func TestParse(t *testing.T) {
	cfg, err := config.Parse([]byte(`
cgroup: test/workload
metricsAddr: 127.0.0.1:9091
log:
  level: debug
  debug: [reclaim, sampler]
reclaim:
  coldAgeThresholdMs: 30000
  interval: 2.5
  nodes: 0,2-3
monitor:
  interval: 500ms
  metrics: [timestamp, memory.current]
  output: /tmp/stats.csv
reporting:
  pageAgeIntervals: 0,1000,2000
  cgroupRefreshIntervals: 0,1000;1,1000
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	require.Equal(t, "test/workload", cfg.Cgroup)
	require.Equal(t, []string{"reclaim", "sampler"}, cfg.Log.Debug)

	rc, err := cfg.ReclaimConfig()
	require.NoError(t, err)
	require.Equal(t, uint64(30000), rc.ColdAgeThresholdMs)
	require.Equal(t, 2500*time.Millisecond, rc.Interval)
	require.Equal(t, "0,2-3", rc.Nodes.String())

	mc := cfg.MonitorConfig()
	require.Equal(t, 500*time.Millisecond, mc.Interval)
	require.Equal(t, []string{"timestamp", "memory.current"}, mc.Sources)

	r, err := cfg.WorkingsetReporting()
	require.NoError(t, err)
	require.Equal(t, []workingset.PageAgeIntervals{{Node: 0, Intervals: []uint64{1000, 2000}}}, r.PageAge)
	require.Len(t, r.Refresh, 2)
	require.Empty(t, r.NodeRefresh)
}

func TestParseUnknownField(t *testing.T) {
	_, err := config.Parse([]byte("reclaim:\n  threshold: 10\n"))
	var cerr *config.Error
	require.True(t, errors.As(err, &cerr))
}

func TestValidateAggregates(t *testing.T) {
	cfg, err := config.Parse([]byte(`
log:
  level: chatty
reclaim:
  policy: adaptive
  coldAgeThresholdMs: 0
  interval: 0s
  nodes: zero
monitor:
  interval: 0
  metrics: [memory.bogus]
reporting:
  pageAgeIntervals: 0,2000,1000
`))
	require.NoError(t, err)

	err = cfg.Validate()
	var cerr *config.Error
	require.True(t, errors.As(err, &cerr))
	for _, msg := range []string{
		`"chatty"`,
		`unknown policy "adaptive"`,
		`invalid node selector "zero"`,
		"monitor interval must be positive",
		`unknown metric source "memory.bogus"`,
		"page age intervals must be ascending",
	} {
		require.Contains(t, err.Error(), msg)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wsreclaim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cgroup: /sys/fs/cgroup/test\n"), 0o644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "/sys/fs/cgroup/test", cfg.Cgroup)
	require.Contains(t, cfg.Dump(), "cgroup: /sys/fs/cgroup/test")

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestDuration(t *testing.T) {
	var d config.Duration
	require.NoError(t, d.Set("1m30s"))
	require.Equal(t, config.Duration(90*time.Second), d)
	require.NoError(t, d.Set("0.25"))
	require.Equal(t, config.Duration(250*time.Millisecond), d)
	require.Error(t, d.Set("soon"))

	data, err := config.Duration(2 * time.Second).MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, `"2s"`, string(data))
	require.NoError(t, d.UnmarshalJSON([]byte(`3`)))
	require.Equal(t, config.Duration(3*time.Second), d)
	require.Error(t, d.UnmarshalJSON([]byte(`true`)))
}
