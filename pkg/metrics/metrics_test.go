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

package metrics

import (
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/intel/wsreclaim/pkg/cgroups"
	"github.com/intel/wsreclaim/pkg/reclaim"
	"github.com/intel/wsreclaim/pkg/workingset"
)

type fixedStatus reclaim.Status

func (s fixedStatus) Status() reclaim.Status {
	return reclaim.Status(s)
}

type fakeReader map[string]string

func (r fakeReader) Read(entry string) cgroups.Result {
	data, ok := r[entry]
	if !ok {
		return cgroups.Result{Status: cgroups.NotFound, Err: os.ErrNotExist}
	}
	return cgroups.Result{Status: cgroups.Found, Data: data}
}

func TestEngineCollector(t *testing.T) {
	c := NewEngineCollector(fixedStatus{
		State:          reclaim.Sleeping,
		Cycles:         3,
		Reclaims:       2,
		RequestedBytes: 8192,
		ColdBytes:      4096,
	})

	expected := `
# HELP wsreclaim_engine_cycles_total Number of completed reclaim cycles.
# TYPE wsreclaim_engine_cycles_total counter
wsreclaim_engine_cycles_total 3
# HELP wsreclaim_engine_requested_bytes_total Total amount of memory requested to be reclaimed.
# TYPE wsreclaim_engine_requested_bytes_total counter
wsreclaim_engine_requested_bytes_total 8192
# HELP wsreclaim_engine_cold_bytes Amount of cold memory seen in the last cycle.
# TYPE wsreclaim_engine_cold_bytes gauge
wsreclaim_engine_cold_bytes 4096
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"wsreclaim_engine_cycles_total",
		"wsreclaim_engine_requested_bytes_total",
		"wsreclaim_engine_cold_bytes",
	))
	// 6 states plus 7 other metrics, no average before warm-up
	require.Equal(t, 13, testutil.CollectAndCount(c))
}

func TestEngineCollectorEWMA(t *testing.T) {
	c := NewEngineCollector(fixedStatus{
		ColdBytesEWMA: 2048,
		EWMAReady:     true,
	})

	expected := `
# HELP wsreclaim_engine_cold_bytes_ewma Moving average of cold memory over recent cycles, absent until warmed up.
# TYPE wsreclaim_engine_cold_bytes_ewma gauge
wsreclaim_engine_cold_bytes_ewma 2048
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"wsreclaim_engine_cold_bytes_ewma",
	))
	require.Equal(t, 14, testutil.CollectAndCount(c))
}

func TestGroupCollector(t *testing.T) {
	c := NewGroupCollector(fakeReader{
		cgroups.MemoryCurrent:     "65536\n",
		cgroups.MemorySwapCurrent: "1024\n",
		cgroups.PageAge:           "N0\n1000 anon=10 file=20\n2000 anon=5 file=0\nN1\n1000 anon=1 file=1\n",
	}, 1500, workingset.AllNodes())

	expected := `
# HELP wsreclaim_cgroup_memory_usage_bytes Memory usage of the cgroup.
# TYPE wsreclaim_cgroup_memory_usage_bytes gauge
wsreclaim_cgroup_memory_usage_bytes{type="memory"} 65536
wsreclaim_cgroup_memory_usage_bytes{type="swap"} 1024
# HELP wsreclaim_cgroup_cold_bytes Amount of memory older than the cold age threshold.
# TYPE wsreclaim_cgroup_cold_bytes gauge
wsreclaim_cgroup_cold_bytes{numa_node_id="0"} 5
wsreclaim_cgroup_cold_bytes{numa_node_id="1"} 0
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"wsreclaim_cgroup_memory_usage_bytes",
		"wsreclaim_cgroup_cold_bytes",
	))
	require.Equal(t, 2, testutil.CollectAndCount(c, "wsreclaim_cgroup_memory_usage_bytes"))
	require.Equal(t, 6, testutil.CollectAndCount(c, "wsreclaim_cgroup_workingset_bytes"))
}

func TestNewRegistry(t *testing.T) {
	reg, err := NewRegistry(
		NewEngineCollector(fixedStatus{}),
		NewGroupCollector(fakeReader{}, 1000, workingset.AllNodes()),
	)
	require.NoError(t, err)
	families, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)

	_, err = NewRegistry(NewEngineCollector(fixedStatus{}), NewEngineCollector(fixedStatus{}))
	require.Error(t, err)
}
