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
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/intel/wsreclaim/pkg/cgroups"
	"github.com/intel/wsreclaim/pkg/workingset"
)

const (
	memoryUsageDesc = iota
	workingsetDesc
	coldMemoryDesc
	numGroupDescriptors
)

var groupDescriptors = [numGroupDescriptors]*prometheus.Desc{
	memoryUsageDesc: prometheus.NewDesc(
		Namespace+"_cgroup_memory_usage_bytes",
		"Memory usage of the cgroup.",
		[]string{
			// memory, swap or zswap
			"type",
		}, nil,
	),
	workingsetDesc: prometheus.NewDesc(
		Namespace+"_cgroup_workingset_bytes",
		"Working set page age histogram of the cgroup.",
		[]string{
			// NUMA node ID
			"numa_node_id",
			// bin age in milliseconds
			"age_ms",
			// anon or file
			"type",
		}, nil,
	),
	coldMemoryDesc: prometheus.NewDesc(
		Namespace+"_cgroup_cold_bytes",
		"Amount of memory older than the cold age threshold.",
		[]string{"numa_node_id"}, nil,
	),
}

// Reader reads cgroup entries.
type Reader interface {
	Read(entry string) cgroups.Result
}

type groupCollector struct {
	group     Reader
	threshold uint64
	nodes     workingset.NodeSelector
}

// NewGroupCollector creates a collector for the memory usage and working
// set of a cgroup, with cold memory estimated using the given threshold.
func NewGroupCollector(group Reader, threshold uint64, nodes workingset.NodeSelector) prometheus.Collector {
	return &groupCollector{
		group:     group,
		threshold: threshold,
		nodes:     nodes,
	}
}

// Describe implements prometheus.Collector interface
func (c *groupCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range groupDescriptors {
		ch <- d
	}
}

// Collect implements prometheus.Collector interface
func (c *groupCollector) Collect(ch chan<- prometheus.Metric) {
	for _, usage := range []struct {
		entry string
		kind  string
	}{
		{cgroups.MemoryCurrent, "memory"},
		{cgroups.MemorySwapCurrent, "swap"},
		{cgroups.MemoryZswapCurrent, "zswap"},
	} {
		v, err := c.group.Read(usage.entry).Uint64()
		if err != nil {
			log.Debug("failed to read %s: %v", usage.entry, err)
			continue
		}
		ch <- prometheus.MustNewConstMetric(
			groupDescriptors[memoryUsageDesc],
			prometheus.GaugeValue,
			float64(v),
			usage.kind,
		)
	}

	r := c.group.Read(cgroups.PageAge)
	if r.Status != cgroups.Found {
		return
	}
	snap, err := workingset.Parse(r.Data)
	if err != nil {
		log.Error("%v", err)
		return
	}
	for _, id := range snap.Nodes() {
		node := strconv.Itoa(int(id))
		for _, b := range snap[id] {
			age := strconv.FormatUint(b.AgeMs, 10)
			ch <- prometheus.MustNewConstMetric(
				groupDescriptors[workingsetDesc],
				prometheus.GaugeValue,
				float64(b.Anon),
				node, age, "anon",
			)
			ch <- prometheus.MustNewConstMetric(
				groupDescriptors[workingsetDesc],
				prometheus.GaugeValue,
				float64(b.File),
				node, age, "file",
			)
		}
	}
	for id, cold := range workingset.EstimatePerNode(snap, c.threshold, c.nodes) {
		ch <- prometheus.MustNewConstMetric(
			groupDescriptors[coldMemoryDesc],
			prometheus.GaugeValue,
			float64(cold),
			strconv.Itoa(int(id)),
		)
	}
}
