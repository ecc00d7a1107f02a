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
	"github.com/prometheus/client_golang/prometheus"

	"github.com/intel/wsreclaim/pkg/reclaim"
)

// Prometheus Metric descriptor indices and descriptor table
const (
	engineStateDesc = iota
	engineCyclesDesc
	engineReclaimsDesc
	enginePartialReclaimsDesc
	engineRequestedBytesDesc
	engineColdBytesDesc
	engineColdBytesEWMADesc
	engineSwapDeltaDesc
	engineTickErrorsDesc
	numEngineDescriptors
)

var engineDescriptors = [numEngineDescriptors]*prometheus.Desc{
	engineStateDesc: prometheus.NewDesc(
		Namespace+"_engine_state",
		"Current state of the reclaim engine, 1 for the active state.",
		[]string{"state"}, nil,
	),
	engineCyclesDesc: prometheus.NewDesc(
		Namespace+"_engine_cycles_total",
		"Number of completed reclaim cycles.",
		nil, nil,
	),
	engineReclaimsDesc: prometheus.NewDesc(
		Namespace+"_engine_reclaims_total",
		"Number of reclaim requests written.",
		nil, nil,
	),
	enginePartialReclaimsDesc: prometheus.NewDesc(
		Namespace+"_engine_partial_reclaims_total",
		"Number of reclaim requests the kernel could not fully satisfy.",
		nil, nil,
	),
	engineRequestedBytesDesc: prometheus.NewDesc(
		Namespace+"_engine_requested_bytes_total",
		"Total amount of memory requested to be reclaimed.",
		nil, nil,
	),
	engineColdBytesDesc: prometheus.NewDesc(
		Namespace+"_engine_cold_bytes",
		"Amount of cold memory seen in the last cycle.",
		nil, nil,
	),
	engineColdBytesEWMADesc: prometheus.NewDesc(
		Namespace+"_engine_cold_bytes_ewma",
		"Moving average of cold memory over recent cycles, absent until warmed up.",
		nil, nil,
	),
	engineSwapDeltaDesc: prometheus.NewDesc(
		Namespace+"_engine_swap_delta_bytes",
		"Change of swap usage around the last reclaim request.",
		nil, nil,
	),
	engineTickErrorsDesc: prometheus.NewDesc(
		Namespace+"_engine_tick_errors_total",
		"Number of reclaim cycles that failed.",
		nil, nil,
	),
}

// StatusSource provides the status of a reclaim engine.
type StatusSource interface {
	Status() reclaim.Status
}

type engineCollector struct {
	source StatusSource
}

// NewEngineCollector creates a collector for the status of a reclaim engine.
func NewEngineCollector(source StatusSource) prometheus.Collector {
	return &engineCollector{source: source}
}

// Describe implements prometheus.Collector interface
func (c *engineCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range engineDescriptors {
		ch <- d
	}
}

// Collect implements prometheus.Collector interface
func (c *engineCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Status()

	for _, state := range []reclaim.State{
		reclaim.Idle, reclaim.Sampling, reclaim.Deciding,
		reclaim.Reclaiming, reclaim.Sleeping, reclaim.Terminated,
	} {
		value := 0.0
		if state == s.State {
			value = 1.0
		}
		ch <- prometheus.MustNewConstMetric(
			engineDescriptors[engineStateDesc],
			prometheus.GaugeValue,
			value,
			state.String(),
		)
	}

	counters := []struct {
		desc  int
		value uint64
	}{
		{engineCyclesDesc, s.Cycles},
		{engineReclaimsDesc, s.Reclaims},
		{enginePartialReclaimsDesc, s.PartialReclaims},
		{engineRequestedBytesDesc, s.RequestedBytes},
		{engineTickErrorsDesc, s.TickErrors},
	}
	for _, c := range counters {
		ch <- prometheus.MustNewConstMetric(
			engineDescriptors[c.desc],
			prometheus.CounterValue,
			float64(c.value),
		)
	}

	ch <- prometheus.MustNewConstMetric(
		engineDescriptors[engineColdBytesDesc],
		prometheus.GaugeValue,
		float64(s.ColdBytes),
	)
	if s.EWMAReady {
		ch <- prometheus.MustNewConstMetric(
			engineDescriptors[engineColdBytesEWMADesc],
			prometheus.GaugeValue,
			s.ColdBytesEWMA,
		)
	}
	ch <- prometheus.MustNewConstMetric(
		engineDescriptors[engineSwapDeltaDesc],
		prometheus.GaugeValue,
		float64(s.SwapDelta),
	)
}
