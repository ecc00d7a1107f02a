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

package workingset

import (
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/intel/wsreclaim/pkg/cgroups"
	logger "github.com/intel/wsreclaim/pkg/log"
	"github.com/intel/wsreclaim/pkg/sysfs"
)

var log = logger.Get("workingset")

// SpecError is returned for malformed interval specifications.
type SpecError struct {
	Spec   string
	Reason string
}

func (e *SpecError) Error() string {
	return "workingset: invalid interval spec " + strconv.Quote(e.Spec) + ": " + e.Reason
}

// PageAgeIntervals are the page age bin boundaries of a node, in milliseconds.
type PageAgeIntervals struct {
	Node      NodeID
	Intervals []uint64
}

// RefreshInterval is the working set report refresh interval of a node.
type RefreshInterval struct {
	Node       NodeID
	IntervalMs uint64
}

// ParsePageAgeIntervals parses a per-node page age interval specification
// of the form "<node>,<ageMs>,<ageMs>...;<node>,...". Ages must be positive
// and strictly ascending.
func ParsePageAgeIntervals(spec string) ([]PageAgeIntervals, error) {
	var result []PageAgeIntervals
	err := parseNodeSpec(spec, func(node NodeID, values []uint64) error {
		if len(values) == 0 {
			return errors.Errorf("node %d has no page age intervals", node)
		}
		for i, v := range values {
			if v == 0 {
				return errors.Errorf("node %d: page age interval must be positive", node)
			}
			if i > 0 && v <= values[i-1] {
				return errors.Errorf("node %d: page age intervals must be ascending", node)
			}
		}
		result = append(result, PageAgeIntervals{Node: node, Intervals: values})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ParseRefreshIntervals parses a per-node refresh interval specification of
// the form "<node>,<intervalMs>;<node>,<intervalMs>".
func ParseRefreshIntervals(spec string) ([]RefreshInterval, error) {
	var result []RefreshInterval
	err := parseNodeSpec(spec, func(node NodeID, values []uint64) error {
		if len(values) != 1 {
			return errors.Errorf("node %d: expected exactly one refresh interval", node)
		}
		if values[0] == 0 {
			return errors.Errorf("node %d: refresh interval must be positive", node)
		}
		result = append(result, RefreshInterval{Node: node, IntervalMs: values[0]})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func parseNodeSpec(spec string, fn func(NodeID, []uint64) error) error {
	if strings.TrimSpace(spec) == "" {
		return &SpecError{Spec: spec, Reason: "empty specification"}
	}
	seen := map[NodeID]struct{}{}
	for _, entry := range strings.Split(spec, ";") {
		fields := strings.Split(strings.TrimSpace(entry), ",")
		id, err := strconv.ParseUint(strings.TrimSpace(fields[0]), 10, 31)
		if err != nil {
			return &SpecError{Spec: spec, Reason: "invalid node id " + strconv.Quote(fields[0])}
		}
		node := NodeID(id)
		if _, ok := seen[node]; ok {
			return &SpecError{Spec: spec, Reason: "duplicate node " + strconv.Itoa(int(node))}
		}
		seen[node] = struct{}{}

		values := make([]uint64, 0, len(fields)-1)
		for _, f := range fields[1:] {
			v, err := strconv.ParseUint(strings.TrimSpace(f), 10, 64)
			if err != nil {
				return &SpecError{Spec: spec, Reason: "invalid value " + strconv.Quote(f)}
			}
			values = append(values, v)
		}
		if err := fn(node, values); err != nil {
			return &SpecError{Spec: spec, Reason: err.Error()}
		}
	}
	return nil
}

// Reporting is the working set reporting setup of the system and a group.
type Reporting struct {
	PageAge     []PageAgeIntervals
	NodeRefresh []RefreshInterval
	Refresh     []RefreshInterval
}

// Apply writes the node-scoped configuration, then the group's refresh
// intervals, if any.
func (r *Reporting) Apply(sys *sysfs.System, group EntryWriter) error {
	var errs *multierror.Error
	if len(r.PageAge) > 0 || len(r.NodeRefresh) > 0 {
		if err := ConfigureNodes(sys, r.PageAge, r.NodeRefresh); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if len(r.Refresh) > 0 && group != nil {
		if err := ConfigureGroup(group, r.Refresh); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// EntryWriter writes cgroup entries.
type EntryWriter interface {
	Write(entry, data string) error
}

// ConfigureNodes writes node-scoped page age intervals and refresh intervals.
// Every node must be online.
func ConfigureNodes(sys *sysfs.System, pageAge []PageAgeIntervals, refresh []RefreshInterval) error {
	online, err := sys.OnlineNodes()
	if err != nil {
		return err
	}

	var errs *multierror.Error
	for _, pa := range pageAge {
		if !online.Has(sysfs.ID(pa.Node)) {
			errs = multierror.Append(errs, errors.Errorf("node %d is not online", pa.Node))
			continue
		}
		value := joinUints(pa.Intervals)
		log.Info("node %d: setting page age intervals to %s", pa.Node, value)
		if err := sys.WriteWorkingsetEntry(sysfs.ID(pa.Node), sysfs.PageAgeEntry, value); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	for _, ri := range refresh {
		if !online.Has(sysfs.ID(ri.Node)) {
			errs = multierror.Append(errs, errors.Errorf("node %d is not online", ri.Node))
			continue
		}
		value := strconv.FormatUint(ri.IntervalMs, 10)
		log.Info("node %d: setting refresh interval to %sms", ri.Node, value)
		if err := sys.WriteWorkingsetEntry(sysfs.ID(ri.Node), sysfs.RefreshEntry, value); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// ConfigureGroup writes the per-node refresh intervals of a group, one
// N<node>=<intervalMs> line per node.
func ConfigureGroup(group EntryWriter, refresh []RefreshInterval) error {
	sorted := append([]RefreshInterval(nil), refresh...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Node < sorted[j].Node })

	var errs *multierror.Error
	for _, ri := range sorted {
		line := "N" + strconv.Itoa(int(ri.Node)) + "=" + strconv.FormatUint(ri.IntervalMs, 10) + "\n"
		if err := group.Write(cgroups.RefreshInterval, line); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

func joinUints(values []uint64) string {
	strs := make([]string, 0, len(values))
	for _, v := range values {
		strs = append(strs, strconv.FormatUint(v, 10))
	}
	return strings.Join(strs, ",")
}
