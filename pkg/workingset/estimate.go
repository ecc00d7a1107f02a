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
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/utils/cpuset"
)

// NodeSelector selects the nodes considered when estimating cold memory.
// The zero value selects all nodes.
type NodeSelector struct {
	nodes map[NodeID]struct{}
}

// AllNodes returns a selector for every node present in a snapshot.
func AllNodes() NodeSelector {
	return NodeSelector{}
}

// Nodes returns a selector for the given nodes.
func Nodes(ids ...NodeID) NodeSelector {
	sel := NodeSelector{nodes: make(map[NodeID]struct{}, len(ids))}
	for _, id := range ids {
		sel.nodes[id] = struct{}{}
	}
	return sel
}

// ParseNodeSelector parses "all" (or an empty string) or a node list
// such as "0,2-3".
func ParseNodeSelector(value string) (NodeSelector, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "all" {
		return AllNodes(), nil
	}
	set, err := cpuset.Parse(value)
	if err != nil {
		return NodeSelector{}, errors.Wrapf(err, "workingset: invalid node selector %q", value)
	}
	ids := []NodeID{}
	for _, id := range set.List() {
		ids = append(ids, NodeID(id))
	}
	return Nodes(ids...), nil
}

// All tells if the selector selects all nodes.
func (sel NodeSelector) All() bool {
	return sel.nodes == nil
}

// Selects tells if the node is selected.
func (sel NodeSelector) Selects(id NodeID) bool {
	if sel.nodes == nil {
		return true
	}
	_, ok := sel.nodes[id]
	return ok
}

// String returns the selector in the same format ParseNodeSelector accepts.
func (sel NodeSelector) String() string {
	if sel.nodes == nil {
		return "all"
	}
	ints := make([]int, 0, len(sel.nodes))
	for id := range sel.nodes {
		ints = append(ints, int(id))
	}
	return cpuset.New(ints...).String()
}

// Estimate returns the amount of cold memory in the snapshot, the total
// size of buckets at least threshold milliseconds old on the selected nodes.
func Estimate(snap Snapshot, threshold uint64, sel NodeSelector) uint64 {
	var total uint64
	for _, cold := range EstimatePerNode(snap, threshold, sel) {
		total += cold
	}
	return total
}

// EstimatePerNode returns the amount of cold memory on each selected node
// present in the snapshot.
func EstimatePerNode(snap Snapshot, threshold uint64, sel NodeSelector) map[NodeID]uint64 {
	perNode := make(map[NodeID]uint64, len(snap))
	for id, buckets := range snap {
		if !sel.Selects(id) {
			continue
		}
		var cold uint64
		for _, b := range buckets {
			if b.AgeMs >= threshold {
				cold += b.Size()
			}
		}
		perNode[id] = cold
	}
	return perNode
}

// Flatten calls fn for every value in the snapshot with labels of the form
// <prefix>.node.<id>.<age>ms.anon and <prefix>.node.<id>.<age>ms.file.
// Nodes are visited in ascending order, buckets in reported order.
func Flatten(prefix string, snap Snapshot, fn func(label string, value uint64)) {
	for _, id := range snap.Nodes() {
		node := prefix + ".node." + strconv.Itoa(int(id)) + "."
		for _, b := range snap[id] {
			age := node + strconv.FormatUint(b.AgeMs, 10) + "ms"
			fn(age+".anon", b.Anon)
			fn(age+".file", b.File)
		}
	}
}
