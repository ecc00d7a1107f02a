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

package sysfs

import (
	"sort"
	"strconv"
	"strings"

	"k8s.io/utils/cpuset"
)

const (
	// Unknown represents an unknown id.
	Unknown ID = -1
)

// ID is an integer id, used to identify NUMA nodes.
type ID int

// IDSet is an unordered set of integer ids.
type IDSet map[ID]struct{}

// NewIDSet creates a new unordered set of (integer) ids.
func NewIDSet(ids ...ID) IDSet {
	s := make(IDSet, len(ids))
	s.Add(ids...)
	return s
}

// NewIDSetFromIntSlice creates a new unordered set from an integer slice.
func NewIDSetFromIntSlice(ids ...int) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[ID(id)] = struct{}{}
	}
	return s
}

// ParseIDSet parses a kernel list format ("0-2,4") string into an id set.
func ParseIDSet(list string) (IDSet, error) {
	cset, err := cpuset.Parse(strings.TrimSpace(list))
	if err != nil {
		return nil, err
	}
	return NewIDSetFromIntSlice(cset.List()...), nil
}

// Add adds the given ids into the set.
func (s IDSet) Add(ids ...ID) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// Size returns the number of ids in the set.
func (s IDSet) Size() int {
	return len(s)
}

// Has tests if all the ids are present in the set.
func (s IDSet) Has(ids ...ID) bool {
	if s == nil {
		return false
	}
	for _, id := range ids {
		if _, ok := s[id]; !ok {
			return false
		}
	}
	return true
}

// SortedMembers returns all ids in the set as a sorted slice.
func (s IDSet) SortedMembers() []ID {
	ids := make([]ID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i] < ids[j]
	})
	return ids
}

// String returns the set in kernel list format.
func (s IDSet) String() string {
	ints := make([]int, 0, len(s))
	for _, id := range s.SortedMembers() {
		ints = append(ints, int(id))
	}
	return cpuset.New(ints...).String()
}

// Join returns the sorted set members separated with sep.
func (s IDSet) Join(sep string) string {
	strs := make([]string, 0, len(s))
	for _, id := range s.SortedMembers() {
		strs = append(strs, strconv.Itoa(int(id)))
	}
	return strings.Join(strs, sep)
}
