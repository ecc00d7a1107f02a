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

package cgroups

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// StatEntry is a single key-value line of a flat-keyed cgroup entry.
type StatEntry struct {
	Key   string
	Value uint64
}

// ParseStat parses flat-keyed entries like memory.stat. The order of
// entries is preserved.
func ParseStat(data string) ([]StatEntry, error) {
	// File looks like this:
	//
	// anon 2211840
	// file 8192
	// ...

	var entries []StatEntry
	for _, line := range splitLines(data) {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, errors.Errorf("cgroups: malformed stat line %q", line)
		}
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "cgroups: malformed stat line %q", line)
		}
		entries = append(entries, StatEntry{Key: fields[0], Value: v})
	}
	return entries, nil
}

// ReadStat reads and parses a flat-keyed entry of the group.
func (g *Group) ReadStat(entry string) ([]StatEntry, Result) {
	r := g.Read(entry)
	if r.Status != Found {
		return nil, r
	}
	entries, err := ParseStat(r.Data)
	if err != nil {
		return nil, Result{Status: Failed, Err: err}
	}
	return entries, r
}
