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
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/intel/wsreclaim/pkg/sysfs"
)

func TestParsePageAgeIntervals(t *testing.T) {
	intervals, err := ParsePageAgeIntervals("0,1000,2000,4000;1,500")
	require.NoError(t, err)
	require.Equal(t, []PageAgeIntervals{
		{Node: 0, Intervals: []uint64{1000, 2000, 4000}},
		{Node: 1, Intervals: []uint64{500}},
	}, intervals)

	for _, spec := range []string{
		"",
		"0",
		"x,1000",
		"0,1000;0,2000",
		"0,2000,1000",
		"0,0,1000",
		"0,1000,abc",
	} {
		_, err := ParsePageAgeIntervals(spec)
		var serr *SpecError
		require.True(t, errors.As(err, &serr), "spec %q: expected SpecError, got %v", spec, err)
	}
}

func TestParseRefreshIntervals(t *testing.T) {
	intervals, err := ParseRefreshIntervals("1,2000; 0,1000")
	require.NoError(t, err)
	require.Equal(t, []RefreshInterval{
		{Node: 1, IntervalMs: 2000},
		{Node: 0, IntervalMs: 1000},
	}, intervals)

	for _, spec := range []string{"", "0", "0,1000,2000", "0,0", "-1,1000"} {
		_, err := ParseRefreshIntervals(spec)
		require.Error(t, err, "spec %q", spec)
	}
}

type recordingWriter struct {
	entries []string
}

func (w *recordingWriter) Write(entry, data string) error {
	w.entries = append(w.entries, entry+":"+data)
	return nil
}

func TestConfigureGroup(t *testing.T) {
	w := &recordingWriter{}
	refresh, err := ParseRefreshIntervals("1,2000;0,1000")
	require.NoError(t, err)
	require.NoError(t, ConfigureGroup(w, refresh))
	require.Equal(t, []string{
		"memory.workingset.refresh_interval:N0=1000\n",
		"memory.workingset.refresh_interval:N1=2000\n",
	}, w.entries)
}

func TestConfigureNodes(t *testing.T) {
	root := t.TempDir()
	nodeDir := filepath.Join(root, "devices/system/node")
	require.NoError(t, os.MkdirAll(nodeDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nodeDir, "online"), []byte("0\n"), 0o644))

	sys := sysfs.NewSystem(root)
	for _, entry := range []string{sysfs.PageAgeEntry, sysfs.RefreshEntry} {
		path := sys.WorkingsetEntry(0, entry)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, nil, 0o644))
	}

	r := &Reporting{
		PageAge:     []PageAgeIntervals{{Node: 0, Intervals: []uint64{1000, 2000}}},
		NodeRefresh: []RefreshInterval{{Node: 0, IntervalMs: 500}},
		Refresh:     []RefreshInterval{{Node: 0, IntervalMs: 500}},
	}
	w := &recordingWriter{}
	require.NoError(t, r.Apply(sys, w))

	buf, err := os.ReadFile(sys.WorkingsetEntry(0, sysfs.PageAgeEntry))
	require.NoError(t, err)
	require.Equal(t, "1000,2000", string(buf))
	buf, err = os.ReadFile(sys.WorkingsetEntry(0, sysfs.RefreshEntry))
	require.NoError(t, err)
	require.Equal(t, "500", string(buf))
	require.Len(t, w.entries, 1)

	err = ConfigureNodes(sys, []PageAgeIntervals{{Node: 1, Intervals: []uint64{1000}}}, nil)
	require.ErrorContains(t, err, "node 1 is not online")
}
