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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func setupNodes(t *testing.T, online string, nodes ...int) *System {
	root := t.TempDir()
	dir := filepath.Join(root, nodeDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, onlineNodes), []byte(online+"\n"), 0o644))
	sys := NewSystem(root)
	for _, n := range nodes {
		entry := sys.WorkingsetEntry(ID(n), PageAgeEntry)
		require.NoError(t, os.MkdirAll(filepath.Dir(entry), 0o755))
		require.NoError(t, os.WriteFile(entry, nil, 0o644))
	}
	return sys
}

func TestIDSet(t *testing.T) {
	s, err := ParseIDSet("0-2,5\n")
	require.NoError(t, err)
	require.Equal(t, 4, s.Size())
	require.True(t, s.Has(0, 1, 2, 5))
	require.False(t, s.Has(3))
	require.Equal(t, []ID{0, 1, 2, 5}, s.SortedMembers())
	require.Equal(t, "0-2,5", s.String())
	require.Equal(t, "0,1,2,5", s.Join(","))

	_, err = ParseIDSet("1-x")
	require.Error(t, err)

	var empty IDSet
	require.False(t, empty.Has(0))
}

func TestOnlineNodes(t *testing.T) {
	sys := setupNodes(t, "0-1")
	nodes, err := sys.OnlineNodes()
	require.NoError(t, err)
	require.Equal(t, []ID{0, 1}, nodes.SortedMembers())

	_, err = NewSystem(t.TempDir()).OnlineNodes()
	require.Error(t, err)
}

func TestWriteWorkingsetEntry(t *testing.T) {
	sys := setupNodes(t, "0", 0)
	require.NoError(t, sys.WriteWorkingsetEntry(0, PageAgeEntry, "1000,2000"))

	buf, err := os.ReadFile(sys.WorkingsetEntry(0, PageAgeEntry))
	require.NoError(t, err)
	require.Equal(t, "1000,2000", string(buf))

	// node1 has no reporting entries
	require.Error(t, sys.WriteWorkingsetEntry(1, PageAgeEntry, "1000"))
}

func TestSetZswapEnabled(t *testing.T) {
	sys := setupNodes(t, "0")
	entry := filepath.Join(sys.Root(), zswapEnabled)
	require.NoError(t, os.MkdirAll(filepath.Dir(entry), 0o755))
	require.NoError(t, os.WriteFile(entry, []byte("N\n"), 0o644))

	require.NoError(t, sys.SetZswapEnabled(true))
	buf, err := os.ReadFile(entry)
	require.NoError(t, err)
	require.Equal(t, "1\n", string(buf))
}
