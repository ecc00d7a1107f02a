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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// DefaultRoot is the default sysfs mount point.
	DefaultRoot = "/sys"

	nodeDir       = "devices/system/node"
	onlineNodes   = "online"
	workingsetDir = "workingset_report"
	zswapEnabled  = "module/zswap/parameters/enabled"

	// PageAgeEntry is the per-node entry holding the page age bin boundaries.
	PageAgeEntry = "page_age_intervals"
	// RefreshEntry is the per-node entry holding the report refresh interval.
	RefreshEntry = "refresh_interval"
)

// System provides access to the node-scoped entries of a sysfs tree.
type System struct {
	root string
}

// NewSystem returns a System rooted at the given sysfs mount point.
func NewSystem(root string) *System {
	if root == "" {
		root = DefaultRoot
	}
	return &System{root: root}
}

// Root returns the sysfs mount point.
func (sys *System) Root() string {
	return sys.root
}

// OnlineNodes returns the set of online NUMA nodes.
func (sys *System) OnlineNodes() (IDSet, error) {
	path := filepath.Join(sys.root, nodeDir, onlineNodes)
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, sysfsError(path, "failed to read online nodes: %v", err)
	}
	nodes, err := ParseIDSet(string(buf))
	if err != nil {
		return nil, sysfsError(path, "failed to parse online nodes %q: %v",
			strings.TrimSpace(string(buf)), err)
	}
	return nodes, nil
}

// WorkingsetEntry returns the path of a per-node working set report entry.
func (sys *System) WorkingsetEntry(node ID, entry string) string {
	return filepath.Join(sys.root, nodeDir, "node"+strconv.Itoa(int(node)), workingsetDir, entry)
}

// WriteWorkingsetEntry writes value to a per-node working set report entry.
func (sys *System) WriteWorkingsetEntry(node ID, entry, value string) error {
	return writeEntry(sys.WorkingsetEntry(node, entry), value)
}

// SetZswapEnabled turns zswap on or off.
func (sys *System) SetZswapEnabled(enabled bool) error {
	value := "0"
	if enabled {
		value = "1"
	}
	return writeEntry(filepath.Join(sys.root, zswapEnabled), value)
}

func writeEntry(path, value string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return sysfsError(path, "cannot open: %v", err)
	}
	defer f.Close()

	if _, err = f.Write([]byte(value)); err != nil {
		return sysfsError(path, "cannot write %q: %v", value, err)
	}
	return nil
}

func sysfsError(path, format string, args ...interface{}) error {
	return errors.New("sysfs: " + path + ": " + fmt.Sprintf(format, args...))
}
