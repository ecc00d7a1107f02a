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
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	// Procs is the cgroup's "cgroup.procs" entry.
	Procs = "cgroup.procs"
	// MemoryCurrent is the memory controller's "memory.current" entry.
	MemoryCurrent = "memory.current"
	// MemorySwapCurrent is the memory controller's "memory.swap.current" entry.
	MemorySwapCurrent = "memory.swap.current"
	// MemoryZswapCurrent is the memory controller's "memory.zswap.current" entry.
	MemoryZswapCurrent = "memory.zswap.current"
	// MemoryStat is the memory controller's "memory.stat" entry.
	MemoryStat = "memory.stat"
	// MemoryReclaim is the memory controller's "memory.reclaim" entry.
	MemoryReclaim = "memory.reclaim"
	// PageAge is the memory controller's working set page age histogram.
	PageAge = "memory.workingset.page_age"
	// RefreshInterval is the memory controller's working set refresh interval.
	RefreshInterval = "memory.workingset.refresh_interval"
)

var (
	// mountDir is the cgroup v2 unified hierarchy mount point.
	mountDir = "/sys/fs/cgroup"
	// ErrPartialReclaim is returned when the kernel reclaimed less than requested.
	ErrPartialReclaim = errors.New("cgroups: partial reclaim")
)

// GetMountDir returns the cgroup v2 mount point.
func GetMountDir() string {
	return mountDir
}

// SetMountDir sets the cgroup v2 mount point.
func SetMountDir(dir string) {
	mountDir = dir
}

// Status tells the outcome of reading a cgroup entry.
type Status int

const (
	// Found means the entry was read successfully.
	Found Status = iota
	// NotFound means the entry (or the whole group) does not exist.
	NotFound
	// Failed means the entry exists but could not be read.
	Failed
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case NotFound:
		return "not found"
	case Failed:
		return "failed"
	}
	return "<invalid status " + strconv.Itoa(int(s)) + ">"
}

// Result is the outcome of reading a cgroup entry.
type Result struct {
	Status Status
	Data   string
	Err    error
}

// Uint64 parses the result as a single unsigned integer.
func (r Result) Uint64() (uint64, error) {
	if r.Status != Found {
		return 0, r.error()
	}
	v, err := strconv.ParseUint(strings.TrimSpace(r.Data), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "cgroups: invalid numeric value %q", strings.TrimSpace(r.Data))
	}
	return v, nil
}

func (r Result) error() error {
	if r.Err != nil {
		return r.Err
	}
	if r.Status == NotFound {
		return os.ErrNotExist
	}
	return nil
}

// Group is a single cgroup v2 directory.
type Group struct {
	path string
}

// New returns a Group for path. Relative paths are taken relative to the
// cgroup mount point.
func New(path string) *Group {
	if !filepath.IsAbs(path) {
		path = filepath.Join(mountDir, path)
	}
	return &Group{path: filepath.Clean(path)}
}

// Path returns the absolute path of the group.
func (g *Group) Path() string {
	return g.path
}

// String returns the path of the group.
func (g *Group) String() string {
	return g.path
}

// Read reads the given entry of the group.
func (g *Group) Read(entry string) Result {
	data, err := currentPlatform.readFromFile(filepath.Join(g.path, entry))
	switch {
	case err == nil:
		return Result{Status: Found, Data: data}
	case errors.Is(err, os.ErrNotExist):
		return Result{Status: NotFound, Err: err}
	default:
		return Result{Status: Failed, Err: err}
	}
}

// Write writes data to the given entry of the group.
func (g *Group) Write(entry, data string) error {
	path := filepath.Join(g.path, entry)
	if err := currentPlatform.writeToFile(path, data); err != nil {
		return errors.Wrapf(err, "cgroups: failed to write %q to %s", data, path)
	}
	return nil
}

// Pids returns the processes in the group.
func (g *Group) Pids() ([]int, Result) {
	r := g.Read(Procs)
	if r.Status != Found {
		return nil, r
	}
	pids, err := parsePids(r.Data)
	if err != nil {
		return nil, Result{Status: Failed, Err: err}
	}
	return pids, r
}

// IsAlive tells if the group exists and has at least one process.
func (g *Group) IsAlive() bool {
	pids, r := g.Pids()
	return r.Status == Found && len(pids) > 0
}

// HasPid tells if pid belongs to the group.
func (g *Group) HasPid(pid int) bool {
	pids, r := g.Pids()
	if r.Status != Found {
		return false
	}
	for _, p := range pids {
		if p == pid {
			return true
		}
	}
	return false
}

// Reclaim asks the kernel to reclaim the given amount of memory from the
// group. ErrPartialReclaim is returned if less than requested was reclaimed.
func (g *Group) Reclaim(bytes uint64) error {
	err := g.Write(MemoryReclaim, strconv.FormatUint(bytes, 10))
	if err != nil && errors.Is(err, unix.EAGAIN) {
		return errors.Wrapf(ErrPartialReclaim, "%s: requested %d bytes", g.path, bytes)
	}
	return err
}

// IsCgroup2 tells if path is on a cgroup v2 filesystem.
func IsCgroup2(path string) (bool, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return false, errors.Wrapf(err, "cgroups: statfs %s", path)
	}
	return st.Type == unix.CGROUP2_SUPER_MAGIC, nil
}

func parsePids(data string) ([]int, error) {
	pids := []int{}
	for _, line := range splitLines(data) {
		pid, err := strconv.Atoi(line)
		if err != nil {
			return nil, errors.Wrapf(err, "cgroups: invalid pid %q", line)
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

// splitLines splits data into lines, dropping empty ones.
func splitLines(data string) []string {
	lines := []string{}
	for _, line := range strings.Split(data, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// platformInterface includes functions that access the system.
type platformInterface interface {
	readFromFile(filename string) (string, error)
	writeToFile(filename string, content string) error
}

// defaultPlatform accesses the underlying system.
type defaultPlatform struct{}

// currentPlatform defines which platformInterface is used.
var currentPlatform platformInterface = defaultPlatform{}

func (defaultPlatform) readFromFile(filename string) (string, error) {
	content, err := os.ReadFile(filename)
	return string(content), err
}

// writeToFile writes content to an existing file.
func (defaultPlatform) writeToFile(filename string, content string) error {
	f, err := os.OpenFile(filename, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte(content))
	return err
}
