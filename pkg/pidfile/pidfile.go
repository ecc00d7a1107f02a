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

package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"
)

// File is a PID file guarding a single managed group.
type File struct {
	path string
	f    *os.File
}

// New returns a PID file at path.
func New(path string) *File {
	return &File{path: path}
}

// Path returns the path of the PID file.
func (p *File) Path() string {
	return p.path
}

// DefaultPath returns the default PID file path for the given group. The
// file is in /var/run when running as root, in /tmp otherwise.
func DefaultPath(group string) string {
	name := "wsreclaim"
	if group = strings.Trim(filepath.Clean(group), "/."); group != "" {
		name += "-" + strings.ReplaceAll(group, "/", "-")
	}
	if os.Geteuid() > 0 {
		return filepath.Join("/tmp", name+".pid")
	}
	return filepath.Join("/", "var", "run", name+".pid")
}

// Acquire writes the PID file unless another live process owns it. A stale
// PID file of a process no longer running is replaced.
func (p *File) Acquire() error {
	if p.f != nil {
		return nil
	}

	owner, err := p.OwnerPid()
	if err != nil {
		return err
	}
	switch {
	case owner > 0 && owner != os.Getpid():
		return errors.Errorf("PID file %s is owned by running process %d", p.path, owner)
	default:
		if err := p.Remove(); err != nil {
			return errors.Wrap(err, "failed to remove stale PID file")
		}
	}
	return p.Write()
}

// Write opens the PID file and writes os.Getpid() to it. If the PID file
// already exists Write() fails with an error. On successful completion,
// Write keeps the PID file open.
func (p *File) Write() error {
	if p.f != nil {
		return nil
	}

	err := os.MkdirAll(filepath.Dir(p.path), 0755)
	if err != nil {
		return errors.Wrap(err, "failed to create PID file")
	}

	p.f, err = os.OpenFile(p.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "failed to create PID file")
	}

	_, err = p.f.Write([]byte(strconv.Itoa(os.Getpid()) + "\n"))
	if err != nil {
		p.Close()
		return errors.Wrap(err, "failed to write PID file")
	}

	return nil
}

// Read reads the process ID in the PID file. 0 is returned if the file does
// not exist, -1 and an error if it cannot be read or parsed.
func (p *File) Read() (int, error) {
	buf, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return -1, errors.Wrap(err, "failed to read PID file")
	}

	content := strings.TrimSpace(string(buf))
	if content == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(content)
	if err != nil {
		return -1, errors.Wrapf(err, "invalid PID (%q) in PID file", content)
	}

	return pid, nil
}

// Close closes the PID file and truncates it to zero length.
func (p *File) Close() {
	if p.f != nil {
		p.f.Truncate(0)
		p.f.Close()
		p.f = nil
	}
}

// Remove removes the PID file unconditionally, regardless if the current
// process had created it or not.
func (p *File) Remove() error {
	p.Close()
	err := os.Remove(p.path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// OwnerPid returns the ID of the process owning the PID file. 0 is returned
// if it is known that no process owns the file. -1 and an error is returned
// if the owner or its existence could not be determined.
func (p *File) OwnerPid() (int, error) {
	pid, err := p.Read()
	if err != nil {
		return -1, err
	}
	if pid == 0 {
		return 0, nil
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return -1, errors.Wrapf(err, "FindProcess() failed for PID %d", pid)
	}

	err = proc.Signal(syscall.Signal(0))
	switch {
	case err == nil:
		return pid, nil
	case errors.Is(err, os.ErrProcessDone), errors.Is(err, syscall.ESRCH):
		return 0, nil
	case errors.Is(err, syscall.EPERM):
		// alive, but owned by someone else
		return pid, nil
	}

	return -1, errors.Wrapf(err, "failed to check process %d", pid)
}
