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

package workload

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"

	logger "github.com/intel/wsreclaim/pkg/log"
)

// launchScript moves the shell into the group, then replaces it with the
// workload command. $0 is the group directory, "$@" the command.
const launchScript = `echo $$ > "$0"/cgroup.procs && exec "$@"`

var log = logger.Get("workload")

// Launcher starts workloads inside a group.
type Launcher interface {
	// Launch starts command inside the group at groupPath, returning the
	// started workload.
	Launch(ctx context.Context, groupPath string, command []string) (*Workload, error)
}

// Workload is a started workload process.
type Workload struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// Pid returns the process ID of the workload.
func (w *Workload) Pid() int {
	return w.cmd.Process.Pid
}

// Done is closed once the workload has exited.
func (w *Workload) Done() <-chan struct{} {
	return w.done
}

// Wait waits for the workload to exit and returns its exit error.
func (w *Workload) Wait() error {
	<-w.done
	return w.err
}

// ShellLauncher launches workloads using /bin/sh.
type ShellLauncher struct {
	// Shell overrides the shell used, /bin/sh by default.
	Shell string
}

// Launch implements Launcher.
func (l *ShellLauncher) Launch(ctx context.Context, groupPath string, command []string) (*Workload, error) {
	if len(command) == 0 {
		return nil, errors.New("workload: no command given")
	}
	if _, err := os.Stat(filepath.Join(groupPath, "cgroup.procs")); err != nil {
		return nil, errors.Wrapf(err, "workload: invalid group %s", groupPath)
	}

	shell := l.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	args := append([]string{"-c", launchScript, groupPath}, command...)
	cmd := exec.CommandContext(ctx, shell, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, errors.Wrapf(err, "workload: failed to start %q", command)
	}
	log.Info("started workload %q in %s with pid %d", command, groupPath, cmd.Process.Pid)

	w := &Workload{cmd: cmd, done: make(chan struct{})}
	go func() {
		w.err = cmd.Wait()
		log.Info("workload %d exited (%v)", cmd.Process.Pid, w.err)
		close(w.done)
	}()
	return w, nil
}
