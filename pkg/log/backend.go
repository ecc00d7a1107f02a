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

package log

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"k8s.io/klog/v2"
)

// Backend can format and emit log messages.
type Backend interface {
	// Name returns the name of this backend.
	Name() string
	// Log emits log messages with the given severity, source, and Printf-like arguments.
	Log(Level, string, string, ...interface{})
	// Flush flushes any buffered messages.
	Flush()
}

// BackendFn is a functions that creates a Backend instance.
type BackendFn func() Backend

const (
	// KlogBackendName is the name of the klog-based backend.
	KlogBackendName = "klog"
	// FmtBackendName is the name of our simple fmt-based logging backend.
	FmtBackendName = "fmt"
)

// RegisterBackend registers a logger backend.
func RegisterBackend(name string, fn BackendFn) {
	log.Lock()
	defer log.Unlock()
	log.backends[name] = fn
}

// Backends returns the names of all registered backends.
func Backends() []string {
	log.RLock()
	defer log.RUnlock()

	names := make([]string, 0, len(log.backends))
	for name := range log.backends {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// SetBackend activates the named backend.
func SetBackend(name string) error {
	log.Lock()
	defer log.Unlock()

	fn, ok := log.backends[name]
	if !ok {
		return fmt.Errorf("unknown logger backend %q", name)
	}
	if log.active != nil {
		log.active.Flush()
	}
	log.active = fn()

	return nil
}

var (
	fallback     Backend
	fallbackOnce sync.Once
)

// defaultBackend returns the backend used until one is explicitly activated.
func defaultBackend() Backend {
	fallbackOnce.Do(func() {
		fallback = createKlogBackend()
	})
	return fallback
}

//
// klog backend
//

type klogBackend struct{}

func createKlogBackend() Backend {
	return klogBackend{}
}

func (klogBackend) Name() string {
	return KlogBackendName
}

func (klogBackend) Log(level Level, source, format string, args ...interface{}) {
	msg := "[" + source + "] " + fmt.Sprintf(format, args...)
	switch level {
	case LevelDebug:
		klog.InfoDepth(2, "DEBUG: "+msg)
	case LevelInfo:
		klog.InfoDepth(2, msg)
	case LevelWarn:
		klog.WarningDepth(2, msg)
	default:
		klog.ErrorDepth(2, msg)
	}
}

func (klogBackend) Flush() {
	klog.Flush()
}

//
// fmt backend
//

// severity tags fmtBackend uses to prefix emitted messages with.
var fmtTags = map[Level]string{
	LevelDebug: "D:",
	LevelInfo:  "I:",
	LevelWarn:  "W:",
	LevelError: "E:",
	LevelFatal: "FATAL ERROR:",
}

// fmtBackend writes timestamped, tagged lines to an io.Writer.
type fmtBackend struct {
	sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewFmtBackend creates a fmt-based Backend writing to w.
func NewFmtBackend(w io.Writer) Backend {
	return &fmtBackend{w: w, now: time.Now}
}

func createFmtBackend() Backend {
	return NewFmtBackend(os.Stderr)
}

func (*fmtBackend) Name() string {
	return FmtBackendName
}

func (f *fmtBackend) Log(level Level, source, format string, args ...interface{}) {
	f.Lock()
	defer f.Unlock()

	stamp := f.now().Format("15:04:05.000000")
	for _, line := range strings.Split(fmt.Sprintf(format, args...), "\n") {
		fmt.Fprintf(f.w, "%s %s [%s] %s\n", stamp, fmtTags[level], source, line)
	}
}

func (*fmtBackend) Flush() {}

func init() {
	RegisterBackend(KlogBackendName, createKlogBackend)
	RegisterBackend(FmtBackendName, createFmtBackend)
}
