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
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Level describes the severity of log messages.
type Level int

const (
	// LevelDebug is the severity for debug messages.
	LevelDebug Level = iota
	// LevelInfo is the severity for informational messages.
	LevelInfo
	// LevelWarn is the severity for warnings.
	LevelWarn
	// LevelError is the severity for errors.
	LevelError
	// LevelFatal is the severity for fatal errors.
	LevelFatal
)

// DefaultLevel is the default lowest unsuppressed severity.
const DefaultLevel = LevelInfo

// Logger is the interface for producing log messages for/from a particular source.
type Logger interface {
	// Debug formats and emits a debug message.
	Debug(format string, args ...interface{})
	// Info formats and emits an informational message.
	Info(format string, args ...interface{})
	// Warn formats and emits a warning message.
	Warn(format string, args ...interface{})
	// Error formats and emits an error message.
	Error(format string, args ...interface{})
	// Fatal formats and emits an error message and os.Exit()'s with status 1.
	Fatal(format string, args ...interface{})

	// EnableDebug enables debug messages for this Logger.
	EnableDebug(bool) bool
	// DebugEnabled checks if debug messages are enabled for this Logger.
	DebugEnabled() bool
	// Source returns the source name of this Logger.
	Source() string
}

// logger implements Logger for a single source.
type logger struct {
	source string
}

// registry is our runtime logging state.
type registry struct {
	sync.RWMutex
	level    Level
	active   Backend
	backends map[string]BackendFn
	debug    map[string]bool
	all      bool
	loggers  map[string]*logger
}

var log = &registry{
	level:    DefaultLevel,
	backends: make(map[string]BackendFn),
	debug:    make(map[string]bool),
	loggers:  make(map[string]*logger),
}

// our default logger
var deflog = Get(filepath.Base(filepath.Clean(os.Args[0])))

// Get returns the Logger for the given source, creating it if necessary.
func Get(source string) Logger {
	source = strings.Trim(source, "[] ")

	log.Lock()
	defer log.Unlock()

	if l, ok := log.loggers[source]; ok {
		return l
	}
	l := &logger{source: source}
	log.loggers[source] = l

	return l
}

// Default returns the default Logger.
func Default() Logger {
	return deflog
}

// Sources returns the names of all sources seen so far.
func Sources() []string {
	log.RLock()
	defer log.RUnlock()

	names := make([]string, 0, len(log.loggers))
	for name := range log.loggers {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// SetLevel sets the lowest unsuppressed severity.
func SetLevel(level Level) {
	log.Lock()
	defer log.Unlock()
	log.level = level
}

// ParseLevel parses the given severity level name.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return DefaultLevel, fmt.Errorf("invalid log level %q", name)
}

// String returns the name of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warning"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	}
	return fmt.Sprintf("<unknown level %d>", int(l))
}

// SetDebug enables or disables debugging for sources by parsing the given selectors.
func SetDebug(selectors ...string) {
	log.Lock()
	defer log.Unlock()

	for _, sel := range selectors {
		state := true
		for _, src := range strings.Split(sel, ",") {
			src = strings.TrimSpace(src)
			switch {
			case strings.HasPrefix(src, "off:"):
				state, src = false, strings.TrimPrefix(src, "off:")
			case strings.HasPrefix(src, "on:"):
				state, src = true, strings.TrimPrefix(src, "on:")
			}
			switch src {
			case "":
			case "*", "all":
				log.all = state
				log.debug = make(map[string]bool)
			default:
				log.debug[src] = state
			}
		}
	}
}

// Flush flushes any buffered messages of the active backend.
func Flush() {
	log.RLock()
	active := log.active
	log.RUnlock()

	if active != nil {
		active.Flush()
	}
}

// EnableDebug enables/disables debug logging for this logger.
func (l *logger) EnableDebug(state bool) bool {
	log.Lock()
	defer log.Unlock()

	old := log.debugging(l.source)
	log.debug[l.source] = state

	return old
}

// DebugEnabled checks debug logging is enabled for this logger.
func (l *logger) DebugEnabled() bool {
	log.RLock()
	defer log.RUnlock()
	return log.debugging(l.source)
}

// Source returns the source for the given logger.
func (l *logger) Source() string {
	return l.source
}

// Debug logs a debug message.
func (l *logger) Debug(format string, args ...interface{}) {
	if active, emit := l.emitter(LevelDebug); emit {
		active.Log(LevelDebug, l.source, format, args...)
	}
}

// Info logs an informational message.
func (l *logger) Info(format string, args ...interface{}) {
	if active, emit := l.emitter(LevelInfo); emit {
		active.Log(LevelInfo, l.source, format, args...)
	}
}

// Warn logs a warning message.
func (l *logger) Warn(format string, args ...interface{}) {
	if active, emit := l.emitter(LevelWarn); emit {
		active.Log(LevelWarn, l.source, format, args...)
	}
}

// Error logs an error message.
func (l *logger) Error(format string, args ...interface{}) {
	if active, emit := l.emitter(LevelError); emit {
		active.Log(LevelError, l.source, format, args...)
	}
}

// Fatal logs a fatal error message and os.Exit(1)'s.
func (l *logger) Fatal(format string, args ...interface{}) {
	active, _ := l.emitter(LevelFatal)
	active.Log(LevelFatal, l.source, format, args...)
	active.Flush()
	os.Exit(1)
}

// emitter returns the active backend and whether the level should be emitted.
func (l *logger) emitter(level Level) (Backend, bool) {
	log.RLock()
	defer log.RUnlock()

	active := log.active
	if active == nil {
		active = defaultBackend()
	}

	if level == LevelDebug {
		return active, log.debugging(l.source)
	}

	return active, level >= log.level
}

// debugging checks if debugging is on for source. Must be called with the lock held.
func (r *registry) debugging(source string) bool {
	if state, ok := r.debug[source]; ok {
		return state
	}
	return r.all
}

// Info formats and emits an informational message with the default source.
func Info(format string, args ...interface{}) {
	deflog.Info(format, args...)
}

// Warn formats and emits a warning message with the default source.
func Warn(format string, args ...interface{}) {
	deflog.Warn(format, args...)
}

// Error formats and emits an error message with the default source.
func Error(format string, args ...interface{}) {
	deflog.Error(format, args...)
}

// Fatal formats and emits an error message with the default source and exits.
func Fatal(format string, args ...interface{}) {
	deflog.Fatal(format, args...)
}

// Debug formats and emits a debug message with the default source.
func Debug(format string, args ...interface{}) {
	deflog.Debug(format, args...)
}
