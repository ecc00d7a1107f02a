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
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	goxrate "golang.org/x/time/rate"
)

// a test Backend that records messages for verification
type testlogger struct {
	sync.Mutex
	recorded []string
}

const testLoggerName = "testlogger"

var testlog = &testlogger{}

func (l *testlogger) Name() string {
	return testLoggerName
}

func (l *testlogger) Log(level Level, source, format string, args ...interface{}) {
	l.Lock()
	defer l.Unlock()
	l.recorded = append(l.recorded, fmt.Sprintf("%s [%s] ", level, source)+fmt.Sprintf(format, args...))
}

func (l *testlogger) Flush() {}

func (l *testlogger) reset() []string {
	l.Lock()
	defer l.Unlock()
	recorded := l.recorded
	l.recorded = nil
	return recorded
}

func setup(t *testing.T) *testlogger {
	RegisterBackend(testLoggerName, func() Backend { return testlog })
	require.NoError(t, SetBackend(testLoggerName))
	SetLevel(LevelInfo)
	SetDebug("off:*")
	testlog.reset()
	return testlog
}

func TestLevels(t *testing.T) {
	tl := setup(t)
	l := Get("levels")

	l.Debug("invisible")
	l.Info("info %d", 1)
	l.Warn("warn %d", 2)
	l.Error("error %d", 3)
	require.Equal(t, []string{
		"info [levels] info 1",
		"warning [levels] warn 2",
		"error [levels] error 3",
	}, tl.reset())

	SetLevel(LevelError)
	l.Info("suppressed")
	l.Warn("suppressed")
	l.Error("passed")
	require.Equal(t, []string{"error [levels] passed"}, tl.reset())
}

func TestDebugSelectors(t *testing.T) {
	tl := setup(t)
	a, b := Get("alpha"), Get("beta")

	SetDebug("alpha")
	require.True(t, a.DebugEnabled())
	require.False(t, b.DebugEnabled())
	a.Debug("a")
	b.Debug("b")
	require.Equal(t, []string{"debug [alpha] a"}, tl.reset())

	SetDebug("*", "off:alpha")
	require.False(t, a.DebugEnabled())
	require.True(t, b.DebugEnabled())

	old := a.EnableDebug(true)
	require.False(t, old)
	require.True(t, a.DebugEnabled())
}

func TestGetReturnsSameLogger(t *testing.T) {
	require.Equal(t, Get("same"), Get("[same]"))
	require.Contains(t, Sources(), "same")
}

func TestParseLevel(t *testing.T) {
	for name, expected := range map[string]Level{
		"debug":   LevelDebug,
		"info":    LevelInfo,
		"warning": LevelWarn,
		"warn":    LevelWarn,
		"ERROR":   LevelError,
	} {
		level, err := ParseLevel(name)
		require.NoError(t, err, name)
		require.Equal(t, expected, level, name)
	}
	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestFmtBackend(t *testing.T) {
	buf := &bytes.Buffer{}
	b := NewFmtBackend(buf).(*fmtBackend)
	b.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 6000, time.UTC) }

	b.Log(LevelWarn, "reclaim", "first\nsecond %d", 2)
	require.Equal(t,
		"03:04:05.000006 W: [reclaim] first\n03:04:05.000006 W: [reclaim] second 2\n",
		buf.String())
}

func TestRateLimit(t *testing.T) {
	tl := setup(t)
	rl := RateLimit(Get("ratelimit"), Interval(time.Hour))

	for i := 0; i < 5; i++ {
		rl.Warn("failed to read %s", "memory.current")
	}
	rl.Warn("failed to read %s", "memory.stat")

	recorded := tl.reset()
	require.Len(t, recorded, 2)
	require.True(t, strings.HasSuffix(recorded[0], "memory.current"))
	require.True(t, strings.HasSuffix(recorded[1], "memory.stat"))
}

func TestRateLimitKey(t *testing.T) {
	tl := setup(t)
	rl := RateLimit(Get("ratelimit"), Rate{
		Limit: Every(time.Hour),
		Key: func(format string, args ...interface{}) string {
			return format
		},
	}).(*ratelimited)

	for i := 0; i < 3; i++ {
		rl.Warn("tick %d failed", i)
	}
	recorded := tl.reset()
	require.Len(t, recorded, 1)
	require.True(t, strings.HasSuffix(recorded[0], "tick 0 failed"))

	// let the next message through, reporting what was dropped
	rl.limits["tick %d failed"].Limiter = goxrate.NewLimiter(goxrate.Inf, 1)
	rl.Warn("tick %d failed", 3)
	recorded = tl.reset()
	require.Len(t, recorded, 1)
	require.True(t, strings.HasSuffix(recorded[0], "tick 3 failed (2 similar messages suppressed)"))
}

func TestRateLimitWindow(t *testing.T) {
	setup(t)
	rl := RateLimit(Get("window"), Rate{Limit: Every(time.Hour), Window: 1}).(*ratelimited)
	require.Equal(t, MinimumWindow, rl.rate.Window)

	for i := 0; i < 2*MinimumWindow; i++ {
		rl.Info("message %d", i)
	}
	require.Len(t, rl.window, MinimumWindow)
	require.Len(t, rl.limits, MinimumWindow)
}
