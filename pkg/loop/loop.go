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

package loop

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/wait"

	logger "github.com/intel/wsreclaim/pkg/log"
)

// Reason tells why a loop stopped.
type Reason int

const (
	// ReasonTerminated means a step reported it is done.
	ReasonTerminated Reason = iota
	// ReasonGone means the liveness check failed.
	ReasonGone
	// ReasonCanceled means the loop context was canceled.
	ReasonCanceled
	// ReasonTimeout means the loop ran out of time.
	ReasonTimeout
	// ReasonNeverStarted means the liveness check never succeeded.
	ReasonNeverStarted
)

func (r Reason) String() string {
	switch r {
	case ReasonTerminated:
		return "terminated"
	case ReasonGone:
		return "gone"
	case ReasonCanceled:
		return "canceled"
	case ReasonTimeout:
		return "timeout"
	case ReasonNeverStarted:
		return "never started"
	}
	return "<unknown reason " + strconv.Itoa(int(r)) + ">"
}

const (
	// maxPollInterval is the longest interval between liveness checks
	// while waiting for the workload to appear.
	maxPollInterval = 100 * time.Millisecond
)

// AliveFunc checks if the monitored workload is still around.
type AliveFunc func() bool

// StepFunc is called once per tick. Returning true stops the loop.
type StepFunc func(ctx context.Context, tick int) (bool, error)

// Loop runs a step function periodically until it is done, the workload is
// gone, or the loop is canceled or times out. Ticks never overlap.
type Loop struct {
	// Name identifies the loop in log messages.
	Name string
	// Interval is the time to sleep between ticks.
	Interval time.Duration
	// Timeout limits the whole run, if non-zero.
	Timeout time.Duration
	// MaxWait is the time to wait for Alive to become true before the
	// first tick, if non-zero.
	MaxWait time.Duration
	// Alive is checked before every tick, if set.
	Alive AliveFunc
}

var log = logger.Get("loop")

// Run runs the loop. Step errors are logged and do not stop the loop. The
// only error returned is for an invalid loop configuration.
func (l *Loop) Run(ctx context.Context, step StepFunc) (Reason, error) {
	if l.Interval <= 0 {
		return ReasonNeverStarted, errors.Errorf("loop %s: invalid interval %v", l.Name, l.Interval)
	}
	if l.Timeout < 0 || l.MaxWait < 0 {
		return ReasonNeverStarted, errors.Errorf("loop %s: invalid timeout %v/max wait %v",
			l.Name, l.Timeout, l.MaxWait)
	}

	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	if reason, ok := l.waitAlive(ctx); !ok {
		log.Info("%s: stopped before first tick (%s)", l.Name, reason)
		return reason, nil
	}

	errlog := logger.RateLimit(log, logger.Rate{
		Limit: logger.Every(time.Minute),
		Burst: 1,
		Key:   tickErrorClass,
	})
	timer := time.NewTimer(l.Interval)
	defer timer.Stop()

	for tick := 0; ; tick++ {
		if ctx.Err() != nil {
			return l.stopped(ctx, tick), nil
		}
		if l.Alive != nil && !l.Alive() {
			log.Info("%s: workload gone after %d ticks", l.Name, tick)
			return ReasonGone, nil
		}

		done, err := step(ctx, tick)
		if err != nil {
			log.Debug("%s: tick %d failed: %v", l.Name, tick, err)
			errlog.Warn("%s: %v", l.Name, err)
		}
		if done {
			log.Info("%s: terminated after %d ticks", l.Name, tick+1)
			return ReasonTerminated, nil
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(l.Interval)
		select {
		case <-ctx.Done():
			return l.stopped(ctx, tick+1), nil
		case <-timer.C:
		}
	}
}

func (l *Loop) waitAlive(ctx context.Context) (Reason, bool) {
	if l.Alive == nil || l.MaxWait == 0 {
		return 0, true
	}

	poll := l.Interval
	if poll > maxPollInterval {
		poll = maxPollInterval
	}
	err := wait.PollUntilContextTimeout(ctx, poll, l.MaxWait, true,
		func(context.Context) (bool, error) {
			return l.Alive(), nil
		})
	switch {
	case err == nil:
		return 0, true
	case ctx.Err() != nil:
		return reasonOf(ctx), false
	default:
		return ReasonNeverStarted, false
	}
}

func (l *Loop) stopped(ctx context.Context, ticks int) Reason {
	reason := reasonOf(ctx)
	log.Info("%s: stopped after %d ticks (%s)", l.Name, ticks, reason)
	return reason
}

func reasonOf(ctx context.Context) Reason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ReasonTimeout
	}
	return ReasonCanceled
}

// tickErrorClass keys tick errors by their text with every number masked,
// so the same failure repeating with a different tick or value is limited.
func tickErrorClass(format string, args ...interface{}) string {
	var (
		b     strings.Builder
		inNum bool
	)
	for _, r := range fmt.Sprintf(format, args...) {
		if unicode.IsDigit(r) {
			if !inNum {
				b.WriteByte('#')
			}
			inNum = true
			continue
		}
		inNum = false
		b.WriteRune(r)
	}
	return b.String()
}
