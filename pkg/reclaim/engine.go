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

package reclaim

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/intel/wsreclaim/pkg/cgroups"
	logger "github.com/intel/wsreclaim/pkg/log"
	"github.com/intel/wsreclaim/pkg/loop"
	"github.com/intel/wsreclaim/pkg/metricsring"
	"github.com/intel/wsreclaim/pkg/workingset"
)

const (
	// historyLength is the number of cycles kept in the engine history.
	historyLength = 16
	// MiB is the number of bytes in a mebibyte.
	MiB = 1024 * 1024
)

// Group is the cgroup the engine reclaims memory from.
type Group interface {
	Pids() ([]int, cgroups.Result)
	Read(entry string) cgroups.Result
	Reclaim(bytes uint64) error
}

// Config is the configuration of the reclaim policy engine.
type Config struct {
	// Policy is the reclaim policy to use.
	Policy PolicyKind
	// ColdAgeThresholdMs is the age at which memory is considered cold.
	ColdAgeThresholdMs uint64
	// Interval is the time between reclaim cycles.
	Interval time.Duration
	// Nodes selects the NUMA nodes cold memory is estimated on.
	Nodes workingset.NodeSelector
}

// Validate checks the configuration, reporting every problem found.
func (c *Config) Validate() error {
	var errs *multierror.Error
	if _, ok := policyNames[c.Policy]; !ok {
		errs = multierror.Append(errs, errors.Errorf("unknown policy %s", c.Policy))
	}
	if c.ColdAgeThresholdMs == 0 {
		errs = multierror.Append(errs, errors.New("cold age threshold must be positive"))
	}
	if c.Interval <= 0 {
		errs = multierror.Append(errs, errors.Errorf("reclaim interval must be positive, got %v", c.Interval))
	}
	return errs.ErrorOrNil()
}

// Cycle is the data passed between the states of a single reclaim cycle.
type Cycle struct {
	Tick      int
	State     State
	Snapshot  workingset.Snapshot
	ColdBytes uint64
	Request   uint64
	// Reclaimed is true if a reclaim request was written.
	Reclaimed bool
	// Partial is true if the kernel reclaimed less than requested.
	Partial   bool
	SwapDelta int64
	SwapKnown bool
	Err       error
}

// Policy implements the state transitions of a reclaim cycle.
type Policy interface {
	// Kind returns the kind of the policy.
	Kind() PolicyKind
	// Step performs the work of the cycle's current state and returns the next state.
	Step(ctx context.Context, c *Cycle) State
}

func newPolicy(cfg Config, group Group, log logger.Logger) (Policy, error) {
	switch cfg.Policy {
	case PolicyPeriodic:
		return newPeriodic(cfg, group, log), nil
	}
	return nil, errors.Errorf("reclaim: unknown policy %s", cfg.Policy)
}

// Status is a snapshot of the engine's counters.
type Status struct {
	State           State
	Cycles          uint64
	Reclaims        uint64
	PartialReclaims uint64
	RequestedBytes  uint64
	ColdBytes       uint64
	ColdBytesEWMA   float64
	// EWMAReady is false until enough cycles for ColdBytesEWMA ran.
	EWMAReady       bool
	SwapDelta       int64
	TickErrors      uint64
}

// Engine drives the reclaim cycle of a single group.
type Engine struct {
	sync.Mutex
	cfg     Config
	group   Group
	policy  Policy
	status  Status
	history *metricsring.Ring
	log     logger.Logger
}

// Option is an option for an Engine.
type Option func(*Engine)

// WithLogger sets the logger of the engine.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithPolicy overrides the policy selected by the configuration.
func WithPolicy(p Policy) Option {
	return func(e *Engine) {
		e.policy = p
	}
}

// NewEngine creates a reclaim engine for group.
func NewEngine(cfg Config, group Group, options ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "reclaim: invalid configuration")
	}

	e := &Engine{
		cfg:     cfg,
		group:   group,
		history: metricsring.New(historyLength),
		log:     logger.Get("reclaim"),
	}
	for _, o := range options {
		o(e)
	}
	if e.policy == nil {
		p, err := newPolicy(cfg, group, e.log)
		if err != nil {
			return nil, err
		}
		e.policy = p
	}
	e.status.State = Idle

	return e, nil
}

// Config returns the configuration of the engine.
func (e *Engine) Config() Config {
	return e.cfg
}

// Step runs a single reclaim cycle, returning true once the engine has
// terminated. Errors are contained in the cycle and returned for logging.
func (e *Engine) Step(ctx context.Context, tick int) (bool, error) {
	if e.State() == Terminated {
		return true, nil
	}

	c := &Cycle{Tick: tick, State: Sampling}
	e.setState(Sampling)
	for c.State != Sleeping && c.State != Terminated {
		if ctx.Err() != nil {
			c.State = Sleeping
			break
		}
		c.State = e.policy.Step(ctx, c)
		e.setState(c.State)
	}

	e.record(c)
	return c.State == Terminated, c.Err
}

// Run runs the engine in the given loop until the group is gone or the
// context is canceled. The loop interval defaults to the reclaim interval.
func (e *Engine) Run(ctx context.Context, l *loop.Loop) (loop.Reason, error) {
	if l.Interval == 0 {
		l.Interval = e.cfg.Interval
	}
	if l.Name == "" {
		l.Name = "reclaim"
	}
	e.log.Info("reclaiming memory older than %dms every %v on nodes %s (%s policy)",
		e.cfg.ColdAgeThresholdMs, l.Interval, e.cfg.Nodes, e.policy.Kind())
	return l.Run(ctx, e.Step)
}

// State returns the current state of the engine.
func (e *Engine) State() State {
	e.Lock()
	defer e.Unlock()
	return e.status.State
}

// Status returns the current counters of the engine.
func (e *Engine) Status() Status {
	e.Lock()
	defer e.Unlock()
	s := e.status
	s.ColdBytesEWMA = e.history.EWMA()
	s.EWMAReady = e.history.Warm()
	return s
}

// Dump returns a human readable summary of the engine state.
func (e *Engine) Dump() string {
	s := e.Status()
	history := e.history.LastN(historyLength)
	cold := make([]string, 0, len(history))
	for _, v := range history {
		cold = append(cold, fmt.Sprintf("%.2f", v/MiB))
	}
	return fmt.Sprintf("state: %s, policy: %s, cycles: %d, reclaims: %d (%d partial), "+
		"requested: %.2f MiB, tick errors: %d, cold MiB history: [%s]",
		s.State, e.policy.Kind(), s.Cycles, s.Reclaims, s.PartialReclaims,
		float64(s.RequestedBytes)/MiB, s.TickErrors, strings.Join(cold, " "))
}

func (e *Engine) setState(state State) {
	e.Lock()
	defer e.Unlock()
	e.status.State = state
}

func (e *Engine) record(c *Cycle) {
	e.Lock()
	defer e.Unlock()

	if c.Err != nil {
		e.status.TickErrors++
	}
	if c.State == Terminated {
		return
	}

	e.status.Cycles++
	e.status.ColdBytes = c.ColdBytes
	if c.Reclaimed {
		e.status.Reclaims++
		e.status.RequestedBytes += c.Request
		if c.Partial {
			e.status.PartialReclaims++
		}
	}
	if c.SwapKnown {
		e.status.SwapDelta = c.SwapDelta
	}
	if c.Snapshot != nil {
		e.history.Push(float64(c.ColdBytes))
	}
}
