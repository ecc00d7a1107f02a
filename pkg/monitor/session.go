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

package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	logger "github.com/intel/wsreclaim/pkg/log"
	"github.com/intel/wsreclaim/pkg/loop"
	"github.com/intel/wsreclaim/pkg/sampler"
	"github.com/intel/wsreclaim/pkg/timeseries"
)

// Group is the cgroup being monitored.
type Group interface {
	sampler.Group
	IsAlive() bool
	HasPid(pid int) bool
}

// Config is the configuration of a monitoring session.
type Config struct {
	// Interval is the time between samples.
	Interval time.Duration
	// Timeout limits the whole session, if non-zero.
	Timeout time.Duration
	// MaxWait is the time to wait for the workload to show up in the group.
	MaxWait time.Duration
	// Sources are the metric sources to sample.
	Sources []string
	// Output is the path of the CSV file written at the end of the session.
	Output string
}

// Session samples a group periodically into a time series store, which is
// persisted once at the end of the session.
type Session struct {
	cfg       Config
	group     Group
	sampler   *sampler.Sampler
	store     *timeseries.Store
	pid       int
	persist   sync.Once
	persisted string
	err       error
	log       logger.Logger
}

// NewSession creates a monitoring session for group.
func NewSession(cfg Config, group Group, options ...sampler.Option) (*Session, error) {
	if cfg.Interval <= 0 {
		return nil, errors.Errorf("monitor: invalid sampling interval %v", cfg.Interval)
	}
	if cfg.Output == "" {
		return nil, errors.New("monitor: no output file given")
	}
	sources := cfg.Sources
	if len(sources) == 0 {
		sources = sampler.DefaultSources()
	}
	smp, err := sampler.New(group, sources, options...)
	if err != nil {
		return nil, err
	}

	return &Session{
		cfg:     cfg,
		group:   group,
		sampler: smp,
		store:   timeseries.New(),
		log:     logger.Get("monitor"),
	}, nil
}

// TrackPid makes the session stop once pid leaves the group. Without a
// tracked pid the session stops once the group is empty.
func (s *Session) TrackPid(pid int) {
	s.pid = pid
}

// Store returns the time series store of the session.
func (s *Session) Store() *timeseries.Store {
	return s.store
}

// Run samples the group until the workload is gone or ctx is done.
func (s *Session) Run(ctx context.Context) (loop.Reason, error) {
	l := &loop.Loop{
		Name:     "monitor",
		Interval: s.cfg.Interval,
		Timeout:  s.cfg.Timeout,
		MaxWait:  s.cfg.MaxWait,
		Alive:    s.alive,
	}
	if s.pid > 0 {
		s.log.Info("monitoring pid %d every %v", s.pid, s.cfg.Interval)
	} else {
		s.log.Info("monitoring group every %v", s.cfg.Interval)
	}
	return l.Run(ctx, s.Step)
}

// Step takes a single sample and appends it to the store.
func (s *Session) Step(ctx context.Context, tick int) (bool, error) {
	row, err := s.sampler.Sample(ctx, tick)
	seen := make(map[string]struct{}, len(row))
	for _, v := range row {
		if _, ok := seen[v.Label]; ok {
			err = multierror.Append(err, errors.Errorf("tick %d: duplicate sample for %q dropped", tick, v.Label))
			continue
		}
		seen[v.Label] = struct{}{}
		if v.Null {
			s.store.AppendNull(v.Label)
		} else {
			s.store.Append(v.Label, v.Value)
		}
	}
	s.store.EndTick()
	return false, err
}

// Persist writes the store to the configured output. Only the first call
// writes, later calls return the result of the first one.
func (s *Session) Persist() (string, error) {
	s.persist.Do(func() {
		s.log.Info("dumping %d samples of %d metrics to %s",
			s.store.Len(), len(s.store.Labels()), s.cfg.Output)
		s.persisted, s.err = s.store.WriteFile(s.cfg.Output)
	})
	return s.persisted, s.err
}

func (s *Session) alive() bool {
	if s.pid > 0 {
		return s.group.HasPid(s.pid)
	}
	return s.group.IsAlive()
}
