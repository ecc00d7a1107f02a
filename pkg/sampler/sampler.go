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

package sampler

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/intel/wsreclaim/pkg/cgroups"
	logger "github.com/intel/wsreclaim/pkg/log"
	"github.com/intel/wsreclaim/pkg/workingset"
)

// Kind is the kind of a metric source.
type Kind int

const (
	// StatBlock is a multi-line key-value counter file.
	StatBlock Kind = iota
	// Scalar is a single integer counter file.
	Scalar
	// WorkingSet is a working set page age report.
	WorkingSet
	// Timestamp is the wall-clock time of the sample.
	Timestamp
)

const (
	// TimestampSource is the name of the timestamp source.
	TimestampSource = "timestamp"
	// workingsetPrefix is the label prefix of flattened working set reports.
	workingsetPrefix = "memory.workingset"
)

// sources are the recognized metric sources.
var sources = map[string]Kind{
	cgroups.MemoryStat:         StatBlock,
	cgroups.MemoryCurrent:      Scalar,
	cgroups.MemorySwapCurrent:  Scalar,
	cgroups.MemoryZswapCurrent: Scalar,
	cgroups.PageAge:            WorkingSet,
	TimestampSource:            Timestamp,
}

// Sources returns the names of all recognized metric sources.
func Sources() []string {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultSources returns the sources sampled unless configured otherwise.
func DefaultSources() []string {
	return []string{
		TimestampSource,
		cgroups.MemoryCurrent,
		cgroups.MemorySwapCurrent,
		cgroups.MemoryZswapCurrent,
		cgroups.MemoryStat,
		cgroups.PageAge,
	}
}

// ConfigError is returned for an invalid sampler configuration.
type ConfigError struct {
	err error
}

func (e *ConfigError) Error() string {
	return "sampler: invalid configuration: " + e.err.Error()
}

// Unwrap returns the aggregated configuration errors.
func (e *ConfigError) Unwrap() error {
	return e.err
}

// Group is the cgroup being sampled.
type Group interface {
	Read(entry string) cgroups.Result
}

// Value is a single sampled value. Null values record a failed read.
type Value struct {
	Label string
	Value string
	Null  bool
}

// Row is the values sampled in a single tick, in source order.
type Row []Value

// Sampler reads a configured set of metric sources.
type Sampler struct {
	group   Group
	names   []string
	known   map[string][]string
	backoff wait.Backoff
	now     func() time.Time
	log     logger.Logger
}

// Option is an option for a Sampler.
type Option func(*Sampler)

// WithBackoff sets the retry backoff for scalar counter reads.
func WithBackoff(b wait.Backoff) Option {
	return func(s *Sampler) {
		s.backoff = b
	}
}

// WithClock sets the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) {
		s.now = now
	}
}

// DefaultBackoff is the default retry backoff for scalar counter reads.
var DefaultBackoff = wait.Backoff{
	Duration: 10 * time.Millisecond,
	Factor:   2.0,
	Jitter:   0.1,
	Steps:    3,
}

// New creates a sampler for the given metric sources. Unknown or duplicate
// source names are reported together in a *ConfigError.
func New(group Group, names []string, options ...Option) (*Sampler, error) {
	var errs *multierror.Error

	if len(names) == 0 {
		errs = multierror.Append(errs, errors.New("no metric sources"))
	}
	seen := map[string]struct{}{}
	for _, name := range names {
		if _, ok := sources[name]; !ok {
			errs = multierror.Append(errs, errors.Errorf("unknown metric source %q", name))
			continue
		}
		if _, ok := seen[name]; ok {
			errs = multierror.Append(errs, errors.Errorf("duplicate metric source %q", name))
			continue
		}
		seen[name] = struct{}{}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, &ConfigError{err: err}
	}

	s := &Sampler{
		group:   group,
		names:   append([]string(nil), names...),
		known:   map[string][]string{},
		backoff: DefaultBackoff,
		now:     time.Now,
		log:     logger.Get("sampler"),
	}
	for _, o := range options {
		o(s)
	}
	return s, nil
}

// Names returns the configured source names.
func (s *Sampler) Names() []string {
	return append([]string(nil), s.names...)
}

// Sample reads every configured source once. A failing source contributes
// null values and its error to the returned aggregate error, but does not
// stop the remaining sources from being sampled.
func (s *Sampler) Sample(ctx context.Context, tick int) (Row, error) {
	var (
		row  Row
		errs *multierror.Error
	)

	for _, name := range s.names {
		var (
			values Row
			err    error
		)
		switch sources[name] {
		case Timestamp:
			values = Row{{Label: name, Value: strconv.FormatInt(s.now().UnixMilli(), 10)}}
		case Scalar:
			values, err = s.sampleScalar(ctx, name)
		case StatBlock:
			values, err = s.sampleStat(name)
		case WorkingSet:
			values, err = s.sampleWorkingSet(name)
		}
		if err != nil {
			s.log.Debug("tick %d: failed to sample %s: %v", tick, name, err)
			errs = multierror.Append(errs, errors.Wrapf(err, "tick %d: %s", tick, name))
		}
		row = append(row, values...)
	}

	return row, errs.ErrorOrNil()
}

func (s *Sampler) sampleScalar(ctx context.Context, name string) (Row, error) {
	r := cgroups.Result{Status: cgroups.Failed}

	// retry transient failures, a missing entry won't appear by retrying
	attempt := func(context.Context) (bool, error) {
		r = s.group.Read(name)
		switch r.Status {
		case cgroups.Found:
			return true, nil
		case cgroups.NotFound:
			return false, r.Err
		default:
			return false, nil
		}
	}
	err := wait.ExponentialBackoffWithContext(ctx, s.backoff, attempt)
	if r.Status != cgroups.Found {
		if r.Err == nil {
			r.Err = err
		}
		return nullRow(name), r.Err
	}

	v, err := r.Uint64()
	if err != nil {
		return nullRow(name), err
	}
	return Row{{Label: name, Value: strconv.FormatUint(v, 10)}}, nil
}

func (s *Sampler) sampleStat(name string) (Row, error) {
	entries, r := s.groupStat(name)
	if r.Status != cgroups.Found {
		return nullRow(s.known[name]...), r.Err
	}

	labels := make([]string, 0, len(entries))
	row := make(Row, 0, len(entries))
	for _, e := range entries {
		label := name + "." + e.Key
		labels = append(labels, label)
		row = append(row, Value{Label: label, Value: strconv.FormatUint(e.Value, 10)})
	}
	s.known[name] = labels
	return row, nil
}

func (s *Sampler) groupStat(name string) ([]cgroups.StatEntry, cgroups.Result) {
	r := s.group.Read(name)
	if r.Status != cgroups.Found {
		return nil, r
	}
	entries, err := cgroups.ParseStat(r.Data)
	if err != nil {
		return nil, cgroups.Result{Status: cgroups.Failed, Err: err}
	}
	return entries, r
}

func (s *Sampler) sampleWorkingSet(name string) (Row, error) {
	r := s.group.Read(name)
	if r.Status != cgroups.Found {
		return nullRow(s.known[name]...), r.Err
	}
	snap, err := workingset.Parse(r.Data)
	if err != nil {
		return nullRow(s.known[name]...), err
	}

	var (
		labels []string
		row    Row
	)
	workingset.Flatten(workingsetPrefix, snap, func(label string, value uint64) {
		labels = append(labels, label)
		row = append(row, Value{Label: label, Value: strconv.FormatUint(value, 10)})
	})
	s.known[name] = labels
	return row, nil
}

func nullRow(labels ...string) Row {
	row := make(Row, 0, len(labels))
	for _, label := range labels {
		row = append(row, Value{Label: label, Null: true})
	}
	return row
}
