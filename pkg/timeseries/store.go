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

package timeseries

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	logger "github.com/intel/wsreclaim/pkg/log"
)

// Null is the value recorded for a label that has no sample in a tick.
const Null = ""

var log = logger.Get("timeseries")

// ConsistencyError is returned when exporting a store with label sequences
// of unequal length.
type ConsistencyError struct {
	Label    string
	Len      int
	Expected int
}

func (e *ConsistencyError) Error() string {
	return "timeseries: label " + strconv.Quote(e.Label) + " has " + strconv.Itoa(e.Len) +
		" values, expected " + strconv.Itoa(e.Expected)
}

// Store accumulates per-label value sequences, one value per label per tick.
// Labels are kept in the order they were first seen.
type Store struct {
	sync.Mutex
	labels []string
	values map[string][]string
	ticks  int
}

// New creates an empty store.
func New() *Store {
	return &Store{values: map[string][]string{}}
}

// Append adds a value for label in the current tick. A label first seen
// after some ticks have completed is back-filled with Null values.
func (s *Store) Append(label, value string) {
	s.Lock()
	defer s.Unlock()

	seq, ok := s.values[label]
	if !ok {
		s.labels = append(s.labels, label)
		seq = make([]string, s.ticks, s.ticks+1)
	}
	s.values[label] = append(seq, value)
}

// AppendNull records a missing value for label in the current tick.
func (s *Store) AppendNull(label string) {
	s.Append(label, Null)
}

// EndTick completes the current tick, padding every label without a value
// in this tick with Null.
func (s *Store) EndTick() {
	s.Lock()
	defer s.Unlock()

	s.ticks++
	for _, label := range s.labels {
		for len(s.values[label]) < s.ticks {
			s.values[label] = append(s.values[label], Null)
		}
	}
}

// Labels returns the labels in first-seen order.
func (s *Store) Labels() []string {
	s.Lock()
	defer s.Unlock()
	return append([]string(nil), s.labels...)
}

// Len returns the number of completed ticks.
func (s *Store) Len() int {
	s.Lock()
	defer s.Unlock()
	return s.ticks
}

// Values returns the recorded values of label.
func (s *Store) Values(label string) []string {
	s.Lock()
	defer s.Unlock()
	return append([]string(nil), s.values[label]...)
}

// Check verifies that all label sequences have equal length.
func (s *Store) Check() error {
	s.Lock()
	defer s.Unlock()
	return s.check()
}

func (s *Store) check() error {
	expected := 0
	for _, label := range s.labels {
		if n := len(s.values[label]); n > expected {
			expected = n
		}
	}
	for _, label := range s.labels {
		if n := len(s.values[label]); n != expected {
			return &ConsistencyError{Label: label, Len: n, Expected: expected}
		}
	}
	return nil
}

// Export writes the store as CSV: a header row of labels in first-seen
// order followed by one row per tick. Nothing is written if the store is
// inconsistent. An empty store produces no output.
func (s *Store) Export(w io.Writer) error {
	s.Lock()
	defer s.Unlock()

	if err := s.check(); err != nil {
		return err
	}
	if len(s.labels) == 0 {
		return nil
	}

	buf := &bytes.Buffer{}
	cw := csv.NewWriter(buf)
	if err := cw.Write(s.labels); err != nil {
		return errors.Wrap(err, "timeseries: failed to write header")
	}
	rows := len(s.values[s.labels[0]])
	row := make([]string, len(s.labels))
	for i := 0; i < rows; i++ {
		for j, label := range s.labels {
			row[j] = s.values[label][i]
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "timeseries: failed to write row %d", i)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(err, "timeseries: failed to export")
	}

	_, err := w.Write(buf.Bytes())
	return err
}

// WriteFile exports the store into the file at path. If the directory of
// path does not exist, a tmp-cgroup-statistics-<time> file in the current
// directory is used instead. The path written is returned.
func (s *Store) WriteFile(path string) (string, error) {
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		fallback := FallbackPath(time.Now())
		log.Warn("output directory of %s not accessible (%v), saving to %s instead",
			path, err, fallback)
		path = fallback
	}

	buf := &bytes.Buffer{}
	if err := s.Export(buf); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", errors.Wrapf(err, "timeseries: failed to write %s", path)
	}
	return path, nil
}

// FallbackPath returns the output file name used when the requested output
// directory does not exist.
func FallbackPath(t time.Time) string {
	return fmt.Sprintf("tmp-cgroup-statistics-%s-%06d", t.Format("15-04-05"), t.Nanosecond()/1000)
}
