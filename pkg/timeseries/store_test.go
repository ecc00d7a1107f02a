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
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExport(t *testing.T) {
	s := New()
	for _, v := range []string{"1", "2"} {
		s.Append("timestamp", v)
		s.Append("memory.current", v+"000")
		s.EndTick()
	}
	require.Equal(t, 2, s.Len())
	require.Equal(t, []string{"timestamp", "memory.current"}, s.Labels())

	buf := &bytes.Buffer{}
	require.NoError(t, s.Export(buf))
	require.Equal(t, "timestamp,memory.current\n1,1000\n2,2000\n", buf.String())
}

func TestExportIdempotent(t *testing.T) {
	s := New()
	s.Append("a", "1")
	s.Append("b", "x,y")
	s.EndTick()

	first, second := &bytes.Buffer{}, &bytes.Buffer{}
	require.NoError(t, s.Export(first))
	require.NoError(t, s.Export(second))
	require.Equal(t, first.Bytes(), second.Bytes())
	require.Equal(t, "a,b\n1,\"x,y\"\n", first.String())
}

func TestEmptyStore(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, New().Export(buf))
	require.Empty(t, buf.String())
}

func TestPadding(t *testing.T) {
	s := New()
	// tick 0: both labels
	s.Append("A", "1")
	s.Append("B", "1")
	s.EndTick()
	// tick 1: B failed
	s.Append("A", "2")
	s.EndTick()
	// tick 2: both labels, C first seen
	s.Append("A", "3")
	s.Append("B", "3")
	s.Append("C", "3")
	s.EndTick()

	require.Equal(t, []string{"1", "2", "3"}, s.Values("A"))
	require.Equal(t, []string{"1", Null, "3"}, s.Values("B"))
	require.Equal(t, []string{Null, Null, "3"}, s.Values("C"))
	require.NoError(t, s.Check())

	buf := &bytes.Buffer{}
	require.NoError(t, s.Export(buf))
	require.Equal(t, "A,B,C\n1,1,\n2,,\n3,3,3\n", buf.String())
}

func TestConsistencyError(t *testing.T) {
	s := New()
	for _, v := range []string{"1", "2", "3"} {
		s.Append("A", v)
	}
	s.Append("B", "1")
	s.Append("B", "2")

	buf := &bytes.Buffer{}
	err := s.Export(buf)
	var cerr *ConsistencyError
	require.True(t, errors.As(err, &cerr))
	require.Equal(t, "B", cerr.Label)
	require.Equal(t, 2, cerr.Len)
	require.Equal(t, 3, cerr.Expected)
	require.Empty(t, buf.String())

	// duplicate append within a tick
	s = New()
	s.Append("A", "1")
	s.Append("B", "1")
	s.Append("B", "2")
	s.EndTick()
	require.Error(t, s.Check())
}

func TestWriteFile(t *testing.T) {
	s := New()
	s.Append("A", "1")
	s.EndTick()

	path := filepath.Join(t.TempDir(), "stats.csv")
	written, err := s.WriteFile(path)
	require.NoError(t, err)
	require.Equal(t, path, written)
	buf, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "A\n1\n", string(buf))
}

func TestWriteFileFallback(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	dir := t.TempDir()
	require.NoError(t, os.Chdir(dir))
	defer func() { require.NoError(t, os.Chdir(wd)) }()

	s := New()
	s.Append("A", "1")
	s.EndTick()

	written, err := s.WriteFile(filepath.Join(dir, "missing", "stats.csv"))
	require.NoError(t, err)
	require.Regexp(t, `^tmp-cgroup-statistics-\d\d-\d\d-\d\d-\d{6}$`, written)
	_, err = os.Stat(filepath.Join(dir, written))
	require.NoError(t, err)
}

func TestFallbackPath(t *testing.T) {
	ts := time.Date(2024, 3, 1, 13, 4, 5, 123456789, time.UTC)
	require.Equal(t, "tmp-cgroup-statistics-13-04-05-123456", FallbackPath(ts))
}
