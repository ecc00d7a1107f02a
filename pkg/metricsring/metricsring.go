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

package metricsring

import (
	"container/ring"
	"sync"
	"time"

	"github.com/VividCortex/ewma"
)

// SampleBuffer is a fixed-size buffer of the most recent samples.
type SampleBuffer interface {
	Push(d float64)
	EWMA() float64
	Warm() bool
	Span() time.Duration
	Size() int
	Len() int
	Last() (float64, bool)
	LastN(count int) []float64
}

// Ring implements SampleBuffer on a container/ring.
type Ring struct {
	sync.Mutex
	r   *ring.Ring
	n   int // the count of elements in the ring
	ma  ewma.MovingAverage
	now func() time.Time

	pushed int
	warmup int
}

type sample struct {
	value     float64
	timestamp time.Time
}

// New creates a ring for ringlen samples.
func New(ringlen int) *Ring {
	// Note: ewma has warm-up period of 10 samples unless ringlen is 30,
	// EWMA() returns 0.0 until the warm-up is over.
	if ringlen < 1 {
		ringlen = 1
	}
	warmup := int(ewma.WARMUP_SAMPLES) + 1
	if float64(ringlen) == ewma.AVG_METRIC_AGE {
		warmup = 1
	}
	return &Ring{
		r:      ring.New(ringlen),
		ma:     ewma.NewMovingAverage(float64(ringlen)),
		now:    time.Now,
		warmup: warmup,
	}
}

// Push adds a sample, overwriting the oldest one if the ring is full.
func (mr *Ring) Push(d float64) {
	mr.Lock()
	defer mr.Unlock()

	mr.r.Value = sample{
		value:     d,
		timestamp: mr.now(),
	}
	mr.ma.Add(d)
	mr.r = mr.r.Next()
	if mr.pushed < mr.warmup {
		mr.pushed++
	}

	if mr.n < mr.r.Len() {
		mr.n++
	}
}

// EWMA returns the exponentially weighted moving average of all samples.
func (mr *Ring) EWMA() float64 {
	mr.Lock()
	defer mr.Unlock()
	return mr.ma.Value()
}

// Warm tells if the moving average is past its warm-up period.
func (mr *Ring) Warm() bool {
	mr.Lock()
	defer mr.Unlock()
	return mr.pushed >= mr.warmup
}

// Span returns the time between the oldest and the newest sample.
func (mr *Ring) Span() time.Duration {
	mr.Lock()
	defer mr.Unlock()

	if mr.n < 2 {
		return 0
	}
	newest := mr.r.Prev().Value.(sample).timestamp
	oldest := mr.r.Move(-mr.n).Value.(sample).timestamp
	return newest.Sub(oldest)
}

// Size returns the capacity of the ring.
func (mr *Ring) Size() int {
	return mr.r.Len()
}

// Len returns the number of samples in the ring.
func (mr *Ring) Len() int {
	mr.Lock()
	defer mr.Unlock()
	return mr.n
}

// Last returns the newest sample.
func (mr *Ring) Last() (float64, bool) {
	mr.Lock()
	defer mr.Unlock()

	if mr.n == 0 {
		return 0, false
	}
	return mr.r.Prev().Value.(sample).value, true
}

// LastN returns at most count newest samples, oldest first.
func (mr *Ring) LastN(count int) []float64 {
	mr.Lock()
	defer mr.Unlock()

	if count > mr.n {
		count = mr.n
	}
	s := make([]float64, count)
	r := mr.r.Move(-count)
	for i := 0; i < count; i++ {
		s[i] = r.Value.(sample).value
		r = r.Next()
	}
	return s
}
