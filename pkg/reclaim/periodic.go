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

	"github.com/pkg/errors"

	"github.com/intel/wsreclaim/pkg/cgroups"
	logger "github.com/intel/wsreclaim/pkg/log"
	"github.com/intel/wsreclaim/pkg/workingset"
)

// periodic reclaims every cycle all memory at least a threshold old.
type periodic struct {
	threshold uint64
	nodes     workingset.NodeSelector
	group     Group
	log       logger.Logger
}

func newPeriodic(cfg Config, group Group, log logger.Logger) *periodic {
	return &periodic{
		threshold: cfg.ColdAgeThresholdMs,
		nodes:     cfg.Nodes,
		group:     group,
		log:       log,
	}
}

func (p *periodic) Kind() PolicyKind {
	return PolicyPeriodic
}

func (p *periodic) Step(_ context.Context, c *Cycle) State {
	switch c.State {
	case Idle, Sampling:
		return p.sample(c)
	case Deciding:
		return p.decide(c)
	case Reclaiming:
		return p.reclaim(c)
	}
	return c.State
}

func (p *periodic) sample(c *Cycle) State {
	pids, r := p.group.Pids()
	switch {
	case r.Status == cgroups.NotFound:
		p.log.Info("group is gone")
		return Terminated
	case r.Status == cgroups.Failed:
		p.log.Info("failed to read process list (%v), assuming group is gone", r.Err)
		return Terminated
	case len(pids) == 0:
		p.log.Info("no processes left in group")
		return Terminated
	}

	r = p.group.Read(cgroups.PageAge)
	switch r.Status {
	case cgroups.NotFound:
		p.log.Info("working set report is gone")
		return Terminated
	case cgroups.Failed:
		c.Err = errors.Wrap(r.Err, "failed to read working set report")
		return Sleeping
	}

	snap, err := workingset.Parse(r.Data)
	if err != nil {
		c.Err = err
		return Sleeping
	}
	c.Snapshot = snap
	return Deciding
}

func (p *periodic) decide(c *Cycle) State {
	c.ColdBytes = workingset.Estimate(c.Snapshot, p.threshold, p.nodes)
	if p.log.DebugEnabled() {
		perNode := workingset.EstimatePerNode(c.Snapshot, p.threshold, p.nodes)
		for _, id := range c.Snapshot.Nodes() {
			if cold, ok := perNode[id]; ok {
				p.log.Debug("node %d: %d cold bytes", id, cold)
			}
		}
	}

	c.Request = c.ColdBytes
	if c.Request == 0 {
		p.log.Debug("no memory older than %dms", p.threshold)
		return Sleeping
	}
	return Reclaiming
}

func (p *periodic) reclaim(c *Cycle) State {
	before, okBefore := p.swapUsage()
	err := p.group.Reclaim(c.Request)
	after, okAfter := p.swapUsage()

	c.Reclaimed = true
	switch {
	case errors.Is(err, cgroups.ErrPartialReclaim):
		c.Partial = true
		p.log.Debug("kernel reclaimed less than the requested %d bytes", c.Request)
	case err != nil:
		c.Reclaimed = false
		c.Err = errors.Wrap(err, "reclaim failed")
		return Sleeping
	}

	if okBefore && okAfter {
		c.SwapKnown = true
		c.SwapDelta = int64(after) - int64(before)
		p.log.Info("requested reclaim of %d bytes (%.2f MiB), swap usage changed by %d bytes (%.2f MiB)",
			c.Request, float64(c.Request)/MiB, c.SwapDelta, float64(c.SwapDelta)/MiB)
	} else {
		p.log.Info("requested reclaim of %d bytes (%.2f MiB)", c.Request, float64(c.Request)/MiB)
	}
	return Sleeping
}

func (p *periodic) swapUsage() (uint64, bool) {
	v, err := p.group.Read(cgroups.MemorySwapCurrent).Uint64()
	if err != nil {
		return 0, false
	}
	return v, true
}
