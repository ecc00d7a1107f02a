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
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// State is the state of the reclaim policy engine.
type State int

const (
	// Idle is the state before the first cycle.
	Idle State = iota
	// Sampling reads the process list and the working set report.
	Sampling
	// Deciding estimates the amount of cold memory to reclaim.
	Deciding
	// Reclaiming asks the kernel to reclaim the cold memory.
	Reclaiming
	// Sleeping waits for the next cycle.
	Sleeping
	// Terminated is the final state, the group is gone.
	Terminated
)

var stateNames = map[State]string{
	Idle:       "idle",
	Sampling:   "sampling",
	Deciding:   "deciding",
	Reclaiming: "reclaiming",
	Sleeping:   "sleeping",
	Terminated: "terminated",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "<invalid state " + strconv.Itoa(int(s)) + ">"
}

// PolicyKind selects the reclaim policy.
type PolicyKind int

const (
	// PolicyPeriodic reclaims all memory older than a threshold periodically.
	PolicyPeriodic PolicyKind = iota
)

var policyNames = map[PolicyKind]string{
	PolicyPeriodic: "periodic",
}

func (k PolicyKind) String() string {
	if name, ok := policyNames[k]; ok {
		return name
	}
	return "<invalid policy " + strconv.Itoa(int(k)) + ">"
}

// ParsePolicyKind returns the policy kind for name.
func ParsePolicyKind(name string) (PolicyKind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for kind, n := range policyNames {
		if n == name {
			return kind, nil
		}
	}
	return 0, errors.Errorf("reclaim: unknown policy %q", name)
}

// Policies returns the names of all available policies.
func Policies() []string {
	return []string{PolicyPeriodic.String()}
}
