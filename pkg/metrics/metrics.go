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

package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	logger "github.com/intel/wsreclaim/pkg/log"
)

// Namespace is the common prefix of all our metrics.
const Namespace = "wsreclaim"

var log = logger.Get("metrics")

// NewRegistry creates a pedantic prometheus registry with the given collectors.
func NewRegistry(collectors ...prometheus.Collector) (*prometheus.Registry, error) {
	reg := prometheus.NewPedanticRegistry()
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, metricsError(err, "failed to register collector")
		}
	}
	log.Debug("registered %d collectors", len(collectors))
	return reg, nil
}

func metricsError(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, "metrics: "+format, args...)
}
