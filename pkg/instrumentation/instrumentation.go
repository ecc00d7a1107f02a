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

package instrumentation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	model "github.com/prometheus/client_model/go"

	xhttp "github.com/intel/wsreclaim/pkg/instrumentation/http"
	logger "github.com/intel/wsreclaim/pkg/log"
)

const (
	// PrometheusMetricsPath is the URL path for exposing metrics to Prometheus.
	PrometheusMetricsPath = "/metrics"
	// shutdownTimeout is the time given to in-flight requests on Stop.
	shutdownTimeout = 5 * time.Second
)

// Our logger instance.
var log = logger.Get("instrumentation")

// Service serves registered prometheus gatherers over HTTP.
type Service struct {
	http      *xhttp.Server
	gatherers *gatherers
}

// NewService creates a new, stopped instrumentation service.
func NewService() *Service {
	return &Service{
		http:      xhttp.NewServer(),
		gatherers: &gatherers{gatherers: prometheus.Gatherers{}},
	}
}

// RegisterGatherer registers a new prometheus Gatherer.
func (s *Service) RegisterGatherer(g prometheus.Gatherer) {
	s.gatherers.Register(g)
}

// Start starts serving metrics on the given address. An empty address
// leaves the service disabled.
func (s *Service) Start(addr string) error {
	if addr == "" {
		log.Info("metrics endpoint is disabled")
		return nil
	}

	handler := promhttp.HandlerFor(s.gatherers, promhttp.HandlerOpts{
		ErrorLog:      errorLogger{},
		ErrorHandling: promhttp.ContinueOnError,
	})
	if _, ok := s.http.Mux().Unregister(PrometheusMetricsPath); ok {
		log.Debug("replacing metrics handler")
	}
	if err := s.http.Mux().Handle(PrometheusMetricsPath, handler); err != nil {
		return instrumentationError("%v", err)
	}
	if err := s.http.Start(addr); err != nil {
		return instrumentationError("%v", err)
	}
	return nil
}

// Address returns the address metrics are served on.
func (s *Service) Address() string {
	return s.http.Address()
}

// Stop stops serving metrics.
func (s *Service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		log.Warn("failed to shut down metrics endpoint: %v", err)
	}
}

// gatherers is a trivial wrapper around prometheus Gatherers.
type gatherers struct {
	sync.RWMutex
	gatherers prometheus.Gatherers
}

// Register registers a new gatherer.
func (g *gatherers) Register(gatherer prometheus.Gatherer) {
	g.Lock()
	defer g.Unlock()
	g.gatherers = append(g.gatherers, gatherer)
}

// Gather implements the prometheus.Gatherer interface.
func (g *gatherers) Gather() ([]*model.MetricFamily, error) {
	g.RLock()
	defer g.RUnlock()
	return g.gatherers.Gather()
}

// errorLogger passes promhttp errors to our logger.
type errorLogger struct{}

func (errorLogger) Println(v ...interface{}) {
	log.Error("%s", fmt.Sprint(v...))
}

// instrumentationError produces a formatted instrumentation-specific error.
func instrumentationError(format string, args ...interface{}) error {
	return fmt.Errorf("instrumentation: "+format, args...)
}
