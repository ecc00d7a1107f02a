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

package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	logger "github.com/intel/wsreclaim/pkg/log"
)

// Our logger instance.
var log = logger.Get("http")

// ServeMux is our HTTP request multiplexer with removable handlers.
type ServeMux struct {
	sync.RWMutex
	handlers map[string]http.Handler
	mux      *http.ServeMux
}

// NewServeMux create a new HTTP request multiplexer.
func NewServeMux() *ServeMux {
	return &ServeMux{
		handlers: make(map[string]http.Handler),
		mux:      http.NewServeMux(),
	}
}

// Handle registers a handler for the given pattern.
func (mux *ServeMux) Handle(pattern string, handler http.Handler) error {
	mux.Lock()
	defer mux.Unlock()

	if _, ok := mux.handlers[pattern]; ok {
		return httpError("duplicate handler for %q", pattern)
	}

	log.Debug("registering handler for %q", pattern)
	mux.handlers[pattern] = handler
	mux.mux.Handle(pattern, handler)
	return nil
}

// Unregister unregisters any handler for the given pattern.
func (mux *ServeMux) Unregister(pattern string) (http.Handler, bool) {
	mux.Lock()
	defer mux.Unlock()

	h, ok := mux.handlers[pattern]
	if !ok {
		return nil, false
	}

	log.Debug("unregistering handler for %q", pattern)
	delete(mux.handlers, pattern)
	mux.mux = http.NewServeMux()
	for pattern, handler := range mux.handlers {
		mux.mux.Handle(pattern, handler)
	}
	return h, true
}

// ServeHTTP serves a HTTP request.
func (mux *ServeMux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux.RLock()
	defer mux.RUnlock()
	mux.mux.ServeHTTP(w, r)
}

// Server is an HTTP server serving a ServeMux.
type Server struct {
	sync.RWMutex
	server *http.Server
	mux    *ServeMux
}

// NewServer creates a new server instance.
func NewServer() *Server {
	return &Server{
		mux: NewServeMux(),
	}
}

// Mux returns the mux for this server.
func (s *Server) Mux() *ServeMux {
	return s.mux
}

// Address returns the address the server is listening on.
func (s *Server) Address() string {
	s.RLock()
	defer s.RUnlock()
	if s.server == nil {
		return ""
	}
	return s.server.Addr
}

// Start starts serving on the given address.
func (s *Server) Start(addr string) error {
	s.Lock()
	defer s.Unlock()

	if s.server != nil {
		return httpError("server already running on %s", s.server.Addr)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return httpError("can't listen on TCP address %q: %v", addr, err)
	}

	// update address if port was autobound
	s.server = &http.Server{Addr: ln.Addr().String(), Handler: s.mux}
	log.Info("serving HTTP on %s", s.server.Addr)

	go func(srv *http.Server) {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server failed: %v", err)
		}
	}(s.server)

	return nil
}

// Shutdown shuts down the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Lock()
	defer s.Unlock()

	if s.server == nil {
		return nil
	}

	log.Info("shutting down HTTP server on %s", s.server.Addr)
	err := s.server.Shutdown(ctx)
	s.server = nil
	return err
}

// httpError returns a formatted instrumentation/http-specific error.
func httpError(format string, args ...interface{}) error {
	return fmt.Errorf("instrumentation/http: "+format, args...)
}
