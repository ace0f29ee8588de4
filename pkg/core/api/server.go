/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package api serves the core's HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/carverauto/rackradar/pkg/core/auth"
	"github.com/carverauto/rackradar/pkg/discovery"
	rrhttp "github.com/carverauto/rackradar/pkg/http"
	"github.com/carverauto/rackradar/pkg/logger"
	"github.com/carverauto/rackradar/pkg/models"
)

const (
	apiPrefix = "/api/v1"

	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 60 * time.Second
	defaultIdleTimeout  = 120 * time.Second
)

// APIServer routes API requests to the discovery store, scan service and
// controller registry.
type APIServer struct {
	router      *mux.Router
	handler     http.Handler
	store       discovery.Store
	scanner     Scanner
	controllers Controllers
	auth        *auth.Authenticator
	corsConfig  models.CORSConfig
	logger      logger.Logger

	mu      sync.Mutex
	srv     *http.Server
	stopped bool
}

// NewAPIServer creates an API server. Without WithAuthenticator every caller
// is treated as an administrator.
func NewAPIServer(config models.CORSConfig, log logger.Logger, options ...func(server *APIServer)) *APIServer {
	if log == nil {
		log = logger.NewTestLogger()
	}

	s := &APIServer{
		router:     mux.NewRouter(),
		corsConfig: config,
		logger:     log,
	}

	for _, o := range options {
		o(s)
	}

	if s.auth == nil {
		s.auth, _ = auth.NewAuthenticator(nil)
	}

	s.setupRoutes()

	return s
}

func WithDiscoveryStore(store discovery.Store) func(server *APIServer) {
	return func(server *APIServer) {
		server.store = store
	}
}

func WithScanner(scanner Scanner) func(server *APIServer) {
	return func(server *APIServer) {
		server.scanner = scanner
	}
}

func WithControllers(c Controllers) func(server *APIServer) {
	return func(server *APIServer) {
		server.controllers = c
	}
}

func WithAuthenticator(a *auth.Authenticator) func(server *APIServer) {
	return func(server *APIServer) {
		server.auth = a
	}
}

func (s *APIServer) setupRoutes() {
	// OPTIONS matches no route, so CORS wraps the whole router.
	s.handler = rrhttp.CommonMiddleware(s.router, s.corsConfig, s.logger)

	protected := s.router.PathPrefix(apiPrefix).Subrouter()
	protected.Use(s.auth.Middleware())

	for _, path := range []string{"/discovery", "/discovery/"} {
		protected.HandleFunc(path, s.handleListDiscoveries).Methods(http.MethodGet)
		protected.Handle(path, s.auth.RequireAdmin(http.HandlerFunc(s.handleDiscoveryAction))).Methods(http.MethodPost)
	}

	for _, path := range []string{"/discovery/{id}", "/discovery/{id}/"} {
		protected.HandleFunc(path, s.handleGetDiscovery).Methods(http.MethodGet)
		protected.HandleFunc(path, handleReadOnly).Methods(http.MethodPut, http.MethodDelete)
	}

	for _, path := range []string{"/controllers", "/controllers/"} {
		protected.HandleFunc(path, s.handleListControllers).Methods(http.MethodGet)
	}
}

// ServeHTTP lets the server be mounted or tested directly.
func (s *APIServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Start serves the API on addr until Stop is called.
func (s *APIServer) Start(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}

	s.srv = srv
	s.mu.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *APIServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true

	if s.srv == nil {
		return nil
	}

	return s.srv.Shutdown(ctx)
}

func handleReadOnly(w http.ResponseWriter, _ *http.Request) {
	writeError(w, "discoveries are read-only", http.StatusMethodNotAllowed)
}

func writeJSONResponse(w http.ResponseWriter, log logger.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(models.ErrorResponse{Message: message, Status: statusCode}); err != nil {
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}
