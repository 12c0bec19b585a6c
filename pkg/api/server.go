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

// Package api serves the local control API of the bridge.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/carverauto/connectbridge/pkg/bridge"
	"github.com/carverauto/connectbridge/pkg/gcode"
	cbhttp "github.com/carverauto/connectbridge/pkg/http"
	"github.com/carverauto/connectbridge/pkg/logger"
)

const (
	defaultReadTimeout  = 10 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultIdleTimeout  = 60 * time.Second
	maxBodyBytes        = 1 << 20

	healthPath = "/health"
	streamPath = "/api/ws"
)

var (
	errInvalidURL      = errors.New("url must be an absolute http(s) URL")
	errRulesDisabled   = errors.New("gcode rules are not configured")
	errCommandRequired = errors.New("command is required")
	errAlreadyStarted  = errors.New("api server already started")
)

// Server is the local HTTP control API.
type Server struct {
	router     *mux.Router
	handler    http.Handler
	bridge     Controller
	rules      RuleEngine
	stream     http.Handler
	corsConfig cbhttp.CORSConfig
	apiKey     string
	logger     logger.Logger

	mu  sync.Mutex
	srv *http.Server
}

// NewServer builds the API around ctrl.
func NewServer(ctrl Controller, cors cbhttp.CORSConfig, options ...func(*Server)) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		bridge:     ctrl,
		corsConfig: cors,
		logger:     logger.NewTestLogger(),
	}

	for _, o := range options {
		o(s)
	}

	s.setupRoutes()

	return s
}

// WithAPIKey requires key on every route except /health.
func WithAPIKey(key string) func(*Server) {
	return func(s *Server) {
		s.apiKey = key
	}
}

// WithLogger sets the server logger.
func WithLogger(log logger.Logger) func(*Server) {
	return func(s *Server) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithRuleEngine exposes the G-code rules under /api/gcode.
func WithRuleEngine(e RuleEngine) func(*Server) {
	return func(s *Server) {
		s.rules = e
	}
}

// WithStream mounts the websocket status stream at /api/ws.
func WithStream(h http.Handler) func(*Server) {
	return func(s *Server) {
		s.stream = h
	}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// mux middleware only runs on matched routes, so CommonMiddleware wraps the
// router itself and sees every preflight.
func (s *Server) setupRoutes() {
	s.handler = cbhttp.CommonMiddleware(s.router, s.corsConfig, s.logger)

	s.router.HandleFunc(healthPath, s.handleHealth).Methods(http.MethodGet)

	protected := s.router.PathPrefix("/api").Subrouter()
	protected.Use(cbhttp.APIKeyMiddlewareWithOptions(cbhttp.APIKeyOptions{
		APIKey:          s.apiKey,
		LogUnauthorized: true,
		Logger:          s.logger,
	}))

	protected.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	protected.HandleFunc("/registration", s.handleRegister).Methods(http.MethodPost)
	protected.HandleFunc("/registration", s.handleReset).Methods(http.MethodDelete)
	protected.HandleFunc("/endpoint", s.handleEndpoint).Methods(http.MethodPut)
	protected.HandleFunc("/serial", s.handleSerial).Methods(http.MethodPut)
	protected.HandleFunc("/files", s.handleFiles).Methods(http.MethodGet)
	protected.HandleFunc("/gcode/rules", s.handleGetRules).Methods(http.MethodGet)
	protected.HandleFunc("/gcode/rules", s.handlePutRules).Methods(http.MethodPut)
	protected.HandleFunc("/gcode/process", s.handleProcess).Methods(http.MethodPost)

	if s.stream != nil {
		protected.Handle(strings.TrimPrefix(streamPath, "/api"), s.stream).Methods(http.MethodGet)
	}
}

// Start listens on addr and blocks until Shutdown.
func (s *Server) Start(addr string) error {
	s.mu.Lock()
	if s.srv != nil {
		s.mu.Unlock()
		return errAlreadyStarted
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		IdleTimeout:  defaultIdleTimeout,
	}
	s.srv = srv
	s.mu.Unlock()

	s.logger.Info().Str("addr", addr).Msg("Local API listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}

	return nil
}

// Shutdown gracefully stops a running server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()

	if srv == nil {
		return nil
	}

	return srv.Shutdown(ctx)
}

func (*Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.bridge.Status())
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := s.bridge.Register(r.Context()); err != nil {
		s.writeBridgeError(w, "register", err)
		return
	}

	s.bridge.Reconcile(r.Context())
	writeJSON(w, http.StatusAccepted, s.bridge.Status())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.bridge.Reset(r.Context()); err != nil {
		s.writeBridgeError(w, "reset", err)
		return
	}

	writeJSON(w, http.StatusOK, s.bridge.Status())
}

func (s *Server) handleEndpoint(w http.ResponseWriter, r *http.Request) {
	var req EndpointRequest
	if !decode(w, r, &req) {
		return
	}

	if err := validateEndpoint(req.URL); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.bridge.SetEndpoint(r.Context(), req.URL); err != nil {
		s.writeBridgeError(w, "set endpoint", err)
		return
	}

	writeJSON(w, http.StatusOK, s.bridge.Status())
}

func (s *Server) handleSerial(w http.ResponseWriter, r *http.Request) {
	var req SerialRequest
	if !decode(w, r, &req) {
		return
	}

	if err := s.bridge.SetSerialOverride(r.Context(), req.Serial); err != nil {
		s.writeBridgeError(w, "set serial", err)
		return
	}

	writeJSON(w, http.StatusOK, s.bridge.Status())
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	fs, err := s.bridge.Filesystem(r.Context())
	if err != nil {
		s.writeBridgeError(w, "list files", err)
		return
	}

	writeJSON(w, http.StatusOK, fs)
}

func (s *Server) handleGetRules(w http.ResponseWriter, _ *http.Request) {
	if s.rules == nil {
		writeError(w, errRulesDisabled.Error(), http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, RulesResponse{Rules: s.rules.Rules(), LastMatched: s.rules.LastMatched()})
}

func (s *Server) handlePutRules(w http.ResponseWriter, r *http.Request) {
	if s.rules == nil {
		writeError(w, errRulesDisabled.Error(), http.StatusNotFound)
		return
	}

	var rules []gcode.Rule
	if !decode(w, r, &rules) {
		return
	}

	if err := s.rules.SetRules(r.Context(), rules); err != nil {
		if errors.Is(err, gcode.ErrInvalidRule) {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		s.logger.Error().Err(err).Msg("Failed to save gcode rules")
		writeError(w, "failed to save rules", http.StatusInternalServerError)

		return
	}

	writeJSON(w, http.StatusOK, RulesResponse{Rules: s.rules.Rules(), LastMatched: s.rules.LastMatched()})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if s.rules == nil {
		writeError(w, errRulesDisabled.Error(), http.StatusNotFound)
		return
	}

	var req ProcessRequest
	if !decode(w, r, &req) {
		return
	}

	if strings.TrimSpace(req.Command) == "" {
		writeError(w, errCommandRequired.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, s.rules.Process(req.Command, req.Gcode))
}

func (s *Server) writeBridgeError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, bridge.ErrSessionUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, bridge.ErrFilesystemUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	s.logger.Warn().Err(err).Str("op", op).Int("status", status).Msg("API request failed")
	writeError(w, fmt.Sprintf("%s: %v", op, err), status)
}

func validateEndpoint(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errInvalidURL
	}

	return nil
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}

	return true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(ErrorResponse{Message: message, Status: statusCode}); err != nil {
		http.Error(w, "Failed to encode error response", http.StatusInternalServerError)
	}
}
