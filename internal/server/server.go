// Package server provides the HTTP server for bluescan.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/bluescan/internal/app"
	"github.com/ayusman/bluescan/internal/server/api"
	"github.com/ayusman/bluescan/internal/store"
)

// Config holds the server configuration.
type Config struct {
	App           *app.App
	Store         *store.Store
	Profiles      api.ProfileSource
	MaxUploadSize int64
	Logger        *zap.Logger
}

// Server represents the HTTP server for the bluescan application.
type Server struct {
	config  Config
	mux     *http.ServeMux
	handler http.Handler
	results *ResultsHandler
	logger  *zap.Logger
	start   time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		logger: logger,
		start:  time.Now(),
	}
	s.setupRoutes()
	s.handler = requestLogger(logger, s.mux)
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if a := s.config.App; a != nil {
		s.mux.Handle("/api/detect", api.NewDetectHandler(a, s.config.MaxUploadSize, s.logger))
		s.mux.Handle("/api/stats", api.NewStatsHandler(a))

		// Scanning requires a screen to capture from
		if a.HasScreen() {
			s.mux.Handle("/api/scan", api.NewScanHandler(a))
		}

		s.results = NewResultsHandler(s.logger)
		a.AddObserver(s.results)
		s.mux.Handle("/api/results", s.results)
	}

	if s.config.Profiles != nil {
		profiles := api.NewProfileHandler(s.config.Profiles)
		s.mux.Handle("/api/profile", profiles)
		s.mux.Handle("/api/profile/", profiles)
	}

	// Register history API handler if Store is configured
	if s.config.Store != nil {
		detections := api.NewDetectionsHandler(s.config.Store)
		s.mux.Handle("/api/detections", detections)
		s.mux.Handle("/api/detections/", detections)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Results returns the websocket result stream, or nil without an App.
func (s *Server) Results() *ResultsHandler {
	return s.results
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status":  "ok",
		"uptime":  uptime.String(),
		"screen":  s.config.App != nil && s.config.App.HasScreen(),
		"history": s.config.Store != nil,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// HTTPServer returns an http.Server for addr with the given timeouts.
func (s *Server) HTTPServer(addr string, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
