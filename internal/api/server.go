package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/calc-back/internal/market"
	"github.com/calc-back/internal/session"
	"github.com/calc-back/internal/websocket"
	"github.com/calc-back/pkg/config"
	"github.com/calc-back/pkg/models"
)

// Server represents the HTTP API server
type Server struct {
	cfg        *config.Config
	logger     *logrus.Logger
	router     *mux.Router
	httpServer *http.Server

	store    *market.Store
	rates    *market.RateStore
	sessions *session.Manager
	wsHub    *websocket.Hub
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	logger *logrus.Logger,
	store *market.Store,
	rates *market.RateStore,
	sessions *session.Manager,
	wsHub *websocket.Hub,
) *Server {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		rates:    rates,
		sessions: sessions,
		wsHub:    wsHub,
	}

	s.setupRoutes()

	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)

	apiV1 := s.router.PathPrefix("/api/v1").Subrouter()

	// Health and readiness
	apiV1.HandleFunc("/health", s.handleHealth).Methods("GET")
	apiV1.HandleFunc("/status", s.handleStatus).Methods("GET")

	// Market data
	apiV1.HandleFunc("/assets", s.handleGetAssets).Methods("GET")
	apiV1.HandleFunc("/rate", s.handleGetRate).Methods("GET")

	// Line item editor
	apiV1.HandleFunc("/portfolio", s.handleGetPortfolio).Methods("GET")
	apiV1.HandleFunc("/portfolio/items", s.handleAddItem).Methods("POST")
	apiV1.HandleFunc("/portfolio/items/{index}", s.handleUpdateItem).Methods("PUT")
	apiV1.HandleFunc("/portfolio/items/{index}", s.handleRemoveItem).Methods("DELETE")
	apiV1.HandleFunc("/portfolio/fill", s.handleFillAll).Methods("POST")

	// Valuation
	apiV1.HandleFunc("/totals", s.handleGetTotals).Methods("GET")
	apiV1.HandleFunc("/convert", s.handleConvert).Methods("GET")

	// History ledger
	apiV1.HandleFunc("/history", s.handleGetHistory).Methods("GET")
	apiV1.HandleFunc("/history", s.handleSaveHistory).Methods("POST")

	// WebSocket endpoint
	apiV1.HandleFunc("/ws", s.handleWebSocket).Methods("GET")
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := s.cfg.GetServerAddr()

	var handler http.Handler = s.router
	if s.cfg.Security.CORSEnabled {
		handler = handlers.CORS(
			handlers.AllowedOrigins(s.cfg.Security.CORSOrigins),
			handlers.AllowedMethods(s.cfg.Security.CORSMethods),
			handlers.AllowedHeaders(s.cfg.Security.CORSHeaders),
			handlers.ExposedHeaders([]string{"X-Session-Token"}),
		)(s.router)
	}

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	s.logger.WithField("address", addr).Info("Starting HTTP server")

	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the router for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// Middleware functions

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   wrapped.statusCode,
			"duration": time.Since(start),
			"remote":   r.RemoteAddr,
		}).Debug("HTTP request")
	})
}

func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.WithFields(logrus.Fields{
					"error": err,
					"path":  r.URL.Path,
				}).Error("Panic in HTTP handler")
				s.sendError(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// respondJSON writes a JSON response body
func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

// sendError writes a JSON error body
func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	s.respondJSON(w, code, models.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// parseIndex extracts the {index} path variable
func parseIndex(r *http.Request) (int, error) {
	raw := mux.Vars(r)["index"]
	var index int
	if _, err := fmt.Sscanf(raw, "%d", &index); err != nil {
		return 0, fmt.Errorf("invalid line item index %q", raw)
	}
	return index, nil
}
