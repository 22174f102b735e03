// Package api serves the bot's status over HTTP and WebSocket.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/swingdesk/swingbot/internal/config"
	"github.com/swingdesk/swingbot/internal/risk"
	"github.com/swingdesk/swingbot/internal/store"
	"github.com/swingdesk/swingbot/pkg/types"
)

// StatusProvider yields the latest cycle snapshot.
type StatusProvider interface {
	Status() types.CycleStatus
}

// Server is the read-mostly status API. The only mutating endpoint
// is the breaker reset.
type Server struct {
	logger     *zap.Logger
	cfg        config.APIConfig
	router     *mux.Router
	httpServer *http.Server
	hub        *Hub

	status  StatusProvider
	store   *store.Store
	breaker *risk.CircuitBreaker
}

// NewServer wires the status server. metricsHandler serves the
// Prometheus exposition; pass nil to disable /metrics.
func NewServer(logger *zap.Logger, cfg config.APIConfig, status StatusProvider, st *store.Store, breaker *risk.CircuitBreaker, metricsHandler http.Handler) *Server {
	s := &Server{
		logger:  logger.Named("api"),
		cfg:     cfg,
		router:  mux.NewRouter(),
		hub:     NewHub(logger),
		status:  status,
		store:   st,
		breaker: breaker,
	}

	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/api/v1/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/api/v1/position", s.handlePosition).Methods("GET")
	s.router.HandleFunc("/api/v1/daily/{date}", s.handleDaily).Methods("GET")
	s.router.HandleFunc("/api/v1/breaker/reset", s.handleBreakerReset).Methods("POST")
	if metricsHandler != nil {
		s.router.Handle("/metrics", metricsHandler).Methods("GET")
	}
	s.router.HandleFunc("/ws", s.handleWebSocket)

	return s
}

// Hub exposes the broadcast hub so the orchestrator can push events.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start runs the hub and the HTTP listener. Blocks until the server
// stops; http.ErrServerClosed is returned on graceful shutdown.
func (s *Server) Start() error {
	go s.hub.Run()

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}).Handler(s.router)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	s.logger.Info("status server listening", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Stop shuts the listener down gracefully and disconnects clients.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Close()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Status())
}

func (s *Server) handlePosition(w http.ResponseWriter, _ *http.Request) {
	pos, err := s.store.GetOpenPosition()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if pos == nil {
		writeJSON(w, http.StatusOK, map[string]any{"open": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"open": true, "position": pos})
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	date := mux.Vars(r)["date"]
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("date must be YYYY-MM-DD"))
		return
	}
	stats, err := s.store.GetDailyStats(date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleBreakerReset(w http.ResponseWriter, _ *http.Request) {
	wasTripped := s.breaker.Tripped()
	s.breaker.Reset()
	s.logger.Info("breaker reset via api", zap.Bool("was_tripped", wasTripped))
	writeJSON(w, http.StatusOK, map[string]any{
		"reset":       true,
		"was_tripped": wasTripped,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
