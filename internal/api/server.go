package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"whalewatch/internal/aggregator"
	"whalewatch/internal/domain/whaleorder"
	"whalewatch/internal/metrics"
	"whalewatch/internal/ws"
	"whalewatch/pkg/errors"
	"whalewatch/pkg/logger"
)

// ServerConfig contains configuration for the HTTP server
type ServerConfig struct {
	Addr        string
	ServiceName string
	Version     string
}

// Server wraps the HTTP server with lifecycle management
type Server struct {
	httpServer *http.Server
	log        *logger.Logger
}

// NewServer creates and configures the HTTP server with all routes
func NewServer(cfg ServerConfig, store whaleorder.Repository, agg *aggregator.Aggregator, hub *ws.Hub) *Server {
	log := logger.Get().With("component", "api")
	h := &handlers{store: store, agg: agg, log: log}

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", h.handleHealth)
	mux.Handle("/metrics", metrics.Handler())

	mux.HandleFunc("/api/orders", h.handleOrders)
	mux.HandleFunc("/api/liquidity", h.handleLiquidity)

	if hub != nil {
		mux.Handle("/ws", hub)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"service":"%s","version":"%s","status":"running"}`,
			cfg.ServiceName, cfg.Version)
	})

	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		log:        log,
	}
}

// Start begins listening for HTTP requests. Blocks until the server stops.
func (s *Server) Start() error {
	s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "http server failed")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Stopping HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "http server shutdown failed")
	}

	return nil
}

type handlers struct {
	store whaleorder.Repository
	agg   *aggregator.Aggregator
	log   *logger.Logger
}

func (h *handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

const defaultOrderLimit = 100

// handleOrders serves GET /api/orders with optional filters:
// exchange, direction, market, status, min_size, min_price, max_price, limit.
func (h *handlers) handleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	f := whaleorder.Filter{
		Exchange:  q.Get("exchange"),
		Direction: whaleorder.Direction(q.Get("direction")),
		Market:    whaleorder.Market(q.Get("market")),
		Status:    whaleorder.Status(q.Get("status")),
		MinSize:   queryFloat(q.Get("min_size")),
		MinPrice:  queryFloat(q.Get("min_price")),
		MaxPrice:  queryFloat(q.Get("max_price")),
		Limit:     defaultOrderLimit,
	}
	if err := f.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if v := q.Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			http.Error(w, "invalid since, want RFC3339", http.StatusBadRequest)
			return
		}
		f.Since = ts
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		f.Limit = n
	}

	orders, err := h.store.Find(r.Context(), f)
	if err != nil {
		h.log.Errorw("Order query failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if orders == nil {
		orders = []*whaleorder.WhaleOrder{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"orders": orders,
		"count":  len(orders),
	})
}

// handleLiquidity serves GET /api/liquidity. Returns 204 until the first
// aggregation cycle has published a snapshot.
func (h *handlers) handleLiquidity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snapshot := h.agg.Latest()
	if snapshot == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

func queryFloat(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
