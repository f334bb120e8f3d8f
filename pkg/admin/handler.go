// Package admin serves a small HTTP surface for inspecting and draining a Pool.
package admin

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/halcyonnouveau/estoult/pkg/pool"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Handler serves the admin routes of one Pool.
type Handler struct {
	pool     *pool.Pool
	registry *prometheus.Registry
	logger   *zap.Logger
}

// ClosedResponse acknowledges a bulk close.
type ClosedResponse struct {
	Closed bool `json:"closed"`
}

// CloseStaleResponse reports how many stale checkouts were closed.
type CloseStaleResponse struct {
	Closed int `json:"closed"`
}

// ErrorResponse carries the error of a failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewHandler creates a Handler for p with its own metrics registry.
func NewHandler(p *pool.Pool) *Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(pool.NewCollector(p))

	return &Handler{
		pool:     p,
		registry: registry,
		logger:   zap.NewNop(),
	}
}

// SetLogger replaces the Handler's logger.
func (h *Handler) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	h.logger = logger
}

// Registry returns the registry backing /metrics, for registering extra collectors.
func (h *Handler) Registry() *prometheus.Registry {
	return h.registry
}

// RegisterRoutes mounts the /pool routes and /metrics on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/pool", func(r chi.Router) {
		r.Get("/stats", h.Stats)
		r.Post("/idle/close", h.CloseIdle)
		r.Post("/stale/close", h.CloseStale)
		r.Post("/close", h.CloseAll)
	})
	r.Handle("/metrics", promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{}))
}

// Stats writes the Pool's current Stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.pool.Stats())
}

// CloseIdle closes every idle connection.
func (h *Handler) CloseIdle(w http.ResponseWriter, r *http.Request) {
	if err := h.pool.CloseIdle(); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, ClosedResponse{Closed: true})
}

// CloseStale reads the age in seconds from the "age" query parameter.
func (h *Handler) CloseStale(w http.ResponseWriter, r *http.Request) {
	age := pool.DefaultStaleAge
	if raw := r.URL.Query().Get("age"); raw != "" {
		seconds, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err)
			return
		}
		age = time.Duration(seconds) * time.Second
	}

	closed, err := h.pool.CloseStale(age)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, CloseStaleResponse{Closed: closed})
}

// CloseAll closes every connection, idle and checked out.
func (h *Handler) CloseAll(w http.ResponseWriter, r *http.Request) {
	if err := h.pool.CloseAll(r.Context()); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, ClosedResponse{Closed: true})
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.logger.Error("admin request failed", zap.Int("status", status), zap.Error(err))
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
