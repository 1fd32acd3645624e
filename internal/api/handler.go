package api

import (
	"encoding/json"
	"net/http"

	"github.com/opensource-finance/harrier/internal/detector"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/worker"
)

// Handler holds dependencies for the operational endpoints.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	ensemble *detector.Ensemble
	worker   *worker.Worker
	version  string
}

// NewHandler creates a new operational handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, ensemble *detector.Ensemble, wrk *worker.Worker, version string) *Handler {
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		ensemble: ensemble,
		worker:   wrk,
		version:  version,
	}
}

// Health handles GET /healthz: liveness plus dependency checks.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready handles GET /readyz: ready once at least one model is live.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.ensemble != nil && len(h.ensemble.LiveModels()) == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"ready":  "false",
			"reason": "no trained models",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// StatusResponse is the response for GET /status.
type StatusResponse struct {
	Version    string                         `json:"version"`
	LiveModels []string                       `json:"liveModels"`
	Metrics    map[string]domain.ModelMetrics `json:"metrics"`
	Worker     *worker.Stats                  `json:"worker,omitempty"`
}

// Status handles GET /status: trained model set and worker state.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Version: h.version,
	}
	if h.ensemble != nil {
		resp.LiveModels = h.ensemble.LiveModels()
		resp.Metrics = h.ensemble.Metrics()
	}
	if h.worker != nil {
		stats := h.worker.GetStats()
		resp.Worker = &stats
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
