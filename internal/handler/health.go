package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"explorer/internal/httputil"
)

// degradedLatency is the storage round-trip above which /health reports "degraded"
const degradedLatency = time.Second

// Pinger is anything that can prove the storage backend is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheBackend reports which cache store is serving requests
type CacheBackend interface {
	Backend() string
}

// HealthHandler serves liveness, readiness and detailed health
type HealthHandler struct {
	db        Pinger
	cache     CacheBackend
	version   string
	startedAt time.Time
	logger    *slog.Logger
}

// NewHealthHandler creates a health handler. cache may be nil when caching is disabled.
func NewHealthHandler(db Pinger, cache CacheBackend, version string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		cache:     cache,
		version:   version,
		startedAt: time.Now(),
		logger:    logger,
	}
}

type readiness struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

type healthReport struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    float64   `json:"uptime"`
	Version   string    `json:"version"`
	Database  readiness `json:"database"`
	Cache     string    `json:"cache"`
}

// Live reports that the process is serving
// GET /health/live
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready reports whether storage answers
// GET /health/ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	db := h.checkDatabase(r.Context())
	if db.Status != "ok" {
		httputil.RespondJSON(w, http.StatusServiceUnavailable, db)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, db)
}

// Health reports overall status with uptime, version and storage latency
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	db := h.checkDatabase(r.Context())

	report := healthReport{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startedAt).Seconds(),
		Version:   h.version,
		Database:  db,
		Cache:     "disabled",
	}
	if h.cache != nil {
		report.Cache = h.cache.Backend()
	}

	status := http.StatusOK
	switch {
	case db.Status != "ok":
		report.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	case time.Duration(db.LatencyMs)*time.Millisecond > degradedLatency:
		report.Status = "degraded"
	}

	httputil.RespondJSON(w, status, report)
}

func (h *HealthHandler) checkDatabase(ctx context.Context) readiness {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	err := h.db.Ping(ctx)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		h.logger.Warn("readiness check failed", "error", err, "latency_ms", latency)
		return readiness{Status: "error", LatencyMs: latency, Error: "database unreachable"}
	}
	return readiness{Status: "ok", LatencyMs: latency}
}
