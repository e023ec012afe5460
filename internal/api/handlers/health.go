package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wonny/findata/internal/api/response"
	"github.com/wonny/findata/internal/infra/database/postgres"
)

// DatabaseHealth is implemented by postgres.Manager
type DatabaseHealth interface {
	Health(ctx context.Context) *postgres.HealthStatus
}

// CacheHealth is implemented by cache.StatsCache
type CacheHealth interface {
	Health(ctx context.Context) error
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db        DatabaseHealth
	cache     CacheHealth // optional
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler. cache may be nil.
func NewHealthHandler(db DatabaseHealth, cache CacheHealth, version string) *HealthHandler {
	return &HealthHandler{
		db:        db,
		cache:     cache,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthResponse represents detailed health information
type HealthResponse struct {
	Status        string                 `json:"status"`
	Version       string                 `json:"version"`
	UptimeSeconds int64                  `json:"uptime_seconds"`
	Timestamp     time.Time              `json:"timestamp"`
	Database      *postgres.HealthStatus `json:"database"`
	Cache         string                 `json:"cache,omitempty"`
}

// Health reports database and cache health
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	db := h.db.Health(r.Context())

	resp := HealthResponse{
		Status:        db.Status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Timestamp:     time.Now(),
		Database:      db,
	}

	if h.cache != nil {
		resp.Cache = "ok"
		if err := h.cache.Health(r.Context()); err != nil {
			// 캐시 장애는 서비스 중단이 아님
			resp.Cache = err.Error()
			if resp.Status == "healthy" {
				resp.Status = "degraded"
			}
		}
	}

	status := http.StatusOK
	if resp.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, resp)
}
