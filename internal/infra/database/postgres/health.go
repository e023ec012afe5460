package postgres

import (
	"context"
	"fmt"
	"time"
)

// HealthStatus represents database health status
type HealthStatus struct {
	Status       string    `json:"status"`          // "healthy", "degraded", "unhealthy"
	ResponseTime string    `json:"response_time"`   // e.g., "5ms"
	ActiveConns  int32     `json:"active_conns"`    // Current acquired connections
	IdleConns    int32     `json:"idle_conns"`      // Current idle connections
	TotalConns   int32     `json:"total_conns"`     // Total connections
	MaxConns     int32     `json:"max_conns"`       // Max connections allowed
	CheckedAt    time.Time `json:"checked_at"`      // When health check was performed
	Error        string    `json:"error,omitempty"` // Error message if unhealthy
}

// Health checks the health of the database connection, connecting lazily if needed
func (m *Manager) Health(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{CheckedAt: start, Status: "healthy"}

	pool, err := m.Handle(ctx)
	if err != nil {
		status.Status = "unhealthy"
		status.Error = fmt.Sprintf("connect failed: %v", err)
		status.ResponseTime = time.Since(start).String()
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		status.Status = "unhealthy"
		status.Error = fmt.Sprintf("ping failed: %v", err)
		status.ResponseTime = time.Since(start).String()
		return status
	}

	stats := pool.Stat()
	status.ActiveConns = stats.AcquiredConns()
	status.IdleConns = stats.IdleConns()
	status.TotalConns = stats.TotalConns()
	status.MaxConns = stats.MaxConns()
	status.ResponseTime = time.Since(start).String()

	if stats.MaxConns() > 2 && stats.AcquiredConns() >= stats.MaxConns()-2 {
		status.Status = "degraded"
		status.Error = "connection pool nearly exhausted"
	}

	return status
}

// IsHealthy returns true if the database is healthy
func (m *Manager) IsHealthy(ctx context.Context) bool {
	return m.Health(ctx).Status == "healthy"
}
