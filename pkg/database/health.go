package database

import (
	"context"
	"database/sql"
	"time"
)

// HealthStatus reports database reachability and timing.
type HealthStatus struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time_ms"`
	Path         string `json:"path"`
}

// Health checks database connectivity.
func Health(ctx context.Context, db *sql.DB, path string) (*HealthStatus, error) {
	start := time.Now()
	if err := db.PingContext(ctx); err != nil {
		return &HealthStatus{
			Status:       "unhealthy",
			ResponseTime: time.Since(start).Milliseconds(),
			Path:         path,
		}, err
	}
	return &HealthStatus{
		Status:       "healthy",
		ResponseTime: time.Since(start).Milliseconds(),
		Path:         path,
	}, nil
}
