package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/snowballr/snowballr-api/internal/api/response"
)

// DBPinger checks database connectivity.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles the GET /health endpoint.
type HealthHandler struct {
	db      DBPinger
	version string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db DBPinger, version string) *HealthHandler {
	return &HealthHandler{
		db:      db,
		version: version,
	}
}

type healthData struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
}

// ServeHTTP reports healthy when the database answers, degraded otherwise.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data := healthData{
		Status:   "healthy",
		Version:  h.version,
		Database: "connected",
	}

	if h.db == nil {
		data.Status = "degraded"
		data.Database = "not configured"
	} else if err := h.db.Ping(r.Context()); err != nil {
		slog.Warn("database ping failed", "error", err)
		data.Status = "degraded"
		data.Database = "unreachable"
	}

	response.Success(w, http.StatusOK, data)
}
