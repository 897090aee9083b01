package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/prn-tf/hermes-users/internal/repository"
)

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
	Version   string `json:"version"`
}

// HealthHandler reports service liveness and database connectivity.
type HealthHandler struct {
	db      repository.DatabaseHealth
	version string
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db repository.DatabaseHealth, version string) *HealthHandler {
	return &HealthHandler{db: db, version: version}
}

// Handle handles GET /health. A reachable database reports 200/ok; anything
// else reports 503 with the database marked disconnected.
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Database:  "connected",
		Version:   h.version,
	}

	status := http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		resp.Status = "error"
		resp.Database = "disconnected"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}
