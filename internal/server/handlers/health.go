package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedredis "traders-server/internal/shared/redis"
	"traders-server/internal/shared/request"
	"traders-server/internal/shared/response"
)

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
	Cache     string `json:"cache"`
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthHandler struct {
	db    Pinger
	redis *sharedredis.Client
}

func NewHealthHandler(db Pinger, redis *sharedredis.Client) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "health")
	if !request.Allow(w, r, logger, http.MethodGet) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Database:  "connected",
		Cache:     "disabled",
	}

	if err := h.db.PingContext(ctx); err != nil {
		logger.Warn("Database ping failed", "error", err)
		resp.Status = "degraded"
		resp.Database = "disconnected"
	}

	if h.redis.Available() {
		resp.Cache = "connected"
		if err := h.redis.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis ping failed", "error", err)
			resp.Cache = "disconnected"
		}
	}

	status := http.StatusOK
	if resp.Database != "connected" {
		status = http.StatusServiceUnavailable
	}
	response.Success(w, status, resp)
}
