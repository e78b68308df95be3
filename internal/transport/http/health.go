package http

import (
	"net/http"

	"helmet-monitor/ingestion/internal/store"
)

// HealthHandler pings both backing stores. Used by the process supervisor.
type HealthHandler struct {
	db    *store.TimescaleStore
	redis *store.RedisStore
}

func NewHealthHandler(db *store.TimescaleStore, redis *store.RedisStore) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.db.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "degraded",
			"db":     err.Error(),
		})
		return
	}
	if err := h.redis.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "degraded",
			"redis":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}
