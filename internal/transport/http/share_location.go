package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"helmet-monitor/ingestion/internal/domain"
)

type shareLocationRequest struct {
	UserID   string `json:"userId"`
	Location *struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"location"`
}

// LocationWriter is the durable store escalation reads back from.
type LocationWriter interface {
	InsertLocation(ctx context.Context, loc *domain.Location) error
}

// LocationMirror covers the Redis side: the helmet registry and the
// best-effort live geo index.
type LocationMirror interface {
	HelmetRegistered(ctx context.Context, helmetID string) (bool, error)
	UpdateLocation(ctx context.Context, loc *domain.Location) error
}

// ShareLocationHandler records a manually shared position for a helmet
// wearer. The durable row in Postgres is what escalation reads back; the
// Redis mirror is best-effort for the live map.
type ShareLocationHandler struct {
	db     LocationWriter
	redis  LocationMirror
	appEnv string
	log    *slog.Logger
}

func NewShareLocationHandler(db LocationWriter, redis LocationMirror, appEnv string, log *slog.Logger) *ShareLocationHandler {
	return &ShareLocationHandler{db: db, redis: redis, appEnv: appEnv, log: log}
}

func (h *ShareLocationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{
			"success": false,
			"message": "method not allowed",
		})
		return
	}

	var req shareLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.UserID == "" ||
		req.Location == nil ||
		req.Location.Latitude == nil ||
		req.Location.Longitude == nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"message": "userId and location{latitude,longitude} are required",
		})
		return
	}

	ctx := r.Context()

	known, err := h.redis.HelmetRegistered(ctx, req.UserID)
	if err != nil {
		h.internalError(w, "registry check failed", err)
		return
	}
	if !known {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"success": false,
			"message": "unknown user",
		})
		return
	}

	loc := &domain.Location{
		HelmetID:   req.UserID,
		LocationID: uuid.NewString(),
		Latitude:   *req.Location.Latitude,
		Longitude:  *req.Location.Longitude,
		RecordedAt: time.Now().UTC(),
	}

	if err := h.db.InsertLocation(ctx, loc); err != nil {
		h.internalError(w, "location insert failed", err)
		return
	}

	if err := h.redis.UpdateLocation(ctx, loc); err != nil {
		h.log.Warn("redis location mirror failed", "helmet", loc.HelmetID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Location shared successfully",
	})
}

func (h *ShareLocationHandler) internalError(w http.ResponseWriter, msg string, err error) {
	h.log.Error(msg, "error", err)
	body := map[string]interface{}{
		"success": false,
		"message": "internal error",
	}
	if h.appEnv != "production" {
		body["error"] = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, body)
}

func writeJSON(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
