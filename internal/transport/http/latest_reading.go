package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"helmet-monitor/ingestion/internal/domain"
)

// ReadingLookup serves the most recent persisted reading for a helmet.
type ReadingLookup interface {
	LatestReading(ctx context.Context, helmetID string) (*domain.DerivedReading, error)
}

// LatestReadingHandler exposes a helmet's last persisted reading for
// dashboards and field debugging. Off the hot path.
type LatestReadingHandler struct {
	readings ReadingLookup
	log      *slog.Logger
}

func NewLatestReadingHandler(readings ReadingLookup, log *slog.Logger) *LatestReadingHandler {
	return &LatestReadingHandler{readings: readings, log: log}
}

func (h *LatestReadingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{
			"error": "method not allowed",
		})
		return
	}

	helmetID := r.URL.Query().Get("helmetId")
	if helmetID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": "helmetId query parameter is required",
		})
		return
	}

	reading, err := h.readings.LatestReading(r.Context(), helmetID)
	if errors.Is(err, domain.ErrReadingNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"error": domain.ErrReadingNotFound.Error(),
		})
		return
	}
	if err != nil {
		h.log.Error("latest reading query failed", "helmet", helmetID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "internal error",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"readingId":               reading.ID,
		"helmetId":                reading.HelmetID,
		"locationId":              reading.LocationID,
		"accelerometer":           reading.Accelerometer,
		"gyroscope":               reading.Gyroscope,
		"angleChangeMagnitude":    reading.AngleChangeMagnitude,
		"velocityChangeMagnitude": reading.VelocityChangeMagnitude,
		"collisionDetected":       reading.CollisionDetected,
		"receivedAt":              reading.ReceivedAt,
	})
}
