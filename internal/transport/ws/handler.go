// Package ws accepts one duplex sensor stream per helmet and turns inbound
// frames into verdicts, durable readings, and armed escalations.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"helmet-monitor/ingestion/internal/auth"
	"helmet-monitor/ingestion/internal/detect"
	"helmet-monitor/ingestion/internal/domain"
	"helmet-monitor/ingestion/internal/escalate"
	"helmet-monitor/ingestion/internal/metrics"
	"helmet-monitor/ingestion/internal/pipeline"
)

type framePayload struct {
	HelmetID      string         `json:"helmetId"`
	Accelerometer *vectorPayload `json:"accelerometer"`
	Gyroscope     *vectorPayload `json:"gyroscope"`
	LocationID    string         `json:"locationId"`
}

// vectorPayload uses pointers so an absent axis is distinguishable from a
// zero sample; a frame missing any axis is malformed.
type vectorPayload struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

type verdictResponse struct {
	CollisionDetected bool `json:"collisionDetected"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	upgrader   websocket.Upgrader
	thresholds detect.Thresholds
	dispatcher *pipeline.Dispatcher
	scheduler  *escalate.Scheduler
	log        *slog.Logger
}

func NewHandler(
	thresholds detect.Thresholds,
	dispatcher *pipeline.Dispatcher,
	scheduler *escalate.Scheduler,
	log *slog.Logger,
) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Helmets are embedded clients, not browsers.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		thresholds: thresholds,
		dispatcher: dispatcher,
		scheduler:  scheduler,
		log:        log,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.log
	if helmetID := auth.HelmetFromContext(r.Context()); helmetID != "" {
		log = log.With("helmet", helmetID)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	go h.serve(conn, log)
}

// jsonWriter is the part of *websocket.Conn the session uses.
type jsonWriter interface {
	WriteJSON(v interface{}) error
}

// session serializes writes: the persistence worker may report a failure on
// the same connection concurrently with the read loop's verdicts.
type session struct {
	conn jsonWriter
	mu   sync.Mutex
}

func (s *session) writeJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// serve is the per-helmet read loop. Frame-level failures are reported back
// on the stream and never close it; only a transport error ends the loop.
func (h *Handler) serve(conn *websocket.Conn, log *slog.Logger) {
	defer conn.Close()
	sess := &session{conn: conn}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("stream closed unexpectedly", "error", err)
			}
			return
		}

		if !h.handleFrame(sess, data) {
			return
		}
	}
}

// handleFrame processes one inbound frame and reports whether the connection
// is still writable. An accepted frame is dispatched for persistence and, on
// a positive verdict, armed for escalation even when the verdict write fails:
// a client that vanished mid-frame is exactly the one whose reading and
// escalation must survive.
func (h *Handler) handleFrame(sess *session, data []byte) bool {
	metrics.FramesReceived.Add(1)

	frame, err := parseFrame(data)
	if err != nil {
		metrics.MalformedFrames.Add(1)
		return sess.writeJSON(errorResponse{Error: domain.ErrMalformedFrame.Error()}) == nil
	}

	angle, velocity, collision := detect.Evaluate(*frame, h.thresholds)
	reading := &domain.DerivedReading{
		ID:                      uuid.NewString(),
		SensorFrame:             *frame,
		AngleChangeMagnitude:    angle,
		VelocityChangeMagnitude: velocity,
		CollisionDetected:       collision,
	}
	if collision {
		metrics.CollisionsDetected.Add(1)
	}

	h.dispatcher.Dispatch(pipeline.PersistJob{
		Reading: reading,
		Report: func(err error) {
			sess.writeJSON(errorResponse{Error: err.Error()})
		},
	})

	// The verdict goes out before the escalation side effect is armed.
	werr := sess.writeJSON(verdictResponse{CollisionDetected: collision})

	h.scheduler.Arm(reading)

	return werr == nil
}

func parseFrame(data []byte) (*domain.SensorFrame, error) {
	var payload framePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, domain.ErrMalformedFrame
	}
	if payload.HelmetID == "" {
		return nil, domain.ErrMalformedFrame
	}

	accel, ok := payload.Accelerometer.vector()
	if !ok {
		return nil, domain.ErrMalformedFrame
	}
	gyro, ok := payload.Gyroscope.vector()
	if !ok {
		return nil, domain.ErrMalformedFrame
	}

	raw := make([]byte, len(data))
	copy(raw, data)

	return &domain.SensorFrame{
		HelmetID:      payload.HelmetID,
		Accelerometer: accel,
		Gyroscope:     gyro,
		LocationID:    payload.LocationID,
		ReceivedAt:    time.Now().UTC(),
		RawPayload:    raw,
	}, nil
}

func (v *vectorPayload) vector() (domain.Vector3, bool) {
	if v == nil || v.X == nil || v.Y == nil || v.Z == nil {
		return domain.Vector3{}, false
	}
	return domain.Vector3{X: *v.X, Y: *v.Y, Z: *v.Z}, true
}
