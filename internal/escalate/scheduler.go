// Package escalate arms a delayed emergency escalation for every
// collision-positive reading and drives it to the notification fan-out once
// the grace delay elapses. The delay exists so a rider who is fine can be
// reached before their contacts are alarmed.
package escalate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"helmet-monitor/ingestion/internal/domain"
	"helmet-monitor/ingestion/internal/metrics"
)

// fireTimeout bounds the location lookup and notification fan-out of a
// single escalation.
const fireTimeout = 30 * time.Second

type LocationLookup interface {
	LatestLocation(ctx context.Context, helmetID string) (*domain.Location, error)
}

type Notifier interface {
	Notify(ctx context.Context, recipients []domain.Recipient, location *domain.Location, subject string) (domain.NotificationSummary, error)
}

// AlertPublisher pushes a fired-escalation event to live subscribers.
// Optional; a nil publisher skips the publish step.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, payload []byte) error
}

type Scheduler struct {
	locations  LocationLookup
	notifier   Notifier
	publisher  AlertPublisher
	recipients []domain.Recipient
	grace      time.Duration
	log        *slog.Logger

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) *time.Timer

	mu    sync.Mutex
	tasks map[string]*domain.EscalationTask
}

func NewScheduler(
	locations LocationLookup,
	notifier Notifier,
	publisher AlertPublisher,
	recipients []domain.Recipient,
	grace time.Duration,
	log *slog.Logger,
) *Scheduler {
	return &Scheduler{
		locations:  locations,
		notifier:   notifier,
		publisher:  publisher,
		recipients: recipients,
		grace:      grace,
		log:        log,
		now:        time.Now,
		afterFunc:  time.AfterFunc,
		tasks:      make(map[string]*domain.EscalationTask),
	}
}

// Arm creates one pending task for a collision-positive reading and starts
// its timer. Readings without a collision verdict never produce a task.
// Overlapping collisions for the same helmet each get their own task; there
// is no coalescing, so duplicate alerts within the grace window are expected.
// The timer outlives the ingesting connection.
func (s *Scheduler) Arm(reading *domain.DerivedReading) *domain.EscalationTask {
	if !reading.CollisionDetected {
		return nil
	}

	scheduledAt := s.now()
	task := &domain.EscalationTask{
		ID:                  uuid.NewString(),
		HelmetID:            reading.HelmetID,
		TriggeringReadingID: reading.ID,
		ScheduledAt:         scheduledAt,
		FireAt:              scheduledAt.Add(s.grace),
		Status:              domain.TaskPending,
	}

	s.mu.Lock()
	s.tasks[task.ID] = task
	s.mu.Unlock()

	metrics.EscalationsArmed.Add(1)
	s.log.Info("escalation armed",
		"task", task.ID,
		"helmet", task.HelmetID,
		"reading", task.TriggeringReadingID,
		"fire_at", task.FireAt,
	)

	s.afterFunc(s.grace, func() { s.fire(task.ID) })
	return task
}

// Task returns a snapshot of a task that has not fired yet; nil for unknown
// ids and for tasks already fired and released.
func (s *Scheduler) Task(id string) *domain.EscalationTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil
	}
	copied := *t
	return &copied
}

// fire transitions a task Pending -> Fired exactly once, then resolves the
// helmet's last location and runs the notification fan-out. The map only
// tracks tasks with a live timer; a fired task is released once its side
// effects finish so the process does not grow with every collision.
func (s *Scheduler) fire(id string) {
	s.mu.Lock()
	task, ok := s.tasks[id]
	if !ok || task.Status != domain.TaskPending {
		s.mu.Unlock()
		return
	}
	task.Status = domain.TaskFired
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.tasks, id)
		s.mu.Unlock()
	}()

	metrics.EscalationsFired.Add(1)

	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	location, err := s.locations.LatestLocation(ctx, task.HelmetID)
	if errors.Is(err, domain.ErrLocationNotFound) {
		metrics.EscalationsAborted.Add(1)
		s.log.Warn("escalation aborted",
			"task", task.ID,
			"helmet", task.HelmetID,
			"reason", domain.AbortNoLocation,
		)
		return
	}
	if err != nil {
		metrics.EscalationsAborted.Add(1)
		s.log.Error("escalation location lookup failed", "task", task.ID, "helmet", task.HelmetID, "error", err)
		return
	}

	subject := fmt.Sprintf("Emergency Alert: helmet %s detected a collision.", task.HelmetID)
	summary, err := s.notifier.Notify(ctx, s.recipients, location, subject)
	if err != nil {
		s.log.Error("notifier unavailable", "task", task.ID, "helmet", task.HelmetID, "error", err)
	}

	s.log.Info("escalation fired",
		"task", task.ID,
		"helmet", task.HelmetID,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)

	s.publish(ctx, task, location, summary)
}

func (s *Scheduler) publish(ctx context.Context, task *domain.EscalationTask, location *domain.Location, summary domain.NotificationSummary) {
	if s.publisher == nil {
		return
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"task_id":    task.ID,
		"helmet_id":  task.HelmetID,
		"reading_id": task.TriggeringReadingID,
		"latitude":   location.Latitude,
		"longitude":  location.Longitude,
		"succeeded":  summary.Succeeded,
		"failed":     summary.Failed,
		"fired_at":   s.now().Unix(),
	})
	if err := s.publisher.PublishAlert(ctx, payload); err != nil {
		s.log.Warn("alert publish failed", "task", task.ID, "error", err)
	}
}
