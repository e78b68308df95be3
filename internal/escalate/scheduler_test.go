package escalate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helmet-monitor/ingestion/internal/domain"
)

type fakeLookup struct {
	loc *domain.Location
	err error
}

func (f *fakeLookup) LatestLocation(ctx context.Context, helmetID string) (*domain.Location, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.loc, nil
}

type notifyCall struct {
	recipients []domain.Recipient
	location   *domain.Location
	subject    string
}

type fakeNotifier struct {
	mu      sync.Mutex
	calls   []notifyCall
	summary domain.NotificationSummary
}

func (f *fakeNotifier) Notify(ctx context.Context, recipients []domain.Recipient, location *domain.Location, subject string) (domain.NotificationSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, notifyCall{recipients, location, subject})
	return f.summary, nil
}

func (f *fakeNotifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePublisher struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (f *fakePublisher) PublishAlert(ctx context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return nil
}

func collisionReading(helmetID string) *domain.DerivedReading {
	return &domain.DerivedReading{
		ID: "r-1",
		SensorFrame: domain.SensorFrame{
			HelmetID:   helmetID,
			ReceivedAt: time.Now(),
		},
		AngleChangeMagnitude:    34.6,
		VelocityChangeMagnitude: 17.3,
		CollisionDetected:       true,
	}
}

func testScheduler(lookup LocationLookup, notifier Notifier, publisher AlertPublisher, grace time.Duration) *Scheduler {
	recipients := []domain.Recipient{
		{Address: "+15550100", Channel: domain.ChannelSMS},
		{Address: "ops@example.com", Channel: domain.ChannelEmail},
	}
	return NewScheduler(lookup, notifier, publisher, recipients, grace, slog.Default())
}

func TestArmIgnoresNonCollision(t *testing.T) {
	notifier := &fakeNotifier{}
	s := testScheduler(&fakeLookup{}, notifier, nil, time.Millisecond)

	reading := collisionReading("hm-100")
	reading.CollisionDetected = false

	task := s.Arm(reading)
	assert.Nil(t, task)

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, notifier.callCount())
}

func TestArmCreatesPendingTaskWithGraceDelay(t *testing.T) {
	notifier := &fakeNotifier{}
	grace := time.Hour
	s := testScheduler(&fakeLookup{loc: &domain.Location{HelmetID: "hm-100"}}, notifier, nil, grace)

	task := s.Arm(collisionReading("hm-100"))
	require.NotNil(t, task)

	assert.Equal(t, domain.TaskPending, task.Status)
	assert.Equal(t, "hm-100", task.HelmetID)
	assert.Equal(t, "r-1", task.TriggeringReadingID)
	assert.Equal(t, task.ScheduledAt.Add(grace), task.FireAt)
	assert.NotEmpty(t, task.ID)

	// Nothing fires before the grace delay elapses.
	assert.Zero(t, notifier.callCount())
	snapshot := s.Task(task.ID)
	require.NotNil(t, snapshot)
	assert.Equal(t, domain.TaskPending, snapshot.Status)
}

func TestFiresAfterGraceWithLocation(t *testing.T) {
	loc := &domain.Location{
		HelmetID:  "hm-100",
		Latitude:  48.2082,
		Longitude: 16.3738,
	}
	notifier := &fakeNotifier{summary: domain.NotificationSummary{Succeeded: 2}}
	publisher := &fakePublisher{}
	s := testScheduler(&fakeLookup{loc: loc}, notifier, publisher, 20*time.Millisecond)

	task := s.Arm(collisionReading("hm-100"))
	require.NotNil(t, task)

	require.Eventually(t, func() bool {
		return notifier.callCount() == 1
	}, time.Second, 5*time.Millisecond)

	notifier.mu.Lock()
	call := notifier.calls[0]
	notifier.mu.Unlock()
	assert.Equal(t, loc, call.location)
	assert.Len(t, call.recipients, 2)
	assert.Contains(t, call.subject, "hm-100")

	require.Eventually(t, func() bool {
		publisher.mu.Lock()
		defer publisher.mu.Unlock()
		return len(publisher.payloads) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestFireIsSingleShot(t *testing.T) {
	notifier := &fakeNotifier{}
	s := testScheduler(&fakeLookup{loc: &domain.Location{HelmetID: "hm-100"}}, notifier, nil, time.Hour)

	// Drive the timer by hand so the test is deterministic.
	var fireNow func()
	s.afterFunc = func(d time.Duration, f func()) *time.Timer {
		assert.Equal(t, time.Hour, d)
		fireNow = f
		return nil
	}

	task := s.Arm(collisionReading("hm-100"))
	require.NotNil(t, task)
	require.NotNil(t, fireNow)

	fireNow()
	fireNow()

	assert.Equal(t, 1, notifier.callCount())
	assert.Nil(t, s.Task(task.ID))
}

func TestFiredTasksAreReleased(t *testing.T) {
	notifier := &fakeNotifier{}
	s := testScheduler(&fakeLookup{loc: &domain.Location{HelmetID: "hm-100"}}, notifier, nil, time.Hour)

	fireFuncs := make(map[int]func())
	s.afterFunc = func(d time.Duration, f func()) *time.Timer {
		fireFuncs[len(fireFuncs)] = f
		return nil
	}

	first := s.Arm(collisionReading("hm-100"))
	second := s.Arm(collisionReading("hm-100"))
	require.NotNil(t, first)
	require.NotNil(t, second)

	fireFuncs[0]()

	// The fired task is gone; the pending one is still tracked.
	assert.Nil(t, s.Task(first.ID))
	pending := s.Task(second.ID)
	require.NotNil(t, pending)
	assert.Equal(t, domain.TaskPending, pending.Status)
}

func TestAbortsWhenLocationNotFound(t *testing.T) {
	notifier := &fakeNotifier{}
	publisher := &fakePublisher{}
	lookup := &fakeLookup{err: fmt.Errorf("%w: helmet hm-100", domain.ErrLocationNotFound)}
	s := testScheduler(lookup, notifier, publisher, time.Hour)

	var fireNow func()
	s.afterFunc = func(d time.Duration, f func()) *time.Timer {
		fireNow = f
		return nil
	}

	task := s.Arm(collisionReading("hm-100"))
	require.NotNil(t, task)
	fireNow()

	// Zero notifications and zero published alerts on abort.
	assert.Zero(t, notifier.callCount())
	publisher.mu.Lock()
	assert.Empty(t, publisher.payloads)
	publisher.mu.Unlock()
	assert.Nil(t, s.Task(task.ID))
}

func TestAbortsOnLookupFailure(t *testing.T) {
	notifier := &fakeNotifier{}
	lookup := &fakeLookup{err: errors.New("connection refused")}
	s := testScheduler(lookup, notifier, nil, time.Hour)

	var fireNow func()
	s.afterFunc = func(d time.Duration, f func()) *time.Timer {
		fireNow = f
		return nil
	}

	task := s.Arm(collisionReading("hm-100"))
	require.NotNil(t, task)
	fireNow()

	assert.Zero(t, notifier.callCount())
}

func TestOverlappingCollisionsEscalateIndependently(t *testing.T) {
	notifier := &fakeNotifier{}
	s := testScheduler(&fakeLookup{loc: &domain.Location{HelmetID: "hm-100"}}, notifier, nil, 15*time.Millisecond)

	first := s.Arm(collisionReading("hm-100"))
	second := s.Arm(collisionReading("hm-100"))
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)

	// No coalescing: both tasks run a full notification cycle.
	require.Eventually(t, func() bool {
		return notifier.callCount() == 2
	}, time.Second, 5*time.Millisecond)
}
