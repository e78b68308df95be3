package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"helmet-monitor/ingestion/internal/domain"
)

type fakeUpdater struct {
	mu      sync.Mutex
	updated []string
	failFor map[string]error
}

func (f *fakeUpdater) PipelineStateUpdate(ctx context.Context, reading *domain.DerivedReading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[reading.ID]; ok {
		return err
	}
	f.updated = append(f.updated, reading.ID)
	return nil
}

func (f *fakeUpdater) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.updated...)
}

func TestStateWriterMirrorsReadings(t *testing.T) {
	ch := make(chan *domain.DerivedReading, 8)
	redis := &fakeUpdater{}
	w := NewStateWriter(ch, redis, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	ch <- testReading("r-1")
	ch <- testReading("r-2")

	require.Eventually(t, func() bool {
		return len(redis.ids()) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestStateWriterSkipsFailedUpdate(t *testing.T) {
	ch := make(chan *domain.DerivedReading, 8)
	redis := &fakeUpdater{failFor: map[string]error{"r-2": errors.New("redis down")}}
	w := NewStateWriter(ch, redis, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	ch <- testReading("r-1")
	ch <- testReading("r-2")
	ch <- testReading("r-3")

	// r-2 is dropped, the writer keeps going.
	require.Eventually(t, func() bool {
		ids := redis.ids()
		return len(ids) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"r-1", "r-3"}, redis.ids())
}
