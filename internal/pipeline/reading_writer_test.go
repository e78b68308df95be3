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

type fakeAppender struct {
	mu      sync.Mutex
	batches [][]*domain.DerivedReading
	err     error
}

func (f *fakeAppender) AppendReadings(ctx context.Context, readings []*domain.DerivedReading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	batch := make([]*domain.DerivedReading, len(readings))
	copy(batch, readings)
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeAppender) appended() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, batch := range f.batches {
		for _, r := range batch {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

func TestReadingWriterFlushesFullBatch(t *testing.T) {
	ch := make(chan PersistJob, 8)
	db := &fakeAppender{}
	w := NewReadingWriter(ch, db, slog.Default(), 2, 1000)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	ch <- PersistJob{Reading: testReading("r-1")}
	ch <- PersistJob{Reading: testReading("r-2")}

	require.Eventually(t, func() bool {
		return len(db.appended()) == 2
	}, time.Second, 5*time.Millisecond)

	// One full batch, arrival order preserved.
	assert.Equal(t, []string{"r-1", "r-2"}, db.appended())
}

func TestReadingWriterFlushesOnInterval(t *testing.T) {
	ch := make(chan PersistJob, 8)
	db := &fakeAppender{}
	w := NewReadingWriter(ch, db, slog.Default(), 100, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	ch <- PersistJob{Reading: testReading("r-1")}

	require.Eventually(t, func() bool {
		return len(db.appended()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestReadingWriterPreservesArrivalOrder(t *testing.T) {
	ch := make(chan PersistJob, 16)
	db := &fakeAppender{}
	w := NewReadingWriter(ch, db, slog.Default(), 3, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	want := []string{"r-1", "r-2", "r-3", "r-4", "r-5"}
	for _, id := range want {
		ch <- PersistJob{Reading: testReading(id)}
	}

	require.Eventually(t, func() bool {
		return len(db.appended()) == len(want)
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, db.appended())
}

func TestReadingWriterReportsPermanentFailure(t *testing.T) {
	ch := make(chan PersistJob, 8)
	db := &fakeAppender{err: errors.New("connection refused")}
	w := NewReadingWriter(ch, db, slog.Default(), 1, 5)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	reported := make(chan error, 1)
	ch <- PersistJob{
		Reading: testReading("r-1"),
		Report:  func(err error) { reported <- err },
	}

	// The writer retries once with a 500ms pause before giving up.
	select {
	case err := <-reported:
		assert.ErrorIs(t, err, domain.ErrPersistence)
	case <-time.After(3 * time.Second):
		t.Fatal("persistence failure was never reported")
	}
}

func TestReadingWriterDrainsOnShutdown(t *testing.T) {
	ch := make(chan PersistJob, 8)
	db := &fakeAppender{}
	w := NewReadingWriter(ch, db, slog.Default(), 100, 1000)

	ch <- PersistJob{Reading: testReading("r-1")}
	close(ch)

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writer did not stop after channel close")
	}
	assert.Equal(t, []string{"r-1"}, db.appended())
}
