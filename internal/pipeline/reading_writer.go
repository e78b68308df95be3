package pipeline

import (
	"context"
	"log/slog"
	"time"

	"helmet-monitor/ingestion/internal/domain"
	"helmet-monitor/ingestion/internal/metrics"
)

// ReadingAppender is the append-only store the writer drains into.
type ReadingAppender interface {
	AppendReadings(ctx context.Context, readings []*domain.DerivedReading) error
}

// ReadingWriter drains the persist channel into TimescaleDB. A single writer
// consumes the channel so readings land in the order their frames arrived;
// do not run more than one.
type ReadingWriter struct {
	ch        <-chan PersistJob
	db        ReadingAppender
	log       *slog.Logger
	batchSize int
	flushMS   int
}

func NewReadingWriter(
	ch <-chan PersistJob,
	db ReadingAppender,
	log *slog.Logger,
	batchSize int,
	flushMS int,
) *ReadingWriter {
	return &ReadingWriter{
		ch:        ch,
		db:        db,
		log:       log,
		batchSize: batchSize,
		flushMS:   flushMS,
	}
}

func (w *ReadingWriter) Run(ctx context.Context) {
	batch := make([]PersistJob, 0, w.batchSize)
	ticker := time.NewTicker(time.Duration(w.flushMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case job, ok := <-w.ch:
			if !ok {
				if len(batch) > 0 {
					w.flush(ctx, batch)
				}
				return
			}
			batch = append(batch, job)
			if len(batch) >= w.batchSize {
				w.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flush(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			if len(batch) > 0 {
				w.flush(ctx, batch)
			}
			return
		}
	}
}

func (w *ReadingWriter) flush(ctx context.Context, batch []PersistJob) {
	readings := make([]*domain.DerivedReading, len(batch))
	for i, job := range batch {
		readings[i] = job.Reading
	}

	err := w.db.AppendReadings(ctx, readings)
	if err != nil {
		w.log.Warn("reading append failed, retrying", "batch", len(batch), "error", err)
		time.Sleep(500 * time.Millisecond)
		err = w.db.AppendReadings(ctx, readings)
		if err != nil {
			w.log.Error("reading append permanently failed", "batch", len(batch), "error", err)
			metrics.PersistFailures.Add(int64(len(batch)))
			for _, job := range batch {
				if job.Report != nil {
					job.Report(domain.ErrPersistence)
				}
			}
			return
		}
	}
	metrics.PersistSuccess.Add(int64(len(batch)))
}
