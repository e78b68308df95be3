package pipeline

import (
	"context"
	"log/slog"
	"time"

	"helmet-monitor/ingestion/internal/domain"
)

// StateUpdater receives the live-state mirror of each reading.
type StateUpdater interface {
	PipelineStateUpdate(ctx context.Context, reading *domain.DerivedReading) error
}

// StateWriter mirrors readings into Redis for live dashboards. Best-effort:
// a failed update is logged and skipped, the durable record already exists.
type StateWriter struct {
	ch    <-chan *domain.DerivedReading
	redis StateUpdater
	log   *slog.Logger
}

func NewStateWriter(
	ch <-chan *domain.DerivedReading,
	redis StateUpdater,
	log *slog.Logger,
) *StateWriter {
	return &StateWriter{ch: ch, redis: redis, log: log}
}

func (w *StateWriter) Run(ctx context.Context) {
	batch := make([]*domain.DerivedReading, 0, 100)
	ticker := time.NewTicker(50 * time.Millisecond) // 50ms gives real-time feel on dashboard
	defer ticker.Stop()

	for {
		select {
		case reading, ok := <-w.ch:
			if !ok {
				w.flushBatch(ctx, batch)
				return
			}
			batch = append(batch, reading)
			if len(batch) >= 100 {
				w.flushBatch(ctx, batch)
				batch = batch[:0]
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.flushBatch(ctx, batch)
				batch = batch[:0]
			}

		case <-ctx.Done():
			w.flushBatch(ctx, batch)
			return
		}
	}
}

func (w *StateWriter) flushBatch(ctx context.Context, batch []*domain.DerivedReading) {
	for _, reading := range batch {
		if err := w.redis.PipelineStateUpdate(ctx, reading); err != nil {
			w.log.Warn("redis state update failed", "helmet", reading.HelmetID, "error", err)
		}
	}
}
