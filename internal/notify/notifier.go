// Package notify fans an emergency alert out to every configured contact and
// aggregates the per-recipient outcomes into a single summary.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"helmet-monitor/ingestion/internal/domain"
	"helmet-monitor/ingestion/internal/metrics"
)

type Notifier struct {
	sender Sender
	log    *slog.Logger

	now func() time.Time
}

// NewNotifier wires the delivery capability. A nil sender is legal and makes
// every Notify call fail with domain.ErrNotifierUnavailable; this is how a
// missing gateway configuration surfaces.
func NewNotifier(sender Sender, log *slog.Logger) *Notifier {
	return &Notifier{sender: sender, log: log, now: time.Now}
}

// Notify attempts delivery to every recipient concurrently. One recipient's
// failure never touches the others, and the summary is assembled only after
// the last attempt finishes. Outcomes keep the input recipient order.
func (n *Notifier) Notify(
	ctx context.Context,
	recipients []domain.Recipient,
	location *domain.Location,
	subject string,
) (domain.NotificationSummary, error) {
	outcomes := make([]domain.NotificationOutcome, len(recipients))

	if n.sender == nil {
		sentAt := n.now()
		for i, r := range recipients {
			outcomes[i] = domain.NotificationOutcome{
				Recipient:   r.Address,
				Channel:     r.Channel,
				Status:      domain.SendFailed,
				ErrorDetail: domain.ErrNotifierUnavailable.Error(),
				SentAt:      sentAt,
			}
		}
		summary := assemble(outcomes)
		metrics.NotificationsFailed.Add(int64(summary.Failed))
		return summary, domain.ErrNotifierUnavailable
	}

	msg := renderMessage(location, subject)

	var wg sync.WaitGroup
	for i, r := range recipients {
		wg.Add(1)
		go func(i int, r domain.Recipient) {
			defer wg.Done()

			outcome := domain.NotificationOutcome{
				Recipient: r.Address,
				Channel:   r.Channel,
				Status:    domain.SendSuccess,
			}
			if err := n.sender.Send(ctx, r, msg); err != nil {
				outcome.Status = domain.SendFailed
				outcome.ErrorDetail = err.Error()
				n.log.Warn("notification send failed", "recipient", r.Address, "channel", r.Channel, "error", err)
			}
			outcome.SentAt = n.now()
			outcomes[i] = outcome
		}(i, r)
	}
	wg.Wait()

	summary := assemble(outcomes)
	metrics.NotificationsSent.Add(int64(summary.Succeeded))
	metrics.NotificationsFailed.Add(int64(summary.Failed))
	return summary, nil
}

func assemble(outcomes []domain.NotificationOutcome) domain.NotificationSummary {
	summary := domain.NotificationSummary{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Status == domain.SendSuccess {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	return summary
}

func renderMessage(location *domain.Location, subject string) Message {
	return Message{
		Subject: subject,
		Body: fmt.Sprintf(
			"%s Last known position: https://maps.google.com/?q=%f,%f (recorded %s)",
			subject,
			location.Latitude,
			location.Longitude,
			location.RecordedAt.UTC().Format(time.RFC3339),
		),
	}
}
