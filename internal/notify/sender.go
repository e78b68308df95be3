package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"helmet-monitor/ingestion/internal/domain"
)

// Message is the rendered alert content handed to a channel capability.
type Message struct {
	Subject string
	Body    string
}

// Sender is the delivery capability for a single recipient. Implementations
// cover SMS and email; the notifier never cares which.
type Sender interface {
	Send(ctx context.Context, recipient domain.Recipient, msg Message) error
}

// GatewaySender delivers through an external messaging gateway (Twilio-style
// REST API). One POST per recipient.
type GatewaySender struct {
	URL          string
	Token        string
	SenderNumber string
	SenderEmail  string
	Client       *http.Client
}

func NewGatewaySender(url, token, senderNumber, senderEmail string) *GatewaySender {
	return &GatewaySender{
		URL:          url,
		Token:        token,
		SenderNumber: senderNumber,
		SenderEmail:  senderEmail,
		Client:       &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *GatewaySender) Send(ctx context.Context, recipient domain.Recipient, msg Message) error {
	from := g.SenderNumber
	if recipient.Channel == domain.ChannelEmail {
		from = g.SenderEmail
	}

	payload, err := json.Marshal(map[string]string{
		"channel": string(recipient.Channel),
		"to":      recipient.Address,
		"from":    from,
		"subject": msg.Subject,
		"body":    msg.Body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.Token)

	resp, err := g.Client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway returned status %d for %s", resp.StatusCode, recipient.Address)
	}
	return nil
}
