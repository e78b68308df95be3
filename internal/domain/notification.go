package domain

import "time"

type Channel string

const (
	ChannelSMS   Channel = "SMS"
	ChannelEmail Channel = "EMAIL"
)

// Recipient is one configured emergency contact endpoint.
type Recipient struct {
	Address string
	Channel Channel
}

type SendStatus string

const (
	SendSuccess SendStatus = "SUCCESS"
	SendFailed  SendStatus = "FAILED"
)

// NotificationOutcome records one delivery attempt to one recipient.
type NotificationOutcome struct {
	Recipient   string
	Channel     Channel
	Status      SendStatus
	ErrorDetail string
	SentAt      time.Time
}

// NotificationSummary aggregates a full fan-out. Outcomes keep the order of
// the recipient list the notifier was called with.
type NotificationSummary struct {
	Succeeded int
	Failed    int
	Outcomes  []NotificationOutcome
}
