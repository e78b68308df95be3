package domain

import "time"

type TaskStatus string

const (
	TaskPending   TaskStatus = "PENDING"
	TaskFired     TaskStatus = "FIRED"
	TaskCancelled TaskStatus = "CANCELLED" // reserved for a future dedup policy
)

// EscalationTask is one armed emergency escalation. Exactly one task is
// created per collision-positive reading; tasks for the same helmet are
// independent of each other.
type EscalationTask struct {
	ID                  string
	HelmetID            string
	TriggeringReadingID string
	ScheduledAt         time.Time
	FireAt              time.Time
	Status              TaskStatus
}

type AbortReason string

const (
	AbortNoLocation AbortReason = "NO_LOCATION"
)
