package domain

import "errors"

var (
	// ErrMalformedFrame rejects an inbound message that does not parse into
	// a complete SensorFrame. The stream stays open.
	ErrMalformedFrame = errors.New("MalformedFrame")

	// ErrPersistence marks the reading store as unreachable. Non-fatal to
	// the stream; the frame's verdict has already been delivered.
	ErrPersistence = errors.New("PersistenceError")

	// ErrLocationNotFound means no location was ever shared for a helmet.
	// Distinct from a transport/storage error so escalation can branch on it.
	ErrLocationNotFound = errors.New("LocationNotFound")

	// ErrReadingNotFound means a helmet has no persisted readings yet.
	ErrReadingNotFound = errors.New("ReadingNotFound")

	// ErrNotifierUnavailable means the send capability itself could not be
	// invoked; every recipient in the batch is recorded as failed.
	ErrNotifierUnavailable = errors.New("NotifierUnavailable")
)
