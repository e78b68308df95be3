package domain

import "time"

// Vector3 is a single 3-axis sensor sample.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// SensorFrame is one validated inbound message from a helmet stream.
type SensorFrame struct {
	HelmetID      string
	Accelerometer Vector3
	Gyroscope     Vector3
	LocationID    string
	ReceivedAt    time.Time

	RawPayload []byte
}

// DerivedReading is a SensorFrame plus the magnitudes and verdict computed
// by the collision detector. Persisted verbatim, never mutated.
type DerivedReading struct {
	ID string

	SensorFrame

	AngleChangeMagnitude    float64
	VelocityChangeMagnitude float64
	CollisionDetected       bool
}

// Location is the last shared position of a helmet wearer. Owned by the
// location subsystem; the core only reads the most recent entry.
type Location struct {
	HelmetID   string
	LocationID string
	Latitude   float64
	Longitude  float64
	RecordedAt time.Time
}
