// Package detect holds the collision-detection predicate. It is pure:
// identical inputs always produce identical outputs, and nothing here
// touches a clock, a store, or a network.
package detect

import (
	"math"

	"helmet-monitor/ingestion/internal/domain"
)

// Thresholds calibrate the verdict. Both must be strictly exceeded for a
// frame to count as a collision; the boundary values themselves do not
// trigger.
type Thresholds struct {
	AngleChange    float64 // degrees, from the gyroscope norm
	VelocityChange float64 // m/s^2, from the accelerometer norm
}

// DefaultThresholds match the field calibration the hardware shipped with.
var DefaultThresholds = Thresholds{
	AngleChange:    30.0,
	VelocityChange: 15.0,
}

// Magnitude is the Euclidean norm of a 3-axis sample. Always >= 0.
func Magnitude(v domain.Vector3) float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Evaluate computes both magnitudes and the collision verdict for a frame.
func Evaluate(frame domain.SensorFrame, t Thresholds) (angle, velocity float64, collision bool) {
	angle = Magnitude(frame.Gyroscope)
	velocity = Magnitude(frame.Accelerometer)
	collision = angle > t.AngleChange && velocity > t.VelocityChange
	return angle, velocity, collision
}
