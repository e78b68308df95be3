package pipeline

import (
	"helmet-monitor/ingestion/internal/domain"
	"helmet-monitor/ingestion/internal/metrics"
)

// PersistJob carries an accepted reading to the writer. Report, when set, is
// called if the reading could not be persisted so the stream handler can push
// a structured error back to the helmet without closing the connection.
type PersistJob struct {
	Reading *domain.DerivedReading
	Report  func(err error)
}

type Dispatcher struct {
	PersistChan chan PersistJob
	StateChan   chan *domain.DerivedReading
}

func NewDispatcher(persistSize, stateSize int) *Dispatcher {
	return &Dispatcher{
		PersistChan: make(chan PersistJob, persistSize),
		StateChan:   make(chan *domain.DerivedReading, stateSize),
	}
}

// Dispatch hands an accepted reading to the background workers. The persist
// send blocks when the buffer is full: every accepted frame must reach the
// store exactly once. Live state is best-effort and drops under pressure.
func (d *Dispatcher) Dispatch(job PersistJob) {
	d.PersistChan <- job

	select {
	case d.StateChan <- job.Reading:
	default:
		metrics.StateChannelDrops.Add(1)
	}
}
