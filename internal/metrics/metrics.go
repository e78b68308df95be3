package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	FramesReceived      atomic.Int64
	MalformedFrames     atomic.Int64
	CollisionsDetected  atomic.Int64
	PersistSuccess      atomic.Int64
	PersistFailures     atomic.Int64
	StateChannelDrops   atomic.Int64
	EscalationsArmed    atomic.Int64
	EscalationsFired    atomic.Int64
	EscalationsAborted  atomic.Int64
	NotificationsSent   atomic.Int64
	NotificationsFailed atomic.Int64
)

func HandleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "ingestion_frames_received_total %d\n", FramesReceived.Load())
	fmt.Fprintf(w, "ingestion_malformed_frames_total %d\n", MalformedFrames.Load())
	fmt.Fprintf(w, "ingestion_collisions_detected_total %d\n", CollisionsDetected.Load())
	fmt.Fprintf(w, "ingestion_persist_success_total %d\n", PersistSuccess.Load())
	fmt.Fprintf(w, "ingestion_persist_failures_total %d\n", PersistFailures.Load())
	fmt.Fprintf(w, "ingestion_state_channel_drops_total %d\n", StateChannelDrops.Load())
	fmt.Fprintf(w, "ingestion_escalations_armed_total %d\n", EscalationsArmed.Load())
	fmt.Fprintf(w, "ingestion_escalations_fired_total %d\n", EscalationsFired.Load())
	fmt.Fprintf(w, "ingestion_escalations_aborted_total %d\n", EscalationsAborted.Load())
	fmt.Fprintf(w, "ingestion_notifications_sent_total %d\n", NotificationsSent.Load())
	fmt.Fprintf(w, "ingestion_notifications_failed_total %d\n", NotificationsFailed.Load())
}
