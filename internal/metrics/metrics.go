// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Image lifecycle metrics
	IncImageUploaded()
	IncImageDeleted()
	IncUploadRejected() // input failed validation before any provider call

	// Provider call metrics
	IncProviderError(op string) // op: "upload", "get", "delete"
	ObserveProviderDuration(op string, duration time.Duration)

	// Orphan cleanup metrics
	IncOrphanEnqueued()
	IncOrphanResolved(status string) // status: "deleted" or "dropped"
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
