package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncImageUploaded is a no-op.
func (n *NoopRecorder) IncImageUploaded() {}

// IncImageDeleted is a no-op.
func (n *NoopRecorder) IncImageDeleted() {}

// IncUploadRejected is a no-op.
func (n *NoopRecorder) IncUploadRejected() {}

// IncProviderError is a no-op.
func (n *NoopRecorder) IncProviderError(op string) {}

// ObserveProviderDuration is a no-op.
func (n *NoopRecorder) ObserveProviderDuration(op string, duration time.Duration) {}

// IncOrphanEnqueued is a no-op.
func (n *NoopRecorder) IncOrphanEnqueued() {}

// IncOrphanResolved is a no-op.
func (n *NoopRecorder) IncOrphanResolved(status string) {}
