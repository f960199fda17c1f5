package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	ImagesUploaded          uint64
	ImagesDeleted           uint64
	UploadsRejected         uint64
	ProviderErrors          map[string]uint64
	ProviderDurationCount   uint64
	ProviderDurationTotalNs int64
	OrphansEnqueued         uint64
	OrphansResolved         map[string]uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	imagesUploaded          uint64
	imagesDeleted           uint64
	uploadsRejected         uint64
	providerDurationCount   uint64
	providerDurationTotalNs int64
	orphansEnqueued         uint64

	mu              sync.Mutex
	providerErrors  map[string]uint64
	orphansResolved map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		providerErrors:  make(map[string]uint64),
		orphansResolved: make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	providerErrors := make(map[string]uint64, len(m.providerErrors))
	for k, v := range m.providerErrors {
		providerErrors[k] = v
	}
	orphansResolved := make(map[string]uint64, len(m.orphansResolved))
	for k, v := range m.orphansResolved {
		orphansResolved[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		ImagesUploaded:          atomic.LoadUint64(&m.imagesUploaded),
		ImagesDeleted:           atomic.LoadUint64(&m.imagesDeleted),
		UploadsRejected:         atomic.LoadUint64(&m.uploadsRejected),
		ProviderErrors:          providerErrors,
		ProviderDurationCount:   atomic.LoadUint64(&m.providerDurationCount),
		ProviderDurationTotalNs: atomic.LoadInt64(&m.providerDurationTotalNs),
		OrphansEnqueued:         atomic.LoadUint64(&m.orphansEnqueued),
		OrphansResolved:         orphansResolved,
	}
}

// IncImageUploaded increments the upload counter.
func (m *InMemoryRecorder) IncImageUploaded() {
	atomic.AddUint64(&m.imagesUploaded, 1)
}

// IncImageDeleted increments the delete counter.
func (m *InMemoryRecorder) IncImageDeleted() {
	atomic.AddUint64(&m.imagesDeleted, 1)
}

// IncUploadRejected increments the validation rejection counter.
func (m *InMemoryRecorder) IncUploadRejected() {
	atomic.AddUint64(&m.uploadsRejected, 1)
}

// IncProviderError increments the provider error counter for an operation.
func (m *InMemoryRecorder) IncProviderError(op string) {
	m.mu.Lock()
	m.providerErrors[op]++
	m.mu.Unlock()
}

// ObserveProviderDuration records a provider call duration.
func (m *InMemoryRecorder) ObserveProviderDuration(op string, duration time.Duration) {
	atomic.AddUint64(&m.providerDurationCount, 1)
	atomic.AddInt64(&m.providerDurationTotalNs, duration.Nanoseconds())
}

// IncOrphanEnqueued increments the orphan enqueue counter.
func (m *InMemoryRecorder) IncOrphanEnqueued() {
	atomic.AddUint64(&m.orphansEnqueued, 1)
}

// IncOrphanResolved increments the orphan resolution counter by status.
func (m *InMemoryRecorder) IncOrphanResolved(status string) {
	m.mu.Lock()
	m.orphansResolved[status]++
	m.mu.Unlock()
}
