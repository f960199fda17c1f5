// Package cleanup reconciles orphaned remote images: uploads that succeeded
// at the provider but whose local ownership record failed to persist. The
// delete hash is the only handle on such an asset, so it is queued here for
// a best-effort compensating remote delete.
package cleanup

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/imgvault/imgvault/internal/metrics"
)

const (
	// StreamKey is the Redis stream for orphaned remote images.
	StreamKey = "stream:orphaned_images"

	// DeadLetterStreamKey is the Redis stream for orphans whose remote
	// delete kept failing. Entries here need operator attention.
	DeadLetterStreamKey = "stream:orphaned_images:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 10000

	// PublishTimeout is the max time to wait for the Redis publish.
	PublishTimeout = 500 * time.Millisecond
)

// OrphanPayload describes one orphaned remote image.
type OrphanPayload struct {
	DeleteHash  string `json:"dh"`
	ImageHash   string `json:"ih"`
	Username    string `json:"u,omitempty"`
	Attempts    int    `json:"a"`
	NotBefore   int64  `json:"nb,omitempty"` // Unix seconds; 0 means immediately
	OrphanedAt  int64  `json:"t"`            // Unix seconds
	FailureNote string `json:"fn,omitempty"`
}

// Publisher enqueues orphaned images to the cleanup stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new orphan publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "cleanup.publisher"),
		metrics: recorder,
	}
}

// Enqueue adds an orphaned image to the stream. A publish failure is logged
// and swallowed: the caller is already on an error path and the delete hash
// also appears in the error log for manual recovery.
func (p *Publisher) Enqueue(ctx context.Context, payload OrphanPayload) {
	if payload.OrphanedAt == 0 {
		payload.OrphanedAt = time.Now().Unix()
	}

	publishCtx, cancel := context.WithTimeout(ctx, PublishTimeout)
	defer cancel()

	if err := p.publish(publishCtx, StreamKey, payload); err != nil {
		p.logger.Error("failed to enqueue orphaned image",
			slog.String("error", err.Error()),
			slog.String("image_hash", payload.ImageHash),
		)
		return
	}

	p.metrics.IncOrphanEnqueued()
	p.logger.Warn("orphaned remote image enqueued for cleanup",
		slog.String("image_hash", payload.ImageHash),
		slog.String("username", payload.Username),
	)
}

func (p *Publisher) publish(ctx context.Context, stream string, payload OrphanPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	err = p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{"payload": string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}

	return nil
}
