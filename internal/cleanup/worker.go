package cleanup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/imgvault/imgvault/internal/metrics"
)

const (
	// ConsumerGroup is the Redis consumer group name.
	ConsumerGroup = "cleanup_workers"

	// DefaultBatchSize is the max orphans read per iteration.
	DefaultBatchSize = 10

	// DefaultBlockTimeout is how long to block waiting for messages.
	DefaultBlockTimeout = 5 * time.Second
)

// Deleter deletes a remote image by its delete hash.
type Deleter interface {
	Delete(ctx context.Context, deleteHash string) error
}

// Worker drains the orphan stream, attempting the compensating remote
// delete with capped exponential backoff between attempts. Orphans whose
// delete keeps failing are moved to the dead-letter stream.
type Worker struct {
	redis        *redis.Client
	deleter      Deleter
	logger       *slog.Logger
	metrics      metrics.Recorder
	consumerID   string
	batchSize    int
	blockTimeout time.Duration
	maxAttempts  int

	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
}

// NewWorker creates a new cleanup worker.
func NewWorker(client *redis.Client, deleter Deleter, logger *slog.Logger, consumerID string, maxAttempts int, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Worker{
		redis:        client,
		deleter:      deleter,
		logger:       logger.With("component", "cleanup.worker", "consumer_id", consumerID),
		metrics:      recorder,
		consumerID:   consumerID,
		batchSize:    DefaultBatchSize,
		blockTimeout: DefaultBlockTimeout,
		maxAttempts:  maxAttempts,
	}
}

// Run starts the worker loop. Blocks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	if err := w.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	w.logger.Info("cleanup worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("cleanup worker stopping")
			return ctx.Err()
		default:
			if err := w.processOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("process error", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// Shutdown stops the worker and waits for the in-flight batch to finish.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ensureConsumerGroup creates the consumer group if it does not exist.
func (w *Worker) ensureConsumerGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !isBusyGroupErr(err) {
		return err
	}
	return nil
}

// processOnce reads and handles one batch from the stream.
func (w *Worker) processOnce(ctx context.Context) error {
	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(w.batchSize),
		Block:    w.blockTimeout,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil // no messages within block timeout
		}
		return fmt.Errorf("xreadgroup: %w", err)
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			w.handleMessage(ctx, msg)
		}
	}

	return nil
}

// handleMessage attempts the remote delete for one orphan. The original
// message is acked only once it is fully handled; when a retry or
// dead-letter requeue fails the message is left unacked so the orphan is
// not lost.
func (w *Worker) handleMessage(ctx context.Context, msg redis.XMessage) {
	raw, ok := msg.Values["payload"].(string)
	if !ok {
		w.logger.Error("malformed cleanup message", "message_id", msg.ID)
		w.ack(ctx, msg.ID)
		return
	}

	var payload OrphanPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		w.logger.Error("undecodable cleanup message", "message_id", msg.ID, "error", err)
		w.ack(ctx, msg.ID)
		return
	}

	// Not due yet. Pause before putting it back: a requeued message comes
	// straight back on the next read, so without the pause the loop spins
	// read/requeue/ack for the whole backoff window.
	if wait := time.Until(time.Unix(payload.NotBefore, 0)); wait > 0 {
		w.pause(ctx, min(wait, w.blockTimeout))
		w.requeueAndAck(ctx, msg.ID, StreamKey, payload)
		return
	}

	err := w.deleter.Delete(ctx, payload.DeleteHash)
	if err == nil {
		w.ack(ctx, msg.ID)
		w.metrics.IncOrphanResolved("deleted")
		w.logger.Info("orphaned remote image deleted",
			slog.String("image_hash", payload.ImageHash),
			slog.Int("attempts", payload.Attempts+1),
		)
		return
	}

	payload.Attempts++
	payload.FailureNote = err.Error()

	if IsExhausted(payload.Attempts, w.maxAttempts) {
		if !w.requeueAndAck(ctx, msg.ID, DeadLetterStreamKey, payload) {
			return
		}
		w.metrics.IncOrphanResolved("dropped")
		w.logger.Error("orphan cleanup exhausted, dead-lettered",
			slog.String("image_hash", payload.ImageHash),
			slog.Int("attempts", payload.Attempts),
			slog.String("error", err.Error()),
		)
		return
	}

	payload.NotBefore = time.Now().Add(NextRetryDelay(payload.Attempts - 1)).Unix()
	if !w.requeueAndAck(ctx, msg.ID, StreamKey, payload) {
		return
	}

	w.logger.Warn("orphan cleanup attempt failed, will retry",
		slog.String("image_hash", payload.ImageHash),
		slog.Int("attempts", payload.Attempts),
		slog.String("error", err.Error()),
	)
}

// requeueAndAck appends the payload to the given stream, then acks the
// original message. On a failed append the message stays pending instead.
func (w *Worker) requeueAndAck(ctx context.Context, msgID, stream string, payload OrphanPayload) bool {
	if err := w.requeue(ctx, stream, payload); err != nil {
		w.logger.Error("failed to requeue cleanup payload",
			"stream", stream,
			"message_id", msgID,
			"error", err,
		)
		return false
	}
	w.ack(ctx, msgID)
	return true
}

// requeue appends the payload to the given stream.
func (w *Worker) requeue(ctx context.Context, stream string, payload OrphanPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	err = w.redis.XAdd(ctx, &redis.XAddArgs{
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

// pause sleeps for up to d, returning early on context cancellation.
func (w *Worker) pause(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// ack acknowledges and deletes a processed message.
func (w *Worker) ack(ctx context.Context, id string) {
	if err := w.redis.XAck(ctx, StreamKey, ConsumerGroup, id).Err(); err != nil {
		w.logger.Error("failed to ack cleanup message", "message_id", id, "error", err)
		return
	}
	_ = w.redis.XDel(ctx, StreamKey, id).Err()
}

// isBusyGroupErr reports whether err means the consumer group already exists.
func isBusyGroupErr(err error) bool {
	return err != nil && err.Error() == "BUSYGROUP Consumer Group name already exists"
}
