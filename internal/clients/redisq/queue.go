package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/radbridge/studyflow/internal/config"
	"github.com/radbridge/studyflow/internal/ingest"
	"github.com/radbridge/studyflow/internal/logger"
)

// QueuedBatch is the wire form of one delivery on the study queue.
type QueuedBatch struct {
	ID         uuid.UUID    `json:"id"`
	Batch      ingest.Batch `json:"batch"`
	EnqueuedAt time.Time    `json:"enqueued_at"`
}

// RejectMessage is the batched per-instance reject record: one message
// per batch, not one per key.
type RejectMessage struct {
	Bucket    string   `json:"bucket"`
	Instances []string `json:"instances"`
}

// BatchQueue is the delivery channel between the ingest API and the
// pipeline workers.
type BatchQueue interface {
	Enqueue(ctx context.Context, qb QueuedBatch) error
	// Dequeue blocks up to timeout; returns nil with no error when the
	// queue stayed empty.
	Dequeue(ctx context.Context, timeout time.Duration) (*QueuedBatch, error)
}

// RejectSink isolates bad inputs from the batch outcome: per-instance
// rejects on one list, failed batches on a dead-letter list.
type RejectSink interface {
	Reject(ctx context.Context, msg RejectMessage) error
	DeadLetter(ctx context.Context, qb QueuedBatch, reason string) error
}

type client struct {
	log        *logger.Logger
	rdb        *goredis.Client
	queueKey   string
	rejectKey  string
	deadLetter string
}

// New connects to Redis and returns both queue faces backed by one
// connection pool.
func New(cfg *config.Config, log *logger.Logger) (BatchQueue, RejectSink, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.RedisAddr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}

	c := &client{
		log:        log.With("service", "RedisQueue"),
		rdb:        rdb,
		queueKey:   cfg.QueueKey,
		rejectKey:  cfg.RejectKey,
		deadLetter: cfg.DeadLetterKey,
	}
	return c, c, nil
}

func (c *client) Enqueue(ctx context.Context, qb QueuedBatch) error {
	raw, err := json.Marshal(qb)
	if err != nil {
		return fmt.Errorf("encode batch %s: %w", qb.ID, err)
	}
	if err := c.rdb.LPush(ctx, c.queueKey, raw).Err(); err != nil {
		return fmt.Errorf("enqueue batch %s: %w", qb.ID, err)
	}
	c.log.Debug("batch enqueued", "batch_id", qb.ID, "bucket", qb.Batch.Bucket,
		"instances", len(qb.Batch.Instances))
	return nil
}

func (c *client) Dequeue(ctx context.Context, timeout time.Duration) (*QueuedBatch, error) {
	res, err := c.rdb.BRPop(ctx, timeout, c.queueKey).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("dequeue: %w", err)
	}
	// BRPop returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("dequeue: unexpected reply of %d elements", len(res))
	}
	var qb QueuedBatch
	if err := json.Unmarshal([]byte(res[1]), &qb); err != nil {
		return nil, fmt.Errorf("decode queued batch: %w", err)
	}
	return &qb, nil
}

func (c *client) Reject(ctx context.Context, msg RejectMessage) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode reject message: %w", err)
	}
	if err := c.rdb.LPush(ctx, c.rejectKey, raw).Err(); err != nil {
		return fmt.Errorf("push reject message: %w", err)
	}
	c.log.Info("instances rejected", "bucket", msg.Bucket, "keys", len(msg.Instances))
	return nil
}

func (c *client) DeadLetter(ctx context.Context, qb QueuedBatch, reason string) error {
	payload := struct {
		QueuedBatch
		Reason   string    `json:"reason"`
		FailedAt time.Time `json:"failed_at"`
	}{QueuedBatch: qb, Reason: reason, FailedAt: time.Now().UTC()}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode dead letter %s: %w", qb.ID, err)
	}
	if err := c.rdb.LPush(ctx, c.deadLetter, raw).Err(); err != nil {
		return fmt.Errorf("push dead letter %s: %w", qb.ID, err)
	}
	c.log.Warn("batch dead-lettered", "batch_id", qb.ID, "reason", reason)
	return nil
}
