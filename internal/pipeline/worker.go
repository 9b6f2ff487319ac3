package pipeline

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/radbridge/studyflow/internal/clients/redisq"
	"github.com/radbridge/studyflow/internal/logger"
)

const dequeueWait = 5 * time.Second

// Worker drains the batch queue. Each batch is processed by exactly one
// worker under its own deadline; a failed batch goes straight to the
// dead-letter list (single delivery, like the upstream queue it
// replaces).
type Worker struct {
	log          *logger.Logger
	queue        redisq.BatchQueue
	rejects      redisq.RejectSink
	service      *Service
	count        int
	batchTimeout time.Duration
}

func NewWorker(log *logger.Logger, queue redisq.BatchQueue, rejects redisq.RejectSink,
	service *Service, count int, batchTimeout time.Duration) *Worker {
	return &Worker{
		log:          log.With("service", "Worker"),
		queue:        queue,
		rejects:      rejects,
		service:      service,
		count:        count,
		batchTimeout: batchTimeout,
	}
}

// Run blocks until the context is cancelled and all workers drained.
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.count; i++ {
		id := i
		g.Go(func() error {
			return w.loop(ctx, id)
		})
	}
	return g.Wait()
}

func (w *Worker) loop(ctx context.Context, id int) error {
	log := w.log.With("worker", id)
	log.Info("worker started")
	for {
		if err := ctx.Err(); err != nil {
			log.Info("worker stopping")
			return nil
		}

		qb, err := w.queue.Dequeue(ctx, dequeueWait)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Info("worker stopping")
				return nil
			}
			log.Warn("dequeue failed", "error", err)
			continue
		}
		if qb == nil {
			continue
		}

		w.process(ctx, *qb)
	}
}

func (w *Worker) process(ctx context.Context, qb redisq.QueuedBatch) {
	batchCtx, cancel := context.WithTimeout(ctx, w.batchTimeout)
	defer cancel()

	res, err := w.service.ProcessBatch(batchCtx, qb)
	if err != nil {
		w.log.Error("batch failed", "batch_id", qb.ID, "error", err)
		if dlErr := w.rejects.DeadLetter(ctx, qb, err.Error()); dlErr != nil {
			w.log.Error("dead-letter push failed", "batch_id", qb.ID, "error", dlErr)
		}
		return
	}
	w.log.Info("batch processed", "batch_id", qb.ID,
		"status", res.StatusCode, "assembled", res.Assembled, "rejected", res.Rejected)
}
