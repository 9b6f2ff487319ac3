package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/radbridge/studyflow/internal/clients/redisq"
	"github.com/radbridge/studyflow/internal/ingest"
	"github.com/radbridge/studyflow/internal/logger"
)

type StudyHandler struct {
	log   *logger.Logger
	queue redisq.BatchQueue
}

func NewStudyHandler(log *logger.Logger, queue redisq.BatchQueue) *StudyHandler {
	return &StudyHandler{
		log:   log.With("handler", "StudyHandler"),
		queue: queue,
	}
}

// POST /api/studies
// Accepts one batch record (or a singleton list of one) and enqueues it
// for the pipeline workers. Per-batch processing is asynchronous; the
// response carries the batch id for correlation.
func (h *StudyHandler) Ingest(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		RespondError(c, http.StatusBadRequest, CodeMalformedBatch, err)
		return
	}

	batch, err := ingest.ParseBatch(raw)
	if err != nil {
		if errors.Is(err, ingest.ErrMalformedBatch) {
			h.log.Warn("malformed batch payload", "error", err)
		}
		RespondError(c, http.StatusBadRequest, CodeMalformedBatch, err)
		return
	}

	qb := redisq.QueuedBatch{
		ID:         uuid.New(),
		Batch:      batch,
		EnqueuedAt: time.Now().UTC(),
	}
	if err := h.queue.Enqueue(c.Request.Context(), qb); err != nil {
		h.log.Error("enqueue failed", "batch_id", qb.ID, "error", err)
		RespondError(c, http.StatusServiceUnavailable, CodeQueueUnavailable, err)
		return
	}

	RespondAccepted(c, gin.H{
		"batch_id":  qb.ID,
		"bucket":    batch.Bucket,
		"instances": len(batch.Instances),
	})
}

// GET /healthcheck
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
