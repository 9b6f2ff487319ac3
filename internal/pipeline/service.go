package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/radbridge/studyflow/internal/clients/redisq"
	"github.com/radbridge/studyflow/internal/fhir"
	"github.com/radbridge/studyflow/internal/logger"
	"github.com/radbridge/studyflow/internal/study"
)

// TemplateLoader yields the template and field mapping spec for a
// batch. *fhir.TemplateSource is the production implementation.
type TemplateLoader interface {
	Load(ctx context.Context) (map[string]any, *fhir.FieldSpec, error)
}

// Result is the outcome of one fully processed batch.
type Result struct {
	BatchID    uuid.UUID
	StatusCode int
	Body       string
	Assembled  int
	Rejected   int
}

// Service runs the assembly pipeline for one batch at a time. Each
// batch owns its Study exclusively; concurrent batches run in separate
// Service invocations with no shared mutable state.
type Service struct {
	log       *logger.Logger
	assembler *study.Assembler
	templates TemplateLoader
	mapper    *fhir.Mapper
	finalizer *fhir.Finalizer
	submitter fhir.Submitter
	rejects   redisq.RejectSink
}

func NewService(
	log *logger.Logger,
	assembler *study.Assembler,
	templates TemplateLoader,
	mapper *fhir.Mapper,
	finalizer *fhir.Finalizer,
	submitter fhir.Submitter,
	rejects redisq.RejectSink,
) *Service {
	return &Service{
		log:       log.With("service", "Pipeline"),
		assembler: assembler,
		templates: templates,
		mapper:    mapper,
		finalizer: finalizer,
		submitter: submitter,
		rejects:   rejects,
	}
}

// ProcessBatch runs assemble → reject forwarding → map → finalize →
// submit. Per-instance failures are absorbed into the reject channel;
// an empty study, a template load failure, or a submission transport
// failure fails the batch as a unit and nothing is submitted.
func (s *Service) ProcessBatch(ctx context.Context, qb redisq.QueuedBatch) (Result, error) {
	log := s.log.With("batch_id", qb.ID, "bucket", qb.Batch.Bucket)
	log.Info("processing batch", "instances", len(qb.Batch.Instances))

	st, err := s.assembler.Assemble(ctx, qb.Batch.Bucket, qb.Batch.Instances)
	if err != nil {
		return Result{BatchID: qb.ID}, fmt.Errorf("assemble: %w", err)
	}

	if len(st.Rejected) > 0 {
		keys := make([]string, 0, len(st.Rejected))
		for _, r := range st.Rejected {
			keys = append(keys, r.Key)
		}
		// One batched message per batch. A reject push failure is logged
		// but does not change the batch outcome.
		if err := s.rejects.Reject(ctx, redisq.RejectMessage{
			Bucket:    qb.Batch.Bucket,
			Instances: keys,
		}); err != nil {
			log.Warn("reject forwarding failed", "error", err)
		}
	}

	if st.Empty() {
		return Result{BatchID: qb.ID, Rejected: len(st.Rejected)},
			fmt.Errorf("batch %s: %w", qb.ID, study.ErrEmptyStudy)
	}

	tmpl, spec, err := s.templates.Load(ctx)
	if err != nil {
		return Result{BatchID: qb.ID}, fmt.Errorf("load template: %w", err)
	}

	draft, err := s.mapper.Map(st, tmpl, spec)
	if err != nil {
		return Result{BatchID: qb.ID}, fmt.Errorf("map study %s: %w", st.UID, err)
	}

	doc, err := s.finalizer.Finalize(draft, st)
	if err != nil {
		return Result{BatchID: qb.ID}, fmt.Errorf("finalize study %s: %w", st.UID, err)
	}

	if err := ctx.Err(); err != nil {
		// Cancelled batches are discarded, never submitted.
		return Result{BatchID: qb.ID}, err
	}

	res, err := s.submitter.Submit(ctx, doc)
	if err != nil {
		return Result{BatchID: qb.ID}, fmt.Errorf("submit study %s: %w", st.UID, err)
	}

	log.Info("batch complete", "study_uid", st.UID, "status", res.StatusCode,
		"assembled", st.TotalInstances(), "rejected", len(st.Rejected))
	return Result{
		BatchID:    qb.ID,
		StatusCode: res.StatusCode,
		Body:       res.Body,
		Assembled:  st.TotalInstances(),
		Rejected:   len(st.Rejected),
	}, nil
}
