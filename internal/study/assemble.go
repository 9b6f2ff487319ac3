package study

import (
	"context"

	"github.com/radbridge/studyflow/internal/logger"
)

// InstanceReader turns one storage reference into an Instance. The
// DICOM-backed implementation lives in internal/dicom; tests substitute
// fakes.
type InstanceReader interface {
	Read(ctx context.Context, bucket, key string) (*Instance, error)
}

// Assembler groups a batch of object keys into one Study.
type Assembler struct {
	log    *logger.Logger
	reader InstanceReader
}

func NewAssembler(log *logger.Logger, reader InstanceReader) *Assembler {
	return &Assembler{
		log:    log.With("service", "Assembler"),
		reader: reader,
	}
}

// Assemble reads keys sequentially in the given order. The first
// successfully read instance establishes the study identity and becomes
// the representative; instances with a different Study Instance UID are
// excluded and recorded as rejections. Read failures are likewise
// recorded and the batch continues. Assembly only stops early when the
// context is cancelled.
//
// Series descriptive metadata is later taken from whichever instance
// arrived first in each series. That mirrors the upstream feed's
// behavior and is deliberate; do not swap it for a voting scheme
// without changing the documented contract.
func (a *Assembler) Assemble(ctx context.Context, bucket string, keys []string) (*Study, error) {
	st := NewStudy(bucket)

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		inst, err := a.reader.Read(ctx, bucket, key)
		if err != nil {
			a.log.Warn("instance read failed", "bucket", bucket, "key", key, "error", err)
			st.Rejected = append(st.Rejected, Rejection{Key: key, Reason: err.Error()})
			continue
		}

		switch {
		case st.UID == "":
			st.UID = inst.StudyUID
			st.Representative = inst
			st.Add(inst)
			a.log.Info("study identity established", "study_uid", st.UID, "key", key)
		case st.UID == inst.StudyUID:
			st.Add(inst)
			a.log.Debug("instance added", "key", key, "series_uid", inst.SeriesUID)
		default:
			a.log.Error("instance belongs to a different study",
				"key", key, "study_uid", st.UID, "instance_study_uid", inst.StudyUID)
			st.Rejected = append(st.Rejected, Rejection{Key: key, Reason: ErrUIDMismatch.Error()})
		}
	}

	return st, nil
}
