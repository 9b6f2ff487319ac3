package dicom

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/radbridge/studyflow/internal/clients/gcs"
	"github.com/radbridge/studyflow/internal/logger"
	"github.com/radbridge/studyflow/internal/study"
)

// Reader is the object-store-backed study.InstanceReader: it fetches a
// bounded prefix of a SOP instance and projects the tags the pipeline
// needs.
type Reader struct {
	log      *logger.Logger
	store    gcs.ObjectStore
	maxBytes int64
}

func NewReader(log *logger.Logger, store gcs.ObjectStore, maxBytes int64) *Reader {
	return &Reader{
		log:      log.With("service", "InstanceReader"),
		store:    store,
		maxBytes: maxBytes,
	}
}

// Read fetches and decodes one SOP instance. All identity fields are
// mandatory: a decode failure or a missing tag rejects the whole
// instance rather than producing a partial one.
func (r *Reader) Read(ctx context.Context, bucket, key string) (*study.Instance, error) {
	data, err := r.store.FetchPrefix(ctx, bucket, key, r.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("fetch instance: %w", err)
	}

	tags, err := DecodeHeader(data)
	if err != nil {
		return nil, fmt.Errorf("decode instance %s: %w", key, err)
	}

	return BuildInstance(tags, bucket, key)
}

// BuildInstance validates the mandatory tags and assembles the
// immutable Instance. Split out from Read so it can be exercised
// without DICOM fixtures.
func BuildInstance(tags study.TagMap, bucket, key string) (*study.Instance, error) {
	inst := &study.Instance{
		Tags:   tags,
		Bucket: bucket,
		Key:    key,
	}

	var err error
	if inst.StudyUID, err = requireTag(tags, TagStudyInstanceUID); err != nil {
		return nil, err
	}
	if inst.SeriesUID, err = requireTag(tags, TagSeriesInstanceUID); err != nil {
		return nil, err
	}
	if inst.InstanceUID, err = requireTag(tags, TagSOPInstanceUID); err != nil {
		return nil, err
	}
	if inst.PatientID, err = requireTag(tags, TagPatientID); err != nil {
		return nil, err
	}
	if inst.StudyDate, err = requireTag(tags, TagStudyDate); err != nil {
		return nil, err
	}
	if inst.Modality, err = requireTag(tags, TagModality); err != nil {
		return nil, err
	}
	if inst.InstanceNumber, err = requireIntTag(tags, TagInstanceNumber); err != nil {
		return nil, err
	}
	if inst.SeriesNumber, err = requireIntTag(tags, TagSeriesNumber); err != nil {
		return nil, err
	}

	return inst, nil
}

func requireTag(tags study.TagMap, tag string) (string, error) {
	v, ok := tags.Get(tag)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("missing mandatory tag %s", tag)
	}
	return strings.TrimSpace(v), nil
}

func requireIntTag(tags study.TagMap, tag string) (int, error) {
	v, err := requireTag(tags, tag)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("tag %s is not an integer: %q", tag, v)
	}
	return n, nil
}
