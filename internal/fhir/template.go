package fhir

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/radbridge/studyflow/internal/clients/gcs"
	"github.com/radbridge/studyflow/internal/config"
	"github.com/radbridge/studyflow/internal/logger"
)

// FieldMapping is one declarative rule: take Tag from the study's
// representative instance, optionally prepend Prefix, write the result
// at Location inside the template.
type FieldMapping struct {
	Name     string `json:"name"`
	Tag      string `json:"tag"`
	Location Path   `json:"location"`
	Prefix   string `json:"prefix,omitempty"`
}

// FieldSpec is the full mapping specification loaded alongside the
// template.
type FieldSpec struct {
	Fields []FieldMapping `json:"fields"`
}

// ParseFieldSpec decodes and sanity-checks a mapping specification.
func ParseFieldSpec(raw []byte) (*FieldSpec, error) {
	var spec FieldSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("parse field mapping spec: %w", err)
	}
	for i, f := range spec.Fields {
		if f.Tag == "" {
			return nil, fmt.Errorf("field mapping %d (%s): missing tag", i, f.Name)
		}
		if len(f.Location) == 0 {
			return nil, fmt.Errorf("field mapping %d (%s): missing location", i, f.Name)
		}
	}
	return &spec, nil
}

// ParseTemplate decodes the document template skeleton.
func ParseTemplate(raw []byte) (map[string]any, error) {
	var tmpl map[string]any
	if err := json.Unmarshal(raw, &tmpl); err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}
	return tmpl, nil
}

// TemplateSource fetches the template and mapping spec from the
// template bucket, once per batch.
type TemplateSource struct {
	log     *logger.Logger
	store   gcs.ObjectStore
	bucket  string
	tmplKey string
	specKey string
}

func NewTemplateSource(cfg *config.Config, log *logger.Logger, store gcs.ObjectStore) *TemplateSource {
	return &TemplateSource{
		log:     log.With("service", "TemplateSource"),
		store:   store,
		bucket:  cfg.TemplateBucket,
		tmplKey: cfg.TemplateKey,
		specKey: cfg.TemplateMapKey,
	}
}

func (ts *TemplateSource) Load(ctx context.Context) (map[string]any, *FieldSpec, error) {
	rawTmpl, err := ts.store.FetchAll(ctx, ts.bucket, ts.tmplKey)
	if err != nil {
		return nil, nil, fmt.Errorf("load template: %w", err)
	}
	tmpl, err := ParseTemplate(rawTmpl)
	if err != nil {
		return nil, nil, err
	}

	rawSpec, err := ts.store.FetchAll(ctx, ts.bucket, ts.specKey)
	if err != nil {
		return nil, nil, fmt.Errorf("load field mapping spec: %w", err)
	}
	spec, err := ParseFieldSpec(rawSpec)
	if err != nil {
		return nil, nil, err
	}

	ts.log.Debug("template loaded", "bucket", ts.bucket,
		"template_key", ts.tmplKey, "fields", len(spec.Fields))
	return tmpl, spec, nil
}
