package fhir

import (
	"fmt"

	"github.com/radbridge/studyflow/internal/logger"
	"github.com/radbridge/studyflow/internal/study"
)

// TransformStep is one whole-study computation applied after mapping.
// Steps run in registration order; each sees the document as mutated by
// the previous step.
type TransformStep struct {
	Name  string
	Apply func(doc map[string]any, st *study.Study) error
}

// Finalizer applies the post-assembly transforms that need the fully
// assembled study.
type Finalizer struct {
	log   *logger.Logger
	steps []TransformStep
}

func NewFinalizer(log *logger.Logger) *Finalizer {
	f := &Finalizer{log: log.With("service", "Finalizer")}
	f.steps = []TransformStep{
		{Name: "total-instance-count", Apply: totalInstanceCount},
	}
	return f
}

// Register appends a transform step. Existing steps keep their order
// and their outputs.
func (f *Finalizer) Register(step TransformStep) {
	f.steps = append(f.steps, step)
}

func (f *Finalizer) Finalize(doc map[string]any, st *study.Study) (map[string]any, error) {
	for _, step := range f.steps {
		if err := step.Apply(doc, st); err != nil {
			return nil, fmt.Errorf("finalize step %s: %w", step.Name, err)
		}
		f.log.Debug("finalize step applied", "step", step.Name)
	}
	return doc, nil
}

// totalInstanceCount writes the sum of instance counts across all
// series, but only when the template declared the field.
func totalInstanceCount(doc map[string]any, st *study.Study) error {
	if _, ok := doc["numberOfInstances"]; !ok {
		return nil
	}
	doc["numberOfInstances"] = st.TotalInstances()
	return nil
}
