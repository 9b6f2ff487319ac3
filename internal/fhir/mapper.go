package fhir

import (
	"encoding/json"
	"fmt"

	"github.com/radbridge/studyflow/internal/logger"
	"github.com/radbridge/studyflow/internal/study"
)

// Coding systems written into the series fragments.
const (
	sopClassSystem  = "urn:ietf:rfc:3986"
	sopClassDefault = "urn:oid:1.2.840.10008.5.1.4.1.1.2"
	modalitySystem   = "http://dicom.nema.org/resources/ontology/DCM"
	bodySiteSystem   = "http://snomed.info/sct"
	storageExtension = "http://studyflow.radbridge.io/storage-uri"
	seriesKey        = "series"
)

// Mapper projects an assembled study through the field mapping spec
// into a copy of the document template.
type Mapper struct {
	log *logger.Logger
}

func NewMapper(log *logger.Logger) *Mapper {
	return &Mapper{log: log.With("service", "Mapper")}
}

// Map produces the draft document: a deep copy of the template with all
// series fragments attached under the template's series element and
// every resolvable spec field written in place. Fields whose source tag
// is absent on the representative instance are skipped individually;
// the rest of the mapping continues. An empty study cannot be mapped.
func (m *Mapper) Map(st *study.Study, tmpl map[string]any, spec *FieldSpec) (map[string]any, error) {
	if st == nil || st.Empty() || st.Representative == nil {
		return nil, study.ErrEmptyStudy
	}

	doc, err := deepCopy(tmpl)
	if err != nil {
		return nil, fmt.Errorf("copy template: %w", err)
	}

	for _, f := range spec.Fields {
		value, ok := st.Representative.Tags.Get(f.Tag)
		if !ok {
			m.log.Error("source tag absent on representative instance",
				"field", f.Name, "tag", f.Tag, "study_uid", st.UID)
			continue
		}
		if f.Prefix != "" {
			value = f.Prefix + value
		}
		if err := SetAtPath(doc, f.Location, value); err != nil {
			m.log.Error("failed to write field into template",
				"field", f.Name, "location", f.Location.String(), "error", err)
			continue
		}
	}

	doc[seriesKey] = m.seriesFragments(st)
	return doc, nil
}

// seriesFragments renders every series in first-seen order. Series
// level descriptive fields come from the first instance that arrived in
// the series; later instances contribute only to the instance list.
func (m *Mapper) seriesFragments(st *study.Study) []any {
	out := make([]any, 0, st.SeriesCount())
	for _, seriesUID := range st.SeriesOrder() {
		insts := st.Series(seriesUID)
		first := insts[0]

		bodySite, _ := first.Tags.Get("(0018,0015)")
		description, _ := first.Tags.Get("(0008,103E)")

		fragment := map[string]any{
			"uid":    seriesUID,
			"number": first.SeriesNumber,
			"modality": map[string]any{
				"system": modalitySystem,
				"code":   first.Modality,
			},
			"description":       description,
			"numberOfInstances": len(insts),
			"bodySite": map[string]any{
				"system":  bodySiteSystem,
				"code":    bodySite,
				"display": "Body structure",
			},
			"instance": m.instanceFragments(insts),
		}
		out = append(out, fragment)
	}
	return out
}

func (m *Mapper) instanceFragments(insts []*study.Instance) []any {
	out := make([]any, 0, len(insts))
	for _, inst := range insts {
		out = append(out, map[string]any{
			"uid": inst.InstanceUID,
			"sopClass": map[string]any{
				"system": sopClassSystem,
				"code":   sopClassDefault,
			},
			"number": inst.InstanceNumber,
			"extension": []any{
				map[string]any{
					"url":      storageExtension,
					"valueUri": inst.StorageURI(),
				},
			},
		})
	}
	return out
}

func deepCopy(doc map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
