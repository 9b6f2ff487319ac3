package study

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyStudy is returned when a batch produced zero readable
	// instances. There is nothing to map or submit.
	ErrEmptyStudy = errors.New("study has no assembled instances")

	// ErrUIDMismatch marks an instance whose Study Instance UID differs
	// from the identity the batch already established.
	ErrUIDMismatch = errors.New("study UID mismatch")
)

// TagMap holds the decoded DICOM header keyed by "(GGGG,EEEE)".
type TagMap map[string]string

// Get returns the value for a tag like "(0020,000D)".
func (m TagMap) Get(tag string) (string, bool) {
	v, ok := m[tag]
	return v, ok
}

// Instance is the metadata projection of one SOP instance. It is
// immutable once built and owned by exactly one Study (or discarded to
// rejection).
type Instance struct {
	StudyUID       string
	SeriesUID      string
	InstanceUID    string
	PatientID      string
	StudyDate      string
	InstanceNumber int
	SeriesNumber   int
	Modality       string

	Tags TagMap

	Bucket string
	Key    string
}

// StorageURI is the reference written into the output document for this
// instance's object.
func (i *Instance) StorageURI() string {
	return fmt.Sprintf("gs://%s/%s", i.Bucket, i.Key)
}

// Rejection records one instance key that was excluded from the study.
type Rejection struct {
	Key    string
	Reason string
}

// Study is the unit of assembly: every instance it holds shares one
// Study Instance UID. Series and instance order both follow first-seen
// arrival order, which downstream mapping depends on.
type Study struct {
	UID    string
	Bucket string

	// Representative is the first successfully read instance; study
	// level template lookups are resolved against its tag map.
	Representative *Instance

	series      map[string][]*Instance
	seriesOrder []string

	Rejected []Rejection
}

func NewStudy(bucket string) *Study {
	return &Study{
		Bucket: bucket,
		series: make(map[string][]*Instance),
	}
}

// Add appends the instance to its series, creating the series on first
// sight. Identity checks are the assembler's job; Add assumes they
// passed.
func (s *Study) Add(inst *Instance) {
	if _, ok := s.series[inst.SeriesUID]; !ok {
		s.seriesOrder = append(s.seriesOrder, inst.SeriesUID)
	}
	s.series[inst.SeriesUID] = append(s.series[inst.SeriesUID], inst)
}

// SeriesOrder returns series UIDs in first-seen order.
func (s *Study) SeriesOrder() []string {
	return s.seriesOrder
}

// Series returns the instances of one series in arrival order.
func (s *Study) Series(uid string) []*Instance {
	return s.series[uid]
}

// SeriesCount returns the number of distinct series.
func (s *Study) SeriesCount() int {
	return len(s.seriesOrder)
}

// TotalInstances sums instance counts across all series.
func (s *Study) TotalInstances() int {
	n := 0
	for _, insts := range s.series {
		n += len(insts)
	}
	return n
}

// Empty reports whether no instance made it into the study.
func (s *Study) Empty() bool {
	return len(s.seriesOrder) == 0
}
