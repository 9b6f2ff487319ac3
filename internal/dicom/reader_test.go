package dicom

import (
	"strings"
	"testing"

	"github.com/gradienthealth/dicom/dicomtag"

	"github.com/radbridge/studyflow/internal/study"
)

func fullTags() study.TagMap {
	return study.TagMap{
		TagStudyInstanceUID:  "1.2.840.1.111",
		TagSeriesInstanceUID: "1.2.840.1.222",
		TagSOPInstanceUID:    "1.2.840.1.333",
		TagPatientID:         "pat-42",
		TagStudyDate:         "20240115",
		TagInstanceNumber:    "7",
		TagSeriesNumber:      "2",
		TagModality:          "MR",
	}
}

func TestBuildInstance(t *testing.T) {
	inst, err := BuildInstance(fullTags(), "ingest", "study/ser/img.dcm")
	if err != nil {
		t.Fatalf("BuildInstance: %v", err)
	}
	if inst.StudyUID != "1.2.840.1.111" || inst.SeriesUID != "1.2.840.1.222" {
		t.Fatalf("identity = %q/%q", inst.StudyUID, inst.SeriesUID)
	}
	if inst.InstanceNumber != 7 || inst.SeriesNumber != 2 {
		t.Fatalf("numbers = %d/%d, want 7/2", inst.InstanceNumber, inst.SeriesNumber)
	}
	if got := inst.StorageURI(); got != "gs://ingest/study/ser/img.dcm" {
		t.Fatalf("storage URI = %q", got)
	}
}

func TestBuildInstanceMissingMandatoryTag(t *testing.T) {
	for _, tag := range []string{
		TagStudyInstanceUID,
		TagSeriesInstanceUID,
		TagSOPInstanceUID,
		TagPatientID,
		TagStudyDate,
		TagInstanceNumber,
		TagSeriesNumber,
		TagModality,
	} {
		t.Run(tag, func(t *testing.T) {
			tags := fullTags()
			delete(tags, tag)
			if _, err := BuildInstance(tags, "ingest", "k"); err == nil {
				t.Fatalf("BuildInstance without %s succeeded", tag)
			}
		})
	}
}

func TestBuildInstanceNonIntegerNumber(t *testing.T) {
	tags := fullTags()
	tags[TagInstanceNumber] = "seven"
	_, err := BuildInstance(tags, "ingest", "k")
	if err == nil || !strings.Contains(err.Error(), "not an integer") {
		t.Fatalf("err = %v, want non-integer failure", err)
	}
}

func TestBuildInstanceTrimsWhitespace(t *testing.T) {
	// IS values are space-padded to even length on the wire.
	tags := fullTags()
	tags[TagInstanceNumber] = " 7 "
	inst, err := BuildInstance(tags, "ingest", "k")
	if err != nil {
		t.Fatalf("BuildInstance: %v", err)
	}
	if inst.InstanceNumber != 7 {
		t.Fatalf("instance number = %d, want 7", inst.InstanceNumber)
	}
}

func TestTagKey(t *testing.T) {
	got := TagKey(dicomtag.Tag{Group: 0x0020, Element: 0x000D})
	if got != "(0020,000D)" {
		t.Fatalf("TagKey = %q, want (0020,000D)", got)
	}
}

func TestDecodeHeaderGarbage(t *testing.T) {
	if _, err := DecodeHeader([]byte("definitely not dicom bytes")); err == nil {
		t.Fatal("DecodeHeader on garbage succeeded")
	}
}
