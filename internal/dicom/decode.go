package dicom

import (
	"bytes"
	"fmt"

	gdicom "github.com/gradienthealth/dicom"
	"github.com/gradienthealth/dicom/dicomtag"

	"github.com/radbridge/studyflow/internal/study"
)

// Tags the pipeline extracts, keyed the way the field mapping spec
// addresses them.
const (
	TagStudyInstanceUID  = "(0020,000D)"
	TagSeriesInstanceUID = "(0020,000E)"
	TagSOPInstanceUID    = "(0008,0018)"
	TagPatientID         = "(0010,0020)"
	TagStudyDate         = "(0008,0020)"
	TagInstanceNumber    = "(0020,0013)"
	TagSeriesNumber      = "(0020,0011)"
	TagModality          = "(0008,0060)"
	TagBodyPartExamined  = "(0018,0015)"
	TagSeriesDescription = "(0008,103E)"
)

// DecodeHeader parses a DICOM byte prefix into a tag map. The input is
// a bounded range read, so the stream usually breaks off inside the
// pixel data; whatever decoded before the break is kept as long as
// anything decoded at all.
func DecodeHeader(data []byte) (study.TagMap, error) {
	p, err := gdicom.NewParser(bytes.NewReader(data), int64(len(data)), nil)
	if err != nil {
		return nil, fmt.Errorf("dicom parser: %w", err)
	}

	ds, _ := p.Parse(gdicom.ParseOptions{DropPixelData: true})
	if ds == nil || len(ds.Elements) == 0 {
		return nil, fmt.Errorf("no DICOM elements decoded from %d bytes", len(data))
	}

	tags := make(study.TagMap, len(ds.Elements))
	for _, elem := range ds.Elements {
		key := TagKey(elem.Tag)
		if v := elementString(elem); v != "" {
			tags[key] = v
		}
	}
	return tags, nil
}

// TagKey renders a tag as "(GGGG,EEEE)".
func TagKey(t dicomtag.Tag) string {
	return fmt.Sprintf("(%04X,%04X)", t.Group, t.Element)
}

func elementString(elem *gdicom.Element) string {
	if len(elem.Value) == 0 {
		return ""
	}
	switch v := elem.Value[0].(type) {
	case string:
		return v
	case int:
		return fmt.Sprintf("%d", v)
	case uint16:
		return fmt.Sprintf("%d", v)
	case uint32:
		return fmt.Sprintf("%d", v)
	default:
		return ""
	}
}
