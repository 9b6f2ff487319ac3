package fhir

import (
	"encoding/json"
	"errors"
	"testing"
)

func sampleDoc() map[string]any {
	return map[string]any{
		"resourceType": "ImagingStudy",
		"identifier": []any{
			map[string]any{"system": "urn:dicom:uid", "value": ""},
		},
		"subject": map[string]any{"reference": ""},
		"started": "",
	}
}

func TestSetAtPath(t *testing.T) {
	doc := sampleDoc()
	if err := SetAtPath(doc, Path{"identifier", 0, "value"}, "urn:oid:1.2.3"); err != nil {
		t.Fatalf("SetAtPath: %v", err)
	}
	got := doc["identifier"].([]any)[0].(map[string]any)["value"]
	if got != "urn:oid:1.2.3" {
		t.Fatalf("value = %v", got)
	}
}

func TestSetAtPathFailures(t *testing.T) {
	cases := []struct {
		name string
		path Path
	}{
		{"missing_key", Path{"nope"}},
		{"missing_intermediate", Path{"patient", "reference"}},
		{"index_out_of_range", Path{"identifier", 3, "value"}},
		{"index_into_object", Path{"subject", 0}},
		{"key_into_array", Path{"identifier", "value"}},
		{"descend_into_scalar", Path{"started", "x"}},
		{"empty_path", Path{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := sampleDoc()
			err := SetAtPath(doc, tc.path, "v")
			if !errors.Is(err, ErrPathNotFound) {
				t.Fatalf("err = %v, want ErrPathNotFound", err)
			}
		})
	}
}

func TestSetAtPathNeverCreatesStructure(t *testing.T) {
	doc := sampleDoc()
	before, _ := json.Marshal(doc)
	_ = SetAtPath(doc, Path{"a", "b", "c"}, "v")
	after, _ := json.Marshal(doc)
	if string(before) != string(after) {
		t.Fatalf("document mutated on failed set:\n%s\n%s", before, after)
	}
}

func TestPathUnmarshal(t *testing.T) {
	var p Path
	if err := json.Unmarshal([]byte(`["identifier", 0, "value"]`), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(p) != 3 {
		t.Fatalf("len = %d", len(p))
	}
	if p[1] != 0 {
		t.Fatalf("index segment = %v (%T), want int 0", p[1], p[1])
	}

	if err := json.Unmarshal([]byte(`["a", 1.5]`), &p); err == nil {
		t.Fatal("fractional index accepted")
	}
	if err := json.Unmarshal([]byte(`["a", true]`), &p); err == nil {
		t.Fatal("bool segment accepted")
	}
}

func TestGetAtPath(t *testing.T) {
	doc := sampleDoc()
	v, err := GetAtPath(doc, Path{"identifier", 0, "system"})
	if err != nil {
		t.Fatalf("GetAtPath: %v", err)
	}
	if v != "urn:dicom:uid" {
		t.Fatalf("value = %v", v)
	}
	if _, err := GetAtPath(doc, Path{"identifier", 9}); !errors.Is(err, ErrPathNotFound) {
		t.Fatalf("err = %v, want ErrPathNotFound", err)
	}
}
