package fhir

import (
	"strings"
	"testing"
)

func TestParseFieldSpec(t *testing.T) {
	raw := `{"fields":[
		{"name":"study_uid","tag":"(0020,000D)","location":["identifier",0,"value"],"prefix":"urn:oid:"},
		{"name":"patient","tag":"(0010,0020)","location":["subject","reference"]}
	]}`
	spec, err := ParseFieldSpec([]byte(raw))
	if err != nil {
		t.Fatalf("ParseFieldSpec: %v", err)
	}
	if len(spec.Fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(spec.Fields))
	}
	if spec.Fields[0].Prefix != "urn:oid:" {
		t.Fatalf("prefix = %q", spec.Fields[0].Prefix)
	}
	if got := spec.Fields[1].Location.String(); got != ".subject.reference" {
		t.Fatalf("location = %q", got)
	}
}

func TestParseFieldSpecInvalid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"missing_tag", `{"fields":[{"name":"x","location":["id"]}]}`, "missing tag"},
		{"missing_location", `{"fields":[{"name":"x","tag":"(0020,000D)"}]}`, "missing location"},
		{"bad_segment", `{"fields":[{"tag":"(0020,000D)","location":[true]}]}`, ""},
		{"not_json", `fields:`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseFieldSpec([]byte(tc.raw))
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.want != "" && !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error = %v, want substring %q", err, tc.want)
			}
		})
	}
}

func TestParseTemplate(t *testing.T) {
	tmpl, err := ParseTemplate([]byte(`{"resourceType":"ImagingStudy","status":"available"}`))
	if err != nil {
		t.Fatalf("ParseTemplate: %v", err)
	}
	if tmpl["resourceType"] != "ImagingStudy" {
		t.Fatalf("resourceType = %v", tmpl["resourceType"])
	}

	if _, err := ParseTemplate([]byte(`[]`)); err == nil {
		t.Fatal("expected error for non-object template")
	}
}
