package ingest

import (
	"errors"
	"testing"
)

func TestParseBatch(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    Batch
		wantErr bool
	}{
		{
			name: "single_object",
			raw:  `{"bucket":"ingest","instances":["a.dcm","b.dcm"]}`,
			want: Batch{Bucket: "ingest", Instances: []string{"a.dcm", "b.dcm"}},
		},
		{
			name: "singleton_list",
			raw:  `[{"bucket":"ingest","instances":["a.dcm"]}]`,
			want: Batch{Bucket: "ingest", Instances: []string{"a.dcm"}},
		},
		{
			name:    "empty_list",
			raw:     `[]`,
			wantErr: true,
		},
		{
			name:    "two_records",
			raw:     `[{"bucket":"x","instances":["a"]},{"bucket":"y","instances":["b"]}]`,
			wantErr: true,
		},
		{
			name:    "missing_bucket",
			raw:     `{"instances":["a.dcm"]}`,
			wantErr: true,
		},
		{
			name:    "no_instances",
			raw:     `{"bucket":"ingest","instances":[]}`,
			wantErr: true,
		},
		{
			name:    "empty_instance_key",
			raw:     `{"bucket":"ingest","instances":["a.dcm",""]}`,
			wantErr: true,
		},
		{
			name:    "scalar_body",
			raw:     `"not a batch"`,
			wantErr: true,
		},
		{
			name:    "not_json",
			raw:     `{{`,
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseBatch([]byte(tc.raw))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("ParseBatch(%s) succeeded, want error", tc.raw)
				}
				if !errors.Is(err, ErrMalformedBatch) {
					t.Fatalf("error = %v, want ErrMalformedBatch", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseBatch(%s): %v", tc.raw, err)
			}
			if got.Bucket != tc.want.Bucket {
				t.Fatalf("bucket = %q, want %q", got.Bucket, tc.want.Bucket)
			}
			if len(got.Instances) != len(tc.want.Instances) {
				t.Fatalf("instances = %v, want %v", got.Instances, tc.want.Instances)
			}
			for i := range got.Instances {
				if got.Instances[i] != tc.want.Instances[i] {
					t.Fatalf("instances = %v, want %v", got.Instances, tc.want.Instances)
				}
			}
		})
	}
}
