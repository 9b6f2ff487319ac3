package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedBatch reports a payload that is neither a batch record
// nor a singleton list of one.
var ErrMalformedBatch = errors.New("malformed batch payload")

// Batch is the canonical unit of work: one bucket and an ordered list
// of SOP instance object keys.
type Batch struct {
	Bucket    string   `json:"bucket"`
	Instances []string `json:"instances"`
}

// ParseBatch normalizes the two accepted payload shapes — a single
// batch object or a one-element array holding it — into one Batch.
// Every other shape is an explicit ErrMalformedBatch; nothing falls
// through silently.
func ParseBatch(raw []byte) (Batch, error) {
	var b Batch
	if err := json.Unmarshal(raw, &b); err == nil {
		return validate(b)
	}

	var list []Batch
	if err := json.Unmarshal(raw, &list); err != nil {
		return Batch{}, fmt.Errorf("%w: body is neither an object nor an array", ErrMalformedBatch)
	}
	if len(list) != 1 {
		return Batch{}, fmt.Errorf("%w: expected exactly one record, got %d", ErrMalformedBatch, len(list))
	}
	return validate(list[0])
}

func validate(b Batch) (Batch, error) {
	if b.Bucket == "" {
		return Batch{}, fmt.Errorf("%w: missing bucket", ErrMalformedBatch)
	}
	if len(b.Instances) == 0 {
		return Batch{}, fmt.Errorf("%w: no instance keys", ErrMalformedBatch)
	}
	for i, key := range b.Instances {
		if key == "" {
			return Batch{}, fmt.Errorf("%w: empty instance key at index %d", ErrMalformedBatch, i)
		}
	}
	return b, nil
}
