package fhir

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrPathNotFound reports a template location that does not resolve to
// existing structure. Mapping never creates structure; the template
// must already contain every addressed container and leaf.
var ErrPathNotFound = errors.New("template location does not exist")

// Path addresses a nested location in a decoded JSON document: string
// segments index objects, int segments index arrays.
type Path []any

func (p *Path) UnmarshalJSON(raw []byte) error {
	var segs []any
	if err := json.Unmarshal(raw, &segs); err != nil {
		return err
	}
	out := make(Path, 0, len(segs))
	for i, seg := range segs {
		switch v := seg.(type) {
		case string:
			out = append(out, v)
		case float64:
			if v != float64(int(v)) {
				return fmt.Errorf("path segment %d: %v is not an array index", i, v)
			}
			out = append(out, int(v))
		default:
			return fmt.Errorf("path segment %d: unsupported type %T", i, seg)
		}
	}
	*p = out
	return nil
}

func (p Path) String() string {
	s := ""
	for _, seg := range p {
		switch v := seg.(type) {
		case string:
			s += "." + v
		case int:
			s += fmt.Sprintf("[%d]", v)
		}
	}
	if s == "" {
		return "."
	}
	return s
}

// SetAtPath overwrites the value at path inside doc. Every segment,
// including the last, must already resolve; a missing key, an
// out-of-range index, or a scalar where a container is expected yields
// ErrPathNotFound.
func SetAtPath(doc map[string]any, path Path, val any) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: empty path", ErrPathNotFound)
	}

	var cur any = doc
	for _, seg := range path[:len(path)-1] {
		next, err := descend(cur, seg)
		if err != nil {
			return fmt.Errorf("at %s: %w", path, err)
		}
		cur = next
	}

	last := path[len(path)-1]
	switch container := cur.(type) {
	case map[string]any:
		key, ok := last.(string)
		if !ok {
			return fmt.Errorf("at %s: %w: object indexed with %v", path, ErrPathNotFound, last)
		}
		if _, exists := container[key]; !exists {
			return fmt.Errorf("at %s: %w: missing key %q", path, ErrPathNotFound, key)
		}
		container[key] = val
	case []any:
		idx, ok := last.(int)
		if !ok {
			return fmt.Errorf("at %s: %w: array indexed with %v", path, ErrPathNotFound, last)
		}
		if idx < 0 || idx >= len(container) {
			return fmt.Errorf("at %s: %w: index %d out of range", path, ErrPathNotFound, idx)
		}
		container[idx] = val
	default:
		return fmt.Errorf("at %s: %w: cannot index into %T", path, ErrPathNotFound, cur)
	}
	return nil
}

// GetAtPath resolves the value at path, with the same strictness as
// SetAtPath.
func GetAtPath(doc map[string]any, path Path) (any, error) {
	var cur any = doc
	for _, seg := range path {
		next, err := descend(cur, seg)
		if err != nil {
			return nil, fmt.Errorf("at %s: %w", path, err)
		}
		cur = next
	}
	return cur, nil
}

func descend(cur any, seg any) (any, error) {
	switch container := cur.(type) {
	case map[string]any:
		key, ok := seg.(string)
		if !ok {
			return nil, fmt.Errorf("%w: object indexed with %v", ErrPathNotFound, seg)
		}
		next, exists := container[key]
		if !exists {
			return nil, fmt.Errorf("%w: missing key %q", ErrPathNotFound, key)
		}
		return next, nil
	case []any:
		idx, ok := seg.(int)
		if !ok {
			return nil, fmt.Errorf("%w: array indexed with %v", ErrPathNotFound, seg)
		}
		if idx < 0 || idx >= len(container) {
			return nil, fmt.Errorf("%w: index %d out of range", ErrPathNotFound, idx)
		}
		return container[idx], nil
	default:
		return nil, fmt.Errorf("%w: cannot index into %T", ErrPathNotFound, cur)
	}
}
