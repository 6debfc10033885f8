package portal

import (
	"sort"
	"strings"
)

// Envelope is the JSON API response body. Data is present on success;
// Errors lists every problem otherwise.
type Envelope[T any] struct {
	Data   T            `json:"data"`
	Errors []FieldError `json:"errors,omitempty"`
}

// FieldError is a single API error. Path locates the offending input field,
// e.g. ["input", "office", "id"].
type FieldError struct {
	Message string   `json:"message"`
	Path    []string `json:"path,omitempty"`
}

// DeletedID is returned by delete mutations.
type DeletedID struct {
	ID int64 `json:"id"`
}

// FieldErrors flattens a validation error into API errors ordered by field.
func (e *ValidationError) FieldErrors() []FieldError {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]FieldError, 0, len(keys))
	for _, k := range keys {
		out = append(out, FieldError{
			Message: k + " " + e.Fields[k],
			Path:    append([]string{"input"}, strings.Split(k, ".")...),
		})
	}
	return out
}

// ValidationErrorFrom rebuilds a ValidationError from API errors carrying an
// input path. It returns nil when none do.
func ValidationErrorFrom(errs []FieldError) *ValidationError {
	fields := map[string]string{}
	for _, fe := range errs {
		if len(fe.Path) < 2 || fe.Path[0] != "input" {
			continue
		}
		key := strings.Join(fe.Path[1:], ".")
		fields[key] = strings.TrimSpace(strings.TrimPrefix(fe.Message, key))
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
