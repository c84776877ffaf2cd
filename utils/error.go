package utils

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrorUnauthorized means the request carries no usable caller identity.
var ErrorUnauthorized = errors.New("unauthorized")

// ErrorForbidden means the caller is known but lacks the required project role.
var ErrorForbidden = errors.New("forbidden")

// ErrorRateNotFound means no standard rate exists for a (region, designation)
// pair. Costing treats this as fatal for the whole calculation: a silently
// skipped resource would misstate the totals.
var ErrorRateNotFound = errors.New("standard rate not found")

// ErrorTransientStorage is surfaced only after the transient retry budget is
// exhausted (see WithTransientRetry).
var ErrorTransientStorage = errors.New("transient storage error")

// ValidationError carries field-level detail for malformed requests.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, tag := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, tag))
	}
	sort.Strings(parts)
	return "validation failed: " + strings.Join(parts, ", ")
}

func NewValidationError(field string, tag string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: tag}}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
