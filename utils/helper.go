package utils

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func ProcessValidationErrors(err error) map[string]string {

	validationErrors := err.(validator.ValidationErrors)

	errorResponse := make(map[string]string)

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// returns slice removing duplicate elements
func UniqueSlice[T comparable](slice []T) []T {
	inResult := make(map[T]bool)
	var result []T
	for _, elm := range slice {
		if _, ok := inResult[elm]; !ok {
			// if not exists in map, append it, otherwise do nothing
			inResult[elm] = true
			result = append(result, elm)
		}
	}
	return result
}

// safely dereference pointer of type T, nil pointer return zero value or optional default
func DereferencePtr[T any](ptr *T, defaults ...T) T {
	var defaultValue T
	if len(defaults) > 0 {
		defaultValue = defaults[0]
	}
	if ptr == nil {
		return defaultValue
	}
	return *ptr
}

func NilIfEmpty[T comparable](ptr T) *T {
	var defaultZero T
	if ptr == defaultZero {
		return nil
	}
	return &ptr
}

// NullDecimalOrZero is the single reducer for optional effort figures.
// Every summation site that touches a nullable mandays column goes through
// here so the "null counts as zero" rule lives in exactly one place.
func NullDecimalOrZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}

	// Convert string to decimal
	dec, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}

	return dec, nil
}

// TruncateToDay drops the time-of-day component; week bucket keys compare
// on the calendar day only.
func TruncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// WeekKey is the canonical string form of a week-start date used as a
// grouping key (date only, ISO layout).
func WeekKey(t time.Time) string {
	return TruncateToDay(t).Format("2006-01-02")
}

// MergeStringSlices merges two string slices and removes duplicates
func MergeStringSlices(slice1, slice2 []string) []string {
	elementMap := make(map[string]bool)
	mergedSlice := []string{}

	for _, elem := range slice1 {
		if !elementMap[elem] {
			elementMap[elem] = true
			mergedSlice = append(mergedSlice, elem)
		}
	}
	for _, elem := range slice2 {
		if !elementMap[elem] {
			elementMap[elem] = true
			mergedSlice = append(mergedSlice, elem)
		}
	}

	return mergedSlice
}

// IntersectStringSlices keeps the elements of slice1 that also appear in
// slice2, preserving slice1 order.
func IntersectStringSlices(slice1, slice2 []string) []string {
	allowed := make(map[string]bool, len(slice2))
	for _, elem := range slice2 {
		allowed[elem] = true
	}
	result := []string{}
	for _, elem := range slice1 {
		if allowed[elem] {
			result = append(result, elem)
		}
	}
	return result
}
