package utils

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"
)

const transientRetryAttempts = 3

// IsTransientError reports whether err looks like a flaky-storage failure
// worth retrying. The underlying queries are pure reads, so a retry can
// never change the result.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"invalid connection",
		"bad connection",
		"connection refused",
		"connection reset",
		"broken pipe",
		"too many connections",
		"try restarting transaction", // MySQL 1213 deadlock
		"lock wait timeout",          // MySQL 1205
		"i/o timeout",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// WithTransientRetry runs fn up to three times with short exponential
// backoff. Non-transient errors return immediately; an exhausted budget is
// reported as ErrorTransientStorage so callers can map it in one place.
func WithTransientRetry[T any](ctx context.Context, opName string, fn func() (T, error)) (T, error) {
	var result T
	var err error
	for attempt := 1; attempt <= transientRetryAttempts; attempt++ {
		result, err = fn()
		if err == nil || !IsTransientError(err) {
			return result, err
		}
		if attempt == transientRetryAttempts {
			break
		}
		sleep := 100 * time.Millisecond * time.Duration(1<<(attempt-1))
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return result, fmt.Errorf("%w: %s: %v", ErrorTransientStorage, opName, err)
}
