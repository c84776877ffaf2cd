package utils

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
)

func TestWithTransientRetry_RecoversAfterTransientFailures(t *testing.T) {
	calls := 0
	result, err := WithTransientRetry(context.Background(), "test op", func() (int, error) {
		calls++
		if calls < 3 {
			return 0, driver.ErrBadConn
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if result != 42 || calls != 3 {
		t.Fatalf("expected 42 after 3 calls, got %d after %d", result, calls)
	}
}

func TestWithTransientRetry_ExhaustedBudgetWrapsSentinel(t *testing.T) {
	calls := 0
	_, err := WithTransientRetry(context.Background(), "test op", func() (int, error) {
		calls++
		return 0, errors.New("invalid connection")
	})
	if !errors.Is(err, ErrorTransientStorage) {
		t.Fatalf("expected ErrorTransientStorage, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", calls)
	}
}

func TestWithTransientRetry_NonTransientReturnsImmediately(t *testing.T) {
	calls := 0
	boom := errors.New("syntax error")
	_, err := WithTransientRetry(context.Background(), "test op", func() (int, error) {
		calls++
		return 0, boom
	})
	if !errors.Is(err, boom) || errors.Is(err, ErrorTransientStorage) {
		t.Fatalf("non-transient error must pass through unwrapped, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestIsTransientError(t *testing.T) {
	cases := []struct {
		err      error
		expected bool
	}{
		{nil, false},
		{driver.ErrBadConn, true},
		{errors.New("dial tcp: connection refused"), true},
		{errors.New("Error 1213: Deadlock found when trying to get lock; try restarting transaction"), true},
		{errors.New("Error 1205: Lock wait timeout exceeded"), true},
		{errors.New("Error 1064: syntax error"), false},
	}
	for _, tc := range cases {
		if got := IsTransientError(tc.err); got != tc.expected {
			t.Fatalf("IsTransientError(%v) = %v, expected %v", tc.err, got, tc.expected)
		}
	}
}
