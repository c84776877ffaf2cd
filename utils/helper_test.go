package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNullDecimalOrZero(t *testing.T) {
	if !NullDecimalOrZero(decimal.NullDecimal{}).IsZero() {
		t.Fatal("invalid NullDecimal must reduce to zero")
	}
	d := decimal.NewFromFloat(2.5)
	got := NullDecimalOrZero(decimal.NullDecimal{Decimal: d, Valid: true})
	if !got.Equal(d) {
		t.Fatalf("expected 2.5, got %s", got)
	}
}

func TestWeekKeyIgnoresTimeOfDay(t *testing.T) {
	morning := time.Date(2026, time.January, 5, 9, 30, 0, 0, time.UTC)
	midnight := time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)
	if WeekKey(morning) != WeekKey(midnight) {
		t.Fatalf("same day must produce the same key: %s vs %s", WeekKey(morning), WeekKey(midnight))
	}
	if WeekKey(morning) != "2026-01-05" {
		t.Fatalf("unexpected key %s", WeekKey(morning))
	}
}

func TestIntersectStringSlices(t *testing.T) {
	got := IntersectStringSlices([]string{"a", "b", "c", "b"}, []string{"c", "b"})
	if len(got) != 3 || got[0] != "b" || got[1] != "c" || got[2] != "b" {
		t.Fatalf("expected order-preserving intersection, got %v", got)
	}
	if got := IntersectStringSlices([]string{"a"}, nil); len(got) != 0 {
		t.Fatalf("empty allow-list must yield empty result, got %v", got)
	}
}

func TestUniqueSlice(t *testing.T) {
	got := UniqueSlice([]string{"x", "y", "x", "z", "y"})
	if len(got) != 3 || got[0] != "x" || got[1] != "y" || got[2] != "z" {
		t.Fatalf("expected first-occurrence order, got %v", got)
	}
}

func TestParseDecimal(t *testing.T) {
	d, err := ParseDecimal(" 12.3400 ")
	if err != nil || !d.Equal(decimal.NewFromFloat(12.34)) {
		t.Fatalf("expected 12.34, got %s (%v)", d, err)
	}
	if _, err := ParseDecimal(""); err == nil {
		t.Fatal("empty string must fail")
	}
	if _, err := ParseDecimal("abc"); err == nil {
		t.Fatal("garbage must fail")
	}
}
