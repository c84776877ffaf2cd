package config

import (
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

var fallbackRealizationRate = decimal.NewFromFloat(0.43)

// DefaultRealizationRate is the configured fraction of standard rate that is
// actually billable. Env: COSTING_REALIZATION_RATE (0 < rate <= 1).
func DefaultRealizationRate() decimal.Decimal {
	v := strings.TrimSpace(os.Getenv("COSTING_REALIZATION_RATE"))
	if v == "" {
		return fallbackRealizationRate
	}
	d, err := decimal.NewFromString(v)
	if err != nil || !d.IsPositive() || d.GreaterThan(decimal.NewFromInt(1)) {
		return fallbackRealizationRate
	}
	return d
}
