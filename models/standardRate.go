package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/capacity_backend/config"
	"bitbucket.org/mmdatafocus/capacity_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StandardRate is one row of the rate card: the hourly standard billing rate
// for a (region, designation) pair.
type StandardRate struct {
	ID          int             `gorm:"primary_key" json:"id"`
	Region      string          `gorm:"size:64;not null;uniqueIndex:idx_sr_region_designation,priority:1" json:"region" binding:"required"`
	Designation string          `gorm:"size:128;not null;uniqueIndex:idx_sr_region_designation,priority:2" json:"designation" binding:"required"`
	RatePerHour decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"rate_per_hour"`
	Currency    string          `gorm:"size:8;default:'USD'" json:"currency"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// ResolveStandardRate looks up the hourly rate for (region, designation).
// A missing entry is a hard ErrorRateNotFound: costing must never silently
// default a rate to zero.
func ResolveStandardRate(ctx context.Context, region string, designation string) (decimal.Decimal, error) {
	db := config.GetDB()

	rate, err := utils.WithTransientRetry(ctx, "ResolveStandardRate", func() (decimal.Decimal, error) {
		var row StandardRate
		err := db.WithContext(ctx).
			Where("region = ? AND designation = ?", region, designation).
			First(&row).Error
		if err != nil {
			return decimal.Zero, err
		}
		return row.RatePerHour, nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, fmt.Errorf("%w: region=%s designation=%s", utils.ErrorRateNotFound, region, designation)
		}
		return decimal.Zero, err
	}
	return rate, nil
}
