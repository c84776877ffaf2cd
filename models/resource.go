package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/capacity_backend/config"
	"bitbucket.org/mmdatafocus/capacity_backend/utils"
	"gorm.io/gorm"
)

type Resource struct {
	ID          string    `gorm:"primaryKey;size:64" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name" binding:"required"`
	Designation string    `gorm:"size:128;not null" json:"designation" binding:"required"`
	Region      string    `gorm:"size:64;not null" json:"region" binding:"required"`
	CostCenter  string    `gorm:"size:64" json:"cost_center"`
	IsActive    *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetResourceDisplayName resolves a resource's name with the lenient-lookup
// policy: a dangling resource id is reported as the raw id, never an error.
// Report generation must not break on a stale foreign key.
func GetResourceDisplayName(ctx context.Context, resourceId string) (name string, designation string) {
	db := config.GetDB()

	res, err := utils.WithTransientRetry(ctx, "GetResourceDisplayName", func() (*Resource, error) {
		var res Resource
		err := db.WithContext(ctx).Where("id = ?", resourceId).First(&res).Error
		if err != nil {
			return nil, err
		}
		return &res, nil
	})
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			config.LogError(config.GetLogger(), "resource.go", "GetResourceDisplayName", "lookup failed; falling back to raw id", resourceId, err)
		}
		return resourceId, ""
	}
	return res.Name, res.Designation
}
