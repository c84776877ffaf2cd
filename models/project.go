package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/capacity_backend/config"
	"bitbucket.org/mmdatafocus/capacity_backend/utils"
)

type Project struct {
	ID            string    `gorm:"primaryKey;size:64" json:"id"`
	Name          string    `gorm:"size:255;not null" json:"name" binding:"required"`
	ClientName    string    `gorm:"size:255" json:"client_name"`
	DefaultRegion string    `gorm:"size:64" json:"default_region"`
	Status        string    `gorm:"size:32;default:'ACTIVE'" json:"status"`
	Version       int       `gorm:"default:1" json:"version"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type ProjectMember struct {
	ID        int         `gorm:"primary_key" json:"id"`
	ProjectId string      `gorm:"size:64;not null;uniqueIndex:idx_pm_project_user,priority:1" json:"project_id" binding:"required"`
	UserId    int         `gorm:"not null;uniqueIndex:idx_pm_project_user,priority:2" json:"user_id" binding:"required"`
	Role      ProjectRole `gorm:"type:enum('OWNER','EDITOR','VIEWER');not null" json:"role" binding:"required"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// AccessibleProjectIds returns every project id the calling user may read.
// Platform admins see all projects. A caller-supplied project filter must be
// intersected against this set before any allocation query.
func AccessibleProjectIds(ctx context.Context) ([]string, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return nil, utils.ErrorUnauthorized
	}

	db := config.GetDB()

	if isAdmin, _ := utils.GetIsAdminFromContext(ctx); isAdmin {
		return utils.WithTransientRetry(ctx, "AccessibleProjectIds(admin)", func() ([]string, error) {
			var ids []string
			err := db.WithContext(ctx).Model(&Project{}).Pluck("id", &ids).Error
			return ids, err
		})
	}

	return utils.WithTransientRetry(ctx, "AccessibleProjectIds", func() ([]string, error) {
		var ids []string
		err := db.WithContext(ctx).Model(&ProjectMember{}).
			Where("user_id = ?", userId).
			Pluck("project_id", &ids).Error
		return ids, err
	})
}

// HasProjectRole reports whether the calling user holds one of the given
// roles on the project. Admins implicitly hold every role.
func HasProjectRole(ctx context.Context, projectId string, roles ...ProjectRole) (bool, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok {
		return false, utils.ErrorUnauthorized
	}

	if isAdmin, _ := utils.GetIsAdminFromContext(ctx); isAdmin {
		return true, nil
	}

	db := config.GetDB()
	count, err := utils.WithTransientRetry(ctx, "HasProjectRole", func() (int64, error) {
		var count int64
		err := db.WithContext(ctx).Model(&ProjectMember{}).
			Where("project_id = ? AND user_id = ? AND role IN ?", projectId, userId, roles).
			Count(&count).Error
		return count, err
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
