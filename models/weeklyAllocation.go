package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/capacity_backend/config"
	"bitbucket.org/mmdatafocus/capacity_backend/utils"
	"github.com/shopspring/decimal"
)

// WeeklyAllocation is one resource's planned effort on one project for one
// calendar week. WeekStartDate is always a Monday anchor. Rows are written by
// the planning UI; this backend only reads them.
//
// Multiple rows may exist for the same (resource_id, week_start_date) across
// different projects. That overlap is exactly what the conflict detector
// looks for.
type WeeklyAllocation struct {
	ID                int                 `gorm:"primary_key" json:"id"`
	ProjectId         string              `gorm:"size:64;not null;index:idx_wa_project" json:"project_id" binding:"required"`
	ResourceId        string              `gorm:"size:64;not null;index:idx_wa_resource_week,priority:1" json:"resource_id" binding:"required"`
	WeekStartDate     time.Time           `gorm:"not null;index:idx_wa_resource_week,priority:2" json:"week_start_date" binding:"required"`
	WeekEndDate       time.Time           `gorm:"not null" json:"week_end_date" binding:"required"`
	WeekNumberingType WeekNumberingType   `gorm:"type:enum('PROJECT_RELATIVE','ISO_WEEK','CALENDAR_WEEK');default:'PROJECT_RELATIVE'" json:"week_numbering_type"`
	WeekNumber        int                 `json:"week_number"`
	AllocationPercent decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"allocation_percent"`
	WorkingDays       int                 `gorm:"default:5" json:"working_days"`
	Mandays           decimal.NullDecimal `gorm:"type:decimal(20,4)" json:"mandays"`
	ProjectVersionId  *int                `json:"project_version_id"`
	CreatedAt         time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// AllocationRow is a WeeklyAllocation joined with the denormalized names the
// reports need. Left joins keep dangling foreign keys readable: missing
// names come back empty and the report layer falls back to raw ids.
type AllocationRow struct {
	WeeklyAllocation
	ResourceName        string `json:"resource_name"`
	ResourceDesignation string `json:"resource_designation"`
	ResourceRegion      string `json:"resource_region"`
	ProjectName         string `json:"project_name"`
}

// AllocationFilter narrows an allocation query. ProjectIds must already be
// intersected with the caller's accessible set.
type AllocationFilter struct {
	ProjectIds []string
	ResourceId string
	VersionId  *int
	WeekStart  *time.Time
	WeekEnd    *time.Time
}

// FindAllocations returns the matching allocation rows ordered by
// (resource_id, week_start_date) ascending for deterministic grouping.
// An empty project set short-circuits to an empty result.
func FindAllocations(ctx context.Context, filter AllocationFilter) ([]AllocationRow, error) {
	if len(filter.ProjectIds) == 0 {
		return []AllocationRow{}, nil
	}

	db := config.GetDB()

	return utils.WithTransientRetry(ctx, "FindAllocations", func() ([]AllocationRow, error) {
		query := db.WithContext(ctx).
			Table("weekly_allocations").
			Select(`weekly_allocations.*,
				COALESCE(resources.name, '') AS resource_name,
				COALESCE(resources.designation, '') AS resource_designation,
				COALESCE(resources.region, '') AS resource_region,
				COALESCE(projects.name, '') AS project_name`).
			Joins("LEFT JOIN resources ON resources.id = weekly_allocations.resource_id").
			Joins("LEFT JOIN projects ON projects.id = weekly_allocations.project_id").
			Where("weekly_allocations.project_id IN ?", filter.ProjectIds)

		if filter.ResourceId != "" {
			query = query.Where("weekly_allocations.resource_id = ?", filter.ResourceId)
		}
		if filter.VersionId != nil {
			query = query.Where("weekly_allocations.project_version_id = ?", *filter.VersionId)
		}
		if filter.WeekStart != nil {
			query = query.Where("weekly_allocations.week_start_date >= ?", utils.TruncateToDay(*filter.WeekStart))
		}
		if filter.WeekEnd != nil {
			query = query.Where("weekly_allocations.week_start_date <= ?", utils.TruncateToDay(*filter.WeekEnd))
		}

		var rows []AllocationRow
		err := query.
			Order("weekly_allocations.resource_id ASC, weekly_allocations.week_start_date ASC").
			Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		return rows, nil
	})
}
