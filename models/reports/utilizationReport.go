package reports

import (
	"context"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/capacity_backend/models"
	"bitbucket.org/mmdatafocus/capacity_backend/utils"
	"github.com/shopspring/decimal"
)

type UtilizationWeek struct {
	WeekStartDate     time.Time                 `json:"weekStartDate"`
	WeekEndDate       time.Time                 `json:"weekEndDate"`
	AllocationPercent decimal.Decimal           `json:"allocationPercent"`
	Mandays           decimal.Decimal           `json:"mandays"`
	ProjectCount      int                       `json:"projectCount"`
	Status            models.WeekCapacityStatus `json:"status"`
}

type UtilizationStatistics struct {
	AllocationCount             int             `json:"allocationCount"`
	TotalMandays                decimal.Decimal `json:"totalMandays"`
	TotalWorkingDays            int             `json:"totalWorkingDays"`
	AverageAllocationPercent    decimal.Decimal `json:"averageAllocationPercent"`
	PeakWeeklyAllocationPercent decimal.Decimal `json:"peakWeeklyAllocationPercent"`
	PeakWeeklyMandays           decimal.Decimal `json:"peakWeeklyMandays"`
}

type UtilizationSummary struct {
	ResourceId          string                `json:"resourceId"`
	ResourceName        string                `json:"resourceName"`
	ResourceDesignation string                `json:"resourceDesignation"`
	Statistics          UtilizationStatistics `json:"statistics"`
	WeeklyBreakdown     []UtilizationWeek     `json:"weeklyBreakdown"`
}

// GetResourceUtilization summarizes one resource's load over every project
// the caller can access. Unlike DetectConflicts there is no project filter
// override; the accessible set is always used as-is.
func GetResourceUtilization(ctx context.Context, src models.AllocationSource, dir models.ResourceDirectory, resourceId string, accessibleProjectIds []string) (*UtilizationSummary, error) {
	if resourceId == "" {
		return nil, utils.NewValidationError("resourceId", "required")
	}

	name, designation := dir.DisplayName(ctx, resourceId)
	summary := &UtilizationSummary{
		ResourceId:          resourceId,
		ResourceName:        name,
		ResourceDesignation: designation,
		WeeklyBreakdown:     []UtilizationWeek{},
	}

	if len(accessibleProjectIds) == 0 {
		return summary, nil
	}

	rows, err := src.FindAllocations(ctx, models.AllocationFilter{
		ProjectIds: accessibleProjectIds,
		ResourceId: resourceId,
	})
	if err != nil {
		return nil, err
	}

	summary.Statistics, summary.WeeklyBreakdown = buildUtilization(rows)
	return summary, nil
}

func buildUtilization(rows []models.AllocationRow) (UtilizationStatistics, []UtilizationWeek) {
	stats := UtilizationStatistics{
		TotalMandays:                decimal.Zero,
		AverageAllocationPercent:    decimal.Zero,
		PeakWeeklyAllocationPercent: decimal.Zero,
		PeakWeeklyMandays:           decimal.Zero,
	}
	weeks := make(map[string]*UtilizationWeek)
	var weekOrder []string

	totalPercent := decimal.Zero
	for _, row := range rows {
		key := utils.WeekKey(row.WeekStartDate)
		week, ok := weeks[key]
		if !ok {
			week = &UtilizationWeek{
				WeekStartDate:     utils.TruncateToDay(row.WeekStartDate),
				WeekEndDate:       utils.TruncateToDay(row.WeekEndDate),
				AllocationPercent: decimal.Zero,
				Mandays:           decimal.Zero,
			}
			weeks[key] = week
			weekOrder = append(weekOrder, key)
		}
		week.AllocationPercent = week.AllocationPercent.Add(row.AllocationPercent)
		week.Mandays = week.Mandays.Add(utils.NullDecimalOrZero(row.Mandays))
		week.ProjectCount++

		stats.AllocationCount++
		stats.TotalMandays = stats.TotalMandays.Add(utils.NullDecimalOrZero(row.Mandays))
		stats.TotalWorkingDays += row.WorkingDays
		totalPercent = totalPercent.Add(row.AllocationPercent)
	}

	// Unweighted mean across allocation rows, not across weeks.
	if stats.AllocationCount > 0 {
		stats.AverageAllocationPercent = totalPercent.DivRound(decimal.NewFromInt(int64(stats.AllocationCount)), 4)
	}

	sort.Strings(weekOrder)
	breakdown := make([]UtilizationWeek, 0, len(weekOrder))
	for _, key := range weekOrder {
		week := weeks[key]
		week.Status = classifyWeekStatus(week.AllocationPercent, week.Mandays)
		if week.AllocationPercent.GreaterThan(stats.PeakWeeklyAllocationPercent) {
			stats.PeakWeeklyAllocationPercent = week.AllocationPercent
		}
		if week.Mandays.GreaterThan(stats.PeakWeeklyMandays) {
			stats.PeakWeeklyMandays = week.Mandays
		}
		breakdown = append(breakdown, *week)
	}

	return stats, breakdown
}

func classifyWeekStatus(percent decimal.Decimal, mandays decimal.Decimal) models.WeekCapacityStatus {
	if percent.GreaterThanOrEqual(defaultCriticalThreshold) || mandays.GreaterThan(mandaysCriticalLimit) {
		return models.WeekStatusOverAllocated
	}
	if percent.GreaterThanOrEqual(defaultWarningThreshold) {
		return models.WeekStatusAtCapacity
	}
	return models.WeekStatusAvailable
}
