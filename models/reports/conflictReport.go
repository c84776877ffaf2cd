package reports

import (
	"context"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/capacity_backend/models"
	"bitbucket.org/mmdatafocus/capacity_backend/utils"
	"github.com/shopspring/decimal"
)

var (
	defaultCriticalThreshold = decimal.NewFromInt(100)
	defaultWarningThreshold  = decimal.NewFromInt(80)
	thresholdCeiling         = decimal.NewFromInt(200)

	// Cross-project weekly mandays above this trigger CRITICAL regardless
	// of the percentage thresholds (a >5-day week means overtime).
	mandaysCriticalLimit = decimal.NewFromInt(5)
)

type ConflictDetectionRequest struct {
	ResourceId        string           `json:"resourceId"`
	WeekStart         *time.Time       `json:"weekStart"`
	WeekEnd           *time.Time       `json:"weekEnd"`
	VersionId         *int             `json:"versionId"`
	CriticalThreshold *decimal.Decimal `json:"criticalThreshold"`
	WarningThreshold  *decimal.Decimal `json:"warningThreshold"`
	IncludeProjects   []string         `json:"includeProjects"`
}

type ProjectAllocationDetail struct {
	ProjectId         string                   `json:"projectId"`
	ProjectName       string                   `json:"projectName"`
	AllocationPercent decimal.Decimal          `json:"allocationPercent"`
	Mandays           decimal.Decimal          `json:"mandays"`
	WeekNumberingType models.WeekNumberingType `json:"weekNumberingType"`
	WeekNumber        int                      `json:"weekNumber"`
}

type ConflictRecord struct {
	ResourceId             string                    `json:"resourceId"`
	ResourceName           string                    `json:"resourceName"`
	ResourceDesignation    string                    `json:"resourceDesignation"`
	WeekStartDate          time.Time                 `json:"weekStartDate"`
	WeekEndDate            time.Time                 `json:"weekEndDate"`
	TotalAllocationPercent decimal.Decimal           `json:"totalAllocationPercent"`
	TotalMandays           decimal.Decimal           `json:"totalMandays"`
	Severity               models.ConflictSeverity   `json:"severity"`
	ProjectAllocations     []ProjectAllocationDetail `json:"projectAllocations"`
}

type ConflictSummary struct {
	TotalConflicts    int `json:"totalConflicts"`
	CriticalCount     int `json:"criticalCount"`
	WarningCount      int `json:"warningCount"`
	DistinctResources int `json:"distinctResources"`
	DistinctWeeks     int `json:"distinctWeeks"`
}

type ConflictReport struct {
	HasConflicts bool             `json:"hasConflicts"`
	Conflicts    []ConflictRecord `json:"conflicts"`
	Summary      ConflictSummary  `json:"summary"`
}

// DetectConflicts aggregates weekly allocations across every project the
// caller can access, groups them per (resource, week) and reports the
// buckets whose summed commitment crosses the thresholds.
//
// IncludeProjects is intersected with accessibleProjectIds before querying:
// naming a project in the filter never widens access. An empty effective
// project set yields an empty, valid report.
func DetectConflicts(ctx context.Context, src models.AllocationSource, req *ConflictDetectionRequest, accessibleProjectIds []string) (*ConflictReport, error) {
	critical, warning, err := resolveThresholds(req)
	if err != nil {
		return nil, err
	}

	effectiveProjects := accessibleProjectIds
	if len(req.IncludeProjects) > 0 {
		effectiveProjects = utils.IntersectStringSlices(req.IncludeProjects, accessibleProjectIds)
	}
	if len(effectiveProjects) == 0 {
		return emptyConflictReport(), nil
	}

	rows, err := src.FindAllocations(ctx, models.AllocationFilter{
		ProjectIds: effectiveProjects,
		ResourceId: req.ResourceId,
		VersionId:  req.VersionId,
		WeekStart:  req.WeekStart,
		WeekEnd:    req.WeekEnd,
	})
	if err != nil {
		return nil, err
	}

	return buildConflictReport(rows, critical, warning), nil
}

func resolveThresholds(req *ConflictDetectionRequest) (critical decimal.Decimal, warning decimal.Decimal, err error) {
	critical = defaultCriticalThreshold
	warning = defaultWarningThreshold
	if req.CriticalThreshold != nil {
		critical = *req.CriticalThreshold
	}
	if req.WarningThreshold != nil {
		warning = *req.WarningThreshold
	}
	if critical.IsNegative() || critical.GreaterThan(thresholdCeiling) {
		return critical, warning, utils.NewValidationError("criticalThreshold", "must be between 0 and 200")
	}
	if warning.IsNegative() || warning.GreaterThan(thresholdCeiling) {
		return critical, warning, utils.NewValidationError("warningThreshold", "must be between 0 and 200")
	}
	return critical, warning, nil
}

func emptyConflictReport() *ConflictReport {
	return &ConflictReport{
		HasConflicts: false,
		Conflicts:    []ConflictRecord{},
		Summary:      ConflictSummary{},
	}
}

type allocationBucket struct {
	resourceId string
	weekKey    string
	rows       []models.AllocationRow
}

// buildConflictReport is the pure aggregation core: group rows by resource,
// then by week-start day within each resource, sum the competing signals and
// classify. INFO buckets are a legal intermediate classification but are
// never emitted as conflicts.
func buildConflictReport(rows []models.AllocationRow, critical decimal.Decimal, warning decimal.Decimal) *ConflictReport {
	// Two-level grouping with explicit insertion-order slices; output order
	// is made deterministic by a final sort rather than map iteration.
	buckets := make(map[string]map[string]*allocationBucket)
	var bucketOrder []*allocationBucket

	for _, row := range rows {
		weekKey := utils.WeekKey(row.WeekStartDate)
		byWeek, ok := buckets[row.ResourceId]
		if !ok {
			byWeek = make(map[string]*allocationBucket)
			buckets[row.ResourceId] = byWeek
		}
		bucket, ok := byWeek[weekKey]
		if !ok {
			bucket = &allocationBucket{resourceId: row.ResourceId, weekKey: weekKey}
			byWeek[weekKey] = bucket
			bucketOrder = append(bucketOrder, bucket)
		}
		bucket.rows = append(bucket.rows, row)
	}

	var conflicts []ConflictRecord
	distinctResources := make(map[string]bool)
	distinctWeeks := make(map[string]bool)
	summary := ConflictSummary{}

	for _, bucket := range bucketOrder {
		totalPercent := decimal.Zero
		totalMandays := decimal.Zero
		details := make([]ProjectAllocationDetail, 0, len(bucket.rows))

		for _, row := range bucket.rows {
			totalPercent = totalPercent.Add(row.AllocationPercent)
			totalMandays = totalMandays.Add(utils.NullDecimalOrZero(row.Mandays))
			details = append(details, ProjectAllocationDetail{
				ProjectId:         row.ProjectId,
				ProjectName:       row.ProjectName,
				AllocationPercent: row.AllocationPercent,
				Mandays:           utils.NullDecimalOrZero(row.Mandays),
				WeekNumberingType: row.WeekNumberingType,
				WeekNumber:        row.WeekNumber,
			})
		}

		severity := classifySeverity(totalPercent, totalMandays, critical, warning)
		if severity == models.ConflictSeverityInfo {
			continue
		}

		first := bucket.rows[0]
		resourceName := first.ResourceName
		if resourceName == "" {
			resourceName = first.ResourceId
		}
		conflicts = append(conflicts, ConflictRecord{
			ResourceId:             first.ResourceId,
			ResourceName:           resourceName,
			ResourceDesignation:    first.ResourceDesignation,
			WeekStartDate:          utils.TruncateToDay(first.WeekStartDate),
			WeekEndDate:            utils.TruncateToDay(first.WeekEndDate),
			TotalAllocationPercent: totalPercent,
			TotalMandays:           totalMandays,
			Severity:               severity,
			ProjectAllocations:     details,
		})

		distinctResources[bucket.resourceId] = true
		distinctWeeks[bucket.weekKey] = true
		switch severity {
		case models.ConflictSeverityCritical:
			summary.CriticalCount++
		case models.ConflictSeverityWarning:
			summary.WarningCount++
		}
	}

	sort.SliceStable(conflicts, func(i, j int) bool {
		if conflicts[i].ResourceId != conflicts[j].ResourceId {
			return conflicts[i].ResourceId < conflicts[j].ResourceId
		}
		return conflicts[i].WeekStartDate.Before(conflicts[j].WeekStartDate)
	})

	summary.TotalConflicts = len(conflicts)
	summary.DistinctResources = len(distinctResources)
	summary.DistinctWeeks = len(distinctWeeks)

	if conflicts == nil {
		conflicts = []ConflictRecord{}
	}
	return &ConflictReport{
		HasConflicts: len(conflicts) > 0,
		Conflicts:    conflicts,
		Summary:      summary,
	}
}

// classifySeverity evaluates CRITICAL first: the mandays trigger is
// independent of the percentage thresholds, and both checks apply to the
// cross-project weekly sum only (never per project).
func classifySeverity(totalPercent decimal.Decimal, totalMandays decimal.Decimal, critical decimal.Decimal, warning decimal.Decimal) models.ConflictSeverity {
	if totalPercent.GreaterThanOrEqual(critical) || totalMandays.GreaterThan(mandaysCriticalLimit) {
		return models.ConflictSeverityCritical
	}
	if totalPercent.GreaterThanOrEqual(warning) {
		return models.ConflictSeverityWarning
	}
	return models.ConflictSeverityInfo
}
