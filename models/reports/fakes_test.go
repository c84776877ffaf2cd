package reports

import (
	"context"
	"fmt"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/capacity_backend/models"
	"bitbucket.org/mmdatafocus/capacity_backend/utils"
	"github.com/shopspring/decimal"
)

// fakeAllocationSource honors the FindAllocations contract (project/resource
// filtering, (resourceId, weekStartDate) ascending order) over an in-memory
// slice.
type fakeAllocationSource struct {
	rows    []models.AllocationRow
	queries []models.AllocationFilter
}

func (f *fakeAllocationSource) FindAllocations(ctx context.Context, filter models.AllocationFilter) ([]models.AllocationRow, error) {
	f.queries = append(f.queries, filter)
	if len(filter.ProjectIds) == 0 {
		return []models.AllocationRow{}, nil
	}
	allowed := make(map[string]bool, len(filter.ProjectIds))
	for _, id := range filter.ProjectIds {
		allowed[id] = true
	}

	var out []models.AllocationRow
	for _, row := range f.rows {
		if !allowed[row.ProjectId] {
			continue
		}
		if filter.ResourceId != "" && row.ResourceId != filter.ResourceId {
			continue
		}
		if filter.VersionId != nil && (row.ProjectVersionId == nil || *row.ProjectVersionId != *filter.VersionId) {
			continue
		}
		if filter.WeekStart != nil && row.WeekStartDate.Before(utils.TruncateToDay(*filter.WeekStart)) {
			continue
		}
		if filter.WeekEnd != nil && row.WeekStartDate.After(utils.TruncateToDay(*filter.WeekEnd)) {
			continue
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ResourceId != out[j].ResourceId {
			return out[i].ResourceId < out[j].ResourceId
		}
		return out[i].WeekStartDate.Before(out[j].WeekStartDate)
	})
	return out, nil
}

type fakeRateResolver struct {
	rates map[string]decimal.Decimal // key: region|designation
}

func (f *fakeRateResolver) ResolveRate(ctx context.Context, region string, designation string) (decimal.Decimal, error) {
	rate, ok := f.rates[region+"|"+designation]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: region=%s designation=%s", utils.ErrorRateNotFound, region, designation)
	}
	return rate, nil
}

type fakeExpenseSource struct {
	subcontractor decimal.Decimal
	ope           decimal.Decimal
}

func (f *fakeExpenseSource) SumExpenses(ctx context.Context, projectId string, versionId *int, expenseType models.ProjectExpenseType) (decimal.Decimal, error) {
	if expenseType == models.ProjectExpenseTypeSubcontractor {
		return f.subcontractor, nil
	}
	return f.ope, nil
}

type fakeSnapshotStore struct {
	snapshots map[string]*models.CostingSnapshot
	upserts   int
}

func (f *fakeSnapshotStore) Upsert(ctx context.Context, snapshot *models.CostingSnapshot) error {
	if f.snapshots == nil {
		f.snapshots = make(map[string]*models.CostingSnapshot)
	}
	copied := *snapshot
	f.snapshots[snapshot.ProjectId] = &copied
	f.upserts++
	return nil
}

func (f *fakeSnapshotStore) Get(ctx context.Context, projectId string) (*models.CostingSnapshot, error) {
	snapshot, ok := f.snapshots[projectId]
	if !ok {
		return nil, utils.ErrorRecordNotFound
	}
	copied := *snapshot
	return &copied, nil
}

type fakeResourceDirectory struct {
	names map[string][2]string
}

func (f *fakeResourceDirectory) DisplayName(ctx context.Context, resourceId string) (string, string) {
	if entry, ok := f.names[resourceId]; ok {
		return entry[0], entry[1]
	}
	return resourceId, ""
}

func monday(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

type rowSpec struct {
	project     string
	resource    string
	week        time.Time
	percent     int64
	mandays     string // "" means null
	versionId   *int
	workingDays int
}

func makeRow(spec rowSpec) models.AllocationRow {
	mandays := decimal.NullDecimal{}
	if spec.mandays != "" {
		d, err := decimal.NewFromString(spec.mandays)
		if err != nil {
			panic(err)
		}
		mandays = decimal.NullDecimal{Decimal: d, Valid: true}
	}
	workingDays := spec.workingDays
	if workingDays == 0 {
		workingDays = 5
	}
	return models.AllocationRow{
		WeeklyAllocation: models.WeeklyAllocation{
			ProjectId:         spec.project,
			ResourceId:        spec.resource,
			WeekStartDate:     spec.week,
			WeekEndDate:       spec.week.AddDate(0, 0, 6),
			WeekNumberingType: models.WeekNumberingTypeProjectRelative,
			WeekNumber:        1,
			AllocationPercent: decimal.NewFromInt(spec.percent),
			WorkingDays:       workingDays,
			Mandays:           mandays,
			ProjectVersionId:  spec.versionId,
		},
		ResourceName:        "Resource " + spec.resource,
		ResourceDesignation: "Consultant",
		ResourceRegion:      "EMEA",
		ProjectName:         "Project " + spec.project,
	}
}
