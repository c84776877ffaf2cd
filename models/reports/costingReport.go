package reports

import (
	"context"
	"errors"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/capacity_backend/config"
	"bitbucket.org/mmdatafocus/capacity_backend/models"
	"bitbucket.org/mmdatafocus/capacity_backend/utils"
	"github.com/shopspring/decimal"
)

var (
	hoursPerDay = decimal.NewFromInt(8)

	// Internal cost is a fixed fraction of the gross standard billing basis
	// per resource, summed. Never derived from NSR.
	internalCostFraction = decimal.NewFromFloat(0.35)

	oneHundred = decimal.NewFromInt(100)
)

type CostingRequest struct {
	ProjectId             string                `json:"projectId"`
	VersionNumber         *int                  `json:"versionNumber"`
	IncludeSubcontractors bool                  `json:"includeSubcontractors"`
	IncludeOPE            bool                  `json:"includeOPE"`
	Visibility            models.CostVisibility `json:"visibility"`
	SaveToDatabase        bool                  `json:"saveToDatabase"`
	RealizationRate       *decimal.Decimal      `json:"realizationRate"`
}

// CostingFigures is the full, unredacted result of the waterfall. It is
// what gets persisted; redaction happens only at the response boundary.
type CostingFigures struct {
	GrossServiceRevenue decimal.Decimal
	NetServiceRevenue   decimal.Decimal
	InternalCost        decimal.Decimal
	SubcontractorCost   decimal.Decimal
	OutOfPocketExpense  decimal.Decimal
	GrossMargin         decimal.Decimal
	MarginPercentage    decimal.Decimal
	RealizationRate     decimal.Decimal
}

// FilteredCosting is the visibility-projected view. Redacted fields are nil
// and omitted from JSON.
type FilteredCosting struct {
	VisibilityLevel     models.CostVisibility `json:"visibilityLevel"`
	GrossServiceRevenue *decimal.Decimal      `json:"grossServiceRevenue,omitempty"`
	NetServiceRevenue   *decimal.Decimal      `json:"netServiceRevenue,omitempty"`
	InternalCost        *decimal.Decimal      `json:"internalCost,omitempty"`
	SubcontractorCost   *decimal.Decimal      `json:"subcontractorCost,omitempty"`
	OutOfPocketExpense  *decimal.Decimal      `json:"outOfPocketExpense,omitempty"`
	GrossMargin         *decimal.Decimal      `json:"grossMargin,omitempty"`
	MarginPercentage    *decimal.Decimal      `json:"marginPercentage,omitempty"`
	RealizationRate     *decimal.Decimal      `json:"realizationRate,omitempty"`
}

type CostingBreakdown struct {
	ByRegion      map[string]decimal.Decimal `json:"byRegion"`
	ByDesignation map[string]decimal.Decimal `json:"byDesignation"`
}

type CostingResult struct {
	ProjectId     string           `json:"projectId"`
	VersionNumber *int             `json:"versionNumber"`
	Costing       FilteredCosting  `json:"costing"`
	Breakdown     CostingBreakdown `json:"breakdown"`
	Saved         bool             `json:"saved"`
	CalculatedAt  time.Time        `json:"calculatedAt"`
}

// CalculateProjectCosting runs the seven-layer waterfall for one project:
// rate lookup, x8 daily rate, gross standard revenue per resource, the
// realization discount to net standard revenue, internal cost, delegated
// subcontractor/OPE sums, margin. The full figures are always computed (and
// persisted when requested); the caller's visibility tier only shapes the
// returned view.
//
// isOwner is the pre-validated project-level OWNER capability. The engine
// does not re-derive authorization but fails closed.
func CalculateProjectCosting(ctx context.Context, src models.AllocationSource, rates models.RateResolver, expenses models.ExpenseSource, store models.SnapshotStore, req *CostingRequest, isOwner bool) (*CostingResult, error) {
	if !isOwner {
		return nil, utils.ErrorForbidden
	}
	if req.ProjectId == "" {
		return nil, utils.NewValidationError("projectId", "required")
	}
	if !req.Visibility.IsValid() {
		return nil, utils.NewValidationError("visibility", "must be PUBLIC, PRESALES_AND_FINANCE or FINANCE_ONLY")
	}

	realizationRate := config.DefaultRealizationRate()
	if req.RealizationRate != nil {
		realizationRate = *req.RealizationRate
		if !realizationRate.IsPositive() || realizationRate.GreaterThan(decimal.NewFromInt(1)) {
			return nil, utils.NewValidationError("realizationRate", "must be > 0 and <= 1")
		}
	}

	rows, err := src.FindAllocations(ctx, models.AllocationFilter{
		ProjectIds: []string{req.ProjectId},
		VersionId:  req.VersionNumber,
	})
	if err != nil {
		return nil, err
	}

	figures, breakdown, err := buildCostingFigures(ctx, rows, rates, realizationRate)
	if err != nil {
		return nil, err
	}

	// Excluded sub-ledgers contribute an explicit zero, never an omitted
	// field.
	if req.IncludeSubcontractors {
		sub, err := expenses.SumExpenses(ctx, req.ProjectId, req.VersionNumber, models.ProjectExpenseTypeSubcontractor)
		if err != nil {
			return nil, err
		}
		figures.SubcontractorCost = sub
	}
	if req.IncludeOPE {
		ope, err := expenses.SumExpenses(ctx, req.ProjectId, req.VersionNumber, models.ProjectExpenseTypeOutOfPocket)
		if err != nil {
			return nil, err
		}
		figures.OutOfPocketExpense = ope
	}

	figures.GrossMargin = figures.NetServiceRevenue.
		Sub(figures.InternalCost).
		Sub(figures.SubcontractorCost).
		Sub(figures.OutOfPocketExpense)
	if !figures.NetServiceRevenue.IsZero() {
		figures.MarginPercentage = figures.GrossMargin.DivRound(figures.NetServiceRevenue, 8).Mul(oneHundred)
	} else {
		figures.MarginPercentage = decimal.Zero
	}

	calculatedAt := time.Now().UTC()
	saved := false
	if req.SaveToDatabase {
		snapshot := snapshotFromFigures(req.ProjectId, req.VersionNumber, figures, calculatedAt, calculatedByFromContext(ctx))
		if err := snapshot.SetBreakdowns(breakdown.ByRegion, breakdown.ByDesignation); err != nil {
			return nil, err
		}
		if err := store.Upsert(ctx, snapshot); err != nil {
			return nil, err
		}
		saved = true
	}

	return &CostingResult{
		ProjectId:     req.ProjectId,
		VersionNumber: req.VersionNumber,
		Costing:       ApplyCostVisibilityFilter(figures, req.Visibility),
		Breakdown:     filterBreakdown(breakdown, req.Visibility),
		Saved:         saved,
		CalculatedAt:  calculatedAt,
	}, nil
}

// buildCostingFigures runs layers 1-6 of the waterfall over the fetched
// allocation rows, grouped per resource. A single unresolvable rate aborts
// the whole calculation: partial totals would misstate the project.
func buildCostingFigures(ctx context.Context, rows []models.AllocationRow, rates models.RateResolver, realizationRate decimal.Decimal) (CostingFigures, CostingBreakdown, error) {
	type resourceEffort struct {
		region       string
		designation  string
		totalMandays decimal.Decimal
	}

	efforts := make(map[string]*resourceEffort)
	var effortOrder []string
	for _, row := range rows {
		effort, ok := efforts[row.ResourceId]
		if !ok {
			effort = &resourceEffort{
				region:       row.ResourceRegion,
				designation:  row.ResourceDesignation,
				totalMandays: decimal.Zero,
			}
			efforts[row.ResourceId] = effort
			effortOrder = append(effortOrder, row.ResourceId)
		}
		effort.totalMandays = effort.totalMandays.Add(utils.NullDecimalOrZero(row.Mandays))
	}

	figures := CostingFigures{
		GrossServiceRevenue: decimal.Zero,
		NetServiceRevenue:   decimal.Zero,
		InternalCost:        decimal.Zero,
		SubcontractorCost:   decimal.Zero,
		OutOfPocketExpense:  decimal.Zero,
		GrossMargin:         decimal.Zero,
		MarginPercentage:    decimal.Zero,
		RealizationRate:     realizationRate,
	}
	breakdown := CostingBreakdown{
		ByRegion:      make(map[string]decimal.Decimal),
		ByDesignation: make(map[string]decimal.Decimal),
	}

	for _, resourceId := range effortOrder {
		effort := efforts[resourceId]

		ratePerHour, err := rates.ResolveRate(ctx, effort.region, effort.designation)
		if err != nil {
			if errors.Is(err, utils.ErrorRateNotFound) {
				config.LogError(config.GetLogger(), "costingReport.go", "buildCostingFigures", "rate lookup failed; aborting costing", resourceId, err)
			}
			return CostingFigures{}, CostingBreakdown{}, err
		}

		dailyRate := ratePerHour.Mul(hoursPerDay)
		grossStandard := effort.totalMandays.Mul(dailyRate)

		figures.GrossServiceRevenue = figures.GrossServiceRevenue.Add(grossStandard)
		figures.InternalCost = figures.InternalCost.Add(grossStandard.Mul(internalCostFraction))

		breakdown.ByRegion[effort.region] = breakdown.ByRegion[effort.region].Add(grossStandard)
		breakdown.ByDesignation[effort.designation] = breakdown.ByDesignation[effort.designation].Add(grossStandard)
	}

	figures.NetServiceRevenue = figures.GrossServiceRevenue.Mul(realizationRate)
	return figures, breakdown, nil
}

// ApplyCostVisibilityFilter is the only place redaction happens. PUBLIC sees
// no cost fields; PRESALES_AND_FINANCE sees the two revenue figures;
// FINANCE_ONLY sees everything.
func ApplyCostVisibilityFilter(figures CostingFigures, level models.CostVisibility) FilteredCosting {
	filtered := FilteredCosting{VisibilityLevel: level}

	if level.AtLeast(models.CostVisibilityPresalesAndFinance) {
		gsr := figures.GrossServiceRevenue
		nsr := figures.NetServiceRevenue
		filtered.GrossServiceRevenue = &gsr
		filtered.NetServiceRevenue = &nsr
	}
	if level.AtLeast(models.CostVisibilityFinanceOnly) {
		internal := figures.InternalCost
		sub := figures.SubcontractorCost
		ope := figures.OutOfPocketExpense
		margin := figures.GrossMargin
		marginPct := figures.MarginPercentage
		rr := figures.RealizationRate
		filtered.InternalCost = &internal
		filtered.SubcontractorCost = &sub
		filtered.OutOfPocketExpense = &ope
		filtered.GrossMargin = &margin
		filtered.MarginPercentage = &marginPct
		filtered.RealizationRate = &rr
	}
	return filtered
}

// Breakdown maps carry revenue figures, so they follow the revenue tier.
func filterBreakdown(breakdown CostingBreakdown, level models.CostVisibility) CostingBreakdown {
	if level.AtLeast(models.CostVisibilityPresalesAndFinance) {
		return breakdown
	}
	return CostingBreakdown{
		ByRegion:      map[string]decimal.Decimal{},
		ByDesignation: map[string]decimal.Decimal{},
	}
}

func snapshotFromFigures(projectId string, versionNumber *int, figures CostingFigures, calculatedAt time.Time, calculatedBy string) *models.CostingSnapshot {
	return &models.CostingSnapshot{
		ProjectId:              projectId,
		VersionNumber:          versionNumber,
		TotalGSR:               figures.GrossServiceRevenue,
		TotalNSR:               figures.NetServiceRevenue,
		TotalInternalCost:      figures.InternalCost,
		TotalSubcontractorCost: figures.SubcontractorCost,
		TotalOPE:               figures.OutOfPocketExpense,
		GrossMargin:            figures.GrossMargin,
		MarginPercent:          figures.MarginPercentage,
		RealizationRate:        figures.RealizationRate,
		CalculatedBy:           calculatedBy,
		CalculatedAt:           calculatedAt,
	}
}

func figuresFromSnapshot(snapshot *models.CostingSnapshot) CostingFigures {
	return CostingFigures{
		GrossServiceRevenue: snapshot.TotalGSR,
		NetServiceRevenue:   snapshot.TotalNSR,
		InternalCost:        snapshot.TotalInternalCost,
		SubcontractorCost:   snapshot.TotalSubcontractorCost,
		OutOfPocketExpense:  snapshot.TotalOPE,
		GrossMargin:         snapshot.GrossMargin,
		MarginPercentage:    snapshot.MarginPercent,
		RealizationRate:     snapshot.RealizationRate,
	}
}

// calculatedByFromContext resolves the audit identity for a snapshot save.
// Tokens minted before the username claim existed still resolve via the
// user-id fallback; the field must never persist empty for an authenticated
// caller.
func calculatedByFromContext(ctx context.Context) string {
	if name, ok := utils.GetUserNameFromContext(ctx); ok && name != "" {
		return name
	}
	if username, ok := utils.GetUsernameFromContext(ctx); ok && username != "" {
		return username
	}
	if userId, ok := utils.GetUserIdFromContext(ctx); ok {
		return "user:" + strconv.Itoa(userId)
	}
	return ""
}

// StoredCostingView is the read path's response: the persisted snapshot
// re-filtered with the reader's tier.
type StoredCostingView struct {
	ProjectId     string           `json:"projectId"`
	VersionNumber *int             `json:"versionNumber"`
	Costing       FilteredCosting  `json:"costing"`
	Breakdown     CostingBreakdown `json:"breakdown"`
	CalculatedBy  string           `json:"calculatedBy"`
	CalculatedAt  time.Time        `json:"calculatedAt"`
}

// GetProjectCosting reads the stored snapshot and projects it for the
// reader's visibility tier. The tier used at save time is irrelevant: the
// snapshot always holds full figures.
func GetProjectCosting(ctx context.Context, store models.SnapshotStore, projectId string, level models.CostVisibility) (*StoredCostingView, error) {
	if projectId == "" {
		return nil, utils.NewValidationError("projectId", "required")
	}
	if !level.IsValid() {
		return nil, utils.NewValidationError("visibility", "must be PUBLIC, PRESALES_AND_FINANCE or FINANCE_ONLY")
	}

	snapshot, err := store.Get(ctx, projectId)
	if err != nil {
		return nil, err
	}

	byRegion, byDesignation, err := snapshot.Breakdowns()
	if err != nil {
		return nil, err
	}

	return &StoredCostingView{
		ProjectId:     snapshot.ProjectId,
		VersionNumber: snapshot.VersionNumber,
		Costing:       ApplyCostVisibilityFilter(figuresFromSnapshot(snapshot), level),
		Breakdown:     filterBreakdown(CostingBreakdown{ByRegion: byRegion, ByDesignation: byDesignation}, level),
		CalculatedBy:  snapshot.CalculatedBy,
		CalculatedAt:  snapshot.CalculatedAt,
	}, nil
}
