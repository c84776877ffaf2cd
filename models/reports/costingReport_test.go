package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/capacity_backend/models"
	"bitbucket.org/mmdatafocus/capacity_backend/utils"
	"github.com/shopspring/decimal"
)

func costingFixture() (*fakeAllocationSource, *fakeRateResolver, *fakeExpenseSource, *fakeSnapshotStore) {
	week1 := monday(2026, time.March, 2)
	week2 := monday(2026, time.March, 9)
	src := &fakeAllocationSource{rows: []models.AllocationRow{
		makeRow(rowSpec{project: "p1", resource: "r1", week: week1, percent: 100, mandays: "5"}),
		makeRow(rowSpec{project: "p1", resource: "r1", week: week2, percent: 100, mandays: "5"}),
	}}
	rates := &fakeRateResolver{rates: map[string]decimal.Decimal{
		"EMEA|Consultant": decimal.NewFromInt(100),
	}}
	expenses := &fakeExpenseSource{
		subcontractor: decimal.NewFromInt(500),
		ope:           decimal.NewFromInt(100),
	}
	return src, rates, expenses, &fakeSnapshotStore{}
}

func TestCalculateProjectCosting_Waterfall(t *testing.T) {
	src, rates, expenses, store := costingFixture()
	rr := decimal.NewFromFloat(0.5)

	result, err := CalculateProjectCosting(context.Background(), src, rates, expenses, store, &CostingRequest{
		ProjectId:             "p1",
		IncludeSubcontractors: true,
		IncludeOPE:            true,
		Visibility:            models.CostVisibilityFinanceOnly,
		RealizationRate:       &rr,
	}, true)
	if err != nil {
		t.Fatalf("CalculateProjectCosting: %v", err)
	}

	c := result.Costing
	// 10 mandays x (100/hr x 8h) = 8000 gross.
	if !c.GrossServiceRevenue.Equal(decimal.NewFromInt(8000)) {
		t.Fatalf("expected GSR 8000, got %s", c.GrossServiceRevenue)
	}
	if !c.NetServiceRevenue.Equal(decimal.NewFromInt(4000)) {
		t.Fatalf("expected NSR 4000 at 0.5 realization, got %s", c.NetServiceRevenue)
	}
	if !c.InternalCost.Equal(decimal.NewFromInt(2800)) {
		t.Fatalf("expected internal cost 2800 (35%% of gross), got %s", c.InternalCost)
	}
	if !c.SubcontractorCost.Equal(decimal.NewFromInt(500)) || !c.OutOfPocketExpense.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected expense figures: %+v", c)
	}
	// 4000 - 2800 - 500 - 100 = 600.
	if !c.GrossMargin.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("expected margin 600, got %s", c.GrossMargin)
	}
	if !c.MarginPercentage.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected margin 15%%, got %s", c.MarginPercentage)
	}
	if !c.RealizationRate.Equal(rr) {
		t.Fatalf("expected realization rate echoed back, got %s", c.RealizationRate)
	}

	if !result.Breakdown.ByRegion["EMEA"].Equal(decimal.NewFromInt(8000)) {
		t.Fatalf("unexpected region breakdown: %+v", result.Breakdown.ByRegion)
	}
	if !result.Breakdown.ByDesignation["Consultant"].Equal(decimal.NewFromInt(8000)) {
		t.Fatalf("unexpected designation breakdown: %+v", result.Breakdown.ByDesignation)
	}
	if result.Saved || store.upserts != 0 {
		t.Fatalf("snapshot must not be written without saveToDatabase")
	}
}

func TestCalculateProjectCosting_DefaultRealizationRate(t *testing.T) {
	t.Setenv("COSTING_REALIZATION_RATE", "")
	src, rates, expenses, store := costingFixture()

	result, err := CalculateProjectCosting(context.Background(), src, rates, expenses, store, &CostingRequest{
		ProjectId:  "p1",
		Visibility: models.CostVisibilityFinanceOnly,
	}, true)
	if err != nil {
		t.Fatalf("CalculateProjectCosting: %v", err)
	}
	// 8000 x 0.43 = 3440.
	if !result.Costing.NetServiceRevenue.Equal(decimal.NewFromInt(3440)) {
		t.Fatalf("expected NSR 3440 at default realization, got %s", result.Costing.NetServiceRevenue)
	}
}

func TestCalculateProjectCosting_RateNotFoundAborts(t *testing.T) {
	src, _, expenses, store := costingFixture()
	rates := &fakeRateResolver{rates: map[string]decimal.Decimal{}}

	_, err := CalculateProjectCosting(context.Background(), src, rates, expenses, store, &CostingRequest{
		ProjectId:      "p1",
		Visibility:     models.CostVisibilityFinanceOnly,
		SaveToDatabase: true,
	}, true)
	if !errors.Is(err, utils.ErrorRateNotFound) {
		t.Fatalf("expected rate-not-found error, got %v", err)
	}
	if store.upserts != 0 {
		t.Fatalf("no snapshot may be written when the calculation aborts")
	}
}

func TestCalculateProjectCosting_FailsClosedWithoutOwnership(t *testing.T) {
	src, rates, expenses, store := costingFixture()

	_, err := CalculateProjectCosting(context.Background(), src, rates, expenses, store, &CostingRequest{
		ProjectId:  "p1",
		Visibility: models.CostVisibilityPublic,
	}, false)
	if !errors.Is(err, utils.ErrorForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if len(src.queries) != 0 {
		t.Fatalf("no data may be fetched for a non-owner")
	}
}

func TestCalculateProjectCosting_ExcludedExpensesAreExplicitZero(t *testing.T) {
	src, rates, expenses, store := costingFixture()
	rr := decimal.NewFromFloat(0.5)

	result, err := CalculateProjectCosting(context.Background(), src, rates, expenses, store, &CostingRequest{
		ProjectId:             "p1",
		IncludeSubcontractors: false,
		IncludeOPE:            false,
		Visibility:            models.CostVisibilityFinanceOnly,
		RealizationRate:       &rr,
	}, true)
	if err != nil {
		t.Fatalf("CalculateProjectCosting: %v", err)
	}

	c := result.Costing
	if c.SubcontractorCost == nil || !c.SubcontractorCost.IsZero() {
		t.Fatalf("excluded subcontractor cost must be an explicit zero, got %v", c.SubcontractorCost)
	}
	if c.OutOfPocketExpense == nil || !c.OutOfPocketExpense.IsZero() {
		t.Fatalf("excluded OPE must be an explicit zero, got %v", c.OutOfPocketExpense)
	}
	// 4000 - 2800 - 0 - 0 = 1200.
	if !c.GrossMargin.Equal(decimal.NewFromInt(1200)) {
		t.Fatalf("expected margin 1200 without expenses, got %s", c.GrossMargin)
	}
}

func TestCalculateProjectCosting_RealizationRateValidation(t *testing.T) {
	src, rates, expenses, store := costingFixture()

	for _, bad := range []decimal.Decimal{decimal.Zero, decimal.NewFromFloat(1.01), decimal.NewFromFloat(-0.4)} {
		rr := bad
		_, err := CalculateProjectCosting(context.Background(), src, rates, expenses, store, &CostingRequest{
			ProjectId:       "p1",
			Visibility:      models.CostVisibilityPublic,
			RealizationRate: &rr,
		}, true)
		if !utils.IsValidationError(err) {
			t.Fatalf("realization rate %s must fail validation, got %v", bad, err)
		}
	}
}

func TestApplyCostVisibilityFilter_Tiers(t *testing.T) {
	figures := CostingFigures{
		GrossServiceRevenue: decimal.NewFromInt(8000),
		NetServiceRevenue:   decimal.NewFromInt(3440),
		InternalCost:        decimal.NewFromInt(2800),
		SubcontractorCost:   decimal.NewFromInt(500),
		OutOfPocketExpense:  decimal.NewFromInt(100),
		GrossMargin:         decimal.NewFromInt(40),
		MarginPercentage:    decimal.NewFromFloat(1.162791),
		RealizationRate:     decimal.NewFromFloat(0.43),
	}

	public := ApplyCostVisibilityFilter(figures, models.CostVisibilityPublic)
	if public.GrossServiceRevenue != nil || public.NetServiceRevenue != nil ||
		public.InternalCost != nil || public.GrossMargin != nil || public.RealizationRate != nil {
		t.Fatalf("PUBLIC must redact every cost field: %+v", public)
	}

	presales := ApplyCostVisibilityFilter(figures, models.CostVisibilityPresalesAndFinance)
	if presales.GrossServiceRevenue == nil || presales.NetServiceRevenue == nil {
		t.Fatalf("PRESALES_AND_FINANCE must expose revenue figures: %+v", presales)
	}
	if presales.InternalCost != nil || presales.GrossMargin != nil || presales.RealizationRate != nil {
		t.Fatalf("PRESALES_AND_FINANCE must redact cost and margin figures: %+v", presales)
	}

	finance := ApplyCostVisibilityFilter(figures, models.CostVisibilityFinanceOnly)
	if finance.InternalCost == nil || finance.SubcontractorCost == nil || finance.OutOfPocketExpense == nil ||
		finance.GrossMargin == nil || finance.MarginPercentage == nil || finance.RealizationRate == nil {
		t.Fatalf("FINANCE_ONLY must expose everything: %+v", finance)
	}
}

func TestCostingSnapshot_StoresFullFiguresRegardlessOfVisibility(t *testing.T) {
	src, rates, expenses, store := costingFixture()
	rr := decimal.NewFromFloat(0.5)

	result, err := CalculateProjectCosting(context.Background(), src, rates, expenses, store, &CostingRequest{
		ProjectId:             "p1",
		IncludeSubcontractors: true,
		IncludeOPE:            true,
		Visibility:            models.CostVisibilityPublic,
		SaveToDatabase:        true,
		RealizationRate:       &rr,
	}, true)
	if err != nil {
		t.Fatalf("CalculateProjectCosting: %v", err)
	}
	if !result.Saved || store.upserts != 1 {
		t.Fatalf("expected exactly one snapshot upsert")
	}
	// The response is redacted at PUBLIC even though the snapshot is full.
	if result.Costing.GrossServiceRevenue != nil {
		t.Fatalf("PUBLIC response must stay redacted: %+v", result.Costing)
	}

	snapshot := store.snapshots["p1"]
	if snapshot == nil {
		t.Fatal("snapshot missing from store")
	}
	if !snapshot.TotalGSR.Equal(decimal.NewFromInt(8000)) || !snapshot.GrossMargin.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("snapshot must carry full figures: %+v", snapshot)
	}

	// Reading back at FINANCE_ONLY recovers everything.
	view, err := GetProjectCosting(context.Background(), store, "p1", models.CostVisibilityFinanceOnly)
	if err != nil {
		t.Fatalf("GetProjectCosting: %v", err)
	}
	if view.Costing.GrossMargin == nil || !view.Costing.GrossMargin.Equal(decimal.NewFromInt(600)) {
		t.Fatalf("stored margin must survive the round trip: %+v", view.Costing)
	}
	if !view.Breakdown.ByRegion["EMEA"].Equal(decimal.NewFromInt(8000)) {
		t.Fatalf("stored breakdown must survive the round trip: %+v", view.Breakdown)
	}
}

func TestGetProjectCosting_PublicReaderSeesNoFigures(t *testing.T) {
	src, rates, expenses, store := costingFixture()
	rr := decimal.NewFromFloat(0.5)

	_, err := CalculateProjectCosting(context.Background(), src, rates, expenses, store, &CostingRequest{
		ProjectId:       "p1",
		Visibility:      models.CostVisibilityFinanceOnly,
		SaveToDatabase:  true,
		RealizationRate: &rr,
	}, true)
	if err != nil {
		t.Fatalf("CalculateProjectCosting: %v", err)
	}

	view, err := GetProjectCosting(context.Background(), store, "p1", models.CostVisibilityPublic)
	if err != nil {
		t.Fatalf("GetProjectCosting: %v", err)
	}
	if view.Costing.GrossServiceRevenue != nil || view.Costing.GrossMargin != nil {
		t.Fatalf("PUBLIC reader must see no figures even from a FINANCE_ONLY save: %+v", view.Costing)
	}
	if len(view.Breakdown.ByRegion) != 0 || len(view.Breakdown.ByDesignation) != 0 {
		t.Fatalf("PUBLIC reader must see empty breakdowns: %+v", view.Breakdown)
	}
}

func TestCostingSnapshot_RecordsCalculatingUser(t *testing.T) {
	src, rates, expenses, store := costingFixture()
	rr := decimal.NewFromFloat(0.5)

	// Context shaped the way the auth middleware builds it from a token.
	ctx := utils.SetTokenInContext(context.Background(), "opaque-token")
	ctx = utils.SetUserIdInContext(ctx, 7)
	ctx = utils.SetUsernameInContext(ctx, "aye.chan")
	ctx = utils.SetIsAdminInContext(ctx, true)

	_, err := CalculateProjectCosting(ctx, src, rates, expenses, store, &CostingRequest{
		ProjectId:       "p1",
		Visibility:      models.CostVisibilityFinanceOnly,
		SaveToDatabase:  true,
		RealizationRate: &rr,
	}, true)
	if err != nil {
		t.Fatalf("CalculateProjectCosting: %v", err)
	}

	snapshot := store.snapshots["p1"]
	if snapshot == nil {
		t.Fatal("snapshot missing from store")
	}
	if snapshot.CalculatedBy != "aye.chan" {
		t.Fatalf("expected calculatedBy from the session username, got %q", snapshot.CalculatedBy)
	}
}

func TestCostingSnapshot_CalculatedByFallsBackToUserId(t *testing.T) {
	src, rates, expenses, store := costingFixture()
	rr := decimal.NewFromFloat(0.5)

	// A token without a username claim still identifies the caller by id.
	ctx := utils.SetUserIdInContext(context.Background(), 7)
	ctx = utils.SetIsAdminInContext(ctx, true)

	_, err := CalculateProjectCosting(ctx, src, rates, expenses, store, &CostingRequest{
		ProjectId:       "p1",
		Visibility:      models.CostVisibilityFinanceOnly,
		SaveToDatabase:  true,
		RealizationRate: &rr,
	}, true)
	if err != nil {
		t.Fatalf("CalculateProjectCosting: %v", err)
	}

	snapshot := store.snapshots["p1"]
	if snapshot == nil {
		t.Fatal("snapshot missing from store")
	}
	if snapshot.CalculatedBy != "user:7" {
		t.Fatalf("expected user-id fallback, got %q", snapshot.CalculatedBy)
	}
}

func TestGetProjectCosting_MissingSnapshot(t *testing.T) {
	store := &fakeSnapshotStore{}
	_, err := GetProjectCosting(context.Background(), store, "nope", models.CostVisibilityPublic)
	if !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("expected record-not-found, got %v", err)
	}
}

func TestBuildCostingFigures_ZeroRevenueMeansZeroMarginPercent(t *testing.T) {
	src := &fakeAllocationSource{}
	rates := &fakeRateResolver{rates: map[string]decimal.Decimal{}}
	store := &fakeSnapshotStore{}
	rr := decimal.NewFromFloat(0.5)

	result, err := CalculateProjectCosting(context.Background(), src, rates, &fakeExpenseSource{}, store, &CostingRequest{
		ProjectId:       "empty",
		Visibility:      models.CostVisibilityFinanceOnly,
		RealizationRate: &rr,
	}, true)
	if err != nil {
		t.Fatalf("a project with no allocations must still cost out: %v", err)
	}
	if !result.Costing.MarginPercentage.IsZero() {
		t.Fatalf("margin percent must be zero when NSR is zero, got %s", result.Costing.MarginPercentage)
	}
}
