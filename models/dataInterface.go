package models

import (
	"context"

	"github.com/shopspring/decimal"
)

// Contracts consumed by the report/costing layer. The Db* types below are
// the production implementations; tests feed in-memory fakes.

type AllocationSource interface {
	// FindAllocations returns rows ordered by (resourceId, weekStartDate)
	// ascending.
	FindAllocations(ctx context.Context, filter AllocationFilter) ([]AllocationRow, error)
}

type RateResolver interface {
	// ResolveRate maps (region, designation) to an hourly standard rate.
	// Fails with utils.ErrorRateNotFound when no entry exists.
	ResolveRate(ctx context.Context, region string, designation string) (decimal.Decimal, error)
}

type ExpenseSource interface {
	SumExpenses(ctx context.Context, projectId string, versionId *int, expenseType ProjectExpenseType) (decimal.Decimal, error)
}

type SnapshotStore interface {
	Upsert(ctx context.Context, snapshot *CostingSnapshot) error
	Get(ctx context.Context, projectId string) (*CostingSnapshot, error)
}

type ResourceDirectory interface {
	// DisplayName never fails; a dangling id resolves to the id itself.
	DisplayName(ctx context.Context, resourceId string) (name string, designation string)
}

type DbAllocationSource struct{}

func (DbAllocationSource) FindAllocations(ctx context.Context, filter AllocationFilter) ([]AllocationRow, error) {
	return FindAllocations(ctx, filter)
}

type DbRateResolver struct{}

func (DbRateResolver) ResolveRate(ctx context.Context, region string, designation string) (decimal.Decimal, error) {
	return ResolveStandardRate(ctx, region, designation)
}

type DbExpenseSource struct{}

func (DbExpenseSource) SumExpenses(ctx context.Context, projectId string, versionId *int, expenseType ProjectExpenseType) (decimal.Decimal, error) {
	return SumProjectExpenses(ctx, projectId, versionId, expenseType)
}

type DbSnapshotStore struct{}

func (DbSnapshotStore) Upsert(ctx context.Context, snapshot *CostingSnapshot) error {
	return UpsertCostingSnapshot(ctx, snapshot)
}

func (DbSnapshotStore) Get(ctx context.Context, projectId string) (*CostingSnapshot, error) {
	return GetCostingSnapshot(ctx, projectId)
}

type DbResourceDirectory struct{}

func (DbResourceDirectory) DisplayName(ctx context.Context, resourceId string) (string, string) {
	return GetResourceDisplayName(ctx, resourceId)
}
