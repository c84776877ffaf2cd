package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/capacity_backend/config"
	"bitbucket.org/mmdatafocus/capacity_backend/utils"
	"github.com/shopspring/decimal"
)

// ProjectExpense is one subcontractor-cost or out-of-pocket entry booked
// against a project. The costing engine only ever needs per-type sums.
type ProjectExpense struct {
	ID               int                `gorm:"primary_key" json:"id"`
	ProjectId        string             `gorm:"size:64;not null;index:idx_pe_project_type,priority:1" json:"project_id" binding:"required"`
	ExpenseType      ProjectExpenseType `gorm:"type:enum('SUBCONTRACTOR','OPE');not null;index:idx_pe_project_type,priority:2" json:"expense_type" binding:"required"`
	Description      string             `gorm:"size:255" json:"description"`
	Amount           decimal.Decimal    `gorm:"type:decimal(20,4);default:0" json:"amount"`
	ProjectVersionId *int               `json:"project_version_id"`
	IncurredOn       time.Time          `json:"incurred_on"`
	CreatedAt        time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

// SumProjectExpenses totals one expense type for a project, optionally
// narrowed to a plan version.
func SumProjectExpenses(ctx context.Context, projectId string, versionId *int, expenseType ProjectExpenseType) (decimal.Decimal, error) {
	db := config.GetDB()

	return utils.WithTransientRetry(ctx, "SumProjectExpenses", func() (decimal.Decimal, error) {
		query := db.WithContext(ctx).Model(&ProjectExpense{}).
			Where("project_id = ? AND expense_type = ?", projectId, expenseType)
		if versionId != nil {
			query = query.Where("project_version_id = ?", *versionId)
		}

		var totalStr *string
		if err := query.Select("SUM(amount)").Scan(&totalStr).Error; err != nil {
			return decimal.Zero, err
		}
		if totalStr == nil {
			return decimal.Zero, nil
		}
		return utils.ParseDecimal(*totalStr)
	})
}
