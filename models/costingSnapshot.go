package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/capacity_backend/config"
	"bitbucket.org/mmdatafocus/capacity_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CostingSnapshot is the single persisted costing record per project.
// Saves overwrite the previous snapshot (no history). Figures are always
// stored unfiltered; visibility redaction is reapplied on every read using
// the reader's tier, not the tier in effect at save time.
type CostingSnapshot struct {
	ProjectId              string          `gorm:"primaryKey;size:64" json:"project_id"`
	VersionNumber          *int            `json:"version_number"`
	TotalGSR               decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_gsr"`
	TotalNSR               decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_nsr"`
	TotalInternalCost      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_internal_cost"`
	TotalSubcontractorCost decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_subcontractor_cost"`
	TotalOPE               decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_ope"`
	GrossMargin            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"gross_margin"`
	MarginPercent          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"margin_percent"`
	RealizationRate        decimal.Decimal `gorm:"type:decimal(10,4);default:0" json:"realization_rate"`
	ByRegion               []byte          `gorm:"type:json" json:"by_region"`
	ByDesignation          []byte          `gorm:"type:json" json:"by_designation"`
	CalculatedBy           string          `gorm:"size:255" json:"calculated_by"`
	CalculatedAt           time.Time       `json:"calculated_at"`
	CreatedAt              time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// Breakdown maps are stored as JSON objects of decimal strings so the stored
// figures round-trip exactly.
func (s *CostingSnapshot) SetBreakdowns(byRegion map[string]decimal.Decimal, byDesignation map[string]decimal.Decimal) error {
	regionBytes, err := json.Marshal(decimalMapToStrings(byRegion))
	if err != nil {
		return err
	}
	designationBytes, err := json.Marshal(decimalMapToStrings(byDesignation))
	if err != nil {
		return err
	}
	s.ByRegion = regionBytes
	s.ByDesignation = designationBytes
	return nil
}

func (s *CostingSnapshot) Breakdowns() (byRegion map[string]decimal.Decimal, byDesignation map[string]decimal.Decimal, err error) {
	byRegion, err = decimalMapFromJSON(s.ByRegion)
	if err != nil {
		return nil, nil, err
	}
	byDesignation, err = decimalMapFromJSON(s.ByDesignation)
	if err != nil {
		return nil, nil, err
	}
	return byRegion, byDesignation, nil
}

func decimalMapToStrings(m map[string]decimal.Decimal) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v.String()
	}
	return out
}

func decimalMapFromJSON(raw []byte) (map[string]decimal.Decimal, error) {
	if len(raw) == 0 {
		return map[string]decimal.Decimal{}, nil
	}
	var strs map[string]string
	if err := json.Unmarshal(raw, &strs); err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(strs))
	for k, v := range strs {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, err
		}
		out[k] = d
	}
	return out, nil
}

// UpsertCostingSnapshot writes the snapshot keyed by project id, overwriting
// any prior row. Concurrency relies on the database's native upsert
// atomicity; concurrent saves for the same project resolve to last write
// wins. No application-level locking.
func UpsertCostingSnapshot(ctx context.Context, snapshot *CostingSnapshot) error {
	db := config.GetDB()

	_, err := utils.WithTransientRetry(ctx, "UpsertCostingSnapshot", func() (struct{}, error) {
		err := db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "project_id"}},
				UpdateAll: true,
			}).
			Create(snapshot).Error
		return struct{}{}, err
	})
	return err
}

// GetCostingSnapshot returns the stored snapshot or ErrorRecordNotFound.
func GetCostingSnapshot(ctx context.Context, projectId string) (*CostingSnapshot, error) {
	db := config.GetDB()

	snapshot, err := utils.WithTransientRetry(ctx, "GetCostingSnapshot", func() (*CostingSnapshot, error) {
		var snapshot CostingSnapshot
		err := db.WithContext(ctx).Where("project_id = ?", projectId).First(&snapshot).Error
		if err != nil {
			return nil, err
		}
		return &snapshot, nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return snapshot, nil
}
