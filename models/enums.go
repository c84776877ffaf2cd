package models

import (
	"errors"
)

// WeekNumberingType describes how a WeeklyAllocation's WeekNumber is
// interpreted. Each project picks its own scheme; numbers are never
// reconciled across projects.
type WeekNumberingType string

const (
	WeekNumberingTypeProjectRelative WeekNumberingType = "PROJECT_RELATIVE"
	WeekNumberingTypeIsoWeek         WeekNumberingType = "ISO_WEEK"
	WeekNumberingTypeCalendarWeek    WeekNumberingType = "CALENDAR_WEEK"
)

func (t WeekNumberingType) IsValid() bool {
	switch t {
	case WeekNumberingTypeProjectRelative, WeekNumberingTypeIsoWeek, WeekNumberingTypeCalendarWeek:
		return true
	}
	return false
}

// ConflictSeverity is always derived, never persisted.
type ConflictSeverity string

const (
	ConflictSeverityCritical ConflictSeverity = "CRITICAL"
	ConflictSeverityWarning  ConflictSeverity = "WARNING"
	ConflictSeverityInfo     ConflictSeverity = "INFO"
)

// WeekCapacityStatus tags a week in the utilization breakdown.
type WeekCapacityStatus string

const (
	WeekStatusOverAllocated WeekCapacityStatus = "OVER_ALLOCATED"
	WeekStatusAtCapacity    WeekCapacityStatus = "AT_CAPACITY"
	WeekStatusAvailable     WeekCapacityStatus = "AVAILABLE"
)

// CostVisibility is the tier used to redact cost fields in responses.
// Access is strictly increasing: PUBLIC < PRESALES_AND_FINANCE < FINANCE_ONLY.
type CostVisibility string

const (
	CostVisibilityPublic             CostVisibility = "PUBLIC"
	CostVisibilityPresalesAndFinance CostVisibility = "PRESALES_AND_FINANCE"
	CostVisibilityFinanceOnly        CostVisibility = "FINANCE_ONLY"
)

var errInvalidCostVisibility = errors.New("invalid cost visibility level")

func (v CostVisibility) IsValid() bool {
	switch v {
	case CostVisibilityPublic, CostVisibilityPresalesAndFinance, CostVisibilityFinanceOnly:
		return true
	}
	return false
}

func (v CostVisibility) rank() int {
	switch v {
	case CostVisibilityPresalesAndFinance:
		return 1
	case CostVisibilityFinanceOnly:
		return 2
	}
	return 0
}

// AtLeast reports whether v grants at least the access of other.
func (v CostVisibility) AtLeast(other CostVisibility) bool {
	return v.rank() >= other.rank()
}

func ParseCostVisibility(s string) (CostVisibility, error) {
	v := CostVisibility(s)
	if !v.IsValid() {
		return "", errInvalidCostVisibility
	}
	return v, nil
}

// ProjectRole is a member's role within one project.
type ProjectRole string

const (
	ProjectRoleOwner  ProjectRole = "OWNER"
	ProjectRoleEditor ProjectRole = "EDITOR"
	ProjectRoleViewer ProjectRole = "VIEWER"
)

func (r ProjectRole) IsValid() bool {
	switch r {
	case ProjectRoleOwner, ProjectRoleEditor, ProjectRoleViewer:
		return true
	}
	return false
}

// ProjectExpenseType separates delegated cost sub-ledgers.
type ProjectExpenseType string

const (
	ProjectExpenseTypeSubcontractor ProjectExpenseType = "SUBCONTRACTOR"
	ProjectExpenseTypeOutOfPocket   ProjectExpenseType = "OPE"
)
