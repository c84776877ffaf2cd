package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/capacity_backend/config"
	"bitbucket.org/mmdatafocus/capacity_backend/models"
	"bitbucket.org/mmdatafocus/capacity_backend/models/reports"
	"bitbucket.org/mmdatafocus/capacity_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type signinRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type detectConflictsRequest struct {
	ResourceId        string           `json:"resourceId"`
	WeekStart         *string          `json:"weekStart"`
	WeekEnd           *string          `json:"weekEnd"`
	VersionId         *int             `json:"versionId"`
	CriticalThreshold *decimal.Decimal `json:"criticalThreshold"`
	WarningThreshold  *decimal.Decimal `json:"warningThreshold"`
	IncludeProjects   []string         `json:"includeProjects"`
}

type calculateCostingRequest struct {
	ProjectId             string           `json:"projectId" binding:"required"`
	VersionNumber         *int             `json:"versionNumber"`
	IncludeSubcontractors bool             `json:"includeSubcontractors"`
	IncludeOPE            bool             `json:"includeOPE"`
	Visibility            string           `json:"visibility" binding:"required"`
	SaveToDatabase        bool             `json:"saveToDatabase"`
	RealizationRate       *decimal.Decimal `json:"realizationRate"`
}

// respondError maps the error taxonomy onto HTTP statuses. Anything outside
// the taxonomy is logged with context and surfaced as a generic internal
// error; repository internals never leak to the caller.
func respondError(c *gin.Context, moduleName string, funcName string, err error) {
	var ve *utils.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": ve.Fields})
	case errors.Is(err, utils.ErrorUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, utils.ErrorForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, utils.ErrorRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, utils.ErrorRateNotFound):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, utils.ErrorTransientStorage):
		config.LogError(config.GetLogger(), moduleName, funcName, "storage retries exhausted", nil, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage temporarily unavailable"})
	default:
		config.LogError(config.GetLogger(), moduleName, funcName, "unexpected error", nil, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": utils.ProcessValidationErrors(err)})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
}

func requireUser(c *gin.Context) (context.Context, bool) {
	ctx := c.Request.Context()
	if _, ok := utils.GetUserIdFromContext(ctx); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return ctx, false
	}
	return ctx, true
}

// parseDateParam accepts a plain date or a full RFC3339 timestamp.
func parseDateParam(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func signinHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req signinRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		token, user, err := models.Signin(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			respondError(c, "handlers.go", "signinHandler", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"token": token,
			"user": gin.H{
				"id":       user.ID,
				"username": user.Username,
				"name":     user.Name,
			},
		})
	}
}

func buildConflictRequest(req *detectConflictsRequest) (*reports.ConflictDetectionRequest, error) {
	weekStart, err := parseDateParam(utils.DereferencePtr(req.WeekStart))
	if err != nil {
		return nil, utils.NewValidationError("weekStart", "invalid date")
	}
	weekEnd, err := parseDateParam(utils.DereferencePtr(req.WeekEnd))
	if err != nil {
		return nil, utils.NewValidationError("weekEnd", "invalid date")
	}
	return &reports.ConflictDetectionRequest{
		ResourceId:        req.ResourceId,
		WeekStart:         weekStart,
		WeekEnd:           weekEnd,
		VersionId:         req.VersionId,
		CriticalThreshold: req.CriticalThreshold,
		WarningThreshold:  req.WarningThreshold,
		IncludeProjects:   req.IncludeProjects,
	}, nil
}

func detectConflictsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, ok := requireUser(c)
		if !ok {
			return
		}
		ctx, span := tracer.Start(ctx, "DetectConflicts")
		defer span.End()

		var wire detectConflictsRequest
		if err := c.ShouldBindJSON(&wire); err != nil {
			bindError(c, err)
			return
		}
		req, err := buildConflictRequest(&wire)
		if err != nil {
			respondError(c, "handlers.go", "detectConflictsHandler", err)
			return
		}

		accessible, err := models.AccessibleProjectIds(ctx)
		if err != nil {
			respondError(c, "handlers.go", "detectConflictsHandler", err)
			return
		}

		report, err := reports.DetectConflicts(ctx, models.DbAllocationSource{}, req, accessible)
		if err != nil {
			respondError(c, "handlers.go", "detectConflictsHandler", err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func resourceUtilizationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, ok := requireUser(c)
		if !ok {
			return
		}

		accessible, err := models.AccessibleProjectIds(ctx)
		if err != nil {
			respondError(c, "handlers.go", "resourceUtilizationHandler", err)
			return
		}

		summary, err := reports.GetResourceUtilization(ctx, models.DbAllocationSource{}, models.DbResourceDirectory{}, c.Param("resourceId"), accessible)
		if err != nil {
			respondError(c, "handlers.go", "resourceUtilizationHandler", err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

func calculateCostingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, ok := requireUser(c)
		if !ok {
			return
		}
		ctx, span := tracer.Start(ctx, "CalculateProjectCosting")
		defer span.End()

		var wire calculateCostingRequest
		if err := c.ShouldBindJSON(&wire); err != nil {
			bindError(c, err)
			return
		}
		visibility, err := models.ParseCostVisibility(wire.Visibility)
		if err != nil {
			respondError(c, "handlers.go", "calculateCostingHandler", utils.NewValidationError("visibility", "must be PUBLIC, PRESALES_AND_FINANCE or FINANCE_ONLY"))
			return
		}

		isOwner, err := models.HasProjectRole(ctx, wire.ProjectId, models.ProjectRoleOwner)
		if err != nil {
			respondError(c, "handlers.go", "calculateCostingHandler", err)
			return
		}

		result, err := reports.CalculateProjectCosting(ctx,
			models.DbAllocationSource{},
			models.DbRateResolver{},
			models.DbExpenseSource{},
			models.DbSnapshotStore{},
			&reports.CostingRequest{
				ProjectId:             wire.ProjectId,
				VersionNumber:         wire.VersionNumber,
				IncludeSubcontractors: wire.IncludeSubcontractors,
				IncludeOPE:            wire.IncludeOPE,
				Visibility:            visibility,
				SaveToDatabase:        wire.SaveToDatabase,
				RealizationRate:       wire.RealizationRate,
			},
			isOwner,
		)
		if err != nil {
			respondError(c, "handlers.go", "calculateCostingHandler", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func getCostingHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, ok := requireUser(c)
		if !ok {
			return
		}

		projectId := c.Param("projectId")
		visibility, err := models.ParseCostVisibility(c.DefaultQuery("visibility", string(models.CostVisibilityPublic)))
		if err != nil {
			respondError(c, "handlers.go", "getCostingHandler", utils.NewValidationError("visibility", "must be PUBLIC, PRESALES_AND_FINANCE or FINANCE_ONLY"))
			return
		}

		isMember, err := models.HasProjectRole(ctx, projectId, models.ProjectRoleOwner, models.ProjectRoleEditor, models.ProjectRoleViewer)
		if err != nil {
			respondError(c, "handlers.go", "getCostingHandler", err)
			return
		}
		if !isMember {
			respondError(c, "handlers.go", "getCostingHandler", utils.ErrorForbidden)
			return
		}

		view, err := reports.GetProjectCosting(ctx, models.DbSnapshotStore{}, projectId, visibility)
		if err != nil {
			respondError(c, "handlers.go", "getCostingHandler", err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// conflictRequestFromQuery maps the export endpoint's query params onto the
// same filter surface the JSON detect endpoint accepts.
func conflictRequestFromQuery(c *gin.Context) (*reports.ConflictDetectionRequest, error) {
	wire := detectConflictsRequest{
		ResourceId: c.Query("resourceId"),
		WeekStart:  utils.NilIfEmpty(c.Query("weekStart")),
		WeekEnd:    utils.NilIfEmpty(c.Query("weekEnd")),
	}
	if v := strings.TrimSpace(c.Query("versionId")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, utils.NewValidationError("versionId", "invalid integer")
		}
		wire.VersionId = &n
	}
	if v := strings.TrimSpace(c.Query("criticalThreshold")); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, utils.NewValidationError("criticalThreshold", "invalid decimal")
		}
		wire.CriticalThreshold = &d
	}
	if v := strings.TrimSpace(c.Query("warningThreshold")); v != "" {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, utils.NewValidationError("warningThreshold", "invalid decimal")
		}
		wire.WarningThreshold = &d
	}
	if v := strings.TrimSpace(c.Query("includeProjects")); v != "" {
		wire.IncludeProjects = splitAndTrim(v)
	}
	return buildConflictRequest(&wire)
}

func exportConflictsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, ok := requireUser(c)
		if !ok {
			return
		}

		req, err := conflictRequestFromQuery(c)
		if err != nil {
			respondError(c, "handlers.go", "exportConflictsHandler", err)
			return
		}

		accessible, err := models.AccessibleProjectIds(ctx)
		if err != nil {
			respondError(c, "handlers.go", "exportConflictsHandler", err)
			return
		}

		report, err := reports.DetectConflicts(ctx, models.DbAllocationSource{}, req, accessible)
		if err != nil {
			respondError(c, "handlers.go", "exportConflictsHandler", err)
			return
		}

		if err := reports.ExportConflictReportExcel(c.Writer, report); err != nil {
			config.LogError(config.GetLogger(), "handlers.go", "exportConflictsHandler", "excel write failed", nil, err)
		}
	}
}
