package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"bitbucket.org/mmdatafocus/capacity_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func queryContext(t *testing.T, target string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	return c
}

func TestConflictRequestFromQuery_FullFilterSurface(t *testing.T) {
	c := queryContext(t, "/api/export/conflicts"+
		"?resourceId=r1&weekStart=2026-01-05&weekEnd=2026-01-30"+
		"&versionId=2&criticalThreshold=120&warningThreshold=90"+
		"&includeProjects=p1,p2")

	req, err := conflictRequestFromQuery(c)
	if err != nil {
		t.Fatalf("conflictRequestFromQuery: %v", err)
	}
	if req.ResourceId != "r1" {
		t.Fatalf("unexpected resourceId %q", req.ResourceId)
	}
	if req.WeekStart == nil || req.WeekStart.Format("2006-01-02") != "2026-01-05" {
		t.Fatalf("unexpected weekStart %v", req.WeekStart)
	}
	if req.WeekEnd == nil || req.WeekEnd.Format("2006-01-02") != "2026-01-30" {
		t.Fatalf("unexpected weekEnd %v", req.WeekEnd)
	}
	if req.VersionId == nil || *req.VersionId != 2 {
		t.Fatalf("unexpected versionId %v", req.VersionId)
	}
	if req.CriticalThreshold == nil || !req.CriticalThreshold.Equal(decimal.NewFromInt(120)) {
		t.Fatalf("unexpected criticalThreshold %v", req.CriticalThreshold)
	}
	if req.WarningThreshold == nil || !req.WarningThreshold.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("unexpected warningThreshold %v", req.WarningThreshold)
	}
	if len(req.IncludeProjects) != 2 || req.IncludeProjects[0] != "p1" || req.IncludeProjects[1] != "p2" {
		t.Fatalf("unexpected includeProjects %v", req.IncludeProjects)
	}
}

func TestConflictRequestFromQuery_OmittedParamsStayUnset(t *testing.T) {
	c := queryContext(t, "/api/export/conflicts")

	req, err := conflictRequestFromQuery(c)
	if err != nil {
		t.Fatalf("conflictRequestFromQuery: %v", err)
	}
	if req.ResourceId != "" || req.WeekStart != nil || req.WeekEnd != nil ||
		req.VersionId != nil || req.CriticalThreshold != nil || req.WarningThreshold != nil ||
		len(req.IncludeProjects) != 0 {
		t.Fatalf("expected empty filter, got %+v", req)
	}
}

func TestConflictRequestFromQuery_RejectsMalformedValues(t *testing.T) {
	cases := []string{
		"/api/export/conflicts?versionId=abc",
		"/api/export/conflicts?criticalThreshold=lots",
		"/api/export/conflicts?warningThreshold=1..2",
		"/api/export/conflicts?weekStart=notadate",
	}
	for _, target := range cases {
		c := queryContext(t, target)
		if _, err := conflictRequestFromQuery(c); !utils.IsValidationError(err) {
			t.Fatalf("%s: expected validation error, got %v", target, err)
		}
	}
}
