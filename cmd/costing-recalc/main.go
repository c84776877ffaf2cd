// costing-recalc recomputes and overwrites the costing snapshot for every
// project (or one project via -project-id). Snapshots always store full
// figures; visibility filtering is a read-time concern, so this tool runs
// with full fidelity.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/costing-recalc
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/capacity_backend/config"
	"bitbucket.org/mmdatafocus/capacity_backend/models"
	"bitbucket.org/mmdatafocus/capacity_backend/models/reports"
	"bitbucket.org/mmdatafocus/capacity_backend/utils"
)

func main() {
	projectID := flag.String("project-id", "", "Optional: recalc only one project. If empty, recalcs all projects.")
	flag.Parse()

	ctx := context.Background()
	// Explicit DB connect (config no longer connects DB in init()).
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 0)
	ctx = utils.SetUserNameInContext(ctx, "CostingRecalc")
	ctx = utils.SetIsAdminInContext(ctx, true)

	var projectIds []string
	query := db.WithContext(ctx).Model(&models.Project{})
	if strings.TrimSpace(*projectID) != "" {
		query = query.Where("id = ?", strings.TrimSpace(*projectID))
	}
	if err := query.Pluck("id", &projectIds).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to list projects: %v\n", err)
		os.Exit(1)
	}
	if len(projectIds) == 0 {
		fmt.Fprintln(os.Stderr, "no projects found to recalc")
		return
	}

	var failed int
	for _, id := range projectIds {
		_, err := reports.CalculateProjectCosting(ctx,
			models.DbAllocationSource{},
			models.DbRateResolver{},
			models.DbExpenseSource{},
			models.DbSnapshotStore{},
			&reports.CostingRequest{
				ProjectId:             id,
				IncludeSubcontractors: true,
				IncludeOPE:            true,
				Visibility:            models.CostVisibilityFinanceOnly,
				SaveToDatabase:        true,
			},
			true,
		)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "project %s: %v\n", id, err)
			continue
		}
		fmt.Printf("project %s: snapshot updated\n", id)
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d/%d projects failed\n", failed, len(projectIds))
		os.Exit(1)
	}
}
