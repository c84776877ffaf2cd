// seed-admin creates or updates the admin console user (username: capacityAdmin)
// and, with -rates, loads a starter rate card so costing works out of the box.
// Admin users see every project and bypass membership checks.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/seed-admin
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/capacity_backend/config"
	"bitbucket.org/mmdatafocus/capacity_backend/models"
	"bitbucket.org/mmdatafocus/capacity_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	adminUsername = "capacityAdmin"
	adminPassword = "C@pacityAdmin"
	adminName     = "Capacity Admin"
)

func main() {
	seedRates := flag.Bool("rates", false, "Also seed a starter standard rate card.")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	if *seedRates {
		if err := seedRateCard(ctx, db); err != nil {
			fmt.Fprintf(os.Stderr, "failed to seed rate card: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Seeded starter rate card")
	}

	hashed, err := utils.HashPassword(adminPassword)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	hashedStr := string(hashed)

	var existing models.User
	err = db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).First(&existing).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		// Create new admin user
		u := models.User{
			Username: adminUsername,
			Name:     adminName,
			Password: hashedStr,
			IsAdmin:  utils.NewTrue(),
		}
		if err := db.WithContext(ctx).Create(&u).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: username=%q\n", adminUsername)
		return
	}

	// Update existing user: ensure password and admin flag
	if err := db.WithContext(ctx).Model(&models.User{}).Where("username = ?", adminUsername).Updates(map[string]any{
		"password": hashedStr,
		"name":     adminName,
		"is_admin": utils.NewTrue(),
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Updated admin user: username=%q\n", adminUsername)
}

// seedRateCard upserts a small (region, designation) rate matrix. Existing
// entries are overwritten so reruns converge to the same card.
func seedRateCard(ctx context.Context, db *gorm.DB) error {
	type entry struct {
		region      string
		designation string
		rate        string
	}
	entries := []entry{
		{"EMEA", "Consultant", "100"},
		{"EMEA", "Senior Consultant", "140"},
		{"EMEA", "Solution Architect", "180"},
		{"APAC", "Consultant", "70"},
		{"APAC", "Senior Consultant", "100"},
		{"APAC", "Solution Architect", "135"},
		{"AMER", "Consultant", "120"},
		{"AMER", "Senior Consultant", "165"},
		{"AMER", "Solution Architect", "210"},
	}

	for _, e := range entries {
		rate, err := decimal.NewFromString(e.rate)
		if err != nil {
			return err
		}
		row := models.StandardRate{
			Region:      e.region,
			Designation: e.designation,
			RatePerHour: rate,
		}
		err = db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "region"}, {Name: "designation"}},
				DoUpdates: clause.AssignmentColumns([]string{"rate_per_hour"}),
			}).
			Create(&row).Error
		if err != nil {
			return err
		}
	}
	return nil
}
