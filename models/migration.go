package models

import (
	"log"

	"bitbucket.org/mmdatafocus/capacity_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Project{}, &ProjectMember{},
		&Resource{},
		&WeeklyAllocation{},
		&StandardRate{},
		&ProjectExpense{},
		&CostingSnapshot{},
		&User{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
