package models

import (
	"log"

	"github.com/mmdatafocus/compensacao_backend/config"
)

func MigrateTable() {
	db := config.GetDB()
	if db == nil {
		log.Println("database not initialized; skipping migrations")
		return
	}

	err := db.AutoMigrate(
		&RemediationAudit{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
