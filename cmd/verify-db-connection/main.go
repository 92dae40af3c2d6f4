package main

import (
	"fmt"
	"log"

	"github.com/lucifer1017/yieldforge/internal/config"
	"github.com/lucifer1017/yieldforge/internal/db"
)

// Ops helper: checks that the database is reachable and the expected tables
// exist after migration.
func main() {
	fmt.Println("🔍 Verifying database connection...")

	if err := config.LoadConfig(""); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db.InitDB()

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatalf("Failed to get database connection: %v", err)
	}
	defer sqlDB.Close()

	var dbName string
	if err := sqlDB.QueryRow("SELECT current_database()").Scan(&dbName); err != nil {
		log.Fatalf("Failed to get database name: %v", err)
	}
	fmt.Printf("📋 Connected to database: %s\n", dbName)

	tables := []string{
		"ledger_event_records",
		"intent_records",
		"bridge_operation_records",
		"price_snapshots",
		"rebalance_executions",
		"auth_nonces",
	}
	for _, table := range tables {
		var exists bool
		err := sqlDB.QueryRow(`
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)`, table).Scan(&exists)
		if err != nil {
			log.Fatalf("Failed to check table %s: %v", table, err)
		}
		if exists {
			fmt.Printf("✅ %s\n", table)
		} else {
			fmt.Printf("❌ %s missing\n", table)
		}
	}
}
