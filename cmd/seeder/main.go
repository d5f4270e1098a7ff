package main

import (
	"database/sql"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

// Simplified config loading for the script
func loadConfig() map[string]string {
	err := godotenv.Load()
	if err != nil {
		log.Warn("No .env file found, reading from environment variables")
	}

	config := make(map[string]string)
	required := []string{"TURSO_PRIMARY_URL", "TURSO_AUTH_TOKEN"}

	for _, key := range required {
		if value, ok := os.LookupEnv(key); ok {
			config[key] = value
		} else {
			log.Fatalf("Error: Required environment variable %s is not set.", key)
		}
	}
	return config
}

func main() {
	log.Info("Starting database seeder...")
	cfg := loadConfig()

	// Connect directly to the primary database
	dbURL := fmt.Sprintf("%s?authToken=%s", cfg["TURSO_PRIMARY_URL"], cfg["TURSO_AUTH_TOKEN"])
	db, err := sql.Open("libsql", dbURL)
	if err != nil {
		log.Fatalf("Failed to open primary database: %s", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to connect to primary database: %s", err)
	}

	log.Info("Successfully connected to the primary database.")

	// A handful of sponsors funding the seeded rules.
	sponsorIDs := make([]string, 0, 4)
	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("seed-sponsor-%d", i)
		_, err := db.Exec(
			"INSERT OR IGNORE INTO sponsors (id, name, payment_method_id, created_at) VALUES (?, ?, ?, ?)",
			id, fmt.Sprintf("Seeded Sponsor %d", i), fmt.Sprintf("pm_seed_%d", i), time.Now().Unix(),
		)
		if err != nil {
			log.Fatalf("Failed to insert sponsor %s: %s", id, err)
		}
		sponsorIDs = append(sponsorIDs, id)
	}
	log.Info("Ensured seeded sponsors exist.")

	const numRules = 100
	ruleIDs := make([]string, 0, numRules)
	recipients := make([]string, 0, numRules)
	for i := 0; i < numRules; i++ {
		ruleID := uuid.NewString()
		recipient := uuid.NewString()
		_, err := db.Exec(`
			INSERT INTO match_rules (id, sponsor_id, recipient_user_id, percent, cap_cents_weekly, asset_type, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			ruleID, sponsorIDs[i%len(sponsorIDs)], recipient,
			10+rand.Intn(90), int64(1000+rand.Intn(9000)), "CASH", "active", time.Now().Unix(),
		)
		if err != nil {
			log.Fatalf("Failed to insert match rule: %s", err)
		}
		ruleIDs = append(ruleIDs, ruleID)
		recipients = append(recipients, recipient)
	}
	log.Info("Inserted seeded match rules.", "count", numRules)

	const batchSize = 100 // Insert 100 events at a time
	const numEvents = 10000

	log.Info("Preparing to insert dummy match events...", "total", numEvents, "batch_size", batchSize)
	startTime := time.Now()

	tx, err := db.Begin()
	if err != nil {
		log.Fatalf("Failed to begin transaction: %s", err)
	}

	valueStrings := make([]string, 0, batchSize)
	valueArgs := make([]interface{}, 0, batchSize*10) // 10 columns per event

	for i := 0; i < numEvents; i++ {
		ruleIdx := rand.Intn(numRules)
		createdAt := time.Now().Add(-time.Duration(rand.Intn(90*24)) * time.Hour)
		original := int64(100 + rand.Intn(10000))
		matched := original / 10

		valueStrings = append(valueStrings, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		valueArgs = append(valueArgs,
			uuid.NewString(),
			ruleIDs[ruleIdx],
			uuid.NewString(),
			sponsorIDs[ruleIdx%len(sponsorIDs)],
			recipients[ruleIdx],
			original,
			matched,
			"succeeded",
			fmt.Sprintf("ch_seed_%d", i),
			createdAt.Unix(),
		)

		if (i+1)%batchSize == 0 || (i+1) == numEvents {
			stmt := fmt.Sprintf(`
				INSERT INTO match_events (id, match_rule_id, save_event_id, sponsor_id, recipient_user_id,
					original_amount_cents, match_amount_cents, charge_status, payment_reference, created_at)
				VALUES %s;`, strings.Join(valueStrings, ","))

			_, err := tx.Exec(stmt, valueArgs...)
			if err != nil {
				tx.Rollback()
				log.Fatalf("Failed to execute batch insert: %s", err)
			}

			// Reset for the next batch
			valueStrings = make([]string, 0, batchSize)
			valueArgs = make([]interface{}, 0, batchSize*10)
			log.Info("Inserted batch", "completed", i+1, "total", numEvents)
		}
	}

	if err := tx.Commit(); err != nil {
		log.Fatalf("Failed to commit transaction: %s", err)
	}

	duration := time.Since(startTime)
	log.Info("Successfully inserted all dummy match events.", "duration", duration)
}
