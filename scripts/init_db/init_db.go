package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		dbGetEnv("DB_USER", "fleet_user"),
		dbGetEnv("DB_PASSWORD", "fleet_password"),
		dbGetEnv("DB_HOST", "localhost"),
		dbGetEnv("DB_PORT", "5432"),
		dbGetEnv("DB_NAME", "fleet_monitor"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to Postgres...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure Postgres is running:\n  docker-compose up -d postgres", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	step1_documents(ctx, conn)
	step2_intents(ctx, conn)
	step3_alerts(ctx, conn)
	step4_indexes(ctx, conn)
	step5_verify(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
	fmt.Println("   Run next: go run ./scripts/seed_redis")
}

// ─────────────────────────────────────────────────────────────
// Step 1: trips and consignments
// ─────────────────────────────────────────────────────────────
func step1_documents(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: document tables ─────────────────────")

	// Trips are partitioned by vehicle: every lookup and replace is
	// scoped to vehicle_id.
	// status is copied out of doc so the active-trip filter can use an index.
	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS trips (
			vehicle_id   TEXT        NOT NULL,
			id           TEXT        NOT NULL,
			status       TEXT        NOT NULL,
			doc          JSONB       NOT NULL,
			version      BIGINT      NOT NULL DEFAULT 1,
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),

			PRIMARY KEY (vehicle_id, id),

			CONSTRAINT chk_trip_status CHECK (
				status IN ('Created', 'Active', 'Delayed', 'Completed', 'Canceled', 'Inactive')
			)
		);
	`, "trips table created")

	// Consignments are their own partition: id is the partition key.
	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS consignments (
			id           TEXT        PRIMARY KEY,
			status       TEXT        NOT NULL,
			doc          JSONB       NOT NULL,
			version      BIGINT      NOT NULL DEFAULT 1,
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),

			CONSTRAINT chk_consignment_status CHECK (
				status IN ('Created', 'Active', 'Delayed', 'Completed')
			)
		);
	`, "consignments table created")
}

// ─────────────────────────────────────────────────────────────
// Step 2: reconcile_intents
// ─────────────────────────────────────────────────────────────
func step2_intents(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: reconcile_intents table ─────────────")

	// key = sha256(trip id | resulting status | odometer high)
	// doc holds both target documents so a retry can finish a half-applied pair
	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS reconcile_intents (
			key            TEXT             PRIMARY KEY,
			trip_id        TEXT             NOT NULL,
			vehicle_id     TEXT             NOT NULL,
			status         TEXT             NOT NULL,
			odometer_high  DOUBLE PRECISION NOT NULL,
			doc            JSONB            NOT NULL,
			state          TEXT             NOT NULL DEFAULT 'pending',
			created_at     TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			applied_at     TIMESTAMPTZ,

			CONSTRAINT chk_intent_state CHECK (state IN ('pending', 'applied'))
		);
	`, "reconcile_intents table created")
}

// ─────────────────────────────────────────────────────────────
// Step 3: trip_alerts
// ─────────────────────────────────────────────────────────────
func step3_alerts(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: trip_alerts table ───────────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS trip_alerts (
			id               UUID             PRIMARY KEY,
			intent_key       TEXT             NOT NULL,

			-- Must exactly match domain.AlertKind constants
			alert_type       TEXT             NOT NULL,
			severity         TEXT             NOT NULL,

			vehicle_id       TEXT             NOT NULL,
			trip_id          TEXT             NOT NULL,
			consignment_id   TEXT             NOT NULL,
			odometer_high    DOUBLE PRECISION NOT NULL,
			raised_at        TIMESTAMPTZ      NOT NULL,
			created_at       TIMESTAMPTZ      NOT NULL DEFAULT NOW(),

			-- One alert of each kind per reconciliation decision
			CONSTRAINT uq_alert_intent UNIQUE (intent_key, alert_type),

			CONSTRAINT chk_alert_type CHECK (
				alert_type IN ('TRIP_COMPLETED', 'TRIP_DELAYED')
			),
			CONSTRAINT chk_severity CHECK (
				severity IN ('INFO', 'WARNING')
			)
		);
	`, "trip_alerts table created")
}

// ─────────────────────────────────────────────────────────────
// Step 4: Indexes
// ─────────────────────────────────────────────────────────────
func step4_indexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 4: Indexes ─────────────────────────────")

	indexes := []struct {
		name string
		sql  string
		why  string
	}{
		{
			name: "idx_trips_vehicle_active",
			sql: `CREATE INDEX IF NOT EXISTS idx_trips_vehicle_active
				  ON trips (vehicle_id)
				  WHERE status NOT IN ('Completed', 'Canceled', 'Inactive');`,
			why: "query: active trip for one vehicle (partial index)",
		},
		{
			name: "idx_intents_pending",
			sql: `CREATE INDEX IF NOT EXISTS idx_intents_pending
				  ON reconcile_intents (created_at)
				  WHERE state = 'pending';`,
			why: "query: intents left half-applied",
		},
		{
			name: "idx_trip_alerts_vehicle",
			sql: `CREATE INDEX IF NOT EXISTS idx_trip_alerts_vehicle
				  ON trip_alerts (vehicle_id, raised_at DESC);`,
			why: "query: alerts for one vehicle",
		},
		{
			name: "idx_trip_alerts_trip",
			sql: `CREATE INDEX IF NOT EXISTS idx_trip_alerts_trip
				  ON trip_alerts (trip_id);`,
			why: "query: alerts for one trip",
		},
	}

	for _, idx := range indexes {
		execOrFatal(ctx, conn, idx.sql,
			fmt.Sprintf("%-40s ← %s", idx.name, idx.why),
		)
	}
}

// ─────────────────────────────────────────────────────────────
// Step 5: Verify everything was created
// ─────────────────────────────────────────────────────────────
func step5_verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 5: Verification ────────────────────────")

	tables := []string{"trips", "consignments", "reconcile_intents", "trip_alerts"}
	for _, table := range tables {
		var exists bool
		err := conn.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil || !exists {
			log.Fatalf("Table %s was not created: %v", table, err)
		}
		fmt.Printf("  ✓ table: %s\n", table)
	}

	var indexCount int
	err := conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM pg_indexes
		WHERE tablename = ANY($1)
		AND indexname LIKE 'idx_%'
	`, tables).Scan(&indexCount)
	if err != nil {
		log.Fatalf("Index check failed: %v", err)
	}
	fmt.Printf("  ✓ indexes created: %d\n", indexCount)
}

// execOrFatal runs a SQL statement and prints result or exits on error
func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	_, err := conn.Exec(ctx, sql)
	if err != nil {
		log.Fatalf("FAILED: %s\nError: %v\nSQL: %s", label, err, sql)
	}
	fmt.Printf("  ✓ %s\n", label)
}

func dbGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
