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
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		dbGetEnv("DB_USER", "helmet_user"),
		dbGetEnv("DB_PASSWORD", "helmet_password"),
		dbGetEnv("DB_HOST", "localhost"),
		dbGetEnv("DB_PORT", "5432"),
		dbGetEnv("DB_NAME", "helmet_monitor"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to TimescaleDB...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure TimescaleDB is running:\n  docker-compose up -d timescaledb", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	// Run all steps in order
	step1_extensions(ctx, conn)
	step2_readings_table(ctx, conn)
	step3_locations_table(ctx, conn)
	step4_indexes(ctx, conn)
	step5_verify(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
	fmt.Println("   Run next: go run scripts/seed_redis/seed_redis.go")
}

// ─────────────────────────────────────────────────────────────
// Step 1 — Extensions
// ─────────────────────────────────────────────────────────────
func step1_extensions(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: Extensions ──────────────────────────")

	// TimescaleDB — required for hypertable
	execOrFatal(ctx, conn,
		"CREATE EXTENSION IF NOT EXISTS timescaledb CASCADE;",
		"timescaledb extension",
	)
}

// ─────────────────────────────────────────────────────────────
// Step 2 — helmet_readings table
// ─────────────────────────────────────────────────────────────
func step2_readings_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: helmet_readings table ───────────────")

	// Append-only: no application path updates or deletes rows here
	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS helmet_readings (

			-- Assigned by the ingestor, one per accepted frame
			reading_id           UUID             NOT NULL,

			-- Server receipt time — TimescaleDB partitions by this.
			-- Helmets carry no trustworthy clock of their own.
			received_at          TIMESTAMPTZ      NOT NULL,

			-- Identity
			helmet_id            TEXT             NOT NULL,
			location_id          TEXT,

			-- Raw 3-axis samples
			accel_x              DOUBLE PRECISION NOT NULL,
			accel_y              DOUBLE PRECISION NOT NULL,
			accel_z              DOUBLE PRECISION NOT NULL,
			gyro_x               DOUBLE PRECISION NOT NULL,
			gyro_y               DOUBLE PRECISION NOT NULL,
			gyro_z               DOUBLE PRECISION NOT NULL,

			-- Derived by the collision detector, persisted verbatim
			angle_change         DOUBLE PRECISION NOT NULL,
			velocity_change      DOUBLE PRECISION NOT NULL,
			collision_detected   BOOLEAN          NOT NULL,

			-- Original JSON payload — stored for debugging and replay
			raw_payload          JSONB,

			-- Magnitudes are Euclidean norms, never negative
			CONSTRAINT chk_angle_change CHECK (angle_change >= 0),
			CONSTRAINT chk_velocity_change CHECK (velocity_change >= 0)
		);
	`, "helmet_readings table created")

	// Convert to TimescaleDB hypertable, time-partitioned on receipt
	execOrFatal(ctx, conn, `
		SELECT create_hypertable(
			'helmet_readings',
			'received_at',
			if_not_exists => TRUE
		);
	`, "helmet_readings converted to hypertable")
}

// ─────────────────────────────────────────────────────────────
// Step 3 — helmet_locations table
// ─────────────────────────────────────────────────────────────
func step3_locations_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: helmet_locations table ──────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS helmet_locations (

			-- Locations are rare enough that a traditional PK is fine
			id               BIGSERIAL        PRIMARY KEY,

			helmet_id        TEXT             NOT NULL,
			location_id      TEXT             NOT NULL,

			latitude         DOUBLE PRECISION NOT NULL,
			longitude        DOUBLE PRECISION NOT NULL,

			-- Escalation reads the single most recent row by this column
			recorded_at      TIMESTAMPTZ      NOT NULL DEFAULT NOW(),

			CONSTRAINT chk_latitude CHECK (latitude BETWEEN -90 AND 90),
			CONSTRAINT chk_longitude CHECK (longitude BETWEEN -180 AND 180)
		);
	`, "helmet_locations table created")
}

// ─────────────────────────────────────────────────────────────
// Step 4 — Indexes
// ─────────────────────────────────────────────────────────────
func step4_indexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 4: Indexes ─────────────────────────────")

	indexes := []struct {
		name string
		sql  string
		why  string
	}{
		{
			name: "idx_readings_helmet_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_readings_helmet_time
				  ON helmet_readings (helmet_id, received_at DESC);`,
			why: "query: latest reading for one helmet",
		},
		{
			name: "idx_readings_collisions",
			sql: `CREATE INDEX IF NOT EXISTS idx_readings_collisions
				  ON helmet_readings (helmet_id, received_at DESC)
				  WHERE collision_detected;`,
			why: "query: collision history only (partial index)",
		},
		{
			name: "idx_locations_helmet_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_locations_helmet_time
				  ON helmet_locations (helmet_id, recorded_at DESC);`,
			why: "query: most recent location for one helmet",
		},
	}

	for _, idx := range indexes {
		execOrFatal(ctx, conn, idx.sql,
			fmt.Sprintf("%-40s ← %s", idx.name, idx.why),
		)
	}
}

// ─────────────────────────────────────────────────────────────
// Step 5 — Verify everything was created
// ─────────────────────────────────────────────────────────────
func step5_verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 5: Verification ────────────────────────")

	// Check tables exist
	tables := []string{"helmet_readings", "helmet_locations"}
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

	// Check hypertable
	var hypertableName string
	err := conn.QueryRow(ctx, `
		SELECT hypertable_name
		FROM timescaledb_information.hypertables
		WHERE hypertable_name = 'helmet_readings'
	`).Scan(&hypertableName)
	if err != nil {
		log.Fatalf("helmet_readings is not a hypertable: %v", err)
	}
	fmt.Printf("  ✓ hypertable: %s (time partitioned)\n", hypertableName)

	// Check indexes
	var indexCount int
	err = conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM pg_indexes
		WHERE tablename IN ('helmet_readings', 'helmet_locations')
		AND indexname LIKE 'idx_%'
	`).Scan(&indexCount)
	if err != nil {
		log.Fatalf("Index check failed: %v", err)
	}
	fmt.Printf("  ✓ indexes created: %d\n", indexCount)
}

// ─────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────

// execOrFatal runs a SQL statement and prints result or exits on error
func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	_, err := conn.Exec(ctx, sql)
	if err != nil {
		log.Fatalf("FAILED — %s\nError: %v\nSQL: %s", label, err, sql)
	}
	fmt.Printf("  ✓ %s\n", label)
}

func dbGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
