package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"helmet-monitor/ingestion/internal/config"
	"helmet-monitor/ingestion/internal/domain"
)

type TimescaleStore struct {
	pool *pgxpool.Pool
}

func NewTimescaleStore(ctx context.Context, cfg *config.Config) (*TimescaleStore, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBMaxConns,
	)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &TimescaleStore{pool: pool}, nil
}

func (s *TimescaleStore) Close() {
	s.pool.Close()
}

func (s *TimescaleStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var readingColumns = []string{
	"reading_id",
	"received_at",
	"helmet_id",
	"location_id",
	"accel_x",
	"accel_y",
	"accel_z",
	"gyro_x",
	"gyro_y",
	"gyro_z",
	"angle_change",
	"velocity_change",
	"collision_detected",
	"raw_payload",
}

// AppendReadings is append-only: the table has no update or delete path.
// A batch keeps the order the readings were handed in.
func (s *TimescaleStore) AppendReadings(ctx context.Context, readings []*domain.DerivedReading) error {
	if len(readings) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(readings))
	for i, r := range readings {
		rows[i] = []interface{}{
			r.ID,
			r.ReceivedAt,
			r.HelmetID,
			r.LocationID,
			r.Accelerometer.X,
			r.Accelerometer.Y,
			r.Accelerometer.Z,
			r.Gyroscope.X,
			r.Gyroscope.Y,
			r.Gyroscope.Z,
			r.AngleChangeMagnitude,
			r.VelocityChangeMagnitude,
			r.CollisionDetected,
			string(r.RawPayload),
		}
	}

	_, err := s.pool.CopyFrom(
		ctx,
		pgx.Identifier{"helmet_readings"},
		readingColumns,
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("%w: CopyFrom failed for batch of %d: %v", domain.ErrPersistence, len(readings), err)
	}

	return nil
}

// LatestReading returns the most recent persisted reading for a helmet. A
// helmet with no readings yet yields domain.ErrReadingNotFound, matching how
// LatestLocation signals absence. Not on the hot path; serves /latest-reading.
func (s *TimescaleStore) LatestReading(ctx context.Context, helmetID string) (*domain.DerivedReading, error) {
	query := `
		SELECT reading_id, received_at, helmet_id, location_id,
		       accel_x, accel_y, accel_z,
		       gyro_x, gyro_y, gyro_z,
		       angle_change, velocity_change, collision_detected
		FROM helmet_readings
		WHERE helmet_id = $1
		ORDER BY received_at DESC
		LIMIT 1
	`
	var r domain.DerivedReading
	err := s.pool.QueryRow(ctx, query, helmetID).Scan(
		&r.ID,
		&r.ReceivedAt,
		&r.HelmetID,
		&r.LocationID,
		&r.Accelerometer.X,
		&r.Accelerometer.Y,
		&r.Accelerometer.Z,
		&r.Gyroscope.X,
		&r.Gyroscope.Y,
		&r.Gyroscope.Z,
		&r.AngleChangeMagnitude,
		&r.VelocityChangeMagnitude,
		&r.CollisionDetected,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: helmet %s", domain.ErrReadingNotFound, helmetID)
	}
	if err != nil {
		return nil, fmt.Errorf("latest reading query failed: %w", err)
	}
	return &r, nil
}

// LatestLocation returns the single most recent shared location for a helmet.
// A helmet that never shared a location yields domain.ErrLocationNotFound,
// which is distinct from a storage failure; escalation branches on it.
func (s *TimescaleStore) LatestLocation(ctx context.Context, helmetID string) (*domain.Location, error) {
	query := `
		SELECT helmet_id, location_id, latitude, longitude, recorded_at
		FROM helmet_locations
		WHERE helmet_id = $1
		ORDER BY recorded_at DESC
		LIMIT 1
	`
	var loc domain.Location
	err := s.pool.QueryRow(ctx, query, helmetID).Scan(
		&loc.HelmetID,
		&loc.LocationID,
		&loc.Latitude,
		&loc.Longitude,
		&loc.RecordedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: helmet %s", domain.ErrLocationNotFound, helmetID)
	}
	if err != nil {
		return nil, fmt.Errorf("latest location query failed: %w", err)
	}
	return &loc, nil
}

func (s *TimescaleStore) InsertLocation(ctx context.Context, loc *domain.Location) error {
	query := `
		INSERT INTO helmet_locations
			(helmet_id, location_id, latitude, longitude, recorded_at)
		VALUES
			($1, $2, $3, $4, $5)
	`
	_, err := s.pool.Exec(
		ctx,
		query,
		loc.HelmetID,
		loc.LocationID,
		loc.Latitude,
		loc.Longitude,
		loc.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("location insert failed: %w", err)
	}
	return nil
}
