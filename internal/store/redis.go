package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"helmet-monitor/ingestion/internal/config"
	"helmet-monitor/ingestion/internal/domain"
)

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(ctx context.Context, cfg *config.Config) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		PoolSize:     20,
		MinIdleConns: 5,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Client() *redis.Client {
	return r.client
}

// PipelineStateUpdate keeps the live helmet state current for dashboards.
// Readings expire after 30s so a silent helmet drops off the map.
func (r *RedisStore) PipelineStateUpdate(ctx context.Context, reading *domain.DerivedReading) error {
	stateData := map[string]interface{}{
		"helmet_id":          reading.HelmetID,
		"location_id":        reading.LocationID,
		"angle_change":       reading.AngleChangeMagnitude,
		"velocity_change":    reading.VelocityChangeMagnitude,
		"collision_detected": reading.CollisionDetected,
		"received_at":        reading.ReceivedAt.Unix(),
	}

	pubPayload, err := json.Marshal(stateData)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	stateKey := fmt.Sprintf("helmet:%s:state", reading.HelmetID)
	pubChannel := fmt.Sprintf("helmet:%s:telemetry", reading.HelmetID)

	pipe := r.client.Pipeline()

	pipe.HSet(ctx, stateKey, stateData)
	pipe.Expire(ctx, stateKey, 30*time.Second)
	pipe.Publish(ctx, pubChannel, pubPayload)

	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}

	return nil
}

// UpdateLocation mirrors a freshly shared location into the live geo index.
func (r *RedisStore) UpdateLocation(ctx context.Context, loc *domain.Location) error {
	locKey := fmt.Sprintf("helmet:%s:location", loc.HelmetID)

	pipe := r.client.Pipeline()

	pipe.HSet(ctx, locKey, map[string]interface{}{
		"location_id": loc.LocationID,
		"lat":         loc.Latitude,
		"lng":         loc.Longitude,
		"recorded_at": loc.RecordedAt.Unix(),
	})
	pipe.GeoAdd(ctx, "helmets:geo", &redis.GeoLocation{
		Name:      loc.HelmetID,
		Longitude: loc.Longitude,
		Latitude:  loc.Latitude,
	})

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redis location update failed: %w", err)
	}

	return nil
}

func (r *RedisStore) GetAPIKey(ctx context.Context, apiKey string) (string, error) {
	key := fmt.Sprintf("helmet:auth:%s", apiKey)
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get api key failed: %w", err)
	}
	return val, nil
}

// HelmetRegistered reports whether a helmet is provisioned. The registry set
// is populated by scripts/seed_redis.
func (r *RedisStore) HelmetRegistered(ctx context.Context, helmetID string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, "helmets:registered", helmetID).Result()
	if err != nil {
		return false, fmt.Errorf("helmet registry check failed: %w", err)
	}
	return ok, nil
}

// PublishAlert pushes a fired-escalation event to subscribers.
func (r *RedisStore) PublishAlert(ctx context.Context, payload []byte) error {
	return r.client.Publish(ctx, "helmets:alerts", payload).Err()
}
