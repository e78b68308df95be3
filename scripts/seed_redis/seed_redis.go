package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file — using system environment variables")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     redisGetEnv("REDIS_ADDR", "localhost:6379"),
		Password: redisGetEnv("REDIS_PASSWORD", ""),
		DB:       0,
	})
	defer client.Close()

	ctx := context.Background()

	fmt.Println("Connecting to Redis...")
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure Redis is running:\n  docker-compose up -d redis", err)
	}
	fmt.Println("✓ Connected")

	step1_api_keys(ctx, client)
	step2_registry(ctx, client)
	step3_verify(ctx, client)

	fmt.Println("\n✅ Redis seeded successfully")
	fmt.Println("   Run next: go test ./internal/... -v")
}

func step1_api_keys(ctx context.Context, client *redis.Client) {
	fmt.Println("\n── Step 1: Seeding API keys ────────────────────")

	// Key pattern: helmet:auth:{api_key} → helmet_id
	// This is what authenticator.go looks up at Level 2
	// TTL = 0 means permanent — these never expire
	apiKeys := map[string]string{
		"helmet:auth:helmet_hm100_key": "hm-100",
		"helmet:auth:helmet_hm101_key": "hm-101",
		"helmet:auth:helmet_hm102_key": "hm-102",
		"helmet:auth:test_key":         "test-helmet",
	}

	for key, helmetID := range apiKeys {
		err := client.Set(ctx, key, helmetID, 0).Err()
		if err != nil {
			log.Fatalf("Failed to set key %s: %v", key, err)
		}
		fmt.Printf("  ✓ %-40s → %s\n", key, helmetID)
	}
}

func step2_registry(ctx context.Context, client *redis.Client) {
	fmt.Println("\n── Step 2: Seeding helmet registry ─────────────")

	// Set membership is what /share-location checks before accepting a
	// position for a helmet
	helmets := []string{"hm-100", "hm-101", "hm-102", "test-helmet"}

	for _, id := range helmets {
		if err := client.SAdd(ctx, "helmets:registered", id).Err(); err != nil {
			log.Fatalf("Failed to register helmet %s: %v", id, err)
		}
		fmt.Printf("  ✓ registered: %s\n", id)
	}
}

func step3_verify(ctx context.Context, client *redis.Client) {
	fmt.Println("\n── Step 3: Verification ────────────────────────")

	// Check all keys exist
	keys, err := client.Keys(ctx, "helmet:auth:*").Result()
	if err != nil {
		log.Fatalf("Verification failed: %v", err)
	}
	fmt.Printf("  ✓ %d API keys found in Redis\n", len(keys))

	// Spot check one key
	val, err := client.Get(ctx, "helmet:auth:test_key").Result()
	if err != nil {
		log.Fatalf("Spot check failed: %v", err)
	}
	fmt.Printf("  ✓ spot check: helmet:auth:test_key → %s\n", val)

	count, err := client.SCard(ctx, "helmets:registered").Result()
	if err != nil {
		log.Fatalf("Registry check failed: %v", err)
	}
	fmt.Printf("  ✓ %d helmets registered\n", count)
}

func redisGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
