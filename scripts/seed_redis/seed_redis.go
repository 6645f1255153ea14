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
		log.Println("No .env file, using system environment variables")
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

	step1_feed_keys(ctx, client)
	step2_verify(ctx, client)

	fmt.Println("\n✅ Redis seeded successfully")
	fmt.Println("   Run next: go run ./cmd/reconciler")
}

func step1_feed_keys(ctx context.Context, client *redis.Client) {
	fmt.Println("\n── Step 1: Seeding feed API keys ───────────────")

	// Key pattern: feed:auth:{api_key} → feed source
	// authenticator.go resolves these at Level 2; no TTL
	apiKeys := map[string]string{
		"feed:auth:telemetry_feed_primary_key": "telemetry-feed-primary",
		"feed:auth:telemetry_feed_replay_key":  "telemetry-feed-replay",
		"feed:auth:test_key":                   "test-feed",
	}

	for key, source := range apiKeys {
		if err := client.Set(ctx, key, source, 0).Err(); err != nil {
			log.Fatalf("Failed to set key %s: %v", key, err)
		}
		fmt.Printf("  ✓ %-45s → %s\n", key, source)
	}
}

func step2_verify(ctx context.Context, client *redis.Client) {
	fmt.Println("\n── Step 2: Verification ────────────────────────")

	keys, err := client.Keys(ctx, "feed:auth:*").Result()
	if err != nil {
		log.Fatalf("Verification failed: %v", err)
	}
	fmt.Printf("  ✓ %d API keys found in Redis\n", len(keys))

	val, err := client.Get(ctx, "feed:auth:test_key").Result()
	if err != nil {
		log.Fatalf("Spot check failed: %v", err)
	}
	fmt.Printf("  ✓ spot check: feed:auth:test_key → %s\n", val)
}

func redisGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
