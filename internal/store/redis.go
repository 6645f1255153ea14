package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"fleet-monitor/reconciler/internal/config"
	"fleet-monitor/reconciler/internal/domain"
)

// advanceMark keeps the larger of the stored and offered odometer and
// returns it.
var advanceMark = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
	return cur
end
redis.call('SET', KEYS[1], ARGV[1])
return ARGV[1]
`)

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

func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func highWaterKey(vehicleID string) string {
	return fmt.Sprintf("vehicle:%s:odometer_hwm", vehicleID)
}

func (r *RedisStore) Advance(ctx context.Context, vehicleID string, odometer float64) (float64, error) {
	res, err := advanceMark.Run(ctx, r.client,
		[]string{highWaterKey(vehicleID)},
		strconv.FormatFloat(odometer, 'f', -1, 64),
	).Text()
	if err != nil {
		return 0, fmt.Errorf("advance high-water mark for %s: %w", vehicleID, err)
	}
	mark, err := strconv.ParseFloat(res, 64)
	if err != nil {
		return 0, fmt.Errorf("parse high-water mark %q for %s: %w", res, vehicleID, err)
	}
	return mark, nil
}

// GetAPIKey returns the feed source bound to apiKey, or "" when unknown.
func (r *RedisStore) GetAPIKey(ctx context.Context, apiKey string) (string, error) {
	key := fmt.Sprintf("feed:auth:%s", apiKey)
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get api key failed: %w", err)
	}
	return val, nil
}

// ClaimAlert marks the alert as delivered for its intent. It returns false
// when an earlier delivery already claimed it.
func (r *RedisStore) ClaimAlert(ctx context.Context, a domain.Alert, ttl time.Duration) (bool, error) {
	key := fmt.Sprintf("alert:%s:%s", a.IntentKey, string(a.Kind))
	ok, err := r.client.SetNX(ctx, key, a.ID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("alert dedup claim failed: %w", err)
	}
	return ok, nil
}

// ReleaseAlert drops a claim so a later redelivery can retry the alert.
func (r *RedisStore) ReleaseAlert(ctx context.Context, a domain.Alert) error {
	key := fmt.Sprintf("alert:%s:%s", a.IntentKey, string(a.Kind))
	return r.client.Del(ctx, key).Err()
}

func (r *RedisStore) PublishAlert(ctx context.Context, a domain.Alert) error {
	payload, err := json.Marshal(map[string]interface{}{
		"id":             a.ID,
		"vehicle_id":     a.VehicleID,
		"trip_id":        a.TripID,
		"consignment_id": a.ConsignmentID,
		"alert_type":     string(a.Kind),
		"severity":       string(a.Kind.Severity()),
		"odometer_high":  a.OdometerHigh,
		"raised_at":      a.RaisedAt.Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}
	channel := fmt.Sprintf("vehicle:%s:trip-alerts", a.VehicleID)
	return r.client.Publish(ctx, channel, payload).Err()
}
