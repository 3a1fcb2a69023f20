package agents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Counters outlive their period by a safety margin so a reader near a
	// boundary never sees an expired key mid-check.
	dailyKeyTTL   = 48 * time.Hour
	monthlyKeyTTL = 40 * 24 * time.Hour
)

// RedisSpendStore keeps spend counters in Redis so every worker debits the
// same totals. Increments are atomic; the check-then-debit gap lives in the
// gateway, not here.
type RedisSpendStore struct {
	client *redis.Client
}

// NewRedisSpendStore connects to Redis using a redis:// URL.
func NewRedisSpendStore(ctx context.Context, redisURL string) (*RedisSpendStore, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisSpendStore{client: client}, nil
}

func dailyKey(agentID string, day time.Time) string {
	return "foreman:spend:" + agentID + ":day:" + day.UTC().Format(dayKeyFormat)
}

func monthlyKey(agentID string, month time.Time) string {
	return "foreman:spend:" + agentID + ":month:" + month.UTC().Format(monthKeyFormat)
}

func (s *RedisSpendStore) DailySpent(ctx context.Context, agentID string, day time.Time) (int64, error) {
	return s.get(ctx, dailyKey(agentID, day))
}

func (s *RedisSpendStore) MonthlySpent(ctx context.Context, agentID string, month time.Time) (int64, error) {
	return s.get(ctx, monthlyKey(agentID, month))
}

func (s *RedisSpendStore) get(ctx context.Context, key string) (int64, error) {
	value, err := s.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}

		return 0, fmt.Errorf("failed to read spend counter %s: %w", key, err)
	}

	return value, nil
}

func (s *RedisSpendStore) AddSpend(ctx context.Context, agentID string, at time.Time, cents int64) error {
	pipe := s.client.TxPipeline()

	day := dailyKey(agentID, at)
	month := monthlyKey(agentID, at)

	pipe.IncrBy(ctx, day, cents)
	pipe.Expire(ctx, day, dailyKeyTTL)
	pipe.IncrBy(ctx, month, cents)
	pipe.Expire(ctx, month, monthlyKeyTTL)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to record spend for agent %s: %w", agentID, err)
	}

	return nil
}

func (s *RedisSpendStore) ResetDay(ctx context.Context, agentID string, day time.Time) error {
	err := s.client.Del(ctx, dailyKey(agentID, day)).Err()
	if err != nil {
		return fmt.Errorf("failed to reset daily spend for agent %s: %w", agentID, err)
	}

	return nil
}

func (s *RedisSpendStore) Close() error {
	return s.client.Close()
}
