package ranking

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	sharedredis "traders-server/internal/shared/redis"

	"github.com/redis/go-redis/v9"
)

const leaderboardKey = "traders:rankings"

// RedisCache keeps the current leaderboard in a sorted set scored by rank.
type RedisCache struct {
	client *sharedredis.Client
	logger *slog.Logger
}

func NewRedisCache(client *sharedredis.Client, logger *slog.Logger) *RedisCache {
	return &RedisCache{client: client, logger: logger}
}

// Load returns false when the leaderboard has not been cached.
func (c *RedisCache) Load(ctx context.Context, limit int) ([]Entry, bool, error) {
	logger := c.logger.With("component", "ranking_cache", "operation", "load", "limit", limit)

	members, err := c.client.ZRange(ctx, leaderboardKey, 0, int64(limit)-1).Result()
	if err != nil {
		logger.Error("Failed to read leaderboard", "error", err)
		return nil, false, fmt.Errorf("failed to read leaderboard: %w", err)
	}
	if len(members) == 0 {
		return nil, false, nil
	}

	entries := make([]Entry, 0, len(members))
	for _, m := range members {
		var e Entry
		if err := json.Unmarshal([]byte(m), &e); err != nil {
			return nil, false, fmt.Errorf("failed to decode leaderboard member: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, true, nil
}

// Store replaces the cached leaderboard atomically.
func (c *RedisCache) Store(ctx context.Context, entries []Entry) error {
	logger := c.logger.With("component", "ranking_cache", "operation", "store", "count", len(entries))

	members := make([]redis.Z, 0, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to encode leaderboard member: %w", err)
		}
		members = append(members, redis.Z{Score: float64(e.Rank), Member: string(data)})
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, leaderboardKey)
		if len(members) > 0 {
			pipe.ZAdd(ctx, leaderboardKey, members...)
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to store leaderboard", "error", err)
		return fmt.Errorf("failed to store leaderboard: %w", err)
	}

	logger.Debug("Leaderboard cached")
	return nil
}
