package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/leadgate/leadgate/internal/config"
	"github.com/leadgate/leadgate/internal/model"
	"github.com/redis/go-redis/v9"
)

type RedisClient struct {
	Client *redis.Client
}

func NewRedisClient(cfg *config.Config) (*RedisClient, error) {
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address is empty")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisClient{Client: rdb}, nil
}

// RedisRecentLogs keeps a capped list of the most recent system log records.
// It is a read fallback for listings while Postgres is unavailable, not a
// durable store: entries silently age out past listMax.
type RedisRecentLogs struct {
	client  *RedisClient
	listKey string
	listMax int
}

func NewRedisRecentLogs(client *RedisClient, listKey string, listMax int) *RedisRecentLogs {
	if listKey == "" {
		listKey = "recent_system_logs"
	}
	if listMax <= 0 {
		listMax = 10000
	}
	return &RedisRecentLogs{
		client:  client,
		listKey: listKey,
		listMax: listMax,
	}
}

func (r *RedisRecentLogs) Push(ctx context.Context, entry *model.SystemLog) error {
	if entry == nil {
		return nil
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	pipe := r.client.Client.Pipeline()
	pipe.LPush(ctx, r.listKey, payload)
	pipe.LTrim(ctx, r.listKey, 0, int64(r.listMax-1))
	_, err = pipe.Exec(ctx)
	return err
}

// Recent returns up to limit of the newest records matching the filter,
// newest first. Only the cached window is searched, so totals are
// approximate.
func (r *RedisRecentLogs) Recent(ctx context.Context, filter model.SystemLogFilter, limit int) ([]*model.SystemLog, error) {
	if limit <= 0 || limit > r.listMax {
		limit = 100
	}
	fetch := limit * 5
	if fetch < 100 {
		fetch = 100
	}
	if fetch > r.listMax {
		fetch = r.listMax
	}
	raws, err := r.client.Client.LRange(ctx, r.listKey, 0, int64(fetch-1)).Result()
	if err != nil {
		return nil, err
	}
	results := make([]*model.SystemLog, 0, limit)
	for _, raw := range raws {
		var entry model.SystemLog
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		if !matchesSystemFilter(&entry, filter) {
			continue
		}
		results = append(results, &entry)
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

func matchesSystemFilter(entry *model.SystemLog, f model.SystemLogFilter) bool {
	if f.Level != "" && entry.Level != f.Level {
		return false
	}
	if f.Category != "" && entry.Category != f.Category {
		return false
	}
	if f.UserID != nil && (entry.UserID == nil || *entry.UserID != *f.UserID) {
		return false
	}
	if f.StartDate != nil && entry.Timestamp.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && entry.Timestamp.After(*f.EndDate) {
		return false
	}
	return true
}
