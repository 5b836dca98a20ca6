package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// New connects to the redis instance at url and checks it answers.
func New(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// RateLimiter counts events per user in fixed windows.
type RateLimiter struct {
	cli    *redis.Client
	limit  int
	window time.Duration
}

func NewRateLimiter(cli *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{cli: cli, limit: limit, window: window}
}

// Allow records one event for userID and reports whether it is within the limit.
func (r *RateLimiter) Allow(ctx context.Context, userID int64) (bool, error) {
	key := rateKey(userID)
	count, err := r.cli.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}

	if count == 1 {
		if err := r.cli.Expire(ctx, key, r.window).Err(); err != nil {
			return false, err
		}
	}

	return count <= int64(r.limit), nil
}

func rateKey(userID int64) string {
	return fmt.Sprintf("rate:%d", userID)
}
