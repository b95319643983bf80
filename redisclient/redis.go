// Package redisclient builds the single shared Redis connection
// cmd/connpoold uses to publish pool snapshots, factoring URL parsing and
// the connect-time ping out of broadcast.go.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// New parses url and returns a connected *redis.Client, pinging it once to
// fail fast on a bad URL or unreachable server rather than deferring the
// error to the first publish.
func New(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}
