// Package redis wraps the go-redis client used by the distributed match
// lock (internal/locks) and the leaderboard top-N cache
// (internal/leaderboard). It is optional: a Match Service instance with
// no REDIS_ADDR configured simply never constructs a Client and falls
// back to single-process, row-lock-only operation (SPEC_FULL.md §5).
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection parameters.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Client wraps redis.Client.
type Client struct {
	*redis.Client
}

// New dials Redis and verifies connectivity.
func New(cfg Config) (*Client, error) {
	log.Printf("[REDIS] connecting to %s", cfg.Addr)

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: connect: %w", err)
	}

	log.Printf("[REDIS] connected to %s", cfg.Addr)
	return &Client{Client: client}, nil
}

func (c *Client) Close() error {
	log.Println("[REDIS] closing connection")
	return c.Client.Close()
}

func (c *Client) HealthCheck(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
