package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"idleassets/api/internal/config"
)

const (
	connectAttempts = 5
	pingTimeout     = 3 * time.Second
)

// ConnectRedis opens the client shared by the push broker, the token
// deny-list, the mock mailbox and asynq. Redis often comes up after the API
// in local stacks, so the first ping is retried with a growing delay.
func ConnectRedis(cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		err = rdb.Ping(ctx).Err()
		cancel()
		if err == nil {
			log.Printf("Connected to Redis at %s (db %d)", cfg.RedisAddr, cfg.RedisDB)
			return rdb, nil
		}
		if attempt < connectAttempts {
			log.Printf("Redis at %s not ready (attempt %d/%d): %v", cfg.RedisAddr, attempt, connectAttempts, err)
			time.Sleep(time.Duration(attempt) * 500 * time.Millisecond)
		}
	}
	_ = rdb.Close()
	return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
}

// DisconnectRedis closes the client. A nil client is ignored.
func DisconnectRedis(rdb *redis.Client) error {
	if rdb == nil {
		return nil
	}
	if err := rdb.Close(); err != nil {
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	log.Println("Redis connection closed.")
	return nil
}
