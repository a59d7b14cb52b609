package kv

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type FactoryConfig struct {
	Backend string // memory | redis

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type FactoryResult struct {
	Store  Store
	Client *redis.Client // only set for redis
}

func NewStore(ctx context.Context, cfg FactoryConfig) (FactoryResult, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = "memory"
	}

	switch backend {
	case "memory":
		return FactoryResult{Store: NewMemoryStore()}, nil

	case "redis":
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return FactoryResult{}, errors.New("REDIS_ADDR is required when CLAIM_BACKEND=redis")
		}

		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		c, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := client.Ping(c).Err(); err != nil {
			_ = client.Close()
			return FactoryResult{}, err
		}

		return FactoryResult{
			Store:  NewRedisStore(client),
			Client: client,
		}, nil

	default:
		return FactoryResult{}, errors.New("unknown CLAIM_BACKEND (use memory or redis)")
	}
}
