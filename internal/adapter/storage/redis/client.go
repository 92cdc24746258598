package redis

import (
	"context"
	"fmt"

	"savings-account/config"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// clientName is reported by CLIENT LIST.
const clientName = "savings-account"

// NewClient connects the client shared by the balance cache and the rate limiter.
func NewClient(ctx context.Context, cfg config.RedisConfig, log zerolog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(clientOptions(cfg))

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s/%d: %w", cfg.Addr(), cfg.DB, err)
	}

	log.Info().
		Str("component", "balance_cache").
		Str("redis_addr", cfg.Addr()).
		Int("redis_db", cfg.DB).
		Dur("balance_ttl", cfg.BalanceTTL).
		Msg("redis ready for balance cache and rate limiting")

	return client, nil
}

func clientOptions(cfg config.RedisConfig) *goredis.Options {
	return &goredis.Options{
		Addr:       cfg.Addr(),
		Password:   cfg.Password,
		DB:         cfg.DB,
		ClientName: clientName,
	}
}
