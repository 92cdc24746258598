package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"savings-account/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

const maxWatchRetries = 3

// BalanceCache implements ports.BalanceCache. Writes are guarded by WATCH so a slower
// writer can never replace a snapshot with an older version.
type BalanceCache struct {
	client *goredis.Client
	prefix string
}

func NewBalanceCache(client *goredis.Client) *BalanceCache {
	return &BalanceCache{
		client: client,
		prefix: "savings:balance:",
	}
}

// Get returns nil, nil on a miss.
func (c *BalanceCache) Get(ctx context.Context, accountID string) (*ports.BalanceSnapshot, error) {
	val, err := c.client.Get(ctx, c.prefix+accountID).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis balance get: %w", err)
	}

	var snap ports.BalanceSnapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		return nil, fmt.Errorf("decode balance snapshot: %w", err)
	}
	return &snap, nil
}

func (c *BalanceCache) Set(ctx context.Context, accountID string, snap ports.BalanceSnapshot, ttl time.Duration) error {
	key := c.prefix + accountID
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode balance snapshot: %w", err)
	}

	txf := func(tx *goredis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, goredis.Nil):
		case err != nil:
			return err
		default:
			var cached ports.BalanceSnapshot
			if json.Unmarshal(current, &cached) == nil && cached.Version >= snap.Version {
				return nil
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, payload, ttl)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err = c.client.Watch(ctx, txf, key)
		if !errors.Is(err, goredis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("redis balance set: %w", err)
	}
	return nil
}

func (c *BalanceCache) Invalidate(ctx context.Context, accountID string) error {
	if err := c.client.Del(ctx, c.prefix+accountID).Err(); err != nil {
		return fmt.Errorf("redis balance invalidate: %w", err)
	}
	return nil
}
