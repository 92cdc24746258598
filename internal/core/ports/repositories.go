package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"savings-account/internal/core/domain"
)

// AccountStore loads and saves savings account aggregates.
type AccountStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	// Get returns domain.ErrAccountNotFound for an unknown id.
	Get(ctx context.Context, id string) (*domain.Account, error)
	// Save persists the aggregate's new transactions. Durable implementations reject a stale
	// aggregate with domain.ErrConcurrencyConflict.
	Save(ctx context.Context, account *domain.Account) (*domain.Account, error)
}

// BalanceSnapshot is the cached view of an account balance at a version.
type BalanceSnapshot struct {
	Balance domain.Money `json:"balance"`
	Version int64        `json:"version"`
}

// BalanceCache is a best-effort read cache in front of the AccountStore.
type BalanceCache interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, accountID string) (*BalanceSnapshot, error)
	// Set stores snap unless a snapshot with a higher version is already cached.
	Set(ctx context.Context, accountID string, snap BalanceSnapshot, ttl time.Duration) error
	Invalidate(ctx context.Context, accountID string) error
}

// RateLimitResult is the outcome of a single fixed-window check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// RateLimiter counts requests per key in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}
