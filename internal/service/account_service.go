package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"savings-account/internal/core/domain"
	"savings-account/internal/core/ports"
	"savings-account/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const defaultBalanceTTL = 5 * time.Minute

// AccountOptions tunes AccountServiceImpl.
type AccountOptions struct {
	// DefaultRate applies when CreateAccount is called without a rate. The zero value is 0%.
	DefaultRate domain.InterestRate
	// ConflictRetries is how many times a command is reloaded and re-applied after a
	// concurrency conflict before the conflict is returned to the caller.
	ConflictRetries int
	BalanceTTL      time.Duration
	// AccountOptions are passed to domain.NewAccount, e.g. a fixed clock in tests.
	AccountOptions []domain.Option
}

// AccountServiceImpl implements ports.AccountService.
type AccountServiceImpl struct {
	store ports.AccountStore
	cache ports.BalanceCache
	opts  AccountOptions
	log   zerolog.Logger
}

// NewAccountService creates a new AccountServiceImpl. cache may be nil.
func NewAccountService(store ports.AccountStore, cache ports.BalanceCache, opts AccountOptions, log zerolog.Logger) *AccountServiceImpl {
	if opts.ConflictRetries < 0 {
		opts.ConflictRetries = 0
	}
	if opts.BalanceTTL <= 0 {
		opts.BalanceTTL = defaultBalanceTTL
	}
	return &AccountServiceImpl{
		store: store,
		cache: cache,
		opts:  opts,
		log:   log.With().Str("component", "account_service").Logger(),
	}
}

// CreateAccount opens a new account at the given rate, or the configured default when rate is nil.
func (s *AccountServiceImpl) CreateAccount(ctx context.Context, id string, rate *decimal.Decimal) (*domain.Account, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	interestRate := s.opts.DefaultRate
	if rate != nil {
		r, err := domain.NewInterestRate(*rate)
		if err != nil {
			return nil, mapError(id, err)
		}
		interestRate = r
	}

	exists, err := s.store.Exists(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check account exists: %w", err))
	}
	if exists {
		return nil, apperror.ErrAccountExists(id, domain.ErrAccountExists)
	}

	account, err := domain.NewAccount(id, interestRate, s.opts.AccountOptions...)
	if err != nil {
		return nil, mapError(id, err)
	}
	saved, err := s.store.Save(ctx, account)
	if err != nil {
		return nil, mapError(id, err)
	}

	s.cacheBalance(ctx, saved)
	s.log.Info().
		Str("account_id", id).
		Str("interest_rate", interestRate.String()).
		Msg("account created")
	return saved, nil
}

// Deposit credits amount. A repeated idempotency key returns the account unchanged.
func (s *AccountServiceImpl) Deposit(ctx context.Context, id string, amount domain.Money, idempotencyKey string) (*domain.Account, error) {
	account, err := s.execute(ctx, id, "deposit", func(a *domain.Account) error {
		return a.Deposit(amount, idempotencyKey)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("account_id", id).
		Str("amount", amount.String()).
		Int64("version", account.Version()).
		Msg("deposit processed")
	return account, nil
}

// Withdraw debits amount. A repeated idempotency key returns the account unchanged.
func (s *AccountServiceImpl) Withdraw(ctx context.Context, id string, amount domain.Money, idempotencyKey string) (*domain.Account, error) {
	account, err := s.execute(ctx, id, "withdraw", func(a *domain.Account) error {
		return a.Withdraw(amount, idempotencyKey)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().
		Str("account_id", id).
		Str("amount", amount.String()).
		Int64("version", account.Version()).
		Msg("withdrawal processed")
	return account, nil
}

// AccrueInterest compounds the balance once. The returned Accrual reports the interest earned
// even when it was too small to apply.
func (s *AccountServiceImpl) AccrueInterest(ctx context.Context, id string, idempotencyKey string) (*domain.Account, domain.Accrual, error) {
	var accrual domain.Accrual
	account, err := s.execute(ctx, id, "accrue_interest", func(a *domain.Account) error {
		var err error
		accrual, err = a.AccrueInterest(idempotencyKey)
		return err
	})
	if err != nil {
		return nil, domain.Accrual{}, err
	}
	s.log.Info().
		Str("account_id", id).
		Str("earned", accrual.Earned.StringFixed(2)).
		Bool("applied", accrual.Applied).
		Bool("duplicate", accrual.Duplicate).
		Int64("version", account.Version()).
		Msg("interest accrual processed")
	return account, accrual, nil
}

// GetBalance reads through the balance cache when one is configured.
func (s *AccountServiceImpl) GetBalance(ctx context.Context, id string) (domain.Money, error) {
	if err := validateID(id); err != nil {
		return domain.Money{}, err
	}

	if s.cache != nil {
		snap, err := s.cache.Get(ctx, id)
		if err != nil {
			s.log.Warn().Err(err).Str("account_id", id).Msg("balance cache read failed, falling through to store")
		}
		if snap != nil {
			return snap.Balance, nil
		}
	}

	account, err := s.store.Get(ctx, id)
	if err != nil {
		return domain.Money{}, mapError(id, err)
	}
	s.cacheBalance(ctx, account)
	return account.Balance(), nil
}

func (s *AccountServiceImpl) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	account, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, mapError(id, err)
	}
	return account, nil
}

// execute runs load, command, save. A concurrency conflict reloads the account and applies
// the command again, so an idempotency key that another writer already stored becomes a no-op.
func (s *AccountServiceImpl) execute(ctx context.Context, id, op string, command func(*domain.Account) error) (*domain.Account, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		account, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, mapError(id, err)
		}
		if err := command(account); err != nil {
			return nil, mapError(id, err)
		}
		if !account.HasPendingChanges() {
			return account, nil
		}

		saved, err := s.store.Save(ctx, account)
		if err == nil {
			s.cacheBalance(ctx, saved)
			return saved, nil
		}
		if !errors.Is(err, domain.ErrConcurrencyConflict) || attempt >= s.opts.ConflictRetries {
			return nil, mapError(id, err)
		}
		if err := ctx.Err(); err != nil {
			return nil, apperror.InternalError(err)
		}

		s.log.Warn().
			Str("account_id", id).
			Str("op", op).
			Int("attempt", attempt+1).
			Msg("concurrency conflict, retrying")
	}
}

// cacheBalance is best effort. When the write fails the cached entry is evicted so that
// GetBalance reads the store instead of an older snapshot.
func (s *AccountServiceImpl) cacheBalance(ctx context.Context, account *domain.Account) {
	if s.cache == nil {
		return
	}
	snap := ports.BalanceSnapshot{Balance: account.Balance(), Version: account.Version()}
	err := s.cache.Set(ctx, account.ID(), snap, s.opts.BalanceTTL)
	if err == nil {
		return
	}
	s.log.Warn().Err(err).Str("account_id", account.ID()).Msg("balance cache write failed, evicting entry")

	if err := s.cache.Invalidate(ctx, account.ID()); err != nil {
		s.log.Error().Err(err).
			Str("account_id", account.ID()).
			Dur("ttl", s.opts.BalanceTTL).
			Msg("balance cache eviction failed, a stale balance may be served until the entry expires")
	}
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return apperror.ErrInvalidArgument("Account id is required", domain.ErrInvalidAccountID)
	}
	return nil
}

// mapError translates domain and store failures into application errors.
// ErrCorruptLog is checked first because it may wrap a command error from replay.
func mapError(id string, err error) error {
	switch {
	case errors.Is(err, domain.ErrCorruptLog):
		return apperror.InternalError(err)
	case errors.Is(err, domain.ErrAccountNotFound):
		return apperror.ErrAccountNotFound(id, err)
	case errors.Is(err, domain.ErrAccountExists):
		return apperror.ErrAccountExists(id, err)
	case errors.Is(err, domain.ErrInvalidAccountID):
		return apperror.ErrInvalidArgument("Account id is required", err)
	case errors.Is(err, domain.ErrInvalidRate):
		return apperror.ErrInvalidArgument("Interest rate must be between 0 and 1", err)
	case errors.Is(err, domain.ErrInvalidPeriods):
		return apperror.ErrInvalidArgument("Compounding periods must be positive", err)
	case errors.Is(err, domain.ErrInvalidAmount):
		return apperror.ErrInvalidAmount(err)
	case errors.Is(err, domain.ErrInsufficientFunds):
		return apperror.ErrInsufficientFunds(err)
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return apperror.ErrConflict(err)
	default:
		return apperror.InternalError(err)
	}
}
