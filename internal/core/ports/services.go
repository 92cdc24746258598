package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"

	"savings-account/internal/core/domain"

	"github.com/shopspring/decimal"
)

// AccountService is the application boundary for savings accounts. Every command loads the
// aggregate, applies the change and saves it. Errors are *apperror.AppError values.
type AccountService interface {
	// CreateAccount opens an account. A nil rate selects the configured default.
	CreateAccount(ctx context.Context, id string, rate *decimal.Decimal) (*domain.Account, error)
	Deposit(ctx context.Context, id string, amount domain.Money, idempotencyKey string) (*domain.Account, error)
	Withdraw(ctx context.Context, id string, amount domain.Money, idempotencyKey string) (*domain.Account, error)
	AccrueInterest(ctx context.Context, id string, idempotencyKey string) (*domain.Account, domain.Accrual, error)
	GetBalance(ctx context.Context, id string) (domain.Money, error)
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
}
