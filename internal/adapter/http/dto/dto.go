package dto

import (
	"time"

	"savings-account/internal/core/domain"

	"github.com/shopspring/decimal"
)

// CreateAccountRequest is the request body for opening an account.
// InterestRate accepts a JSON number or string; omitted means the configured default.
type CreateAccountRequest struct {
	AccountID    string           `json:"account_id" binding:"required,account_id"`
	InterestRate *decimal.Decimal `json:"interest_rate,omitempty"`
}

// AmountRequest is the request body for deposits and withdrawals.
type AmountRequest struct {
	Amount string `json:"amount" binding:"required,money"`
}

// CreateAccountResponse is returned after an account is opened.
type CreateAccountResponse struct {
	AccountID string `json:"account_id"`
	Version   int64  `json:"version"`
}

// BalanceResponse is the response body for balance queries.
type BalanceResponse struct {
	AccountID string `json:"account_id"`
	Balance   string `json:"balance"`
}

// TransactionResponse is one entry of an account's log.
type TransactionResponse struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Amount         string `json:"amount"`
	Timestamp      string `json:"timestamp"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// AccountResponse is the full view of an account.
type AccountResponse struct {
	AccountID    string                `json:"account_id"`
	Balance      string                `json:"balance"`
	InterestRate string                `json:"interest_rate"`
	Version      int64                 `json:"version"`
	CreatedAt    string                `json:"created_at"`
	Transactions []TransactionResponse `json:"transactions"`
}

// AccrualResponse is the response body for interest accrual.
type AccrualResponse struct {
	Account        AccountResponse `json:"account"`
	InterestEarned string          `json:"interest_earned"`
	Applied        bool            `json:"applied"`
	Duplicate      bool            `json:"duplicate"`
}

func ToAccountResponse(a *domain.Account) AccountResponse {
	txs := a.Transactions()
	out := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, TransactionResponse{
			ID:             tx.ID,
			Type:           tx.Type.String(),
			Amount:         tx.Amount.String(),
			Timestamp:      tx.Timestamp.UTC().Format(time.RFC3339Nano),
			IdempotencyKey: tx.IdempotencyKey,
		})
	}

	return AccountResponse{
		AccountID:    a.ID(),
		Balance:      a.Balance().String(),
		InterestRate: a.Rate().Value().String(),
		Version:      a.Version(),
		CreatedAt:    a.CreatedAt().UTC().Format(time.RFC3339Nano),
		Transactions: out,
	}
}

func ToAccrualResponse(a *domain.Account, accrual domain.Accrual) AccrualResponse {
	return AccrualResponse{
		Account:        ToAccountResponse(a),
		InterestEarned: accrual.Earned.StringFixed(2),
		Applied:        accrual.Applied,
		Duplicate:      accrual.Duplicate,
	}
}
