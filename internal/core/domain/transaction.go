package domain

import (
	"fmt"
	"time"
)

// TransactionType is the kind of balance movement. The numeric values are the persisted codes.
type TransactionType int16

const (
	TransactionTypeDeposit         TransactionType = 0
	TransactionTypeWithdrawal      TransactionType = 1
	TransactionTypeInterestAccrual TransactionType = 2
)

func (t TransactionType) String() string {
	switch t {
	case TransactionTypeDeposit:
		return "DEPOSIT"
	case TransactionTypeWithdrawal:
		return "WITHDRAWAL"
	case TransactionTypeInterestAccrual:
		return "INTEREST_ACCRUAL"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int16(t))
	}
}

// Valid reports whether t is one of the known codes.
func (t TransactionType) Valid() bool {
	return t >= TransactionTypeDeposit && t <= TransactionTypeInterestAccrual
}

// ParseTransactionType converts a stored code back into a TransactionType.
func ParseTransactionType(code int16) (TransactionType, error) {
	t := TransactionType(code)
	if !t.Valid() {
		return 0, fmt.Errorf("%w: unknown transaction type code %d", ErrCorruptLog, code)
	}
	return t, nil
}

// Transaction is an immutable entry in an account's log.
// For interest accruals Amount is the interest earned, not the resulting balance.
type Transaction struct {
	ID             string          `json:"id"`
	AccountID      string          `json:"account_id"`
	Type           TransactionType `json:"type"`
	Amount         Money           `json:"amount"`
	Timestamp      time.Time       `json:"timestamp"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}
