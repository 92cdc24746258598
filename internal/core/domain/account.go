package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// openingBalance is the balance of a freshly created account.
var openingBalance = Money{amount: MinimumBalance}

// Accrual describes the outcome of AccrueInterest.
type Accrual struct {
	// Earned is the interest computed for this run. It is reported even when it was
	// too small to be applied, and is zero when the call was a duplicate.
	Earned decimal.Decimal `json:"earned"`
	// Applied is true when an InterestAccrual transaction was appended.
	Applied bool `json:"applied"`
	// Duplicate is true when the idempotency key was already present in the log.
	Duplicate bool `json:"duplicate"`
}

// Option customises a new Account.
type Option func(*Account)

// WithClock overrides the time source used to stamp transactions.
func WithClock(now func() time.Time) Option {
	return func(a *Account) { a.now = now }
}

// WithIDGenerator overrides the transaction id generator.
func WithIDGenerator(newID func() string) Option {
	return func(a *Account) { a.newID = newID }
}

// WithCreatedAt sets the creation time instead of reading the clock.
func WithCreatedAt(t time.Time) Option {
	return func(a *Account) { a.createdAt = t.UTC() }
}

// Account is the savings account aggregate root. It is not safe for concurrent use;
// concurrency is resolved by the store on Save.
type Account struct {
	id               string
	balance          Money
	rate             InterestRate
	createdAt        time.Time
	version          int64
	persistedVersion int64
	transactions     []Transaction

	now   func() time.Time
	newID func() string
}

// stamper yields the id and timestamp for the transaction about to be appended.
type stamper func() (string, time.Time)

// NewAccount opens an account with the minimum balance and version 1.
func NewAccount(id string, rate InterestRate, opts ...Option) (*Account, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidAccountID)
	}

	a := &Account{
		id:      id,
		balance: openingBalance,
		rate:    rate,
		version: 1,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.createdAt.IsZero() {
		a.createdAt = a.now().UTC().Truncate(time.Microsecond)
	}
	return a, nil
}

// Rehydrate rebuilds an account by replaying its log through the command paths.
// Stored transaction ids and timestamps are carried through unchanged.
func Rehydrate(id string, rate InterestRate, createdAt time.Time, log []Transaction, opts ...Option) (*Account, error) {
	a, err := NewAccount(id, rate, append([]Option{WithCreatedAt(createdAt)}, opts...)...)
	if err != nil {
		return nil, err
	}
	for i, tx := range log {
		if err := a.replay(tx); err != nil {
			return nil, fmt.Errorf("replay transaction %d (%s): %w", i, tx.ID, err)
		}
	}
	a.persistedVersion = a.version
	return a, nil
}

func (a *Account) ID() string                { return a.id }
func (a *Account) Balance() Money            { return a.balance }
func (a *Account) Rate() InterestRate        { return a.rate }
func (a *Account) CreatedAt() time.Time      { return a.createdAt }
func (a *Account) Version() int64            { return a.version }
func (a *Account) TransactionCount() int     { return len(a.transactions) }
func (a *Account) PersistedVersion() int64   { return a.persistedVersion }
func (a *Account) MarkPersisted()            { a.persistedVersion = a.version }
func (a *Account) IsPersisted() bool         { return a.persistedVersion > 0 }
func (a *Account) HasPendingChanges() bool   { return a.version != a.persistedVersion }

// Transactions returns a copy of the log in append order.
func (a *Account) Transactions() []Transaction {
	out := make([]Transaction, len(a.transactions))
	copy(out, a.transactions)
	return out
}

// HasIdempotencyKey reports whether any transaction in the log carries key.
// The empty key never matches.
func (a *Account) HasIdempotencyKey(key string) bool {
	if key == "" {
		return false
	}
	for _, tx := range a.transactions {
		if tx.IdempotencyKey == key {
			return true
		}
	}
	return false
}

// Clone returns an independent copy sharing no mutable state with a.
func (a *Account) Clone() *Account {
	c := *a
	c.transactions = a.Transactions()
	return &c
}

// Deposit credits amount. A repeated idempotency key is a silent no-op.
func (a *Account) Deposit(amount Money, idempotencyKey string) error {
	_, err := a.deposit(amount, idempotencyKey, a.fresh)
	return err
}

// Withdraw debits amount. A repeated idempotency key is a silent no-op.
func (a *Account) Withdraw(amount Money, idempotencyKey string) error {
	_, err := a.withdraw(amount, idempotencyKey, a.fresh)
	return err
}

// AccrueInterest compounds the balance once at the account's rate. Interest of
// 0.01 or less is reported but not applied.
func (a *Account) AccrueInterest(idempotencyKey string) (Accrual, error) {
	return a.accrueInterest(idempotencyKey, a.fresh)
}

func (a *Account) deposit(amount Money, key string, stamp stamper) (bool, error) {
	if amount.IsZero() {
		return false, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	}
	if a.HasIdempotencyKey(key) {
		return false, nil
	}

	newBalance, err := a.balance.Add(amount)
	if err != nil {
		return false, err
	}
	a.apply(TransactionTypeDeposit, amount, key, newBalance, stamp)
	return true, nil
}

func (a *Account) withdraw(amount Money, key string, stamp stamper) (bool, error) {
	if amount.IsZero() {
		return false, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	}
	if a.HasIdempotencyKey(key) {
		return false, nil
	}
	if a.balance.LessThan(amount) {
		return false, fmt.Errorf("%w: balance %s is less than %s", ErrInsufficientFunds, a.balance, amount)
	}

	newBalance, err := a.balance.Sub(amount)
	if err != nil {
		return false, fmt.Errorf("%w: withdrawal must leave at least %s", ErrInsufficientFunds, openingBalance)
	}
	a.apply(TransactionTypeWithdrawal, amount, key, newBalance, stamp)
	return true, nil
}

func (a *Account) accrueInterest(key string, stamp stamper) (Accrual, error) {
	if a.HasIdempotencyKey(key) {
		return Accrual{Earned: decimal.Zero, Duplicate: true}, nil
	}

	newBalance, err := CompoundInterest(a.balance, a.rate, 1)
	if err != nil {
		return Accrual{}, err
	}
	earned := newBalance.Amount().Sub(a.balance.Amount())
	result := Accrual{Earned: earned}
	if !earned.GreaterThan(MinimumBalance) {
		return result, nil
	}

	interest, err := NewMoney(earned)
	if err != nil {
		return Accrual{}, err
	}
	a.apply(TransactionTypeInterestAccrual, interest, key, newBalance, stamp)
	result.Applied = true
	return result, nil
}

// apply appends the transaction, moves the balance and bumps the version together.
// All validation happens before it is called.
func (a *Account) apply(txType TransactionType, amount Money, key string, newBalance Money, stamp stamper) {
	id, at := stamp()
	a.transactions = append(a.transactions, Transaction{
		ID:             id,
		AccountID:      a.id,
		Type:           txType,
		Amount:         amount,
		Timestamp:      at,
		IdempotencyKey: key,
	})
	a.balance = newBalance
	a.version++
}

// fresh stamps a new transaction. Timestamps are strictly increasing within the log
// even if the clock stalls or steps backwards.
func (a *Account) fresh() (string, time.Time) {
	at := a.now().UTC().Truncate(time.Microsecond)
	if n := len(a.transactions); n > 0 {
		if last := a.transactions[n-1].Timestamp; !at.After(last) {
			at = last.Add(time.Microsecond)
		}
	}
	return a.newID(), at
}

func (a *Account) replay(tx Transaction) error {
	if tx.AccountID != a.id {
		return fmt.Errorf("%w: transaction belongs to account %q", ErrCorruptLog, tx.AccountID)
	}
	stored := func() (string, time.Time) { return tx.ID, tx.Timestamp.UTC() }

	var (
		applied bool
		err     error
	)
	switch tx.Type {
	case TransactionTypeDeposit:
		applied, err = a.deposit(tx.Amount, tx.IdempotencyKey, stored)
	case TransactionTypeWithdrawal:
		applied, err = a.withdraw(tx.Amount, tx.IdempotencyKey, stored)
	case TransactionTypeInterestAccrual:
		var acc Accrual
		acc, err = a.accrueInterest(tx.IdempotencyKey, stored)
		applied = acc.Applied
		if err == nil && applied && !acc.Earned.Equal(tx.Amount.Amount()) {
			return fmt.Errorf("%w: accrual recomputed as %s, stored %s", ErrCorruptLog, acc.Earned.StringFixed(moneyScale), tx.Amount)
		}
	default:
		return fmt.Errorf("%w: unknown transaction type %d", ErrCorruptLog, int16(tx.Type))
	}

	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptLog, err)
	}
	if !applied {
		return fmt.Errorf("%w: %s was suppressed on replay", ErrCorruptLog, tx.Type)
	}
	return nil
}
