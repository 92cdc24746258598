package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"savings-account/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// timestampLayout is fixed width so that ORDER BY created_at sorts chronologically.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

const (
	existsAccountSQL = `SELECT EXISTS(SELECT 1 FROM savings_accounts WHERE id = $1)`

	selectAccountSQL = `SELECT interest_rate::text, created_at FROM savings_accounts WHERE id = $1`

	selectTransactionsSQL = `SELECT id, type, amount::text, created_at, idempotency_key
		FROM savings_transactions WHERE account_id = $1 ORDER BY created_at, id`

	selectTransactionIDsSQL = `SELECT id FROM savings_transactions WHERE account_id = $1`

	insertAccountSQL = `INSERT INTO savings_accounts (id, balance, interest_rate, created_at, version)
		VALUES ($1, $2, $3, $4, $5)`

	updateAccountSQL = `UPDATE savings_accounts SET balance = $1, interest_rate = $2, version = $3
		WHERE id = $4 AND version = $5`

	insertTransactionSQL = `INSERT INTO savings_transactions (id, account_id, type, amount, created_at, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6)`
)

// AccountStore persists accounts as a metadata row plus an append-only transaction log.
// Loading replays the log; the balance and version columns are written for operators
// and for the optimistic version check, never read back into the aggregate.
type AccountStore struct {
	pool Pool
	tx   *Transactor
	log  zerolog.Logger
}

// NewAccountStore bootstraps the schema and returns a ready store.
func NewAccountStore(ctx context.Context, pool Pool, log zerolog.Logger) (*AccountStore, error) {
	if err := Migrate(ctx, pool); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &AccountStore{pool: pool, tx: NewTransactor(pool), log: log.With().Str("component", "account_store").Logger()}, nil
}

func (s *AccountStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, existsAccountSQL, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check account exists: %w", err)
	}
	return exists, nil
}

// Get rebuilds the account by replaying its transaction log.
func (s *AccountStore) Get(ctx context.Context, id string) (*domain.Account, error) {
	var rateText, createdText string
	err := s.pool.QueryRow(ctx, selectAccountSQL, id).Scan(&rateText, &createdText)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}
		return nil, fmt.Errorf("get account: %w", err)
	}

	rateValue, err := decimal.NewFromString(rateText)
	if err != nil {
		return nil, fmt.Errorf("parse interest rate %q: %w", rateText, err)
	}
	rate, err := domain.NewInterestRate(rateValue)
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", id, err)
	}
	createdAt, err := time.Parse(timestampLayout, createdText)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdText, err)
	}

	txs, err := s.listTransactions(ctx, id)
	if err != nil {
		return nil, err
	}

	account, err := domain.Rehydrate(id, rate, createdAt, txs)
	if err != nil {
		return nil, fmt.Errorf("rehydrate account %s: %w", id, err)
	}
	return account, nil
}

func (s *AccountStore) listTransactions(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	rows, err := s.pool.Query(ctx, selectTransactionsSQL, accountID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var (
			id, amountText, createdText string
			code                        int16
			key                         *string
		)
		if err := rows.Scan(&id, &code, &amountText, &createdText, &key); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}

		txType, err := domain.ParseTransactionType(code)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", id, err)
		}
		amount, err := domain.ParseMoney(amountText)
		if err != nil {
			return nil, fmt.Errorf("%w: transaction %s amount: %w", domain.ErrCorruptLog, id, err)
		}
		at, err := time.Parse(timestampLayout, createdText)
		if err != nil {
			return nil, fmt.Errorf("%w: transaction %s timestamp: %w", domain.ErrCorruptLog, id, err)
		}

		tx := domain.Transaction{
			ID:        id,
			AccountID: accountID,
			Type:      txType,
			Amount:    amount,
			Timestamp: at,
		}
		if key != nil {
			tx.IdempotencyKey = *key
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

// Save writes the account's unsaved transactions in one database transaction.
//
// A new account row is inserted as-is. For an existing row the stored version must equal
// account.PersistedVersion(), otherwise another writer got there first and
// domain.ErrConcurrencyConflict is returned. An aggregate with nothing new is not version
// checked at all.
func (s *AccountStore) Save(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	var pending []domain.Transaction
	err := s.tx.WithinTx(ctx, func(dbTx pgx.Tx) error {
		var exists bool
		if err := dbTx.QueryRow(ctx, existsAccountSQL, account.ID()).Scan(&exists); err != nil {
			return fmt.Errorf("check account exists: %w", err)
		}

		switch {
		case !exists:
			if err := insertAccount(ctx, dbTx, account); err != nil {
				return err
			}
		case !account.IsPersisted():
			return fmt.Errorf("%w: %s", domain.ErrAccountExists, account.ID())
		}

		var err error
		pending, err = pendingTransactions(ctx, dbTx, account)
		if err != nil || len(pending) == 0 {
			return err
		}

		if exists {
			tag, err := dbTx.Exec(ctx, updateAccountSQL,
				account.Balance().String(), account.Rate().Value().String(), account.Version(),
				account.ID(), account.PersistedVersion(),
			)
			if err != nil {
				return fmt.Errorf("update account: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("%w: %s expected version %d", domain.ErrConcurrencyConflict, account.ID(), account.PersistedVersion())
			}
		}

		for _, tx := range pending {
			if err := insertTransaction(ctx, dbTx, tx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	account.MarkPersisted()

	s.log.Debug().
		Str("account_id", account.ID()).
		Int64("version", account.Version()).
		Int("new_transactions", len(pending)).
		Msg("account saved")

	return account, nil
}

func insertAccount(ctx context.Context, dbTx pgx.Tx, account *domain.Account) error {
	_, err := dbTx.Exec(ctx, insertAccountSQL,
		account.ID(),
		account.Balance().String(),
		account.Rate().Value().String(),
		account.CreatedAt().UTC().Format(timestampLayout),
		account.Version(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrAccountExists, account.ID())
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// pendingTransactions returns the in-memory transactions whose ids are not yet stored.
func pendingTransactions(ctx context.Context, dbTx pgx.Tx, account *domain.Account) ([]domain.Transaction, error) {
	rows, err := dbTx.Query(ctx, selectTransactionIDsSQL, account.ID())
	if err != nil {
		return nil, fmt.Errorf("list transaction ids: %w", err)
	}
	defer rows.Close()

	stored := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan transaction id: %w", err)
		}
		stored[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction ids: %w", err)
	}

	var pending []domain.Transaction
	for _, tx := range account.Transactions() {
		if _, ok := stored[tx.ID]; !ok {
			pending = append(pending, tx)
		}
	}
	return pending, nil
}

func insertTransaction(ctx context.Context, dbTx pgx.Tx, tx domain.Transaction) error {
	_, err := dbTx.Exec(ctx, insertTransactionSQL,
		tx.ID,
		tx.AccountID,
		int16(tx.Type),
		tx.Amount.String(),
		tx.Timestamp.UTC().Format(timestampLayout),
		nullString(tx.IdempotencyKey),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: transaction %s already stored", domain.ErrConcurrencyConflict, tx.ID)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
