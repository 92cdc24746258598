package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"savings-account/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	createdAt     = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	createdAtText = "2024-03-01T12:00:00.000000Z"
)

func txColumns() []string {
	return []string{"id", "type", "amount", "created_at", "idempotency_key"}
}

func strPtr(s string) *string { return &s }

func newMockStore(t *testing.T) (*AccountStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	for range schema {
		mock.ExpectExec("CREATE|ALTER").WillReturnResult(pgxmock.NewResult("DDL", 0))
	}
	store, err := NewAccountStore(context.Background(), mock, zerolog.Nop())
	require.NoError(t, err)
	return store, mock
}

// persistedAccount returns acct-1 as loaded from a log of one 100.00 deposit (t1).
func persistedAccount(t *testing.T) *domain.Account {
	t.Helper()
	a, err := domain.Rehydrate("acct-1", domain.DefaultInterestRate, createdAt, []domain.Transaction{{
		ID:        "t1",
		AccountID: "acct-1",
		Type:      domain.TransactionTypeDeposit,
		Amount:    domain.MustMoney("100.00"),
		Timestamp: createdAt.Add(time.Second),
	}}, domain.WithIDGenerator(func() string { return "t2" }),
		domain.WithClock(func() time.Time { return createdAt.Add(time.Minute) }))
	require.NoError(t, err)
	return a
}

func TestNewAccountStore_SchemaFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS savings_accounts").WillReturnError(errors.New("permission denied"))

	_, err = NewAccountStore(context.Background(), mock, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialize schema: migrate table savings_accounts")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_Exists(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := store.Exists(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_Get_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT interest_rate.+FROM savings_accounts").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_Get_ReplaysLog(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT interest_rate.+FROM savings_accounts").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"interest_rate", "created_at"}).AddRow("0.042000", createdAtText))
	mock.ExpectQuery("SELECT id, type, amount.+FROM savings_transactions").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows(txColumns()).
			AddRow("t1", int16(0), "100.00", "2024-03-01T12:00:01.000000Z", strPtr("k1")).
			AddRow("t2", int16(1), "50.00", "2024-03-01T12:00:02.000000Z", (*string)(nil)))

	a, err := store.Get(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "50.01", a.Balance().String())
	assert.Equal(t, int64(3), a.Version())
	assert.Equal(t, int64(3), a.PersistedVersion())
	assert.Equal(t, createdAt, a.CreatedAt())
	assert.True(t, a.HasIdempotencyKey("k1"))

	txs := a.Transactions()
	require.Len(t, txs, 2)
	assert.Equal(t, "t1", txs[0].ID)
	assert.Equal(t, "t2", txs[1].ID)
	assert.Equal(t, createdAt.Add(2*time.Second), txs[1].Timestamp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_RoundTripsFullPrecisionRate(t *testing.T) {
	store, mock := newMockStore(t)
	rate, err := domain.NewInterestRate(decimal.RequireFromString("0.1234564"))
	require.NoError(t, err)

	ids := []string{"t1", "t2"}
	a, err := domain.NewAccount("acct-1", rate,
		domain.WithCreatedAt(createdAt),
		domain.WithClock(func() time.Time { return createdAt.Add(time.Second) }),
		domain.WithIDGenerator(func() string { id := ids[0]; ids = ids[1:]; return id }))
	require.NoError(t, err)
	require.NoError(t, a.Deposit(domain.MustMoney("100000.00"), ""))
	accrual, err := a.AccrueInterest("2024-03")
	require.NoError(t, err)
	require.True(t, accrual.Applied)
	require.Equal(t, "12345.64", accrual.Earned.StringFixed(2))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO savings_accounts").
		WithArgs("acct-1", "112345.65", "0.1234564", createdAtText, int64(3)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT id FROM savings_transactions").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO savings_transactions").
		WithArgs("t1", "acct-1", int16(0), "100000.00", "2024-03-01T12:00:01.000000Z", nil).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO savings_transactions").
		WithArgs("t2", "acct-1", int16(2), "12345.64", "2024-03-01T12:00:01.000001Z", "2024-03").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	_, err = store.Save(context.Background(), a)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT interest_rate.+FROM savings_accounts").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"interest_rate", "created_at"}).AddRow("0.1234564", createdAtText))
	mock.ExpectQuery("SELECT id, type, amount.+FROM savings_transactions").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows(txColumns()).
			AddRow("t1", int16(0), "100000.00", "2024-03-01T12:00:01.000000Z", (*string)(nil)).
			AddRow("t2", int16(2), "12345.64", "2024-03-01T12:00:01.000001Z", strPtr("2024-03")))

	got, err := store.Get(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.True(t, got.Rate().Equal(rate))
	assert.Equal(t, "0.1234564", got.Rate().Value().String())
	assert.Equal(t, "112345.65", got.Balance().String())
	assert.Equal(t, int64(3), got.Version())
	assert.NoError(t, mock.ExpectationsWereMet())

	// A rate truncated to six places no longer reproduces the stored accrual.
	truncated, err := domain.NewInterestRate(decimal.RequireFromString("0.123456"))
	require.NoError(t, err)
	_, err = domain.Rehydrate("acct-1", truncated, createdAt, got.Transactions())
	assert.ErrorIs(t, err, domain.ErrCorruptLog)
}

func TestAccountStore_Get_CorruptLog(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT interest_rate.+FROM savings_accounts").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"interest_rate", "created_at"}).AddRow("0.042", createdAtText))
	mock.ExpectQuery("SELECT id, type, amount.+FROM savings_transactions").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows(txColumns()).
			AddRow("t1", int16(1), "5.00", "2024-03-01T12:00:01.000000Z", (*string)(nil)))

	_, err := store.Get(context.Background(), "acct-1")
	assert.ErrorIs(t, err, domain.ErrCorruptLog)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_Get_UnknownTypeCode(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT interest_rate.+FROM savings_accounts").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"interest_rate", "created_at"}).AddRow("0.042", createdAtText))
	mock.ExpectQuery("SELECT id, type, amount.+FROM savings_transactions").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows(txColumns()).
			AddRow("t1", int16(7), "5.00", "2024-03-01T12:00:01.000000Z", (*string)(nil)))

	_, err := store.Get(context.Background(), "acct-1")
	assert.ErrorIs(t, err, domain.ErrCorruptLog)
}

func TestAccountStore_Save_NewAccount(t *testing.T) {
	store, mock := newMockStore(t)
	a, err := domain.NewAccount("acct-1", domain.DefaultInterestRate, domain.WithCreatedAt(createdAt))
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO savings_accounts").
		WithArgs("acct-1", "0.01", "0.042", createdAtText, int64(1)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT id FROM savings_transactions").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	saved, err := store.Save(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved.PersistedVersion())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_Save_NewAccountWithTransactions(t *testing.T) {
	store, mock := newMockStore(t)
	a, err := domain.NewAccount("acct-1", domain.DefaultInterestRate,
		domain.WithCreatedAt(createdAt),
		domain.WithClock(func() time.Time { return createdAt.Add(time.Second) }),
		domain.WithIDGenerator(func() string { return "t1" }))
	require.NoError(t, err)
	require.NoError(t, a.Deposit(domain.MustMoney("10.00"), "k1"))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO savings_accounts").
		WithArgs("acct-1", "10.01", "0.042", createdAtText, int64(2)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT id FROM savings_transactions").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectExec("INSERT INTO savings_transactions").
		WithArgs("t1", "acct-1", int16(0), "10.00", "2024-03-01T12:00:01.000000Z", "k1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	saved, err := store.Save(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.PersistedVersion())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_Save_AppendsWithVersionCheck(t *testing.T) {
	store, mock := newMockStore(t)
	a := persistedAccount(t)
	require.NoError(t, a.Withdraw(domain.MustMoney("40.00"), ""))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT id FROM savings_transactions").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("t1"))
	mock.ExpectExec("UPDATE savings_accounts SET").
		WithArgs("60.01", "0.042", int64(3), "acct-1", int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO savings_transactions").
		WithArgs("t2", "acct-1", int16(1), "40.00", "2024-03-01T12:01:00.000000Z", nil).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	saved, err := store.Save(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, int64(3), saved.PersistedVersion())
	assert.False(t, saved.HasPendingChanges())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_Save_Conflict(t *testing.T) {
	store, mock := newMockStore(t)
	a := persistedAccount(t)
	require.NoError(t, a.Deposit(domain.MustMoney("1.00"), ""))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT id FROM savings_transactions").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("t1").AddRow("other-writer"))
	mock.ExpectExec("UPDATE savings_accounts SET").
		WithArgs("101.01", "0.042", int64(3), "acct-1", int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	_, err := store.Save(context.Background(), a)
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	assert.Equal(t, int64(2), a.PersistedVersion())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_Save_NothingNew(t *testing.T) {
	store, mock := newMockStore(t)
	a := persistedAccount(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT id FROM savings_transactions").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("t1"))
	mock.ExpectCommit()

	_, err := store.Save(context.Background(), a)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_Save_LostCreateRace(t *testing.T) {
	store, mock := newMockStore(t)
	a, err := domain.NewAccount("acct-1", domain.DefaultInterestRate)
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err = store.Save(context.Background(), a)
	assert.ErrorIs(t, err, domain.ErrAccountExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_Save_InsertUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)
	a, err := domain.NewAccount("acct-1", domain.DefaultInterestRate, domain.WithCreatedAt(createdAt))
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO savings_accounts").
		WithArgs("acct-1", "0.01", "0.042", createdAtText, int64(1)).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err = store.Save(context.Background(), a)
	assert.ErrorIs(t, err, domain.ErrAccountExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountStore_Save_TransactionUniqueViolation(t *testing.T) {
	store, mock := newMockStore(t)
	a := persistedAccount(t)
	require.NoError(t, a.Deposit(domain.MustMoney("1.00"), "k9"))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT id FROM savings_transactions").
		WithArgs("acct-1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("t1"))
	mock.ExpectExec("UPDATE savings_accounts SET").
		WithArgs("101.01", "0.042", int64(3), "acct-1", int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO savings_transactions").
		WithArgs("t2", "acct-1", int16(0), "1.00", "2024-03-01T12:01:00.000000Z", "k9").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectRollback()

	_, err := store.Save(context.Background(), a)
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheck(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("SELECT 1").WillReturnResult(pgxmock.NewResult("SELECT", 1))

	h := NewHealthCheck(mock)
	assert.Equal(t, "postgresql", h.Name())
	assert.NoError(t, h.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
