package memory

import (
	"context"
	"sync"
	"testing"

	"savings-account/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccount(t *testing.T, id string) *domain.Account {
	t.Helper()
	a, err := domain.NewAccount(id, domain.DefaultInterestRate)
	require.NoError(t, err)
	return a
}

func TestAccountStore_GetUnknown(t *testing.T) {
	s := NewAccountStore()

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	ok, err := s.Exists(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAccountStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewAccountStore()
	a := newAccount(t, "acct-1")
	require.NoError(t, a.Deposit(domain.MustMoney("10.00"), "k1"))

	saved, err := s.Save(ctx, a)
	require.NoError(t, err)
	assert.Same(t, a, saved)
	assert.Equal(t, int64(2), saved.PersistedVersion())

	ok, err := s.Exists(ctx, "acct-1")
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.Get(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "10.01", got.Balance().String())
	assert.Equal(t, int64(2), got.Version())
	assert.True(t, got.HasIdempotencyKey("k1"))
}

func TestAccountStore_ReturnsIndependentCopies(t *testing.T) {
	ctx := context.Background()
	s := NewAccountStore()
	a := newAccount(t, "acct-1")
	_, err := s.Save(ctx, a)
	require.NoError(t, err)

	// Mutating the caller's aggregate after Save does not leak into the store.
	require.NoError(t, a.Deposit(domain.MustMoney("5.00"), ""))

	got, err := s.Get(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "0.01", got.Balance().String())

	require.NoError(t, got.Deposit(domain.MustMoney("1.00"), ""))
	again, err := s.Get(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "0.01", again.Balance().String())
}

func TestAccountStore_LastWriterWins(t *testing.T) {
	ctx := context.Background()
	s := NewAccountStore()
	_, err := s.Save(ctx, newAccount(t, "acct-1"))
	require.NoError(t, err)

	first, err := s.Get(ctx, "acct-1")
	require.NoError(t, err)
	second, err := s.Get(ctx, "acct-1")
	require.NoError(t, err)

	require.NoError(t, first.Deposit(domain.MustMoney("10.00"), ""))
	require.NoError(t, second.Deposit(domain.MustMoney("20.00"), ""))

	_, err = s.Save(ctx, first)
	require.NoError(t, err)
	_, err = s.Save(ctx, second)
	require.NoError(t, err)

	got, err := s.Get(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "20.01", got.Balance().String())
}

func TestAccountStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewAccountStore()
	_, err := s.Save(ctx, newAccount(t, "acct-1"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, err := s.Get(ctx, "acct-1")
			if err != nil {
				return
			}
			_ = a.Deposit(domain.MustMoney("1.00"), "")
			_, _ = s.Save(ctx, a)
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "acct-1")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, got.Version(), int64(2))
	assert.LessOrEqual(t, got.Version(), int64(21))
	assert.Equal(t, got.Version(), got.PersistedVersion())
}
