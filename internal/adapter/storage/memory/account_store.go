// Package memory holds a volatile AccountStore for tests and single-process deployments.
package memory

import (
	"context"
	"sync"

	"savings-account/internal/core/domain"
)

// AccountStore keeps aggregates in a map. The last Save wins; there is no version check.
// Aggregates are copied on the way in and out so callers never share one.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[string]*domain.Account)}
}

func (s *AccountStore) Exists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.accounts[id]
	return ok, nil
}

func (s *AccountStore) Get(_ context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return a.Clone(), nil
}

func (s *AccountStore) Save(_ context.Context, account *domain.Account) (*domain.Account, error) {
	account.MarkPersisted()

	s.mu.Lock()
	s.accounts[account.ID()] = account.Clone()
	s.mu.Unlock()

	return account, nil
}
