package memory

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/payroll/internal/address"
	"github.com/wolfeidau/payroll/internal/store"
)

// AccountStore is an in-memory implementation of store.AccountStore.
// When a journal is attached every batch is appended to it before being applied,
// so the state can be rebuilt with Restore after a restart.
type AccountStore struct {
	mu       sync.RWMutex
	accounts map[address.Address]*store.Account
	balances map[address.Address]uint64
	journal  store.Journal
}

// Option configures an AccountStore.
type Option func(*AccountStore)

// WithJournal makes the store durable by appending each batch to j.
func WithJournal(j store.Journal) Option {
	return func(s *AccountStore) {
		s.journal = j
	}
}

// NewAccountStore creates a new in-memory account store.
func NewAccountStore(opts ...Option) *AccountStore {
	s := &AccountStore{
		accounts: make(map[address.Address]*store.Account),
		balances: make(map[address.Address]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetAccount retrieves an account by address.
func (s *AccountStore) GetAccount(ctx context.Context, addr address.Address) (*store.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, exists := s.accounts[addr]
	if !exists {
		return nil, store.ErrAccountNotFound
	}

	return acct.Clone(), nil
}

// ListAccounts returns copies of every account matching all filters, ordered by address.
func (s *AccountStore) ListAccounts(ctx context.Context, filters ...store.Filter) ([]*store.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*store.Account, 0)
	for _, acct := range s.accounts {
		if store.MatchAll(acct.Data, filters) {
			result = append(result, acct.Clone())
		}
	}

	slices.SortFunc(result, func(a, b *store.Account) int {
		return bytes.Compare(a.Address[:], b.Address[:])
	})

	return result, nil
}

// GetBalance returns the native balance of an identity.
func (s *AccountStore) GetBalance(ctx context.Context, addr address.Address) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.balances[addr], nil
}

// Apply commits a batch atomically. Nothing is changed unless every write and balance
// change can be applied.
func (s *AccountStore) Apply(ctx context.Context, batch *store.Batch) error {
	if err := batch.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	balances, err := s.check(batch)
	if err != nil {
		return err
	}

	if s.journal != nil {
		payload, err := batch.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to encode batch: %w", err)
		}
		if _, err := s.journal.Append(ctx, payload); err != nil {
			return fmt.Errorf("failed to journal batch: %w", err)
		}
	}

	s.commit(batch, balances)

	return nil
}

// Restore rebuilds the store from its journal. It must be called before the store is used.
func (s *AccountStore) Restore(ctx context.Context) error {
	if s.journal == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	err := s.journal.Replay(ctx, func(sequence int64, payload []byte) error {
		var batch store.Batch
		if err := batch.UnmarshalBinary(payload); err != nil {
			return fmt.Errorf("failed to decode journal record %d: %w", sequence, err)
		}

		balances, err := s.check(&batch)
		if err != nil {
			return fmt.Errorf("failed to replay journal record %d (%s): %w", sequence, batch.Signature, err)
		}

		s.commit(&batch, balances)
		count++
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().Int("batches", count).Int("accounts", len(s.accounts)).Msg("Restored account store from journal")

	return nil
}

// check verifies every precondition of the batch and returns the resulting balances.
// Must be called with the write lock held.
func (s *AccountStore) check(batch *store.Batch) (map[address.Address]uint64, error) {
	for _, w := range batch.Accounts {
		current, exists := s.accounts[w.Address]
		switch {
		case w.Version == 0 && exists:
			return nil, fmt.Errorf("%w: %s", store.ErrAccountExists, w.Address)
		case w.Version > 0 && !exists:
			return nil, fmt.Errorf("%w: %s", store.ErrAccountNotFound, w.Address)
		case w.Version > 0 && current.Version != w.Version:
			return nil, fmt.Errorf("%w: %s", store.ErrVersionConflict, w.Address)
		}
	}

	balances := make(map[address.Address]uint64, len(batch.Balances))
	for _, c := range batch.Balances {
		current, ok := balances[c.Address]
		if !ok {
			current = s.balances[c.Address]
		}

		next, err := store.ApplyBalance(current, c)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", err, c.Address)
		}
		balances[c.Address] = next
	}

	return balances, nil
}

// commit applies a checked batch. Must be called with the write lock held.
func (s *AccountStore) commit(batch *store.Batch, balances map[address.Address]uint64) {
	updatedAt := batch.CommittedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	for _, w := range batch.Accounts {
		s.accounts[w.Address] = &store.Account{
			Address:   w.Address,
			Data:      bytes.Clone(w.Data),
			Version:   w.Version + 1,
			UpdatedAt: updatedAt,
		}
	}

	for addr, balance := range balances {
		s.balances[addr] = balance
	}
}
