package store

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/wolfeidau/payroll/internal/address"
)

// Sentinel errors for account store operations
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrAccountExists       = errors.New("account already exists")
	ErrVersionConflict     = errors.New("account version conflict")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceOverflow     = errors.New("balance overflow")
	ErrInvalidBatch        = errors.New("invalid batch")
)

// Account is a stored account record. Data holds the account's fixed binary layout.
type Account struct {
	Address   address.Address
	Data      []byte
	Version   int64
	UpdatedAt time.Time
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	clone := *a
	clone.Data = bytes.Clone(a.Data)
	return &clone
}

// AccountWrite stages the new data of one account.
type AccountWrite struct {
	Address address.Address
	Data    []byte

	// Version is the version observed when the account was loaded.
	// Zero means the account must not exist yet.
	Version int64
}

// BalanceChange adjusts the native balance of an identity.
type BalanceChange struct {
	Address address.Address
	Credit  uint64
	Debit   uint64
}

// Batch is the complete set of changes produced by one instruction.
// A batch is applied entirely or not at all.
type Batch struct {
	Signature   string
	Instruction string
	CommittedAt time.Time
	Accounts    []AccountWrite
	Balances    []BalanceChange
}

// Validate checks the batch is internally consistent.
func (b *Batch) Validate() error {
	if b.Signature == "" {
		return errors.Join(ErrInvalidBatch, errors.New("signature is required"))
	}

	seen := make(map[address.Address]struct{}, len(b.Accounts))
	for _, w := range b.Accounts {
		if _, ok := seen[w.Address]; ok {
			return errors.Join(ErrInvalidBatch, errors.New("duplicate account write: "+w.Address.String()))
		}
		seen[w.Address] = struct{}{}

		if w.Version < 0 {
			return errors.Join(ErrInvalidBatch, errors.New("negative version: "+w.Address.String()))
		}
	}

	return nil
}

// Filter matches account data by comparing Bytes at Offset.
type Filter struct {
	Offset int
	Bytes  []byte
}

// Match reports whether data contains f.Bytes at f.Offset.
func (f Filter) Match(data []byte) bool {
	if f.Offset < 0 || f.Offset+len(f.Bytes) > len(data) {
		return false
	}
	return bytes.Equal(data[f.Offset:f.Offset+len(f.Bytes)], f.Bytes)
}

// MatchAll reports whether data satisfies every filter.
func MatchAll(data []byte, filters []Filter) bool {
	for _, f := range filters {
		if !f.Match(data) {
			return false
		}
	}
	return true
}

// AccountStore defines the interface for account and balance storage.
type AccountStore interface {
	// GetAccount retrieves an account by address.
	// Returns ErrAccountNotFound if the address holds no data.
	GetAccount(ctx context.Context, addr address.Address) (*Account, error)

	// ListAccounts returns every account matching all filters, ordered by address.
	ListAccounts(ctx context.Context, filters ...Filter) ([]*Account, error)

	// GetBalance returns the native balance of an identity. Unknown identities have a zero balance.
	GetBalance(ctx context.Context, addr address.Address) (uint64, error)

	// Apply commits a batch atomically.
	// Returns ErrAccountExists when creating an occupied address, ErrVersionConflict when an
	// account changed since it was loaded and ErrInsufficientBalance when a debit exceeds a balance.
	Apply(ctx context.Context, batch *Batch) error
}

// Journal is a durable log of committed batches.
type Journal interface {
	// Append durably writes one encoded batch and returns its sequence number.
	Append(ctx context.Context, payload []byte) (int64, error)

	// Replay calls fn for every record in sequence order.
	Replay(ctx context.Context, fn func(sequence int64, payload []byte) error) error
}

// ApplyBalance returns balance after applying change.
func ApplyBalance(balance uint64, change BalanceChange) (uint64, error) {
	next := balance + change.Credit
	if next < balance {
		return balance, ErrBalanceOverflow
	}
	if next < change.Debit {
		return balance, ErrInsufficientBalance
	}
	return next - change.Debit, nil
}
