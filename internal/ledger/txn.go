package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/payroll/internal/address"
	"github.com/wolfeidau/payroll/internal/store"
)

// txn stages the changes of one instruction. Nothing is visible to other
// instructions until the program applies the batch.
type txn struct {
	ctx       context.Context
	store     store.AccountStore
	programID address.Address
	now       time.Time

	batch    *store.Batch
	versions map[address.Address]int64
	staged   map[address.Address]int
	logs     []string
}

func newTxn(ctx context.Context, s store.AccountStore, programID address.Address, instruction string, now time.Time) *txn {
	return &txn{
		ctx:       ctx,
		store:     s,
		programID: programID,
		now:       now,
		batch: &store.Batch{
			Signature:   uuid.Must(uuid.NewV7()).String(),
			Instruction: instruction,
			CommittedAt: now,
		},
		versions: make(map[address.Address]int64),
		staged:   make(map[address.Address]int),
	}
}

func (t *txn) logf(format string, args ...any) {
	t.logs = append(t.logs, fmt.Sprintf(format, args...))
}

func (t *txn) load(addr address.Address) (*store.Account, error) {
	acct, err := t.store.GetAccount(t.ctx, addr)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrAccountNotInitialized.WithMessage("%s", addr)
		}
		return nil, fmt.Errorf("failed to load account %s: %w", addr, err)
	}
	t.versions[addr] = acct.Version
	return acct, nil
}

func (t *txn) loadOrganization(addr address.Address) (*Organization, error) {
	acct, err := t.load(addr)
	if err != nil {
		return nil, err
	}

	org := &Organization{Address: addr}
	if err := org.UnmarshalBinary(acct.Data); err != nil {
		return nil, err
	}
	return org, nil
}

func (t *txn) loadWorker(addr address.Address) (*Worker, error) {
	acct, err := t.load(addr)
	if err != nil {
		return nil, err
	}

	w := &Worker{Address: addr}
	if err := w.UnmarshalBinary(acct.Data); err != nil {
		return nil, err
	}
	return w, nil
}

// allocate reserves addr for a new account.
func (t *txn) allocate(addr address.Address) error {
	_, err := t.store.GetAccount(t.ctx, addr)
	switch {
	case err == nil:
		return ErrAccountAlreadyInitialized.WithMessage("%s", addr)
	case errors.Is(err, store.ErrAccountNotFound):
		t.versions[addr] = 0
		return nil
	default:
		return fmt.Errorf("failed to check account %s: %w", addr, err)
	}
}

type encoder interface {
	MarshalBinary() ([]byte, error)
}

func (t *txn) put(addr address.Address, acct encoder) error {
	data, err := acct.MarshalBinary()
	if err != nil {
		return err
	}

	version, ok := t.versions[addr]
	if !ok {
		return fmt.Errorf("account %s written without being loaded", addr)
	}

	write := store.AccountWrite{Address: addr, Data: data, Version: version}
	if i, ok := t.staged[addr]; ok {
		t.batch.Accounts[i] = write
		return nil
	}

	t.staged[addr] = len(t.batch.Accounts)
	t.batch.Accounts = append(t.batch.Accounts, write)
	return nil
}

func (t *txn) putOrganization(org *Organization) error {
	return t.put(org.Address, org)
}

func (t *txn) putWorker(w *Worker) error {
	return t.put(w.Address, w)
}

func (t *txn) balance(addr address.Address) (uint64, error) {
	balance, err := t.store.GetBalance(t.ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance of %s: %w", addr, err)
	}
	return balance, nil
}

func (t *txn) credit(addr address.Address, amount uint64) {
	t.batch.Balances = append(t.batch.Balances, store.BalanceChange{Address: addr, Credit: amount})
}

func (t *txn) debit(addr address.Address, amount uint64) {
	t.batch.Balances = append(t.batch.Balances, store.BalanceChange{Address: addr, Debit: amount})
}
