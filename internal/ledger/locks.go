package ledger

import (
	"sync"

	"github.com/wolfeidau/payroll/internal/address"
)

// accountLocks serializes instructions that write the same account.
type accountLocks struct {
	mu    sync.Mutex
	locks map[address.Address]*accountLock
}

type accountLock struct {
	mu   sync.Mutex
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[address.Address]*accountLock)}
}

// lock blocks until addr is free and returns the matching unlock.
func (l *accountLocks) lock(addr address.Address) func() {
	l.mu.Lock()
	al, ok := l.locks[addr]
	if !ok {
		al = &accountLock{}
		l.locks[addr] = al
	}
	al.refs++
	l.mu.Unlock()

	al.mu.Lock()

	return func() {
		al.mu.Unlock()

		l.mu.Lock()
		al.refs--
		if al.refs == 0 {
			delete(l.locks, addr)
		}
		l.mu.Unlock()
	}
}
