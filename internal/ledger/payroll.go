package ledger

import (
	"context"
	"errors"

	"github.com/wolfeidau/payroll/internal/address"
)

// PayrollEntry pairs a worker record with the identity that receives its salary.
type PayrollEntry struct {
	Worker address.Address `json:"worker"`
	Payee  address.Address `json:"payee"`
}

// PayrollResult describes a committed payroll cycle.
type PayrollResult struct {
	Receipt

	Cycle          uint64 `json:"cycle"`
	WorkersPaid    uint64 `json:"workers_paid"`
	WorkersSkipped uint64 `json:"workers_skipped"`
	TotalDisbursed uint64 `json:"total_disbursed"`
}

// EntriesFromRemaining converts an alternating list of worker record and payee
// addresses into entries.
func EntriesFromRemaining(accounts []address.Address) ([]PayrollEntry, error) {
	if len(accounts)%2 != 0 {
		return nil, ErrMissingWorkerAccount
	}

	entries := make([]PayrollEntry, 0, len(accounts)/2)
	for i := 0; i < len(accounts); i += 2 {
		entries = append(entries, PayrollEntry{Worker: accounts[i], Payee: accounts[i+1]})
	}
	return entries, nil
}

// Remaining flattens entries into the alternating worker record, payee form.
func Remaining(entries []PayrollEntry) []address.Address {
	accounts := make([]address.Address, 0, len(entries)*2)
	for _, e := range entries {
		accounts = append(accounts, e.Worker, e.Payee)
	}
	return accounts
}

// ProcessPayroll pays every worker in entries that has not been paid for cycle.
// entries must list every worker of org exactly once. Either every unpaid worker
// is paid or nothing changes.
func (p *Program) ProcessPayroll(ctx context.Context, signer, org address.Address, cycle uint64, entries []PayrollEntry) (*PayrollResult, error) {
	var result PayrollResult

	t, err := p.execute(ctx, InstructionProcessPayroll, org, func(t *txn) error {
		result = PayrollResult{Cycle: cycle}

		o, err := t.loadOrganization(org)
		if err != nil {
			return err
		}
		if err := requireAuthority(o, signer); err != nil {
			return err
		}

		if uint64(len(entries)) != o.WorkersCount {
			return ErrMissingWorkerAccount.WithMessage("expected %d workers, got %d", o.WorkersCount, len(entries))
		}

		workers, err := t.loadPayrollWorkers(o, entries)
		if err != nil {
			return err
		}

		// first pass: total the unpaid salaries before touching anything
		var total uint64
		for _, w := range workers {
			if w.LastPaidCycle == cycle {
				continue
			}
			next := total + w.Salary
			if next < total {
				return ErrInsufficientFunds.WithMessage("payroll total overflows")
			}
			total = next
		}
		if o.Treasury < total {
			return ErrInsufficientFunds.WithMessage("treasury holds %d, payroll needs %d", o.Treasury, total)
		}

		// second pass: pay
		for _, w := range workers {
			if w.LastPaidCycle == cycle {
				result.WorkersSkipped++
				continue
			}

			if err := o.Debit(w.Salary); err != nil {
				return err
			}
			t.credit(w.WorkerIdentity, w.Salary)

			w.LastPaidCycle = cycle
			if err := t.putWorker(w); err != nil {
				return err
			}

			result.WorkersPaid++
			result.TotalDisbursed += w.Salary
		}

		if result.WorkersPaid > 0 {
			if err := t.putOrganization(o); err != nil {
				return err
			}
		}

		t.logf("Payroll processed for org '%s': %d lamports paid to %d workers", o.Name, result.TotalDisbursed, result.WorkersPaid)
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Receipt = *t.receipt(org)

	p.metrics.PayrollDisbursedTotal.Add(ctx, int64(result.TotalDisbursed)) //nolint:gosec // metric only
	p.metrics.PayrollWorkersPaidTotal.Add(ctx, int64(result.WorkersPaid))  //nolint:gosec // metric only
	p.metrics.PayrollSkippedTotal.Add(ctx, int64(result.WorkersSkipped))   //nolint:gosec // metric only

	return &result, nil
}

// loadPayrollWorkers verifies every entry against org and loads the worker records.
// The list is untrusted: each worker address is re-derived from its payee.
func (t *txn) loadPayrollWorkers(org *Organization, entries []PayrollEntry) ([]*Worker, error) {
	seen := make(map[address.Address]struct{}, len(entries))
	workers := make([]*Worker, 0, len(entries))

	for i, e := range entries {
		expected, _, err := WorkerAddress(t.programID, org.Address, e.Payee)
		if err != nil {
			return nil, err
		}
		if e.Worker != expected {
			return nil, ErrInvalidWorkerPDA.WithMessage("entry %d: %s is not the worker record of %s", i, e.Worker, e.Payee)
		}

		if _, dup := seen[e.Worker]; dup {
			return nil, ErrMissingWorkerAccount.WithMessage("entry %d: worker %s listed twice", i, e.Worker)
		}
		seen[e.Worker] = struct{}{}

		w, err := t.loadWorker(e.Worker)
		if err != nil {
			if errors.Is(err, ErrAccountNotInitialized) {
				return nil, ErrMissingWorkerAccount.WithMessage("entry %d: no worker record for %s", i, e.Payee)
			}
			return nil, err
		}

		if w.Organization != org.Address || w.WorkerIdentity != e.Payee {
			return nil, ErrInvalidWorkerWallet.WithMessage("entry %d: worker %s does not pay %s", i, e.Worker, e.Payee)
		}

		workers = append(workers, w)
	}

	return workers, nil
}
