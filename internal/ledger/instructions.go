package ledger

import (
	"context"

	"github.com/wolfeidau/payroll/internal/address"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CreateOrganization allocates a new organization named name with signer as its authority.
func (p *Program) CreateOrganization(ctx context.Context, signer address.Address, name string) (*Receipt, error) {
	if name == "" || len(name) > MaxNameLength {
		return nil, ErrInvalidName
	}

	addr, bump, err := OrganizationAddress(p.programID, signer, name)
	if err != nil {
		return nil, err
	}

	t, err := p.execute(ctx, InstructionCreateOrganization, addr, func(t *txn) error {
		if err := t.allocate(addr); err != nil {
			return err
		}

		org := &Organization{
			Address:   addr,
			Authority: signer,
			Name:      name,
			CreatedAt: t.now.Unix(),
			Bump:      bump,
		}
		if err := t.putOrganization(org); err != nil {
			return err
		}

		t.logf("Organization '%s' created", name)
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.metrics.AccountsCreatedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "organization")))

	return t.receipt(addr), nil
}

// AddWorker registers identity as a worker of org with a fixed salary.
func (p *Program) AddWorker(ctx context.Context, signer, org, identity address.Address, salary uint64) (*Receipt, error) {
	var workerAddr address.Address

	t, err := p.execute(ctx, InstructionAddWorker, org, func(t *txn) error {
		o, err := t.loadOrganization(org)
		if err != nil {
			return err
		}
		if err := requireAuthority(o, signer); err != nil {
			return err
		}
		if salary == 0 {
			return ErrInvalidSalary
		}

		addr, bump, err := WorkerAddress(p.programID, org, identity)
		if err != nil {
			return err
		}
		if err := t.allocate(addr); err != nil {
			return err
		}

		if o.WorkersCount+1 < o.WorkersCount {
			return ErrArithmeticOverflow
		}
		o.WorkersCount++

		w := &Worker{
			Address:        addr,
			Organization:   org,
			WorkerIdentity: identity,
			Salary:         salary,
			CreatedAt:      t.now.Unix(),
			Bump:           bump,
		}
		if err := t.putWorker(w); err != nil {
			return err
		}
		if err := t.putOrganization(o); err != nil {
			return err
		}

		workerAddr = addr
		t.logf("Worker %s added with salary %d", identity, salary)
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.metrics.AccountsCreatedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", "worker")))

	return t.receipt(workerAddr), nil
}

// FundTreasury moves amount from the signer's balance into the treasury of org.
func (p *Program) FundTreasury(ctx context.Context, signer, org address.Address, amount uint64) (*Receipt, error) {
	t, err := p.execute(ctx, InstructionFundTreasury, org, func(t *txn) error {
		o, err := t.loadOrganization(org)
		if err != nil {
			return err
		}
		if err := requireAuthority(o, signer); err != nil {
			return err
		}
		if amount == 0 {
			return ErrInvalidAmount
		}

		balance, err := t.balance(signer)
		if err != nil {
			return err
		}
		if balance < amount {
			return ErrInsufficientBalance.WithMessage("%s has %d, needs %d", signer, balance, amount)
		}

		if err := o.Credit(amount); err != nil {
			return err
		}
		t.debit(signer, amount)

		if err := t.putOrganization(o); err != nil {
			return err
		}

		t.logf("Treasury funded by %d lamports", amount)
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.metrics.TreasuryFundedTotal.Add(ctx, int64(amount)) //nolint:gosec // metric only

	return t.receipt(org), nil
}

// Withdraw moves amount from the treasury of org to the signer's balance.
func (p *Program) Withdraw(ctx context.Context, signer, org address.Address, amount uint64) (*Receipt, error) {
	t, err := p.execute(ctx, InstructionWithdraw, org, func(t *txn) error {
		o, err := t.loadOrganization(org)
		if err != nil {
			return err
		}
		if err := requireAuthority(o, signer); err != nil {
			return err
		}

		if err := o.Debit(amount); err != nil {
			return err
		}
		t.credit(signer, amount)

		if err := t.putOrganization(o); err != nil {
			return err
		}

		t.logf("Withdrawn %d lamports from treasury", amount)
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.metrics.TreasuryWithdrawnTotal.Add(ctx, int64(amount)) //nolint:gosec // metric only

	return t.receipt(org), nil
}

// Airdrop credits amount to the native balance of identity.
func (p *Program) Airdrop(ctx context.Context, identity address.Address, amount uint64) (*Receipt, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}

	t, err := p.execute(ctx, InstructionAirdrop, identity, func(t *txn) error {
		t.credit(identity, amount)
		t.logf("Airdropped %d lamports to %s", amount, identity)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return t.receipt(identity), nil
}
