package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfeidau/payroll/internal/address"
	"github.com/wolfeidau/payroll/internal/store"
)

// GetOrganization returns the organization stored at addr.
func (p *Program) GetOrganization(ctx context.Context, addr address.Address) (*Organization, error) {
	acct, err := p.store.GetAccount(ctx, addr)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrAccountNotInitialized.WithMessage("%s", addr)
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	org := &Organization{Address: addr}
	if err := org.UnmarshalBinary(acct.Data); err != nil {
		return nil, err
	}
	return org, nil
}

// GetWorker returns the worker stored at addr.
func (p *Program) GetWorker(ctx context.Context, addr address.Address) (*Worker, error) {
	acct, err := p.store.GetAccount(ctx, addr)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrAccountNotInitialized.WithMessage("%s", addr)
		}
		return nil, fmt.Errorf("failed to get worker: %w", err)
	}

	w := &Worker{Address: addr}
	if err := w.UnmarshalBinary(acct.Data); err != nil {
		return nil, err
	}
	return w, nil
}

// ListAllOrganizations returns every organization.
func (p *Program) ListAllOrganizations(ctx context.Context) ([]*Organization, error) {
	return p.listOrganizations(ctx)
}

// ListOrganizationsByAuthority returns the organizations controlled by authority.
func (p *Program) ListOrganizationsByAuthority(ctx context.Context, authority address.Address) ([]*Organization, error) {
	return p.listOrganizations(ctx, store.Filter{Offset: OrganizationAuthorityOffset, Bytes: authority.Bytes()})
}

// ListWorkersByOrganization returns the workers of org.
func (p *Program) ListWorkersByOrganization(ctx context.Context, org address.Address) ([]*Worker, error) {
	return p.listWorkers(ctx, store.Filter{Offset: WorkerOrganizationOffset, Bytes: org.Bytes()})
}

// ListWorkersByIdentity returns every worker record that pays identity, across organizations.
func (p *Program) ListWorkersByIdentity(ctx context.Context, identity address.Address) ([]*Worker, error) {
	return p.listWorkers(ctx, store.Filter{Offset: WorkerIdentityOffset, Bytes: identity.Bytes()})
}

// PayrollCost returns the sum of the salaries of every worker of org.
func (p *Program) PayrollCost(ctx context.Context, org address.Address) (uint64, error) {
	workers, err := p.ListWorkersByOrganization(ctx, org)
	if err != nil {
		return 0, err
	}

	var total uint64
	for _, w := range workers {
		next := total + w.Salary
		if next < total {
			return 0, ErrArithmeticOverflow
		}
		total = next
	}
	return total, nil
}

// PayrollEntries returns the entry list that pays every worker of org.
func (p *Program) PayrollEntries(ctx context.Context, org address.Address) ([]PayrollEntry, error) {
	workers, err := p.ListWorkersByOrganization(ctx, org)
	if err != nil {
		return nil, err
	}

	entries := make([]PayrollEntry, 0, len(workers))
	for _, w := range workers {
		entries = append(entries, PayrollEntry{Worker: w.Address, Payee: w.WorkerIdentity})
	}
	return entries, nil
}

// Balance returns the native balance of identity.
func (p *Program) Balance(ctx context.Context, identity address.Address) (uint64, error) {
	balance, err := p.store.GetBalance(ctx, identity)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

func (p *Program) listOrganizations(ctx context.Context, filters ...store.Filter) ([]*Organization, error) {
	filters = append([]store.Filter{{Offset: 0, Bytes: organizationDiscriminator}}, filters...)

	accounts, err := p.store.ListAccounts(ctx, filters...)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}

	orgs := make([]*Organization, 0, len(accounts))
	for _, acct := range accounts {
		org := &Organization{Address: acct.Address}
		if err := org.UnmarshalBinary(acct.Data); err != nil {
			return nil, fmt.Errorf("failed to decode organization %s: %w", acct.Address, err)
		}
		orgs = append(orgs, org)
	}
	return orgs, nil
}

func (p *Program) listWorkers(ctx context.Context, filters ...store.Filter) ([]*Worker, error) {
	filters = append([]store.Filter{{Offset: 0, Bytes: workerDiscriminator}}, filters...)

	accounts, err := p.store.ListAccounts(ctx, filters...)
	if err != nil {
		return nil, fmt.Errorf("failed to list workers: %w", err)
	}

	workers := make([]*Worker, 0, len(accounts))
	for _, acct := range accounts {
		w := &Worker{Address: acct.Address}
		if err := w.UnmarshalBinary(acct.Data); err != nil {
			return nil, fmt.Errorf("failed to decode worker %s: %w", acct.Address, err)
		}
		workers = append(workers, w)
	}
	return workers, nil
}
