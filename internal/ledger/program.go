package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/payroll/internal/address"
	"github.com/wolfeidau/payroll/internal/store"
	"github.com/wolfeidau/payroll/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Instruction names, as recorded in batches and receipts.
const (
	InstructionCreateOrganization = "create_org"
	InstructionAddWorker          = "add_worker"
	InstructionFundTreasury       = "fund_treasury"
	InstructionProcessPayroll     = "process_payroll"
	InstructionWithdraw           = "withdraw"
	InstructionAirdrop            = "airdrop"
)

// Receipt describes a committed instruction.
type Receipt struct {
	Signature   string          `json:"signature"`
	Instruction string          `json:"instruction"`
	Address     address.Address `json:"address"`
	CommittedAt time.Time       `json:"committed_at"`
	Logs        []string        `json:"logs"`
}

// Program executes payroll instructions against an account store.
// Instructions on the same organization run one at a time; a commit that loses an
// optimistic version race is re-executed from scratch.
type Program struct {
	store     store.AccountStore
	programID address.Address
	clock     func() time.Time
	locks     *accountLocks
	maxTries  uint
	metrics   *telemetry.Metrics
}

// Option configures a Program.
type Option func(*Program)

// WithProgramID sets the program ID that namespaces derived addresses.
func WithProgramID(id address.Address) Option {
	return func(p *Program) {
		p.programID = id
	}
}

// WithClock overrides the source of account creation times.
func WithClock(clock func() time.Time) Option {
	return func(p *Program) {
		p.clock = clock
	}
}

// WithMaxTries bounds how many times an instruction is executed when commits conflict.
func WithMaxTries(n uint) Option {
	return func(p *Program) {
		p.maxTries = n
	}
}

// New creates a program over s.
func New(s store.AccountStore, opts ...Option) *Program {
	p := &Program{
		store:     s,
		programID: DefaultProgramID,
		clock:     time.Now,
		locks:     newAccountLocks(),
		maxTries:  5,
		metrics:   telemetry.GetMetrics(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProgramID returns the program ID.
func (p *Program) ProgramID() address.Address {
	return p.programID
}

// execute runs fn in a fresh txn and commits its batch, holding the lock on key.
// fn must not have side effects outside the txn since it may run more than once.
func (p *Program) execute(ctx context.Context, instruction string, key address.Address, fn func(t *txn) error) (*txn, error) {
	started := time.Now()
	attrs := metric.WithAttributes(attribute.String("instruction", instruction))

	unlock := p.locks.lock(key)
	defer unlock()

	attempt := func() (*txn, error) {
		t := newTxn(ctx, p.store, p.programID, instruction, p.clock().UTC())

		if err := fn(t); err != nil {
			return nil, backoff.Permanent(err)
		}

		if err := p.store.Apply(ctx, t.batch); err != nil {
			if errors.Is(err, store.ErrVersionConflict) {
				p.metrics.StoreConflictsTotal.Add(ctx, 1, attrs)
				zerolog.Ctx(ctx).Debug().Err(err).Str("instruction", instruction).Msg("Commit conflict, retrying")
				return nil, err
			}
			return nil, backoff.Permanent(translateStoreError(err))
		}

		return t, nil
	}

	t, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(&backoff.ExponentialBackOff{
			InitialInterval:     5 * time.Millisecond,
			RandomizationFactor: 0.5,
			Multiplier:          2,
			MaxInterval:         200 * time.Millisecond,
		}),
		backoff.WithMaxTries(p.maxTries),
	)

	p.metrics.InstructionsTotal.Add(ctx, 1, attrs)
	p.metrics.InstructionDuration.Record(ctx, float64(time.Since(started).Milliseconds()), attrs)

	if err != nil {
		p.metrics.InstructionErrorsTotal.Add(ctx, 1, attrs)
		zerolog.Ctx(ctx).Warn().
			Err(err).
			Str("instruction", instruction).
			Str("account", key.String()).
			Msg("Instruction failed")
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("instruction", instruction).
		Str("signature", t.batch.Signature).
		Str("account", key.String()).
		Strs("logs", t.logs).
		Dur("duration", time.Since(started)).
		Msg("Instruction committed")

	return t, nil
}

func (t *txn) receipt(addr address.Address) *Receipt {
	return &Receipt{
		Signature:   t.batch.Signature,
		Instruction: t.batch.Instruction,
		Address:     addr,
		CommittedAt: t.batch.CommittedAt,
		Logs:        t.logs,
	}
}
