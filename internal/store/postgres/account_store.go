package postgres

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/payroll/internal/address"
	"github.com/wolfeidau/payroll/internal/store"
)

// AccountStore implements store.AccountStore using PostgreSQL.
// Each batch is committed in a single transaction.
type AccountStore struct {
	pool *pgxpool.Pool
	cfg  *AccountStoreConfig
}

// NewAccountStore creates a PostgreSQL-backed account store on a shared pool,
// running migrations first when cfg.AutoMigrate is set.
func NewAccountStore(ctx context.Context, pool *pgxpool.Pool, cfg *AccountStoreConfig) (*AccountStore, error) {
	if cfg == nil {
		cfg = &AccountStoreConfig{}
	}
	cfg.ApplyDefaults()

	if cfg.AutoMigrate {
		if err := runMigrations(ctx, pool); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	return &AccountStore{pool: pool, cfg: cfg}, nil
}

func (s *AccountStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.QueryTimeoutSeconds <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(s.cfg.QueryTimeoutSeconds)*time.Second)
}

// GetAccount retrieves an account by address.
func (s *AccountStore) GetAccount(ctx context.Context, addr address.Address) (*store.Account, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	acct := &store.Account{Address: addr}
	err := s.pool.QueryRow(ctx, `
		SELECT data, version, updated_at
		FROM accounts
		WHERE address = $1
	`, addr[:]).Scan(&acct.Data, &acct.Version, &acct.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", mapPostgresError(err))
	}

	return acct, nil
}

// ListAccounts returns every account matching all filters, ordered by address.
func (s *AccountStore) ListAccounts(ctx context.Context, filters ...store.Filter) ([]*store.Account, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query, args := buildListQuery(filters)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", mapPostgresError(err))
	}
	defer rows.Close()

	result := make([]*store.Account, 0)
	for rows.Next() {
		var (
			raw  []byte
			acct store.Account
		)
		if err := rows.Scan(&raw, &acct.Data, &acct.Version, &acct.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}

		acct.Address, err = address.FromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid stored address: %w", err)
		}

		result = append(result, &acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", mapPostgresError(err))
	}

	return result, nil
}

// buildListQuery translates byte filters into substring comparisons.
// Postgres substring positions are 1-based.
func buildListQuery(filters []store.Filter) (string, []any) {
	var (
		sb   strings.Builder
		args []any
	)

	sb.WriteString("SELECT address, data, version, updated_at FROM accounts")

	for i, f := range filters {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		args = append(args, f.Bytes)
		fmt.Fprintf(&sb, "substring(data FROM %d FOR %d) = $%d", f.Offset+1, len(f.Bytes), len(args))
	}

	sb.WriteString(" ORDER BY address")

	return sb.String(), args
}

// GetBalance returns the native balance of an identity.
func (s *AccountStore) GetBalance(ctx context.Context, addr address.Address) (uint64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var lamports int64
	err := s.pool.QueryRow(ctx, `SELECT lamports FROM balances WHERE address = $1`, addr[:]).Scan(&lamports)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get balance: %w", mapPostgresError(err))
	}

	//nolint:gosec // constrained non-negative by the schema
	return uint64(lamports), nil
}

// Apply commits a batch in one transaction.
func (s *AccountStore) Apply(ctx context.Context, batch *store.Batch) error {
	if err := batch.Validate(); err != nil {
		return err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	committedAt := batch.CommittedAt
	if committedAt.IsZero() {
		committedAt = time.Now().UTC()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapPostgresError(err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	for _, w := range batch.Accounts {
		if err := s.writeAccount(ctx, tx, w, committedAt); err != nil {
			return err
		}
	}

	// lock balance rows in address order; stable keeps per-address ordering
	changes := slices.Clone(batch.Balances)
	slices.SortStableFunc(changes, func(a, b store.BalanceChange) int {
		return bytes.Compare(a.Address[:], b.Address[:])
	})
	for _, c := range changes {
		if err := s.changeBalance(ctx, tx, c, committedAt); err != nil {
			return err
		}
	}

	payload, err := batch.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (signature, instruction, committed_at, batch)
		VALUES ($1, $2, $3, $4)
	`, batch.Signature, batch.Instruction, committedAt, payload)
	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", mapPostgresError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("signature", batch.Signature).
		Str("instruction", batch.Instruction).
		Int("accounts", len(batch.Accounts)).
		Int("balances", len(batch.Balances)).
		Msg("Committed batch")

	return nil
}

func (s *AccountStore) writeAccount(ctx context.Context, tx pgx.Tx, w store.AccountWrite, at time.Time) error {
	if w.Version == 0 {
		tag, err := tx.Exec(ctx, `
			INSERT INTO accounts (address, data, version, updated_at)
			VALUES ($1, $2, 1, $3)
			ON CONFLICT (address) DO NOTHING
		`, w.Address[:], w.Data, at)
		if err != nil {
			return fmt.Errorf("failed to create account: %w", mapPostgresError(err))
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", store.ErrAccountExists, w.Address)
		}
		return nil
	}

	tag, err := tx.Exec(ctx, `
		UPDATE accounts
		SET data = $2, version = version + 1, updated_at = $3
		WHERE address = $1 AND version = $4
	`, w.Address[:], w.Data, at, w.Version)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", mapPostgresError(err))
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE address = $1)`, w.Address[:]).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check account: %w", mapPostgresError(err))
	}
	if !exists {
		return fmt.Errorf("%w: %s", store.ErrAccountNotFound, w.Address)
	}

	return fmt.Errorf("%w: %s", store.ErrVersionConflict, w.Address)
}

func (s *AccountStore) changeBalance(ctx context.Context, tx pgx.Tx, c store.BalanceChange, at time.Time) error {
	// FOR UPDATE locks nothing on a missing row, so make sure one exists first.
	// A concurrent insert of the same address blocks here until it commits.
	_, err := tx.Exec(ctx, `
		INSERT INTO balances (address, lamports, updated_at)
		VALUES ($1, 0, $2)
		ON CONFLICT (address) DO NOTHING
	`, c.Address[:], at)
	if err != nil {
		return fmt.Errorf("failed to create balance: %w", mapPostgresError(err))
	}

	var current int64
	err = tx.QueryRow(ctx, `SELECT lamports FROM balances WHERE address = $1 FOR UPDATE`, c.Address[:]).Scan(&current)
	if err != nil {
		return fmt.Errorf("failed to lock balance: %w", mapPostgresError(err))
	}

	//nolint:gosec // constrained non-negative by the schema
	next, err := store.ApplyBalance(uint64(current), c)
	if err != nil {
		return fmt.Errorf("%w: %s", err, c.Address)
	}
	if next > math.MaxInt64 {
		return fmt.Errorf("%w: %s", store.ErrBalanceOverflow, c.Address)
	}

	_, err = tx.Exec(ctx, `
		UPDATE balances SET lamports = $2, updated_at = $3 WHERE address = $1
	`, c.Address[:], int64(next), at)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", mapPostgresError(err))
	}

	return nil
}

// TransactionCount returns the number of committed batches.
func (s *AccountStore) TransactionCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM transactions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", mapPostgresError(err))
	}
	return count, nil
}

// MonitorPool logs connection pool statistics every interval until ctx is done.
func (s *AccountStore) MonitorPool(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := s.pool.Stat()
			log.Debug().
				Int32("total_conns", stats.TotalConns()).
				Int32("idle_conns", stats.IdleConns()).
				Int32("acquired_conns", stats.AcquiredConns()).
				Int64("acquire_count", stats.AcquireCount()).
				Int64("acquire_duration_ns", stats.AcquireDuration().Nanoseconds()).
				Msg("Connection pool stats")
		case <-ctx.Done():
			return
		}
	}
}
