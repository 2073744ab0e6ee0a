package commands

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/payroll/cmd/cli/internal/wallet"
	"github.com/wolfeidau/payroll/internal/address"
	"github.com/wolfeidau/payroll/internal/ledger"
	"github.com/wolfeidau/payroll/internal/server"
	memorystore "github.com/wolfeidau/payroll/internal/store/memory"
)

type harness struct {
	t         *testing.T
	walletDir string
	serverURL string
	out       bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	program := ledger.New(memorystore.NewAccountStore())
	ts := httptest.NewServer(server.NewServer(program, server.Config{
		Faucet: server.FaucetConfig{Enabled: true},
	}).Handler(zerolog.Nop()))
	t.Cleanup(ts.Close)

	return &harness{t: t, walletDir: t.TempDir(), serverURL: ts.URL}
}

func (h *harness) globals() *Globals {
	h.out.Reset()
	return &Globals{Out: &h.out}
}

func (h *harness) wallet(name string) WalletFlags {
	return WalletFlags{Wallet: name, WalletDir: h.walletDir}
}

func (h *harness) server() ServerFlags {
	return ServerFlags{Server: h.serverURL}
}

func (h *harness) program() ProgramFlags {
	return ProgramFlags{ProgramID: ledger.DefaultProgramID.String()}
}

func (h *harness) newWallet(name string) address.Address {
	h.t.Helper()
	ctx := context.Background()

	require.NoError(h.t, (&WalletNewCmd{Name: name, WalletDir: h.walletDir}).Run(ctx, h.globals()))
	require.Contains(h.t, h.out.String(), "Generated wallet: "+name)

	store, err := wallet.NewStore(h.walletDir)
	require.NoError(h.t, err)
	w, err := store.Get(name)
	require.NoError(h.t, err)
	return w.Address
}

func TestPayrollCommands(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	employer := h.newWallet("employer")
	alice := h.newWallet("alice")
	bob := h.newWallet("bob")

	// employer is the default wallet, so flags may leave the wallet name empty.
	require.NoError(t, (&AirdropCmd{Amount: 10_000_000_000, WalletFlags: h.wallet(""), ServerFlags: h.server()}).Run(ctx, h.globals()))
	require.Contains(t, h.out.String(), "Airdropped 10.000000000 SOL")
	require.Contains(t, h.out.String(), employer.String())

	require.NoError(t, (&OrgCreateCmd{Name: "Acme", WalletFlags: h.wallet(""), ServerFlags: h.server()}).Run(ctx, h.globals()))
	require.Contains(t, h.out.String(), "Organization 'Acme' created")

	require.NoError(t, (&DeriveOrgCmd{Name: "Acme", WalletFlags: h.wallet(""), ProgramFlags: h.program()}).Run(h.globals()))
	org, _, err := ledger.OrganizationAddress(ledger.DefaultProgramID, employer, "Acme")
	require.NoError(t, err)
	require.Contains(t, h.out.String(), org.String())

	roster := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(roster, fmt.Appendf(nil, `
organization: %s
workers:
  - name: alice
    identity: %s
    salary: 1500000000
  - name: bob
    identity: %s
    salary: 1000000000
`, org, alice, bob), 0o600))

	add := &WorkerAddCmd{Roster: roster, WalletFlags: h.wallet("employer"), ServerFlags: h.server()}
	require.NoError(t, add.Validate())
	require.NoError(t, add.Run(ctx, h.globals()))
	require.Contains(t, h.out.String(), "Worker alice registered")
	require.Contains(t, h.out.String(), "Worker bob registered")

	require.NoError(t, (&WorkerListCmd{Org: org.String(), ServerFlags: h.server()}).Run(ctx, h.globals()))
	require.Contains(t, h.out.String(), "Payroll cost per cycle: 2.500000000 SOL")

	aliceRecord, _, err := ledger.WorkerAddress(ledger.DefaultProgramID, org, alice)
	require.NoError(t, err)
	require.NoError(t, (&DeriveWorkerCmd{Org: org.String(), Identity: alice.String(), ProgramFlags: h.program()}).Run(h.globals()))
	require.Contains(t, h.out.String(), aliceRecord.String())

	// Unfunded treasury
	run := &PayrollRunCmd{Org: org.String(), Cycle: 1, WalletFlags: h.wallet(""), ServerFlags: h.server()}
	err = run.Run(ctx, h.globals())
	require.ErrorIs(t, err, ledger.ErrInsufficientFunds)

	require.NoError(t, (&TreasuryFundCmd{Org: org.String(), Amount: 6_000_000_000, WalletFlags: h.wallet(""), ServerFlags: h.server()}).Run(ctx, h.globals()))
	require.Contains(t, h.out.String(), "Funded treasury with 6.000000000 SOL")

	dry := &PayrollRunCmd{Org: org.String(), Cycle: 1, DryRun: true, WalletFlags: h.wallet(""), ServerFlags: h.server()}
	require.NoError(t, dry.Run(ctx, h.globals()))
	require.Contains(t, h.out.String(), "Cycle 1 would disburse up to 2.500000000 SOL")

	require.NoError(t, run.Run(ctx, h.globals()))
	require.Contains(t, h.out.String(), "Workers paid:     2")
	require.Contains(t, h.out.String(), "Total disbursed:  2.500000000 SOL")

	// Paying the same cycle again is a no-op.
	require.NoError(t, run.Run(ctx, h.globals()))
	require.Contains(t, h.out.String(), "Workers paid:     0")
	require.Contains(t, h.out.String(), "Workers skipped:  2")

	require.NoError(t, (&BalanceCmd{Identity: alice.String(), ServerFlags: h.server()}).Run(ctx, h.globals()))
	require.Contains(t, h.out.String(), "1.500000000 SOL")

	show := &WorkerShowCmd{Org: org.String(), Identity: alice.String(), ServerFlags: h.server()}
	require.NoError(t, show.Validate())
	require.NoError(t, show.Run(ctx, h.globals()))
	require.Contains(t, h.out.String(), "Last paid cycle:  1")

	require.NoError(t, (&WorkerListCmd{WalletFlags: h.wallet("bob"), ServerFlags: h.server()}).Run(ctx, h.globals()))
	require.Contains(t, h.out.String(), org.String())

	// Only the authority may withdraw.
	withdraw := &TreasuryWithdrawCmd{Org: org.String(), Amount: 1_000_000_000, WalletFlags: h.wallet("alice"), ServerFlags: h.server()}
	require.ErrorIs(t, withdraw.Run(ctx, h.globals()), ledger.ErrUnauthorized)

	withdraw.WalletFlags = h.wallet("employer")
	require.NoError(t, withdraw.Run(ctx, h.globals()))

	orgShow := &OrgShowCmd{Name: "Acme", WalletFlags: h.wallet(""), ServerFlags: h.server(), ProgramFlags: h.program()}
	require.NoError(t, orgShow.Validate())
	require.NoError(t, orgShow.Run(ctx, h.globals()))
	require.Contains(t, h.out.String(), "Treasury:   2.500000000 SOL")
	require.Contains(t, h.out.String(), "Workers:    2")

	require.NoError(t, (&OrgListCmd{Mine: true, WalletFlags: h.wallet(""), ServerFlags: h.server()}).Run(ctx, h.globals()))
	require.Contains(t, h.out.String(), "Acme")

	require.NoError(t, (&OrgListCmd{Mine: true, WalletFlags: h.wallet("alice"), ServerFlags: h.server()}).Run(ctx, h.globals()))
	require.Contains(t, h.out.String(), "No organizations found.")
}

func TestWalletCommands(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	var out bytes.Buffer
	globals := &Globals{Out: &out}

	require.NoError(t, (&WalletListCmd{WalletDir: dir}).Run(ctx, globals))
	assert.Contains(t, out.String(), "No wallets found.")

	require.NoError(t, (&WalletNewCmd{Name: "one", WalletDir: dir}).Run(ctx, globals))
	require.NoError(t, (&WalletNewCmd{Name: "two", WalletDir: dir, SetDefault: true}).Run(ctx, globals))

	err := (&WalletNewCmd{Name: "one", WalletDir: dir}).Run(ctx, globals)
	require.ErrorContains(t, err, "already exists")

	out.Reset()
	require.NoError(t, (&WalletShowCmd{WalletFlags: WalletFlags{WalletDir: dir}}).Run(ctx, globals))
	assert.Contains(t, out.String(), "Name:     two")

	require.NoError(t, (&WalletSetDefaultCmd{Name: "one", WalletDir: dir}).Run(ctx, globals))
	require.ErrorContains(t, (&WalletSetDefaultCmd{Name: "three", WalletDir: dir}).Run(ctx, globals), "not found")

	out.Reset()
	require.NoError(t, (&WalletListCmd{WalletDir: dir}).Run(ctx, globals))
	assert.Contains(t, out.String(), "one")
	assert.Contains(t, out.String(), "two")

	require.NoError(t, (&WalletImportCmd{Name: "copy", Path: filepath.Join(dir, "one.json"), WalletDir: dir}).Run(ctx, globals))

	store, err := wallet.NewStore(dir)
	require.NoError(t, err)
	one, err := store.Get("one")
	require.NoError(t, err)
	imported, err := store.Get("copy")
	require.NoError(t, err)
	assert.Equal(t, one.Address, imported.Address)

	require.NoError(t, (&WalletDeleteCmd{Name: "copy", WalletDir: dir}).Run(ctx, globals))
	require.ErrorContains(t, (&WalletDeleteCmd{Name: "copy", WalletDir: dir}).Run(ctx, globals), "not found")

	flags := WalletFlags{Wallet: "missing", WalletDir: dir}
	_, _, err = flags.signer()
	require.ErrorContains(t, err, `wallet "missing" not found`)
}

func TestRosterValidate(t *testing.T) {
	a := address.Address{1}
	b := address.Address{2}

	tests := []struct {
		name    string
		roster  Roster
		wantErr string
	}{
		{name: "valid", roster: Roster{Workers: []RosterWorker{{Identity: a, Salary: 1}, {Identity: b, Salary: 2}}}},
		{name: "empty", roster: Roster{}, wantErr: "no workers"},
		{name: "missing identity", roster: Roster{Workers: []RosterWorker{{Salary: 1}}}, wantErr: "identity is required"},
		{name: "zero salary", roster: Roster{Workers: []RosterWorker{{Identity: a}}}, wantErr: "salary must be greater than zero"},
		{name: "duplicate", roster: Roster{Workers: []RosterWorker{{Identity: a, Salary: 1}, {Identity: a, Salary: 2}}}, wantErr: "already listed as worker 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.roster.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoadRoster_invalidAddress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers:\n  - identity: not-an-address\n    salary: 1\n"), 0o600))

	_, err := LoadRoster(path)
	require.ErrorContains(t, err, "failed to parse roster")
}

func TestParseEntries(t *testing.T) {
	worker := address.Address{7}
	payee := address.Address{9}

	entries, err := parseEntries([]string{worker.String() + ":" + payee.String()})
	require.NoError(t, err)
	require.Equal(t, []ledger.PayrollEntry{{Worker: worker, Payee: payee}}, entries)

	_, err = parseEntries([]string{worker.String()})
	require.ErrorContains(t, err, "expected worker:payee")

	_, err = parseEntries([]string{worker.String() + ":nope0"})
	require.Error(t, err)
}

func TestFormatLamports(t *testing.T) {
	assert.Equal(t, "0.000000000 SOL (0 lamports)", formatLamports(0))
	assert.Equal(t, "1.500000000 SOL (1500000000 lamports)", formatLamports(1_500_000_000))
	assert.Equal(t, "0.000000042 SOL (42 lamports)", formatLamports(42))
}
