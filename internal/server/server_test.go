package server

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/payroll/internal/address"
	"github.com/wolfeidau/payroll/internal/api"
	"github.com/wolfeidau/payroll/internal/auth"
	"github.com/wolfeidau/payroll/internal/client"
	"github.com/wolfeidau/payroll/internal/ledger"
	memorystore "github.com/wolfeidau/payroll/internal/store/memory"
)

type wallet struct {
	key      ed25519.PrivateKey
	identity address.Address
	client   *api.PayrollServiceClient
}

func newTestServer(t *testing.T, cfg Config) *httptest.Server {
	t.Helper()
	program := ledger.New(memorystore.NewAccountStore())
	ts := httptest.NewServer(NewServer(program, cfg).Handler(zerolog.Nop()))
	t.Cleanup(ts.Close)
	return ts
}

func newWallet(t *testing.T, serverURL string) *wallet {
	t.Helper()
	pub, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	identity, err := address.FromPublicKey(pub)
	require.NoError(t, err)

	return &wallet{
		key:      key,
		identity: identity,
		client:   client.New(client.Config{ServerURL: serverURL, Timeout: 10 * time.Second, Key: key}),
	}
}

func TestPayrollWorkflow(t *testing.T) {
	ts := newTestServer(t, Config{Faucet: FaucetConfig{Enabled: true}})
	ctx := context.Background()

	alice := newWallet(t, ts.URL)
	w1 := newWallet(t, ts.URL)

	// 1. Fund the authority from the faucet
	_, err := alice.client.Airdrop(ctx, connect.NewRequest(&api.AirdropRequest{Identity: alice.identity, Amount: 10_000_000}))
	require.NoError(t, err)

	// 2. Create the organization
	created, err := alice.client.CreateOrganization(ctx, connect.NewRequest(&api.CreateOrganizationRequest{Name: "Acme"}))
	require.NoError(t, err)
	require.Equal(t, []string{"Organization 'Acme' created"}, created.Msg.Receipt.Logs)
	org := created.Msg.Receipt.Address

	// 3. Register a worker
	added, err := alice.client.AddWorker(ctx, connect.NewRequest(&api.AddWorkerRequest{Organization: org, Worker: w1.identity, Salary: 1_000_000}))
	require.NoError(t, err)
	workerAddr := added.Msg.Receipt.Address

	// 4. Fund the treasury
	_, err = alice.client.FundTreasury(ctx, connect.NewRequest(&api.FundTreasuryRequest{Organization: org, Amount: 5_000_000}))
	require.NoError(t, err)

	// 5. Run payroll twice for the same cycle
	entries := []ledger.PayrollEntry{{Worker: workerAddr, Payee: w1.identity}}
	paid, err := alice.client.ProcessPayroll(ctx, connect.NewRequest(&api.ProcessPayrollRequest{Organization: org, Cycle: 1000, Entries: entries}))
	require.NoError(t, err)
	require.Equal(t, uint64(1), paid.Msg.Result.WorkersPaid)
	require.Equal(t, uint64(1_000_000), paid.Msg.Result.TotalDisbursed)

	again, err := alice.client.ProcessPayroll(ctx, connect.NewRequest(&api.ProcessPayrollRequest{Organization: org, Cycle: 1000, Entries: entries}))
	require.NoError(t, err)
	require.Zero(t, again.Msg.Result.WorkersPaid)
	require.Equal(t, uint64(1), again.Msg.Result.WorkersSkipped)

	// 6. Withdraw part of the treasury
	_, err = alice.client.Withdraw(ctx, connect.NewRequest(&api.WithdrawRequest{Organization: org, Amount: 1_000_000}))
	require.NoError(t, err)

	// 7. Queries are public
	anonymous := client.New(client.Config{ServerURL: ts.URL, Timeout: 10 * time.Second})

	got, err := anonymous.GetOrganization(ctx, connect.NewRequest(&api.GetOrganizationRequest{Address: org}))
	require.NoError(t, err)
	require.Equal(t, uint64(3_000_000), got.Msg.Organization.Treasury)
	require.Equal(t, uint64(1), got.Msg.Organization.WorkersCount)
	require.Equal(t, alice.identity, got.Msg.Organization.Authority)

	worker, err := anonymous.GetWorker(ctx, connect.NewRequest(&api.GetWorkerRequest{Organization: org, Identity: w1.identity}))
	require.NoError(t, err)
	require.Equal(t, workerAddr, worker.Msg.Worker.Address)
	require.Equal(t, uint64(1000), worker.Msg.Worker.LastPaidCycle)

	workers, err := anonymous.ListWorkers(ctx, connect.NewRequest(&api.ListWorkersRequest{Organization: org}))
	require.NoError(t, err)
	require.Len(t, workers.Msg.Workers, 1)
	require.Equal(t, uint64(1_000_000), workers.Msg.PayrollCost)

	orgs, err := anonymous.ListOrganizations(ctx, connect.NewRequest(&api.ListOrganizationsRequest{Authority: alice.identity}))
	require.NoError(t, err)
	require.Len(t, orgs.Msg.Organizations, 1)

	balance, err := anonymous.GetBalance(ctx, connect.NewRequest(&api.GetBalanceRequest{Identity: w1.identity}))
	require.NoError(t, err)
	require.Equal(t, uint64(1_000_000), balance.Msg.Lamports)

	balance, err = anonymous.GetBalance(ctx, connect.NewRequest(&api.GetBalanceRequest{Identity: alice.identity}))
	require.NoError(t, err)
	require.Equal(t, uint64(6_000_000), balance.Msg.Lamports)
}

func TestLedgerErrors(t *testing.T) {
	ts := newTestServer(t, Config{Faucet: FaucetConfig{Enabled: true}})
	ctx := context.Background()

	alice := newWallet(t, ts.URL)
	mallory := newWallet(t, ts.URL)

	created, err := alice.client.CreateOrganization(ctx, connect.NewRequest(&api.CreateOrganizationRequest{Name: "Acme"}))
	require.NoError(t, err)
	org := created.Msg.Receipt.Address

	tests := []struct {
		name     string
		call     func() error
		code     connect.Code
		ledgerEr *ledger.Error
	}{
		{
			name: "unauthorized withdraw",
			call: func() error {
				_, err := mallory.client.Withdraw(ctx, connect.NewRequest(&api.WithdrawRequest{Organization: org, Amount: 1}))
				return err
			},
			code:     connect.CodePermissionDenied,
			ledgerEr: ledger.ErrUnauthorized,
		},
		{
			name: "zero salary",
			call: func() error {
				_, err := alice.client.AddWorker(ctx, connect.NewRequest(&api.AddWorkerRequest{Organization: org, Worker: mallory.identity}))
				return err
			},
			code:     connect.CodeInvalidArgument,
			ledgerEr: ledger.ErrInvalidSalary,
		},
		{
			name: "treasury short",
			call: func() error {
				_, err := alice.client.Withdraw(ctx, connect.NewRequest(&api.WithdrawRequest{Organization: org, Amount: 1}))
				return err
			},
			code:     connect.CodeFailedPrecondition,
			ledgerEr: ledger.ErrInsufficientFunds,
		},
		{
			name: "duplicate organization",
			call: func() error {
				_, err := alice.client.CreateOrganization(ctx, connect.NewRequest(&api.CreateOrganizationRequest{Name: "Acme"}))
				return err
			},
			code:     connect.CodeAlreadyExists,
			ledgerEr: ledger.ErrAccountAlreadyInitialized,
		},
		{
			name: "unknown organization",
			call: func() error {
				_, err := alice.client.GetOrganization(ctx, connect.NewRequest(&api.GetOrganizationRequest{Address: mallory.identity}))
				return err
			},
			code:     connect.CodeNotFound,
			ledgerEr: ledger.ErrAccountNotInitialized,
		},
		{
			name: "missing worker accounts",
			call: func() error {
				_, err := alice.client.AddWorker(ctx, connect.NewRequest(&api.AddWorkerRequest{Organization: org, Worker: mallory.identity, Salary: 10}))
				if err != nil {
					return err
				}
				_, err = alice.client.ProcessPayroll(ctx, connect.NewRequest(&api.ProcessPayrollRequest{Organization: org, Cycle: 1}))
				return err
			},
			code:     connect.CodeInvalidArgument,
			ledgerEr: ledger.ErrMissingWorkerAccount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Error(tt.call())
			require.Error(t, err)
			require.Equal(t, tt.code, connect.CodeOf(err))
			require.ErrorIs(t, err, tt.ledgerEr)
		})
	}
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t, Config{Auth: auth.Config{Audience: "https://payroll.example"}})
	ctx := context.Background()

	t.Run("instruction without token", func(t *testing.T) {
		anonymous := client.New(client.Config{ServerURL: ts.URL, Timeout: 10 * time.Second})
		_, err := anonymous.CreateOrganization(ctx, connect.NewRequest(&api.CreateOrganizationRequest{Name: "Acme"}))
		require.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	})

	t.Run("token for another audience", func(t *testing.T) {
		w := newWallet(t, ts.URL)
		_, err := w.client.CreateOrganization(ctx, connect.NewRequest(&api.CreateOrganizationRequest{Name: "Acme"}))
		require.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
	})

	t.Run("token for this audience", func(t *testing.T) {
		_, key, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		c := client.New(client.Config{ServerURL: ts.URL, Timeout: 10 * time.Second, Key: key, Audience: "https://payroll.example"})

		_, err = c.CreateOrganization(ctx, connect.NewRequest(&api.CreateOrganizationRequest{Name: "Acme"}))
		require.NoError(t, err)
	})

	t.Run("faucet disabled", func(t *testing.T) {
		w := newWallet(t, ts.URL)
		_, err := w.client.Airdrop(ctx, connect.NewRequest(&api.AirdropRequest{Identity: w.identity, Amount: 1}))
		require.Equal(t, connect.CodeUnimplemented, connect.CodeOf(err))
	})
}

func TestFaucetLimits(t *testing.T) {
	ts := newTestServer(t, Config{Faucet: FaucetConfig{Enabled: true, MaxLamports: 100, Cooldown: time.Hour}})
	ctx := context.Background()
	w := newWallet(t, ts.URL)

	_, err := w.client.Airdrop(ctx, connect.NewRequest(&api.AirdropRequest{Identity: w.identity, Amount: 101}))
	require.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))

	_, err = w.client.Airdrop(ctx, connect.NewRequest(&api.AirdropRequest{Identity: w.identity, Amount: 100}))
	require.NoError(t, err)

	_, err = w.client.Airdrop(ctx, connect.NewRequest(&api.AirdropRequest{Identity: w.identity, Amount: 100}))
	require.Equal(t, connect.CodeResourceExhausted, connect.CodeOf(err))
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, Config{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestToConnectError(t *testing.T) {
	err := toConnectError(ledger.ErrInvalidWorkerPDA.WithMessage("entry 0"))

	var connectErr *connect.Error
	require.True(t, errors.As(err, &connectErr))
	require.Equal(t, connect.CodeInvalidArgument, connectErr.Code())
	require.Equal(t, "InvalidWorkerPDA", connectErr.Meta().Get(api.ErrorHeader))

	require.Equal(t, connect.CodeInternal, connect.CodeOf(toConnectError(errors.New("disk full"))))
	require.Equal(t, connect.CodeCanceled, connect.CodeOf(toConnectError(context.Canceled)))
}
