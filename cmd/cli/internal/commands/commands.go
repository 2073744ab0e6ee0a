package commands

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/otelconnect"
	"github.com/wolfeidau/payroll/cmd/cli/internal/wallet"
	"github.com/wolfeidau/payroll/internal/address"
	"github.com/wolfeidau/payroll/internal/api"
	"github.com/wolfeidau/payroll/internal/client"
	"github.com/wolfeidau/payroll/internal/ledger"
)

type Globals struct {
	Debug   bool
	Version string

	// Out receives command output, os.Stdout when nil.
	Out io.Writer
}

func (g *Globals) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// WalletFlags locate the wallet store and pick the signing wallet.
type WalletFlags struct {
	Wallet    string `help:"wallet name, the default wallet when empty" short:"w" env:"PAYROLL_WALLET"`
	WalletDir string `help:"custom wallet directory (default: ~/.payroll/wallets/)" env:"PAYROLL_WALLET_DIR"`
}

func (f *WalletFlags) store() (*wallet.Store, error) {
	store, err := wallet.NewStore(f.WalletDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize wallet store: %w", err)
	}
	return store, nil
}

// signer loads the key of the selected wallet.
func (f *WalletFlags) signer() (ed25519.PrivateKey, address.Address, error) {
	store, err := f.store()
	if err != nil {
		return nil, address.Zero, err
	}

	w, err := store.Resolve(f.Wallet)
	if err != nil {
		if errors.Is(err, wallet.ErrNoDefaultWallet) {
			return nil, address.Zero, errors.New("no default wallet set\n\nTo create one:\n  payroll-cli wallet new <name>")
		}
		if errors.Is(err, wallet.ErrWalletNotFound) {
			return nil, address.Zero, fmt.Errorf("wallet %q not found\n\nRun 'payroll-cli wallet list' to see available wallets", f.Wallet)
		}
		return nil, address.Zero, err
	}

	key, err := store.LoadPrivateKey(w.Name)
	if err != nil {
		return nil, address.Zero, fmt.Errorf("failed to load wallet %q: %w", w.Name, err)
	}

	return key, w.Address, nil
}

// identity returns the address of the selected wallet without loading its key.
func (f *WalletFlags) identity() (address.Address, error) {
	store, err := f.store()
	if err != nil {
		return address.Zero, err
	}
	w, err := store.Resolve(f.Wallet)
	if err != nil {
		return address.Zero, fmt.Errorf("no identity given and no wallet to default to: %w", err)
	}
	return w.Address, nil
}

// ServerFlags configure the connection to the payroll server.
type ServerFlags struct {
	Server   string        `help:"server URL" default:"http://localhost:8993" env:"PAYROLL_SERVER"`
	Audience string        `help:"token audience, the server URL when empty" env:"PAYROLL_AUDIENCE"`
	Timeout  time.Duration `help:"request timeout" default:"30s"`
	Tracing  bool          `help:"propagate trace context to the server" default:"false"`
}

// client builds a service client. Instructions need a signing key, queries pass nil.
func (f *ServerFlags) client(key ed25519.PrivateKey) (*api.PayrollServiceClient, error) {
	cfg := client.DefaultConfig()
	cfg.ServerURL = f.Server
	cfg.Audience = f.Audience
	if f.Timeout > 0 {
		cfg.Timeout = f.Timeout
	}
	cfg.Key = key

	var opts []connect.ClientOption
	if f.Tracing {
		otelInterceptor, err := otelconnect.NewInterceptor()
		if err != nil {
			return nil, fmt.Errorf("failed to create interceptor: %w", err)
		}
		opts = append(opts, connect.WithInterceptors(otelInterceptor))
	}

	return client.New(cfg, opts...), nil
}

// instructionClient loads the signing wallet and builds a client that signs with it.
func instructionClient(w *WalletFlags, s *ServerFlags) (*api.PayrollServiceClient, address.Address, error) {
	key, signer, err := w.signer()
	if err != nil {
		return nil, address.Zero, err
	}
	c, err := s.client(key)
	if err != nil {
		return nil, address.Zero, err
	}
	return c, signer, nil
}

// callError attaches the ledger error carried by a failed call.
func callError(action string, err error) error {
	return fmt.Errorf("failed to %s: %w", action, client.Error(err))
}

// ProgramFlags select the program ID used to derive addresses offline.
type ProgramFlags struct {
	ProgramID string `help:"program ID that namespaces derived addresses" default:"${program_id}" env:"PAYROLL_PROGRAM_ID"`
}

func (f *ProgramFlags) programID() (address.Address, error) {
	id, err := address.Parse(f.ProgramID)
	if err != nil {
		return address.Zero, fmt.Errorf("invalid --program-id: %w", err)
	}
	return id, nil
}

func printReceipt(out io.Writer, r *ledger.Receipt) {
	fmt.Fprintf(out, "Signature:  %s\n", r.Signature)
	fmt.Fprintf(out, "Address:    %s\n", r.Address)
	for _, line := range r.Logs {
		fmt.Fprintf(out, "  > %s\n", line)
	}
}

// formatLamports renders an amount in SOL followed by the exact lamport count.
func formatLamports(lamports uint64) string {
	return fmt.Sprintf("%d.%09d SOL (%d lamports)", lamports/lamportsPerSOL, lamports%lamportsPerSOL, lamports)
}

const lamportsPerSOL = 1_000_000_000
