package commands

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/wolfeidau/payroll/cmd/cli/internal/wallet"
)

// WalletCmd manages local keypairs.
type WalletCmd struct {
	New        WalletNewCmd        `cmd:"" help:"Generate a new wallet keypair"`
	Import     WalletImportCmd     `cmd:"" help:"Import a Solana keypair file"`
	List       WalletListCmd       `cmd:"" help:"List all wallets"`
	Show       WalletShowCmd       `cmd:"" help:"Show a wallet address"`
	SetDefault WalletSetDefaultCmd `cmd:"" name:"set-default" help:"Set the default wallet"`
	Delete     WalletDeleteCmd     `cmd:"" help:"Delete a wallet"`
}

type WalletNewCmd struct {
	Name       string `arg:"" help:"name for the wallet (e.g., employer)"`
	SetDefault bool   `help:"set as the default wallet" default:"false"`
	WalletDir  string `help:"custom wallet directory" env:"PAYROLL_WALLET_DIR"`
}

func (c *WalletNewCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := wallet.NewStore(c.WalletDir)
	if err != nil {
		return fmt.Errorf("failed to initialize wallet store: %w", err)
	}

	w, err := store.Create(c.Name)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletExists) {
			return fmt.Errorf("wallet %q already exists\n\nTo delete and recreate:\n  payroll-cli wallet delete %s\n  payroll-cli wallet new %s", c.Name, c.Name, c.Name)
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	if c.SetDefault {
		if err := store.SetDefault(c.Name); err != nil {
			return fmt.Errorf("failed to set default: %w", err)
		}
	}

	out := globals.out()
	fmt.Fprintf(out, "Generated wallet: %s\n", w.Name)
	fmt.Fprintf(out, "Address: %s\n", w.Address)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "To fund it on a development server:")
	fmt.Fprintf(out, "  payroll-cli airdrop 1000000000 --identity %s\n", w.Address)

	return nil
}

type WalletImportCmd struct {
	Name      string `arg:"" help:"name for the wallet"`
	Path      string `arg:"" help:"keypair file, a JSON array of 64 bytes" type:"existingfile"`
	WalletDir string `help:"custom wallet directory" env:"PAYROLL_WALLET_DIR"`
}

func (c *WalletImportCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := wallet.NewStore(c.WalletDir)
	if err != nil {
		return fmt.Errorf("failed to initialize wallet store: %w", err)
	}

	w, err := store.Import(c.Name, c.Path)
	if err != nil {
		return fmt.Errorf("failed to import wallet: %w", err)
	}

	fmt.Fprintf(globals.out(), "Imported wallet %s: %s\n", w.Name, w.Address)
	return nil
}

type WalletListCmd struct {
	WalletDir string `help:"custom wallet directory" env:"PAYROLL_WALLET_DIR"`
}

func (c *WalletListCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := wallet.NewStore(c.WalletDir)
	if err != nil {
		return fmt.Errorf("failed to initialize wallet store: %w", err)
	}

	wallets, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list wallets: %w", err)
	}

	out := globals.out()
	if len(wallets) == 0 {
		fmt.Fprintln(out, "No wallets found.")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "To create a new wallet:")
		fmt.Fprintln(out, "  payroll-cli wallet new <name>")
		return nil
	}

	defaultName := ""
	if def, err := store.GetDefault(); err == nil {
		defaultName = def.Name
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tCREATED\tDEFAULT")
	for _, wlt := range wallets {
		isDefault := ""
		if wlt.Name == defaultName {
			isDefault = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", wlt.Name, wlt.Address, wlt.CreatedAt.Format("2006-01-02 15:04:05"), isDefault)
	}

	return w.Flush()
}

type WalletShowCmd struct {
	WalletFlags `embed:""`
}

func (c *WalletShowCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := c.store()
	if err != nil {
		return err
	}

	w, err := store.Resolve(c.Wallet)
	if err != nil {
		return fmt.Errorf("failed to get wallet: %w", err)
	}

	out := globals.out()
	fmt.Fprintf(out, "Name:     %s\n", w.Name)
	fmt.Fprintf(out, "Address:  %s\n", w.Address)
	fmt.Fprintf(out, "Created:  %s\n", w.CreatedAt.Format("2006-01-02 15:04:05"))

	return nil
}

type WalletSetDefaultCmd struct {
	Name      string `arg:"" help:"wallet name"`
	WalletDir string `help:"custom wallet directory" env:"PAYROLL_WALLET_DIR"`
}

func (c *WalletSetDefaultCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := wallet.NewStore(c.WalletDir)
	if err != nil {
		return fmt.Errorf("failed to initialize wallet store: %w", err)
	}

	if err := store.SetDefault(c.Name); err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound) {
			return fmt.Errorf("wallet %q not found\n\nRun 'payroll-cli wallet list' to see available wallets", c.Name)
		}
		return fmt.Errorf("failed to set default: %w", err)
	}

	fmt.Fprintf(globals.out(), "Default wallet set to %q.\n", c.Name)
	return nil
}

type WalletDeleteCmd struct {
	Name      string `arg:"" help:"wallet name"`
	WalletDir string `help:"custom wallet directory" env:"PAYROLL_WALLET_DIR"`
}

func (c *WalletDeleteCmd) Run(ctx context.Context, globals *Globals) error {
	store, err := wallet.NewStore(c.WalletDir)
	if err != nil {
		return fmt.Errorf("failed to initialize wallet store: %w", err)
	}

	if err := store.Delete(c.Name); err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound) {
			return fmt.Errorf("wallet %q not found", c.Name)
		}
		return fmt.Errorf("failed to delete wallet: %w", err)
	}

	fmt.Fprintf(globals.out(), "Wallet %q deleted. Funds held by its address can no longer be spent.\n", c.Name)
	return nil
}
