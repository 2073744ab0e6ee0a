package commands

import (
	"context"
	"fmt"

	"connectrpc.com/connect"
	"github.com/wolfeidau/payroll/internal/address"
	"github.com/wolfeidau/payroll/internal/api"
	"github.com/wolfeidau/payroll/internal/ledger"
)

// AirdropCmd requests lamports from the development faucet.
type AirdropCmd struct {
	Amount   uint64 `arg:"" help:"amount in lamports"`
	Identity string `help:"identity to credit, the wallet when empty"`

	WalletFlags `embed:""`
	ServerFlags `embed:""`
}

func (c *AirdropCmd) Run(ctx context.Context, globals *Globals) error {
	identity, err := identityOrWallet(c.Identity, &c.WalletFlags)
	if err != nil {
		return err
	}

	svc, err := c.client(nil)
	if err != nil {
		return err
	}

	resp, err := svc.Airdrop(ctx, connect.NewRequest(&api.AirdropRequest{Identity: identity, Amount: c.Amount}))
	if err != nil {
		return callError("airdrop", err)
	}

	out := globals.out()
	fmt.Fprintf(out, "Airdropped %s to %s\n", formatLamports(c.Amount), identity)
	printReceipt(out, resp.Msg.Receipt)

	return nil
}

// BalanceCmd prints the native balance of an identity.
type BalanceCmd struct {
	Identity string `arg:"" optional:"" help:"identity to query, the wallet when empty"`

	WalletFlags `embed:""`
	ServerFlags `embed:""`
}

func (c *BalanceCmd) Run(ctx context.Context, globals *Globals) error {
	identity, err := identityOrWallet(c.Identity, &c.WalletFlags)
	if err != nil {
		return err
	}

	svc, err := c.client(nil)
	if err != nil {
		return err
	}

	resp, err := svc.GetBalance(ctx, connect.NewRequest(&api.GetBalanceRequest{Identity: identity}))
	if err != nil {
		return callError("get balance", err)
	}

	fmt.Fprintf(globals.out(), "%s: %s\n", resp.Msg.Identity, formatLamports(resp.Msg.Lamports))
	return nil
}

func identityOrWallet(s string, w *WalletFlags) (address.Address, error) {
	if s == "" {
		return w.identity()
	}
	identity, err := address.Parse(s)
	if err != nil {
		return address.Zero, fmt.Errorf("invalid identity: %w", err)
	}
	return identity, nil
}

// DeriveCmd computes program derived addresses without contacting the server.
type DeriveCmd struct {
	Org    DeriveOrgCmd    `cmd:"" help:"Derive an organization address from its authority and name"`
	Worker DeriveWorkerCmd `cmd:"" help:"Derive a worker record address from its organization and identity"`
}

type DeriveOrgCmd struct {
	Name      string `arg:"" help:"organization name"`
	Authority string `help:"authority identity, the wallet when empty"`

	WalletFlags  `embed:""`
	ProgramFlags `embed:""`
}

func (c *DeriveOrgCmd) Run(globals *Globals) error {
	programID, err := c.programID()
	if err != nil {
		return err
	}
	authority, err := identityOrWallet(c.Authority, &c.WalletFlags)
	if err != nil {
		return err
	}

	addr, bump, err := ledger.OrganizationAddress(programID, authority, c.Name)
	if err != nil {
		return fmt.Errorf("failed to derive organization address: %w", err)
	}

	fmt.Fprintf(globals.out(), "%s (bump %d)\n", addr, bump)
	return nil
}

type DeriveWorkerCmd struct {
	Org      string `arg:"" help:"organization address"`
	Identity string `arg:"" help:"worker identity"`

	ProgramFlags `embed:""`
}

func (c *DeriveWorkerCmd) Run(globals *Globals) error {
	programID, err := c.programID()
	if err != nil {
		return err
	}
	org, err := address.Parse(c.Org)
	if err != nil {
		return fmt.Errorf("invalid organization: %w", err)
	}
	identity, err := address.Parse(c.Identity)
	if err != nil {
		return fmt.Errorf("invalid identity: %w", err)
	}

	addr, bump, err := ledger.WorkerAddress(programID, org, identity)
	if err != nil {
		return fmt.Errorf("failed to derive worker address: %w", err)
	}

	fmt.Fprintf(globals.out(), "%s (bump %d)\n", addr, bump)
	return nil
}
