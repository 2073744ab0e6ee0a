package commands

import (
	"context"
	"fmt"

	"connectrpc.com/connect"
	"github.com/wolfeidau/payroll/internal/address"
	"github.com/wolfeidau/payroll/internal/api"
)

// TreasuryCmd moves funds between the wallet and an organization treasury.
type TreasuryCmd struct {
	Fund     TreasuryFundCmd     `cmd:"" help:"Move lamports from the wallet into the treasury"`
	Withdraw TreasuryWithdrawCmd `cmd:"" help:"Move lamports from the treasury back to the wallet"`
}

type TreasuryFundCmd struct {
	Org    string `arg:"" help:"organization address"`
	Amount uint64 `arg:"" help:"amount in lamports"`

	WalletFlags `embed:""`
	ServerFlags `embed:""`
}

func (c *TreasuryFundCmd) Run(ctx context.Context, globals *Globals) error {
	org, err := address.Parse(c.Org)
	if err != nil {
		return fmt.Errorf("invalid organization: %w", err)
	}

	svc, _, err := instructionClient(&c.WalletFlags, &c.ServerFlags)
	if err != nil {
		return err
	}

	resp, err := svc.FundTreasury(ctx, connect.NewRequest(&api.FundTreasuryRequest{Organization: org, Amount: c.Amount}))
	if err != nil {
		return callError("fund treasury", err)
	}

	out := globals.out()
	fmt.Fprintf(out, "Funded treasury with %s\n", formatLamports(c.Amount))
	printReceipt(out, resp.Msg.Receipt)

	return nil
}

type TreasuryWithdrawCmd struct {
	Org    string `arg:"" help:"organization address"`
	Amount uint64 `arg:"" help:"amount in lamports"`

	WalletFlags `embed:""`
	ServerFlags `embed:""`
}

func (c *TreasuryWithdrawCmd) Run(ctx context.Context, globals *Globals) error {
	org, err := address.Parse(c.Org)
	if err != nil {
		return fmt.Errorf("invalid organization: %w", err)
	}

	svc, _, err := instructionClient(&c.WalletFlags, &c.ServerFlags)
	if err != nil {
		return err
	}

	resp, err := svc.Withdraw(ctx, connect.NewRequest(&api.WithdrawRequest{Organization: org, Amount: c.Amount}))
	if err != nil {
		return callError("withdraw", err)
	}

	out := globals.out()
	fmt.Fprintf(out, "Withdrew %s\n", formatLamports(c.Amount))
	printReceipt(out, resp.Msg.Receipt)

	return nil
}
