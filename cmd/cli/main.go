package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/payroll/cmd/cli/internal/commands"
	"github.com/wolfeidau/payroll/internal/ledger"
	"github.com/wolfeidau/payroll/internal/logger"
)

var (
	version = "dev"
	cli     struct {
		Wallet   commands.WalletCmd   `cmd:"" help:"Manage wallet keypairs"`
		Org      commands.OrgCmd      `cmd:"" help:"Create and inspect organizations"`
		Worker   commands.WorkerCmd   `cmd:"" help:"Register and inspect workers"`
		Treasury commands.TreasuryCmd `cmd:"" help:"Fund or withdraw from a treasury"`
		Payroll  commands.PayrollCmd  `cmd:"" help:"Run payroll cycles"`
		Airdrop  commands.AirdropCmd  `cmd:"" help:"Request lamports from the development faucet"`
		Balance  commands.BalanceCmd  `cmd:"" help:"Show the balance of an identity"`
		Derive   commands.DeriveCmd   `cmd:"" help:"Derive program addresses offline"`
		Debug    bool                 `help:"Enable debug mode." env:"PAYROLL_DEBUG"`
		Version  kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("payroll-cli"),
		kong.Description("Payroll ledger client."),
		kong.Vars{
			"version":    version,
			"program_id": ledger.DefaultProgramID.String(),
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	// Store and client logs are only interesting when debugging.
	log.Logger = logger.Setup(cli.Debug)
	if !cli.Debug {
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	}

	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
