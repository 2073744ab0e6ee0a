package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/payroll/cmd/server/internal/commands"
	"github.com/wolfeidau/payroll/internal/ledger"
)

var (
	version = "dev"
	cli     struct {
		Debug   bool `help:"Enable debug mode." env:"PAYROLL_DEBUG"`
		Version kong.VersionFlag
		Serve   commands.ServeCmd   `cmd:"" help:"Start the payroll ledger server"`
		Journal commands.JournalCmd `cmd:"" help:"Inspect and archive the ledger journal"`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("payroll-server"),
		kong.Description("Payroll ledger server."),
		kong.Vars{
			"version":    version,
			"program_id": ledger.DefaultProgramID.String(),
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version})
	cmd.FatalIfErrorf(err)
}
