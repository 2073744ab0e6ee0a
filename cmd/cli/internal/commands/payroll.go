package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"connectrpc.com/connect"
	"github.com/wolfeidau/payroll/internal/address"
	"github.com/wolfeidau/payroll/internal/api"
	"github.com/wolfeidau/payroll/internal/ledger"
)

// PayrollCmd runs payroll cycles.
type PayrollCmd struct {
	Process PayrollRunCmd `cmd:"" name:"run" help:"Pay every worker of an organization for a cycle"`
}

// PayrollRunCmd submits one ProcessPayroll instruction for a cycle.
type PayrollRunCmd struct {
	Org     string   `arg:"" help:"organization address"`
	Cycle   uint64   `help:"cycle number, each worker is paid at most once per cycle" required:""`
	Entries []string `help:"explicit worker:payee pairs, built from the organization's workers when empty" name:"entry"`
	DryRun  bool     `help:"print the entries and cost without submitting" default:"false"`

	WalletFlags `embed:""`
	ServerFlags `embed:""`
}

func (c *PayrollRunCmd) Run(ctx context.Context, globals *Globals) error {
	org, err := address.Parse(c.Org)
	if err != nil {
		return fmt.Errorf("invalid organization: %w", err)
	}

	entries, err := parseEntries(c.Entries)
	if err != nil {
		return err
	}

	out := globals.out()

	if len(entries) == 0 || c.DryRun {
		query, err := c.client(nil)
		if err != nil {
			return err
		}
		resp, err := query.ListWorkers(ctx, connect.NewRequest(&api.ListWorkersRequest{Organization: org}))
		if err != nil {
			return callError("list workers", err)
		}

		if len(entries) == 0 {
			entries = make([]ledger.PayrollEntry, 0, len(resp.Msg.Workers))
			for _, wk := range resp.Msg.Workers {
				entries = append(entries, ledger.PayrollEntry{Worker: wk.Address, Payee: wk.WorkerIdentity})
			}
		}

		if c.DryRun {
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WORKER\tPAYEE")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\n", e.Worker, e.Payee)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nCycle %d would disburse up to %s\n", c.Cycle, formatLamports(resp.Msg.PayrollCost))
			return nil
		}
	}

	svc, _, err := instructionClient(&c.WalletFlags, &c.ServerFlags)
	if err != nil {
		return err
	}

	resp, err := svc.ProcessPayroll(ctx, connect.NewRequest(&api.ProcessPayrollRequest{
		Organization: org,
		Cycle:        c.Cycle,
		Entries:      entries,
	}))
	if err != nil {
		return callError("process payroll", err)
	}

	result := resp.Msg.Result
	fmt.Fprintf(out, "Cycle %d processed\n", result.Cycle)
	fmt.Fprintf(out, "Workers paid:     %d\n", result.WorkersPaid)
	fmt.Fprintf(out, "Workers skipped:  %d\n", result.WorkersSkipped)
	fmt.Fprintf(out, "Total disbursed:  %s\n", formatLamports(result.TotalDisbursed))
	printReceipt(out, &result.Receipt)

	return nil
}

// parseEntries parses worker:payee pairs.
func parseEntries(pairs []string) ([]ledger.PayrollEntry, error) {
	entries := make([]ledger.PayrollEntry, 0, len(pairs))
	for _, pair := range pairs {
		workerStr, payeeStr, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("invalid entry %q, expected worker:payee", pair)
		}
		worker, err := address.Parse(workerStr)
		if err != nil {
			return nil, fmt.Errorf("invalid entry %q: %w", pair, err)
		}
		payee, err := address.Parse(payeeStr)
		if err != nil {
			return nil, fmt.Errorf("invalid entry %q: %w", pair, err)
		}
		entries = append(entries, ledger.PayrollEntry{Worker: worker, Payee: payee})
	}
	return entries, nil
}
