package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"connectrpc.com/connect"
	"github.com/wolfeidau/payroll/internal/address"
	"github.com/wolfeidau/payroll/internal/api"
	"github.com/wolfeidau/payroll/internal/ledger"
)

// WorkerCmd registers and inspects workers.
type WorkerCmd struct {
	Add  WorkerAddCmd  `cmd:"" help:"Register workers with an organization"`
	List WorkerListCmd `cmd:"" help:"List workers of an organization, or the records paying an identity"`
	Show WorkerShowCmd `cmd:"" help:"Show a worker record"`
}

type WorkerAddCmd struct {
	Org      string `help:"organization address, taken from the roster when empty"`
	Identity string `arg:"" optional:"" help:"worker identity (wallet address)"`
	Salary   uint64 `arg:"" optional:"" help:"salary per cycle in lamports"`
	Roster   string `help:"YAML roster of workers to register" type:"existingfile"`

	WalletFlags `embed:""`
	ServerFlags `embed:""`
}

func (c *WorkerAddCmd) Validate() error {
	if c.Roster != "" {
		if c.Identity != "" {
			return errors.New("give either a worker identity or --roster, not both")
		}
		return nil
	}
	if c.Identity == "" {
		return errors.New("a worker identity and salary, or --roster, is required")
	}
	if c.Org == "" {
		return errors.New("--org is required")
	}
	return nil
}

func (c *WorkerAddCmd) Run(ctx context.Context, globals *Globals) error {
	roster, err := c.roster()
	if err != nil {
		return err
	}

	svc, _, err := instructionClient(&c.WalletFlags, &c.ServerFlags)
	if err != nil {
		return err
	}

	out := globals.out()
	for i, w := range roster.Workers {
		resp, err := svc.AddWorker(ctx, connect.NewRequest(&api.AddWorkerRequest{
			Organization: roster.Organization,
			Worker:       w.Identity,
			Salary:       w.Salary,
		}))
		if err != nil {
			if i > 0 {
				fmt.Fprintf(out, "%d of %d workers registered before the failure\n", i, len(roster.Workers))
			}
			return callError(fmt.Sprintf("add worker %s", label(w)), err)
		}

		fmt.Fprintf(out, "Worker %s registered: %s\n", label(w), resp.Msg.Receipt.Address)
		for _, line := range resp.Msg.Receipt.Logs {
			fmt.Fprintf(out, "  > %s\n", line)
		}
	}

	return nil
}

// roster returns the workers to add, reading the roster file when given.
func (c *WorkerAddCmd) roster() (*Roster, error) {
	var roster *Roster

	if c.Roster != "" {
		loaded, err := LoadRoster(c.Roster)
		if err != nil {
			return nil, err
		}
		roster = loaded
	} else {
		identity, err := address.Parse(c.Identity)
		if err != nil {
			return nil, fmt.Errorf("invalid worker identity: %w", err)
		}
		roster = &Roster{Workers: []RosterWorker{{Identity: identity, Salary: c.Salary}}}
	}

	if c.Org != "" {
		org, err := address.Parse(c.Org)
		if err != nil {
			return nil, fmt.Errorf("invalid --org: %w", err)
		}
		roster.Organization = org
	}
	if roster.Organization.IsZero() {
		return nil, errors.New("no organization given, set --org or organization in the roster")
	}

	return roster, nil
}

func label(w RosterWorker) string {
	if w.Name != "" {
		return w.Name
	}
	return w.Identity.String()
}

type WorkerListCmd struct {
	Org      string `help:"list the workers of this organization"`
	Identity string `help:"list the worker records paying this identity, the wallet when neither flag is set"`

	WalletFlags `embed:""`
	ServerFlags `embed:""`
}

func (c *WorkerListCmd) Run(ctx context.Context, globals *Globals) error {
	req := &api.ListWorkersRequest{}

	switch {
	case c.Org != "":
		org, err := address.Parse(c.Org)
		if err != nil {
			return fmt.Errorf("invalid --org: %w", err)
		}
		req.Organization = org
	case c.Identity != "":
		identity, err := address.Parse(c.Identity)
		if err != nil {
			return fmt.Errorf("invalid --identity: %w", err)
		}
		req.Identity = identity
	default:
		identity, err := c.identity()
		if err != nil {
			return err
		}
		req.Identity = identity
	}

	svc, err := c.client(nil)
	if err != nil {
		return err
	}

	resp, err := svc.ListWorkers(ctx, connect.NewRequest(req))
	if err != nil {
		return callError("list workers", err)
	}

	out := globals.out()
	if len(resp.Msg.Workers) == 0 {
		fmt.Fprintln(out, "No workers found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ADDRESS\tORGANIZATION\tIDENTITY\tSALARY\tLAST PAID CYCLE")
	for _, wk := range resp.Msg.Workers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", wk.Address, wk.Organization, wk.WorkerIdentity, wk.Salary, wk.LastPaidCycle)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if !req.Organization.IsZero() {
		fmt.Fprintf(out, "\nPayroll cost per cycle: %s\n", formatLamports(resp.Msg.PayrollCost))
	}

	return nil
}

type WorkerShowCmd struct {
	Address  string `arg:"" optional:"" help:"worker record address"`
	Org      string `help:"organization of the worker, used with --identity"`
	Identity string `help:"worker identity, used with --org"`

	ServerFlags `embed:""`
}

func (c *WorkerShowCmd) Validate() error {
	if c.Address == "" && (c.Org == "" || c.Identity == "") {
		return errors.New("give a worker record address, or --org and --identity")
	}
	return nil
}

func (c *WorkerShowCmd) Run(ctx context.Context, globals *Globals) error {
	req := &api.GetWorkerRequest{}

	if c.Address != "" {
		addr, err := address.Parse(c.Address)
		if err != nil {
			return err
		}
		req.Address = addr
	} else {
		org, err := address.Parse(c.Org)
		if err != nil {
			return fmt.Errorf("invalid --org: %w", err)
		}
		identity, err := address.Parse(c.Identity)
		if err != nil {
			return fmt.Errorf("invalid --identity: %w", err)
		}
		req.Organization = org
		req.Identity = identity
	}

	svc, err := c.client(nil)
	if err != nil {
		return err
	}

	resp, err := svc.GetWorker(ctx, connect.NewRequest(req))
	if err != nil {
		return callError("get worker", err)
	}

	printWorker(globals.out(), resp.Msg.Worker)
	return nil
}

func printWorker(out io.Writer, wk *ledger.Worker) {
	fmt.Fprintf(out, "Address:          %s\n", wk.Address)
	fmt.Fprintf(out, "Organization:     %s\n", wk.Organization)
	fmt.Fprintf(out, "Identity:         %s\n", wk.WorkerIdentity)
	fmt.Fprintf(out, "Salary:           %s\n", formatLamports(wk.Salary))
	fmt.Fprintf(out, "Last paid cycle:  %d\n", wk.LastPaidCycle)
	fmt.Fprintf(out, "Created:          %s\n", time.Unix(wk.CreatedAt, 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(out, "Bump:             %d\n", wk.Bump)
}
