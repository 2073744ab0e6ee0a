package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"connectrpc.com/connect"
	"github.com/wolfeidau/payroll/internal/address"
	"github.com/wolfeidau/payroll/internal/api"
	"github.com/wolfeidau/payroll/internal/ledger"
)

// OrgCmd creates and inspects organizations.
type OrgCmd struct {
	Create OrgCreateCmd `cmd:"" help:"Create an organization owned by the wallet"`
	Show   OrgShowCmd   `cmd:"" help:"Show an organization"`
	List   OrgListCmd   `cmd:"" help:"List organizations"`
}

type OrgCreateCmd struct {
	Name string `arg:"" help:"organization name (1-32 bytes, unique per authority)"`

	WalletFlags `embed:""`
	ServerFlags `embed:""`
}

func (c *OrgCreateCmd) Run(ctx context.Context, globals *Globals) error {
	svc, _, err := instructionClient(&c.WalletFlags, &c.ServerFlags)
	if err != nil {
		return err
	}

	resp, err := svc.CreateOrganization(ctx, connect.NewRequest(&api.CreateOrganizationRequest{Name: c.Name}))
	if err != nil {
		return callError("create organization", err)
	}

	out := globals.out()
	fmt.Fprintf(out, "Organization %q created\n", c.Name)
	printReceipt(out, resp.Msg.Receipt)

	return nil
}

type OrgShowCmd struct {
	Org  string `arg:"" optional:"" help:"organization address"`
	Name string `help:"derive the address from the wallet (or --authority) and this name instead"`

	Authority string `help:"authority used with --name, the wallet when empty"`

	WalletFlags  `embed:""`
	ServerFlags  `embed:""`
	ProgramFlags `embed:""`
}

func (c *OrgShowCmd) Validate() error {
	if (c.Org == "") == (c.Name == "") {
		return fmt.Errorf("give either an organization address or --name")
	}
	return nil
}

func (c *OrgShowCmd) Run(ctx context.Context, globals *Globals) error {
	org, err := c.resolve()
	if err != nil {
		return err
	}

	svc, err := c.client(nil)
	if err != nil {
		return err
	}

	resp, err := svc.GetOrganization(ctx, connect.NewRequest(&api.GetOrganizationRequest{Address: org}))
	if err != nil {
		return callError("get organization", err)
	}

	printOrganization(globals.out(), resp.Msg.Organization)
	return nil
}

func (c *OrgShowCmd) resolve() (address.Address, error) {
	if c.Org != "" {
		return address.Parse(c.Org)
	}

	authority, err := c.authority()
	if err != nil {
		return address.Zero, err
	}
	programID, err := c.programID()
	if err != nil {
		return address.Zero, err
	}

	org, _, err := ledger.OrganizationAddress(programID, authority, c.Name)
	return org, err
}

func (c *OrgShowCmd) authority() (address.Address, error) {
	if c.Authority != "" {
		return address.Parse(c.Authority)
	}
	return c.identity()
}

type OrgListCmd struct {
	Authority string `help:"only organizations of this authority"`
	Mine      bool   `help:"only organizations of the wallet" default:"false"`

	WalletFlags `embed:""`
	ServerFlags `embed:""`
}

func (c *OrgListCmd) Run(ctx context.Context, globals *Globals) error {
	req := &api.ListOrganizationsRequest{}

	switch {
	case c.Authority != "":
		authority, err := address.Parse(c.Authority)
		if err != nil {
			return err
		}
		req.Authority = authority
	case c.Mine:
		authority, err := c.identity()
		if err != nil {
			return err
		}
		req.Authority = authority
	}

	svc, err := c.client(nil)
	if err != nil {
		return err
	}

	resp, err := svc.ListOrganizations(ctx, connect.NewRequest(req))
	if err != nil {
		return callError("list organizations", err)
	}

	out := globals.out()
	if len(resp.Msg.Organizations) == 0 {
		fmt.Fprintln(out, "No organizations found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ADDRESS\tNAME\tAUTHORITY\tWORKERS\tTREASURY")
	for _, org := range resp.Msg.Organizations {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", org.Address, org.Name, org.Authority, org.WorkersCount, org.Treasury)
	}

	return w.Flush()
}

func printOrganization(out io.Writer, org *ledger.Organization) {
	fmt.Fprintf(out, "Address:    %s\n", org.Address)
	fmt.Fprintf(out, "Name:       %s\n", org.Name)
	fmt.Fprintf(out, "Authority:  %s\n", org.Authority)
	fmt.Fprintf(out, "Treasury:   %s\n", formatLamports(org.Treasury))
	fmt.Fprintf(out, "Workers:    %d\n", org.WorkersCount)
	fmt.Fprintf(out, "Created:    %s\n", time.Unix(org.CreatedAt, 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(out, "Bump:       %d\n", org.Bump)
}
