package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/payroll/internal/address"
	"github.com/wolfeidau/payroll/internal/api"
	"github.com/wolfeidau/payroll/internal/auth"
	httpmiddleware "github.com/wolfeidau/payroll/internal/http"
	"github.com/wolfeidau/payroll/internal/ledger"
)

var _ api.PayrollServiceHandler = &PayrollService{}

// PayrollService serves the ledger program over connect.
type PayrollService struct {
	program  *ledger.Program
	faucet   FaucetConfig
	cooldown *httpmiddleware.Cooldown
}

// NewPayrollService creates the service, rate limiting the faucet per client IP.
func NewPayrollService(program *ledger.Program, faucet FaucetConfig) *PayrollService {
	return &PayrollService{
		program:  program,
		faucet:   faucet,
		cooldown: httpmiddleware.NewCooldown(faucet.Cooldown),
	}
}

func (s *PayrollService) CreateOrganization(ctx context.Context, req *connect.Request[api.CreateOrganizationRequest]) (*connect.Response[api.InstructionResponse], error) {
	signer, err := requireSigner(ctx)
	if err != nil {
		return nil, err
	}

	receipt, err := s.program.CreateOrganization(ctx, signer, req.Msg.Name)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.InstructionResponse{Receipt: receipt}), nil
}

func (s *PayrollService) AddWorker(ctx context.Context, req *connect.Request[api.AddWorkerRequest]) (*connect.Response[api.InstructionResponse], error) {
	signer, err := requireSigner(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireAddress("org", req.Msg.Organization); err != nil {
		return nil, err
	}
	if err := requireAddress("worker", req.Msg.Worker); err != nil {
		return nil, err
	}

	receipt, err := s.program.AddWorker(ctx, signer, req.Msg.Organization, req.Msg.Worker, req.Msg.Salary)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.InstructionResponse{Receipt: receipt}), nil
}

func (s *PayrollService) FundTreasury(ctx context.Context, req *connect.Request[api.FundTreasuryRequest]) (*connect.Response[api.InstructionResponse], error) {
	signer, err := requireSigner(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireAddress("org", req.Msg.Organization); err != nil {
		return nil, err
	}

	receipt, err := s.program.FundTreasury(ctx, signer, req.Msg.Organization, req.Msg.Amount)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.InstructionResponse{Receipt: receipt}), nil
}

func (s *PayrollService) ProcessPayroll(ctx context.Context, req *connect.Request[api.ProcessPayrollRequest]) (*connect.Response[api.ProcessPayrollResponse], error) {
	signer, err := requireSigner(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireAddress("org", req.Msg.Organization); err != nil {
		return nil, err
	}

	result, err := s.program.ProcessPayroll(ctx, signer, req.Msg.Organization, req.Msg.Cycle, req.Msg.Entries)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.ProcessPayrollResponse{Result: result}), nil
}

func (s *PayrollService) Withdraw(ctx context.Context, req *connect.Request[api.WithdrawRequest]) (*connect.Response[api.InstructionResponse], error) {
	signer, err := requireSigner(ctx)
	if err != nil {
		return nil, err
	}
	if err := requireAddress("org", req.Msg.Organization); err != nil {
		return nil, err
	}

	receipt, err := s.program.Withdraw(ctx, signer, req.Msg.Organization, req.Msg.Amount)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.InstructionResponse{Receipt: receipt}), nil
}

// Airdrop credits lamports from the faucet. It is only available when the faucet is enabled.
func (s *PayrollService) Airdrop(ctx context.Context, req *connect.Request[api.AirdropRequest]) (*connect.Response[api.InstructionResponse], error) {
	if !s.faucet.Enabled {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("faucet is disabled"))
	}
	if err := requireAddress("identity", req.Msg.Identity); err != nil {
		return nil, err
	}
	if s.faucet.MaxLamports > 0 && req.Msg.Amount > s.faucet.MaxLamports {
		return nil, connect.NewError(connect.CodeInvalidArgument,
			fmt.Errorf("airdrop of %d exceeds the faucet limit of %d", req.Msg.Amount, s.faucet.MaxLamports))
	}

	clientIP := httpmiddleware.ClientIPFromContext(ctx)
	if ok, wait := s.cooldown.Allow(clientIP); !ok {
		return nil, connect.NewError(connect.CodeResourceExhausted, fmt.Errorf("faucet cooldown, retry in %s", wait.Round(time.Second)))
	}

	receipt, err := s.program.Airdrop(ctx, req.Msg.Identity, req.Msg.Amount)
	if err != nil {
		return nil, toConnectError(err)
	}

	zerolog.Ctx(ctx).Info().
		Str("identity", req.Msg.Identity.String()).
		Uint64("amount", req.Msg.Amount).
		Msg("Faucet airdrop")

	return connect.NewResponse(&api.InstructionResponse{Receipt: receipt}), nil
}

func (s *PayrollService) GetOrganization(ctx context.Context, req *connect.Request[api.GetOrganizationRequest]) (*connect.Response[api.GetOrganizationResponse], error) {
	if err := requireAddress("address", req.Msg.Address); err != nil {
		return nil, err
	}

	org, err := s.program.GetOrganization(ctx, req.Msg.Address)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.GetOrganizationResponse{Organization: org}), nil
}

func (s *PayrollService) GetWorker(ctx context.Context, req *connect.Request[api.GetWorkerRequest]) (*connect.Response[api.GetWorkerResponse], error) {
	addr := req.Msg.Address
	if addr.IsZero() {
		if req.Msg.Organization.IsZero() || req.Msg.Identity.IsZero() {
			return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("address or org and identity are required"))
		}

		derived, _, err := ledger.WorkerAddress(s.program.ProgramID(), req.Msg.Organization, req.Msg.Identity)
		if err != nil {
			return nil, toConnectError(err)
		}
		addr = derived
	}

	w, err := s.program.GetWorker(ctx, addr)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.GetWorkerResponse{Worker: w}), nil
}

func (s *PayrollService) ListOrganizations(ctx context.Context, req *connect.Request[api.ListOrganizationsRequest]) (*connect.Response[api.ListOrganizationsResponse], error) {
	var (
		orgs []*ledger.Organization
		err  error
	)
	if req.Msg.Authority.IsZero() {
		orgs, err = s.program.ListAllOrganizations(ctx)
	} else {
		orgs, err = s.program.ListOrganizationsByAuthority(ctx, req.Msg.Authority)
	}
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.ListOrganizationsResponse{Organizations: orgs}), nil
}

func (s *PayrollService) ListWorkers(ctx context.Context, req *connect.Request[api.ListWorkersRequest]) (*connect.Response[api.ListWorkersResponse], error) {
	switch {
	case !req.Msg.Organization.IsZero():
		workers, err := s.program.ListWorkersByOrganization(ctx, req.Msg.Organization)
		if err != nil {
			return nil, toConnectError(err)
		}

		cost, err := s.program.PayrollCost(ctx, req.Msg.Organization)
		if err != nil {
			return nil, toConnectError(err)
		}
		return connect.NewResponse(&api.ListWorkersResponse{Workers: workers, PayrollCost: cost}), nil

	case !req.Msg.Identity.IsZero():
		workers, err := s.program.ListWorkersByIdentity(ctx, req.Msg.Identity)
		if err != nil {
			return nil, toConnectError(err)
		}
		return connect.NewResponse(&api.ListWorkersResponse{Workers: workers}), nil

	default:
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("org or identity is required"))
	}
}

func (s *PayrollService) GetBalance(ctx context.Context, req *connect.Request[api.GetBalanceRequest]) (*connect.Response[api.GetBalanceResponse], error) {
	if err := requireAddress("identity", req.Msg.Identity); err != nil {
		return nil, err
	}

	lamports, err := s.program.Balance(ctx, req.Msg.Identity)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&api.GetBalanceResponse{Identity: req.Msg.Identity, Lamports: lamports}), nil
}

func requireSigner(ctx context.Context) (address.Address, error) {
	signer, ok := auth.Signer(ctx)
	if !ok {
		return address.Zero, connect.NewError(connect.CodeUnauthenticated, errors.New("signer token required"))
	}
	return signer, nil
}

func requireAddress(field string, addr address.Address) error {
	if addr.IsZero() {
		return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%s is required", field))
	}
	return nil
}
