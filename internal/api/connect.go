package api

import (
	"context"
	"net/http"

	"connectrpc.com/connect"
	"github.com/wolfeidau/payroll/internal/codec"
)

// PayrollServiceHandler is implemented by the server.
type PayrollServiceHandler interface {
	CreateOrganization(context.Context, *connect.Request[CreateOrganizationRequest]) (*connect.Response[InstructionResponse], error)
	AddWorker(context.Context, *connect.Request[AddWorkerRequest]) (*connect.Response[InstructionResponse], error)
	FundTreasury(context.Context, *connect.Request[FundTreasuryRequest]) (*connect.Response[InstructionResponse], error)
	ProcessPayroll(context.Context, *connect.Request[ProcessPayrollRequest]) (*connect.Response[ProcessPayrollResponse], error)
	Withdraw(context.Context, *connect.Request[WithdrawRequest]) (*connect.Response[InstructionResponse], error)
	Airdrop(context.Context, *connect.Request[AirdropRequest]) (*connect.Response[InstructionResponse], error)
	GetOrganization(context.Context, *connect.Request[GetOrganizationRequest]) (*connect.Response[GetOrganizationResponse], error)
	GetWorker(context.Context, *connect.Request[GetWorkerRequest]) (*connect.Response[GetWorkerResponse], error)
	ListOrganizations(context.Context, *connect.Request[ListOrganizationsRequest]) (*connect.Response[ListOrganizationsResponse], error)
	ListWorkers(context.Context, *connect.Request[ListWorkersRequest]) (*connect.Response[ListWorkersResponse], error)
	GetBalance(context.Context, *connect.Request[GetBalanceRequest]) (*connect.Response[GetBalanceResponse], error)
}

// NewPayrollServiceHandler builds an HTTP handler from the service implementation.
// It returns the path on which to mount the handler and the handler itself.
func NewPayrollServiceHandler(svc PayrollServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(codec.JSON{})}, opts...)

	readOnly := append([]connect.HandlerOption{connect.WithIdempotency(connect.IdempotencyNoSideEffects)}, opts...)

	mux := http.NewServeMux()
	mux.Handle(CreateOrganizationProcedure, connect.NewUnaryHandler(CreateOrganizationProcedure, svc.CreateOrganization, opts...))
	mux.Handle(AddWorkerProcedure, connect.NewUnaryHandler(AddWorkerProcedure, svc.AddWorker, opts...))
	mux.Handle(FundTreasuryProcedure, connect.NewUnaryHandler(FundTreasuryProcedure, svc.FundTreasury, opts...))
	mux.Handle(ProcessPayrollProcedure, connect.NewUnaryHandler(ProcessPayrollProcedure, svc.ProcessPayroll, opts...))
	mux.Handle(WithdrawProcedure, connect.NewUnaryHandler(WithdrawProcedure, svc.Withdraw, opts...))
	mux.Handle(AirdropProcedure, connect.NewUnaryHandler(AirdropProcedure, svc.Airdrop, opts...))
	mux.Handle(GetOrganizationProcedure, connect.NewUnaryHandler(GetOrganizationProcedure, svc.GetOrganization, readOnly...))
	mux.Handle(GetWorkerProcedure, connect.NewUnaryHandler(GetWorkerProcedure, svc.GetWorker, readOnly...))
	mux.Handle(ListOrganizationsProcedure, connect.NewUnaryHandler(ListOrganizationsProcedure, svc.ListOrganizations, readOnly...))
	mux.Handle(ListWorkersProcedure, connect.NewUnaryHandler(ListWorkersProcedure, svc.ListWorkers, readOnly...))
	mux.Handle(GetBalanceProcedure, connect.NewUnaryHandler(GetBalanceProcedure, svc.GetBalance, readOnly...))

	return "/" + ServiceName + "/", mux
}

// PayrollServiceClient is a client for payroll.v1.PayrollService.
type PayrollServiceClient struct {
	createOrganization *connect.Client[CreateOrganizationRequest, InstructionResponse]
	addWorker          *connect.Client[AddWorkerRequest, InstructionResponse]
	fundTreasury       *connect.Client[FundTreasuryRequest, InstructionResponse]
	processPayroll     *connect.Client[ProcessPayrollRequest, ProcessPayrollResponse]
	withdraw           *connect.Client[WithdrawRequest, InstructionResponse]
	airdrop            *connect.Client[AirdropRequest, InstructionResponse]
	getOrganization    *connect.Client[GetOrganizationRequest, GetOrganizationResponse]
	getWorker          *connect.Client[GetWorkerRequest, GetWorkerResponse]
	listOrganizations  *connect.Client[ListOrganizationsRequest, ListOrganizationsResponse]
	listWorkers        *connect.Client[ListWorkersRequest, ListWorkersResponse]
	getBalance         *connect.Client[GetBalanceRequest, GetBalanceResponse]
}

// NewPayrollServiceClient creates a client for the service at baseURL.
func NewPayrollServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *PayrollServiceClient {
	opts = append([]connect.ClientOption{connect.WithCodec(codec.JSON{})}, opts...)

	return &PayrollServiceClient{
		createOrganization: connect.NewClient[CreateOrganizationRequest, InstructionResponse](httpClient, baseURL+CreateOrganizationProcedure, opts...),
		addWorker:          connect.NewClient[AddWorkerRequest, InstructionResponse](httpClient, baseURL+AddWorkerProcedure, opts...),
		fundTreasury:       connect.NewClient[FundTreasuryRequest, InstructionResponse](httpClient, baseURL+FundTreasuryProcedure, opts...),
		processPayroll:     connect.NewClient[ProcessPayrollRequest, ProcessPayrollResponse](httpClient, baseURL+ProcessPayrollProcedure, opts...),
		withdraw:           connect.NewClient[WithdrawRequest, InstructionResponse](httpClient, baseURL+WithdrawProcedure, opts...),
		airdrop:            connect.NewClient[AirdropRequest, InstructionResponse](httpClient, baseURL+AirdropProcedure, opts...),
		getOrganization:    connect.NewClient[GetOrganizationRequest, GetOrganizationResponse](httpClient, baseURL+GetOrganizationProcedure, opts...),
		getWorker:          connect.NewClient[GetWorkerRequest, GetWorkerResponse](httpClient, baseURL+GetWorkerProcedure, opts...),
		listOrganizations:  connect.NewClient[ListOrganizationsRequest, ListOrganizationsResponse](httpClient, baseURL+ListOrganizationsProcedure, opts...),
		listWorkers:        connect.NewClient[ListWorkersRequest, ListWorkersResponse](httpClient, baseURL+ListWorkersProcedure, opts...),
		getBalance:         connect.NewClient[GetBalanceRequest, GetBalanceResponse](httpClient, baseURL+GetBalanceProcedure, opts...),
	}
}

func (c *PayrollServiceClient) CreateOrganization(ctx context.Context, req *connect.Request[CreateOrganizationRequest]) (*connect.Response[InstructionResponse], error) {
	return c.createOrganization.CallUnary(ctx, req)
}

func (c *PayrollServiceClient) AddWorker(ctx context.Context, req *connect.Request[AddWorkerRequest]) (*connect.Response[InstructionResponse], error) {
	return c.addWorker.CallUnary(ctx, req)
}

func (c *PayrollServiceClient) FundTreasury(ctx context.Context, req *connect.Request[FundTreasuryRequest]) (*connect.Response[InstructionResponse], error) {
	return c.fundTreasury.CallUnary(ctx, req)
}

func (c *PayrollServiceClient) ProcessPayroll(ctx context.Context, req *connect.Request[ProcessPayrollRequest]) (*connect.Response[ProcessPayrollResponse], error) {
	return c.processPayroll.CallUnary(ctx, req)
}

func (c *PayrollServiceClient) Withdraw(ctx context.Context, req *connect.Request[WithdrawRequest]) (*connect.Response[InstructionResponse], error) {
	return c.withdraw.CallUnary(ctx, req)
}

func (c *PayrollServiceClient) Airdrop(ctx context.Context, req *connect.Request[AirdropRequest]) (*connect.Response[InstructionResponse], error) {
	return c.airdrop.CallUnary(ctx, req)
}

func (c *PayrollServiceClient) GetOrganization(ctx context.Context, req *connect.Request[GetOrganizationRequest]) (*connect.Response[GetOrganizationResponse], error) {
	return c.getOrganization.CallUnary(ctx, req)
}

func (c *PayrollServiceClient) GetWorker(ctx context.Context, req *connect.Request[GetWorkerRequest]) (*connect.Response[GetWorkerResponse], error) {
	return c.getWorker.CallUnary(ctx, req)
}

func (c *PayrollServiceClient) ListOrganizations(ctx context.Context, req *connect.Request[ListOrganizationsRequest]) (*connect.Response[ListOrganizationsResponse], error) {
	return c.listOrganizations.CallUnary(ctx, req)
}

func (c *PayrollServiceClient) ListWorkers(ctx context.Context, req *connect.Request[ListWorkersRequest]) (*connect.Response[ListWorkersResponse], error) {
	return c.listWorkers.CallUnary(ctx, req)
}

func (c *PayrollServiceClient) GetBalance(ctx context.Context, req *connect.Request[GetBalanceRequest]) (*connect.Response[GetBalanceResponse], error) {
	return c.getBalance.CallUnary(ctx, req)
}
