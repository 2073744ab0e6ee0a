// Package api defines the messages and procedures of payroll.v1.PayrollService.
package api

import (
	"github.com/wolfeidau/payroll/internal/address"
	"github.com/wolfeidau/payroll/internal/ledger"
)

// ServiceName is the fully-qualified name of the payroll service.
const ServiceName = "payroll.v1.PayrollService"

// ErrorHeader carries the ledger error name in the metadata of failed calls.
const ErrorHeader = "x-ledger-error"

// Procedure paths.
const (
	CreateOrganizationProcedure = "/" + ServiceName + "/CreateOrganization"
	AddWorkerProcedure          = "/" + ServiceName + "/AddWorker"
	FundTreasuryProcedure       = "/" + ServiceName + "/FundTreasury"
	ProcessPayrollProcedure     = "/" + ServiceName + "/ProcessPayroll"
	WithdrawProcedure           = "/" + ServiceName + "/Withdraw"
	AirdropProcedure            = "/" + ServiceName + "/Airdrop"
	GetOrganizationProcedure    = "/" + ServiceName + "/GetOrganization"
	GetWorkerProcedure          = "/" + ServiceName + "/GetWorker"
	ListOrganizationsProcedure  = "/" + ServiceName + "/ListOrganizations"
	ListWorkersProcedure        = "/" + ServiceName + "/ListWorkers"
	GetBalanceProcedure         = "/" + ServiceName + "/GetBalance"
)

// PublicProcedures are the read-only procedures served without a signer token.
// Airdrop is public too: the faucet credits whoever is named in the request.
var PublicProcedures = []string{
	AirdropProcedure,
	GetOrganizationProcedure,
	GetWorkerProcedure,
	ListOrganizationsProcedure,
	ListWorkersProcedure,
	GetBalanceProcedure,
}

type CreateOrganizationRequest struct {
	Name string `json:"name"`
}

type AddWorkerRequest struct {
	Organization address.Address `json:"org"`
	Worker       address.Address `json:"worker"`
	Salary       uint64          `json:"salary"`
}

type FundTreasuryRequest struct {
	Organization address.Address `json:"org"`
	Amount       uint64          `json:"amount"`
}

type WithdrawRequest struct {
	Organization address.Address `json:"org"`
	Amount       uint64          `json:"amount"`
}

// ProcessPayrollRequest pays a cycle. Entries must list every worker of the
// organization; the server does not fill in missing ones.
type ProcessPayrollRequest struct {
	Organization address.Address       `json:"org"`
	Cycle        uint64                `json:"cycle"`
	Entries      []ledger.PayrollEntry `json:"entries"`
}

type AirdropRequest struct {
	Identity address.Address `json:"identity"`
	Amount   uint64          `json:"amount"`
}

// InstructionResponse is returned by every instruction except ProcessPayroll.
type InstructionResponse struct {
	Receipt *ledger.Receipt `json:"receipt"`
}

type ProcessPayrollResponse struct {
	Result *ledger.PayrollResult `json:"result"`
}

type GetOrganizationRequest struct {
	Address address.Address `json:"address"`
}

type GetOrganizationResponse struct {
	Organization *ledger.Organization `json:"organization"`
}

// GetWorkerRequest names a worker record by address, or by organization and identity.
type GetWorkerRequest struct {
	Address      address.Address `json:"address,omitzero"`
	Organization address.Address `json:"org,omitzero"`
	Identity     address.Address `json:"identity,omitzero"`
}

type GetWorkerResponse struct {
	Worker *ledger.Worker `json:"worker"`
}

// ListOrganizationsRequest lists every organization, or those of Authority when set.
type ListOrganizationsRequest struct {
	Authority address.Address `json:"authority,omitzero"`
}

type ListOrganizationsResponse struct {
	Organizations []*ledger.Organization `json:"organizations"`
}

// ListWorkersRequest lists the workers of Organization, or the records paying Identity.
type ListWorkersRequest struct {
	Organization address.Address `json:"org,omitzero"`
	Identity     address.Address `json:"identity,omitzero"`
}

type ListWorkersResponse struct {
	Workers []*ledger.Worker `json:"workers"`

	// PayrollCost is the sum of salaries, set when listing by organization.
	PayrollCost uint64 `json:"payroll_cost,omitempty"`
}

type GetBalanceRequest struct {
	Identity address.Address `json:"identity"`
}

type GetBalanceResponse struct {
	Identity address.Address `json:"identity"`
	Lamports uint64          `json:"lamports"`
}
