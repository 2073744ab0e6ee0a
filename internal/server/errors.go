package server

import (
	"context"
	"errors"

	"connectrpc.com/connect"
	"github.com/wolfeidau/payroll/internal/api"
	"github.com/wolfeidau/payroll/internal/ledger"
)

var ledgerCodes = map[uint32]connect.Code{
	ledger.ErrUnauthorized.Code:                 connect.CodePermissionDenied,
	ledger.ErrInvalidName.Code:                  connect.CodeInvalidArgument,
	ledger.ErrInvalidSalary.Code:                connect.CodeInvalidArgument,
	ledger.ErrInvalidAmount.Code:                connect.CodeInvalidArgument,
	ledger.ErrMissingWorkerAccount.Code:         connect.CodeInvalidArgument,
	ledger.ErrInvalidWorkerPDA.Code:             connect.CodeInvalidArgument,
	ledger.ErrInvalidWorkerWallet.Code:          connect.CodeInvalidArgument,
	ledger.ErrAllocationFailed.Code:             connect.CodeInvalidArgument,
	ledger.ErrAccountDiscriminatorMismatch.Code: connect.CodeInvalidArgument,
	ledger.ErrInsufficientFunds.Code:            connect.CodeFailedPrecondition,
	ledger.ErrInsufficientBalance.Code:          connect.CodeFailedPrecondition,
	ledger.ErrArithmeticOverflow.Code:           connect.CodeFailedPrecondition,
	ledger.ErrAccountAlreadyInitialized.Code:    connect.CodeAlreadyExists,
	ledger.ErrAccountNotInitialized.Code:        connect.CodeNotFound,
}

// toConnectError maps a ledger failure onto a connect error. The ledger error
// name travels in the error metadata so clients can recover the exact error.
func toConnectError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}

	lerr, ok := ledger.AsError(err)
	if !ok {
		return connect.NewError(connect.CodeInternal, err)
	}

	code, ok := ledgerCodes[lerr.Code]
	if !ok {
		code = connect.CodeInternal
	}

	connectErr := connect.NewError(code, err)
	connectErr.Meta().Set(api.ErrorHeader, lerr.Name)
	return connectErr
}
