package ledger

import (
	"errors"
	"fmt"

	"github.com/wolfeidau/payroll/internal/store"
)

// Error is a ledger error with a stable numeric code. Program errors use codes from
// 6000 upwards, account framework errors the 3000 range and runtime errors codes below 100.
type Error struct {
	Code uint32
	Name string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Msg)
}

// Is reports whether target is a ledger error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithMessage returns a copy of e with detail appended to its message.
func (e *Error) WithMessage(format string, args ...any) *Error {
	return &Error{
		Code: e.Code,
		Name: e.Name,
		Msg:  e.Msg + ": " + fmt.Sprintf(format, args...),
	}
}

// Program errors
var (
	ErrUnauthorized         = &Error{Code: 6000, Name: "Unauthorized", Msg: "Unauthorized access"}
	ErrInvalidName          = &Error{Code: 6001, Name: "InvalidName", Msg: "Invalid organization name length"}
	ErrInvalidSalary        = &Error{Code: 6002, Name: "InvalidSalary", Msg: "Invalid salary amount"}
	ErrInvalidAmount        = &Error{Code: 6003, Name: "InvalidAmount", Msg: "Invalid amount"}
	ErrInsufficientFunds    = &Error{Code: 6004, Name: "InsufficientFunds", Msg: "Insufficient funds in treasury"}
	ErrMissingWorkerAccount = &Error{Code: 6005, Name: "MissingWorkerAccount", Msg: "Missing worker account in remaining accounts"}
	ErrInvalidWorkerPDA     = &Error{Code: 6006, Name: "InvalidWorkerPDA", Msg: "Invalid worker PDA"}
	ErrInvalidWorkerWallet  = &Error{Code: 6007, Name: "InvalidWorkerWallet", Msg: "Invalid worker wallet pubkey"}
	ErrArithmeticOverflow   = &Error{Code: 6008, Name: "ArithmeticOverflow", Msg: "Arithmetic overflow"}
)

// Account errors
var (
	ErrAccountAlreadyInitialized    = &Error{Code: 3000, Name: "AccountAlreadyInitialized", Msg: "Account already holds data"}
	ErrAccountDiscriminatorMismatch = &Error{Code: 3002, Name: "AccountDiscriminatorMismatch", Msg: "Account discriminator did not match"}
	ErrAccountDidNotDeserialize     = &Error{Code: 3003, Name: "AccountDidNotDeserialize", Msg: "Failed to deserialize the account"}
	ErrAccountNotInitialized        = &Error{Code: 3012, Name: "AccountNotInitialized", Msg: "Account is not initialized"}
)

// Runtime errors
var (
	ErrInsufficientBalance = &Error{Code: 1, Name: "InsufficientBalance", Msg: "Insufficient balance for transfer"}
	ErrAllocationFailed    = &Error{Code: 2, Name: "AllocationFailed", Msg: "Account allocation failed"}
)

var allErrors = []*Error{
	ErrUnauthorized,
	ErrInvalidName,
	ErrInvalidSalary,
	ErrInvalidAmount,
	ErrInsufficientFunds,
	ErrMissingWorkerAccount,
	ErrInvalidWorkerPDA,
	ErrInvalidWorkerWallet,
	ErrArithmeticOverflow,
	ErrAccountAlreadyInitialized,
	ErrAccountDiscriminatorMismatch,
	ErrAccountDidNotDeserialize,
	ErrAccountNotInitialized,
	ErrInsufficientBalance,
	ErrAllocationFailed,
}

// ErrorByName returns the ledger error with the given name.
func ErrorByName(name string) (*Error, bool) {
	for _, e := range allErrors {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

// AsError returns the ledger error in err's chain, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// translateStoreError maps store commit failures onto ledger errors.
func translateStoreError(err error) error {
	switch {
	case errors.Is(err, store.ErrAccountExists):
		return ErrAccountAlreadyInitialized.WithMessage("%v", err)
	case errors.Is(err, store.ErrAccountNotFound):
		return ErrAccountNotInitialized.WithMessage("%v", err)
	case errors.Is(err, store.ErrInsufficientBalance):
		return ErrInsufficientBalance.WithMessage("%v", err)
	case errors.Is(err, store.ErrBalanceOverflow):
		return ErrArithmeticOverflow.WithMessage("%v", err)
	default:
		return fmt.Errorf("failed to commit: %w", err)
	}
}
