package ledger

import (
	"github.com/wolfeidau/payroll/internal/address"
)

// requireAuthority fails with ErrUnauthorized unless signer controls org.
func requireAuthority(org *Organization, signer address.Address) error {
	if org.Authority != signer {
		return ErrUnauthorized
	}
	return nil
}

// Credit adds amount to the treasury.
func (o *Organization) Credit(amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}

	next := o.Treasury + amount
	if next < o.Treasury {
		return ErrArithmeticOverflow
	}

	o.Treasury = next
	return nil
}

// Debit removes amount from the treasury. The treasury is left untouched on failure.
func (o *Organization) Debit(amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}
	if o.Treasury < amount {
		return ErrInsufficientFunds
	}

	o.Treasury -= amount
	return nil
}
