package ledger

import (
	"fmt"

	"github.com/wolfeidau/payroll/internal/address"
)

// DefaultProgramID namespaces every derived address of the payroll program.
var DefaultProgramID = address.MustParse("Gig5DYbHVv1xtLUmEA6AR5syACPCkLw1PddXwcg6Sen8")

var (
	orgSeed    = []byte("org")
	workerSeed = []byte("worker")
)

// OrganizationAddress derives the address of the organization named name owned by authority.
// Names longer than a single seed cannot be allocated and fail with ErrAllocationFailed.
func OrganizationAddress(programID, authority address.Address, name string) (address.Address, uint8, error) {
	addr, bump, err := address.FindProgramAddress([][]byte{orgSeed, authority[:], []byte(name)}, programID)
	if err != nil {
		return address.Zero, 0, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
	}
	return addr, bump, nil
}

// WorkerAddress derives the address of the worker record for identity within org.
func WorkerAddress(programID, org, identity address.Address) (address.Address, uint8, error) {
	addr, bump, err := address.FindProgramAddress([][]byte{workerSeed, org[:], identity[:]}, programID)
	if err != nil {
		return address.Zero, 0, fmt.Errorf("%w: %w", ErrAllocationFailed, err)
	}
	return addr, bump, nil
}
