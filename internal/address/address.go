package address

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

const (
	// Length is the size of an address in bytes.
	Length = 32

	// MaxSeeds is the maximum number of seeds, including the bump, used to derive an address.
	MaxSeeds = 16

	// MaxSeedLength is the maximum length of a single seed in bytes.
	MaxSeedLength = 32

	pdaMarker = "ProgramDerivedAddress"
)

// Sentinel errors for address derivation
var (
	ErrMaxSeedLengthExceeded = errors.New("length of the seed is too long for address generation")
	ErrInvalidSeeds          = errors.New("provided seeds do not result in a valid address")
	ErrInvalidLength         = errors.New("invalid address length")
)

// Address is a 32 byte account identity. Wallet identities are ed25519 public keys,
// program derived addresses are off-curve hashes.
type Address [Length]byte

// Zero is the all-zero address.
var Zero Address

// Parse decodes a base58 encoded address.
func Parse(s string) (Address, error) {
	var a Address

	b, err := base58.Decode(s)
	if err != nil {
		return a, fmt.Errorf("failed to decode address %q: %w", s, err)
	}
	if len(b) != Length {
		return a, fmt.Errorf("%w: got %d bytes", ErrInvalidLength, len(b))
	}

	copy(a[:], b)
	return a, nil
}

// MustParse is like Parse but panics on error. Intended for constants.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromBytes copies b into an address.
func FromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != Length {
		return a, fmt.Errorf("%w: got %d bytes", ErrInvalidLength, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// FromPublicKey returns the address of an ed25519 public key.
func FromPublicKey(pub ed25519.PublicKey) (Address, error) {
	return FromBytes(pub)
}

// String returns the base58 encoding of the address.
func (a Address) String() string {
	return base58.Encode(a[:])
}

// Bytes returns a copy of the address bytes.
func (a Address) Bytes() []byte {
	b := make([]byte, Length)
	copy(b, a[:])
	return b
}

// IsZero reports whether the address is all zeros.
func (a Address) IsZero() bool {
	return a == Zero
}

// PublicKey returns the address as an ed25519 public key.
func (a Address) PublicKey() ed25519.PublicKey {
	return ed25519.PublicKey(a.Bytes())
}

// IsOnCurve reports whether the address is a valid ed25519 point.
func (a Address) IsOnCurve() bool {
	return isOnCurve(a[:])
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// CreateProgramAddress derives an address from seeds and a program ID.
// The seeds must already include the bump. Fails with ErrInvalidSeeds when the
// hash lands on the ed25519 curve.
func CreateProgramAddress(seeds [][]byte, programID Address) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Zero, ErrMaxSeedLengthExceeded
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return Zero, ErrMaxSeedLengthExceeded
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var a Address
	copy(a[:], h.Sum(nil))

	if isOnCurve(a[:]) {
		return Zero, ErrInvalidSeeds
	}

	return a, nil
}

// FindProgramAddress searches bumps from 255 down to 0 and returns the first
// off-curve address together with its bump.
func FindProgramAddress(seeds [][]byte, programID Address) (Address, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return Zero, 0, ErrMaxSeedLengthExceeded
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}

		a, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return a, byte(bump), nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return Zero, 0, err
		}
	}

	return Zero, 0, ErrInvalidSeeds
}

func isOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
