package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"

	"github.com/wolfeidau/payroll/internal/address"
)

const (
	// MaxNameLength is the maximum organization name length in bytes.
	MaxNameLength = 100

	// DiscriminatorLength is the size of the type prefix of every account.
	DiscriminatorLength = 8

	// OrganizationSize is the allocated size of an organization account.
	OrganizationSize = DiscriminatorLength + 32 + 4 + MaxNameLength + 8 + 8 + 8 + 1

	// WorkerSize is the allocated size of a worker account.
	WorkerSize = DiscriminatorLength + 32 + 32 + 8 + 8 + 8 + 1

	// Field offsets used by list filters.
	OrganizationAuthorityOffset = DiscriminatorLength
	WorkerOrganizationOffset    = DiscriminatorLength
	WorkerIdentityOffset        = DiscriminatorLength + 32
)

var (
	organizationDiscriminator = discriminator("Organization")
	workerDiscriminator       = discriminator("Worker")
)

func discriminator(name string) []byte {
	sum := sha256.Sum256([]byte("account:" + name))
	return sum[:DiscriminatorLength]
}

// Organization is the account of one organization.
type Organization struct {
	// Address is where the account is stored. It is not part of the stored layout.
	Address address.Address `json:"address"`

	Authority    address.Address `json:"authority"`
	Name         string          `json:"name"`
	Treasury     uint64          `json:"treasury"`
	WorkersCount uint64          `json:"workers_count"`
	CreatedAt    int64           `json:"created_at"`
	Bump         uint8           `json:"bump"`
}

// MarshalBinary encodes the organization into its fixed size layout.
func (o *Organization) MarshalBinary() ([]byte, error) {
	if len(o.Name) > MaxNameLength {
		return nil, ErrInvalidName
	}

	buf := make([]byte, OrganizationSize)
	w := writer{buf: buf}

	w.bytes(organizationDiscriminator)
	w.bytes(o.Authority[:])
	w.u32(uint32(len(o.Name))) //nolint:gosec // bounded by MaxNameLength
	w.bytes([]byte(o.Name))
	w.u64(o.Treasury)
	w.u64(o.WorkersCount)
	w.u64(uint64(o.CreatedAt)) //nolint:gosec // two's complement round trip
	w.u8(o.Bump)

	return buf, nil
}

// UnmarshalBinary decodes an organization account.
func (o *Organization) UnmarshalBinary(data []byte) error {
	r := reader{buf: data}

	if err := r.discriminator(organizationDiscriminator); err != nil {
		return err
	}

	copy(o.Authority[:], r.bytes(32))
	nameLen := r.u32()
	if nameLen > MaxNameLength {
		return ErrAccountDidNotDeserialize.WithMessage("name length %d", nameLen)
	}
	o.Name = string(r.bytes(int(nameLen)))
	o.Treasury = r.u64()
	o.WorkersCount = r.u64()
	o.CreatedAt = int64(r.u64()) //nolint:gosec // two's complement round trip
	o.Bump = r.u8()

	return r.err()
}

// Worker is the account of one worker of an organization.
type Worker struct {
	// Address is where the account is stored. It is not part of the stored layout.
	Address address.Address `json:"address"`

	Organization   address.Address `json:"org"`
	WorkerIdentity address.Address `json:"worker_identity"`
	Salary         uint64          `json:"salary"`
	LastPaidCycle  uint64          `json:"last_paid_cycle"`
	CreatedAt      int64           `json:"created_at"`
	Bump           uint8           `json:"bump"`
}

// MarshalBinary encodes the worker into its fixed size layout.
func (wk *Worker) MarshalBinary() ([]byte, error) {
	buf := make([]byte, WorkerSize)
	w := writer{buf: buf}

	w.bytes(workerDiscriminator)
	w.bytes(wk.Organization[:])
	w.bytes(wk.WorkerIdentity[:])
	w.u64(wk.Salary)
	w.u64(wk.LastPaidCycle)
	w.u64(uint64(wk.CreatedAt)) //nolint:gosec // two's complement round trip
	w.u8(wk.Bump)

	return buf, nil
}

// UnmarshalBinary decodes a worker account.
func (wk *Worker) UnmarshalBinary(data []byte) error {
	r := reader{buf: data}

	if err := r.discriminator(workerDiscriminator); err != nil {
		return err
	}

	copy(wk.Organization[:], r.bytes(32))
	copy(wk.WorkerIdentity[:], r.bytes(32))
	wk.Salary = r.u64()
	wk.LastPaidCycle = r.u64()
	wk.CreatedAt = int64(r.u64()) //nolint:gosec // two's complement round trip
	wk.Bump = r.u8()

	return r.err()
}

// writer fills a preallocated buffer. The buffers are sized for the layout so writes never overflow.
type writer struct {
	buf []byte
	off int
}

func (w *writer) bytes(b []byte) {
	w.off += copy(w.buf[w.off:], b)
}

func (w *writer) u8(v uint8) {
	w.buf[w.off] = v
	w.off++
}

func (w *writer) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[w.off:], v)
	w.off += 4
}

func (w *writer) u64(v uint64) {
	binary.LittleEndian.PutUint64(w.buf[w.off:], v)
	w.off += 8
}

// reader consumes a layout, recording the first short read.
type reader struct {
	buf   []byte
	off   int
	short bool
}

func (r *reader) discriminator(want []byte) error {
	if len(r.buf) < DiscriminatorLength {
		return ErrAccountDidNotDeserialize.WithMessage("account data too short")
	}
	if !bytes.Equal(r.buf[:DiscriminatorLength], want) {
		return ErrAccountDiscriminatorMismatch
	}
	r.off = DiscriminatorLength
	return nil
}

func (r *reader) bytes(n int) []byte {
	if r.short || r.off+n > len(r.buf) {
		r.short = true
		return make([]byte, n)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() uint8 {
	return r.bytes(1)[0]
}

func (r *reader) u32() uint32 {
	return binary.LittleEndian.Uint32(r.bytes(4))
}

func (r *reader) u64() uint64 {
	return binary.LittleEndian.Uint64(r.bytes(8))
}

func (r *reader) err() error {
	if r.short {
		return ErrAccountDidNotDeserialize.WithMessage("account data too short")
	}
	return nil
}
