// Package bus provides register-level access to a single shared I2C bus,
// plus the arbiter that serializes transactions on it.
package bus

import (
	"context"

	"github.com/pkg/errors"
)

// Sentinel bus faults. Anything else coming out of a Port is a plain I/O
// error wrapped with context.
var (
	// ErrNotPresent means the device did not ACK its address. This is a
	// wiring or configuration problem and is never retried.
	ErrNotPresent = errors.New("no ack from device")

	// ErrTimeout is a hardware I/O timeout surfaced by the port. The
	// arbiter retries a transaction once on this error.
	ErrTimeout = errors.New("i2c transaction timed out")
)

// Port is the capability contract for a physical I2C bus: read and write
// fixed-size register blocks at a 7-bit device address. Implementations do
// not retry; retry policy belongs to the arbiter.
//
// A Port is exclusively owned by an Arbiter and must never be shared
// outside of it.
type Port interface {
	// Write writes data to the given register of the device at addr.
	Write(ctx context.Context, addr uint16, reg byte, data []byte) error

	// Read reads n bytes starting at the given register of the device
	// at addr.
	Read(ctx context.Context, addr uint16, reg byte, n int) ([]byte, error)

	// Close releases the underlying bus handle.
	Close() error
}
