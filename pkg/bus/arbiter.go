package bus

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// Op is one register write inside a transaction. Settle, when non-zero, is
// slept after the write completes while still holding the bus; the PCA9685
// oscillator needs 500µs after clearing the sleep bit before a restart.
type Op struct {
	Reg    byte
	Data   []byte
	Settle time.Duration
}

// Arbiter owns the single Port to a physical bus and guarantees that only
// one transaction is in flight at a time. A transaction is an ordered op
// list executed under one lock acquisition, so multi-register sequences
// (an ON+OFF pair, or sleep→prescale→wake) are never interleaved with
// another caller's writes.
//
// Retry policy lives here, not in the Port: a transaction failing with
// ErrTimeout is re-issued once from the start. ErrNotPresent signals a
// wiring problem and is surfaced immediately.
type Arbiter struct {
	port  Port
	addr  uint16
	clock clock.Clock
	sem   chan struct{}
}

// NewArbiter wraps the given port, targeting the device at addr. The port
// must not be used by anyone else from this point on.
func NewArbiter(port Port, addr uint16) *Arbiter {
	return newArbiter(port, addr, clock.New())
}

func newArbiter(port Port, addr uint16, c clock.Clock) *Arbiter {
	sem := make(chan struct{}, 1)
	sem <- struct{}{}
	return &Arbiter{port: port, addr: addr, clock: c, sem: sem}
}

// Execute runs ops as one exclusive transaction. The lock is held from
// before the first op until after the last, on every exit path. Waiting for
// the bus blocks on the context; once the transaction starts it runs to
// completion or hardware error.
func (a *Arbiter) Execute(ctx context.Context, ops []Op) error {
	select {
	case <-a.sem:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { a.sem <- struct{}{} }()

	err := a.run(ctx, ops)
	if errors.Is(err, ErrTimeout) {
		err = a.run(ctx, ops)
	}
	return err
}

func (a *Arbiter) run(ctx context.Context, ops []Op) error {
	for _, op := range ops {
		if err := a.port.Write(ctx, a.addr, op.Reg, op.Data); err != nil {
			return err
		}
		if op.Settle > 0 {
			a.clock.Sleep(op.Settle)
		}
	}
	return nil
}

// ReadRegister reads n bytes at reg under the same exclusivity domain as
// Execute. Used for diagnostics and health checks.
func (a *Arbiter) ReadRegister(ctx context.Context, reg byte, n int) ([]byte, error) {
	select {
	case <-a.sem:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { a.sem <- struct{}{} }()

	data, err := a.port.Read(ctx, a.addr, reg, n)
	if errors.Is(err, ErrTimeout) {
		data, err = a.port.Read(ctx, a.addr, reg, n)
	}
	return data, err
}

// Close releases the underlying port, waiting for any in-flight
// transaction to finish first.
func (a *Arbiter) Close() error {
	<-a.sem
	defer func() { a.sem <- struct{}{} }()
	return a.port.Close()
}
