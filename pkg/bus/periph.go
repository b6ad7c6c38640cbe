package bus

import (
	"context"
	"os"
	"syscall"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// periphPort adapts a periph.io bus handle to the Port contract. It is the
// only code in the repository that touches hardware.
type periphPort struct {
	bus i2c.BusCloser
}

// Open opens the named I2C bus (e.g. "1" or "/dev/i2c-1"; empty selects the
// first available bus). Most Raspberry Pi boards expose the PCA9685 on bus 1.
func Open(name string) (Port, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "initializing host drivers")
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "opening i2c bus %q", name)
	}
	return &periphPort{bus: b}, nil
}

func (p *periphPort) Write(ctx context.Context, addr uint16, reg byte, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w := make([]byte, 0, len(data)+1)
	w = append(w, reg)
	w = append(w, data...)
	if err := p.bus.Tx(addr, w, nil); err != nil {
		return classify(err, addr)
	}
	return nil
}

func (p *periphPort) Read(ctx context.Context, addr uint16, reg byte, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r := make([]byte, n)
	if err := p.bus.Tx(addr, []byte{reg}, r); err != nil {
		return nil, classify(err, addr)
	}
	return r, nil
}

func (p *periphPort) Close() error {
	return p.bus.Close()
}

// classify maps a raw periph/kernel error onto the bus fault taxonomy. The
// kernel reports a missing ACK as ENXIO or EREMOTEIO depending on the
// adapter driver.
func classify(err error, addr uint16) error {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.ENXIO, syscall.ENODEV, syscall.EREMOTEIO:
			return errors.Wrapf(ErrNotPresent, "device 0x%02x", addr)
		case syscall.ETIMEDOUT:
			return errors.Wrapf(ErrTimeout, "device 0x%02x", addr)
		}
	}
	if os.IsTimeout(err) {
		return errors.Wrapf(ErrTimeout, "device 0x%02x", addr)
	}
	return errors.Wrapf(err, "i2c transfer to 0x%02x", addr)
}
