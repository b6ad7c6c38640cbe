package bus

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// WriteSpan is one recorded register write: the full block handed to a
// single Port.Write call.
type WriteSpan struct {
	Addr uint16
	Reg  byte
	Data []byte
}

// Mem is an in-memory register file implementing Port. It backs the --mock
// service mode and doubles as the recording double in tests: every write is
// captured as one atomic span, so interleaved partial writes are visible.
type Mem struct {
	mu    sync.Mutex
	regs  [256]byte
	spans []WriteSpan

	// FailWith, when non-nil, is returned by the next FailCount write
	// calls before the port recovers.
	FailWith  error
	FailCount int
}

// NewMem returns an empty in-memory port.
func NewMem() *Mem {
	return &Mem{}
}

func (m *Mem) Write(ctx context.Context, addr uint16, reg byte, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil && m.FailCount > 0 {
		m.FailCount--
		return m.FailWith
	}
	if int(reg)+len(data) > len(m.regs) {
		return errors.Errorf("write of %d bytes at 0x%02x overruns register file", len(data), reg)
	}
	copy(m.regs[reg:], data)
	span := WriteSpan{Addr: addr, Reg: reg, Data: append([]byte(nil), data...)}
	m.spans = append(m.spans, span)
	return nil
}

func (m *Mem) Read(ctx context.Context, addr uint16, reg byte, n int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if int(reg)+n > len(m.regs) {
		return nil, errors.Errorf("read of %d bytes at 0x%02x overruns register file", n, reg)
	}
	return append([]byte(nil), m.regs[reg:int(reg)+n]...), nil
}

func (m *Mem) Close() error {
	return nil
}

// Register returns the current value of a single register.
func (m *Mem) Register(reg byte) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[reg]
}

// Spans returns a copy of all recorded write spans in order.
func (m *Mem) Spans() []WriteSpan {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]WriteSpan(nil), m.spans...)
}

// ResetSpans clears the recorded history, keeping register contents.
func (m *Mem) ResetSpans() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spans = nil
}
