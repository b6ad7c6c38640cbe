package pca9685

import (
	"context"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
	"go.uber.org/multierr"

	"github.com/Seann-Moser/servod/pkg/bus"
)

// State is the chip lifecycle state.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateAwake         State = "awake"
	StateSleeping      State = "sleeping"
)

// oscillatorSettle is the post-wake stabilization time; the datasheet
// requires at least 500µs before setting RESTART.
const oscillatorSettle = 500 * time.Microsecond

// Lifecycle errors.
var (
	ErrNotInitialized     = errors.New("controller not initialized")
	ErrAlreadyInitialized = errors.New("controller already initialized")
	ErrValueOutOfRange    = errors.New("value out of range")
)

// OutputEnablePin names the GPIO line wired to the chip's /OE pin. The pin
// is active low: driving it low enables all outputs.
type OutputEnablePin struct {
	Chip string `json:"chip"` // e.g. "gpiochip0"
	Line int    `json:"line"`
}

// Options configures hardware behavior outside the register core.
type Options struct {
	// OpenDrain selects open-drain outputs instead of totem pole.
	OpenDrain bool
	// OutputEnable, when set, gives the controller ownership of the /OE
	// line.
	OutputEnable *OutputEnablePin
}

// Controller orchestrates the chip: it owns the registry, the lifecycle
// state, and the arbiter, and treats the three as a single critical
// section so a concurrent frequency change can never race a channel apply
// against a stale frequency.
type Controller struct {
	mu     sync.Mutex
	arb    *bus.Arbiter
	reg    *Registry
	opts   Options
	logger golog.Logger

	state  State
	freqHz float64
	oeLine *gpiocdev.Line
}

// NewController returns an uninitialized controller owning the arbiter.
func NewController(arb *bus.Arbiter, opts Options, logger golog.Logger) *Controller {
	return &Controller{
		arb:    arb,
		reg:    NewRegistry(),
		opts:   opts,
		logger: logger,
		state:  StateUninitialized,
	}
}

// Initialize programs MODE1 (auto-increment, normal mode), the prescale
// for the requested frequency via the sleep→prescale→wake→restart
// sequence, and MODE2, then enables outputs via the /OE line if one is
// configured. Valid only once, from Uninitialized.
func (c *Controller) Initialize(ctx context.Context, frequencyHz float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateUninitialized {
		return errors.Wrapf(ErrAlreadyInitialized, "state %s", c.state)
	}

	if err := c.programFrequency(ctx, frequencyHz, nil); err != nil {
		c.state = StateUninitialized
		return err
	}

	if c.opts.OutputEnable != nil {
		pin := c.opts.OutputEnable
		line, err := gpiocdev.RequestLine(pin.Chip, pin.Line,
			gpiocdev.AsOutput(0), gpiocdev.WithConsumer("servod"))
		if err != nil {
			return errors.Wrapf(err, "requesting /OE line %s:%d", pin.Chip, pin.Line)
		}
		c.oeLine = line
	}

	c.logger.Infow("chip initialized",
		"frequency_hz", frequencyHz,
		"open_drain", c.opts.OpenDrain,
	)
	return nil
}

// SetFrequency reprograms the prescale through the sleep/wake sequence and
// re-applies every known channel duty after the wake, all inside one
// arbitrated transaction. The chip does not re-output previous counts on
// its own after a restart.
func (c *Controller) SetFrequency(ctx context.Context, frequencyHz float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateUninitialized {
		return errors.Wrap(ErrNotInitialized, "set frequency")
	}

	var reapply []bus.Op
	for _, ch := range c.reg.Configured() {
		st, _ := c.reg.Get(ch)
		if st.Duty == nil {
			continue
		}
		block := encodeCount(*st.Duty)
		reapply = append(reapply, bus.Op{Reg: LedReg(ch), Data: block[:]})
	}
	return c.programFrequency(ctx, frequencyHz, reapply)
}

// programFrequency runs the full reprogramming sequence as one arbiter
// transaction. Caller holds c.mu.
func (c *Controller) programFrequency(ctx context.Context, frequencyHz float64, trailing []bus.Op) error {
	prescale, err := EncodePrescale(frequencyHz)
	if err != nil {
		return err
	}

	mode2 := byte(Mode2OutDrv)
	if c.opts.OpenDrain {
		mode2 = 0
	}
	ops := []bus.Op{
		{Reg: RegMode1, Data: []byte{Mode1AutoInc | Mode1Sleep}},
		{Reg: RegPrescale, Data: []byte{prescale}},
		{Reg: RegMode1, Data: []byte{Mode1AutoInc}, Settle: oscillatorSettle},
		{Reg: RegMode1, Data: []byte{Mode1AutoInc | Mode1Restart}},
		{Reg: RegMode2, Data: []byte{mode2}},
	}
	ops = append(ops, trailing...)

	c.state = StateSleeping
	if err := c.arb.Execute(ctx, ops); err != nil {
		return errors.Wrapf(err, "programming prescale %d", prescale)
	}
	c.state = StateAwake
	c.freqHz = frequencyHz
	c.logger.Debugw("prescale programmed", "frequency_hz", frequencyHz, "prescale", prescale)
	return nil
}

// Configure validates and stores a channel configuration. Reconfiguring a
// channel overwrites the previous config and forgets its duty.
func (c *Controller) Configure(cfg ChannelConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.reg.Configure(cfg); err != nil {
		return err
	}
	c.logger.Infow("channel configured",
		"channel", cfg.Channel,
		"pulse_ms", []float64{cfg.MinPulseMs, cfg.MaxPulseMs},
		"angle", []float64{cfg.MinAngle, cfg.MaxAngle},
	)
	return nil
}

// Channel returns the state of a configured channel.
func (c *Controller) Channel(channel int) (ChannelState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if channel < 0 || channel >= NumChannels {
		return ChannelState{}, errors.Wrapf(ErrInvalidChannel, "channel %d", channel)
	}
	st, ok := c.reg.Get(channel)
	if !ok {
		return ChannelState{}, errors.Wrapf(ErrChannelNotConfigured, "channel %d", channel)
	}
	return st, nil
}

// Deconfigure removes a channel's configuration. The output keeps running
// at its last programmed duty; callers wanting the output stopped issue
// FullOff first.
func (c *Controller) Deconfigure(channel int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if channel < 0 || channel >= NumChannels {
		return errors.Wrapf(ErrInvalidChannel, "channel %d", channel)
	}
	c.reg.Remove(channel)
	return nil
}

// ApplyAngle positions a configured channel at the given angle. The angle
// is clamped to the configured range before interpolation.
func (c *Controller) ApplyAngle(ctx context.Context, channel int, angle float64) (ChannelState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, err := c.configuredAwake(channel)
	if err != nil {
		return ChannelState{}, err
	}
	duty := AngleToDuty(angle, st.ChannelConfig, c.freqHz)
	return c.writeDuty(ctx, channel, duty)
}

// ApplyPulseMs positions a configured channel using a raw pulse width,
// clamped to the channel's configured pulse range.
func (c *Controller) ApplyPulseMs(ctx context.Context, channel int, pulseMs float64) (ChannelState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, err := c.configuredAwake(channel)
	if err != nil {
		return ChannelState{}, err
	}
	if pulseMs < st.MinPulseMs {
		pulseMs = st.MinPulseMs
	} else if pulseMs > st.MaxPulseMs {
		pulseMs = st.MaxPulseMs
	}
	return c.writeDuty(ctx, channel, PulseMsToDuty(pulseMs, c.freqHz))
}

// ApplyPercent positions a configured channel at a fraction of its pulse
// range. pct must be within [0, 1].
func (c *Controller) ApplyPercent(ctx context.Context, channel int, pct float64) (ChannelState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, err := c.configuredAwake(channel)
	if err != nil {
		return ChannelState{}, err
	}
	if pct < 0 || pct > 1 {
		return ChannelState{}, errors.Wrapf(ErrValueOutOfRange, "percent %v not in [0,1]", pct)
	}
	return c.writeDuty(ctx, channel, PulseMsToDuty(PercentToPulseMs(pct, st.ChannelConfig), c.freqHz))
}

// ApplyCount writes a raw duty count in [0, 4095]. A count of 4095
// escalates to the hardware full-on flag.
func (c *Controller) ApplyCount(ctx context.Context, channel int, count int) (ChannelState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.configuredAwake(channel); err != nil {
		return ChannelState{}, err
	}
	if count < 0 || count > MaxDuty {
		return ChannelState{}, errors.Wrapf(ErrValueOutOfRange, "count %d not in [0,%d]", count, MaxDuty)
	}
	return c.writeDuty(ctx, channel, uint16(count))
}

// FullOn sets a configured channel to continuous output.
func (c *Controller) FullOn(ctx context.Context, channel int) (ChannelState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.configuredAwake(channel); err != nil {
		return ChannelState{}, err
	}
	return c.writeDuty(ctx, channel, MaxDuty)
}

// FullOff turns a configured channel's output off entirely and forgets its
// duty.
func (c *Controller) FullOff(ctx context.Context, channel int) (ChannelState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.configuredAwake(channel); err != nil {
		return ChannelState{}, err
	}
	block := EncodeFullOff()
	if err := c.arb.Execute(ctx, []bus.Op{{Reg: LedReg(channel), Data: block[:]}}); err != nil {
		return ChannelState{}, errors.Wrapf(err, "channel %d full off", channel)
	}
	c.reg.ClearDuty(channel)
	c.logger.Debugw("channel full off", "channel", channel)
	st, _ := c.reg.Get(channel)
	return st, nil
}

// configuredAwake gates every apply: the chip must be awake and the
// channel configured. Caller holds c.mu.
func (c *Controller) configuredAwake(channel int) (ChannelState, error) {
	if c.state != StateAwake {
		return ChannelState{}, errors.Wrapf(ErrNotInitialized, "state %s", c.state)
	}
	if channel < 0 || channel >= NumChannels {
		return ChannelState{}, errors.Wrapf(ErrInvalidChannel, "channel %d", channel)
	}
	st, ok := c.reg.Get(channel)
	if !ok {
		return ChannelState{}, errors.Wrapf(ErrChannelNotConfigured, "channel %d", channel)
	}
	return st, nil
}

// writeDuty issues the arbitrated 4-byte ON+OFF block write for a duty
// count and records the attempted value. Caller holds c.mu.
func (c *Controller) writeDuty(ctx context.Context, channel int, duty uint16) (ChannelState, error) {
	block := encodeCount(duty)
	c.reg.SetDuty(channel, duty)
	if err := c.arb.Execute(ctx, []bus.Op{{Reg: LedReg(channel), Data: block[:]}}); err != nil {
		return ChannelState{}, errors.Wrapf(err, "writing duty %d to channel %d", duty, channel)
	}
	c.logger.Debugw("duty written", "channel", channel, "duty", duty)
	st, _ := c.reg.Get(channel)
	return st, nil
}

// encodeCount picks the register block for a duty count, escalating the
// 4095 sentinel to the hardware full-on flag.
func encodeCount(duty uint16) [4]byte {
	if duty >= MaxDuty {
		return EncodeFullOn()
	}
	return EncodeDuty(0, duty)
}

// SetOutputEnabled drives the /OE line. Valid only when an output-enable
// pin is configured.
func (c *Controller) SetOutputEnabled(enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.oeLine == nil {
		return errors.New("no output_enable pin configured")
	}
	// /OE is active low.
	v := 1
	if enabled {
		v = 0
	}
	if err := c.oeLine.SetValue(v); err != nil {
		return errors.Wrap(err, "driving /OE line")
	}
	c.logger.Infow("output enable changed", "enabled", enabled)
	return nil
}

// Frequency returns the current output frequency, zero before Initialize.
func (c *Controller) Frequency() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freqHz
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close disables outputs via /OE when owned and releases the bus.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.oeLine != nil {
		err = multierr.Combine(c.oeLine.SetValue(1), c.oeLine.Close())
		c.oeLine = nil
	}
	return multierr.Append(err, c.arb.Close())
}
