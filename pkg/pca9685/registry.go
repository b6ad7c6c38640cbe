package pca9685

import "github.com/pkg/errors"

// NumChannels is the channel count of a single PCA9685.
const NumChannels = 16

// Configuration errors. These are local input errors, always recoverable,
// surfaced to the caller as request failures.
var (
	ErrInvalidChannel       = errors.New("channel must be in [0,15]")
	ErrInvalidPulseRange    = errors.New("min_pulse_ms must be positive and less than max_pulse_ms")
	ErrInvalidAngleRange    = errors.New("min_angle must differ from max_angle")
	ErrChannelNotConfigured = errors.New("channel not configured")
)

// ChannelConfig describes one servo channel: the pulse-width range the
// hardware accepts and the angle range it maps to. The angle range may be
// inverted for mechanically reversed servos.
type ChannelConfig struct {
	Channel    int     `json:"channel"`
	MinPulseMs float64 `json:"min_pulse_ms"`
	MaxPulseMs float64 `json:"max_pulse_ms"`
	MinAngle   float64 `json:"min_angle"`
	MaxAngle   float64 `json:"max_angle"`
}

// Validate checks the config invariants without touching any state.
func (c ChannelConfig) Validate() error {
	if c.Channel < 0 || c.Channel >= NumChannels {
		return errors.Wrapf(ErrInvalidChannel, "channel %d", c.Channel)
	}
	if c.MinPulseMs <= 0 || c.MinPulseMs >= c.MaxPulseMs {
		return errors.Wrapf(ErrInvalidPulseRange, "[%v, %v]", c.MinPulseMs, c.MaxPulseMs)
	}
	if c.MinAngle == c.MaxAngle {
		return errors.Wrapf(ErrInvalidAngleRange, "[%v, %v]", c.MinAngle, c.MaxAngle)
	}
	return nil
}

// ChannelState is a registry entry: the validated config plus the last
// duty count whose write was attempted, if any.
type ChannelState struct {
	ChannelConfig
	// Duty is the last requested duty count. Nil until the first
	// command. After a failed bus write it reflects what was attempted,
	// not necessarily what the chip holds; the next apply re-issues the
	// full register block.
	Duty *uint16 `json:"current_count,omitempty"`
}

// Registry holds validated per-channel configuration and duty state. It is
// pure in-memory state with no hardware access, mutated only by the
// Controller under its own lock.
type Registry struct {
	channels map[int]*ChannelState
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[int]*ChannelState)}
}

// Configure validates and stores a channel config, overwriting any prior
// configuration for that channel. Any previously recorded duty is dropped,
// since it was computed against the old pulse range.
func (r *Registry) Configure(cfg ChannelConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	r.channels[cfg.Channel] = &ChannelState{ChannelConfig: cfg}
	return nil
}

// Get returns the state for a channel, or false when unconfigured.
func (r *Registry) Get(channel int) (ChannelState, bool) {
	st, ok := r.channels[channel]
	if !ok {
		return ChannelState{}, false
	}
	out := *st
	if st.Duty != nil {
		d := *st.Duty
		out.Duty = &d
	}
	return out, true
}

// Remove deconfigures a channel. Removing an unconfigured channel is a
// no-op.
func (r *Registry) Remove(channel int) {
	delete(r.channels, channel)
}

// SetDuty records the duty count most recently attempted for a channel.
func (r *Registry) SetDuty(channel int, duty uint16) {
	if st, ok := r.channels[channel]; ok {
		d := duty
		st.Duty = &d
	}
}

// ClearDuty forgets the recorded duty (used for full-off).
func (r *Registry) ClearDuty(channel int) {
	if st, ok := r.channels[channel]; ok {
		st.Duty = nil
	}
}

// Configured returns the configured channel numbers in ascending order.
func (r *Registry) Configured() []int {
	out := make([]int, 0, len(r.channels))
	for ch := 0; ch < NumChannels; ch++ {
		if _, ok := r.channels[ch]; ok {
			out = append(out, ch)
		}
	}
	return out
}
