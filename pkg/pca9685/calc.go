package pca9685

import "math"

// AngleToPulseMs linearly maps an angle onto the channel's pulse-width
// range. The angle is clamped to the configured range first, so sweeping
// past a mechanical limit degrades to the limit instead of erroring. An
// inverted angle range (MinAngle > MaxAngle) represents a mechanically
// reversed servo and maps anti-monotonically.
func AngleToPulseMs(angle float64, cfg ChannelConfig) float64 {
	lo, hi := cfg.MinAngle, cfg.MaxAngle
	if lo > hi {
		lo, hi = hi, lo
	}
	angle = math.Min(math.Max(angle, lo), hi)
	t := (angle - cfg.MinAngle) / (cfg.MaxAngle - cfg.MinAngle)
	return cfg.MinPulseMs + t*(cfg.MaxPulseMs-cfg.MinPulseMs)
}

// PulseMsToDuty converts a pulse width to a 12-bit duty count at the given
// output frequency, clamped to [0, MaxDuty].
func PulseMsToDuty(pulseMs, frequencyHz float64) uint16 {
	periodMs := 1000.0 / frequencyHz
	duty := math.Round(pulseMs / periodMs * Resolution)
	if duty < 0 {
		return 0
	}
	if duty > MaxDuty {
		return MaxDuty
	}
	return uint16(duty)
}

// AngleToDuty composes the two pure stages.
func AngleToDuty(angle float64, cfg ChannelConfig, frequencyHz float64) uint16 {
	return PulseMsToDuty(AngleToPulseMs(angle, cfg), frequencyHz)
}

// PercentToPulseMs maps a fraction in [0,1] onto the channel's pulse-width
// range. The caller validates the range of pct.
func PercentToPulseMs(pct float64, cfg ChannelConfig) float64 {
	return cfg.MinPulseMs + pct*(cfg.MaxPulseMs-cfg.MinPulseMs)
}
