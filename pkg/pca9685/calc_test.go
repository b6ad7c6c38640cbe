package pca9685

import (
	"testing"

	"go.viam.com/test"
)

var standardServo = ChannelConfig{
	Channel:    0,
	MinPulseMs: 0.5,
	MaxPulseMs: 2.5,
	MinAngle:   0,
	MaxAngle:   180,
}

func TestAngleToPulseMsEndpoints(t *testing.T) {
	test.That(t, AngleToPulseMs(0, standardServo), test.ShouldEqual, 0.5)
	test.That(t, AngleToPulseMs(180, standardServo), test.ShouldEqual, 2.5)
	test.That(t, AngleToPulseMs(90, standardServo), test.ShouldEqual, 1.5)
}

func TestAngleToPulseMsMonotonic(t *testing.T) {
	prev := AngleToPulseMs(0, standardServo)
	for angle := 1.0; angle <= 180; angle++ {
		pw := AngleToPulseMs(angle, standardServo)
		test.That(t, pw, test.ShouldBeGreaterThan, prev)
		prev = pw
	}
}

func TestAngleToPulseMsInverted(t *testing.T) {
	// A mechanically reversed servo: min_angle > max_angle maps
	// anti-monotonically.
	reversed := ChannelConfig{
		Channel:    1,
		MinPulseMs: 0.5,
		MaxPulseMs: 2.5,
		MinAngle:   180,
		MaxAngle:   0,
	}
	test.That(t, AngleToPulseMs(180, reversed), test.ShouldEqual, 0.5)
	test.That(t, AngleToPulseMs(0, reversed), test.ShouldEqual, 2.5)

	prev := AngleToPulseMs(0, reversed)
	for angle := 1.0; angle <= 180; angle++ {
		pw := AngleToPulseMs(angle, reversed)
		test.That(t, pw, test.ShouldBeLessThan, prev)
		prev = pw
	}
}

func TestAngleToPulseMsClamps(t *testing.T) {
	// Sweeping 50% past the limit degrades to the limit.
	test.That(t, AngleToPulseMs(270, standardServo), test.ShouldEqual,
		AngleToPulseMs(180, standardServo))
	test.That(t, AngleToPulseMs(-45, standardServo), test.ShouldEqual,
		AngleToPulseMs(0, standardServo))
}

func TestPulseMsToDuty(t *testing.T) {
	// 50Hz period is 20ms: 1.5ms is 307 counts, 0.5ms is 102.
	test.That(t, PulseMsToDuty(1.5, 50), test.ShouldEqual, uint16(307))
	test.That(t, PulseMsToDuty(0.5, 50), test.ShouldEqual, uint16(102))
	test.That(t, PulseMsToDuty(0, 50), test.ShouldEqual, uint16(0))

	// A full-period pulse clamps to the 4095 sentinel.
	test.That(t, PulseMsToDuty(20, 50), test.ShouldEqual, uint16(MaxDuty))
	test.That(t, PulseMsToDuty(25, 50), test.ShouldEqual, uint16(MaxDuty))
}

func TestAngleToDuty(t *testing.T) {
	test.That(t, AngleToDuty(90, standardServo, 50), test.ShouldEqual, uint16(307))
	test.That(t, AngleToDuty(0, standardServo, 50), test.ShouldEqual, uint16(102))
	test.That(t, AngleToDuty(270, standardServo, 50), test.ShouldEqual,
		AngleToDuty(180, standardServo, 50))
}

func TestPercentToPulseMs(t *testing.T) {
	test.That(t, PercentToPulseMs(0, standardServo), test.ShouldEqual, 0.5)
	test.That(t, PercentToPulseMs(1, standardServo), test.ShouldEqual, 2.5)
	test.That(t, PercentToPulseMs(0.5, standardServo), test.ShouldEqual, 1.5)
}
