// Package pca9685 implements the channel-configuration model, pulse-width
// computation, and chip lifecycle for the PCA9685 16-channel 12-bit PWM
// controller.
package pca9685

import (
	"math"

	"github.com/pkg/errors"
)

// PCA9685 register map.
const (
	RegMode1    = 0x00
	RegMode2    = 0x01
	RegLed0OnL  = 0x06 // LEDn block is 4 bytes per channel: ON_L ON_H OFF_L OFF_H
	RegPrescale = 0xFE // writable only while the sleep bit is set
)

// MODE1 bits.
const (
	Mode1Sleep   = 0x10
	Mode1AutoInc = 0x20
	Mode1Restart = 0x80
)

// MODE2 bits.
const (
	Mode2OutDrv = 0x04 // totem pole when set, open drain when clear
)

const (
	// Resolution is the number of steps in one PWM period (12-bit).
	Resolution = 4096

	// MaxDuty is the largest programmable duty count. It doubles as the
	// full-on sentinel: a request for 4095 escalates to the hardware
	// full-on flag.
	MaxDuty = Resolution - 1

	// OscillatorHz is the chip's internal oscillator.
	OscillatorHz = 25_000_000

	fullBit = 0x10 // bit 4 of LEDn_ON_H / LEDn_OFF_H

	minPrescale = 3 // asserted by hardware
	maxPrescale = 255
)

// ErrInvalidFrequency is returned when a requested PWM frequency has no
// representable prescale value (roughly outside 24–1526 Hz).
var ErrInvalidFrequency = errors.New("frequency outside representable prescale range")

// LedReg returns the address of the LEDn_ON_L register for a channel. The
// three following registers (ON_H, OFF_L, OFF_H) complete the block.
func LedReg(channel int) byte {
	return byte(RegLed0OnL + 4*channel)
}

// EncodeDuty packs an ON/OFF count pair into the 4-byte LEDn register
// block: two 12-bit little-endian values with bit 12 as the always-on /
// always-off override flag.
func EncodeDuty(on, off uint16) [4]byte {
	return [4]byte{
		byte(on), byte(on>>8) & 0x1F,
		byte(off), byte(off>>8) & 0x1F,
	}
}

// DecodeDuty is the inverse of EncodeDuty, for diagnostics and tests.
func DecodeDuty(b [4]byte) (on, off uint16) {
	on = uint16(b[0]) | uint16(b[1]&0x1F)<<8
	off = uint16(b[2]) | uint16(b[3]&0x1F)<<8
	return on, off
}

// EncodeFullOn returns the register block for continuous full output.
func EncodeFullOn() [4]byte {
	return [4]byte{0x00, fullBit, 0x00, 0x00}
}

// EncodeFullOff returns the register block for no output. The full-off
// flag takes precedence over full-on in hardware.
func EncodeFullOff() [4]byte {
	return [4]byte{0x00, 0x00, 0x00, fullBit}
}

// EncodePrescale derives the PRE_SCALE byte for an output frequency, per
// datasheet 7.3.5: round(osc/(4096*freq)) - 1.
func EncodePrescale(frequencyHz float64) (byte, error) {
	if frequencyHz <= 0 {
		return 0, errors.Wrapf(ErrInvalidFrequency, "%vHz", frequencyHz)
	}
	p := math.Round(OscillatorHz/(Resolution*frequencyHz)) - 1
	if p < minPrescale || p > maxPrescale {
		return 0, errors.Wrapf(ErrInvalidFrequency, "%vHz (prescale %v)", frequencyHz, p)
	}
	return byte(p), nil
}

// DecodePrescale returns the output frequency implied by a prescale byte.
func DecodePrescale(prescale byte) float64 {
	return OscillatorHz / (Resolution * (float64(prescale) + 1))
}
