package pca9685

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestEncodePrescale(t *testing.T) {
	// Datasheet 7.3.5 worked example: 200Hz yields 0x1E.
	p, err := EncodePrescale(200)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p, test.ShouldEqual, byte(30))

	p, err = EncodePrescale(50)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p, test.ShouldEqual, byte(121))
}

func TestEncodePrescaleInvalid(t *testing.T) {
	for _, freq := range []float64{0, -5, 10, 23, 2100, 10000} {
		_, err := EncodePrescale(freq)
		test.That(t, errors.Is(err, ErrInvalidFrequency), test.ShouldBeTrue)
	}
}

func TestPrescaleRoundTrip(t *testing.T) {
	// Lossy but monotonic: the implied frequency of the encoded prescale
	// must be within one prescale step of the request.
	for freq := 24.0; freq <= 1526.0; freq++ {
		p, err := EncodePrescale(freq)
		test.That(t, err, test.ShouldBeNil)

		lo := DecodePrescale(p + 1)
		hi := DecodePrescale(p - 1)
		test.That(t, freq, test.ShouldBeGreaterThanOrEqualTo, lo)
		test.That(t, freq, test.ShouldBeLessThanOrEqualTo, hi)
	}
}

func TestPrescaleMonotonic(t *testing.T) {
	prev, err := EncodePrescale(24)
	test.That(t, err, test.ShouldBeNil)
	for freq := 25.0; freq <= 1526.0; freq++ {
		p, err := EncodePrescale(freq)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, p, test.ShouldBeLessThanOrEqualTo, prev)
		prev = p
	}
}

func TestEncodeDuty(t *testing.T) {
	block := EncodeDuty(0, 307)
	test.That(t, block, test.ShouldResemble, [4]byte{0x00, 0x00, 0x33, 0x01})

	on, off := DecodeDuty(block)
	test.That(t, on, test.ShouldEqual, uint16(0))
	test.That(t, off, test.ShouldEqual, uint16(307))

	block = EncodeDuty(4095, 4095)
	on, off = DecodeDuty(block)
	test.That(t, on, test.ShouldEqual, uint16(4095))
	test.That(t, off, test.ShouldEqual, uint16(4095))
}

func TestEncodeFullSentinels(t *testing.T) {
	on := EncodeFullOn()
	test.That(t, on[1]&0x10, test.ShouldEqual, byte(0x10))
	test.That(t, on[3], test.ShouldEqual, byte(0x00))

	off := EncodeFullOff()
	test.That(t, off[1], test.ShouldEqual, byte(0x00))
	test.That(t, off[3]&0x10, test.ShouldEqual, byte(0x10))
}

func TestLedReg(t *testing.T) {
	test.That(t, LedReg(0), test.ShouldEqual, byte(0x06))
	test.That(t, LedReg(1), test.ShouldEqual, byte(0x0A))
	test.That(t, LedReg(15), test.ShouldEqual, byte(0x42))
}
