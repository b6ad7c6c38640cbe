package pca9685

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestRegistryConfigureRoundTrip(t *testing.T) {
	r := NewRegistry()
	cfg := ChannelConfig{Channel: 3, MinPulseMs: 0.5, MaxPulseMs: 2.5, MinAngle: 0, MaxAngle: 180}
	test.That(t, r.Configure(cfg), test.ShouldBeNil)

	st, ok := r.Get(3)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, st.ChannelConfig, test.ShouldResemble, cfg)
	test.That(t, st.Duty, test.ShouldBeNil)
}

func TestRegistryConfigureOverwrites(t *testing.T) {
	r := NewRegistry()
	first := ChannelConfig{Channel: 0, MinPulseMs: 0.5, MaxPulseMs: 2.5, MinAngle: 0, MaxAngle: 180}
	test.That(t, r.Configure(first), test.ShouldBeNil)
	r.SetDuty(0, 307)

	second := ChannelConfig{Channel: 0, MinPulseMs: 1.0, MaxPulseMs: 2.0, MinAngle: -90, MaxAngle: 90}
	test.That(t, r.Configure(second), test.ShouldBeNil)

	st, ok := r.Get(0)
	test.That(t, ok, test.ShouldBeTrue)
	// Overwrite, not merge; and the stale duty is dropped.
	test.That(t, st.ChannelConfig, test.ShouldResemble, second)
	test.That(t, st.Duty, test.ShouldBeNil)
}

func TestRegistryValidation(t *testing.T) {
	r := NewRegistry()

	err := r.Configure(ChannelConfig{Channel: 16, MinPulseMs: 0.5, MaxPulseMs: 2.5, MaxAngle: 180})
	test.That(t, errors.Is(err, ErrInvalidChannel), test.ShouldBeTrue)
	err = r.Configure(ChannelConfig{Channel: -1, MinPulseMs: 0.5, MaxPulseMs: 2.5, MaxAngle: 180})
	test.That(t, errors.Is(err, ErrInvalidChannel), test.ShouldBeTrue)

	err = r.Configure(ChannelConfig{Channel: 0, MinPulseMs: 2.5, MaxPulseMs: 0.5, MaxAngle: 180})
	test.That(t, errors.Is(err, ErrInvalidPulseRange), test.ShouldBeTrue)
	err = r.Configure(ChannelConfig{Channel: 0, MinPulseMs: 0, MaxPulseMs: 2.5, MaxAngle: 180})
	test.That(t, errors.Is(err, ErrInvalidPulseRange), test.ShouldBeTrue)
	err = r.Configure(ChannelConfig{Channel: 0, MinPulseMs: 1.5, MaxPulseMs: 1.5, MaxAngle: 180})
	test.That(t, errors.Is(err, ErrInvalidPulseRange), test.ShouldBeTrue)

	err = r.Configure(ChannelConfig{Channel: 0, MinPulseMs: 0.5, MaxPulseMs: 2.5, MinAngle: 90, MaxAngle: 90})
	test.That(t, errors.Is(err, ErrInvalidAngleRange), test.ShouldBeTrue)

	_, ok := r.Get(0)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestRegistryDutyBookkeeping(t *testing.T) {
	r := NewRegistry()
	cfg := ChannelConfig{Channel: 5, MinPulseMs: 0.5, MaxPulseMs: 2.5, MinAngle: 0, MaxAngle: 180}
	test.That(t, r.Configure(cfg), test.ShouldBeNil)

	r.SetDuty(5, 1024)
	st, _ := r.Get(5)
	test.That(t, *st.Duty, test.ShouldEqual, uint16(1024))

	// The returned state is a copy; mutating it does not leak back.
	*st.Duty = 0
	st2, _ := r.Get(5)
	test.That(t, *st2.Duty, test.ShouldEqual, uint16(1024))

	r.ClearDuty(5)
	st, _ = r.Get(5)
	test.That(t, st.Duty, test.ShouldBeNil)

	// Duty on an unconfigured channel is ignored.
	r.SetDuty(9, 100)
	_, ok := r.Get(9)
	test.That(t, ok, test.ShouldBeFalse)
}

func TestRegistryConfiguredAndRemove(t *testing.T) {
	r := NewRegistry()
	for _, ch := range []int{7, 0, 12} {
		cfg := ChannelConfig{Channel: ch, MinPulseMs: 0.5, MaxPulseMs: 2.5, MinAngle: 0, MaxAngle: 180}
		test.That(t, r.Configure(cfg), test.ShouldBeNil)
	}
	test.That(t, r.Configured(), test.ShouldResemble, []int{0, 7, 12})

	r.Remove(7)
	test.That(t, r.Configured(), test.ShouldResemble, []int{0, 12})
	r.Remove(7)
	test.That(t, r.Configured(), test.ShouldResemble, []int{0, 12})
}
