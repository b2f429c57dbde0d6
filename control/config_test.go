package control

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/samber/lo"
	"go.viam.com/test"
)

func TestConfigDefaults(t *testing.T) {
	conf := &Config{}
	test.That(t, conf.Validate("motion"), test.ShouldBeNil)

	s := conf.settings()
	test.That(t, s.forwardLeft, test.ShouldEqual, DefaultForwardLeftPower)
	test.That(t, s.clockwiseRight, test.ShouldEqual, DefaultClockwiseRightPower)
	test.That(t, s.counterClockwiseLeft, test.ShouldEqual, DefaultCounterClockwiseLeftPower)
	test.That(t, s.headingBand, test.ShouldEqual, 0.5)
	test.That(t, s.timeout, test.ShouldEqual, 0)
	test.That(t, s.scannerOffset, test.ShouldEqual, 10.5)

	test.That(t, conf.initialPowers(), test.ShouldResemble, WheelPowers{
		ForwardRight:          96,
		ClockwiseLeft:         39,
		CounterClockwiseRight: 68,
	})

	conf = &Config{ForwardRightPower: 90, TimeoutMs: 250, TickMs: 15}
	s = conf.settings()
	test.That(t, s.timeout, test.ShouldEqual, 250*time.Millisecond)
	test.That(t, s.tick, test.ShouldEqual, 15*time.Millisecond)
	test.That(t, conf.initialPowers().ForwardRight, test.ShouldEqual, 90)
}

func TestConfigExplicitZero(t *testing.T) {
	conf := &Config{
		HeadingDeadbandDeg: lo.ToPtr(0.0),
		DistanceDeadbandMM: lo.ToPtr(0.0),
		TurnOvershootDeg:   lo.ToPtr(0.0),
		TapeBackoffCM:      lo.ToPtr(0.0),
		ScannerOffsetCM:    lo.ToPtr(0.0),
	}
	test.That(t, conf.Validate("motion"), test.ShouldBeNil)
	s := conf.settings()
	test.That(t, s.headingBand, test.ShouldEqual, 0)
	test.That(t, s.distanceBand, test.ShouldEqual, 0)
	test.That(t, s.overshoot, test.ShouldEqual, 0)
	test.That(t, s.backoffCM, test.ShouldEqual, 0)
	test.That(t, s.scannerOffset, test.ShouldEqual, 0)

	var fromJSON Config
	test.That(t, json.Unmarshal([]byte(`{"turn_overshoot_deg": 0, "heading_deadband_deg": 1.5}`), &fromJSON), test.ShouldBeNil)
	s = fromJSON.settings()
	test.That(t, s.overshoot, test.ShouldEqual, 0)
	test.That(t, s.headingBand, test.ShouldEqual, 1.5)
	test.That(t, s.distanceBand, test.ShouldEqual, 1.0)
}

func TestConfigValidate(t *testing.T) {
	err := (&Config{ForwardLeftPower: 501}).Validate("motion")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "forward_left_power")

	err = (&Config{HeadingDeadbandDeg: lo.ToPtr(-1.0)}).Validate("motion")
	test.That(t, err, test.ShouldNotBeNil)

	err = (&Config{TimeoutMs: -5}).Validate("motion")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "timeout_ms")

	err = (&Config{TapeMaxAttempts: -1}).Validate("motion")
	test.That(t, err, test.ShouldNotBeNil)

	test.That(t, (&Config{CounterClockwiseLeftPower: -500}).Validate("motion"), test.ShouldBeNil)
}
