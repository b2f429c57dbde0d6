package gpio

import (
	"context"
	"testing"

	"go.viam.com/test"

	"github.com/roverworks/navcore/components/board"
	"github.com/roverworks/navcore/components/board/fake"
	"github.com/roverworks/navcore/logging"
)

func ptr[T any](v T) *T {
	return &v
}

func TestValidate(t *testing.T) {
	conf := Config{}
	err := conf.Validate("scanner.servo")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "pin")

	conf.Pin = "18"
	test.That(t, conf.Validate("scanner.servo"), test.ShouldBeNil)

	conf.StartPos = ptr(190.0)
	test.That(t, conf.Validate("scanner.servo"), test.ShouldNotBeNil)
	conf.StartPos = ptr(90.0)
	test.That(t, conf.Validate("scanner.servo"), test.ShouldBeNil)

	conf.MinDeg = ptr(-1.0)
	test.That(t, conf.Validate("scanner.servo"), test.ShouldNotBeNil)
	conf.MinDeg = nil

	conf.Frequency = ptr(uint(500))
	test.That(t, conf.Validate("scanner.servo"), test.ShouldNotBeNil)
	conf.Frequency = ptr(uint(50))

	conf.MinWidthUS = ptr(uint(100))
	test.That(t, conf.Validate("scanner.servo"), test.ShouldNotBeNil)
	conf.MinWidthUS = nil
	conf.MaxWidthUS = ptr(uint(3000))
	test.That(t, conf.Validate("scanner.servo"), test.ShouldNotBeNil)
}

func TestServoMove(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	b, err := fake.NewBoard(ctx, &board.Config{Model: board.ModelFake}, logger)
	test.That(t, err, test.ShouldBeNil)
	defer b.Close(ctx)

	s, err := NewServo(ctx, b, &Config{Pin: "18"}, logger)
	test.That(t, err, test.ShouldBeNil)

	pin, err := b.GPIOPinByName("18")
	test.That(t, err, test.ShouldBeNil)
	freq, err := pin.PWMFreq(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, freq, test.ShouldEqual, uint(50))

	pos, err := s.Position(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldEqual, uint32(0))

	test.That(t, s.Move(ctx, 90), test.ShouldBeNil)
	duty, err := pin.PWM(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, duty, test.ShouldAlmostEqual, (497+90*(2238.0-497)/180)/1e6*50)
	pos, err = s.Position(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos, test.ShouldEqual, uint32(90))

	t.Run("out of range angles clamp", func(t *testing.T) {
		test.That(t, s.Move(ctx, 200), test.ShouldBeNil)
		pos, err := s.Position(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, pos, test.ShouldEqual, uint32(180))
	})

	t.Run("stop", func(t *testing.T) {
		test.That(t, s.Stop(ctx), test.ShouldBeNil)
		duty, err := pin.PWM(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, duty, test.ShouldEqual, 0.0)
	})
}

func TestDutyCycleMapping(t *testing.T) {
	for _, deg := range []float64{0, 17, 45, 90, 133, 180} {
		pct := mapDegToDutyCylePct(500, 2500, 0, 180, deg, 50)
		test.That(t, mapDutyCylePctToDeg(500, 2500, 0, 180, pct, 50), test.ShouldEqual, deg)
	}
	test.That(t, mapDegToDutyCylePct(500, 2500, 0, 180, 0, 50), test.ShouldAlmostEqual, 0.025)
	test.That(t, mapDegToDutyCylePct(500, 2500, 0, 180, 180, 50), test.ShouldAlmostEqual, 0.125)
}
