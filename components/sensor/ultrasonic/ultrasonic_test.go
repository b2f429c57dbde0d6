package ultrasonic_test

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/roverworks/navcore/components/board"
	"github.com/roverworks/navcore/components/board/fake"
	"github.com/roverworks/navcore/components/sensor/ultrasonic"
	"github.com/roverworks/navcore/logging"
	"github.com/roverworks/navcore/testutils/inject"
)

const (
	triggerPin    = "23"
	echoInterrupt = "echo"
)

func newFakeBoard(t *testing.T) *fake.Board {
	t.Helper()
	b, err := fake.NewBoard(context.Background(), &board.Config{
		Model:             board.ModelFake,
		DigitalInterrupts: []board.DigitalInterruptConfig{{Name: echoInterrupt, Pin: "24"}},
	}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return b
}

func TestValidate(t *testing.T) {
	conf := &ultrasonic.Config{}
	err := conf.Validate("ranging")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "trigger_pin")

	conf.TriggerPin = triggerPin
	err = conf.Validate("ranging")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "echo_interrupt_pin")

	conf.EchoInterrupt = echoInterrupt
	test.That(t, conf.Validate("ranging"), test.ShouldBeNil)

	conf.SampleCount = -1
	test.That(t, conf.Validate("ranging"), test.ShouldNotBeNil)
}

func TestElapsedTicks(t *testing.T) {
	elapsed, wrapped := ultrasonic.ElapsedTicks(1000, 4000)
	test.That(t, wrapped, test.ShouldBeFalse)
	test.That(t, elapsed, test.ShouldEqual, uint32(3000))

	elapsed, wrapped = ultrasonic.ElapsedTicks(65000, 100)
	test.That(t, wrapped, test.ShouldBeTrue)
	test.That(t, elapsed, test.ShouldEqual, uint32((16777215-100)+65000))

	elapsed, wrapped = ultrasonic.ElapsedTicks(500, 500)
	test.That(t, wrapped, test.ShouldBeFalse)
	test.That(t, elapsed, test.ShouldEqual, uint32(0))
}

func TestTicksToCentimeters(t *testing.T) {
	// 1ms round trip is 17.15cm one way
	test.That(t, ultrasonic.TicksToCentimeters(16000), test.ShouldAlmostEqual, 17.15)
	test.That(t, ultrasonic.TicksToCentimeters(0), test.ShouldEqual, 0.0)
	test.That(t, ultrasonic.TicksToCentimeters(ultrasonic.CentimetersToTicks(42)), test.ShouldAlmostEqual, 42, 0.01)
}

func TestNewSensorErrors(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	b := &inject.Board{}
	b.DigitalInterruptByNameFunc = func(name string) (board.DigitalInterrupt, error) {
		return nil, errors.New("nope")
	}
	_, err := ultrasonic.NewSensor(ctx, "ping", b, &ultrasonic.Config{TriggerPin: triggerPin, EchoInterrupt: echoInterrupt}, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "digital interrupt")

	b.DigitalInterruptByNameFunc = func(name string) (board.DigitalInterrupt, error) {
		return &inject.DigitalInterrupt{}, nil
	}
	pin := &inject.GPIOPin{}
	pin.SetFunc = func(ctx context.Context, high bool) error {
		return errors.New("stuck")
	}
	b.GPIOPinByNameFunc = func(name string) (board.GPIOPin, error) {
		return pin, nil
	}
	_, err = ultrasonic.NewSensor(ctx, "ping", b, &ultrasonic.Config{TriggerPin: triggerPin, EchoInterrupt: echoInterrupt}, nil, logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "trigger pin")
	test.That(t, pin.SetCap()[1], test.ShouldEqual, false)
}

func TestMeasure(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	b := newFakeBoard(t)
	defer b.Close(ctx)

	s, err := ultrasonic.NewSensor(ctx, "ping", b,
		&ultrasonic.Config{TriggerPin: triggerPin, EchoInterrupt: echoInterrupt, TimeoutMs: 1000}, nil, logger)
	test.That(t, err, test.ShouldBeNil)
	defer s.Close(ctx)

	t.Run("plain echo", func(t *testing.T) {
		test.That(t, b.SimulateEcho(triggerPin, echoInterrupt, fake.FixedEcho(1000, 17000)), test.ShouldBeNil)
		m, err := s.Measure(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, m.Wrapped, test.ShouldBeFalse)
		test.That(t, m.Ticks, test.ShouldEqual, uint32(16000))
		test.That(t, m.DistanceCM, test.ShouldAlmostEqual, 17.15)
		test.That(t, s.Overflows(), test.ShouldEqual, uint64(0))
	})

	t.Run("wrapped echo", func(t *testing.T) {
		test.That(t, b.SimulateEcho(triggerPin, echoInterrupt, fake.FixedEcho(65000, 100)), test.ShouldBeNil)
		m, err := s.Measure(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, m.Wrapped, test.ShouldBeTrue)
		test.That(t, m.Ticks, test.ShouldEqual, uint32((16777215-100)+65000))
		test.That(t, s.Overflows(), test.ShouldEqual, uint64(1))
	})

	t.Run("edge counter resets between pings", func(t *testing.T) {
		test.That(t, b.SimulateEcho(triggerPin, echoInterrupt, fake.FixedEcho(0, 3200)), test.ShouldBeNil)
		for i := 0; i < 3; i++ {
			m, err := s.Measure(ctx)
			test.That(t, err, test.ShouldBeNil)
			test.That(t, m.Ticks, test.ShouldEqual, uint32(3200))
		}
	})
}

func TestMeasureTimeout(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	b := newFakeBoard(t)
	defer b.Close(ctx)

	mockClock := clock.NewMock()
	s, err := ultrasonic.NewSensor(ctx, "ping", b,
		&ultrasonic.Config{TriggerPin: triggerPin, EchoInterrupt: echoInterrupt, TimeoutMs: 50}, mockClock, logger)
	test.That(t, err, test.ShouldBeNil)
	defer s.Close(ctx)

	// no echo is simulated, so only the timeout can end the ping
	errCh := make(chan error, 1)
	go func() {
		_, err := s.Measure(ctx)
		errCh <- err
	}()

	for {
		select {
		case err := <-errCh:
			test.That(t, errors.Is(err, ultrasonic.ErrRangingTimeout), test.ShouldBeTrue)
			test.That(t, err.Error(), test.ShouldContainSubstring, "no echo")
			return
		case <-time.After(time.Millisecond):
			mockClock.Add(50 * time.Millisecond)
		}
	}
}

func TestMeasureBlocksUntilCancelled(t *testing.T) {
	logger := logging.NewTestLogger(t)
	b := newFakeBoard(t)
	defer b.Close(context.Background())

	s, err := ultrasonic.NewSensor(context.Background(), "ping", b,
		&ultrasonic.Config{TriggerPin: triggerPin, EchoInterrupt: echoInterrupt}, nil, logger)
	test.That(t, err, test.ShouldBeNil)
	defer s.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Measure(ctx)
	test.That(t, errors.Is(err, context.DeadlineExceeded), test.ShouldBeTrue)
}

func TestEstimateDistance(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	b := newFakeBoard(t)
	defer b.Close(ctx)

	counter := uint32(0)
	echoTicks := ultrasonic.CentimetersToTicks(35)
	test.That(t, b.SimulateEcho(triggerPin, echoInterrupt, func() (uint32, uint32, bool) {
		counter += 100000
		leading := counter & board.CounterMax
		return leading, leading + echoTicks, true
	}), test.ShouldBeNil)

	s, err := ultrasonic.NewSensor(ctx, "ping", b,
		&ultrasonic.Config{TriggerPin: triggerPin, EchoInterrupt: echoInterrupt, SampleCount: 4, SettleMs: 1, TimeoutMs: 1000}, nil, logger)
	test.That(t, err, test.ShouldBeNil)
	defer s.Close(ctx)

	first, err := s.EstimateDistance(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, first, test.ShouldAlmostEqual, 35, 0.01)

	second, err := s.EstimateDistance(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, second, test.ShouldAlmostEqual, first, 0.01)

	readings, err := s.Readings(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, readings["distance_cm"], test.ShouldAlmostEqual, 35, 0.01)
}
