package fake

import (
	"context"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/roverworks/navcore/components/board"
	"github.com/roverworks/navcore/logging"
)

func newTestBoard(t *testing.T) *Board {
	t.Helper()
	logger := logging.NewTestLogger(t)
	b, err := NewBoard(context.Background(), &board.Config{
		Model:   board.ModelFake,
		Analogs: []board.AnalogConfig{{Name: "ir", Channel: 0}},
		DigitalInterrupts: []board.DigitalInterruptConfig{
			{Name: "echo", Pin: "24"},
		},
	}, logger)
	test.That(t, err, test.ShouldBeNil)
	return b
}

func TestFakeBoard(t *testing.T) {
	b := newTestBoard(t)
	defer b.Close(context.Background())

	_, err := b.AnalogByName("ir")
	test.That(t, err, test.ShouldBeNil)
	_, err = b.AnalogByName("nope")
	test.That(t, err, test.ShouldNotBeNil)

	_, err = b.DigitalInterruptByName("echo")
	test.That(t, err, test.ShouldBeNil)
	_, err = b.DigitalInterruptByName("nope")
	test.That(t, err, test.ShouldNotBeNil)

	p1, err := b.GPIOPinByName("23")
	test.That(t, err, test.ShouldBeNil)
	p2, err := b.GPIOPinByName("23")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p1, test.ShouldEqual, p2)
}

func TestDuplicateInterrupt(t *testing.T) {
	logger := logging.NewTestLogger(t)
	_, err := NewBoard(context.Background(), &board.Config{
		Model: board.ModelFake,
		DigitalInterrupts: []board.DigitalInterruptConfig{
			{Name: "echo", Pin: "24"},
			{Name: "echo", Pin: "25"},
		},
	}, logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestAnalog(t *testing.T) {
	b := newTestBoard(t)
	defer b.Close(context.Background())

	b.Analogs["ir"].Set(1234)
	a, err := b.AnalogByName("ir")
	test.That(t, err, test.ShouldBeNil)
	v, err := a.Read(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v.Value, test.ShouldEqual, 1234)

	b.Analogs["ir"].SetSource(func() int { return 77 })
	v, err = a.Read(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v.Value, test.ShouldEqual, 77)
}

func TestSimulateEcho(t *testing.T) {
	b := newTestBoard(t)
	defer b.Close(context.Background())

	test.That(t, b.SimulateEcho("23", "nope", FixedEcho(1, 2)), test.ShouldNotBeNil)
	test.That(t, b.SimulateEcho("23", "echo", FixedEcho(65000, 100)), test.ShouldBeNil)

	di, err := b.DigitalInterruptByName("echo")
	test.That(t, err, test.ShouldBeNil)
	ticks := make(chan board.Tick)
	di.AddCallback(ticks)
	defer di.RemoveCallback(ticks)

	pin, err := b.GPIOPinByName("23")
	test.That(t, err, test.ShouldBeNil)
	ctx := context.Background()
	// a low write without a preceding high is not a falling edge
	test.That(t, pin.Set(ctx, false), test.ShouldBeNil)
	test.That(t, pin.Set(ctx, true), test.ShouldBeNil)
	test.That(t, pin.Set(ctx, false), test.ShouldBeNil)

	var got []board.Tick
	for len(got) < 2 {
		select {
		case tick := <-ticks:
			got = append(got, tick)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for echo ticks")
		}
	}
	test.That(t, got, test.ShouldResemble, []board.Tick{
		{Name: "echo", High: true, Counter: 65000},
		{Name: "echo", High: false, Counter: 100},
	})

	v, err := di.Value(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, int64(2))
}

func TestGPIOPin(t *testing.T) {
	ctx := context.Background()
	pin := &GPIOPin{}
	test.That(t, pin.SetPWMFreq(ctx, 50), test.ShouldBeNil)
	test.That(t, pin.SetPWM(ctx, 0.075), test.ShouldBeNil)
	duty, err := pin.PWM(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, duty, test.ShouldEqual, 0.075)
	freq, err := pin.PWMFreq(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, freq, test.ShouldEqual, uint(50))

	test.That(t, pin.Set(ctx, true), test.ShouldBeNil)
	high, err := pin.Get(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, high, test.ShouldBeTrue)
	duty, _ = pin.PWM(ctx)
	test.That(t, duty, test.ShouldEqual, 0.0)
}
