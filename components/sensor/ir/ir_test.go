package ir

import (
	"context"
	"math"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/roverworks/navcore/components/board"
	"github.com/roverworks/navcore/logging"
	"github.com/roverworks/navcore/testutils/inject"
)

func TestValidate(t *testing.T) {
	conf := &Config{}
	err := conf.Validate("scanner.ir")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "analog")

	conf.Analog = "ir"
	test.That(t, conf.Validate("scanner.ir"), test.ShouldBeNil)

	conf.CurveP = 1
	test.That(t, conf.Validate("scanner.ir"), test.ShouldNotBeNil)
	conf.CurveP = -2
	conf.CurveK = -1
	test.That(t, conf.Validate("scanner.ir"), test.ShouldNotBeNil)
}

func TestCurve(t *testing.T) {
	c := Curve{K: DefaultCurveK, P: DefaultCurveP, MaxDistanceCM: DefaultMaxDistanceCM}

	test.That(t, c.Distance(1000), test.ShouldAlmostEqual, 2e8*math.Pow(1000, -2.122))
	test.That(t, c.Distance(0), test.ShouldEqual, DefaultMaxDistanceCM)
	test.That(t, c.Distance(-5), test.ShouldEqual, DefaultMaxDistanceCM)
	// a very weak reflection is beyond the sensor's range
	test.That(t, c.Distance(10), test.ShouldEqual, DefaultMaxDistanceCM)

	// distance falls as reflectance rises
	prev := c.Distance(500)
	for raw := 600; raw <= 4000; raw += 100 {
		d := c.Distance(raw)
		test.That(t, d, test.ShouldBeLessThan, prev)
		prev = d
	}

	for _, cm := range []float64{15, 30, 60, 120} {
		test.That(t, c.Distance(c.Raw(cm)), test.ShouldAlmostEqual, cm, 0.2)
	}
	test.That(t, c.Raw(0), test.ShouldEqual, 0)
}

func TestSensor(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)

	a := &inject.Analog{}
	a.ReadFunc = func(ctx context.Context) (board.AnalogValue, error) {
		return board.AnalogValue{Value: 1000}, nil
	}
	b := &inject.Board{}
	b.AnalogByNameFunc = func(name string) (board.Analog, error) {
		if name != "ir" {
			return nil, errors.New("no such analog")
		}
		return a, nil
	}

	_, err := NewSensor(b, &Config{Analog: "nope"}, logger)
	test.That(t, err, test.ShouldNotBeNil)

	s, err := NewSensor(b, &Config{Analog: "ir"}, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s.Curve().K, test.ShouldEqual, DefaultCurveK)

	raw, err := s.Sample(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, raw, test.ShouldEqual, 1000)
	test.That(t, a.ReadCap(), test.ShouldNotBeNil)

	readings, err := s.Readings(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, readings["raw"], test.ShouldEqual, 1000)
	test.That(t, readings["distance_cm"], test.ShouldAlmostEqual, s.Curve().Distance(1000))

	a.ReadFunc = func(ctx context.Context) (board.AnalogValue, error) {
		return board.AnalogValue{}, errors.New("bus error")
	}
	_, err = s.Sample(ctx)
	test.That(t, err, test.ShouldNotBeNil)
}
