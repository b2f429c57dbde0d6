package robot

import (
	"context"

	"github.com/pkg/errors"

	fakeboard "github.com/roverworks/navcore/components/board/fake"
	"github.com/roverworks/navcore/components/servo"
	"github.com/roverworks/navcore/components/sensor/ir"
	"github.com/roverworks/navcore/components/sensor/ultrasonic"
	"github.com/roverworks/navcore/config"
)

// echoLeading is where simulated echoes start on the capture counter, far from its wrap.
const echoLeading = 0x1000

// An Obstacle is a post covering a range of scanner angles at a fixed distance.
type Obstacle struct {
	StartAngle int
	EndAngle   int
	DistanceCM float64
}

// A World is what the simulated sensors see around the scanner. It does not move with the
// rover.
type World struct {
	Obstacles []Obstacle
	WallCM    float64
}

// DefaultWorld has one post in each clearance sector in front of a distant wall.
func DefaultWorld() World {
	return World{
		Obstacles: []Obstacle{
			{StartAngle: 40, EndAngle: 50, DistanceCM: 30},
			{StartAngle: 85, EndAngle: 95, DistanceCM: 35},
			{StartAngle: 120, EndAngle: 135, DistanceCM: 40},
		},
		WallCM: 120,
	}
}

// DistanceAt returns the distance seen with the scanner at angle.
func (w World) DistanceAt(angle int) float64 {
	for _, o := range w.Obstacles {
		if angle >= o.StartAngle && angle <= o.EndAngle {
			return o.DistanceCM
		}
	}
	return w.WallCM
}

// InstallWorld drives the fake board's IR analog and ultrasonic echo from w, looking in the
// direction the servo points.
func InstallWorld(ctx context.Context, b *fakeboard.Board, conf *config.Config, sv servo.Servo, curve ir.Curve, w World) error {
	analog, ok := b.Analogs[conf.Scanner.IR.Analog]
	if !ok {
		return errors.Errorf("fake board has no analog %q", conf.Scanner.IR.Analog)
	}
	angle := func() int {
		pos, err := sv.Position(ctx)
		if err != nil {
			return 0
		}
		return int(pos)
	}
	analog.SetSource(func() int {
		return curve.Raw(w.DistanceAt(angle()))
	})
	return b.SimulateEcho(conf.Ranging.TriggerPin, conf.Ranging.EchoInterrupt, func() (uint32, uint32, bool) {
		return echoLeading, echoLeading + ultrasonic.CentimetersToTicks(w.DistanceAt(angle())), true
	})
}
