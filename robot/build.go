package robot

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/roverworks/navcore/components/base"
	fakebase "github.com/roverworks/navcore/components/base/fake"
	"github.com/roverworks/navcore/components/base/oi"
	"github.com/roverworks/navcore/components/board"
	fakeboard "github.com/roverworks/navcore/components/board/fake"
	"github.com/roverworks/navcore/components/board/periph"
	"github.com/roverworks/navcore/components/scanner"
	servogpio "github.com/roverworks/navcore/components/servo/gpio"
	"github.com/roverworks/navcore/components/sensor/ir"
	"github.com/roverworks/navcore/components/sensor/ultrasonic"
	"github.com/roverworks/navcore/config"
	"github.com/roverworks/navcore/control"
	"github.com/roverworks/navcore/events"
	"github.com/roverworks/navcore/hazard"
	"github.com/roverworks/navcore/logging"
	"github.com/roverworks/navcore/perception"
	"github.com/roverworks/navcore/report"
)

// New builds a rover from conf. On a fake board the sensors are driven by DefaultWorld.
// commands carries the manual stop into running motion primitives and may be nil.
func New(
	ctx context.Context,
	conf *config.Config,
	commands *events.Signal,
	reporter report.Reporter,
	clk clock.Clock,
	logger logging.Logger,
) (r *Rover, err error) {
	if clk == nil {
		clk = clock.New()
	}
	var closers []func(context.Context) error
	defer func() {
		if err == nil {
			return
		}
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Combine(err, closers[i](ctx))
		}
	}()

	b, err := newBoard(ctx, &conf.Board, logger.Sublogger("board"))
	if err != nil {
		return nil, err
	}
	closers = append(closers, b.Close)

	drive, err := newDrivetrain(ctx, &conf.Drivetrain, clk, logger.Sublogger("drivetrain"))
	if err != nil {
		return nil, err
	}
	closers = append(closers, drive.Close)

	sv, err := servogpio.NewServo(ctx, b, &conf.Scanner.Servo, logger.Sublogger("servo"))
	if err != nil {
		return nil, errors.Wrap(err, "cannot build scanner servo")
	}
	prox, err := ir.NewSensor(b, &conf.Scanner.IR, logger.Sublogger("ir"))
	if err != nil {
		return nil, err
	}
	if fb, ok := b.(*fakeboard.Board); ok {
		if err := InstallWorld(ctx, fb, conf, sv, prox.Curve(), DefaultWorld()); err != nil {
			return nil, err
		}
	}
	ranger, err := ultrasonic.NewSensor(ctx, "ranging", b, &conf.Ranging, clk, logger.Sublogger("ranging"))
	if err != nil {
		return nil, err
	}
	closers = append(closers, ranger.Close)

	segmenter := perception.NewSegmenter(conf.Segmentation, logger.Sublogger("segmenter"))
	sc := scanner.NewScanner(sv, prox, ranger, segmenter, conf.Scanner.Timings(), clk, logger.Sublogger("scanner"))
	closers = append(closers, sc.Stop)

	monitor := hazard.NewMonitor(conf.Hazard.Thresholds(), logger.Sublogger("hazard"))
	motion := control.NewMotionController(drive, monitor, commands, &conf.Motion, clk, logger.Sublogger("motion"))

	r = NewRover(sc, motion, conf.Clearance, reporter, clk, logger)
	r.closers = closers
	return r, nil
}

func newBoard(ctx context.Context, conf *board.Config, logger logging.Logger) (board.Board, error) {
	switch conf.Model {
	case board.ModelFake:
		return fakeboard.NewBoard(ctx, conf, logger)
	case board.ModelPeriph:
		return periph.NewBoard(ctx, conf, logger)
	default:
		return nil, errors.Errorf("unknown board model %q", conf.Model)
	}
}

func newDrivetrain(ctx context.Context, conf *base.Config, clk clock.Clock, logger logging.Logger) (base.Drivetrain, error) {
	switch conf.Model {
	case base.ModelFake:
		return fakebase.NewDrivetrain(conf, clk, logger), nil
	case base.ModelOI:
		return oi.NewDrivetrain(ctx, conf, logger)
	default:
		return nil, errors.Errorf("unknown drivetrain model %q", conf.Model)
	}
}
