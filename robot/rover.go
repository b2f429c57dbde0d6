// Package robot ties the scanner, the motion controller and the reporters into a rover driven
// one command character at a time.
package robot

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/roverworks/navcore/control"
	"github.com/roverworks/navcore/events"
	"github.com/roverworks/navcore/logging"
	"github.com/roverworks/navcore/operation"
	"github.com/roverworks/navcore/perception"
	"github.com/roverworks/navcore/report"
)

// Commands understood by Dispatch.
const (
	KeyScan            = 'e'
	KeyForwardHalf     = 'w'
	KeyForwardFull     = 'W'
	KeyLeft45          = 'a'
	KeyLeftHeading     = 'A'
	KeyRight45         = 'd'
	KeyRightHeading    = 'D'
	KeyBack            = 's'
	KeyAlignToTape     = 'p'
	KeyCalibrateWheels = 'c'
	KeyExit            = 'X'
)

const (
	pollInterval      = 10 * time.Millisecond
	backupCM          = 5.0
	quarterTurnDeg    = 45.0
	aboutFaceDeg      = 180.0
	scanStart         = 0
	scanEnd           = 180
	forwardHeadingDeg = perception.Heading
)

// ErrExit is returned by Dispatch when the exit command is received.
var ErrExit = errors.New("exit requested")

// A Scanner sweeps the scanning head and segments what it saw.
type Scanner interface {
	ScanDetailed(ctx context.Context, start, end int) (perception.ObjectList, perception.Profile, error)
}

// Motion is what the rover needs from a motion controller.
type Motion interface {
	MoveForward(ctx context.Context, cm float64) (float64, error)
	MoveBackward(ctx context.Context, cm float64) (float64, error)
	TurnClockwise(ctx context.Context, deg float64) (float64, error)
	TurnCounterClockwise(ctx context.Context, deg float64) (float64, error)
	CalibrateWheels(ctx context.Context) (control.WheelPowers, error)
	AlignToTape(ctx context.Context) error
	Stop(ctx context.Context) error
}

// A Rover keeps a position estimate relative to its last scan: the clear path left ahead and
// the heading, where 90 faces the scanned direction.
type Rover struct {
	mu      sync.Mutex
	budget  float64
	heading int

	scanner  Scanner
	motion   Motion
	geometry perception.Geometry
	reporter report.Reporter
	clk      clock.Clock
	logger   logging.Logger

	closers []func(context.Context) error
}

// NewRover returns a rover facing forward with no clear path until its first scan. A nil clock
// means the wall clock.
func NewRover(
	sc Scanner,
	motion Motion,
	geometry perception.Geometry,
	reporter report.Reporter,
	clk clock.Clock,
	logger logging.Logger,
) *Rover {
	if clk == nil {
		clk = clock.New()
	}
	return &Rover{
		heading:  forwardHeadingDeg,
		scanner:  sc,
		motion:   motion,
		geometry: geometry.WithDefaults(),
		reporter: reporter,
		clk:      clk,
		logger:   logger,
	}
}

// Position returns the current position estimate.
func (r *Rover) Position() report.Position {
	r.mu.Lock()
	defer r.mu.Unlock()
	return report.Position{BudgetCM: r.budget, HeadingDeg: r.heading}
}

func (r *Rover) move(traveledCM float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.budget -= traveledCM
}

func (r *Rover) turn(deltaDeg float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.heading += int(math.Round(deltaDeg))
}

// Dispatch runs the command for key and then reports the new position. Unknown keys are
// ignored. The exit command stops the wheels and returns ErrExit.
func (r *Rover) Dispatch(ctx context.Context, key byte) error {
	ctx, done := operation.Create(ctx, string(key))
	defer done()
	r.logger.CDebugf(ctx, "dispatching %q as operation %s", key, operation.Get(ctx).ID)

	if err := r.dispatch(ctx, key); err != nil {
		return err
	}
	return r.reporter.ReportPosition(ctx, r.Position())
}

func (r *Rover) dispatch(ctx context.Context, key byte) error {
	switch key {
	case KeyScan:
		return r.Scan(ctx)
	case KeyForwardHalf, KeyForwardFull:
		pos := r.Position()
		if pos.HeadingDeg != forwardHeadingDeg {
			r.logger.CInfof(ctx, "not facing the scanned direction (heading %d), scan or turn back first", pos.HeadingDeg)
			return nil
		}
		distance := pos.BudgetCM
		if key == KeyForwardHalf {
			distance /= 2
		}
		traveled, err := r.motion.MoveForward(ctx, distance)
		r.move(traveled)
		return err
	case KeyLeft45, KeyLeftHeading:
		deg := quarterTurnDeg
		if key == KeyLeftHeading {
			deg = float64(r.Position().HeadingDeg)
		}
		turned, err := r.motion.TurnCounterClockwise(ctx, deg)
		r.turn(turned)
		return err
	case KeyRight45, KeyRightHeading:
		deg := quarterTurnDeg
		if key == KeyRightHeading {
			deg = float64(r.Position().HeadingDeg)
		}
		turned, err := r.motion.TurnClockwise(ctx, deg)
		r.turn(-turned)
		return err
	case KeyBack:
		traveled, err := r.motion.MoveBackward(ctx, backupCM)
		r.move(traveled)
		return err
	case KeyAlignToTape:
		if err := r.motion.AlignToTape(ctx); err != nil {
			return err
		}
		if _, err := r.motion.TurnCounterClockwise(ctx, aboutFaceDeg); err != nil {
			return err
		}
		r.logger.CInfof(ctx, "perpendicular to the boundary, facing inward")
		return nil
	case KeyCalibrateWheels:
		_, err := r.motion.CalibrateWheels(ctx)
		return err
	case KeyExit:
		return multierr.Combine(r.motion.Stop(ctx), ErrExit)
	case control.ManualStop:
		return nil
	default:
		r.logger.CDebugf(ctx, "ignoring unknown command %q", key)
		return nil
	}
}

// Scan sweeps the full range, reports objects and gaps and resets the position estimate to the
// clear path straight ahead.
func (r *Rover) Scan(ctx context.Context) error {
	objects, profile, err := r.scanner.ScanDetailed(ctx, scanStart, scanEnd)
	if err != nil {
		return errors.Wrap(err, "scan failed")
	}
	scan := report.Scan{
		Time:      r.clk.Now(),
		Start:     scanStart,
		End:       scanEnd,
		Profile:   profile,
		Objects:   objects,
		Gaps:      perception.AnalyzeGaps(objects),
		Clearance: perception.Clearance(objects, r.geometry),

		RoverWidthCM: 2 * r.geometry.WithDefaults().HalfWidthCM,
	}

	r.mu.Lock()
	r.budget, r.heading = scan.Clearance, forwardHeadingDeg
	r.mu.Unlock()

	r.logger.CInfof(ctx, "scan found %d objects, %.1fcm clear ahead", objects.Len(), scan.Clearance)
	return r.reporter.ReportScan(ctx, scan)
}

// Run dispatches every command posted to commands until ctx ends or the exit command arrives.
// A command that fails is logged and the loop carries on.
func (r *Rover) Run(ctx context.Context, commands *events.Signal) error {
	if err := r.reporter.ReportPosition(ctx, r.Position()); err != nil {
		r.logger.CWarnw(ctx, "cannot report position", "error", err)
	}
	ticker := r.clk.Ticker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		key, ok := commands.Take()
		if !ok {
			continue
		}
		err := r.Dispatch(ctx, key)
		switch {
		case err == nil:
		case errors.Is(err, ErrExit):
			r.logger.CInfof(ctx, "exiting")
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			r.logger.CWarnw(ctx, "command failed", "command", string(key), "error", err)
		}
	}
}

// Close stops the wheels and releases everything the rover was built from.
func (r *Rover) Close(ctx context.Context) error {
	err := r.motion.Stop(ctx)
	for i := len(r.closers) - 1; i >= 0; i-- {
		err = multierr.Combine(err, r.closers[i](ctx))
	}
	return multierr.Combine(err, r.reporter.Close(ctx))
}
