package control

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/roverworks/navcore/components/base"
	"github.com/roverworks/navcore/events"
	"github.com/roverworks/navcore/hazard"
	"github.com/roverworks/navcore/logging"
	"github.com/roverworks/navcore/operation"
	"github.com/roverworks/navcore/utils"
)

// ManualStop is the console byte that aborts a running primitive.
const ManualStop = ' '

// ErrTapeNotFound is returned by AlignToTape when both side sensors never read tape together.
var ErrTapeNotFound = errors.New("boundary tape not found")

var errManualStop = errors.New("manual stop")

// A MotionController runs closed-loop drive primitives on a drivetrain. Each primitive nudges one
// wheel by a unit of power whenever the accumulated drift leaves its deadband, and the corrected
// power carries over to the next primitive of the same family.
type MotionController struct {
	mu     sync.Mutex
	powers WheelPowers
	s      settings

	drive   base.Drivetrain
	monitor *hazard.Monitor
	stop    *events.Signal
	clk     clock.Clock
	opMgr   operation.SingleOperationManager
	logger  logging.Logger
}

// NewMotionController returns a controller for drive. stop may be nil when there is no console
// to interrupt from; a nil clock means the wall clock.
func NewMotionController(
	drive base.Drivetrain,
	monitor *hazard.Monitor,
	stop *events.Signal,
	conf *Config,
	clk clock.Clock,
	logger logging.Logger,
) *MotionController {
	if clk == nil {
		clk = clock.New()
	}
	return &MotionController{
		powers:  conf.initialPowers(),
		s:       conf.settings(),
		drive:   drive,
		monitor: monitor,
		stop:    stop,
		clk:     clk,
		logger:  logger,
	}
}

// Powers returns the current corrected wheel powers.
func (mc *MotionController) Powers() WheelPowers {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.powers
}

// SetPowers replaces the corrected wheel powers, e.g. with ones saved from a calibration.
func (mc *MotionController) SetPowers(p WheelPowers) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.powers = p
}

func (mc *MotionController) adjust(power *int, delta int) int {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	*power = base.ClampPower(*power + delta)
	return *power
}

func (mc *MotionController) begin(ctx context.Context, op string) (context.Context, func()) {
	ctx, done := mc.opMgr.New(ctx)
	cancel := func() {}
	if mc.s.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, mc.s.timeout)
	}
	stopSlow := utils.SlowLogger(ctx, "waiting for motion to finish", "op", op, mc.logger)
	return ctx, func() {
		stopSlow()
		cancel()
		done()
	}
}

// halt commands (0, 0) even when ctx is already done and folds any failure into err.
func (mc *MotionController) halt(ctx context.Context, err error) error {
	if errors.Is(err, errManualStop) {
		err = nil
	}
	return multierr.Combine(err, mc.drive.SetWheelPower(context.WithoutCancel(ctx), 0, 0))
}

func (mc *MotionController) tick(ctx context.Context) (base.SensorFrame, hazard.Status, error) {
	if mc.s.tick > 0 {
		timer := mc.clk.Timer(mc.s.tick)
		select {
		case <-ctx.Done():
			timer.Stop()
			return base.SensorFrame{}, hazard.Clear, ctx.Err()
		case <-timer.C:
		}
	}
	frame, err := mc.drive.Update(ctx)
	if err != nil {
		return base.SensorFrame{}, hazard.Clear, errors.Wrap(err, "drivetrain update failed")
	}
	return frame, mc.monitor.Update(frame), nil
}

func (mc *MotionController) interrupted(ctx context.Context, op string) bool {
	if mc.stop == nil || !mc.stop.TakeIf(ManualStop) {
		return false
	}
	mc.logger.CInfof(ctx, "%s interrupted by manual stop", op)
	return true
}

// ignoreHazard logs, once per primitive, that a hazard did not stop a primitive other than
// forward.
func (mc *MotionController) ignoreHazard(ctx context.Context, op string, status hazard.Status, logged *bool) {
	if status == hazard.Clear || *logged {
		return
	}
	*logged = true
	mc.logger.CWarnw(ctx, "hazard does not stop this primitive, continuing", "op", op, "hazard", status.String())
}

// MoveForward drives straight ahead for cm centimeters, correcting the right wheel against heading
// drift. It stops early, without error, on any hazard or a manual stop. It returns the distance
// actually traveled in cm.
func (mc *MotionController) MoveForward(ctx context.Context, cm float64) (traveledCM float64, err error) {
	ctx, done := mc.begin(ctx, "forward")
	defer done()

	var traveled float64
	defer func() {
		traveledCM = traveled / 10
		err = mc.halt(ctx, err)
	}()

	heading := NewDeadband(mc.s.headingBand)
	for target := cm * 10; traveled < target; {
		frame, status, err := mc.tick(ctx)
		if err != nil {
			return 0, err
		}
		traveled += frame.DistanceMM
		if status != hazard.Clear {
			mc.logger.CInfof(ctx, "forward stopped by %s after %.1fcm", status, traveled/10)
			return 0, nil
		}
		if mc.interrupted(ctx, "forward") {
			return 0, errManualStop
		}
		// veering left raises the heading; slow the right wheel
		right := mc.adjust(&mc.powers.ForwardRight, -heading.Next(frame.AngleDeg))
		if err := mc.drive.SetWheelPower(ctx, mc.s.forwardLeft, right); err != nil {
			return 0, errors.Wrap(err, "forward")
		}
		if err := ctx.Err(); err != nil {
			return 0, errors.Wrap(err, "forward")
		}
	}
	return 0, nil
}

// MoveBackward reverses for cm centimeters with the forward family's powers. Hazards are logged
// but do not stop it. It returns the signed distance traveled in cm, negative when reversing.
func (mc *MotionController) MoveBackward(ctx context.Context, cm float64) (traveledCM float64, err error) {
	ctx, done := mc.begin(ctx, "backward")
	defer done()

	var traveled float64
	defer func() {
		traveledCM = traveled / 10
		err = mc.halt(ctx, err)
	}()

	heading := NewDeadband(mc.s.headingBand)
	var logged bool
	for target := cm * 10; math.Abs(traveled) < target; {
		frame, status, err := mc.tick(ctx)
		if err != nil {
			return 0, err
		}
		traveled += frame.DistanceMM
		mc.ignoreHazard(ctx, "backward", status, &logged)
		if mc.interrupted(ctx, "backward") {
			return 0, errManualStop
		}
		right := mc.adjust(&mc.powers.ForwardRight, heading.Next(frame.AngleDeg))
		if err := mc.drive.SetWheelPower(ctx, -mc.s.forwardLeft, -right); err != nil {
			return 0, errors.Wrap(err, "backward")
		}
		if err := ctx.Err(); err != nil {
			return 0, errors.Wrap(err, "backward")
		}
	}
	return 0, nil
}

// TurnClockwise pivots clockwise by deg degrees, correcting the left wheel so the rover turns on
// the spot. It returns the magnitude of the angle turned.
func (mc *MotionController) TurnClockwise(ctx context.Context, deg float64) (turnedDeg float64, err error) {
	ctx, done := mc.begin(ctx, "clockwise")
	defer done()

	var turned float64
	defer func() {
		turnedDeg = math.Abs(turned)
		err = mc.halt(ctx, err)
	}()

	lateral := NewDeadband(mc.s.distanceBand)
	var logged bool
	for target := deg - mc.s.overshoot; math.Abs(turned) < target; {
		if mc.interrupted(ctx, "clockwise turn") {
			return 0, errManualStop
		}
		frame, status, err := mc.tick(ctx)
		if err != nil {
			return 0, err
		}
		turned += frame.AngleDeg
		mc.ignoreHazard(ctx, "clockwise", status, &logged)
		left := mc.adjust(&mc.powers.ClockwiseLeft, -lateral.Next(frame.DistanceMM))
		if err := mc.drive.SetWheelPower(ctx, left, mc.s.clockwiseRight); err != nil {
			return 0, errors.Wrap(err, "clockwise")
		}
		if err := ctx.Err(); err != nil {
			return 0, errors.Wrap(err, "clockwise")
		}
	}
	return 0, nil
}

// TurnCounterClockwise pivots counter-clockwise by deg degrees, correcting the right wheel. It
// returns the angle turned.
func (mc *MotionController) TurnCounterClockwise(ctx context.Context, deg float64) (turnedDeg float64, err error) {
	ctx, done := mc.begin(ctx, "counter-clockwise")
	defer done()

	var turned float64
	defer func() {
		turnedDeg = turned
		err = mc.halt(ctx, err)
	}()

	lateral := NewDeadband(mc.s.distanceBand)
	var logged bool
	for target := deg - mc.s.overshoot; turned < target; {
		if mc.interrupted(ctx, "counter-clockwise turn") {
			return 0, errManualStop
		}
		frame, status, err := mc.tick(ctx)
		if err != nil {
			return 0, err
		}
		turned += frame.AngleDeg
		mc.ignoreHazard(ctx, "counter-clockwise", status, &logged)
		right := mc.adjust(&mc.powers.CounterClockwiseRight, -lateral.Next(frame.DistanceMM))
		if err := mc.drive.SetWheelPower(ctx, mc.s.counterClockwiseLeft, right); err != nil {
			return 0, errors.Wrap(err, "counter-clockwise")
		}
		if err := ctx.Err(); err != nil {
			return 0, errors.Wrap(err, "counter-clockwise")
		}
	}
	return 0, nil
}

// CalibrateWheels settles every family's powers by driving forward 150cm and turning a full
// circle each way. It can run with the rover on a treadmill.
func (mc *MotionController) CalibrateWheels(ctx context.Context) (WheelPowers, error) {
	ctx, done := mc.opMgr.New(ctx)
	defer done()

	steps := []struct {
		name string
		run  func(context.Context, float64) (float64, error)
		arg  float64
	}{
		{"forward", mc.MoveForward, 150},
		{"clockwise", mc.TurnClockwise, 180},
		{"clockwise", mc.TurnClockwise, 180},
		{"counter-clockwise", mc.TurnCounterClockwise, 180},
		{"counter-clockwise", mc.TurnCounterClockwise, 180},
	}
	for _, step := range steps {
		if _, err := step.run(ctx, step.arg); err != nil {
			return mc.Powers(), errors.Wrapf(err, "calibration %s", step.name)
		}
	}
	p := mc.Powers()
	mc.logger.CInfof(ctx, "wheels calibrated: forward right %d, clockwise left %d, counter-clockwise right %d",
		p.ForwardRight, p.ClockwiseLeft, p.CounterClockwiseRight)
	return p, nil
}

// WheelAngle converts a target seen by the scanner at scannerAngle and distanceCM into the angle
// of the same target about the wheel axis, which sits offsetCM behind the scanner. A target with
// no distance keeps the scanner angle.
func WheelAngle(scannerAngle int, distanceCM, offsetCM float64) float64 {
	if distanceCM <= 0 {
		return float64(scannerAngle)
	}
	rad := utils.DegToRad(float64(scannerAngle))
	x := distanceCM * math.Cos(rad)
	y := distanceCM*math.Sin(rad) + offsetCM
	return utils.RadToDeg(math.Atan2(y, x))
}

// TurnToScannerAngle turns the rover to face a target the scanner saw at angle and distance.
// Angles above 90 turn counter-clockwise and below 90 clockwise. It returns the heading change,
// positive counter-clockwise.
func (mc *MotionController) TurnToScannerAngle(ctx context.Context, angle int, distance float64) (float64, error) {
	target := math.Round(WheelAngle(angle, distance, mc.s.scannerOffset))
	switch {
	case target > 90:
		return mc.TurnCounterClockwise(ctx, target-90)
	case target < 90:
		turned, err := mc.TurnClockwise(ctx, 90-target)
		return -turned, err
	default:
		return 0, mc.drive.SetWheelPower(ctx, 0, 0)
	}
}

// AlignToTape squares the rover up against the boundary tape by crawling whichever wheel's side
// sensor is off the tape, then backs off. It gives up with ErrTapeNotFound after the configured
// number of attempts.
func (mc *MotionController) AlignToTape(ctx context.Context) (err error) {
	ctx, done := mc.opMgr.New(ctx)
	defer done()
	defer func() {
		err = mc.halt(ctx, err)
	}()

	for attempt := 1; attempt <= mc.s.maxAttempts; attempt++ {
		_, status, err := mc.tick(ctx)
		if err != nil {
			return err
		}
		if status.Has(hazard.TapeLeft | hazard.TapeRight) {
			mc.logger.CInfof(ctx, "square to tape after %d attempts", attempt)
			if err := mc.drive.SetWheelPower(ctx, 0, 0); err != nil {
				return err
			}
			_, err := mc.MoveBackward(ctx, mc.s.backoffCM)
			return err
		}

		if !status.Has(hazard.TapeLeft) {
			err = mc.crawl(ctx, hazard.TapeLeft, mc.s.crawlPower, 0)
		} else {
			err = mc.crawl(ctx, hazard.TapeRight, 0, mc.s.crawlPower)
		}
		if err != nil {
			return err
		}
	}
	return errors.Wrapf(ErrTapeNotFound, "after %d attempts", mc.s.maxAttempts)
}

// crawl drives one wheel until bit is set or the crawl budget runs out.
func (mc *MotionController) crawl(ctx context.Context, bit hazard.Status, left, right int) error {
	if err := mc.drive.SetWheelPower(ctx, left, right); err != nil {
		return err
	}
	for i := 0; i < mc.s.crawlTicks; i++ {
		if mc.interrupted(ctx, "tape alignment") {
			return errManualStop
		}
		_, status, err := mc.tick(ctx)
		if err != nil {
			return err
		}
		if status.Has(bit) {
			break
		}
	}
	return mc.drive.SetWheelPower(ctx, 0, 0)
}

// Stop cancels the running primitive and stops the wheels.
func (mc *MotionController) Stop(ctx context.Context) error {
	if mc.Moving() {
		mc.logger.CInfof(ctx, "stopping the running primitive")
	}
	mc.opMgr.CancelRunning(ctx)
	return mc.drive.SetWheelPower(ctx, 0, 0)
}

// Moving reports whether a primitive is running.
func (mc *MotionController) Moving() bool {
	return mc.opMgr.OpRunning()
}

// TickInterval returns how long the loop waits between drivetrain updates.
func (mc *MotionController) TickInterval() time.Duration {
	return mc.s.tick
}
