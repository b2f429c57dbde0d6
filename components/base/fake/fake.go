// Package fake implements a simulated differential drivetrain with a configurable wheel bias and
// scriptable hazards.
package fake

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/roverworks/navcore/components/base"
	"github.com/roverworks/navcore/logging"
)

const (
	defaultWheelBaseMM = 235.
	defaultTick        = 15 * time.Millisecond
	defaultFloorSignal = 1500
)

// A WheelCommand is one SetWheelPower call as received.
type WheelCommand struct {
	Left, Right int
}

// State is the simulated pose and the last wheel command, handed to a HazardFunc every update.
type State struct {
	OdometerMM float64
	HeadingDeg float64
	Updates    int
	Left       int
	Right      int
}

// Hazards are the bump and cliff readings reported alongside odometry.
type Hazards struct {
	BumpLeft, BumpRight bool

	CliffLeft, CliffFrontLeft, CliffFrontRight, CliffRight uint16
}

// Floor returns hazards reading plain floor on every cliff sensor.
func Floor(signal uint16) Hazards {
	return Hazards{CliffLeft: signal, CliffFrontLeft: signal, CliffFrontRight: signal, CliffRight: signal}
}

// A HazardFunc decides what the hazard sensors read at the given state.
type HazardFunc func(s State) Hazards

// Drivetrain integrates wheel commands into odometry. Each Update advances simulated time by
// one tick; the left wheel runs (1 + bias) times its command.
type Drivetrain struct {
	mu sync.Mutex

	wheelBaseMM float64
	leftBias    float64
	tick        time.Duration
	realtime    bool
	clk         clock.Clock
	floor       uint16

	state    State
	commands []WheelCommand
	hazards  HazardFunc

	CloseCount int
	logger     logging.Logger
}

// NewDrivetrain returns a simulated drivetrain. A nil clock means the wall clock.
func NewDrivetrain(conf *base.Config, clk clock.Clock, logger logging.Logger) *Drivetrain {
	if clk == nil {
		clk = clock.New()
	}
	d := &Drivetrain{
		wheelBaseMM: conf.WheelBaseMM,
		leftBias:    conf.LeftBias,
		tick:        time.Duration(conf.TickMs) * time.Millisecond,
		realtime:    conf.RealtimeTick,
		clk:         clk,
		floor:       uint16(conf.FloorSignal),
		logger:      logger,
	}
	if d.wheelBaseMM == 0 {
		d.wheelBaseMM = defaultWheelBaseMM
	}
	if d.tick == 0 {
		d.tick = defaultTick
	}
	if d.floor == 0 {
		d.floor = defaultFloorSignal
	}
	return d
}

// SetHazardFunc replaces the hazard script. nil reads plain floor.
func (d *Drivetrain) SetHazardFunc(f HazardFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hazards = f
}

// SetHazards makes the hazard sensors read h until changed.
func (d *Drivetrain) SetHazards(h Hazards) {
	d.SetHazardFunc(func(State) Hazards { return h })
}

// SetWheelPower records the command and uses it for the following updates.
func (d *Drivetrain) SetWheelPower(ctx context.Context, left, right int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	left, right = base.ClampPower(left), base.ClampPower(right)
	d.commands = append(d.commands, WheelCommand{Left: left, Right: right})
	d.state.Left, d.state.Right = left, right
	return nil
}

// Update advances the simulation by one tick.
func (d *Drivetrain) Update(ctx context.Context) (base.SensorFrame, error) {
	if err := ctx.Err(); err != nil {
		return base.SensorFrame{}, err
	}
	if d.realtime {
		d.clk.Sleep(d.tick)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.CloseCount > 0 {
		return base.SensorFrame{}, errors.New("drivetrain is closed")
	}

	dt := d.tick.Seconds()
	vl := float64(d.state.Left) * (1 + d.leftBias)
	vr := float64(d.state.Right)
	distance := (vl + vr) / 2 * dt
	angle := (vr - vl) / d.wheelBaseMM * dt * 180 / math.Pi

	d.state.OdometerMM += distance
	d.state.HeadingDeg += angle
	d.state.Updates++

	h := Floor(d.floor)
	if d.hazards != nil {
		h = d.hazards(d.state)
	}
	return base.SensorFrame{
		DistanceMM:      distance,
		AngleDeg:        angle,
		BumpLeft:        h.BumpLeft,
		BumpRight:       h.BumpRight,
		CliffLeft:       h.CliffLeft,
		CliffFrontLeft:  h.CliffFrontLeft,
		CliffFrontRight: h.CliffFrontRight,
		CliffRight:      h.CliffRight,
	}, nil
}

// State returns the current simulated pose.
func (d *Drivetrain) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Commands returns every wheel command received so far.
func (d *Drivetrain) Commands() []WheelCommand {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]WheelCommand, len(d.commands))
	copy(out, d.commands)
	return out
}

// LastCommand returns the most recent wheel command, or false if none was sent.
func (d *Drivetrain) LastCommand() (WheelCommand, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.commands) == 0 {
		return WheelCommand{}, false
	}
	return d.commands[len(d.commands)-1], true
}

// Close stops the wheels.
func (d *Drivetrain) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Left, d.state.Right = 0, 0
	d.CloseCount++
	d.logger.Debugw("simulated drivetrain closed", "odometer_mm", d.state.OdometerMM, "heading_deg", d.state.HeadingDeg)
	return nil
}
