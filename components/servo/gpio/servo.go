// Package gpio implements a pin based servo
package gpio

import (
	"context"
	"math"

	"github.com/pkg/errors"
	viamutils "go.viam.com/utils"

	"github.com/roverworks/navcore/components/board"
	"github.com/roverworks/navcore/components/servo"
	"github.com/roverworks/navcore/logging"
	"github.com/roverworks/navcore/operation"
)

const (
	defaultMinDeg    float64 = 0.0
	defaultMaxDeg    float64 = 180.0
	defaultFrequency uint    = 50
	minWidthUs       uint    = 400  // absolute minimum pwm width
	maxWidthUs       uint    = 2600 // absolute maximum pwm width
	// defaults measured on the scanning head: 0 and 180 degrees at 7950 and 35800 cycles of a
	// 16MHz timer
	defaultMinWidthUs uint = 497
	defaultMaxWidthUs uint = 2238
)

// Config describes a servo driven by PWM on a single pin.
type Config struct {
	Pin string `json:"pin"`
	// MinDeg minimum angle the servo can reach, note this doesn't affect PWM calculation
	MinDeg *float64 `json:"min_angle_deg,omitempty"`
	// MaxDeg maximum angle the servo can reach, note this doesn't affect PWM calculation
	MaxDeg *float64 `json:"max_angle_deg,omitempty"`
	// StartPos starting position of the servo in degree
	StartPos *float64 `json:"starting_position_deg,omitempty"`
	// Frequency when set the servo driver will attempt to change the GPIO pin's Frequency
	Frequency *uint `json:"frequency_hz,omitempty"`
	// Resolution of the PWM driver in ticks per period; 0 leaves duty cycles unquantized.
	Resolution *uint `json:"pwm_resolution,omitempty"`
	// MinWidthUS pulse width at MinDeg
	MinWidthUS *uint `json:"min_width_us,omitempty"`
	// MaxWidthUS pulse width at MaxDeg
	MaxWidthUS *uint `json:"max_width_us,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (config *Config) Validate(path string) error {
	if config.Pin == "" {
		return viamutils.NewConfigValidationFieldRequiredError(path, "pin")
	}
	minDeg := defaultMinDeg
	maxDeg := defaultMaxDeg
	if config.MinDeg != nil {
		minDeg = *config.MinDeg
	}
	if config.MaxDeg != nil {
		maxDeg = *config.MaxDeg
	}
	if minDeg < 0 {
		return viamutils.NewConfigValidationError(path, errors.New("min_angle_deg cannot be lower than 0"))
	}
	if maxDeg <= minDeg {
		return viamutils.NewConfigValidationError(path, errors.New("max_angle_deg must be above min_angle_deg"))
	}
	if config.StartPos != nil && (*config.StartPos < minDeg || *config.StartPos > maxDeg) {
		return viamutils.NewConfigValidationError(path,
			errors.Errorf("starting_position_deg should be between %.1f and %.1f", minDeg, maxDeg))
	}
	if config.Frequency != nil && (*config.Frequency > 450 || *config.Frequency == 0) {
		return viamutils.NewConfigValidationError(path,
			errors.Errorf("frequency_hz should not be above 450Hz or 0, have %d", *config.Frequency))
	}
	if config.MinWidthUS != nil && *config.MinWidthUS < minWidthUs {
		return viamutils.NewConfigValidationError(path, errors.Errorf("min_width_us cannot be lower than %d", minWidthUs))
	}
	if config.MaxWidthUS != nil && *config.MaxWidthUS > maxWidthUs {
		return viamutils.NewConfigValidationError(path, errors.Errorf("max_width_us cannot be higher than %d", maxWidthUs))
	}
	return nil
}

type servoGPIO struct {
	pin       board.GPIOPin
	min       float64
	max       float64
	logger    logging.Logger
	opMgr     operation.SingleOperationManager
	frequency uint
	minUs     uint
	maxUs     uint
	pwmRes    uint
}

// NewServo returns a servo on the configured pin of b, moved to its starting position.
func NewServo(ctx context.Context, b board.Board, conf *Config, logger logging.Logger) (servo.Servo, error) {
	pin, err := b.GPIOPinByName(conf.Pin)
	if err != nil {
		return nil, errors.Wrap(err, "couldn't get servo pin")
	}

	frequency := defaultFrequency
	if conf.Frequency != nil {
		frequency = *conf.Frequency
	}
	if err := pin.SetPWMFreq(ctx, frequency); err != nil {
		return nil, errors.Wrap(err, "error setting servo pin frequency")
	}

	s := &servoGPIO{
		pin:       pin,
		min:       defaultMinDeg,
		max:       defaultMaxDeg,
		logger:    logger,
		frequency: frequency,
		minUs:     defaultMinWidthUs,
		maxUs:     defaultMaxWidthUs,
	}
	if conf.MinDeg != nil {
		s.min = *conf.MinDeg
	}
	if conf.MaxDeg != nil {
		s.max = *conf.MaxDeg
	}
	if conf.MinWidthUS != nil {
		s.minUs = *conf.MinWidthUS
	}
	if conf.MaxWidthUS != nil {
		s.maxUs = *conf.MaxWidthUS
	}
	if conf.Resolution != nil {
		s.pwmRes = *conf.Resolution
	}

	startPos := s.min
	if conf.StartPos != nil {
		startPos = *conf.StartPos
	}
	if err := s.Move(ctx, uint32(startPos)); err != nil {
		return nil, errors.Wrap(err, "couldn't move servo to start position")
	}
	return s, nil
}

// Given minUs, maxUs, deg and frequency attempt to calculate the corresponding duty cycle pct.
func mapDegToDutyCylePct(minUs, maxUs uint, minDeg, maxDeg, deg float64, frequency uint) float64 {
	period := 1.0 / float64(frequency)
	scale := float64(maxUs-minUs) / (maxDeg - minDeg)
	pwmWidthUs := float64(minUs) + (deg-minDeg)*scale
	return (pwmWidthUs / (1000 * 1000)) / period
}

// Given minUs, maxUs, pct and frequency returns the corresponding angle in degrees.
func mapDutyCylePctToDeg(minUs, maxUs uint, minDeg, maxDeg, pct float64, frequency uint) float64 {
	period := 1.0 / float64(frequency)
	pwmWidthUs := pct * period * 1000 * 1000
	pwmWidthUs = math.Max(float64(minUs), pwmWidthUs)
	pwmWidthUs = math.Min(float64(maxUs), pwmWidthUs)
	scale := (maxDeg - minDeg) / float64(maxUs-minUs)
	return math.Round(minDeg + (pwmWidthUs-float64(minUs))*scale)
}

// Move moves the servo to the given angle, clamped to the servo's range. The pulse is applied
// immediately; the caller waits for the horn to settle.
func (s *servoGPIO) Move(ctx context.Context, ang uint32) error {
	ctx, done := s.opMgr.New(ctx)
	defer done()

	angle := math.Min(math.Max(float64(ang), s.min), s.max)
	pct := mapDegToDutyCylePct(s.minUs, s.maxUs, s.min, s.max, angle, s.frequency)
	if s.pwmRes != 0 {
		realTick := math.Round(pct * float64(s.pwmRes))
		pct = realTick / float64(s.pwmRes)
	}
	if err := s.pin.SetPWM(ctx, pct); err != nil {
		return errors.Wrap(err, "couldn't move the servo")
	}
	s.logger.Debugw("servo moved", "angle", angle, "duty", pct)
	return nil
}

// Position returns the current set angle (degrees) of the servo.
func (s *servoGPIO) Position(ctx context.Context) (uint32, error) {
	pct, err := s.pin.PWM(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "couldn't get servo pin duty cycle")
	}
	return uint32(mapDutyCylePctToDeg(s.minUs, s.maxUs, s.min, s.max, pct, s.frequency)), nil
}

// Stop stops the servo. It is assumed the servo stops immediately.
func (s *servoGPIO) Stop(ctx context.Context) error {
	ctx, done := s.opMgr.New(ctx)
	defer done()
	if err := s.pin.SetPWM(ctx, 0.0); err != nil {
		return errors.Wrap(err, "couldn't stop servo")
	}
	return nil
}
