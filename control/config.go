package control

import (
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	goutils "go.viam.com/utils"

	"github.com/roverworks/navcore/components/base"
)

// Wheel powers measured on the stock rover, in mm/s.
const (
	DefaultForwardLeftPower           = 80
	DefaultForwardRightPower          = 96
	DefaultClockwiseLeftPower         = 39
	DefaultClockwiseRightPower        = -50
	DefaultCounterClockwiseLeftPower  = -50
	DefaultCounterClockwiseRightPower = 68
)

const (
	defaultHeadingDeadbandDeg = 0.5
	defaultDistanceDeadbandMM = 1.0
	defaultTurnOvershootDeg   = 0.5
	defaultTapeCrawlPower     = 15
	defaultTapeBackoffCM      = 5.0
	defaultTapeMaxAttempts    = 5
	defaultTapeCrawlTicks     = 2000
	defaultScannerOffsetCM    = 10.5
)

// Config tunes the motion primitives. Zero values take the defaults, except the deadbands,
// overshoot, tape backoff and scanner offset, which take them only when unset so an explicit 0
// is kept.
type Config struct {
	ForwardLeftPower           int `json:"forward_left_power,omitempty"`
	ForwardRightPower          int `json:"forward_right_power,omitempty"`
	ClockwiseLeftPower         int `json:"clockwise_left_power,omitempty"`
	ClockwiseRightPower        int `json:"clockwise_right_power,omitempty"`
	CounterClockwiseLeftPower  int `json:"counter_clockwise_left_power,omitempty"`
	CounterClockwiseRightPower int `json:"counter_clockwise_right_power,omitempty"`

	HeadingDeadbandDeg *float64 `json:"heading_deadband_deg,omitempty"`
	DistanceDeadbandMM *float64 `json:"distance_deadband_mm,omitempty"`
	TurnOvershootDeg   *float64 `json:"turn_overshoot_deg,omitempty"`

	// TimeoutMs bounds a single primitive. 0 lets it run until done, interrupted or cancelled.
	TimeoutMs int `json:"timeout_ms,omitempty"`
	// TickMs paces the loop when the drivetrain does not block on its own.
	TickMs int `json:"tick_ms,omitempty"`

	TapeCrawlPower  int      `json:"tape_crawl_power,omitempty"`
	TapeBackoffCM   *float64 `json:"tape_backoff_cm,omitempty"`
	TapeMaxAttempts int      `json:"tape_max_attempts,omitempty"`
	TapeCrawlTicks  int      `json:"tape_crawl_ticks,omitempty"`

	ScannerOffsetCM *float64 `json:"scanner_offset_cm,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (config *Config) Validate(path string) error {
	for name, p := range map[string]int{
		"forward_left_power":            config.ForwardLeftPower,
		"forward_right_power":           config.ForwardRightPower,
		"clockwise_left_power":          config.ClockwiseLeftPower,
		"clockwise_right_power":         config.ClockwiseRightPower,
		"counter_clockwise_left_power":  config.CounterClockwiseLeftPower,
		"counter_clockwise_right_power": config.CounterClockwiseRightPower,
		"tape_crawl_power":              config.TapeCrawlPower,
	} {
		if p > base.MaxWheelPower || p < -base.MaxWheelPower {
			return goutils.NewConfigValidationError(path, errors.Errorf("%s must be within +/-%d", name, base.MaxWheelPower))
		}
	}
	if lo.FromPtr(config.HeadingDeadbandDeg) < 0 || lo.FromPtr(config.DistanceDeadbandMM) < 0 ||
		lo.FromPtr(config.TurnOvershootDeg) < 0 {
		return goutils.NewConfigValidationError(path, errors.New("deadbands and overshoot cannot be negative"))
	}
	if config.TimeoutMs < 0 || config.TickMs < 0 {
		return goutils.NewConfigValidationError(path, errors.New("timeout_ms and tick_ms cannot be negative"))
	}
	if lo.FromPtr(config.TapeBackoffCM) < 0 || config.TapeMaxAttempts < 0 || config.TapeCrawlTicks < 0 {
		return goutils.NewConfigValidationError(path, errors.New("tape alignment settings cannot be negative"))
	}
	if lo.FromPtr(config.ScannerOffsetCM) < 0 {
		return goutils.NewConfigValidationError(path, errors.New("scanner_offset_cm cannot be negative"))
	}
	return nil
}

type settings struct {
	forwardLeft          int
	clockwiseRight       int
	counterClockwiseLeft int

	headingBand   float64
	distanceBand  float64
	overshoot     float64
	timeout       time.Duration
	tick          time.Duration
	crawlPower    int
	backoffCM     float64
	maxAttempts   int
	crawlTicks    int
	scannerOffset float64
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func (config *Config) settings() settings {
	return settings{
		forwardLeft:          orInt(config.ForwardLeftPower, DefaultForwardLeftPower),
		clockwiseRight:       orInt(config.ClockwiseRightPower, DefaultClockwiseRightPower),
		counterClockwiseLeft: orInt(config.CounterClockwiseLeftPower, DefaultCounterClockwiseLeftPower),
		headingBand:          lo.FromPtrOr(config.HeadingDeadbandDeg, defaultHeadingDeadbandDeg),
		distanceBand:         lo.FromPtrOr(config.DistanceDeadbandMM, defaultDistanceDeadbandMM),
		overshoot:            lo.FromPtrOr(config.TurnOvershootDeg, defaultTurnOvershootDeg),
		timeout:              time.Duration(config.TimeoutMs) * time.Millisecond,
		tick:                 time.Duration(config.TickMs) * time.Millisecond,
		crawlPower:           orInt(config.TapeCrawlPower, defaultTapeCrawlPower),
		backoffCM:            lo.FromPtrOr(config.TapeBackoffCM, defaultTapeBackoffCM),
		maxAttempts:          orInt(config.TapeMaxAttempts, defaultTapeMaxAttempts),
		crawlTicks:           orInt(config.TapeCrawlTicks, defaultTapeCrawlTicks),
		scannerOffset:        lo.FromPtrOr(config.ScannerOffsetCM, defaultScannerOffsetCM),
	}
}

// WheelPowers are the corrected powers carried from one primitive to the next. Each family
// corrects one wheel and holds the other fixed.
type WheelPowers struct {
	ForwardRight          int
	ClockwiseLeft         int
	CounterClockwiseRight int
}

func (config *Config) initialPowers() WheelPowers {
	return WheelPowers{
		ForwardRight:          orInt(config.ForwardRightPower, DefaultForwardRightPower),
		ClockwiseLeft:         orInt(config.ClockwiseLeftPower, DefaultClockwiseLeftPower),
		CounterClockwiseRight: orInt(config.CounterClockwiseRightPower, DefaultCounterClockwiseRightPower),
	}
}
