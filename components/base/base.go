// Package base defines the differential drivetrain the rover moves with.
package base

import (
	"context"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// Drivetrain models supported by NewDrivetrain implementations.
const (
	ModelOI   = "oi"
	ModelFake = "fake"
)

// MaxWheelPower is the largest wheel command magnitude the drivetrain accepts, in mm/s.
const MaxWheelPower = 500

// A SensorFrame is the odometry and hazard data reported by one drivetrain update. Distance and
// angle are deltas since the previous update; counter-clockwise angles are positive.
type SensorFrame struct {
	DistanceMM float64
	AngleDeg   float64

	BumpLeft  bool
	BumpRight bool

	CliffLeft       uint16
	CliffFrontLeft  uint16
	CliffFrontRight uint16
	CliffRight      uint16
}

// A Drivetrain drives two wheels and reports what happened since it was last asked.
type Drivetrain interface {
	// SetWheelPower commands each wheel's velocity in mm/s. Negative values drive backwards.
	SetWheelPower(ctx context.Context, left, right int) error

	// Update polls the drivetrain sensors and returns the deltas accumulated since the last call.
	Update(ctx context.Context) (SensorFrame, error)

	Close(ctx context.Context) error
}

// Config describes how to reach the drivetrain.
type Config struct {
	Model      string `json:"model"`
	SerialPath string `json:"serial_path,omitempty"`
	BaudRate   int    `json:"serial_baud_rate,omitempty"`

	// Simulation parameters, used by the fake model only.
	WheelBaseMM  float64 `json:"wheel_base_mm,omitempty"`
	LeftBias     float64 `json:"left_bias,omitempty"`
	TickMs       int     `json:"tick_ms,omitempty"`
	FloorSignal  int     `json:"floor_signal,omitempty"`
	RealtimeTick bool    `json:"realtime_tick,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (config *Config) Validate(path string) error {
	switch config.Model {
	case ModelOI:
		if config.SerialPath == "" {
			return goutils.NewConfigValidationFieldRequiredError(path, "serial_path")
		}
	case ModelFake:
	case "":
		return goutils.NewConfigValidationFieldRequiredError(path, "model")
	default:
		return goutils.NewConfigValidationError(path, errors.Errorf("unknown drivetrain model %q", config.Model))
	}
	if config.BaudRate < 0 {
		return goutils.NewConfigValidationError(path, errors.New("serial_baud_rate cannot be negative"))
	}
	if config.WheelBaseMM < 0 {
		return goutils.NewConfigValidationError(path, errors.New("wheel_base_mm cannot be negative"))
	}
	if config.LeftBias <= -1 || config.LeftBias >= 1 {
		return goutils.NewConfigValidationError(path, errors.New("left_bias must be within (-1, 1)"))
	}
	if config.TickMs < 0 {
		return goutils.NewConfigValidationError(path, errors.New("tick_ms cannot be negative"))
	}
	return nil
}

// ClampPower bounds a wheel command to what the drivetrain accepts.
func ClampPower(power int) int {
	if power > MaxWheelPower {
		return MaxWheelPower
	}
	if power < -MaxWheelPower {
		return -MaxWheelPower
	}
	return power
}
