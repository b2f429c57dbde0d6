// Package ir converts readings from an analog infrared reflectance sensor to distances.
package ir

import (
	"context"
	"math"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/roverworks/navcore/components/board"
	"github.com/roverworks/navcore/logging"
)

// Calibration defaults for the scanning head's sensor.
const (
	DefaultCurveK        = 2e8
	DefaultCurveP        = -2.122
	DefaultMaxDistanceCM = 250.0
)

// Config describes the analog input the sensor is on and its calibration curve
// distance = curve_k * raw^curve_p.
type Config struct {
	Analog        string  `json:"analog"`
	CurveK        float64 `json:"curve_k,omitempty"`
	CurveP        float64 `json:"curve_p,omitempty"`
	MaxDistanceCM float64 `json:"max_distance_cm,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (config *Config) Validate(path string) error {
	if config.Analog == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "analog")
	}
	if config.CurveK < 0 {
		return goutils.NewConfigValidationError(path, errors.New("curve_k cannot be negative"))
	}
	if config.CurveP > 0 {
		return goutils.NewConfigValidationError(path, errors.New("curve_p must be negative, distance falls as reflectance rises"))
	}
	if config.MaxDistanceCM < 0 {
		return goutils.NewConfigValidationError(path, errors.New("max_distance_cm cannot be negative"))
	}
	return nil
}

// A Curve maps a raw reflectance code to a distance in centimeters.
type Curve struct {
	K, P          float64
	MaxDistanceCM float64
}

// Distance applies the curve. Raw codes of zero or below read as the maximum distance.
func (c Curve) Distance(raw int) float64 {
	if raw <= 0 {
		return c.MaxDistanceCM
	}
	d := c.K * math.Pow(float64(raw), c.P)
	if c.MaxDistanceCM > 0 && d > c.MaxDistanceCM {
		return c.MaxDistanceCM
	}
	return d
}

// Raw is the inverse of Distance, rounded to the nearest code. It is used to drive simulated
// sensors.
func (c Curve) Raw(distanceCM float64) int {
	if distanceCM <= 0 || c.K <= 0 {
		return 0
	}
	return int(math.Round(math.Pow(distanceCM/c.K, 1/c.P)))
}

// Sensor is an IR proximity sensor.
type Sensor struct {
	analog board.Analog
	curve  Curve
	logger logging.Logger
}

// NewSensor returns a sensor reading the configured analog of b.
func NewSensor(b board.Board, conf *Config, logger logging.Logger) (*Sensor, error) {
	a, err := b.AnalogByName(conf.Analog)
	if err != nil {
		return nil, errors.Wrapf(err, "ir: cannot grab analog %q", conf.Analog)
	}
	curve := Curve{K: conf.CurveK, P: conf.CurveP, MaxDistanceCM: conf.MaxDistanceCM}
	if curve.K == 0 {
		curve.K = DefaultCurveK
	}
	if curve.P == 0 {
		curve.P = DefaultCurveP
	}
	if curve.MaxDistanceCM == 0 {
		curve.MaxDistanceCM = DefaultMaxDistanceCM
	}
	return &Sensor{analog: a, curve: curve, logger: logger}, nil
}

// Curve returns the calibration curve in use.
func (s *Sensor) Curve() Curve {
	return s.curve
}

// Sample returns one raw reflectance code.
func (s *Sensor) Sample(ctx context.Context) (int, error) {
	v, err := s.analog.Read(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "ir: cannot read analog")
	}
	return v.Value, nil
}

// Readings returns one raw sample and the distance it maps to.
func (s *Sensor) Readings(ctx context.Context) (map[string]interface{}, error) {
	raw, err := s.Sample(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"raw": raw, "distance_cm": s.curve.Distance(raw)}, nil
}
