package board

import (
	"fmt"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// Supported board models.
const (
	ModelPeriph = "periph"
	ModelFake   = "fake"
)

// Config describes the board and the parts the rover uses on it.
type Config struct {
	Model             string                   `json:"model"`
	I2CBus            string                   `json:"i2c_bus,omitempty"`
	Analogs           []AnalogConfig           `json:"analogs,omitempty"`
	DigitalInterrupts []DigitalInterruptConfig `json:"digital_interrupts,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) error {
	switch conf.Model {
	case ModelPeriph, ModelFake:
	case "":
		return utils.NewConfigValidationFieldRequiredError(path, "model")
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown board model %q", conf.Model))
	}
	for idx, c := range conf.Analogs {
		if err := c.Validate(fmt.Sprintf("%s.%s.%d", path, "analogs", idx)); err != nil {
			return err
		}
	}
	for idx, c := range conf.DigitalInterrupts {
		if err := c.Validate(fmt.Sprintf("%s.%s.%d", path, "digital_interrupts", idx)); err != nil {
			return err
		}
	}
	return nil
}

// AnalogConfig describes an ADC channel used as an analog input.
type AnalogConfig struct {
	Name    string `json:"name"`
	Channel int    `json:"channel"`
	// Address is the I2C address of the ADC; 0 means the chip default.
	Address uint16 `json:"address,omitempty"`
	// MaxVoltage is the full scale range in volts; 0 means 5V.
	MaxVoltage        float64 `json:"max_voltage,omitempty"`
	SamplesPerSecond  int     `json:"samples_per_sec,omitempty"`
	AverageOverMillis int     `json:"average_over_ms,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (config *AnalogConfig) Validate(path string) error {
	if config.Name == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if config.Channel < 0 || config.Channel > 3 {
		return utils.NewConfigValidationError(path, errors.Errorf("channel must be 0-3, got %d", config.Channel))
	}
	return nil
}

// DigitalInterruptConfig describes the configuration of digital interrupt for a board.
type DigitalInterruptConfig struct {
	Name string `json:"name"`
	Pin  string `json:"pin"`
}

// Validate ensures all parts of the config are valid.
func (config *DigitalInterruptConfig) Validate(path string) error {
	if config.Name == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "name")
	}
	if config.Pin == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "pin")
	}
	return nil
}
