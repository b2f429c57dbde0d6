// Package config defines the structures to configure a rover.
package config

import (
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/roverworks/navcore/components/base"
	"github.com/roverworks/navcore/components/board"
	"github.com/roverworks/navcore/components/scanner"
	servogpio "github.com/roverworks/navcore/components/servo/gpio"
	"github.com/roverworks/navcore/components/sensor/ir"
	"github.com/roverworks/navcore/components/sensor/ultrasonic"
	"github.com/roverworks/navcore/control"
	"github.com/roverworks/navcore/hazard"
	"github.com/roverworks/navcore/perception"
	"github.com/roverworks/navcore/report"
	"github.com/roverworks/navcore/utils"
)

// DefaultConsoleBaudRate is the command console's line speed.
const DefaultConsoleBaudRate = 115200

var validConsoleBaudRates = []uint{9600, 19200, 38400, 57600, 115200, 230400}

// A Config describes the configuration of a rover.
type Config struct {
	ConfigFilePath string `json:"-"`
	Debug          bool   `json:"debug,omitempty"`

	Board        board.Config                  `json:"board"`
	Drivetrain   base.Config                   `json:"drivetrain"`
	Console      ConsoleConfig                 `json:"console"`
	Ranging      ultrasonic.Config             `json:"ranging"`
	Scanner      scanner.Config                `json:"scanner"`
	Segmentation perception.SegmentationConfig `json:"segmentation"`
	Clearance    perception.Geometry           `json:"clearance"`
	Motion       control.Config                `json:"motion"`
	Hazard       hazard.Config                 `json:"hazard"`
	Telemetry    TelemetryConfig               `json:"telemetry"`
}

// Ensure ensures all parts of the config are valid.
func (c *Config) Ensure() error {
	sections := []struct {
		path     string
		validate func(string) error
	}{
		{"board", c.Board.Validate},
		{"drivetrain", c.Drivetrain.Validate},
		{"console", c.Console.Validate},
		{"ranging", c.Ranging.Validate},
		{"scanner", c.Scanner.Validate},
		{"segmentation", c.Segmentation.Validate},
		{"clearance", c.Clearance.Validate},
		{"motion", c.Motion.Validate},
		{"hazard", c.Hazard.Validate},
		{"telemetry", c.Telemetry.Validate},
	}
	for _, s := range sections {
		if err := s.validate(s.path); err != nil {
			return err
		}
	}

	analogs := map[string]bool{}
	for _, a := range c.Board.Analogs {
		analogs[a.Name] = true
	}
	if !analogs[c.Scanner.IR.Analog] {
		return goutils.NewConfigValidationError("scanner.ir",
			errors.Errorf("analog %q is not configured on the board", c.Scanner.IR.Analog))
	}
	interrupts := map[string]bool{}
	for _, di := range c.Board.DigitalInterrupts {
		interrupts[di.Name] = true
	}
	if !interrupts[c.Ranging.EchoInterrupt] {
		return goutils.NewConfigValidationError("ranging",
			errors.Errorf("digital interrupt %q is not configured on the board", c.Ranging.EchoInterrupt))
	}
	return nil
}

func (c *Config) applyDefaults() {
	c.Clearance = c.Clearance.WithDefaults()
	if c.Console.BaudRate == 0 {
		c.Console.BaudRate = DefaultConsoleBaudRate
	}
}

// ConsoleConfig describes where command characters come from. An empty path reads stdin.
type ConsoleConfig struct {
	Path     string `json:"path,omitempty"`
	BaudRate int    `json:"baud_rate,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (config *ConsoleConfig) Validate(path string) error {
	if config.BaudRate != 0 && !utils.ValidateBaudRate(validConsoleBaudRates, config.BaudRate) {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("baud_rate must be one of %v, got %d", validConsoleBaudRates, config.BaudRate))
	}
	return nil
}

// TelemetryConfig chooses where scans are reported besides the console.
type TelemetryConfig struct {
	MQTT    *report.MQTTConfig `json:"mqtt,omitempty"`
	PlotDir string             `json:"plot_dir,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (config *TelemetryConfig) Validate(path string) error {
	if config.MQTT != nil {
		return config.MQTT.Validate(path + ".mqtt")
	}
	return nil
}

// Simulated returns a config that runs entirely on fake hardware.
func Simulated() *Config {
	c := &Config{
		Board: board.Config{
			Model:             board.ModelFake,
			Analogs:           []board.AnalogConfig{{Name: "ir", Channel: 0}},
			DigitalInterrupts: []board.DigitalInterruptConfig{{Name: "echo", Pin: "11"}},
		},
		Drivetrain: base.Config{Model: base.ModelFake},
		Ranging: ultrasonic.Config{
			TriggerPin:    "12",
			EchoInterrupt: "echo",
			TimeoutMs:     40,
		},
		Scanner: scanner.Config{
			Servo: servogpio.Config{Pin: "13"},
			IR:    ir.Config{Analog: "ir"},
		},
	}
	c.applyDefaults()
	return c
}
