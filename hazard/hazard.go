// Package hazard classifies the drivetrain's bump and cliff sensors into a status bitmask.
package hazard

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/roverworks/navcore/components/base"
	"github.com/roverworks/navcore/logging"
)

// Status is a bitmask of hazard sensor events. The zero value is Clear.
type Status uint16

// Status bits.
const (
	LeftBump Status = 1 << iota
	RightBump
	CliffLeft
	CliffFrontLeft
	CliffRight
	CliffFrontRight
	TapeRight
	TapeLeft
	TapeFrontRight
	TapeFrontLeft

	Clear Status = 0
)

var statusNames = []struct {
	bit  Status
	name string
}{
	{LeftBump, "left bump"},
	{RightBump, "right bump"},
	{CliffLeft, "left hole"},
	{CliffFrontLeft, "front left hole"},
	{CliffRight, "right hole"},
	{CliffFrontRight, "front right hole"},
	{TapeRight, "right tape"},
	{TapeLeft, "left tape"},
	{TapeFrontRight, "front right tape"},
	{TapeFrontLeft, "front left tape"},
}

// Has reports whether every bit of mask is set.
func (s Status) Has(mask Status) bool {
	return s&mask == mask
}

func (s Status) String() string {
	if s == Clear {
		return "clear"
	}
	var names []string
	for _, sn := range statusNames {
		if s&sn.bit != 0 {
			names = append(names, sn.name)
		}
	}
	return strings.Join(names, "|")
}

// Default cliff signal thresholds.
const (
	DefaultHoleBelow = 10
	DefaultTapeAbove = 2700
)

// Thresholds split cliff signals into hole, floor and boundary tape.
type Thresholds struct {
	HoleBelow uint16
	TapeAbove uint16
}

// DefaultThresholds returns the thresholds calibrated for the arena floor.
func DefaultThresholds() Thresholds {
	return Thresholds{HoleBelow: DefaultHoleBelow, TapeAbove: DefaultTapeAbove}
}

// Config overrides the default thresholds.
type Config struct {
	HoleBelow int `json:"hole_below,omitempty"`
	TapeAbove int `json:"tape_above,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (config *Config) Validate(path string) error {
	if config.HoleBelow < 0 || config.HoleBelow > 0xffff {
		return goutils.NewConfigValidationError(path, errors.New("hole_below must fit a cliff signal"))
	}
	if config.TapeAbove < 0 || config.TapeAbove > 0xffff {
		return goutils.NewConfigValidationError(path, errors.New("tape_above must fit a cliff signal"))
	}
	th := config.Thresholds()
	if th.TapeAbove <= th.HoleBelow {
		return goutils.NewConfigValidationError(path, errors.Errorf(
			"tape_above (%d) must be greater than hole_below (%d)", th.TapeAbove, th.HoleBelow))
	}
	return nil
}

// Thresholds returns the configured thresholds with defaults filled in.
func (config *Config) Thresholds() Thresholds {
	th := DefaultThresholds()
	if config.HoleBelow != 0 {
		th.HoleBelow = uint16(config.HoleBelow)
	}
	if config.TapeAbove != 0 {
		th.TapeAbove = uint16(config.TapeAbove)
	}
	return th
}

// Classify builds a status from one sensor frame.
func Classify(frame base.SensorFrame, th Thresholds) Status {
	var s Status
	if frame.BumpLeft {
		s |= LeftBump
	}
	if frame.BumpRight {
		s |= RightBump
	}
	cliffs := []struct {
		signal     uint16
		hole, tape Status
	}{
		{frame.CliffLeft, CliffLeft, TapeLeft},
		{frame.CliffRight, CliffRight, TapeRight},
		{frame.CliffFrontLeft, CliffFrontLeft, TapeFrontLeft},
		{frame.CliffFrontRight, CliffFrontRight, TapeFrontRight},
	}
	for _, c := range cliffs {
		if c.signal < th.HoleBelow {
			s |= c.hole
		}
		if c.signal > th.TapeAbove {
			s |= c.tape
		}
	}
	return s
}

// A Monitor holds the live status and the one before it.
type Monitor struct {
	mu       sync.Mutex
	th       Thresholds
	current  Status
	previous Status
	logger   logging.Logger
}

// NewMonitor returns a monitor that starts clear.
func NewMonitor(th Thresholds, logger logging.Logger) *Monitor {
	return &Monitor{th: th, logger: logger}
}

// Update replaces the live status with the one classified from frame and logs newly raised bits.
func (m *Monitor) Update(frame base.SensorFrame) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.previous = m.current
	m.current = Classify(frame, m.th)
	if rising := m.current &^ m.previous; rising != Clear {
		m.logger.Warnw("hazard detected", "hazard", rising.String())
	}
	return m.current
}

// Status returns the live status.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Previous returns the status replaced by the last update.
func (m *Monitor) Previous() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previous
}

// Rising returns the bits set by the last update that were not set before it.
func (m *Monitor) Rising() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current &^ m.previous
}

// Reset clears both the live and previous status.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current, m.previous = Clear, Clear
}
