// Package ultrasonic implements an echo-timing range finder. A trigger pulse starts a ping and
// the echo pin's rising and falling edges are timestamped by the board's 24-bit capture
// counter; the distance follows from the echo width.
package ultrasonic

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	goutils "go.viam.com/utils"

	"github.com/roverworks/navcore/components/board"
	"github.com/roverworks/navcore/logging"
	"github.com/roverworks/navcore/utils"
)

const (
	speedOfSoundMPS = 343.0
	triggerPulse    = 10 * time.Microsecond

	defaultSampleCount = 3
	defaultSettle      = 20 * time.Millisecond
)

// ErrRangingTimeout is returned when no echo arrives within the configured timeout.
var ErrRangingTimeout = errors.New("no echo")

// Config is used for converting config attributes.
type Config struct {
	TriggerPin    string `json:"trigger_pin"`
	EchoInterrupt string `json:"echo_interrupt_pin"`
	// TimeoutMs bounds the wait for both echo edges. 0 waits until the context ends.
	TimeoutMs   uint `json:"timeout_ms,omitempty"`
	SampleCount int  `json:"sample_count,omitempty"`
	SettleMs    uint `json:"settle_ms,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (config *Config) Validate(path string) error {
	if len(config.TriggerPin) == 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "trigger_pin")
	}
	if len(config.EchoInterrupt) == 0 {
		return goutils.NewConfigValidationFieldRequiredError(path, "echo_interrupt_pin")
	}
	if config.SampleCount < 0 {
		return goutils.NewConfigValidationError(path, errors.New("sample_count cannot be negative"))
	}
	return nil
}

// ElapsedTicks returns the capture counter ticks between the leading and trailing echo edges.
// A trailing value below the leading one means the counter wrapped between the edges; the
// elapsed count is then rebuilt as (CounterMax - trailing) + leading and wrapped is true.
func ElapsedTicks(leading, trailing uint32) (elapsed uint32, wrapped bool) {
	if trailing >= leading {
		return trailing - leading, false
	}
	return (board.CounterMax - trailing) + leading, true
}

// TicksToCentimeters converts a round trip echo width in counter ticks to a one way distance.
func TicksToCentimeters(ticks uint32) float64 {
	seconds := float64(ticks) * board.CounterPeriodNanos / 1e9
	return speedOfSoundMPS * 100 * seconds / 2
}

// CentimetersToTicks is the inverse of TicksToCentimeters, rounded to the nearest tick.
func CentimetersToTicks(cm float64) uint32 {
	seconds := cm * 2 / (speedOfSoundMPS * 100)
	return uint32(seconds*1e9/board.CounterPeriodNanos + 0.5)
}

// A Measurement is one ping.
type Measurement struct {
	Leading    uint32
	Trailing   uint32
	Ticks      uint32
	Wrapped    bool
	DistanceCM float64
}

// Sensor is an ultrasonic range finder.
type Sensor struct {
	name    string
	logger  logging.Logger
	clock   clock.Clock
	trigger board.GPIOPin
	echo    board.DigitalInterrupt

	timeout     time.Duration
	sampleCount int
	settle      time.Duration

	// mu serializes pings; the sensor can only have one in flight.
	mu    sync.Mutex
	ticks chan board.Tick
	edges chan board.Tick

	armed     atomic.Bool
	edgeCount atomic.Uint32
	overflows atomic.Uint64

	cancelCtx               context.Context
	cancelFunc              func()
	activeBackgroundWorkers sync.WaitGroup
}

// NewSensor returns a sensor on the configured pins of b. clk may be nil for the wall clock.
func NewSensor(
	ctx context.Context,
	name string,
	b board.Board,
	conf *Config,
	clk clock.Clock,
	logger logging.Logger,
) (*Sensor, error) {
	echo, err := b.DigitalInterruptByName(conf.EchoInterrupt)
	if err != nil {
		return nil, errors.Wrapf(err, "ultrasonic: cannot grab digital interrupt %q", conf.EchoInterrupt)
	}
	trigger, err := b.GPIOPinByName(conf.TriggerPin)
	if err != nil {
		return nil, errors.Wrapf(err, "ultrasonic: cannot grab gpio %q", conf.TriggerPin)
	}
	if clk == nil {
		clk = clock.New()
	}

	s := &Sensor{
		name:        name,
		logger:      logger,
		clock:       clk,
		trigger:     trigger,
		echo:        echo,
		timeout:     time.Duration(conf.TimeoutMs) * time.Millisecond,
		sampleCount: conf.SampleCount,
		settle:      time.Duration(conf.SettleMs) * time.Millisecond,
		ticks:       make(chan board.Tick),
		edges:       make(chan board.Tick, 2),
	}
	if s.sampleCount == 0 {
		s.sampleCount = defaultSampleCount
	}
	if conf.SettleMs == 0 {
		s.settle = defaultSettle
	}

	if err := s.trigger.Set(ctx, false); err != nil {
		return nil, errors.Wrap(err, "ultrasonic: cannot set trigger pin to low")
	}

	s.cancelCtx, s.cancelFunc = context.WithCancel(context.Background())
	s.startCaptureLoop()
	return s, nil
}

func (s *Sensor) namedError(err error) error {
	return errors.Wrapf(err, "ultrasonic sensor %s", s.name)
}

// startCaptureLoop drains the echo interrupt. Edges that arrive while a ping is armed are
// captured, at most two per ping; everything else is discarded so the interrupt never blocks.
func (s *Sensor) startCaptureLoop() {
	s.activeBackgroundWorkers.Add(1)
	goutils.ManagedGo(
		func() {
			s.echo.AddCallback(s.ticks)
			defer s.echo.RemoveCallback(s.ticks)
			for {
				select {
				case <-s.cancelCtx.Done():
					return
				case tick := <-s.ticks:
					if !s.armed.Load() || s.edgeCount.Load() >= 2 {
						continue
					}
					s.edgeCount.Inc()
					select {
					case s.edges <- tick:
					default:
					}
				}
			}
		},
		s.activeBackgroundWorkers.Done,
	)
}

// Measure sends one ping and waits for both echo edges.
func (s *Sensor) Measure(ctx context.Context) (Measurement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.edges) > 0 {
		<-s.edges
	}
	s.edgeCount.Store(0)
	s.armed.Store(true)
	defer func() {
		s.armed.Store(false)
		s.edgeCount.Store(0)
	}()

	if err := s.trigger.Set(ctx, true); err != nil {
		return Measurement{}, s.namedError(errors.Wrap(err, "cannot set trigger pin to high"))
	}
	goutils.SelectContextOrWait(ctx, triggerPulse)
	if err := s.trigger.Set(ctx, false); err != nil {
		return Measurement{}, s.namedError(errors.Wrap(err, "cannot set trigger pin to low"))
	}

	var timeoutC <-chan time.Time
	if s.timeout > 0 {
		timer := s.clock.Timer(s.timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	var edges [2]board.Tick
	for i := range edges {
		select {
		case edges[i] = <-s.edges:
		case <-ctx.Done():
			return Measurement{}, s.namedError(ctx.Err())
		case <-s.cancelCtx.Done():
			return Measurement{}, s.namedError(errors.New("sensor closed"))
		case <-timeoutC:
			return Measurement{}, s.namedError(ErrRangingTimeout)
		}
	}

	m := Measurement{Leading: edges[0].Counter, Trailing: edges[1].Counter}
	m.Ticks, m.Wrapped = ElapsedTicks(m.Leading, m.Trailing)
	if m.Wrapped {
		s.overflows.Inc()
		s.logger.Debugw("capture counter wrapped during echo", "leading", m.Leading, "trailing", m.Trailing)
	}
	m.DistanceCM = TicksToCentimeters(m.Ticks)
	return m, nil
}

// EstimateDistance averages several pings, waiting the settle time between them, and returns
// the mean distance in centimeters.
func (s *Sensor) EstimateDistance(ctx context.Context) (float64, error) {
	distances := make([]float64, 0, s.sampleCount)
	for i := 0; i < s.sampleCount; i++ {
		if i > 0 {
			if err := s.wait(ctx, s.settle); err != nil {
				return 0, err
			}
		}
		m, err := s.Measure(ctx)
		if err != nil {
			return 0, err
		}
		distances = append(distances, m.DistanceCM)
	}
	return utils.Mean(distances), nil
}

func (s *Sensor) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := s.clock.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Overflows returns how many measurements saw the capture counter wrap.
func (s *Sensor) Overflows() uint64 {
	return s.overflows.Load()
}

// Readings returns the estimated distance.
func (s *Sensor) Readings(ctx context.Context) (map[string]interface{}, error) {
	dist, err := s.EstimateDistance(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"distance_cm": dist, "overflows": s.Overflows()}, nil
}

// Close stops the capture loop.
func (s *Sensor) Close(ctx context.Context) error {
	s.cancelFunc()
	s.activeBackgroundWorkers.Wait()
	return nil
}
