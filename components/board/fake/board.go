// Package fake implements a fake board whose pins remember what was written to them and whose
// interrupts can be driven by tests or by a simulated ultrasonic echo.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/roverworks/navcore/components/board"
	"github.com/roverworks/navcore/logging"
	"github.com/roverworks/navcore/utils"
)

// NewBoard returns a new fake board.
func NewBoard(ctx context.Context, conf *board.Config, logger logging.Logger) (*Board, error) {
	b := &Board{
		Analogs:  map[string]*Analog{},
		Digitals: map[string]*DigitalInterrupt{},
		GPIOPins: map[string]*GPIOPin{},
		workers:  utils.NewStoppableWorkers(),
		logger:   logger,
	}

	var errs error
	for _, c := range conf.Analogs {
		b.Analogs[c.Name] = &Analog{}
	}
	for _, c := range conf.DigitalInterrupts {
		if _, ok := b.Digitals[c.Name]; ok {
			errs = multierr.Combine(errs, errors.Errorf("duplicate digital interrupt %q", c.Name))
			continue
		}
		b.Digitals[c.Name] = NewDigitalInterrupt(c)
	}
	if errs != nil {
		return nil, errs
	}
	return b, nil
}

// A Board provides dummy data from fake parts in order to implement a Board.
type Board struct {
	mu       sync.RWMutex
	Analogs  map[string]*Analog
	Digitals map[string]*DigitalInterrupt
	GPIOPins map[string]*GPIOPin
	logger   logging.Logger

	CloseCount int
	workers    utils.StoppableWorkers
}

// AnalogByName returns the analog pin by the given name if it exists.
func (b *Board) AnalogByName(name string) (board.Analog, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.Analogs[name]
	if !ok {
		return nil, errors.Errorf("can't find Analog (%s)", name)
	}
	return a, nil
}

// DigitalInterruptByName returns the interrupt by the given name if it exists.
func (b *Board) DigitalInterruptByName(name string) (board.DigitalInterrupt, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	d, ok := b.Digitals[name]
	if !ok {
		return nil, fmt.Errorf("cant find DigitalInterrupt (%s)", name)
	}
	return d, nil
}

// GPIOPinByName returns the GPIO pin by the given name, creating it on first use.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	return b.gpioPin(name), nil
}

func (b *Board) gpioPin(name string) *GPIOPin {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.GPIOPins[name]
	if !ok {
		p = &GPIOPin{}
		b.GPIOPins[name] = p
	}
	return p
}

// EchoFunc returns the capture counter values latched at the leading and trailing edges of
// the next echo, or ok=false when no echo should come back.
type EchoFunc func() (leading, trailing uint32, ok bool)

// FixedEcho returns an EchoFunc that always reports the same pair of edges.
func FixedEcho(leading, trailing uint32) EchoFunc {
	return func() (uint32, uint32, bool) {
		return leading, trailing, true
	}
}

// SimulateEcho makes every high-to-low transition of the trigger pin produce a rising and a
// falling tick on the named interrupt, timestamped by echo.
func (b *Board) SimulateEcho(triggerPin, interrupt string, echo EchoFunc) error {
	b.mu.RLock()
	di, ok := b.Digitals[interrupt]
	b.mu.RUnlock()
	if !ok {
		return errors.Errorf("cant find DigitalInterrupt (%s)", interrupt)
	}

	b.gpioPin(triggerPin).setOnFall(func() {
		leading, trailing, ok := echo()
		if !ok {
			return
		}
		b.workers.AddWorkers(func(ctx context.Context) {
			if err := di.Tick(ctx, true, leading); err != nil {
				return
			}
			if err := di.Tick(ctx, false, trailing); err != nil {
				b.logger.Debugw("echo tick dropped", "interrupt", interrupt, "error", err)
			}
		})
	})
	return nil
}

// Close attempts to cleanly close each part of the board.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	b.CloseCount++
	b.mu.Unlock()
	b.workers.Stop()
	return nil
}

// An Analog reads back the set value, or the value of its source func when one is set.
type Analog struct {
	mu     sync.RWMutex
	Value  int
	source func() int
}

// Read returns the current value.
func (a *Analog) Read(ctx context.Context) (board.AnalogValue, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v := a.Value
	if a.source != nil {
		v = a.source()
	}
	return board.AnalogValue{Value: v, Min: 0, Max: 4095, StepSize: 1}, nil
}

// Set is used to set the value of an Analog.
func (a *Analog) Set(value int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Value = value
	a.source = nil
}

// SetSource makes every read call fn.
func (a *Analog) SetSource(fn func() int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.source = fn
}

// A GPIOPin reads back the same set values.
type GPIOPin struct {
	high    bool
	pwm     float64
	pwmFreq uint
	onFall  func()

	mu sync.Mutex
}

func (gp *GPIOPin) setOnFall(fn func()) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	gp.onFall = fn
}

// Set sets the pin to either low or high.
func (gp *GPIOPin) Set(ctx context.Context, high bool) error {
	gp.mu.Lock()
	fell := gp.high && !high
	gp.high = high
	gp.pwm = 0
	gp.pwmFreq = 0
	onFall := gp.onFall
	gp.mu.Unlock()

	if fell && onFall != nil {
		onFall()
	}
	return nil
}

// Get gets the high/low state of the pin.
func (gp *GPIOPin) Get(ctx context.Context) (bool, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.high, nil
}

// PWM gets the pin's given duty cycle.
func (gp *GPIOPin) PWM(ctx context.Context) (float64, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.pwm, nil
}

// SetPWM sets the pin to the given duty cycle.
func (gp *GPIOPin) SetPWM(ctx context.Context, dutyCyclePct float64) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	gp.pwm = dutyCyclePct
	return nil
}

// PWMFreq gets the PWM frequency of the pin.
func (gp *GPIOPin) PWMFreq(ctx context.Context) (uint, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.pwmFreq, nil
}

// SetPWMFreq sets the given pin to the given PWM frequency.
func (gp *GPIOPin) SetPWMFreq(ctx context.Context, freqHz uint) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	gp.pwmFreq = freqHz
	return nil
}

// DigitalInterrupt is a fake digital interrupt.
type DigitalInterrupt struct {
	mu        sync.Mutex
	conf      board.DigitalInterruptConfig
	value     int64
	callbacks []chan board.Tick
}

// NewDigitalInterrupt returns a new fake digital interrupt.
func NewDigitalInterrupt(conf board.DigitalInterruptConfig) *DigitalInterrupt {
	return &DigitalInterrupt{conf: conf}
}

// Value returns the number of ticks delivered so far.
func (s *DigitalInterrupt) Value(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, nil
}

// Tick delivers a tick to every callback, blocking until each has been received or ctx ends.
func (s *DigitalInterrupt) Tick(ctx context.Context, high bool, counter uint32) error {
	s.mu.Lock()
	s.value++
	callbacks := make([]chan board.Tick, len(s.callbacks))
	copy(callbacks, s.callbacks)
	name := s.conf.Name
	s.mu.Unlock()

	for _, c := range callbacks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c <- board.Tick{Name: name, High: high, Counter: counter}:
		}
	}
	return nil
}

// AddCallback adds a listener for interrupts.
func (s *DigitalInterrupt) AddCallback(c chan board.Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, c)
}

// RemoveCallback removes a listener for interrupts.
func (s *DigitalInterrupt) RemoveCallback(c chan board.Tick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.callbacks {
		if s.callbacks[id] == c {
			s.callbacks = append(s.callbacks[:id], s.callbacks[id+1:]...)
			return
		}
	}
}

// Name returns the name of the digital interrupt.
func (s *DigitalInterrupt) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conf.Name
}
