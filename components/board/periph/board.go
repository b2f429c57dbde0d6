// Package periph implements a board on top of periph.io: GPIO and hardware PWM from the host
// drivers, echo edges from pin edge detection, and analog inputs from an ADS1115 on I2C.
package periph

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/roverworks/navcore/components/board"
	"github.com/roverworks/navcore/components/board/pinwrappers"
	"github.com/roverworks/navcore/logging"
	"github.com/roverworks/navcore/utils"
)

// edgePoll bounds how long an interrupt watcher blocks before rechecking for shutdown.
const edgePoll = 100 * time.Millisecond

// Board is a periph.io backed board.
type Board struct {
	mu         sync.Mutex
	logger     logging.Logger
	pins       map[string]*gpioPin
	interrupts map[string]*digitalInterrupt
	analogs    map[string]board.Analog
	smoothers  []*pinwrappers.AnalogSmoother
	bus        i2c.BusCloser

	// epoch anchors the emulated 24-bit capture counter.
	epoch   time.Time
	workers utils.StoppableWorkers
}

// NewBoard initializes the periph host drivers and opens every configured part.
func NewBoard(ctx context.Context, conf *board.Config, logger logging.Logger) (*Board, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "cannot initialize periph host drivers")
	}

	b := &Board{
		logger:     logger,
		pins:       map[string]*gpioPin{},
		interrupts: map[string]*digitalInterrupt{},
		analogs:    map[string]board.Analog{},
		epoch:      time.Now(),
		workers:    utils.NewStoppableWorkers(),
	}

	for _, c := range conf.DigitalInterrupts {
		if err := b.addDigitalInterrupt(c); err != nil {
			return nil, multierr.Combine(err, b.Close(ctx))
		}
	}

	if len(conf.Analogs) > 0 {
		bus, err := i2creg.Open(conf.I2CBus)
		if err != nil {
			return nil, multierr.Combine(errors.Wrapf(err, "cannot open i2c bus %q", conf.I2CBus), b.Close(ctx))
		}
		b.bus = bus
		for _, c := range conf.Analogs {
			a, err := newADS1115Analog(bus, c)
			if err != nil {
				return nil, multierr.Combine(err, b.Close(ctx))
			}
			if c.AverageOverMillis > 0 {
				smoother := pinwrappers.SmoothAnalogReader(a, c, logger.Sublogger(c.Name))
				b.smoothers = append(b.smoothers, smoother)
				b.analogs[c.Name] = smoother
				continue
			}
			b.analogs[c.Name] = a
		}
	}
	return b, nil
}

// counterAt returns the capture counter value for t: 62.5ns ticks since the board was opened,
// wrapped to the counter width.
func (b *Board) counterAt(t time.Time) uint32 {
	ticks := t.Sub(b.epoch).Nanoseconds() * 2 / 125
	return uint32(ticks) & board.CounterMax
}

func (b *Board) addDigitalInterrupt(c board.DigitalInterruptConfig) error {
	pin := gpioreg.ByName(c.Pin)
	if pin == nil {
		return errors.Errorf("no gpio pin named %q for interrupt %q", c.Pin, c.Name)
	}
	if err := pin.In(gpio.PullDown, gpio.BothEdges); err != nil {
		return errors.Wrapf(err, "cannot watch edges on pin %q", c.Pin)
	}

	di := &digitalInterrupt{BasicDigitalInterrupt: board.NewBasicDigitalInterrupt(c), pin: pin}
	b.interrupts[c.Name] = di
	b.workers.AddWorkers(func(ctx context.Context) {
		for {
			if ctx.Err() != nil {
				return
			}
			if !pin.WaitForEdge(edgePoll) {
				continue
			}
			counter := b.counterAt(time.Now())
			high := pin.Read() == gpio.High
			if err := di.Tick(ctx, high, counter); err != nil {
				return
			}
		}
	})
	return nil
}

// GPIOPinByName returns the GPIO pin by the given name.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.pins[name]; ok {
		return p, nil
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, errors.Errorf("no global pin found for %q", name)
	}
	p := &gpioPin{pin: pin}
	b.pins[name] = p
	return p, nil
}

// DigitalInterruptByName returns the interrupt by the given name if it exists.
func (b *Board) DigitalInterruptByName(name string) (board.DigitalInterrupt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	di, ok := b.interrupts[name]
	if !ok {
		return nil, errors.Errorf("cant find DigitalInterrupt (%s)", name)
	}
	return di, nil
}

// AnalogByName returns the analog input by the given name if it exists.
func (b *Board) AnalogByName(name string) (board.Analog, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.analogs[name]
	if !ok {
		return nil, errors.Errorf("can't find Analog (%s)", name)
	}
	return a, nil
}

// Close stops the interrupt watchers, halts every pin and releases the I2C bus.
func (b *Board) Close(ctx context.Context) error {
	b.workers.Stop()

	b.mu.Lock()
	defer b.mu.Unlock()
	var errs error
	for _, s := range b.smoothers {
		errs = multierr.Combine(errs, s.Close(ctx))
	}
	for _, di := range b.interrupts {
		errs = multierr.Combine(errs, di.pin.Halt())
	}
	for _, p := range b.pins {
		errs = multierr.Combine(errs, p.pin.Halt())
	}
	if b.bus != nil {
		errs = multierr.Combine(errs, b.bus.Close())
		b.bus = nil
	}
	return errs
}

type digitalInterrupt struct {
	*board.BasicDigitalInterrupt
	pin gpio.PinIO
}
