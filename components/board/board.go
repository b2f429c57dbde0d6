// Package board defines the hardware surface a rover's sensors and actuators are wired to:
// GPIO pins, edge interrupts carrying capture-counter timestamps, and analog inputs.
package board

import (
	"context"
)

// CounterBits is the width of the free-running capture counter that timestamps edge ticks.
const CounterBits = 24

// CounterMax is the largest value the capture counter reaches before wrapping to zero.
const CounterMax = 1<<CounterBits - 1

// CounterPeriodNanos is the duration of one capture counter tick.
const CounterPeriodNanos = 62.5

// A Board exposes the named parts the rover's components are built from.
type Board interface {
	// GPIOPinByName returns a GPIOPin by name.
	GPIOPinByName(name string) (GPIOPin, error)

	// DigitalInterruptByName returns a DigitalInterrupt by name.
	DigitalInterruptByName(name string) (DigitalInterrupt, error)

	// AnalogByName returns an Analog by name.
	AnalogByName(name string) (Analog, error)

	// Close releases pins, buses and interrupt watchers.
	Close(ctx context.Context) error
}

// AnalogValue contains all info about the analog reading.
// Value represents the reading in bits.
// Min and Max represent the range of raw analog values.
// StepSize is the volts per bit.
type AnalogValue struct {
	Value    int
	Min      float32
	Max      float32
	StepSize float32
}

// An Analog represents an analog pin reader that resides on a board.
type Analog interface {
	Read(ctx context.Context) (AnalogValue, error)
}

// Tick represents a signal received by an interrupt pin. Counter is the capture counter value
// latched when the edge arrived; it wraps at CounterMax.
type Tick struct {
	Name    string
	High    bool
	Counter uint32
}

// A DigitalInterrupt represents a configured interrupt on the board that
// when interrupted, calls the added callbacks.
type DigitalInterrupt interface {
	// Name returns the name of the interrupt.
	Name() string

	// Value returns the number of ticks seen so far.
	Value(ctx context.Context) (int64, error)

	// AddCallback adds a channel that receives every tick. Sends block, so the listener must
	// drain it.
	AddCallback(c chan Tick)

	// RemoveCallback removes a listener for interrupts.
	RemoveCallback(c chan Tick)
}
