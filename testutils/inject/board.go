// Package inject provides test doubles whose behavior is injected per test through func fields.
// A nil func falls back to the embedded real implementation.
package inject

import (
	"context"

	"github.com/roverworks/navcore/components/board"
)

// Board is an injected board.
type Board struct {
	board.Board
	GPIOPinByNameFunc          func(name string) (board.GPIOPin, error)
	DigitalInterruptByNameFunc func(name string) (board.DigitalInterrupt, error)
	AnalogByNameFunc           func(name string) (board.Analog, error)
	CloseFunc                  func(ctx context.Context) error
}

// GPIOPinByName calls the injected GPIOPinByName or the real version.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	if b.GPIOPinByNameFunc == nil {
		return b.Board.GPIOPinByName(name)
	}
	return b.GPIOPinByNameFunc(name)
}

// DigitalInterruptByName calls the injected DigitalInterruptByName or the real version.
func (b *Board) DigitalInterruptByName(name string) (board.DigitalInterrupt, error) {
	if b.DigitalInterruptByNameFunc == nil {
		return b.Board.DigitalInterruptByName(name)
	}
	return b.DigitalInterruptByNameFunc(name)
}

// AnalogByName calls the injected AnalogByName or the real version.
func (b *Board) AnalogByName(name string) (board.Analog, error) {
	if b.AnalogByNameFunc == nil {
		return b.Board.AnalogByName(name)
	}
	return b.AnalogByNameFunc(name)
}

// Close calls the injected Close or the real version.
func (b *Board) Close(ctx context.Context) error {
	if b.CloseFunc == nil {
		if b.Board == nil {
			return nil
		}
		return b.Board.Close(ctx)
	}
	return b.CloseFunc(ctx)
}

// Analog is an injected analog input.
type Analog struct {
	board.Analog
	ReadFunc func(ctx context.Context) (board.AnalogValue, error)
	readCap  []interface{}
}

// Read calls the injected Read or the real version.
func (a *Analog) Read(ctx context.Context) (board.AnalogValue, error) {
	a.readCap = []interface{}{ctx}
	if a.ReadFunc == nil {
		return a.Analog.Read(ctx)
	}
	return a.ReadFunc(ctx)
}

// ReadCap returns the last parameters received by Read, and then clears them.
func (a *Analog) ReadCap() []interface{} {
	if a == nil {
		return nil
	}
	defer func() { a.readCap = nil }()
	return a.readCap
}
