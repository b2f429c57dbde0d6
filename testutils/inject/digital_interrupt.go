package inject

import (
	"context"

	"github.com/roverworks/navcore/components/board"
)

// DigitalInterrupt is an injected digital interrupt.
type DigitalInterrupt struct {
	board.DigitalInterrupt
	NameFunc           func() string
	ValueFunc          func(ctx context.Context) (int64, error)
	AddCallbackFunc    func(c chan board.Tick)
	RemoveCallbackFunc func(c chan board.Tick)
}

// Name calls the injected Name or the real version.
func (d *DigitalInterrupt) Name() string {
	if d.NameFunc == nil {
		return d.DigitalInterrupt.Name()
	}
	return d.NameFunc()
}

// Value calls the injected Value or the real version.
func (d *DigitalInterrupt) Value(ctx context.Context) (int64, error) {
	if d.ValueFunc == nil {
		return d.DigitalInterrupt.Value(ctx)
	}
	return d.ValueFunc(ctx)
}

// AddCallback calls the injected AddCallback or the real version.
func (d *DigitalInterrupt) AddCallback(c chan board.Tick) {
	if d.AddCallbackFunc == nil {
		d.DigitalInterrupt.AddCallback(c)
		return
	}
	d.AddCallbackFunc(c)
}

// RemoveCallback calls the injected RemoveCallback or the real version.
func (d *DigitalInterrupt) RemoveCallback(c chan board.Tick) {
	if d.RemoveCallbackFunc == nil {
		d.DigitalInterrupt.RemoveCallback(c)
		return
	}
	d.RemoveCallbackFunc(c)
}
