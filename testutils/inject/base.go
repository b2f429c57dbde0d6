package inject

import (
	"context"
	"sync"

	"github.com/roverworks/navcore/components/base"
)

// Drivetrain is an injected drivetrain.
type Drivetrain struct {
	base.Drivetrain
	SetWheelPowerFunc func(ctx context.Context, left, right int) error
	UpdateFunc        func(ctx context.Context) (base.SensorFrame, error)
	CloseFunc         func(ctx context.Context) error

	mu       sync.Mutex
	powerCap []interface{}
}

// SetWheelPower calls the injected SetWheelPower or the real version.
func (d *Drivetrain) SetWheelPower(ctx context.Context, left, right int) error {
	d.mu.Lock()
	d.powerCap = []interface{}{ctx, left, right}
	d.mu.Unlock()
	if d.SetWheelPowerFunc == nil {
		return d.Drivetrain.SetWheelPower(ctx, left, right)
	}
	return d.SetWheelPowerFunc(ctx, left, right)
}

// SetWheelPowerCap returns the last parameters received by SetWheelPower, and then clears them.
func (d *Drivetrain) SetWheelPowerCap() []interface{} {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	defer func() { d.powerCap = nil }()
	return d.powerCap
}

// Update calls the injected Update or the real version.
func (d *Drivetrain) Update(ctx context.Context) (base.SensorFrame, error) {
	if d.UpdateFunc == nil {
		return d.Drivetrain.Update(ctx)
	}
	return d.UpdateFunc(ctx)
}

// Close calls the injected Close or the real version.
func (d *Drivetrain) Close(ctx context.Context) error {
	if d.CloseFunc == nil {
		if d.Drivetrain == nil {
			return nil
		}
		return d.Drivetrain.Close(ctx)
	}
	return d.CloseFunc(ctx)
}
