package inject

import (
	"context"
	"sync"

	"github.com/roverworks/navcore/components/board"
)

// GPIOPin is an injected GPIOPin.
type GPIOPin struct {
	board.GPIOPin

	SetFunc        func(ctx context.Context, high bool) error
	GetFunc        func(ctx context.Context) (bool, error)
	PWMFunc        func(ctx context.Context) (float64, error)
	SetPWMFunc     func(ctx context.Context, dutyCyclePct float64) error
	PWMFreqFunc    func(ctx context.Context) (uint, error)
	SetPWMFreqFunc func(ctx context.Context, freqHz uint) error

	mu     sync.Mutex
	setCap []interface{}
}

// Set calls the injected Set or the real version.
func (gp *GPIOPin) Set(ctx context.Context, high bool) error {
	gp.mu.Lock()
	gp.setCap = []interface{}{ctx, high}
	gp.mu.Unlock()
	if gp.SetFunc == nil {
		return gp.GPIOPin.Set(ctx, high)
	}
	return gp.SetFunc(ctx, high)
}

// SetCap returns the last parameters received by Set, and then clears them.
func (gp *GPIOPin) SetCap() []interface{} {
	if gp == nil {
		return nil
	}
	gp.mu.Lock()
	defer gp.mu.Unlock()
	defer func() { gp.setCap = nil }()
	return gp.setCap
}

// Get calls the injected Get or the real version.
func (gp *GPIOPin) Get(ctx context.Context) (bool, error) {
	if gp.GetFunc == nil {
		return gp.GPIOPin.Get(ctx)
	}
	return gp.GetFunc(ctx)
}

// PWM calls the injected PWM or the real version.
func (gp *GPIOPin) PWM(ctx context.Context) (float64, error) {
	if gp.PWMFunc == nil {
		return gp.GPIOPin.PWM(ctx)
	}
	return gp.PWMFunc(ctx)
}

// SetPWM calls the injected SetPWM or the real version.
func (gp *GPIOPin) SetPWM(ctx context.Context, dutyCyclePct float64) error {
	if gp.SetPWMFunc == nil {
		return gp.GPIOPin.SetPWM(ctx, dutyCyclePct)
	}
	return gp.SetPWMFunc(ctx, dutyCyclePct)
}

// PWMFreq calls the injected PWMFreq or the real version.
func (gp *GPIOPin) PWMFreq(ctx context.Context) (uint, error) {
	if gp.PWMFreqFunc == nil {
		return gp.GPIOPin.PWMFreq(ctx)
	}
	return gp.PWMFreqFunc(ctx)
}

// SetPWMFreq calls the injected SetPWMFreq or the real version.
func (gp *GPIOPin) SetPWMFreq(ctx context.Context, freqHz uint) error {
	if gp.SetPWMFreqFunc == nil {
		return gp.GPIOPin.SetPWMFreq(ctx, freqHz)
	}
	return gp.SetPWMFreqFunc(ctx, freqHz)
}
