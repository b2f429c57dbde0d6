package periph

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// defaultPWMFreq is used when SetPWM is called before SetPWMFreq; it suits hobby servos.
const defaultPWMFreq = 50 * physic.Hertz

type gpioPin struct {
	mu   sync.Mutex
	pin  gpio.PinIO
	duty gpio.Duty
	freq physic.Frequency
}

func (gp *gpioPin) Set(ctx context.Context, high bool) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	gp.duty = 0
	l := gpio.Low
	if high {
		l = gpio.High
	}
	return gp.pin.Out(l)
}

func (gp *gpioPin) Get(ctx context.Context) (bool, error) {
	return gp.pin.Read() == gpio.High, nil
}

func (gp *gpioPin) PWM(ctx context.Context) (float64, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return float64(gp.duty) / float64(gpio.DutyMax), nil
}

func (gp *gpioPin) SetPWM(ctx context.Context, dutyCyclePct float64) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	if dutyCyclePct < 0 || dutyCyclePct > 1 {
		return errors.Errorf("duty cycle %.3f out of range [0, 1]", dutyCyclePct)
	}
	freq := gp.freq
	if freq == 0 {
		freq = defaultPWMFreq
	}
	duty := gpio.Duty(dutyCyclePct * float64(gpio.DutyMax))
	if err := gp.pin.PWM(duty, freq); err != nil {
		return errors.Wrapf(err, "pin %s does not support hardware pwm", gp.pin.Name())
	}
	gp.duty = duty
	return nil
}

func (gp *gpioPin) PWMFreq(ctx context.Context) (uint, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return uint(gp.freq / physic.Hertz), nil
}

func (gp *gpioPin) SetPWMFreq(ctx context.Context, freqHz uint) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	gp.freq = physic.Frequency(freqHz) * physic.Hertz
	if gp.duty == 0 {
		return nil
	}
	freq := gp.freq
	if freq == 0 {
		freq = defaultPWMFreq
	}
	return gp.pin.PWM(gp.duty, freq)
}
