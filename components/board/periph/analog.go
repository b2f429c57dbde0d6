package periph

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"

	"github.com/roverworks/navcore/components/board"
)

const (
	defaultADCMaxVoltage = 5 * physic.Volt
	defaultADCRate       = 128 * physic.Hertz
	// the ADS1115 reports signed 16-bit codes
	ads1115FullScale = 1 << 15
)

var adcChannels = []ads1x15.Channel{ads1x15.Channel0, ads1x15.Channel1, ads1x15.Channel2, ads1x15.Channel3}

type adcPin interface {
	Read() (analog.Sample, error)
}

// ads1115Analog reads one single-ended channel of an ADS1115.
type ads1115Analog struct {
	mu       sync.Mutex
	pin      adcPin
	maxVolts float32
}

func newADS1115Analog(bus i2c.Bus, conf board.AnalogConfig) (*ads1115Analog, error) {
	opts := ads1x15.DefaultOpts
	if conf.Address != 0 {
		opts.I2cAddress = conf.Address
	}
	dev, err := ads1x15.NewADS1115(bus, &opts)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open ADS1115 for analog %q", conf.Name)
	}

	maxVoltage := defaultADCMaxVoltage
	if conf.MaxVoltage > 0 {
		maxVoltage = physic.ElectricPotential(conf.MaxVoltage * float64(physic.Volt))
	}
	rate := defaultADCRate
	if conf.SamplesPerSecond > 0 {
		rate = physic.Frequency(conf.SamplesPerSecond) * physic.Hertz
	}
	pin, err := dev.PinForChannel(adcChannels[conf.Channel], maxVoltage, rate, ads1x15.BestQuality)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open ADS1115 channel %d for analog %q", conf.Channel, conf.Name)
	}
	return &ads1115Analog{pin: pin, maxVolts: float32(float64(maxVoltage) / float64(physic.Volt))}, nil
}

func (a *ads1115Analog) Read(ctx context.Context) (board.AnalogValue, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	sample, err := a.pin.Read()
	if err != nil {
		return board.AnalogValue{}, err
	}
	return board.AnalogValue{
		Value:    int(sample.Raw),
		Min:      0,
		Max:      a.maxVolts,
		StepSize: a.maxVolts / ads1115FullScale,
	}, nil
}
