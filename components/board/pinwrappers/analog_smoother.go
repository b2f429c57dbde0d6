// Package pinwrappers wraps basic board parts with extra behavior, such as averaging a noisy
// analog input in the background.
package pinwrappers

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/roverworks/navcore/components/board"
	"github.com/roverworks/navcore/logging"
	"github.com/roverworks/navcore/utils"
)

var errStopReading = errors.New("stop reading")

// An AnalogSmoother smooths the readings out from an underlying reader.
type AnalogSmoother struct {
	Raw               board.Analog
	AverageOverMillis int
	SamplesPerSecond  int

	mu        sync.Mutex
	data      *utils.RollingAverage
	lastData  int
	lastError error
	analogVal board.AnalogValue

	logger  logging.Logger
	workers utils.StoppableWorkers
}

// SmoothAnalogReader wraps the given reader in a smoother.
func SmoothAnalogReader(r board.Analog, c board.AnalogConfig, logger logging.Logger) *AnalogSmoother {
	smoother := &AnalogSmoother{
		Raw:               r,
		AverageOverMillis: c.AverageOverMillis,
		SamplesPerSecond:  c.SamplesPerSecond,
		logger:            logger,
	}
	if smoother.SamplesPerSecond <= 0 {
		logger.Debug("Can't read nonpositive samples per second; defaulting to 1 instead")
		smoother.SamplesPerSecond = 1
	}

	analogVal, err := smoother.Raw.Read(context.Background())
	smoother.lastError = err
	smoother.analogVal = analogVal
	smoother.lastData = analogVal.Value
	smoother.Start()
	return smoother
}

// Close stops the smoothing routine.
func (as *AnalogSmoother) Close(ctx context.Context) error {
	as.workers.Stop()
	return nil
}

// Read returns the smoothed out reading.
func (as *AnalogSmoother) Read(ctx context.Context) (board.AnalogValue, error) {
	as.mu.Lock()
	defer as.mu.Unlock()

	analogVal := board.AnalogValue{
		Min:      as.analogVal.Min,
		Max:      as.analogVal.Max,
		StepSize: as.analogVal.StepSize,
	}
	if as.data == nil {
		analogVal.Value = as.lastData
		return analogVal, as.lastError
	}
	analogVal.Value = as.data.Average()
	return analogVal, as.lastError
}

// Start begins the smoothing routine that reads from the underlying analog reader. The window
// holds SamplesPerSecond*AverageOverMillis/1000 readings; a window under one reading means the
// raw value is passed through.
func (as *AnalogSmoother) Start() {
	numSamples := (as.SamplesPerSecond * as.AverageOverMillis) / 1000
	nanosBetween := 1e9 / as.SamplesPerSecond
	if numSamples >= 1 {
		as.data = utils.NewRollingAverage(numSamples)
	} else {
		as.logger.Debug("Too few samples to smooth over; defaulting to raw data.")
		as.data = nil
	}

	as.workers = utils.NewStoppableWorkers(func(ctx context.Context) {
		consecutiveErrors := 0
		var lastError error
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			start := time.Now()
			reading, err := as.Raw.Read(ctx)

			as.mu.Lock()
			as.lastError = err
			if err == nil {
				as.lastData = reading.Value
				if as.data != nil {
					as.data.Add(reading.Value)
				}
			}
			as.mu.Unlock()

			if err == nil {
				consecutiveErrors = 0
			} else {
				if errors.Is(err, errStopReading) {
					return
				}
				if lastError != nil && err.Error() == lastError.Error() {
					consecutiveErrors++
				} else {
					as.logger.CWarnw(ctx, "error reading analog", "error", err)
					consecutiveErrors = 0
				}
				// only remind us of the problem every 10 seconds
				if consecutiveErrors == (as.SamplesPerSecond * 10) {
					as.logger.Errorw("unable to read analog for 10 seconds", "error", err)
					consecutiveErrors = 0
				}
			}
			lastError = err

			toSleep := time.Duration(int64(nanosBetween) - time.Since(start).Nanoseconds())
			if !goutils.SelectContextOrWait(ctx, toSleep) {
				return
			}
		}
	})
}
