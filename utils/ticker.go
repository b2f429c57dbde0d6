package utils

import (
	"context"
	"time"

	"github.com/roverworks/navcore/logging"
)

// SlowLogger starts a goroutine that warns every few seconds until the returned func is called
// or the context ends. Motion primitives use it to flag drives that are taking unusually long.
func SlowLogger(ctx context.Context, msg, fieldName string, fieldVal interface{}, logger logging.Logger) func() {
	slowTicker := time.NewTicker(2 * time.Second)
	firstTick := true

	ctxWithCancel, cancel := context.WithCancel(ctx)
	startTime := time.Now()
	go func() {
		for {
			select {
			case <-slowTicker.C:
				elapsed := time.Since(startTime).Round(time.Second).String()
				logger.CWarnw(ctx, msg, fieldName, fieldVal, "time_elapsed", elapsed)
				if firstTick {
					slowTicker.Reset(3 * time.Second)
					firstTick = false
				} else {
					slowTicker.Reset(5 * time.Second)
				}
			case <-ctxWithCancel.Done():
				return
			}
		}
	}()
	return func() { slowTicker.Stop(); cancel() }
}
