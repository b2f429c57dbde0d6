package board

import (
	"context"
	"sync"
	"sync/atomic"
)

// BasicDigitalInterrupt counts ticks and fans them out to every registered callback. Board
// implementations embed it and feed it from whatever watches the physical pin.
type BasicDigitalInterrupt struct {
	name  string
	count atomic.Int64

	mu        sync.RWMutex
	callbacks []chan Tick
}

// NewBasicDigitalInterrupt returns an interrupt with no listeners.
func NewBasicDigitalInterrupt(conf DigitalInterruptConfig) *BasicDigitalInterrupt {
	return &BasicDigitalInterrupt{name: conf.Name}
}

// Name returns the name of the interrupt.
func (i *BasicDigitalInterrupt) Name() string {
	return i.name
}

// Value returns the number of ticks seen so far.
func (i *BasicDigitalInterrupt) Value(ctx context.Context) (int64, error) {
	return i.count.Load(), nil
}

// Tick records an edge and delivers it to every callback. It blocks until each callback has
// received it or ctx ends.
func (i *BasicDigitalInterrupt) Tick(ctx context.Context, high bool, counter uint32) error {
	i.count.Add(1)

	i.mu.RLock()
	defer i.mu.RUnlock()
	for _, c := range i.callbacks {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c <- Tick{Name: i.name, High: high, Counter: counter}:
		}
	}
	return nil
}

// AddCallback adds a listener for interrupts.
func (i *BasicDigitalInterrupt) AddCallback(c chan Tick) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.callbacks = append(i.callbacks, c)
}

// RemoveCallback removes a listener for interrupts.
func (i *BasicDigitalInterrupt) RemoveCallback(c chan Tick) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for id := range i.callbacks {
		if i.callbacks[id] == c {
			i.callbacks = append(i.callbacks[:id], i.callbacks[id+1:]...)
			return
		}
	}
}
