package control

import "sync"

// A Deadband integrates an error signal and emits a unit step each time the integral leaves
// [-band, band], resetting the integral when it does.
type Deadband struct {
	mu   sync.Mutex
	band float64
	acc  float64
}

// NewDeadband returns a deadband of half-width band.
func NewDeadband(band float64) *Deadband {
	return &Deadband{band: band}
}

// Next adds x to the integral and returns +1 if it rose above the band, -1 if it fell below it
// and 0 otherwise.
func (d *Deadband) Next(x float64) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acc += x
	switch {
	case d.acc > d.band:
		d.acc = 0
		return 1
	case d.acc < -d.band:
		d.acc = 0
		return -1
	default:
		return 0
	}
}

// Value returns the current integral.
func (d *Deadband) Value() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.acc
}

// Reset zeroes the integral.
func (d *Deadband) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acc = 0
}
