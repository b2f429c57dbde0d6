// Package events carries asynchronous single-byte signals, such as operator keystrokes, from
// whatever goroutine receives them to the control loops that poll for them.
package events

import (
	"go.uber.org/atomic"
)

const pendingBit = 1 << 8

// A Signal holds at most one pending byte. A newer Post overwrites an unconsumed older one, and
// every read or consume is a single atomic operation so a poster never blocks on a reader.
type Signal struct {
	state atomic.Uint32
}

// NewSignal returns an empty Signal.
func NewSignal() *Signal {
	return &Signal{}
}

// Post makes b the pending byte.
func (s *Signal) Post(b byte) {
	s.state.Store(pendingBit | uint32(b))
}

// Peek returns the pending byte without consuming it.
func (s *Signal) Peek() (byte, bool) {
	v := s.state.Load()
	return byte(v), v&pendingBit != 0
}

// Take consumes and returns the pending byte, if any.
func (s *Signal) Take() (byte, bool) {
	v := s.state.Swap(0)
	return byte(v), v&pendingBit != 0
}

// TakeIf consumes the pending byte only when it equals b.
func (s *Signal) TakeIf(b byte) bool {
	return s.state.CompareAndSwap(pendingBit|uint32(b), 0)
}

// Clear drops any pending byte.
func (s *Signal) Clear() {
	s.state.Store(0)
}
