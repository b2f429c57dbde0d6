package inject

import (
	"context"

	"github.com/roverworks/navcore/components/servo"
)

// Servo is an injected servo.
type Servo struct {
	servo.Servo
	MoveFunc     func(ctx context.Context, angleDeg uint32) error
	PositionFunc func(ctx context.Context) (uint32, error)
	StopFunc     func(ctx context.Context) error
}

// Move calls the injected Move or the real version.
func (s *Servo) Move(ctx context.Context, angleDeg uint32) error {
	if s.MoveFunc == nil {
		return s.Servo.Move(ctx, angleDeg)
	}
	return s.MoveFunc(ctx, angleDeg)
}

// Position calls the injected Position or the real version.
func (s *Servo) Position(ctx context.Context) (uint32, error) {
	if s.PositionFunc == nil {
		return s.Servo.Position(ctx)
	}
	return s.PositionFunc(ctx)
}

// Stop calls the injected Stop or the real version.
func (s *Servo) Stop(ctx context.Context) error {
	if s.StopFunc == nil {
		return s.Servo.Stop(ctx)
	}
	return s.StopFunc(ctx)
}
