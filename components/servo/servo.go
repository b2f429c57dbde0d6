// Package servo defines a positional servo, used to point the rover's scanning head.
package servo

import (
	"context"
)

// A Servo represents a physical servo connected to a board.
type Servo interface {
	// Move moves the servo to the given absolute position in degrees. Positions outside the
	// servo's range are clamped to it.
	Move(ctx context.Context, angleDeg uint32) error

	// Position returns the current set angle (degrees) of the servo.
	Position(ctx context.Context) (uint32, error)

	// Stop stops the servo. It is assumed the servo stops immediately.
	Stop(ctx context.Context) error
}
