package inject

import (
	"context"

	"github.com/roverworks/navcore/perception"
)

// Scanner is an injected scanning head.
type Scanner struct {
	ScanDetailedFunc func(ctx context.Context, start, end int) (perception.ObjectList, perception.Profile, error)
}

// ScanDetailed calls the injected ScanDetailed.
func (s *Scanner) ScanDetailed(ctx context.Context, start, end int) (perception.ObjectList, perception.Profile, error) {
	return s.ScanDetailedFunc(ctx, start, end)
}
