// Package report publishes scan results and the rover's position estimate.
package report

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/roverworks/navcore/perception"
)

// A Scan is everything learned from one sweep.
type Scan struct {
	Time      time.Time
	Start     int
	End       int
	Profile   perception.Profile
	Objects   perception.ObjectList
	Gaps      perception.GapReport
	Clearance float64

	// RoverWidthCM is the width a gap must reach to be passable. 0 skips the check.
	RoverWidthCM float64
}

// A Position is the rover's estimate relative to its last scan. Heading 90 faces the scanned
// direction.
type Position struct {
	BudgetCM   float64 `json:"budget_cm"`
	HeadingDeg int     `json:"heading_deg"`
}

// A Reporter receives scans and position updates.
type Reporter interface {
	ReportScan(ctx context.Context, scan Scan) error
	ReportPosition(ctx context.Context, pos Position) error
	Close(ctx context.Context) error
}

// Multi fans out to several reporters. Reports run concurrently, one failing reporter does not
// cancel the others, and every error is kept.
type Multi []Reporter

func (m Multi) each(ctx context.Context, f func(ctx context.Context, r Reporter) error) error {
	errs := make([]error, len(m))
	var g errgroup.Group
	for i, r := range m {
		i, r := i, r
		g.Go(func() error {
			errs[i] = f(ctx, r)
			return errs[i]
		})
	}
	if err := g.Wait(); err == nil {
		return nil
	}
	return multierr.Combine(errs...)
}

// ReportScan sends scan to every reporter.
func (m Multi) ReportScan(ctx context.Context, scan Scan) error {
	return m.each(ctx, func(ctx context.Context, r Reporter) error {
		return r.ReportScan(ctx, scan)
	})
}

// ReportPosition sends pos to every reporter.
func (m Multi) ReportPosition(ctx context.Context, pos Position) error {
	return m.each(ctx, func(ctx context.Context, r Reporter) error {
		return r.ReportPosition(ctx, pos)
	})
}

// Close closes every reporter.
func (m Multi) Close(ctx context.Context) error {
	return m.each(ctx, func(ctx context.Context, r Reporter) error {
		return r.Close(ctx)
	})
}
