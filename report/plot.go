package report

import (
	"context"
	"fmt"
	"image/color"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/roverworks/navcore/logging"
)

// PlotScan saves the scan's IR profile with the ultrasonic distance of each object at its
// midpoint. The image format follows the extension of path.
func PlotScan(scan Scan, path string) error {
	if len(scan.Profile.Samples) == 0 {
		return errors.New("cannot plot an empty profile")
	}
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Scan %d-%d", scan.Start, scan.End)
	p.X.Label.Text = "Angle (deg)"
	p.Y.Label.Text = "Distance (cm)"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, 0, len(scan.Profile.Samples))
	for _, s := range scan.Profile.Samples {
		pts = append(pts, plotter.XY{X: float64(s.Angle), Y: s.Distance})
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = color.RGBA{B: 200, A: 255}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("ir", line)

	if len(scan.Objects.Objects) > 0 {
		mids := make(plotter.XYs, 0, len(scan.Objects.Objects))
		for _, o := range scan.Objects.Objects {
			mids = append(mids, plotter.XY{X: float64(o.MidpointAngle), Y: o.Distance})
		}
		scatter, err := plotter.NewScatter(mids)
		if err != nil {
			return err
		}
		scatter.GlyphStyle.Color = color.RGBA{R: 220, A: 255}
		scatter.GlyphStyle.Radius = vg.Points(3)
		p.Add(scatter)
		p.Legend.Add("objects", scatter)
	}

	return errors.Wrap(p.Save(10*vg.Inch, 5*vg.Inch, path), "saving scan plot")
}

// PlotReporter saves every scan as a numbered PNG in a directory.
type PlotReporter struct {
	mu     sync.Mutex
	dir    string
	count  int
	logger logging.Logger
}

// NewPlotReporter returns a reporter writing into dir, which must exist.
func NewPlotReporter(dir string, logger logging.Logger) *PlotReporter {
	return &PlotReporter{dir: dir, logger: logger}
}

// ReportScan plots scan into the next numbered file.
func (pr *PlotReporter) ReportScan(ctx context.Context, scan Scan) error {
	pr.mu.Lock()
	pr.count++
	path := filepath.Join(pr.dir, fmt.Sprintf("scan_%03d.png", pr.count))
	pr.mu.Unlock()

	if err := PlotScan(scan, path); err != nil {
		return err
	}
	pr.logger.CDebugf(ctx, "scan plotted to %s", path)
	return nil
}

// ReportPosition does nothing.
func (pr *PlotReporter) ReportPosition(ctx context.Context, pos Position) error {
	return nil
}

// Close does nothing.
func (pr *PlotReporter) Close(ctx context.Context) error {
	return nil
}
