package perception

import (
	"math"

	"github.com/samber/lo"
)

// GapMarginCM is taken off every gap width before comparison.
const GapMarginCM = 6.0

// A Gap is the open interval between the facing edges of two adjacent objects. A degenerate gap
// is built from a lone object's own edges.
type Gap struct {
	StartAngle    int
	EndAngle      int
	MidpointAngle int
	Distance      float64
	LinearWidth   float64
	Degenerate    bool
}

// A GapReport lists every gap in discovery order and which one is widest.
type GapReport struct {
	Gaps []Gap
	// Widest indexes Gaps, or is -1 when there are none.
	Widest int
}

// WidestGap returns the widest gap, or false when there are none.
func (r GapReport) WidestGap() (Gap, bool) {
	if r.Widest < 0 || r.Widest >= len(r.Gaps) {
		return Gap{}, false
	}
	return r.Gaps[r.Widest], true
}

// Passable returns the gaps between two objects that are at least width cm wide.
func (r GapReport) Passable(width float64) []Gap {
	return lo.Filter(r.Gaps, func(g Gap, _ int) bool { return !g.Degenerate && g.LinearWidth >= width })
}

func newGap(start, end int, distance float64, degenerate bool) Gap {
	return Gap{
		StartAngle:    start,
		EndAngle:      end,
		MidpointAngle: start + (end-start)/2,
		Distance:      distance,
		LinearWidth:   math.Max(LinearWidth(distance, end-start)-GapMarginCM, 0),
		Degenerate:    degenerate,
	}
}

// AnalyzeGaps measures the gap between each pair of adjacent objects using the nearer of the two
// distances. With a single object the report holds one degenerate gap spanning that object.
func AnalyzeGaps(list ObjectList) GapReport {
	report := GapReport{Widest: -1}
	objs := list.Objects
	switch len(objs) {
	case 0:
		return report
	case 1:
		o := objs[0]
		report.Gaps = []Gap{newGap(o.StartAngle, o.EndAngle, o.Distance, true)}
		report.Widest = 0
		return report
	}

	for i := 1; i < len(objs); i++ {
		prev, curr := objs[i-1], objs[i]
		g := newGap(curr.EndAngle, prev.StartAngle, math.Min(prev.Distance, curr.Distance), false)
		report.Gaps = append(report.Gaps, g)
		if report.Widest < 0 || g.LinearWidth > report.Gaps[report.Widest].LinearWidth {
			report.Widest = len(report.Gaps) - 1
		}
	}
	return report
}
