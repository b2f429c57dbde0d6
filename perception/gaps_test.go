package perception

import (
	"testing"

	"go.viam.com/test"
)

func TestAnalyzeGapsEmpty(t *testing.T) {
	report := AnalyzeGaps(ObjectList{})
	test.That(t, report.Gaps, test.ShouldBeEmpty)
	_, ok := report.WidestGap()
	test.That(t, ok, test.ShouldBeFalse)
}

func TestAnalyzeGapsSingleObject(t *testing.T) {
	obj := DetectedObject{StartAngle: 59, EndAngle: 100, MidpointAngle: 80, Distance: 30}
	report := AnalyzeGaps(ObjectList{Objects: []DetectedObject{obj}})
	test.That(t, len(report.Gaps), test.ShouldEqual, 1)

	g, ok := report.WidestGap()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, g.Degenerate, test.ShouldBeTrue)
	// an object's own width is not a way through
	test.That(t, report.Passable(0), test.ShouldBeEmpty)
	test.That(t, g.StartAngle, test.ShouldEqual, 59)
	test.That(t, g.EndAngle, test.ShouldEqual, 100)
	test.That(t, g.MidpointAngle, test.ShouldEqual, 79)
	test.That(t, g.Distance, test.ShouldEqual, 30)
	test.That(t, g.LinearWidth, test.ShouldAlmostEqual, LinearWidth(30, 41)-GapMarginCM)
}

func TestAnalyzeGaps(t *testing.T) {
	list := ObjectList{Objects: []DetectedObject{
		{StartAngle: 140, EndAngle: 160, MidpointAngle: 150, Distance: 40},
		{StartAngle: 84, EndAngle: 95, MidpointAngle: 90, Distance: 20},
		{StartAngle: 19, EndAngle: 30, MidpointAngle: 25, Distance: 60},
		{StartAngle: 10, EndAngle: 18, MidpointAngle: 14, Distance: 60},
	}}
	report := AnalyzeGaps(list)
	test.That(t, len(report.Gaps), test.ShouldEqual, 3)

	first := report.Gaps[0]
	test.That(t, first.StartAngle, test.ShouldEqual, 95)
	test.That(t, first.EndAngle, test.ShouldEqual, 140)
	test.That(t, first.MidpointAngle, test.ShouldEqual, 117)
	// the nearer of the two bounding objects
	test.That(t, first.Distance, test.ShouldEqual, 20)
	test.That(t, first.LinearWidth, test.ShouldAlmostEqual, LinearWidth(20, 45)-GapMarginCM)
	test.That(t, first.Degenerate, test.ShouldBeFalse)

	second := report.Gaps[1]
	test.That(t, second.Distance, test.ShouldEqual, 20)
	test.That(t, second.StartAngle, test.ShouldEqual, 30)
	test.That(t, second.EndAngle, test.ShouldEqual, 84)

	// a tight gap clamps to zero instead of going negative
	third := report.Gaps[2]
	test.That(t, third.LinearWidth, test.ShouldEqual, 0)

	widest, ok := report.WidestGap()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, widest, test.ShouldResemble, second)
	test.That(t, len(report.Passable(10)), test.ShouldEqual, 2)
	test.That(t, len(report.Passable(1000)), test.ShouldEqual, 0)
}
