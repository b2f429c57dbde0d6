package perception

import (
	"math"
	"testing"

	"github.com/samber/lo"
	"go.viam.com/test"
)

func TestClearance(t *testing.T) {
	g := DefaultGeometry()
	one := func(mid int, distance float64) ObjectList {
		return ObjectList{Objects: []DetectedObject{{StartAngle: mid - 5, EndAngle: mid + 5, MidpointAngle: mid, Distance: distance}}}
	}

	t.Run("nothing in the way", func(t *testing.T) {
		test.That(t, Clearance(ObjectList{}, g), test.ShouldEqual, DefaultBudgetCM)
		test.That(t, Clearance(ObjectList{}, Geometry{}), test.ShouldEqual, DefaultBudgetCM)
	})

	t.Run("center", func(t *testing.T) {
		test.That(t, Clearance(one(90, 30), g), test.ShouldAlmostEqual, 20)
		test.That(t, Clearance(one(73, 30), g), test.ShouldAlmostEqual, 20)
		test.That(t, Clearance(one(107, 30), g), test.ShouldAlmostEqual, 20)
		// too far to matter
		test.That(t, Clearance(one(90, 70), g), test.ShouldEqual, DefaultBudgetCM)
	})

	t.Run("blocked", func(t *testing.T) {
		test.That(t, Clearance(one(90, 3), g), test.ShouldEqual, 0)
	})

	t.Run("left conflict zone", func(t *testing.T) {
		test.That(t, Clearance(one(150, 15), g), test.ShouldAlmostEqual, 15*math.Sin(31*math.Pi/180)-4)
		// one degree wider than the mirrored right side
		test.That(t, Clearance(one(150, 15), g), test.ShouldBeGreaterThan, Clearance(one(30, 15), g))
		// outside the swept triangle
		test.That(t, Clearance(one(150, 30), g), test.ShouldEqual, DefaultBudgetCM)
	})

	t.Run("right conflict zone", func(t *testing.T) {
		test.That(t, Clearance(one(30, 15), g), test.ShouldAlmostEqual, 15*math.Sin(math.Pi/6)-4)
		test.That(t, Clearance(one(30, 0), g), test.ShouldEqual, DefaultBudgetCM)
	})

	t.Run("tightest wins", func(t *testing.T) {
		list := ObjectList{Objects: []DetectedObject{
			{MidpointAngle: 150, Distance: 15},
			{MidpointAngle: 90, Distance: 40},
			{MidpointAngle: 30, Distance: 60},
		}}
		test.That(t, Clearance(list, g), test.ShouldAlmostEqual, 15*math.Sin(31*math.Pi/180)-4)
	})

	t.Run("explicit zero margin is kept", func(t *testing.T) {
		noMargin := Geometry{MarginCM: lo.ToPtr(0.0)}
		test.That(t, Clearance(one(30, 15), noMargin), test.ShouldAlmostEqual, 15*math.Sin(math.Pi/6))
		// no center sector: an object at 100 deg falls in the left zone
		noCenter := Geometry{CenterHalfDeg: lo.ToPtr(0)}
		test.That(t, *noCenter.WithDefaults().CenterHalfDeg, test.ShouldEqual, 0)
		test.That(t, Clearance(one(100, 30), noCenter), test.ShouldAlmostEqual, 30*math.Sin(81*math.Pi/180)-4)
	})

	t.Run("never above the budget", func(t *testing.T) {
		for mid := 0; mid <= 180; mid += 3 {
			for d := 1.; d < 120; d += 7 {
				c := Clearance(one(mid, d), g)
				test.That(t, c, test.ShouldBeLessThanOrEqualTo, DefaultBudgetCM)
				test.That(t, c, test.ShouldBeGreaterThanOrEqualTo, 0)
			}
		}
	})
}

func TestGeometryValidate(t *testing.T) {
	g := DefaultGeometry()
	test.That(t, g.Validate("clearance"), test.ShouldBeNil)

	g.CenterHalfDeg = lo.ToPtr(90)
	test.That(t, g.Validate("clearance"), test.ShouldNotBeNil)

	g = Geometry{MarginCM: lo.ToPtr(-1.0)}
	test.That(t, g.Validate("clearance"), test.ShouldNotBeNil)
	test.That(t, (&Geometry{MarginCM: lo.ToPtr(0.0)}).Validate("clearance"), test.ShouldBeNil)

	g = Geometry{HalfWidthCM: -1}
	test.That(t, g.Validate("clearance"), test.ShouldNotBeNil)

	test.That(t, Geometry{}.WithDefaults(), test.ShouldResemble, DefaultGeometry())
}
