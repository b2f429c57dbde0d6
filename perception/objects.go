// Package perception turns an angular distance profile into obstacles, gaps between them and the
// clear distance straight ahead.
package perception

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/roverworks/navcore/utils"
)

// Heading is the scanner angle that points straight ahead.
const Heading = 90

// A Sample is one averaged distance reading taken with the scanner at Angle degrees.
type Sample struct {
	Angle    int
	Distance float64
}

// A Profile holds exactly one sample per integer degree from Start to End inclusive.
type Profile struct {
	Samples []Sample
}

// NewProfile builds a profile whose first distance is at angle start.
func NewProfile(start int, distances []float64) Profile {
	samples := make([]Sample, len(distances))
	for i, d := range distances {
		samples[i] = Sample{Angle: start + i, Distance: d}
	}
	return Profile{Samples: samples}
}

// Start returns the lowest angle in the profile.
func (p Profile) Start() int {
	if len(p.Samples) == 0 {
		return 0
	}
	return p.Samples[0].Angle
}

// End returns the highest angle in the profile.
func (p Profile) End() int {
	if len(p.Samples) == 0 {
		return -1
	}
	return p.Samples[len(p.Samples)-1].Angle
}

// Covers reports whether the profile has a sample for every angle of [start, end].
func (p Profile) Covers(start, end int) bool {
	return len(p.Samples) > 0 && start >= p.Start() && end <= p.End()
}

// Distance returns the distance recorded at angle. The angle must be covered by the profile.
func (p Profile) Distance(angle int) float64 {
	return p.Samples[angle-p.Start()].Distance
}

// Distances returns the recorded distances in angle order.
func (p Profile) Distances() []float64 {
	return lo.Map(p.Samples, func(s Sample, _ int) float64 { return s.Distance })
}

// A DetectedObject is a contiguous run of near readings confirmed by the ultrasonic sensor.
// EndAngle is the angle nearer 180.
type DetectedObject struct {
	StartAngle    int
	EndAngle      int
	MidpointAngle int
	Distance      float64
	LinearWidth   float64
}

// Span returns the object's angular extent in degrees.
func (o DetectedObject) Span() int {
	return o.EndAngle - o.StartAngle
}

// Position returns the object's midpoint in the scanner frame, x to the right and y ahead, in cm.
func (o DetectedObject) Position() r3.Vector {
	rad := utils.DegToRad(float64(o.MidpointAngle))
	return r3.Vector{X: o.Distance * math.Cos(rad), Y: o.Distance * math.Sin(rad)}
}

// MaxObjects is the default capacity of an ObjectList.
const MaxObjects = 10

// ErrNoObjects is returned by queries on an empty list.
var ErrNoObjects = errors.New("no objects detected")

// An ObjectList is the result of one segmentation, ordered by discovery from the highest angle
// to the lowest. Dropped counts qualifying candidates turned away because the list was full.
type ObjectList struct {
	Objects []DetectedObject
	Dropped int
}

// Len returns the number of detected objects.
func (l ObjectList) Len() int {
	return len(l.Objects)
}

// Nearest returns the object with the smallest distance.
func (l ObjectList) Nearest() (DetectedObject, error) {
	if len(l.Objects) == 0 {
		return DetectedObject{}, ErrNoObjects
	}
	return lo.MinBy(l.Objects, func(a, b DetectedObject) bool { return a.Distance < b.Distance }), nil
}

// Narrowest returns the object with the smallest linear width.
func (l ObjectList) Narrowest() (DetectedObject, error) {
	if len(l.Objects) == 0 {
		return DetectedObject{}, ErrNoObjects
	}
	return lo.MinBy(l.Objects, func(a, b DetectedObject) bool { return a.LinearWidth < b.LinearWidth }), nil
}

// Positions returns every object's midpoint in the scanner frame.
func (l ObjectList) Positions() []r3.Vector {
	return lo.Map(l.Objects, func(o DetectedObject, _ int) r3.Vector { return o.Position() })
}
