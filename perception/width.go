package perception

import (
	"math"

	"github.com/roverworks/navcore/utils"
)

// SensorOffsetCM is the distance from the ranging sensors to the scanner's pivot.
const SensorOffsetCM = 4.0

// LinearWidth projects an angular span seen at distance onto a linear extent in cm. Zero or
// inverted spans have no width.
func LinearWidth(distance float64, spanDeg int) float64 {
	if spanDeg <= 0 {
		return 0
	}
	w := 2 * (distance + SensorOffsetCM) * math.Tan(utils.DegToRad(float64(spanDeg))/2)
	return math.Max(w, 0)
}
