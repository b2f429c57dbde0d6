package perception

import (
	"math"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	goutils "go.viam.com/utils"

	"github.com/roverworks/navcore/utils"
)

// Geometry describes the rover and the sectors used to decide which objects are in its way.
// A zero HalfWidthCM or BudgetCM takes the default; MarginCM and CenterHalfDeg take it only
// when unset, so an explicit 0 is kept.
type Geometry struct {
	HalfWidthCM   float64  `json:"half_width_cm,omitempty"`
	BudgetCM      float64  `json:"budget_cm,omitempty"`
	MarginCM      *float64 `json:"margin_cm,omitempty"`
	CenterHalfDeg *int     `json:"center_half_deg,omitempty"`
}

// Default clearance geometry.
const (
	DefaultHalfWidthCM   = 17.5
	DefaultBudgetCM      = 50.0
	DefaultCenterHalfDeg = 17
	centerMarginCM       = 5.0
)

// DefaultGeometry returns the geometry of the stock rover.
func DefaultGeometry() Geometry {
	return Geometry{
		HalfWidthCM:   DefaultHalfWidthCM,
		BudgetCM:      DefaultBudgetCM,
		MarginCM:      lo.ToPtr(SensorOffsetCM),
		CenterHalfDeg: lo.ToPtr(DefaultCenterHalfDeg),
	}
}

// Validate ensures all parts of the config are valid.
func (g *Geometry) Validate(path string) error {
	if g.HalfWidthCM < 0 {
		return goutils.NewConfigValidationError(path, errors.New("half_width_cm cannot be negative"))
	}
	if g.BudgetCM < 0 {
		return goutils.NewConfigValidationError(path, errors.New("budget_cm cannot be negative"))
	}
	if lo.FromPtr(g.MarginCM) < 0 {
		return goutils.NewConfigValidationError(path, errors.New("margin_cm cannot be negative"))
	}
	if half := lo.FromPtr(g.CenterHalfDeg); half < 0 || half >= Heading {
		return goutils.NewConfigValidationError(path, errors.Errorf("center_half_deg must be within [0, %d)", Heading))
	}
	return nil
}

// WithDefaults returns g with zero or unset fields replaced by the defaults.
func (g Geometry) WithDefaults() Geometry {
	d := DefaultGeometry()
	if g.HalfWidthCM == 0 {
		g.HalfWidthCM = d.HalfWidthCM
	}
	if g.BudgetCM == 0 {
		g.BudgetCM = d.BudgetCM
	}
	if g.MarginCM == nil {
		g.MarginCM = d.MarginCM
	}
	if g.CenterHalfDeg == nil {
		g.CenterHalfDeg = d.CenterHalfDeg
	}
	return g
}

// Clearance returns how far the rover can drive straight ahead, in cm, before reaching an object.
// Objects left of the center sector (>107 deg by default) and right of it (<73 deg) only count
// when they fall inside the triangle swept by the rover's side; objects in the center sector
// count at their own distance less two margins. The result is never above the budget and never
// negative; 0 means blocked.
func Clearance(list ObjectList, g Geometry) float64 {
	g = g.WithDefaults()
	budget := g.BudgetCM
	margin := *g.MarginCM
	left := Heading + *g.CenterHalfDeg
	right := Heading - *g.CenterHalfDeg

	for _, o := range list.Objects {
		mid := o.MidpointAngle
		switch {
		case mid > left:
			offset := utils.DegToRad(float64(180 - mid))
			threshold := g.HalfWidthCM / math.Cos(offset)
			if threshold > o.Distance+margin && o.Distance < budget {
				// the left side measures its run from one degree past the mirror angle
				budget = o.Distance*math.Sin(utils.DegToRad(float64(181-mid))) - margin
			}
		case mid >= right:
			t := o.Distance - centerMarginCM
			if t < budget {
				budget = t - centerMarginCM
			}
		default:
			if o.Distance <= 0 {
				continue
			}
			offset := utils.DegToRad(float64(mid))
			threshold := g.HalfWidthCM / math.Cos(offset)
			if threshold > o.Distance+margin && o.Distance < budget {
				budget = o.Distance*math.Sin(offset) - margin
			}
		}
	}
	return math.Max(budget, 0)
}
