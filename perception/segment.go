package perception

import (
	"context"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	goutils "go.viam.com/utils"

	"github.com/roverworks/navcore/components/sensor/ultrasonic"
	"github.com/roverworks/navcore/logging"
)

// Default segmentation parameters, in cm and degrees.
const (
	DefaultEdgeThreshold         = 20
	DefaultDetectionRadius       = 80
	DefaultDisqualificationWidth = 2
)

// A Confirmer measures the distance at a single scanner angle with a second, more reliable
// sensor.
type Confirmer interface {
	DistanceAt(ctx context.Context, angle int) (float64, error)
}

// ConfirmerFunc adapts a function to a Confirmer.
type ConfirmerFunc func(ctx context.Context, angle int) (float64, error)

// DistanceAt calls f.
func (f ConfirmerFunc) DistanceAt(ctx context.Context, angle int) (float64, error) {
	return f(ctx, angle)
}

// SegmentationConfig tunes the segmenter. Zero fields take the defaults; DisqualificationWidth
// takes it only when unset, so an explicit 0 keeps every candidate wider than one sample.
type SegmentationConfig struct {
	EdgeThreshold         float64 `json:"edge_threshold_cm,omitempty"`
	DetectionRadius       float64 `json:"detection_radius_cm,omitempty"`
	DisqualificationWidth *int    `json:"disqualification_width_deg,omitempty"`
	MaxObjects            int     `json:"max_objects,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (config *SegmentationConfig) Validate(path string) error {
	if config.EdgeThreshold < 0 {
		return goutils.NewConfigValidationError(path, errors.New("edge_threshold_cm cannot be negative"))
	}
	if config.DetectionRadius < 0 {
		return goutils.NewConfigValidationError(path, errors.New("detection_radius_cm cannot be negative"))
	}
	if lo.FromPtr(config.DisqualificationWidth) < 0 {
		return goutils.NewConfigValidationError(path, errors.New("disqualification_width_deg cannot be negative"))
	}
	if config.MaxObjects < 0 {
		return goutils.NewConfigValidationError(path, errors.New("max_objects cannot be negative"))
	}
	return nil
}

// A Segmenter finds objects in a profile with a single backward pass.
type Segmenter struct {
	edgeThreshold float64
	radius        float64
	disqualify    int
	capacity      int
	logger        logging.Logger
}

// NewSegmenter returns a segmenter using conf, with zero or unset fields replaced by defaults.
func NewSegmenter(conf SegmentationConfig, logger logging.Logger) *Segmenter {
	s := &Segmenter{
		edgeThreshold: conf.EdgeThreshold,
		radius:        conf.DetectionRadius,
		disqualify:    lo.FromPtrOr(conf.DisqualificationWidth, DefaultDisqualificationWidth),
		capacity:      conf.MaxObjects,
		logger:        logger,
	}
	if s.edgeThreshold == 0 {
		s.edgeThreshold = DefaultEdgeThreshold
	}
	if s.radius == 0 {
		s.radius = DefaultDetectionRadius
	}
	if s.capacity == 0 {
		s.capacity = MaxObjects
	}
	return s
}

// DetectionRadius returns the distance beyond which readings are treated as open space.
func (s *Segmenter) DetectionRadius() float64 {
	return s.radius
}

// Segment walks the profile from end-1 down to start+1. A jump in distance larger than the edge
// threshold followed by readings inside the detection radius opens a candidate, which grows
// toward start while readings stay inside the radius. Candidates wider than the disqualification
// width are confirmed at their midpoint by c and kept if still inside the radius. The pass
// resumes below a kept object's start angle so adjacent objects never share an angle. Rejected
// candidates are rescanned from their first angle.
func (s *Segmenter) Segment(
	ctx context.Context,
	profile Profile,
	start, end int,
	c Confirmer,
) (ObjectList, error) {
	if start > end {
		return ObjectList{}, errors.Errorf("invalid segmentation range [%d, %d]", start, end)
	}
	if !profile.Covers(start, end) {
		return ObjectList{}, errors.Errorf(
			"profile [%d, %d] does not cover [%d, %d]", profile.Start(), profile.End(), start, end)
	}

	list := ObjectList{Objects: make([]DetectedObject, 0, s.capacity)}
	near := func(angle int) bool {
		return profile.Distance(angle) < s.radius
	}

	previous := profile.Distance(end)
	for i := end - 1; i > start; i-- {
		if err := ctx.Err(); err != nil {
			return list, err
		}
		delta := previous - profile.Distance(i)
		if delta < 0 {
			delta = -delta
		}

		if delta > s.edgeThreshold && near(i-1) {
			endCandidate := i
			radialWidth := 0
			for i-1 >= start && near(i-1) {
				radialWidth++
				i--
			}

			rejected := true
			if radialWidth > s.disqualify && i > start {
				startCandidate := i - 1
				obj := DetectedObject{
					StartAngle:    startCandidate,
					EndAngle:      endCandidate,
					MidpointAngle: endCandidate - (endCandidate-startCandidate)/2,
				}
				kept, err := s.confirm(ctx, &list, obj, c)
				if err != nil {
					return list, err
				}
				rejected = !kept
				if kept {
					// the start angle belongs to this object; the next one must end below it
					i = startCandidate
				}
			}
			if rejected {
				i += radialWidth
			}
		}

		previous = profile.Distance(i)
	}
	return list, nil
}

// confirm appends obj to list if there is room and c agrees it is within the detection radius.
// A list at capacity counts the candidate as dropped without ranging it.
func (s *Segmenter) confirm(ctx context.Context, list *ObjectList, obj DetectedObject, c Confirmer) (bool, error) {
	if len(list.Objects) >= s.capacity {
		list.Dropped++
		s.logger.CWarnw(ctx, "object list full, dropping candidate",
			"start", obj.StartAngle, "end", obj.EndAngle, "capacity", s.capacity)
		return true, nil
	}

	distance, err := c.DistanceAt(ctx, obj.MidpointAngle)
	switch {
	case errors.Is(err, ultrasonic.ErrRangingTimeout):
		s.logger.CDebugf(ctx, "no echo confirming candidate at %d, rejecting", obj.MidpointAngle)
		return false, nil
	case err != nil:
		return false, errors.Wrapf(err, "cannot confirm candidate at %d", obj.MidpointAngle)
	}

	if distance >= s.radius {
		s.logger.CDebugf(ctx, "candidate at %d confirmed at %.1fcm, outside radius", obj.MidpointAngle, distance)
		return false, nil
	}
	obj.Distance = distance
	obj.LinearWidth = LinearWidth(distance, obj.Span())
	list.Objects = append(list.Objects, obj)
	return true, nil
}
