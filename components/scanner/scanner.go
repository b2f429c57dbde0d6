// Package scanner sweeps a servo-mounted IR sensor across an angle range and confirms what it
// sees with the ultrasonic range finder on the same head.
package scanner

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/roverworks/navcore/components/sensor/ir"
	"github.com/roverworks/navcore/components/sensor/ultrasonic"
	"github.com/roverworks/navcore/components/servo"
	servogpio "github.com/roverworks/navcore/components/servo/gpio"
	"github.com/roverworks/navcore/logging"
	"github.com/roverworks/navcore/operation"
	"github.com/roverworks/navcore/perception"
	"github.com/roverworks/navcore/utils"
)

// The servo's mechanical range.
const (
	MinAngle = 0
	MaxAngle = 180
)

const (
	defaultInitialSettle   = 100 * time.Millisecond
	defaultSettle          = 40 * time.Millisecond
	defaultSamplesPerAngle = 5
	defaultConfirmSettle   = 500 * time.Millisecond
	defaultConfirmSamples  = 10
	defaultConfirmInterval = 100 * time.Millisecond
)

// Sample and Profile are the scanner's output.
type (
	Sample  = perception.Sample
	Profile = perception.Profile
)

// Proximity is the IR sensor on the scanning head.
type Proximity interface {
	Sample(ctx context.Context) (int, error)
	Curve() ir.Curve
}

// A Ranger takes a single ultrasonic measurement.
type Ranger interface {
	Measure(ctx context.Context) (ultrasonic.Measurement, error)
}

// Config describes the scanning head.
type Config struct {
	Servo servogpio.Config `json:"servo"`
	IR    ir.Config        `json:"ir"`

	InitialSettleMs   int `json:"initial_settle_ms,omitempty"`
	SettleMs          int `json:"settle_ms,omitempty"`
	SamplesPerAngle   int `json:"samples_per_angle,omitempty"`
	ConfirmSettleMs   int `json:"confirm_settle_ms,omitempty"`
	ConfirmSamples    int `json:"confirm_samples,omitempty"`
	ConfirmIntervalMs int `json:"confirm_interval_ms,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (config *Config) Validate(path string) error {
	if err := config.Servo.Validate(path + ".servo"); err != nil {
		return err
	}
	if err := config.IR.Validate(path + ".ir"); err != nil {
		return err
	}
	for name, v := range map[string]int{
		"initial_settle_ms":   config.InitialSettleMs,
		"settle_ms":           config.SettleMs,
		"samples_per_angle":   config.SamplesPerAngle,
		"confirm_settle_ms":   config.ConfirmSettleMs,
		"confirm_samples":     config.ConfirmSamples,
		"confirm_interval_ms": config.ConfirmIntervalMs,
	} {
		if v < 0 {
			return goutils.NewConfigValidationError(path, errors.Errorf("%s cannot be negative", name))
		}
	}
	return nil
}

// Timings are the fixed delays and sample counts of a scan.
type Timings struct {
	InitialSettle   time.Duration
	Settle          time.Duration
	SamplesPerAngle int
	ConfirmSettle   time.Duration
	ConfirmSamples  int
	ConfirmInterval time.Duration
}

// Timings returns the configured timings with defaults filled in.
func (config *Config) Timings() Timings {
	ms := func(v int, def time.Duration) time.Duration {
		if v == 0 {
			return def
		}
		return time.Duration(v) * time.Millisecond
	}
	t := Timings{
		InitialSettle:   ms(config.InitialSettleMs, defaultInitialSettle),
		Settle:          ms(config.SettleMs, defaultSettle),
		SamplesPerAngle: config.SamplesPerAngle,
		ConfirmSettle:   ms(config.ConfirmSettleMs, defaultConfirmSettle),
		ConfirmSamples:  config.ConfirmSamples,
		ConfirmInterval: ms(config.ConfirmIntervalMs, defaultConfirmInterval),
	}
	if t.SamplesPerAngle == 0 {
		t.SamplesPerAngle = defaultSamplesPerAngle
	}
	if t.ConfirmSamples == 0 {
		t.ConfirmSamples = defaultConfirmSamples
	}
	return t
}

// Scanner owns the scanning head.
type Scanner struct {
	servo     servo.Servo
	ir        Proximity
	ranger    Ranger
	segmenter *perception.Segmenter
	timings   Timings
	clk       clock.Clock
	opMgr     operation.SingleOperationManager
	logger    logging.Logger
}

// NewScanner returns a scanner over the given parts. Zero sample counts are raised to one and a
// nil clock means the wall clock.
func NewScanner(
	sv servo.Servo,
	prox Proximity,
	ranger Ranger,
	segmenter *perception.Segmenter,
	timings Timings,
	clk clock.Clock,
	logger logging.Logger,
) *Scanner {
	if clk == nil {
		clk = clock.New()
	}
	if timings.SamplesPerAngle < 1 {
		timings.SamplesPerAngle = 1
	}
	if timings.ConfirmSamples < 1 {
		timings.ConfirmSamples = 1
	}
	return &Scanner{
		servo:     sv,
		ir:        prox,
		ranger:    ranger,
		segmenter: segmenter,
		timings:   timings,
		clk:       clk,
		logger:    logger,
	}
}

func boundRange(start, end int) (int, int, error) {
	start = utils.ClampInt(start, MinAngle, MaxAngle)
	end = utils.ClampInt(end, MinAngle, MaxAngle)
	if start > end {
		return 0, 0, errors.Errorf("scan start %d is past end %d", start, end)
	}
	return start, end, nil
}

// Scan records one IR distance per degree from start to end inclusive. Angles are bounded to the
// servo's range.
func (s *Scanner) Scan(ctx context.Context, start, end int) (Profile, error) {
	ctx, done := s.opMgr.New(ctx)
	defer done()
	start, end, err := boundRange(start, end)
	if err != nil {
		return Profile{}, err
	}
	return s.scan(ctx, start, end)
}

func (s *Scanner) scan(ctx context.Context, start, end int) (Profile, error) {
	if err := s.point(ctx, start, s.timings.InitialSettle); err != nil {
		return Profile{}, err
	}

	curve := s.ir.Curve()
	samples := make([]Sample, 0, end-start+1)
	raws := make([]int, s.timings.SamplesPerAngle)
	for angle := start; angle <= end; angle++ {
		if err := s.point(ctx, angle, s.timings.Settle); err != nil {
			return Profile{}, err
		}
		for i := range raws {
			raw, err := s.ir.Sample(ctx)
			if err != nil {
				return Profile{}, errors.Wrapf(err, "ir sample at %d", angle)
			}
			raws[i] = raw
		}
		samples = append(samples, Sample{Angle: angle, Distance: curve.Distance(utils.IntegerMean(raws))})
	}
	s.logger.CDebugf(ctx, "scanned %d to %d", start, end)
	return Profile{Samples: samples}, nil
}

// ScanObjects scans from start to end and segments the profile, confirming candidates with the
// ultrasonic sensor. The servo is returned to start afterwards, whatever the outcome.
func (s *Scanner) ScanObjects(ctx context.Context, start, end int) (perception.ObjectList, error) {
	list, _, err := s.ScanDetailed(ctx, start, end)
	return list, err
}

// ScanDetailed is ScanObjects that also returns the profile the objects were found in.
func (s *Scanner) ScanDetailed(ctx context.Context, start, end int) (list perception.ObjectList, profile Profile, err error) {
	ctx, done := s.opMgr.New(ctx)
	defer done()
	start, end, err = boundRange(start, end)
	if err != nil {
		return perception.ObjectList{}, Profile{}, err
	}
	defer func() {
		err = multierr.Combine(err, s.servo.Move(context.WithoutCancel(ctx), uint32(start)))
	}()

	profile, err = s.scan(ctx, start, end)
	if err != nil {
		return perception.ObjectList{}, Profile{}, err
	}
	list, err = s.segmenter.Segment(ctx, profile, start, end, perception.ConfirmerFunc(s.distanceAt))
	if err != nil {
		return perception.ObjectList{}, profile, err
	}
	s.logger.CInfof(ctx, "found %d objects between %d and %d", list.Len(), start, end)
	return list, profile, nil
}

// DistanceAt points the head at angle and returns the mean of several ultrasonic measurements.
func (s *Scanner) DistanceAt(ctx context.Context, angle int) (float64, error) {
	ctx, done := s.opMgr.New(ctx)
	defer done()
	return s.distanceAt(ctx, utils.ClampInt(angle, MinAngle, MaxAngle))
}

func (s *Scanner) distanceAt(ctx context.Context, angle int) (float64, error) {
	if err := s.point(ctx, angle, s.timings.ConfirmSettle); err != nil {
		return 0, err
	}
	distances := make([]float64, 0, s.timings.ConfirmSamples)
	for i := 0; i < s.timings.ConfirmSamples; i++ {
		if i > 0 {
			if err := s.wait(ctx, s.timings.ConfirmInterval); err != nil {
				return 0, err
			}
		}
		m, err := s.ranger.Measure(ctx)
		if err != nil {
			return 0, errors.Wrapf(err, "ranging at %d", angle)
		}
		distances = append(distances, m.DistanceCM)
	}
	return utils.Mean(distances), nil
}

func (s *Scanner) point(ctx context.Context, angle int, settle time.Duration) error {
	if err := s.servo.Move(ctx, uint32(angle)); err != nil {
		return errors.Wrapf(err, "cannot point scanner at %d", angle)
	}
	return s.wait(ctx, settle)
}

func (s *Scanner) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := s.clk.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Stop cancels any running scan and stops the servo.
func (s *Scanner) Stop(ctx context.Context) error {
	s.opMgr.CancelRunning(ctx)
	return s.servo.Stop(ctx)
}
