package report

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/test"

	"github.com/roverworks/navcore/logging"
	"github.com/roverworks/navcore/perception"
)

func testScan() Scan {
	distances := make([]float64, 181)
	for i := range distances {
		distances[i] = 120
	}
	for i := 40; i <= 50; i++ {
		distances[i] = 30
	}
	for i := 120; i <= 135; i++ {
		distances[i] = 40
	}
	objects := perception.ObjectList{Objects: []perception.DetectedObject{
		{StartAngle: 120, EndAngle: 135, MidpointAngle: 128, Distance: 41, LinearWidth: 12.1},
		{StartAngle: 40, EndAngle: 50, MidpointAngle: 45, Distance: 31, LinearWidth: 6.2},
	}}
	return Scan{
		Time:      time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		Start:     0,
		End:       180,
		Profile:   perception.NewProfile(0, distances),
		Objects:   objects,
		Gaps:      perception.AnalyzeGaps(objects),
		Clearance: 50,
	}
}

func TestTables(t *testing.T) {
	scan := testScan()

	objects := ObjectTable(scan)
	test.That(t, objects, test.ShouldContainSubstring, "OBJECT LIST")
	test.That(t, objects, test.ShouldContainSubstring, "41.000")
	test.That(t, objects, test.ShouldContainSubstring, "6.200")
	test.That(t, objects, test.ShouldNotContainSubstring, "dropped")

	gaps := GapTable(scan)
	test.That(t, gaps, test.ShouldContainSubstring, "GAP LIST")
	test.That(t, gaps, test.ShouldContainSubstring, "widest")

	scan.Objects.Dropped = 2
	test.That(t, ObjectTable(scan), test.ShouldContainSubstring, "DROPPED")

	test.That(t, ObjectTable(Scan{}), test.ShouldEqual, "")
	test.That(t, GapTable(Scan{}), test.ShouldEqual, "")
}

func TestScanSummary(t *testing.T) {
	scan := testScan()
	summary := ScanSummary(scan)
	test.That(t, summary, test.ShouldContainSubstring, "nearest object: 31.0cm at 45 deg\r\n")
	test.That(t, summary, test.ShouldContainSubstring, "narrowest object: 6.2cm wide at 45 deg\r\n")
	test.That(t, summary, test.ShouldNotContainSubstring, "passable")

	scan.RoverWidthCM = 1
	test.That(t, ScanSummary(scan), test.ShouldContainSubstring, "passable gaps at 1.0cm: 1\r\n")
	scan.RoverWidthCM = 1000
	test.That(t, ScanSummary(scan), test.ShouldContainSubstring, "passable gaps at 1000.0cm: 0\r\n")

	test.That(t, ScanSummary(Scan{RoverWidthCM: 35}), test.ShouldEqual, "")
}

func TestTableReporter(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	tr := NewTableReporter(&buf)

	test.That(t, tr.ReportScan(ctx, testScan()), test.ShouldBeNil)
	out := buf.String()
	test.That(t, strings.Index(out, "OBJECT LIST"), test.ShouldBeLessThan, strings.Index(out, "GAP LIST"))
	test.That(t, out, test.ShouldContainSubstring, "clear path ahead: 50.0cm")
	test.That(t, strings.Index(out, "nearest object"), test.ShouldBeGreaterThan, strings.Index(out, "GAP LIST"))

	buf.Reset()
	test.That(t, tr.ReportScan(ctx, Scan{Clearance: 12.3}), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldEqual, "clear path ahead: 12.3cm\r\n")

	buf.Reset()
	test.That(t, tr.ReportPosition(ctx, Position{BudgetCM: 25, HeadingDeg: 45}), test.ShouldBeNil)
	test.That(t, buf.String(), test.ShouldContainSubstring, "Dist: 25.000")
	test.That(t, buf.String(), test.ShouldContainSubstring, "Angle: 45")
	test.That(t, tr.Close(ctx), test.ShouldBeNil)
}

func TestPlotReporter(t *testing.T) {
	dir := t.TempDir()
	pr := NewPlotReporter(dir, logging.NewTestLogger(t))

	test.That(t, pr.ReportScan(context.Background(), testScan()), test.ShouldBeNil)
	info, err := os.Stat(filepath.Join(dir, "scan_001.png"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, info.Size(), test.ShouldBeGreaterThan, 0)

	err = pr.ReportScan(context.Background(), Scan{})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "empty profile")
}

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(err error) *fakeToken {
	tok := &fakeToken{done: make(chan struct{}), err: err}
	close(tok.done)
	return tok
}

func (tok *fakeToken) Wait() bool                       { <-tok.done; return true }
func (tok *fakeToken) WaitTimeout(d time.Duration) bool { return true }
func (tok *fakeToken) Done() <-chan struct{}            { return tok.done }
func (tok *fakeToken) Error() error                     { return tok.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeBroker struct {
	mu       sync.Mutex
	messages []published
	err      error
}

func (b *fakeBroker) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, published{topic, qos, retained, payload.([]byte)})
	return newFakeToken(b.err)
}

func TestMQTTReporter(t *testing.T) {
	ctx := context.Background()
	broker := &fakeBroker{}
	var quiesce uint
	mr := newMQTTReporter(broker, func(q uint) { quiesce = q }, MQTTConfig{Broker: "tcp://localhost:1883", QoS: 1}, logging.NewTestLogger(t))

	test.That(t, mr.ReportScan(ctx, testScan()), test.ShouldBeNil)
	test.That(t, mr.ReportPosition(ctx, Position{BudgetCM: 12.5, HeadingDeg: 90}), test.ShouldBeNil)
	test.That(t, broker.messages, test.ShouldHaveLength, 2)

	scan := broker.messages[0]
	test.That(t, scan.topic, test.ShouldEqual, "navcore/scan")
	test.That(t, scan.qos, test.ShouldEqual, 1)
	var msg scanMessage
	test.That(t, json.Unmarshal(scan.payload, &msg), test.ShouldBeNil)
	test.That(t, msg.Distances, test.ShouldHaveLength, 181)
	test.That(t, msg.Objects, test.ShouldHaveLength, 2)
	test.That(t, msg.Objects[0].MidpointAngle, test.ShouldEqual, 128)
	// scanner frame positions: left of heading is negative x
	test.That(t, msg.Objects[0].XCM, test.ShouldBeLessThan, 0)
	test.That(t, msg.Objects[1].XCM, test.ShouldAlmostEqual, msg.Objects[1].YCM, 1e-9)
	test.That(t, msg.Objects[1].YCM, test.ShouldAlmostEqual, 31*math.Sqrt2/2, 1e-9)
	test.That(t, msg.Gaps, test.ShouldHaveLength, 1)
	test.That(t, msg.Widest, test.ShouldEqual, 0)
	test.That(t, msg.ClearanceCM, test.ShouldEqual, 50)

	pos := broker.messages[1]
	test.That(t, pos.topic, test.ShouldEqual, "navcore/position")
	test.That(t, string(pos.payload), test.ShouldEqual, `{"budget_cm":12.5,"heading_deg":90}`)

	broker.err = errors.New("not connected")
	err := mr.ReportPosition(ctx, Position{})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "navcore/position")

	test.That(t, mr.Close(ctx), test.ShouldBeNil)
	test.That(t, quiesce, test.ShouldEqual, 250)
}

func TestMQTTPositionRate(t *testing.T) {
	ctx := context.Background()
	broker := &fakeBroker{}
	conf := MQTTConfig{Broker: "tcp://localhost:1883", TopicPrefix: "rover7", PositionRateHz: 0.01}
	mr := newMQTTReporter(broker, nil, conf, logging.NewTestLogger(t))

	for i := 0; i < 5; i++ {
		test.That(t, mr.ReportPosition(ctx, Position{BudgetCM: float64(i), HeadingDeg: 90}), test.ShouldBeNil)
	}
	test.That(t, mr.ReportScan(ctx, testScan()), test.ShouldBeNil)
	test.That(t, broker.messages, test.ShouldHaveLength, 2)
	test.That(t, broker.messages[0].topic, test.ShouldEqual, "rover7/position")
	test.That(t, string(broker.messages[0].payload), test.ShouldEqual, `{"budget_cm":0,"heading_deg":90}`)
	test.That(t, broker.messages[1].topic, test.ShouldEqual, "rover7/scan")
	test.That(t, mr.Close(ctx), test.ShouldBeNil)
}

func TestMQTTConfigValidate(t *testing.T) {
	conf := &MQTTConfig{}
	err := conf.Validate("telemetry")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "broker")

	conf.Broker = "tcp://localhost:1883"
	test.That(t, conf.Validate("telemetry"), test.ShouldBeNil)
	conf.QoS = 3
	test.That(t, conf.Validate("telemetry"), test.ShouldNotBeNil)
	conf.QoS = 0
	conf.PositionRateHz = -1
	test.That(t, conf.Validate("telemetry"), test.ShouldNotBeNil)
}

type failingReporter struct{}

func (failingReporter) ReportScan(ctx context.Context, scan Scan) error {
	return errors.New("scan failed")
}

func (failingReporter) ReportPosition(ctx context.Context, pos Position) error { return nil }

func (failingReporter) Close(ctx context.Context) error { return nil }

func TestMulti(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	m := Multi{NewTableReporter(&buf), failingReporter{}}
	err := m.ReportScan(ctx, Scan{Clearance: 1})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "scan failed")
	test.That(t, buf.String(), test.ShouldContainSubstring, "clear path ahead")
	test.That(t, m.ReportPosition(ctx, Position{}), test.ShouldBeNil)
	test.That(t, m.Close(ctx), test.ShouldBeNil)
}

// slowReporter finishes a scan after delay unless ctx ends first.
type slowReporter struct {
	failingReporter
	delay time.Duration
}

func (sr slowReporter) ReportScan(ctx context.Context, scan Scan) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(sr.delay):
		return nil
	}
}

func TestMultiFailureDoesNotCancelOthers(t *testing.T) {
	m := Multi{slowReporter{delay: 50 * time.Millisecond}, failingReporter{}, failingReporter{}}
	err := m.ReportScan(context.Background(), Scan{})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, multierr.Errors(err), test.ShouldHaveLength, 2)
	test.That(t, err.Error(), test.ShouldNotContainSubstring, "context canceled")
}
