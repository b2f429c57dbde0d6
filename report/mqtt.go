package report

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
	"golang.org/x/time/rate"

	"github.com/roverworks/navcore/logging"
)

const (
	defaultTopicPrefix    = "navcore"
	defaultPublishTimeout = 5 * time.Second
	disconnectQuiesceMs   = 250
)

// MQTTConfig describes the telemetry broker.
type MQTTConfig struct {
	Broker           string `json:"broker"`
	ClientID         string `json:"client_id,omitempty"`
	TopicPrefix      string `json:"topic_prefix,omitempty"`
	QoS              byte   `json:"qos,omitempty"`
	Retain           bool   `json:"retain,omitempty"`
	PublishTimeoutMs int    `json:"publish_timeout_ms,omitempty"`

	// PositionRateHz caps how often positions are published. 0 publishes every update.
	PositionRateHz float64 `json:"position_rate_hz,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (config *MQTTConfig) Validate(path string) error {
	if config.Broker == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "broker")
	}
	if config.QoS > 2 {
		return goutils.NewConfigValidationError(path, errors.Errorf("qos must be 0, 1 or 2, got %d", config.QoS))
	}
	if config.PublishTimeoutMs < 0 {
		return goutils.NewConfigValidationError(path, errors.New("publish_timeout_ms cannot be negative"))
	}
	if config.PositionRateHz < 0 {
		return goutils.NewConfigValidationError(path, errors.New("position_rate_hz cannot be negative"))
	}
	return nil
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

type objectMessage struct {
	StartAngle    int     `json:"start_angle"`
	EndAngle      int     `json:"end_angle"`
	MidpointAngle int     `json:"midpoint_angle"`
	DistanceCM    float64 `json:"distance_cm"`
	WidthCM       float64 `json:"width_cm"`
	XCM           float64 `json:"x_cm,omitempty"`
	YCM           float64 `json:"y_cm,omitempty"`
}

type gapMessage struct {
	objectMessage
	Degenerate bool `json:"degenerate,omitempty"`
}

type scanMessage struct {
	Time        time.Time       `json:"time"`
	Start       int             `json:"start"`
	End         int             `json:"end"`
	Distances   []float64       `json:"distances_cm"`
	Objects     []objectMessage `json:"objects"`
	Dropped     int             `json:"dropped,omitempty"`
	Gaps        []gapMessage    `json:"gaps"`
	Widest      int             `json:"widest"`
	ClearanceCM float64         `json:"clearance_cm"`
}

func newScanMessage(scan Scan) scanMessage {
	msg := scanMessage{
		Time:        scan.Time,
		Start:       scan.Start,
		End:         scan.End,
		Distances:   scan.Profile.Distances(),
		Objects:     make([]objectMessage, 0, len(scan.Objects.Objects)),
		Dropped:     scan.Objects.Dropped,
		Gaps:        make([]gapMessage, 0, len(scan.Gaps.Gaps)),
		Widest:      scan.Gaps.Widest,
		ClearanceCM: scan.Clearance,
	}
	positions := scan.Objects.Positions()
	for i, o := range scan.Objects.Objects {
		msg.Objects = append(msg.Objects, objectMessage{
			StartAngle:    o.StartAngle,
			EndAngle:      o.EndAngle,
			MidpointAngle: o.MidpointAngle,
			DistanceCM:    o.Distance,
			WidthCM:       o.LinearWidth,
			XCM:           positions[i].X,
			YCM:           positions[i].Y,
		})
	}
	for _, g := range scan.Gaps.Gaps {
		msg.Gaps = append(msg.Gaps, gapMessage{
			objectMessage: objectMessage{
				StartAngle:    g.StartAngle,
				EndAngle:      g.EndAngle,
				MidpointAngle: g.MidpointAngle,
				DistanceCM:    g.Distance,
				WidthCM:       g.LinearWidth,
			},
			Degenerate: g.Degenerate,
		})
	}
	return msg
}

// MQTTReporter publishes scans to <prefix>/scan and positions to <prefix>/position as JSON.
type MQTTReporter struct {
	client     publisher
	disconnect func(quiesce uint)
	prefix     string
	qos        byte
	retain     bool
	timeout    time.Duration
	positions  *rate.Limiter
	logger     logging.Logger
}

// NewMQTTReporter connects to the configured broker.
func NewMQTTReporter(conf MQTTConfig, logger logging.Logger) (*MQTTReporter, error) {
	clientID := conf.ClientID
	if clientID == "" {
		clientID = "navcore-" + uuid.NewString()
	}
	opts := mqtt.NewClientOptions().
		AddBroker(conf.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.Wrapf(token.Error(), "connecting to mqtt broker %s", conf.Broker)
	}
	logger.Infow("connected to mqtt broker", "broker", conf.Broker, "client_id", clientID)
	return newMQTTReporter(client, client.Disconnect, conf, logger), nil
}

func newMQTTReporter(client publisher, disconnect func(uint), conf MQTTConfig, logger logging.Logger) *MQTTReporter {
	prefix := conf.TopicPrefix
	if prefix == "" {
		prefix = defaultTopicPrefix
	}
	timeout := defaultPublishTimeout
	if conf.PublishTimeoutMs > 0 {
		timeout = time.Duration(conf.PublishTimeoutMs) * time.Millisecond
	}
	var positions *rate.Limiter
	if conf.PositionRateHz > 0 {
		positions = rate.NewLimiter(rate.Limit(conf.PositionRateHz), 1)
	}
	return &MQTTReporter{
		client:     client,
		disconnect: disconnect,
		prefix:     prefix,
		qos:        conf.QoS,
		retain:     conf.Retain,
		timeout:    timeout,
		positions:  positions,
		logger:     logger,
	}
}

func (mr *MQTTReporter) publish(ctx context.Context, topic string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	topic = mr.prefix + "/" + topic
	token := mr.client.Publish(topic, mr.qos, mr.retain, payload)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
	case <-time.After(mr.timeout):
		return errors.Errorf("timed out publishing to %s", topic)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "publishing to %s", topic)
	}
	mr.logger.CDebugf(ctx, "published %d bytes to %s", len(payload), topic)
	return nil
}

// ReportScan publishes scan.
func (mr *MQTTReporter) ReportScan(ctx context.Context, scan Scan) error {
	return mr.publish(ctx, "scan", newScanMessage(scan))
}

// ReportPosition publishes pos unless the position rate was exceeded.
func (mr *MQTTReporter) ReportPosition(ctx context.Context, pos Position) error {
	if mr.positions != nil && !mr.positions.Allow() {
		return nil
	}
	return mr.publish(ctx, "position", pos)
}

// Close disconnects from the broker.
func (mr *MQTTReporter) Close(ctx context.Context) error {
	if mr.disconnect != nil {
		mr.disconnect(disconnectQuiesceMs)
	}
	return nil
}
