// Package oi drives an iRobot Create style base over its serial Open Interface.
package oi

import (
	"context"
	"encoding/binary"
	"io"
	"sync"

	"github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/roverworks/navcore/components/base"
	"github.com/roverworks/navcore/logging"
)

// Open Interface opcodes.
const (
	opStart       = 128
	opFull        = 132
	opDriveDirect = 145
	opQueryList   = 149
	opStop        = 173
)

// Sensor packet ids requested on every update, in response order.
const (
	packetBumpsAndDrops   = 7
	packetDistance        = 19
	packetAngle           = 20
	packetCliffLeft       = 28
	packetCliffFrontLeft  = 29
	packetCliffFrontRight = 30
	packetCliffRight      = 31
)

// FrameSize is the length of the query list response decoded by DecodeFrame.
const FrameSize = 13

const defaultBaudRate = 115200

var queryPackets = []byte{
	packetBumpsAndDrops,
	packetDistance,
	packetAngle,
	packetCliffLeft,
	packetCliffFrontLeft,
	packetCliffFrontRight,
	packetCliffRight,
}

// Drivetrain talks to the base over a serial port.
type Drivetrain struct {
	mu     sync.Mutex
	port   io.ReadWriteCloser
	logger logging.Logger
}

// NewDrivetrain opens the configured serial port and puts the base in full mode.
func NewDrivetrain(ctx context.Context, conf *base.Config, logger logging.Logger) (*Drivetrain, error) {
	baud := conf.BaudRate
	if baud == 0 {
		baud = defaultBaudRate
	}
	port, err := serial.Open(serial.OpenOptions{
		PortName:        conf.SerialPath,
		BaudRate:        uint(baud),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open drivetrain serial port %q", conf.SerialPath)
	}
	d, err := NewDrivetrainFromPort(ctx, port, logger)
	if err != nil {
		return nil, multierr.Combine(err, port.Close())
	}
	return d, nil
}

// NewDrivetrainFromPort starts the Open Interface on an already opened port.
func NewDrivetrainFromPort(ctx context.Context, port io.ReadWriteCloser, logger logging.Logger) (*Drivetrain, error) {
	d := &Drivetrain{port: port, logger: logger}
	if err := d.write([]byte{opStart, opFull}); err != nil {
		return nil, errors.Wrap(err, "cannot start open interface")
	}
	logger.CDebugf(ctx, "open interface started in full mode")
	return d, nil
}

func (d *Drivetrain) write(cmd []byte) error {
	_, err := d.port.Write(cmd)
	return err
}

// DriveDirectCommand encodes a drive direct command. The interface takes the right wheel first.
func DriveDirectCommand(left, right int) []byte {
	cmd := make([]byte, 5)
	cmd[0] = opDriveDirect
	binary.BigEndian.PutUint16(cmd[1:], uint16(int16(base.ClampPower(right))))
	binary.BigEndian.PutUint16(cmd[3:], uint16(int16(base.ClampPower(left))))
	return cmd
}

// QueryCommand encodes the sensor query sent on every update.
func QueryCommand() []byte {
	cmd := make([]byte, 0, 2+len(queryPackets))
	cmd = append(cmd, opQueryList, byte(len(queryPackets)))
	return append(cmd, queryPackets...)
}

// DecodeFrame decodes a query list response.
func DecodeFrame(buf []byte) (base.SensorFrame, error) {
	if len(buf) != FrameSize {
		return base.SensorFrame{}, errors.Errorf("expected %d byte sensor frame, got %d", FrameSize, len(buf))
	}
	be := binary.BigEndian
	return base.SensorFrame{
		BumpRight:       buf[0]&0x01 != 0,
		BumpLeft:        buf[0]&0x02 != 0,
		DistanceMM:      float64(int16(be.Uint16(buf[1:3]))),
		AngleDeg:        float64(int16(be.Uint16(buf[3:5]))),
		CliffLeft:       be.Uint16(buf[5:7]),
		CliffFrontLeft:  be.Uint16(buf[7:9]),
		CliffFrontRight: be.Uint16(buf[9:11]),
		CliffRight:      be.Uint16(buf[11:13]),
	}, nil
}

// SetWheelPower sends a drive direct command.
func (d *Drivetrain) SetWheelPower(ctx context.Context, left, right int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.write(DriveDirectCommand(left, right)); err != nil {
		return errors.Wrap(err, "cannot set wheel power")
	}
	return nil
}

// Update queries the sensor packets and decodes the response.
func (d *Drivetrain) Update(ctx context.Context) (base.SensorFrame, error) {
	if err := ctx.Err(); err != nil {
		return base.SensorFrame{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.write(QueryCommand()); err != nil {
		return base.SensorFrame{}, errors.Wrap(err, "cannot query sensors")
	}
	buf := make([]byte, FrameSize)
	if _, err := io.ReadFull(d.port, buf); err != nil {
		return base.SensorFrame{}, errors.Wrap(err, "cannot read sensor frame")
	}
	return DecodeFrame(buf)
}

// Close stops the wheels, leaves the Open Interface and closes the port.
func (d *Drivetrain) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := d.write(DriveDirectCommand(0, 0))
	err = multierr.Combine(err, d.write([]byte{opStop}), d.port.Close())
	return err
}
