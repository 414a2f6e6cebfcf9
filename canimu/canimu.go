// Package canimu talks to an inertial unit that publishes its fused
// orientation and linear acceleration on a CAN bus.
package canimu

import (
	"context"
	"encoding/binary"
	"github.com/brutella/can"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	frameOrientation  uint32 = 0x200
	frameAcceleration        = 0x201
	frameCalibration         = 0x202
	frameMode                = 0x210
)

// Mode selects the unit's fusion mode.
type Mode uint8

const (
	ModeConfig Mode = 0x00
	ModeIMU    Mode = 0x08
	// ModeNDOF fuses accelerometer, gyroscope and magnetometer into an
	// absolute orientation.
	ModeNDOF Mode = 0x0c
)

// Orientation is in degrees.
type Orientation struct {
	Heading float32
	Roll    float32
	Pitch   float32
}

// Vector is linear acceleration in m/s² with gravity removed.
type Vector struct {
	X float32
	Y float32
	Z float32
}

type Callbacks struct {
	Orientation  func(Orientation)
	Acceleration func(Vector)
	Calibration  func(status uint8)
}

type CANBus interface {
	SubscribeFunc(can.HandlerFunc)
	ConnectAndPublish() error
	Disconnect() error
	Publish(can.Frame) error
}

type Connection struct {
	bus CANBus
	cb  *Callbacks
}

var newBus = func(ifName string) (CANBus, error) {
	return can.NewBusForInterfaceWithName(ifName)
}

func Connect(ifName string) (*Connection, error) {
	bus, err := newBus(ifName)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open CAN interface %s", ifName)
	}
	return &Connection{
		bus: bus,
	}, nil
}

// Start delivers frames to cb until ctx is done or the bus fails.
func (c *Connection) Start(ctx context.Context, cb Callbacks) error {
	c.cb = &cb
	c.bus.SubscribeFunc(c.handleFrame)
	log.Info("imu CAN bus opened and subscribed")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			log.Infof("stopping imu CAN bus: %v", ctx.Err())
			if err := c.bus.Disconnect(); err != nil {
				log.WithError(err).Warn("unable to disconnect imu CAN bus after context")
			}
		case <-done:
		}
	}()

	return c.bus.ConnectAndPublish()
}

func (c *Connection) Close() error {
	if c.bus == nil {
		return errors.New("can bus not connected")
	}
	return c.bus.Disconnect()
}

func (c *Connection) SetMode(mode Mode) error {
	if c.bus == nil {
		return errors.New("can bus not connected")
	}
	log.WithField("mode", mode).Debug("setting imu mode")
	return c.bus.Publish(can.Frame{
		ID:     frameMode,
		Length: 1,
		Data:   [8]uint8{uint8(mode)},
	})
}

func (c *Connection) handleFrame(frame can.Frame) {
	log.WithField("canID", frame.ID).
		WithField("length", frame.Length).
		Debug("received imu frame")
	if c.cb == nil {
		return
	}

	switch frame.ID {
	case frameOrientation:
		v, err := int16Triple(frame)
		if err != nil {
			log.WithError(err).Error("unable to decode orientation")
			return
		}
		if c.cb.Orientation != nil {
			c.cb.Orientation(Orientation{
				Heading: float32(v[0]) / 16,
				Roll:    float32(v[1]) / 16,
				Pitch:   float32(v[2]) / 16,
			})
		}
	case frameAcceleration:
		v, err := int16Triple(frame)
		if err != nil {
			log.WithError(err).Error("unable to decode acceleration")
			return
		}
		if c.cb.Acceleration != nil {
			c.cb.Acceleration(Vector{
				X: float32(v[0]) / 100,
				Y: float32(v[1]) / 100,
				Z: float32(v[2]) / 100,
			})
		}
	case frameCalibration:
		if frame.Length != 1 {
			log.WithField("length", frame.Length).Error("incorrect calibration frame size")
			return
		}
		if c.cb.Calibration != nil {
			c.cb.Calibration(frame.Data[0])
		}
	default:
		log.WithField("canID", frame.ID).
			Error("unknown canID")
	}
}

// int16Triple decodes the three little endian words of a frame. The unit
// reports orientation in 1/16 degree and acceleration in 1/100 m/s².
func int16Triple(frame can.Frame) ([3]int16, error) {
	var v [3]int16
	if frame.Length != 6 {
		return v, errors.Errorf("incorrect frame size for int16 triple: %v", frame.Length)
	}
	for i := range v {
		v[i] = int16(binary.LittleEndian.Uint16(frame.Data[i*2 : i*2+2]))
	}
	return v, nil
}
