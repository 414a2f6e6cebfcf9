// Package bme280 reads pressure from a Bosch BME280 on an I²C bus.
package bme280

import (
	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/bmxx80"
	"periph.io/x/host/v3"
)

// PrimaryAddress is the address with SDO pulled low.
const PrimaryAddress = 0x76

type sensor interface {
	Sense(e *physic.Env) error
	Halt() error
}

type Device struct {
	bus i2c.BusCloser
	dev sensor
}

// Open initializes the host drivers, opens the named bus ("" picks the
// first one) and configures the sensor.
func Open(busName string) (*Device, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "unable to initialize host drivers")
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open i2c bus %q", busName)
	}
	dev, err := bmxx80.NewI2C(bus, PrimaryAddress, &bmxx80.DefaultOpts)
	if err != nil {
		_ = bus.Close()
		return nil, errors.Wrap(err, "unable to initialize bme280")
	}
	return &Device{
		bus: bus,
		dev: dev,
	}, nil
}

// Pressure returns the current pressure in pascals.
func (d *Device) Pressure() (float32, error) {
	var e physic.Env
	if err := d.dev.Sense(&e); err != nil {
		return 0, errors.Wrap(err, "unable to sense pressure")
	}
	return float32(float64(e.Pressure) / float64(physic.Pascal)), nil
}

func (d *Device) Close() error {
	haltErr := d.dev.Halt()
	if d.bus != nil {
		if err := d.bus.Close(); err != nil {
			return errors.Wrap(err, "unable to close i2c bus")
		}
	}
	return haltErr
}
