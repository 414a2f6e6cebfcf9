package flightlink

import (
	"context"
	"github.com/jd3nn1s/flightlink/bme280"
	"github.com/jd3nn1s/flightlink/canimu"
	"github.com/tarm/serial"
	"io"
)

// Task is a long running unit of work owned by the FlightLink.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

type SerialPort interface {
	io.ReadCloser
}

// Barometer is an initialized pressure sensor reporting pascals.
type Barometer interface {
	Pressure() (float32, error)
	Close() error
}

type InertialUnit interface {
	Close() error
	Start(context.Context, canimu.Callbacks) error
	SetMode(canimu.Mode) error
}

// to allow testing
var gpsConnect = func(port string, baud int) (SerialPort, error) {
	return serial.OpenPort(&serial.Config{Name: port, Baud: baud})
}

var baroConnect = func(bus string) (Barometer, error) {
	return bme280.Open(bus)
}

var imuConnect = func(ifName string) (InertialUnit, error) {
	return canimu.Connect(ifName)
}
