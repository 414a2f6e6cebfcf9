package bme280

import (
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"periph.io/x/conn/v3/physic"
	"testing"
)

type sensorStub struct {
	pressure physic.Pressure
	err      error
	halted   bool
}

func (s *sensorStub) Sense(e *physic.Env) error {
	if s.err != nil {
		return s.err
	}
	e.Pressure = s.pressure
	return nil
}

func (s *sensorStub) Halt() error {
	s.halted = true
	return nil
}

func TestPressure(t *testing.T) {
	stub := &sensorStub{
		pressure: 101325 * physic.Pascal,
	}
	d := &Device{dev: stub}

	p, err := d.Pressure()
	assert.NoError(t, err)
	assert.Equal(t, float32(101325), p)

	stub.pressure = 89875*physic.Pascal + 500*physic.MilliPascal
	p, err = d.Pressure()
	assert.NoError(t, err)
	assert.InDelta(t, 89875.5, p, 0.01)
}

func TestPressureError(t *testing.T) {
	d := &Device{dev: &sensorStub{err: errors.New("bus fault")}}
	_, err := d.Pressure()
	assert.Error(t, err)
}

func TestClose(t *testing.T) {
	stub := &sensorStub{}
	d := &Device{dev: stub}
	assert.NoError(t, d.Close())
	assert.True(t, stub.halted)
}
