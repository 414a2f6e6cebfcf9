package flightlink

import (
	"context"
	"github.com/jd3nn1s/flightlink/canimu"
	"io"
	"sync"
)

type sensorStub struct {
	startChan chan struct{}
	errChan   chan error
	fnChan    chan func()
}

type imuStub struct {
	sensorStub
	mode      canimu.Mode
	modeErr   error
	closed    bool
	callbacks canimu.Callbacks
}

func createSensorStub() *sensorStub {
	ret := sensorStub{
		startChan: make(chan struct{}, 1),
		errChan:   make(chan error),
		fnChan:    make(chan func()),
	}
	return &ret
}

func (s *sensorStub) start(ctx context.Context) error {
	select {
	case s.startChan <- struct{}{}:
	default:
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-s.errChan:
			return err
		case fn := <-s.fnChan:
			fn()
		}
	}
}

func createIMUStub() *imuStub {
	return &imuStub{
		sensorStub: *createSensorStub(),
	}
}

func (s *imuStub) Close() error {
	s.closed = true
	return nil
}

func (s *imuStub) Start(ctx context.Context, callbacks canimu.Callbacks) error {
	s.callbacks = callbacks
	return s.sensorStub.start(ctx)
}

func (s *imuStub) SetMode(mode canimu.Mode) error {
	s.mode = mode
	return s.modeErr
}

// serialStub is a GPS port fed by the test through Write. Reads block
// until data arrives or the port is closed.
type serialStub struct {
	*io.PipeReader
	w *io.PipeWriter
}

func createSerialStub() *serialStub {
	r, w := io.Pipe()
	return &serialStub{
		PipeReader: r,
		w:          w,
	}
}

func (s *serialStub) Write(data string) error {
	_, err := io.WriteString(s.w, data)
	return err
}

// baroStub returns queued readings, repeating the last one when the queue
// runs dry.
type baroStub struct {
	mu       sync.Mutex
	readings []baroReading
	last     baroReading
	closed   bool
}

type baroReading struct {
	pressure float32
	err      error
}

func (b *baroStub) Pressure() (float32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.readings) > 0 {
		b.last = b.readings[0]
		b.readings = b.readings[1:]
	}
	return b.last.pressure, b.last.err
}

func (b *baroStub) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *baroStub) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
