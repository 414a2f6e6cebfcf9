package flightlink

import (
	"bufio"
	"context"
	"github.com/adrianmo/go-nmea"
	"github.com/jd3nn1s/flightlink/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"sync"
)

// GPS reads NMEA sentences off a serial port and writes position, altitude
// and time of day into the store. Only GGA and GLL sentences are applied.
type GPS struct {
	PortName string
	Baud     int

	store   *Store
	metrics *metrics.Collector
	port    SerialPort
	framer  sentenceFramer
}

func NewGPS(store *Store, portName string, baud int, m *metrics.Collector) *GPS {
	return &GPS{
		PortName: portName,
		Baud:     baud,
		store:    store,
		metrics:  m,
	}
}

func (g *GPS) Name() string {
	return "gps"
}

func (g *GPS) Run(ctx context.Context) error {
	return retry(ctx, g)
}

func (g *GPS) Open() error {
	p, err := gpsConnect(g.PortName, g.Baud)
	if err != nil {
		return err
	}
	g.port = &onceCloser{SerialPort: p}
	g.framer.reset()
	return nil
}

func (g *GPS) Close() error {
	if g.port == nil {
		return nil
	}
	err := g.port.Close()
	g.port = nil
	return err
}

// Start consumes the port until a read fails. The port is closed when ctx
// is done so that a blocked read returns.
func (g *GPS) Start(ctx context.Context) error {
	port := g.port
	if port == nil {
		return errors.New("gps port not open")
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = port.Close()
		case <-done:
		}
	}()

	rdr := bufio.NewReader(port)
	for {
		b, err := rdr.ReadByte()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "unable to read from gps")
		}
		if sentence, ok := g.framer.Feed(b); ok {
			g.handleSentence(sentence)
		}
	}
}

func (g *GPS) handleSentence(raw string) {
	s, err := nmea.Parse(raw)
	if err != nil {
		log.WithError(err).WithField("sentence", raw).Warn("gps: discarding malformed sentence")
		g.metrics.Sentence("unknown", metrics.ResultParseError)
		return
	}

	switch v := s.(type) {
	case nmea.GGA:
		if v.FixQuality == nmea.Invalid {
			log.Debug("gps: no satellite fix")
			g.metrics.Sentence(nmea.TypeGGA, metrics.ResultNoFix)
			return
		}
		g.store.Mutate(func(r *Record) {
			r.Latitude = Float32(float32(v.Latitude))
			r.Longitude = Float32(float32(v.Longitude))
			r.GPSAltitude = Float32(float32(v.Altitude))
			if v.Time.Valid {
				r.TimeOfDay = Uint32(PackTimeOfDay(v.Time.Hour, v.Time.Minute, v.Time.Second))
			}
		})
		g.metrics.Sentence(nmea.TypeGGA, metrics.ResultOK)
	case nmea.GLL:
		if v.Validity != nmea.ValidGLL {
			log.Debug("gps: position not valid")
			g.metrics.Sentence(nmea.TypeGLL, metrics.ResultNoFix)
			return
		}
		g.store.Mutate(func(r *Record) {
			r.Latitude = Float32(float32(v.Latitude))
			r.Longitude = Float32(float32(v.Longitude))
			if v.Time.Valid {
				r.TimeOfDay = Uint32(PackTimeOfDay(v.Time.Hour, v.Time.Minute, v.Time.Second))
			}
		})
		g.metrics.Sentence(nmea.TypeGLL, metrics.ResultOK)
	default:
		g.metrics.Sentence(s.DataType(), metrics.ResultIgnored)
	}
}

// onceCloser lets both the cancellation watcher and the retry loop close
// the port.
type onceCloser struct {
	SerialPort
	once sync.Once
	err  error
}

func (c *onceCloser) Close() error {
	c.once.Do(func() {
		c.err = c.SerialPort.Close()
	})
	return c.err
}
