package flightlink

import (
	"context"
	"github.com/jd3nn1s/flightlink/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"math"
	"time"
)

// SeaLevelPressure is the standard atmosphere reference in pascals.
const SeaLevelPressure float32 = 101325

// PressureToAltitude applies the international barometric formula. Without
// a local sea level reference the result is only good as a trend.
func PressureToAltitude(pressure, seaLevel float32) float32 {
	return 44330 * (1 - float32(math.Pow(float64(pressure/seaLevel), 0.1903)))
}

// Altimeter samples a barometer on a fixed period and writes the barometric
// altitude, plus the change since the first sample of the run.
type Altimeter struct {
	Bus      string
	Period   time.Duration
	SeaLevel float32

	store    *Store
	metrics  *metrics.Collector
	baseline *float32
}

func NewAltimeter(store *Store, bus string, period time.Duration, seaLevel float32, m *metrics.Collector) *Altimeter {
	return &Altimeter{
		Bus:      bus,
		Period:   period,
		SeaLevel: seaLevel,
		store:    store,
		metrics:  m,
	}
}

func (a *Altimeter) Name() string {
	return "altimeter"
}

func (a *Altimeter) Run(ctx context.Context) error {
	dev, err := baroConnect(a.Bus)
	if err != nil {
		return errors.Wrap(err, "altimeter: unable to initialize barometer")
	}
	defer func() {
		if err := dev.Close(); err != nil {
			log.WithError(err).Warn("altimeter: unable to close barometer")
		}
	}()
	log.WithField("bus", a.Bus).Info("altimeter initialized")

	ticker := time.NewTicker(a.Period)
	defer ticker.Stop()
	for {
		a.sample(dev)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (a *Altimeter) sample(dev Barometer) {
	pressure, err := dev.Pressure()
	if err != nil {
		log.WithError(err).Warn("altimeter: unable to read pressure")
		a.metrics.Sample(a.Name(), metrics.ResultError)
		return
	}
	alt := PressureToAltitude(pressure, a.SeaLevel)
	if a.baseline == nil {
		a.baseline = Float32(alt)
		log.WithField("altitude", alt).Info("altimeter: baseline set")
	}
	rel := alt - *a.baseline
	a.store.Mutate(func(r *Record) {
		r.BaroAltitude = Float32(alt)
		r.RelativeAltitude = Float32(rel)
	})
	a.metrics.Sample(a.Name(), metrics.ResultOK)
}
