package flightlink

import (
	"context"
	"time"
)

// TestMode stands in for the sensors: it flies a slow climb and descent
// over a fixed patch of ground and writes it into the store like the real
// producers would.
type TestMode struct {
	Period time.Duration

	store *Store
}

func NewTestMode(store *Store) *TestMode {
	return &TestMode{
		Period: 200 * time.Millisecond,
		store:  store,
	}
}

func (tm *TestMode) Name() string {
	return "testmode"
}

func (tm *TestMode) Run(ctx context.Context) error {
	lat, lon := float32(37.7749), float32(-122.4194)
	alt := float32(0)
	down := false
	start := time.Now()

	ticker := time.NewTicker(tm.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}

		if down {
			alt -= 5
			lat -= 0.00001
			lon -= 0.00001
		} else {
			alt += 5
			lat += 0.00001
			lon += 0.00001
		}
		if alt >= 1000 {
			down = true
		} else if alt <= 0 {
			down = false
		}

		now := time.Now().UTC()
		elapsed := float32(time.Since(start).Seconds())
		baro := alt + elapsed*0.01 // uncalibrated drift
		tm.store.Mutate(func(r *Record) {
			r.Latitude = Float32(lat)
			r.Longitude = Float32(lon)
			r.GPSAltitude = Float32(alt)
			r.BaroAltitude = Float32(baro)
			r.RelativeAltitude = Float32(alt)
			r.TimeOfDay = Uint32(PackTimeOfDay(now.Hour(), now.Minute(), now.Second()))
		})
	}
}
