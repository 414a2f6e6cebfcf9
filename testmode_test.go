package flightlink

import (
	"context"
	"github.com/stretchr/testify/assert"
	"testing"
	"time"
)

func TestTestModeFillsRecord(t *testing.T) {
	store := NewStore()
	tm := NewTestMode(store)
	tm.Period = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- tm.Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		r := store.Read()
		return r.GPSAltitude != nil && *r.GPSAltitude >= 20
	}, time.Second, time.Millisecond)
	cancel()
	assert.Equal(t, context.Canceled, <-done)

	r := store.Read()
	assert.NotNil(t, r.Latitude)
	assert.NotNil(t, r.Longitude)
	assert.NotNil(t, r.BaroAltitude)
	assert.NotNil(t, r.RelativeAltitude)
	assert.NotNil(t, r.TimeOfDay)
}
