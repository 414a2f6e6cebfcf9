package flightlink

import (
	"context"
	"github.com/jd3nn1s/flightlink/metrics"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"sync"
	"testing"
	"time"
)

func TestPressureToAltitude(t *testing.T) {
	assert.InDelta(t, 0, PressureToAltitude(101325, SeaLevelPressure), 0.001)
	assert.InDelta(t, 1000, PressureToAltitude(89875, SeaLevelPressure), 1.5)
	assert.True(t, PressureToAltitude(100000, SeaLevelPressure) > 0)
	assert.True(t, PressureToAltitude(102000, SeaLevelPressure) < 0)
	// a calibrated reference moves the zero
	assert.InDelta(t, 0, PressureToAltitude(100000, 100000), 0.001)
}

func stubBaroConnect(b *baroStub, err error) func() {
	orig := baroConnect
	baroConnect = func(bus string) (Barometer, error) {
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return func() { baroConnect = orig }
}

func TestAltimeterSample(t *testing.T) {
	store := NewStore()
	m := newTestCollector(t)
	alt := NewAltimeter(store, "", time.Second, SeaLevelPressure, m)

	b := &baroStub{readings: []baroReading{
		{pressure: 101325},
		{err: errors.New("i2c nack")},
		{pressure: 89875},
	}}

	alt.sample(b)
	r := store.Read()
	require.NotNil(t, r.BaroAltitude)
	require.NotNil(t, r.RelativeAltitude)
	assert.InDelta(t, 0, *r.BaroAltitude, 0.001)
	assert.InDelta(t, 0, *r.RelativeAltitude, 0.001)

	// a failed read leaves the record alone
	alt.sample(b)
	assert.True(t, r.Equal(store.Read()))

	alt.sample(b)
	r = store.Read()
	assert.InDelta(t, 1000, *r.BaroAltitude, 1.5)
	assert.InDelta(t, *r.BaroAltitude, *r.RelativeAltitude, 0.001)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Samples.WithLabelValues("altimeter", metrics.ResultOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Samples.WithLabelValues("altimeter", metrics.ResultError)))
}

func TestAltimeterBaseline(t *testing.T) {
	store := NewStore()
	alt := NewAltimeter(store, "", time.Second, SeaLevelPressure, nil)
	b := &baroStub{readings: []baroReading{{pressure: 89875}, {pressure: 101325}}}

	alt.sample(b)
	assert.InDelta(t, 0, *store.Read().RelativeAltitude, 0.001)
	alt.sample(b)
	assert.InDelta(t, -1000, *store.Read().RelativeAltitude, 1.5)
}

func TestAltimeterRun(t *testing.T) {
	b := &baroStub{readings: []baroReading{{pressure: 101325}, {err: errors.New("bus busy")}, {pressure: 100000}}}
	defer stubBaroConnect(b, nil)()

	store := NewStore()
	alt := NewAltimeter(store, "", time.Millisecond, SeaLevelPressure, nil)

	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}
	wg.Add(1)
	var err error
	go func() {
		err = alt.Run(ctx)
		wg.Done()
	}()

	// the transient error does not end the task
	assert.Eventually(t, func() bool {
		r := store.Read()
		return r.RelativeAltitude != nil && *r.RelativeAltitude > 100
	}, time.Second, time.Millisecond)

	cancel()
	wg.Wait()
	assert.Equal(t, context.Canceled, err)
	assert.True(t, b.Closed())
}

func TestAltimeterInitFailure(t *testing.T) {
	defer stubBaroConnect(nil, errors.New("no such bus"))()

	alt := NewAltimeter(NewStore(), "", time.Millisecond, SeaLevelPressure, nil)
	err := alt.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such bus")
}
