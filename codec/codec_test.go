package codec

import (
	"github.com/jd3nn1s/flightlink"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"math"
	"testing"
)

func fullRecord() flightlink.Record {
	return flightlink.Record{
		Longitude:        flightlink.Float32(-122.4194),
		Latitude:         flightlink.Float32(37.7749),
		GPSAltitude:      flightlink.Float32(1234.5),
		BaroAltitude:     flightlink.Float32(1201.25),
		RelativeAltitude: flightlink.Float32(-3.5),
		TimeOfDay:        flightlink.Uint32(235959),
	}
}

func TestRoundTrip(t *testing.T) {
	records := []flightlink.Record{
		{},
		fullRecord(),
		{Latitude: flightlink.Float32(1), Longitude: flightlink.Float32(2)},
		{BaroAltitude: flightlink.Float32(0)},
		{TimeOfDay: flightlink.Uint32(0)},
		{GPSAltitude: flightlink.Float32(math.MaxFloat32), RelativeAltitude: flightlink.Float32(-math.SmallestNonzeroFloat32)},
		{Latitude: flightlink.Float32(float32(math.NaN())), Longitude: flightlink.Float32(float32(math.Inf(1)))},
		{BaroAltitude: flightlink.Float32(float32(math.Inf(-1))), RelativeAltitude: flightlink.Float32(float32(math.Copysign(0, -1)))},
	}
	for _, r := range records {
		buf := make([]byte, MaxPayload)
		n, err := Encode(r, buf)
		require.NoError(t, err)
		assert.Equal(t, EncodedLen(r), n)
		assert.True(t, n <= MaxPayload)

		decoded, err := Decode(buf[:n])
		require.NoError(t, err)
		assert.True(t, r.Equal(decoded), "round trip of %v gave %v", r, decoded)
	}
}

func TestEncodeDeterministic(t *testing.T) {
	a, err := Marshal(fullRecord())
	require.NoError(t, err)
	b, err := Marshal(fullRecord())
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 26)
}

func TestEncodeLayout(t *testing.T) {
	b, err := Marshal(flightlink.Record{
		Latitude:  flightlink.Float32(1),
		TimeOfDay: flightlink.Uint32(120000),
	})
	require.NoError(t, err)
	assert.Equal(t, []byte{
		Version, bitLatitude | bitTimeOfDay,
		0x00, 0x00, 0x80, 0x3f,
		0xc0, 0xd4, 0x01, 0x00,
	}, b)
}

func TestEncodeOverflow(t *testing.T) {
	dst := make([]byte, 25)
	for i := range dst {
		dst[i] = 0xaa
	}
	n, err := Encode(fullRecord(), dst)
	assert.Equal(t, 0, n)
	assert.True(t, errors.Is(err, ErrEncodeOverflow))

	var overflow *EncodeOverflowError
	require.True(t, errors.As(err, &overflow))
	assert.Equal(t, 26, overflow.Need)
	assert.Equal(t, 25, overflow.Have)

	for i, b := range dst {
		assert.Equal(t, byte(0xaa), b, "byte %d written on overflow", i)
	}

	_, err = Encode(flightlink.Record{}, nil)
	assert.True(t, errors.Is(err, ErrEncodeOverflow))
}

func TestDecodeIgnoresPadding(t *testing.T) {
	buf := make([]byte, MaxPayload)
	for i := range buf {
		buf[i] = 0xff
	}
	n, err := Encode(fullRecord(), buf)
	require.NoError(t, err)

	decoded, err := Decode(buf)
	require.NoError(t, err)
	assert.True(t, fullRecord().Equal(decoded))
	assert.Equal(t, byte(0xff), buf[n])
}

func TestDecodeErrors(t *testing.T) {
	full, err := Marshal(fullRecord())
	require.NoError(t, err)

	cases := map[string][]byte{
		"empty":         {},
		"short header":  {Version},
		"bad version":   {2, 0},
		"unknown bits":  {Version, 0x80},
		"truncated":     full[:len(full)-1],
		"missing field": {Version, bitLatitude, 0x00, 0x00},
	}
	for name, b := range cases {
		_, err := Decode(b)
		assert.True(t, errors.Is(err, ErrDecode), name)
		var de *DecodeError
		assert.True(t, errors.As(err, &de), name)
	}
}
