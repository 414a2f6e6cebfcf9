package forwarder

import (
	"context"
	"fmt"
	"github.com/jd3nn1s/flightlink"
	"github.com/jd3nn1s/flightlink/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net"
	"testing"
	"time"
)

func testRecord() flightlink.Record {
	return flightlink.Record{
		Longitude:        flightlink.Float32(-122.5),
		Latitude:         flightlink.Float32(37.25),
		GPSAltitude:      flightlink.Float32(812),
		BaroAltitude:     flightlink.Float32(805.5),
		RelativeAltitude: flightlink.Float32(790),
		TimeOfDay:        flightlink.Uint32(123456),
	}
}

func TestUDPForwarder(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()
	udpAddr := pc.LocalAddr().(*net.UDPAddr)

	recvData := struct {
		data []byte
		len  int
	}{}

	dataChan := make(chan struct{}, 1)
	go func() {
		buffer := make([]byte, 1024)
		assert.NoError(t, pc.SetReadDeadline(time.Now().Add(time.Second*3)))
		n, _, err := pc.ReadFrom(buffer)
		assert.NoError(t, err)
		recvData.data = buffer
		recvData.len = n
		dataChan <- struct{}{}
	}()

	udp, err := NewUDPForwarder(flightlink.ForwarderConfig{
		Server: "127.0.0.1",
		Port:   udpAddr.Port,
	}, nil)
	require.NoError(t, err)
	defer udp.Close()
	udp.Interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = udp.Run(ctx)
	}()

	sent := testRecord()
	udp.Publish(sent)

	<-dataChan
	assert.Equal(t, 27, recvData.len)
	assert.Equal(t, uint8(TypeTelemetry), recvData.data[0])

	recv, err := UnmarshalPacket(recvData.data[:recvData.len])
	require.NoError(t, err)
	assert.True(t, sent.Equal(recv), fmt.Sprintf("sent %s, received %s", sent, recv))
}

func TestPublishNeverBlocks(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	udp, err := NewUDPForwarder(flightlink.ForwarderConfig{
		Server: "127.0.0.1",
		Port:   pc.LocalAddr().(*net.UDPAddr).Port,
	}, m)
	require.NoError(t, err)
	defer udp.Close()

	// not running, so only the first record fits
	for i := 0; i < 3; i++ {
		udp.Publish(testRecord())
	}
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Forwarded.WithLabelValues(metrics.ResultDropped)))
}

func TestPublishCopiesRecord(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer pc.Close()

	udp, err := NewUDPForwarder(flightlink.ForwarderConfig{
		Server: "127.0.0.1",
		Port:   pc.LocalAddr().(*net.UDPAddr).Port,
	}, nil)
	require.NoError(t, err)
	defer udp.Close()

	r := testRecord()
	udp.Publish(r)
	*r.Latitude = 0

	queued := <-udp.fwdChan
	assert.Equal(t, float32(37.25), *queued.Latitude)
}

func TestUnmarshalPacket(t *testing.T) {
	pkt, err := MarshalPacket(flightlink.Record{})
	require.NoError(t, err)
	assert.Equal(t, []byte{TypeTelemetry, 1, 0}, pkt)

	_, err = UnmarshalPacket(nil)
	assert.Error(t, err)
	_, err = UnmarshalPacket([]byte{2, 1, 0})
	assert.Error(t, err)
	_, err = UnmarshalPacket([]byte{TypeTelemetry, 1})
	assert.Error(t, err)
}
