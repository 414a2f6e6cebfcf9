package forwarder

import (
	"context"
	"fmt"
	"github.com/jd3nn1s/flightlink"
	"github.com/jd3nn1s/flightlink/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"net"
	"time"
)

const defaultInterval = 100 * time.Millisecond

// UDPForwarder republishes records to a ground station server. Publish
// never blocks; when a record is still waiting to go out the new one is
// dropped.
type UDPForwarder struct {
	Config   flightlink.ForwarderConfig
	Interval time.Duration

	conn    net.Conn
	fwdChan chan flightlink.Record
	metrics *metrics.Collector
}

func NewUDPForwarder(config flightlink.ForwarderConfig, m *metrics.Collector) (*UDPForwarder, error) {
	udp := &UDPForwarder{
		Config:   config,
		Interval: defaultInterval,
		fwdChan:  make(chan flightlink.Record, 1),
		metrics:  m,
	}
	if err := udp.connect(); err != nil {
		return nil, err
	}
	return udp, nil
}

func (udp *UDPForwarder) Name() string {
	return "forwarder"
}

func (udp *UDPForwarder) Close() error {
	return udp.conn.Close()
}

func (udp *UDPForwarder) Publish(r flightlink.Record) {
	select {
	// clone as we're processing it on another go-routine
	case udp.fwdChan <- r.Clone():
	default:
		// if channel is full, skip
		udp.metrics.Forward(metrics.ResultDropped)
	}
}

func (udp *UDPForwarder) Run(ctx context.Context) error {
	limiter := time.NewTicker(udp.Interval)
	defer limiter.Stop()
	for {
		select {
		case <-limiter.C:
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case r := <-udp.fwdChan:
			if err := udp.forward(r); err != nil {
				log.WithError(err).Error("unable to forward telemetry to server")
				udp.metrics.Forward(metrics.ResultError)
				continue
			}
			udp.metrics.Forward(metrics.ResultOK)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (udp *UDPForwarder) forward(r flightlink.Record) error {
	pkt, err := MarshalPacket(r)
	if err != nil {
		return err
	}
	_, err = udp.conn.Write(pkt)
	return errors.Wrap(err, "unable to write telemetry udp packet")
}

func (udp *UDPForwarder) connect() error {
	writeBufSize := maxPacketSize * 2

	conn, err := net.Dial("udp", fmt.Sprintf("%s:%d",
		udp.Config.Server,
		udp.Config.Port))
	if err != nil {
		return errors.Wrap(err, "unable to dial forwarder server")
	}
	udpConn := conn.(*net.UDPConn)
	if err = udpConn.SetWriteBuffer(writeBufSize); err != nil {
		_ = conn.Close()
		return errors.Wrapf(err, "unable to set OS write buffer to %v", writeBufSize)
	}

	udp.conn = conn
	return nil
}
