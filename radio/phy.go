// Package radio moves telemetry records over a long range packet radio.
// The modulation itself is the PHY's business; this package owns the
// transmit and receive loops and keeps every PHY call on a deadline.
package radio

import (
	"context"
	"github.com/jd3nn1s/flightlink"
	"time"
)

// Modulation is agreed by both ends out of band; it is never negotiated
// over the air.
type Modulation struct {
	FrequencyHz     uint32
	SpreadingFactor uint8
	BandwidthHz     uint32
	CodingRate      uint8 // denominator of 4/x
	PreambleLen     uint16
	TxPowerDBm      int8
}

// PacketStatus describes the link quality of a received packet.
type PacketStatus struct {
	RSSI int // dBm
	SNR  int // dB
}

// PHY is the radio driver. Implementations should honor ctx but the link
// does not rely on it.
type PHY interface {
	PrepareTx(ctx context.Context, mod Modulation, payload []byte) error
	Tx(ctx context.Context) error
	PrepareRx(ctx context.Context, mod Modulation) error
	Rx(ctx context.Context, buf []byte) (int, PacketStatus, error)
}

type Timeouts struct {
	Prepare time.Duration
	Tx      time.Duration
	Rx      time.Duration
}

func ModulationFromConfig(c flightlink.RadioConfig) Modulation {
	return Modulation{
		FrequencyHz:     c.FrequencyHz,
		SpreadingFactor: c.SpreadingFactor,
		BandwidthHz:     c.BandwidthHz,
		CodingRate:      c.CodingRate,
		PreambleLen:     c.Preamble,
		TxPowerDBm:      c.TxPowerDBm,
	}
}

func TimeoutsFromConfig(c flightlink.RadioConfig) Timeouts {
	return Timeouts{
		Prepare: c.PrepareTimeout.Duration,
		Tx:      c.TxTimeout.Duration,
		Rx:      c.RxTimeout.Duration,
	}
}
