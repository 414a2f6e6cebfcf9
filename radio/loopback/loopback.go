// Package loopback is an in-memory radio: whatever one end transmits the
// other receives, provided both use the same modulation.
package loopback

import (
	"context"
	"github.com/jd3nn1s/flightlink/radio"
	"github.com/pkg/errors"
	"sync"
)

var ErrModulationMismatch = errors.New("modulation mismatch")

type ether struct {
	packets chan []byte
	mu      sync.Mutex
	txMod   radio.Modulation
}

// PHY is one end of a loopback pair.
type PHY struct {
	ether   *ether
	Status  radio.PacketStatus
	pending []byte
	rxMod   radio.Modulation
}

// NewPair returns a transmitting and a receiving end sharing a channel that
// holds up to depth packets in flight.
func NewPair(depth int) (tx *PHY, rx *PHY) {
	e := &ether{
		packets: make(chan []byte, depth),
	}
	return &PHY{ether: e}, &PHY{ether: e, Status: radio.PacketStatus{RSSI: -40, SNR: 10}}
}

func (p *PHY) PrepareTx(ctx context.Context, mod radio.Modulation, payload []byte) error {
	p.ether.mu.Lock()
	p.ether.txMod = mod
	p.ether.mu.Unlock()
	p.pending = append(p.pending[:0], payload...)
	return nil
}

// Tx blocks while the channel is full, like a radio waiting for air.
func (p *PHY) Tx(ctx context.Context) error {
	if p.pending == nil {
		return errors.New("tx without prepare")
	}
	pkt := append([]byte{}, p.pending...)
	p.pending = nil
	select {
	case p.ether.packets <- pkt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *PHY) PrepareRx(ctx context.Context, mod radio.Modulation) error {
	p.rxMod = mod
	return nil
}

func (p *PHY) Rx(ctx context.Context, buf []byte) (int, radio.PacketStatus, error) {
	select {
	case pkt := <-p.ether.packets:
		p.ether.mu.Lock()
		txMod := p.ether.txMod
		p.ether.mu.Unlock()
		if txMod != p.rxMod {
			return 0, radio.PacketStatus{}, errors.Wrapf(ErrModulationMismatch, "tx %+v, rx %+v", txMod, p.rxMod)
		}
		return copy(buf, pkt), p.Status, nil
	case <-ctx.Done():
		return 0, radio.PacketStatus{}, ctx.Err()
	}
}
