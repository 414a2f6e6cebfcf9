package radio

import (
	"context"
	"sync"
	"time"
)

var testTimeouts = Timeouts{
	Prepare: 20 * time.Millisecond,
	Tx:      50 * time.Millisecond,
	Rx:      20 * time.Millisecond,
}

var testModulation = Modulation{
	FrequencyHz:     433000000,
	SpreadingFactor: 10,
	BandwidthHz:     15600,
	CodingRate:      8,
	PreambleLen:     16,
	TxPowerDBm:      20,
}

type phyStub struct {
	mu    sync.Mutex
	calls map[string]int

	prepareTx func(ctx context.Context, mod Modulation, payload []byte) error
	tx        func(ctx context.Context) error
	prepareRx func(ctx context.Context, mod Modulation) error
	rx        func(ctx context.Context, buf []byte) (int, PacketStatus, error)
}

func newPHYStub() *phyStub {
	return &phyStub{
		calls: map[string]int{},
	}
}

func (p *phyStub) called(name string) {
	p.mu.Lock()
	p.calls[name]++
	p.mu.Unlock()
}

func (p *phyStub) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[name]
}

func (p *phyStub) PrepareTx(ctx context.Context, mod Modulation, payload []byte) error {
	p.called("PrepareTx")
	if p.prepareTx == nil {
		return nil
	}
	return p.prepareTx(ctx, mod, payload)
}

func (p *phyStub) Tx(ctx context.Context) error {
	p.called("Tx")
	if p.tx == nil {
		return nil
	}
	return p.tx(ctx)
}

func (p *phyStub) PrepareRx(ctx context.Context, mod Modulation) error {
	p.called("PrepareRx")
	if p.prepareRx == nil {
		return nil
	}
	return p.prepareRx(ctx, mod)
}

func (p *phyStub) Rx(ctx context.Context, buf []byte) (int, PacketStatus, error) {
	p.called("Rx")
	if p.rx == nil {
		<-ctx.Done()
		return 0, PacketStatus{}, ctx.Err()
	}
	return p.rx(ctx, buf)
}

// hang blocks like a driver waiting on an interrupt that never fires,
// ignoring its context, until release is closed.
func hang(release <-chan struct{}) {
	<-release
}
