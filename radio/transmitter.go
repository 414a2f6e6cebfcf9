package radio

import (
	"context"
	"github.com/jd3nn1s/flightlink"
	"github.com/jd3nn1s/flightlink/codec"
	"github.com/jd3nn1s/flightlink/metrics"
	log "github.com/sirupsen/logrus"
	"time"
)

// Source is where the transmitter takes its snapshot from.
type Source interface {
	Read() flightlink.Record
}

// Transmitter sends a snapshot of the source every Interval. A cycle that
// fails is logged and abandoned; the next one starts from scratch.
type Transmitter struct {
	link

	Modulation Modulation
	Interval   time.Duration
	Timeouts   Timeouts

	source  Source
	metrics *metrics.Collector
}

func NewTransmitter(phy PHY, source Source, mod Modulation, interval time.Duration, timeouts Timeouts, m *metrics.Collector) *Transmitter {
	return &Transmitter{
		link:       newLink(phy),
		Modulation: mod,
		Interval:   interval,
		Timeouts:   timeouts,
		source:     source,
		metrics:    m,
	}
}

func (t *Transmitter) Name() string {
	return "radio-tx"
}

func (t *Transmitter) Run(ctx context.Context) error {
	timer := time.NewTimer(t.Interval)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
		_ = t.cycle(ctx)
		timer.Reset(t.Interval)
	}
}

// cycle runs one encode, prepare, transmit pass. The error is returned for
// tests; it has already been logged.
func (t *Transmitter) cycle(ctx context.Context) error {
	defer t.setState(Idle)

	buf := make([]byte, codec.MaxPayload)
	n, err := codec.Encode(t.source.Read(), buf)
	if err != nil {
		log.WithError(err).Error("radio: unable to encode telemetry, skipping cycle")
		t.metrics.TxCycle(metrics.ResultEncodeError)
		return err
	}
	frame := buf[:n]

	t.setState(Preparing)
	err = t.bounded(ctx, "prepare tx", t.Timeouts.Prepare, func(ctx context.Context) error {
		return t.phy.PrepareTx(ctx, t.Modulation, frame)
	})
	if err != nil {
		t.fail(err, metrics.ResultPrepareTimeout, metrics.ResultPrepareError)
		return err
	}

	t.setState(Active)
	start := time.Now()
	err = t.bounded(ctx, "tx", t.Timeouts.Tx, func(ctx context.Context) error {
		return t.phy.Tx(ctx)
	})
	if err != nil {
		t.fail(err, metrics.ResultTimeout, metrics.ResultError)
		return err
	}
	log.WithField("bytes", n).
		WithField("airtime", time.Since(start).Round(time.Millisecond)).
		Debug("radio: tx done")
	t.metrics.TxCycle(metrics.ResultOK)
	return nil
}

func (t *Transmitter) fail(err error, timeoutResult, errorResult string) {
	result, ok := outcome(err, timeoutResult, errorResult)
	if !ok {
		return
	}
	entry := log.WithError(err).WithField("state", t.State())
	if result == metrics.ResultBusy {
		// the timeout that left the driver hung has already been logged
		entry.Debug("radio: skipping tx cycle, driver busy")
	} else {
		entry.Warn("radio: abandoning tx cycle")
	}
	t.metrics.TxCycle(result)
}
