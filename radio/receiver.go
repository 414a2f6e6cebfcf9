package radio

import (
	"context"
	"github.com/jd3nn1s/flightlink"
	"github.com/jd3nn1s/flightlink/codec"
	"github.com/jd3nn1s/flightlink/metrics"
	log "github.com/sirupsen/logrus"
	"time"
)

// Receiver listens as much as it can. Every cycle re-arms the PHY, so a
// missed or corrupted arm costs at most one receive timeout.
type Receiver struct {
	link

	Modulation Modulation
	Timeouts   Timeouts
	// RearmBackoff is slept after a failed arm so a PHY that fails
	// instantly does not spin the loop.
	RearmBackoff time.Duration

	publishers []flightlink.Publisher
	metrics    *metrics.Collector
}

func NewReceiver(phy PHY, mod Modulation, timeouts Timeouts, m *metrics.Collector) *Receiver {
	return &Receiver{
		link:         newLink(phy),
		Modulation:   mod,
		Timeouts:     timeouts,
		RearmBackoff: 10 * time.Millisecond,
		metrics:      m,
	}
}

func (r *Receiver) Name() string {
	return "radio-rx"
}

// AddPublisher registers a consumer for every decoded record.
func (r *Receiver) AddPublisher(p flightlink.Publisher) {
	r.publishers = append(r.publishers, p)
}

func (r *Receiver) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_ = r.cycle(ctx)
	}
}

func (r *Receiver) cycle(ctx context.Context) error {
	defer r.setState(Idle)

	r.setState(Preparing)
	err := r.bounded(ctx, "prepare rx", r.Timeouts.Prepare, func(ctx context.Context) error {
		return r.phy.PrepareRx(ctx, r.Modulation)
	})
	if err != nil {
		r.fail(err, metrics.ResultPrepareTimeout, metrics.ResultPrepareError)
		if r.RearmBackoff > 0 {
			select {
			case <-time.After(r.RearmBackoff):
			case <-ctx.Done():
			}
		}
		return err
	}

	r.setState(Active)
	// fresh per cycle; a driver that overruns its deadline may still write
	// into the previous one
	buf := make([]byte, codec.MaxPayload)
	var n int
	var status PacketStatus
	err = r.bounded(ctx, "rx", r.Timeouts.Rx, func(ctx context.Context) error {
		var rxErr error
		n, status, rxErr = r.phy.Rx(ctx, buf)
		return rxErr
	})
	if err != nil {
		r.fail(err, metrics.ResultTimeout, metrics.ResultError)
		return err
	}

	log.WithField("bytes", n).
		WithField("rssi", status.RSSI).
		WithField("snr", status.SNR).
		Debug("radio: rx done")
	r.metrics.PacketStatus(float64(status.RSSI), float64(status.SNR))

	if n > len(buf) {
		n = len(buf)
	}
	rec, err := codec.Decode(buf[:n])
	if err != nil {
		log.WithError(err).WithField("bytes", n).Warn("radio: discarding undecodable packet")
		r.metrics.RxCycle(metrics.ResultDecodeError)
		return err
	}
	r.metrics.RxCycle(metrics.ResultOK)
	for _, p := range r.publishers {
		p.Publish(rec)
	}
	return nil
}

func (r *Receiver) fail(err error, timeoutResult, errorResult string) {
	result, ok := outcome(err, timeoutResult, errorResult)
	if !ok {
		return
	}
	entry := log.WithError(err).WithField("state", r.State())
	if result == metrics.ResultBusy {
		// the timeout that left the driver hung has already been logged
		entry.Debug("radio: skipping rx cycle, driver busy")
	} else {
		entry.Warn("radio: abandoning rx cycle")
	}
	r.metrics.RxCycle(result)
}
