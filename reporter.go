package flightlink

import (
	"context"
	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"time"
)

// Reporter periodically logs the store contents. A field that stays
// unknown points at a producer that is not running.
type Reporter struct {
	Interval time.Duration

	store *Store
}

func NewReporter(store *Store, interval time.Duration) *Reporter {
	return &Reporter{
		Interval: interval,
		store:    store,
	}
}

func (rp *Reporter) Name() string {
	return "reporter"
}

func (rp *Reporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(rp.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rp.report()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (rp *Reporter) report() {
	updated := "never"
	if t := rp.store.LastUpdate(); !t.IsZero() {
		updated = humanize.Time(t)
	}
	log.WithField("updated", updated).Info(rp.store.Read().String())
}

// Publish logs a record received from another node.
func (rp *Reporter) Publish(r Record) {
	log.WithField("source", "radio").Info(r.String())
}
