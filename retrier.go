package flightlink

import (
	"context"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"time"
)

var retrySleep = time.Second

// Retryable is a device connection that can be reopened after a transient
// failure.
type Retryable interface {
	Open() error
	Close() error
	Start(ctx context.Context) error
	Name() string
}

// retry opens r and keeps it running until ctx is done. Failing to open r
// the first time means the device never initialized and is returned to the
// caller; later failures are logged and the device reopened.
func retry(ctx context.Context, r Retryable) error {
	if err := r.Open(); err != nil {
		return errors.Wrapf(err, "%s: unable to initialize", r.Name())
	}
	var err error
	for {
		select {
		case <-ctx.Done():
			if cerr := r.Close(); cerr != nil {
				log.WithError(cerr).Warnf("%s: unable to close", r.Name())
			}
			return ctx.Err()
		default:
		}
		if err != nil {
			log.WithError(err).Errorf("%s: reconnecting due to error", r.Name())
			if err = r.Close(); err != nil {
				log.WithError(err).Warnf("%s: unable to close", r.Name())
			}
			if !sleep(ctx, retrySleep) {
				return ctx.Err()
			}
			err = r.Open()
			if err != nil {
				continue
			}
		}
		err = r.Start(ctx)
	}
}

// sleep waits for d and reports whether it ran to completion.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
