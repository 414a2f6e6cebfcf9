package radio

import (
	"context"
	"github.com/jd3nn1s/flightlink/metrics"
	"github.com/pkg/errors"
	"sync/atomic"
	"time"
)

var (
	ErrTimeout = errors.New("radio operation timed out")
	// ErrBusy means an earlier operation that timed out has still not
	// returned from the driver.
	ErrBusy = errors.New("radio busy")
)

type State int32

const (
	Idle State = iota
	Preparing
	Active
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Preparing:
		return "preparing"
	case Active:
		return "active"
	}
	return "unknown"
}

// link serializes access to a PHY and bounds every call in time.
type link struct {
	phy   PHY
	state int32
	// holds one token while a driver call is outstanding
	busy chan struct{}
}

func newLink(phy PHY) link {
	return link{
		phy:  phy,
		busy: make(chan struct{}, 1),
	}
}

func (l *link) State() State {
	return State(atomic.LoadInt32(&l.state))
}

func (l *link) setState(s State) {
	atomic.StoreInt32(&l.state, int32(s))
}

// bounded runs op with a deadline of timeout. It returns ErrTimeout once the
// deadline passes even if op never returns; op keeps the PHY reserved until
// it does, and calls made in the meantime wait for it within their own
// deadline and then fail with ErrBusy.
func (l *link) bounded(ctx context.Context, name string, timeout time.Duration, op func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case l.busy <- struct{}{}:
	case <-opCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(ErrBusy, "%s", name)
	}

	done := make(chan error, 1)
	go func() {
		err := op(opCtx)
		<-l.busy
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return errors.Wrapf(ErrTimeout, "%s after %v", name, timeout)
		}
		return errors.Wrapf(err, "%s", name)
	case <-opCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(ErrTimeout, "%s after %v", name, timeout)
	}
}

// outcome maps a failed call onto its metrics label. ok is false when the
// call failed only because the task is stopping.
func outcome(err error, timeoutResult, errorResult string) (result string, ok bool) {
	switch {
	case errors.Is(err, context.Canceled):
		return "", false
	case errors.Is(err, ErrTimeout):
		return timeoutResult, true
	case errors.Is(err, ErrBusy):
		return metrics.ResultBusy, true
	}
	return errorResult, true
}
