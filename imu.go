package flightlink

import (
	"context"
	"github.com/jd3nn1s/flightlink/canimu"
	"github.com/jd3nn1s/flightlink/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"sync"
	"time"
)

const defaultIMUIdlePeriod = 10 * time.Second

// IMU keeps the inertial unit running in fusion mode. It does not write any
// record fields yet; the latest orientation is only logged.
type IMU struct {
	IfName     string
	IdlePeriod time.Duration

	c       InertialUnit
	metrics *metrics.Collector

	mu          sync.Mutex
	orientation *canimu.Orientation
}

func NewIMU(ifName string, m *metrics.Collector) *IMU {
	return &IMU{
		IfName:     ifName,
		IdlePeriod: defaultIMUIdlePeriod,
		metrics:    m,
	}
}

func (u *IMU) Name() string {
	return "imu"
}

func (u *IMU) Run(ctx context.Context) error {
	return retry(ctx, u)
}

func (u *IMU) Open() error {
	c, err := imuConnect(u.IfName)
	if err != nil {
		return err
	}
	if err := c.SetMode(canimu.ModeNDOF); err != nil {
		_ = c.Close()
		return errors.Wrap(err, "unable to set imu fusion mode")
	}
	u.c = c
	return nil
}

func (u *IMU) Close() error {
	if u.c == nil {
		return nil
	}
	err := u.c.Close()
	u.c = nil
	return err
}

// Start runs the unit and idles, logging the latest orientation once per
// IdlePeriod, until the unit stops.
func (u *IMU) Start(ctx context.Context) error {
	c := u.c
	if c == nil {
		return errors.New("imu not open")
	}
	errChan := make(chan error, 1)
	go func() {
		errChan <- c.Start(ctx, canimu.Callbacks{
			Orientation: u.setOrientation,
			Calibration: func(status uint8) {
				log.WithField("status", status).Debug("imu calibration")
			},
		})
	}()

	ticker := time.NewTicker(u.IdlePeriod)
	defer ticker.Stop()
	for {
		select {
		case err := <-errChan:
			if err == nil {
				err = errors.New("imu bus stopped")
			}
			return err
		case <-ctx.Done():
			<-errChan
			return ctx.Err()
		case <-ticker.C:
			if o := u.Orientation(); o != nil {
				log.WithField("heading", o.Heading).
					WithField("roll", o.Roll).
					WithField("pitch", o.Pitch).
					Debug("imu orientation")
			}
		}
	}
}

func (u *IMU) setOrientation(o canimu.Orientation) {
	u.mu.Lock()
	u.orientation = &o
	u.mu.Unlock()
	u.metrics.Sample(u.Name(), metrics.ResultOK)
}

// Orientation is the last orientation the unit reported, nil before the
// first frame.
func (u *IMU) Orientation() *canimu.Orientation {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.orientation == nil {
		return nil
	}
	o := *u.orientation
	return &o
}
