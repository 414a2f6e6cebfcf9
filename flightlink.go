package flightlink

import (
	"context"
	"github.com/jd3nn1s/flightlink/metrics"
	log "github.com/sirupsen/logrus"
	"sync"
)

// FlightLink owns the store and the tasks that feed and drain it. Tasks
// only coordinate through the store; one task ending, cleanly or not, does
// not affect the others.
type FlightLink struct {
	store *Store
	tasks []Task
	wg    sync.WaitGroup
}

func NewFlightLink(store *Store) *FlightLink {
	return &FlightLink{
		store: store,
	}
}

func (fl *FlightLink) Store() *Store {
	return fl.store
}

func (fl *FlightLink) AddTask(t Task) {
	fl.tasks = append(fl.tasks, t)
}

// AddSensors adds a producer for every sensor enabled in cfg.
func (fl *FlightLink) AddSensors(cfg SensorConfig, m *metrics.Collector) {
	if cfg.GPS {
		fl.AddTask(NewGPS(fl.store, cfg.GPSPort, cfg.GPSBaud, m))
	}
	if cfg.Altimeter {
		fl.AddTask(NewAltimeter(fl.store, cfg.I2CBus, cfg.AltimeterPeriod.Duration, cfg.SeaLevelPressure, m))
	}
	if cfg.IMU {
		fl.AddTask(NewIMU(cfg.IMUCAN, m))
	}
}

// AddSensorsForRole adds the sensors a node in role should run. A receiving
// node mirrors the remote record, so its local sensors stay off.
func (fl *FlightLink) AddSensorsForRole(cfg SensorConfig, role string, m *metrics.Collector) {
	if role == RoleReceive {
		if cfg.GPS || cfg.Altimeter || cfg.IMU {
			log.WithField("gps", cfg.GPS).
				WithField("altimeter", cfg.Altimeter).
				WithField("imu", cfg.IMU).
				Warn("sensors are disabled in the receive role")
		}
		return
	}
	fl.AddSensors(cfg, m)
}

func (fl *FlightLink) Start(ctx context.Context) {
	for _, t := range fl.tasks {
		fl.wg.Add(1)
		go func(t Task) {
			defer fl.wg.Done()
			runTask(ctx, t)
		}(t)
	}
}

// Wait blocks until every started task has returned.
func (fl *FlightLink) Wait() {
	fl.wg.Wait()
}

func runTask(ctx context.Context, t Task) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Errorf("%s: task panicked", t.Name())
		}
	}()
	log.Infof("%s: starting", t.Name())
	err := t.Run(ctx)
	if err != nil && err != ctx.Err() {
		log.Errorf("%s done: %v", t.Name(), err)
		return
	}
	log.Infof("%s done", t.Name())
}
