package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/jd3nn1s/flightlink"
	"github.com/jd3nn1s/flightlink/forwarder"
	"github.com/jd3nn1s/flightlink/metrics"
	"github.com/jd3nn1s/flightlink/radio"
	"github.com/jd3nn1s/flightlink/radio/loopback"
	"github.com/jd3nn1s/flightlink/radio/rylr"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"os"
	"os/signal"
	"syscall"
)

var configFile = flag.String("config", "flightlink.toml", "configuration file, relative to the binary")
var testMode = flag.Bool("testmode", false, "generate test data and loop it back over an in-memory radio")
var role = flag.String("role", "", "override the configured radio role (tx or rx)")
var printTelemetry = flag.Bool("print-telemetry", false, "print received telemetry to stdout")

// stdoutPublisher prints every record handed to it.
type stdoutPublisher struct{}

func (stdoutPublisher) Publish(r flightlink.Record) {
	fmt.Printf("%s\n", r)
}

func main() {
	log.SetLevel(log.InfoLevel)
	flag.Parse()

	config, err := loadConfig()
	if err != nil {
		log.Fatal("unable to load configuration: ", err)
	}
	config.ApplyLogLevel()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m, err := metrics.New(nil)
	if err != nil {
		log.Fatal("unable to register metrics: ", err)
	}
	if config.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, config.MetricsAddr); err != nil && err != ctx.Err() {
				log.WithError(err).Error("metrics listener stopped")
			}
		}()
	}

	fl := flightlink.NewFlightLink(flightlink.NewStore())
	reporter := flightlink.NewReporter(fl.Store(), config.ReportInterval.Duration)
	fl.AddTask(reporter)

	if *testMode {
		fl.AddTask(flightlink.NewTestMode(fl.Store()))
	} else {
		fl.AddSensorsForRole(config.Sensors, config.Radio.Role, m)
	}

	// records received over the radio are reported and passed on
	publishers := []flightlink.Publisher{reporter}
	if *printTelemetry {
		publishers = append(publishers, stdoutPublisher{})
	}
	if config.Forwarder.Server != "" {
		fwder, err := forwarder.NewUDPForwarder(config.Forwarder, m)
		if err != nil {
			log.Fatal("unable to start UDP forwarder: ", err)
		}
		defer fwder.Close()
		fl.AddTask(fwder)
		publishers = append(publishers, fwder)
	}

	mod := radio.ModulationFromConfig(config.Radio)
	timeouts := radio.TimeoutsFromConfig(config.Radio)
	if *testMode {
		txPHY, rxPHY := loopback.NewPair(1)
		fl.AddTask(radio.NewTransmitter(txPHY, fl.Store(), mod, config.Radio.TxInterval.Duration, timeouts, m))
		fl.AddTask(newReceiver(rxPHY, mod, timeouts, m, publishers))
	} else if config.Radio.Role != "" {
		modem, err := rylr.Open(config.Radio.Port, config.Radio.Baud, config.Radio.Address)
		if err != nil {
			log.Fatal("unable to open radio: ", err)
		}
		defer modem.Close()

		if config.Radio.Role == flightlink.RoleReceive {
			fl.AddTask(newReceiver(modem, mod, timeouts, m, append(publishers, fl.Store())))
		} else {
			fl.AddTask(radio.NewTransmitter(modem, fl.Store(), mod, config.Radio.TxInterval.Duration, timeouts, m))
		}
	} else {
		log.Info("radio disabled")
	}

	fl.Start(ctx)
	fl.Wait()
	log.Info("shut down")
}

func loadConfig() (*flightlink.Config, error) {
	config, err := flightlink.LoadConfig(*configFile)
	if err != nil {
		if !os.IsNotExist(errors.Cause(err)) {
			return nil, err
		}
		log.WithField("file", *configFile).Warn("no configuration file, using defaults")
		c := flightlink.DefaultConfig()
		config = &c
	}
	if *role != "" {
		config.Radio.Role = *role
		if err := config.Validate(); err != nil {
			return nil, err
		}
	}
	return config, nil
}

func newReceiver(phy radio.PHY, mod radio.Modulation, timeouts radio.Timeouts, m *metrics.Collector, publishers []flightlink.Publisher) *radio.Receiver {
	rx := radio.NewReceiver(phy, mod, timeouts, m)
	for _, p := range publishers {
		rx.AddPublisher(p)
	}
	return rx
}
