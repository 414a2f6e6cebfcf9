package metrics

import (
	"context"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"net/http"
	"time"
)

// Outcome labels shared by the radio and sensor counters.
const (
	ResultOK             = "ok"
	ResultEncodeError    = "encode_error"
	ResultDecodeError    = "decode_error"
	ResultPrepareTimeout = "prepare_timeout"
	ResultPrepareError   = "prepare_error"
	ResultTimeout        = "timeout"
	ResultError          = "error"
	ResultBusy           = "busy"
	ResultParseError     = "parse_error"
	ResultIgnored        = "ignored"
	ResultNoFix          = "no_fix"
	ResultDropped        = "dropped"
)

// Collector bundles the link's Prometheus metrics. A nil *Collector is valid
// and records nothing, so components can be built without metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	RadioTx   *prometheus.CounterVec
	RadioRx   *prometheus.CounterVec
	RxRSSI    prometheus.Gauge
	RxSNR     prometheus.Gauge
	Sentences *prometheus.CounterVec
	Samples   *prometheus.CounterVec
	Forwarded *prometheus.CounterVec
}

// New registers the metrics against reg, defaulting to the global registry
// when nil.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	tx, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "radio_tx_cycles_total",
		Help: "Transmit cycles, labeled by outcome.",
	}, []string{"result"}), "radio_tx_cycles_total")
	if err != nil {
		return nil, err
	}
	rx, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "radio_rx_cycles_total",
		Help: "Receive cycles, labeled by outcome.",
	}, []string{"result"}), "radio_rx_cycles_total")
	if err != nil {
		return nil, err
	}
	rssi, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "radio_rx_rssi_dbm",
		Help: "RSSI of the last received packet.",
	}), "radio_rx_rssi_dbm")
	if err != nil {
		return nil, err
	}
	snr, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "radio_rx_snr_db",
		Help: "SNR of the last received packet.",
	}), "radio_rx_snr_db")
	if err != nil {
		return nil, err
	}
	sentences, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gps_sentences_total",
		Help: "NMEA sentences seen by the GPS producer, labeled by type and outcome.",
	}, []string{"type", "result"}), "gps_sentences_total")
	if err != nil {
		return nil, err
	}
	samples, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sensor_samples_total",
		Help: "Sensor samples, labeled by sensor and outcome.",
	}, []string{"sensor", "result"}), "sensor_samples_total")
	if err != nil {
		return nil, err
	}

	forwarded, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forwarder_records_total",
		Help: "Records offered to the ground station forwarder, labeled by outcome.",
	}, []string{"result"}), "forwarder_records_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:  gatherer,
		RadioTx:   tx,
		RadioRx:   rx,
		RxRSSI:    rssi,
		RxSNR:     snr,
		Sentences: sentences,
		Samples:   samples,
		Forwarded: forwarded,
	}, nil
}

func (c *Collector) TxCycle(result string) {
	if c == nil {
		return
	}
	c.RadioTx.WithLabelValues(result).Inc()
}

func (c *Collector) RxCycle(result string) {
	if c == nil {
		return
	}
	c.RadioRx.WithLabelValues(result).Inc()
}

func (c *Collector) PacketStatus(rssi, snr float64) {
	if c == nil {
		return
	}
	c.RxRSSI.Set(rssi)
	c.RxSNR.Set(snr)
}

func (c *Collector) Sentence(sentenceType, result string) {
	if c == nil {
		return
	}
	c.Sentences.WithLabelValues(sentenceType, result).Inc()
}

func (c *Collector) Sample(sensor, result string) {
	if c == nil {
		return
	}
	c.Samples.WithLabelValues(sensor, result).Inc()
}

func (c *Collector) Forward(result string) {
	if c == nil {
		return
	}
	c.Forwarded.WithLabelValues(result).Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Serve runs a /metrics listener on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("unable to shut down metrics listener")
		}
	}()
	log.WithField("addr", addr).Info("serving metrics")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrapf(err, "metrics listener on %s", addr)
	}
	return ctx.Err()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, errors.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, errors.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
