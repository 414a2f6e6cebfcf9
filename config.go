package flightlink

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"io"
	"os"
	"path/filepath"
	"time"
)

const (
	RoleTransmit = "tx"
	RoleReceive  = "rx"
)

// Duration is a time.Duration that decodes from strings such as "100ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", text)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Config struct {
	LogLevel       string   `toml:"log_level"`
	MetricsAddr    string   `toml:"metrics_addr"`
	ReportInterval Duration `toml:"report_interval"`

	Sensors   SensorConfig    `toml:"sensors"`
	Radio     RadioConfig     `toml:"radio"`
	Forwarder ForwarderConfig `toml:"forwarder"`
}

type SensorConfig struct {
	GPS     bool   `toml:"gps"`
	GPSPort string `toml:"gps_port"`
	GPSBaud int    `toml:"gps_baud"`

	Altimeter        bool     `toml:"altimeter"`
	I2CBus           string   `toml:"i2c_bus"`
	SeaLevelPressure float32  `toml:"sea_level_pressure"`
	AltimeterPeriod  Duration `toml:"altimeter_period"`

	IMU    bool   `toml:"imu"`
	IMUCAN string `toml:"imu_can"`
}

// RadioConfig carries the modulation both ends agree on out of band along
// with the link timing.
type RadioConfig struct {
	Role    string `toml:"role"`
	Port    string `toml:"port"`
	Baud    int    `toml:"baud"`
	Address int    `toml:"address"`

	FrequencyHz     uint32 `toml:"frequency_hz"`
	SpreadingFactor uint8  `toml:"spreading_factor"`
	BandwidthHz     uint32 `toml:"bandwidth_hz"`
	CodingRate      uint8  `toml:"coding_rate"`
	Preamble        uint16 `toml:"preamble"`
	TxPowerDBm      int8   `toml:"tx_power_dbm"`

	TxInterval     Duration `toml:"tx_interval"`
	PrepareTimeout Duration `toml:"prepare_timeout"`
	TxTimeout      Duration `toml:"tx_timeout"`
	RxTimeout      Duration `toml:"rx_timeout"`
}

type ForwarderConfig struct {
	Server string `toml:"server"`
	Port   int    `toml:"port"`
}

func DefaultConfig() Config {
	return Config{
		LogLevel:       "info",
		ReportInterval: Duration{5 * time.Second},
		Sensors: SensorConfig{
			GPS:              true,
			GPSPort:          "/dev/ttyAMA0",
			GPSBaud:          9600,
			Altimeter:        true,
			SeaLevelPressure: SeaLevelPressure,
			AltimeterPeriod:  Duration{time.Second},
			IMUCAN:           "can0",
		},
		Radio: RadioConfig{
			Role:            RoleTransmit,
			Port:            "/dev/ttyUSB0",
			Baud:            115200,
			FrequencyHz:     433000000,
			SpreadingFactor: 10,
			BandwidthHz:     15600,
			CodingRate:      8,
			Preamble:        16,
			TxPowerDBm:      20,
			TxInterval:      Duration{5 * time.Second},
			PrepareTimeout:  Duration{100 * time.Millisecond},
			TxTimeout:       Duration{30 * time.Second},
			RxTimeout:       Duration{30 * time.Second},
		},
	}
}

// LoadConfig reads fileName relative to the directory of the running binary.
func LoadConfig(fileName string) (*Config, error) {
	if !filepath.IsAbs(fileName) {
		dir, err := filepath.Abs(filepath.Dir(os.Args[0]))
		if err != nil {
			return nil, errors.Wrapf(err, "unable to determine binary location")
		}
		fileName = filepath.Join(dir, fileName)
	}
	file, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open file %s", fileName)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

func LoadConfigFromReader(r io.Reader) (*Config, error) {
	config := DefaultConfig()
	if _, err := toml.NewDecoder(r).Decode(&config); err != nil {
		return nil, errors.Wrap(err, "unable to decode configuration")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the values that have no safe fallback.
func (c *Config) Validate() error {
	switch c.Radio.Role {
	case "", RoleTransmit, RoleReceive:
	default:
		return errors.Errorf("unknown radio role %q", c.Radio.Role)
	}
	if c.Sensors.SeaLevelPressure <= 0 {
		return errors.Errorf("sea level pressure must be positive: %v", c.Sensors.SeaLevelPressure)
	}
	if c.Radio.SpreadingFactor < 6 || c.Radio.SpreadingFactor > 12 {
		return errors.Errorf("spreading factor out of range: %d", c.Radio.SpreadingFactor)
	}
	if c.Radio.CodingRate < 5 || c.Radio.CodingRate > 8 {
		return errors.Errorf("coding rate must be the 4/x denominator in 5..8: %d", c.Radio.CodingRate)
	}
	for name, d := range map[string]Duration{
		"report_interval":          c.ReportInterval,
		"sensors.altimeter_period": c.Sensors.AltimeterPeriod,
		"radio.tx_interval":        c.Radio.TxInterval,
		"radio.prepare_timeout":    c.Radio.PrepareTimeout,
		"radio.tx_timeout":         c.Radio.TxTimeout,
		"radio.rx_timeout":         c.Radio.RxTimeout,
	} {
		if d.Duration <= 0 {
			return errors.Errorf("%s must be positive: %v", name, d.Duration)
		}
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "invalid log_level")
	}
	return nil
}

// ApplyLogLevel sets the package logger level; Validate has already checked it.
func (c *Config) ApplyLogLevel() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return
	}
	log.SetLevel(level)
}
