// Package config loads node configuration from defaults, an optional YAML
// file, a .env file, SMARTHOME_* environment variables and flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sweeney/smarthome-node/internal/connectivity"
	"github.com/sweeney/smarthome-node/internal/gpio"
	"github.com/sweeney/smarthome-node/internal/log"
	"github.com/sweeney/smarthome-node/internal/logic"
	"github.com/sweeney/smarthome-node/internal/mqtt"
	"github.com/sweeney/smarthome-node/internal/network"
	"github.com/sweeney/smarthome-node/internal/sensor"
	"github.com/sweeney/smarthome-node/internal/store"
)

// EnvPrefix prefixes every environment variable, e.g. SMARTHOME_MQTT_BROKER.
const EnvPrefix = "SMARTHOME"

// ControlOptions are the automation parameters.
type ControlOptions struct {
	TempHigh       float64       `mapstructure:"temp-high"`
	TempLow        float64       `mapstructure:"temp-low"`
	ReadInterval   time.Duration `mapstructure:"read-interval"`
	TelemetryEvery int           `mapstructure:"telemetry-every"`
	AlertCooldown  time.Duration `mapstructure:"alert-cooldown"`
	FaultBackoff   time.Duration `mapstructure:"fault-backoff"`
	ReconnectEvery int           `mapstructure:"reconnect-every"`
	AlarmBeep      time.Duration `mapstructure:"alarm-beep"`
}

// GPIOOptions select the chip and line offsets.
type GPIOOptions struct {
	Chip string    `mapstructure:"chip"`
	Pins gpio.Pins `mapstructure:"pins"`
}

// SensorOptions locate the climate sensor.
type SensorOptions struct {
	IIODevice string `mapstructure:"iio-device"`
}

// NetworkOptions describe the link.
type NetworkOptions struct {
	Interface string        `mapstructure:"interface"`
	SSID      string        `mapstructure:"ssid"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// MQTTOptions describe the broker session.
type MQTTOptions struct {
	Broker          string        `mapstructure:"broker"`
	ClientID        string        `mapstructure:"client-id"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	KeepAlive       time.Duration `mapstructure:"keep-alive"`
	ConnectTimeout  time.Duration `mapstructure:"connect-timeout"`
	TLS             bool          `mapstructure:"tls"`
	ServerName      string        `mapstructure:"server-name"`
	CAFile          string        `mapstructure:"ca-file"`
	InboundCapacity int           `mapstructure:"inbound-capacity"`
	Topics          mqtt.Topics   `mapstructure:"topics"`
}

// HTTPOptions configure the status server.
type HTTPOptions struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed-origins"`
	AccessLog      bool     `mapstructure:"access-log"`
}

// Options is the full node configuration.
type Options struct {
	Log     *log.Options        `mapstructure:"log"`
	Control ControlOptions      `mapstructure:"control"`
	GPIO    GPIOOptions         `mapstructure:"gpio"`
	Sensor  SensorOptions       `mapstructure:"sensor"`
	Network NetworkOptions      `mapstructure:"network"`
	MQTT    MQTTOptions         `mapstructure:"mqtt"`
	Influx  store.InfluxOptions `mapstructure:"influx"`
	HTTP    HTTPOptions         `mapstructure:"http"`
}

// NewOptions returns Options with defaults for the reference build.
func NewOptions() *Options {
	return &Options{
		Log: log.NewOptions(),
		Control: ControlOptions{
			TempHigh:       28,
			TempLow:        25,
			ReadInterval:   3 * time.Second,
			TelemetryEvery: 10,
			AlertCooldown:  5 * time.Second,
			FaultBackoff:   5 * time.Second,
			ReconnectEvery: 20,
			AlarmBeep:      500 * time.Millisecond,
		},
		GPIO: GPIOOptions{
			Chip: gpio.DefaultChip,
			Pins: gpio.DefaultPins,
		},
		Sensor: SensorOptions{
			IIODevice: sensor.DefaultIIODevice,
		},
		Network: NetworkOptions{
			Interface: network.DefaultInterface,
			Timeout:   10 * time.Second,
		},
		MQTT: MQTTOptions{
			Broker:          "tcp://192.168.1.200:1883",
			KeepAlive:       7200 * time.Second,
			ConnectTimeout:  10 * time.Second,
			InboundCapacity: mqtt.DefaultInboundCapacity,
			Topics:          mqtt.DefaultTopics,
		},
		HTTP: HTTPOptions{
			Addr: ":80",
		},
	}
}

// AddFlags registers every option on fs. Flag names are the viper keys.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	o.Log.AddFlags(fs)

	fs.Float64Var(&o.Control.TempHigh, "control.temp-high", o.Control.TempHigh, "Relay switches on above this temperature (°C).")
	fs.Float64Var(&o.Control.TempLow, "control.temp-low", o.Control.TempLow, "Relay switches off below this temperature (°C).")
	fs.DurationVar(&o.Control.ReadInterval, "control.read-interval", o.Control.ReadInterval, "Time between automation cycles.")
	fs.IntVar(&o.Control.TelemetryEvery, "control.telemetry-every", o.Control.TelemetryEvery, "Publish telemetry every N cycles.")
	fs.DurationVar(&o.Control.AlertCooldown, "control.alert-cooldown", o.Control.AlertCooldown, "Minimum spacing between motion alerts.")
	fs.DurationVar(&o.Control.FaultBackoff, "control.fault-backoff", o.Control.FaultBackoff, "Pause after a failed cycle.")
	fs.IntVar(&o.Control.ReconnectEvery, "control.reconnect-every", o.Control.ReconnectEvery, "Retry connectivity every N cycles (0 disables).")
	fs.DurationVar(&o.Control.AlarmBeep, "control.alarm-beep", o.Control.AlarmBeep, "Buzzer duration for a remote alarm command.")

	fs.StringVar(&o.GPIO.Chip, "gpio.chip", o.GPIO.Chip, "GPIO character device.")
	fs.IntVar(&o.GPIO.Pins.Relay, "gpio.pins.relay", o.GPIO.Pins.Relay, "BCM line for the relay.")
	fs.IntVar(&o.GPIO.Pins.LEDRed, "gpio.pins.led-red", o.GPIO.Pins.LEDRed, "BCM line for the red LED.")
	fs.IntVar(&o.GPIO.Pins.LEDGreen, "gpio.pins.led-green", o.GPIO.Pins.LEDGreen, "BCM line for the green LED.")
	fs.IntVar(&o.GPIO.Pins.LEDBlue, "gpio.pins.led-blue", o.GPIO.Pins.LEDBlue, "BCM line for the blue LED.")
	fs.IntVar(&o.GPIO.Pins.Buzzer, "gpio.pins.buzzer", o.GPIO.Pins.Buzzer, "BCM line for the buzzer.")
	fs.IntVar(&o.GPIO.Pins.PIR, "gpio.pins.pir", o.GPIO.Pins.PIR, "BCM line for the PIR sensor.")

	fs.StringVar(&o.Sensor.IIODevice, "sensor.iio-device", o.Sensor.IIODevice, "IIO sysfs directory of the DHT22.")

	fs.StringVar(&o.Network.Interface, "network.interface", o.Network.Interface, "Network interface to watch.")
	fs.StringVar(&o.Network.SSID, "network.ssid", o.Network.SSID, "Expected Wi-Fi SSID; the OS joins the network (empty accepts any).")
	fs.DurationVar(&o.Network.Timeout, "network.timeout", o.Network.Timeout, "How long to wait for the link.")

	fs.StringVar(&o.MQTT.Broker, "mqtt.broker", o.MQTT.Broker, "MQTT broker URL (tcp://, ssl://, ws://).")
	fs.StringVar(&o.MQTT.ClientID, "mqtt.client-id", o.MQTT.ClientID, "Client ID (generated when empty).")
	fs.StringVar(&o.MQTT.Username, "mqtt.username", o.MQTT.Username, "MQTT username.")
	fs.StringVar(&o.MQTT.Password, "mqtt.password", o.MQTT.Password, "MQTT password.")
	fs.DurationVar(&o.MQTT.KeepAlive, "mqtt.keep-alive", o.MQTT.KeepAlive, "MQTT keep alive interval.")
	fs.DurationVar(&o.MQTT.ConnectTimeout, "mqtt.connect-timeout", o.MQTT.ConnectTimeout, "Timeout for establishing the session.")
	fs.BoolVar(&o.MQTT.TLS, "mqtt.tls", o.MQTT.TLS, "Use TLS.")
	fs.StringVar(&o.MQTT.ServerName, "mqtt.server-name", o.MQTT.ServerName, "TLS server name (defaults to the broker host).")
	fs.StringVar(&o.MQTT.CAFile, "mqtt.ca-file", o.MQTT.CAFile, "PEM file with trusted CAs (system roots when empty).")
	fs.IntVar(&o.MQTT.InboundCapacity, "mqtt.inbound-capacity", o.MQTT.InboundCapacity, "Inbound messages held between cycles.")
	fs.StringVar(&o.MQTT.Topics.Telemetry, "mqtt.topics.telemetry", o.MQTT.Topics.Telemetry, "Telemetry topic.")
	fs.StringVar(&o.MQTT.Topics.Control, "mqtt.topics.control", o.MQTT.Topics.Control, "Command topic.")
	fs.StringVar(&o.MQTT.Topics.Alerts, "mqtt.topics.alerts", o.MQTT.Topics.Alerts, "Alert topic.")
	fs.StringVar(&o.MQTT.Topics.Status, "mqtt.topics.status", o.MQTT.Topics.Status, "Retained status topic.")

	fs.StringVar(&o.Influx.URL, "influx.url", o.Influx.URL, "InfluxDB URL (empty disables persistence).")
	fs.StringVar(&o.Influx.Token, "influx.token", o.Influx.Token, "InfluxDB API token.")
	fs.StringVar(&o.Influx.Org, "influx.org", o.Influx.Org, "InfluxDB organization.")
	fs.StringVar(&o.Influx.Bucket, "influx.bucket", o.Influx.Bucket, "InfluxDB bucket.")

	fs.StringVar(&o.HTTP.Addr, "http.addr", o.HTTP.Addr, "HTTP status address (empty to disable).")
	fs.StringSliceVar(&o.HTTP.AllowedOrigins, "http.allowed-origins", o.HTTP.AllowedOrigins, "CORS origins allowed to read status.")
	fs.BoolVar(&o.HTTP.AccessLog, "http.access-log", o.HTTP.AccessLog, "Log every HTTP request.")
}

// Load resolves the options. fs must already carry the flags from AddFlags
// and be parsed. configFile and envFile are optional; a missing envFile is
// not an error.
func Load(fs *pflag.FlagSet, configFile, envFile string) (*Options, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	opts := NewOptions()
	if err := v.Unmarshal(opts); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	opts.Complete()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// Complete fills derived defaults.
func (o *Options) Complete() {
	if o.MQTT.ClientID == "" {
		o.MQTT.ClientID = "smarthome-node-" + uuid.NewString()[:8]
	}
	if o.MQTT.TLS && o.MQTT.ServerName == "" {
		if u, err := url.Parse(o.MQTT.Broker); err == nil {
			o.MQTT.ServerName = u.Hostname()
		}
	}
}

// Params returns the automation parameters.
func (o *Options) Params() logic.Params {
	return logic.Params{
		TempHigh:       o.Control.TempHigh,
		TempLow:        o.Control.TempLow,
		AlertCooldown:  o.Control.AlertCooldown,
		ReadInterval:   o.Control.ReadInterval,
		TelemetryEvery: o.Control.TelemetryEvery,
	}
}

// Credentials returns the link credentials.
func (o *Options) Credentials() connectivity.Credentials {
	return connectivity.Credentials{
		Interface: o.Network.Interface,
		SSID:      o.Network.SSID,
	}
}

// SessionConfig returns the broker session configuration, with the
// last-will set on the status topic.
func (o *Options) SessionConfig() connectivity.SessionConfig {
	return connectivity.SessionConfig{
		Broker:         o.MQTT.Broker,
		ClientID:       o.MQTT.ClientID,
		Username:       o.MQTT.Username,
		Password:       o.MQTT.Password,
		KeepAlive:      o.MQTT.KeepAlive,
		ConnectTimeout: o.MQTT.ConnectTimeout,
		TLS:            o.MQTT.TLS,
		ServerName:     o.MQTT.ServerName,
		CAFile:         o.MQTT.CAFile,
		WillTopic:      o.MQTT.Topics.Status,
		WillPayload:    mqtt.FormatWill(),
	}
}

// Validate reports every problem at once.
func (o *Options) Validate() error {
	var errs []error

	if err := o.Params().Validate(); err != nil {
		errs = append(errs, err)
	}
	if o.Control.FaultBackoff < 0 {
		errs = append(errs, fmt.Errorf("control.fault-backoff must not be negative"))
	}
	if o.Control.ReconnectEvery < 0 {
		errs = append(errs, fmt.Errorf("control.reconnect-every must not be negative"))
	}

	switch o.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", o.Log.Format))
	}

	if o.MQTT.Broker == "" {
		errs = append(errs, fmt.Errorf("mqtt.broker is required"))
	} else if u, err := url.Parse(o.MQTT.Broker); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("mqtt.broker %q is not a broker URL", o.MQTT.Broker))
	}
	t := o.MQTT.Topics
	if t.Telemetry == "" || t.Control == "" || t.Alerts == "" || t.Status == "" {
		errs = append(errs, fmt.Errorf("all mqtt.topics must be set"))
	}
	if o.MQTT.InboundCapacity < 1 {
		errs = append(errs, fmt.Errorf("mqtt.inbound-capacity must be at least 1"))
	}

	if o.Influx.URL != "" && o.Influx.Bucket == "" {
		errs = append(errs, fmt.Errorf("influx.bucket is required when influx.url is set"))
	}

	return errors.Join(errs...)
}
