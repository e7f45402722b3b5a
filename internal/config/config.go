// Package config loads the launch-controller configuration from an optional
// YAML file and environment variables on top of built-in defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/sweeney/launch-controller/internal/display"
	"github.com/sweeney/launch-controller/internal/gpio"
	"github.com/sweeney/launch-controller/internal/logic"
	"github.com/sweeney/launch-controller/internal/radio"
)

// Config represents the complete configuration of the controller.
type Config struct {
	PollMs int          `yaml:"poll_ms"`
	GPIO   GPIOConfig   `yaml:"gpio"`
	Codes  CodesConfig  `yaml:"codes"`
	Radio  RadioConfig  `yaml:"radio"`
	Timing TimingConfig `yaml:"timing"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
	HTTP   HTTPConfig   `yaml:"http"`
	Log    LogConfig    `yaml:"log"`
}

// GPIOConfig holds the chip and BCM pin numbers.
type GPIOConfig struct {
	Chip      string `yaml:"chip"`
	Key       int    `yaml:"key"`
	Enable    int    `yaml:"enable"`
	Trigger   int    `yaml:"trigger"`
	EStop     int    `yaml:"estop"`
	LinkOK    int    `yaml:"link_ok"`
	LinkError int    `yaml:"link_error"`
	Pads      []int  `yaml:"pads"` // one pin per pad, pad 1 first
}

// CodesConfig holds the message codes. YAML hex literals (0x12345678) work.
type CodesConfig struct {
	Request uint32 `yaml:"request"`
	Reply   uint32 `yaml:"reply"`
	Launch  uint32 `yaml:"launch"`
}

// RadioConfig holds the transceiver modem settings.
type RadioConfig struct {
	// Port is the modem's serial device. Empty runs against a simulated pad
	// controller.
	Port       string            `yaml:"port"`
	Serial     radio.PortOptions `yaml:"serial"`
	Bits       int               `yaml:"bits"`
	CarrierKHz int               `yaml:"carrier_khz"`
	// SimulatedReplyMs is how long the simulated pad controller takes to answer.
	SimulatedReplyMs int `yaml:"simulated_reply_ms"`
}

// TimingConfig holds the control timings in milliseconds.
type TimingConfig struct {
	DebounceMs          int `yaml:"debounce_ms"`
	ConnectionTimeoutMs int `yaml:"connection_timeout_ms"`
	RetryIntervalMs     int `yaml:"retry_interval_ms"`
	CountdownMs         int `yaml:"countdown_ms"`
	// StartupSweepMs is nil when unset so that an explicit 0 can disable it.
	StartupSweepMs *int `yaml:"startup_sweep_ms"`
}

// MQTTConfig holds broker settings.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	HeartbeatMs int    `yaml:"heartbeat_ms"` // 0 disables heartbeats
}

// HTTPConfig holds the status endpoint settings.
type HTTPConfig struct {
	Addr string `yaml:"addr"` // empty disables the endpoint
}

// LogConfig holds log file rotation settings.
type LogConfig struct {
	File       string `yaml:"file"` // empty logs to stderr
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// maxCountdownMs is the longest countdown whose seconds fit a display.
const maxCountdownMs = (display.MaxValue+1)*1000 - 1

// Environment variables that override file settings.
const (
	EnvBroker = "LAUNCH_CONTROLLER_BROKER"
	EnvSerial = "LAUNCH_CONTROLLER_SERIAL"
	EnvHTTP   = "LAUNCH_CONTROLLER_HTTP"
	EnvPollMs = "LAUNCH_CONTROLLER_POLL_MS"
)

// Default returns the built-in configuration.
func Default() *Config {
	pins := gpio.DefaultPins()
	codes := logic.DefaultCodes()
	timing := logic.DefaultTiming()
	mod := radio.DefaultModulation()
	sweep := int(timing.StartupSweep / time.Millisecond)

	return &Config{
		PollMs: 10,
		GPIO: GPIOConfig{
			Chip:      "gpiochip0",
			Key:       pins.Key,
			Enable:    pins.Enable,
			Trigger:   pins.Trigger,
			EStop:     pins.EStop,
			LinkOK:    gpio.DefaultPinLinkOK,
			LinkError: gpio.DefaultPinLinkError,
			Pads:      append([]int(nil), pins.Pads[:]...),
		},
		Codes: CodesConfig{
			Request: codes.Request,
			Reply:   codes.Reply,
			Launch:  codes.Launch,
		},
		Radio: RadioConfig{
			Serial:           radio.PortOptions{BaudRate: radio.DefaultBaudRate},
			Bits:             mod.Bits,
			CarrierKHz:       mod.CarrierKHz,
			SimulatedReplyMs: 30,
		},
		Timing: TimingConfig{
			DebounceMs:          int(timing.Debounce / time.Millisecond),
			ConnectionTimeoutMs: int(timing.ConnectionTimeout / time.Millisecond),
			RetryIntervalMs:     int(timing.RetryInterval / time.Millisecond),
			CountdownMs:         int(timing.Countdown / time.Millisecond),
			StartupSweepMs:      &sweep,
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "launch-controller",
			HeartbeatMs: 900000,
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment overrides. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv(EnvBroker); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv(EnvSerial); v != "" {
		cfg.Radio.Port = v
	}
	if v := os.Getenv(EnvHTTP); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv(EnvPollMs); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPollMs, err)
		}
		cfg.PollMs = ms
	}
	return nil
}

// Validate checks the configuration for values the controller cannot run with.
func (c *Config) Validate() error {
	if c.PollMs <= 0 {
		return fmt.Errorf("poll_ms must be positive, got %d", c.PollMs)
	}

	if len(c.GPIO.Pads) != logic.PadCount {
		return fmt.Errorf("gpio.pads must list %d pins, got %d", logic.PadCount, len(c.GPIO.Pads))
	}
	if c.GPIO.Chip == "" {
		return fmt.Errorf("gpio.chip must be set")
	}
	seen := make(map[int]string)
	for name, pin := range c.namedPins() {
		if pin < 0 {
			return fmt.Errorf("gpio.%s: invalid pin %d", name, pin)
		}
		if other, dup := seen[pin]; dup {
			return fmt.Errorf("gpio.%s and gpio.%s share pin %d", other, name, pin)
		}
		seen[pin] = name
	}

	if err := c.logicCodes().Validate(); err != nil {
		return err
	}

	if _, err := c.Radio.Serial.Normalize(); err != nil {
		return fmt.Errorf("radio.serial: %w", err)
	}
	if c.Radio.Bits <= 0 || c.Radio.Bits > 32 {
		return fmt.Errorf("radio.bits must be 1..32, got %d", c.Radio.Bits)
	}
	if c.Radio.CarrierKHz <= 0 {
		return fmt.Errorf("radio.carrier_khz must be positive, got %d", c.Radio.CarrierKHz)
	}

	t := c.Timing
	for name, ms := range map[string]int{
		"debounce_ms":           t.DebounceMs,
		"connection_timeout_ms": t.ConnectionTimeoutMs,
		"retry_interval_ms":     t.RetryIntervalMs,
		"countdown_ms":          t.CountdownMs,
	} {
		if ms <= 0 {
			return fmt.Errorf("timing.%s must be positive, got %d", name, ms)
		}
	}
	// The main display shows whole seconds remaining, starting at the full
	// countdown.
	if t.CountdownMs > maxCountdownMs {
		return fmt.Errorf("timing.countdown_ms must be at most %d to fit the displays, got %d", maxCountdownMs, t.CountdownMs)
	}
	if t.StartupSweepMs != nil && *t.StartupSweepMs < 0 {
		return fmt.Errorf("timing.startup_sweep_ms must not be negative, got %d", *t.StartupSweepMs)
	}
	if c.PollMs > t.DebounceMs {
		return fmt.Errorf("poll_ms (%d) must not exceed timing.debounce_ms (%d)", c.PollMs, t.DebounceMs)
	}
	if t.RetryIntervalMs >= t.ConnectionTimeoutMs {
		return fmt.Errorf("timing.retry_interval_ms (%d) must be less than timing.connection_timeout_ms (%d)",
			t.RetryIntervalMs, t.ConnectionTimeoutMs)
	}

	if c.MQTT.HeartbeatMs < 0 {
		return fmt.Errorf("mqtt.heartbeat_ms must not be negative, got %d", c.MQTT.HeartbeatMs)
	}
	return nil
}

func (c *Config) namedPins() map[string]int {
	pins := map[string]int{
		"key":        c.GPIO.Key,
		"enable":     c.GPIO.Enable,
		"trigger":    c.GPIO.Trigger,
		"estop":      c.GPIO.EStop,
		"link_ok":    c.GPIO.LinkOK,
		"link_error": c.GPIO.LinkError,
	}
	for i, pin := range c.GPIO.Pads {
		pins[fmt.Sprintf("pads[%d]", i)] = pin
	}
	return pins
}

func (c *Config) logicCodes() logic.Codes {
	return logic.Codes{Request: c.Codes.Request, Reply: c.Codes.Reply, Launch: c.Codes.Launch}
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// Pins returns the input pin map.
func (c *Config) Pins() logic.PinMap {
	m := logic.PinMap{
		Key:     c.GPIO.Key,
		Enable:  c.GPIO.Enable,
		Trigger: c.GPIO.Trigger,
		EStop:   c.GPIO.EStop,
	}
	copy(m.Pads[:], c.GPIO.Pads)
	return m
}

// Logic returns the control core configuration.
func (c *Config) Logic() logic.Config {
	timing := logic.Timing{
		Debounce:          ms(c.Timing.DebounceMs),
		ConnectionTimeout: ms(c.Timing.ConnectionTimeoutMs),
		RetryInterval:     ms(c.Timing.RetryIntervalMs),
		Countdown:         ms(c.Timing.CountdownMs),
	}
	if c.Timing.StartupSweepMs != nil {
		timing.StartupSweep = ms(*c.Timing.StartupSweepMs)
	}
	return logic.Config{Timing: timing, Codes: c.logicCodes(), Pins: c.Pins()}
}

// Modulation returns the transceiver modulation.
func (c *Config) Modulation() radio.Modulation {
	return radio.Modulation{Bits: c.Radio.Bits, CarrierKHz: c.Radio.CarrierKHz}
}

// Poll returns the input polling interval.
func (c *Config) Poll() time.Duration {
	return ms(c.PollMs)
}

// Heartbeat returns the heartbeat interval, zero when disabled.
func (c *Config) Heartbeat() time.Duration {
	return ms(c.MQTT.HeartbeatMs)
}

// SimulatedReply returns the simulated pad controller's reply delay.
func (c *Config) SimulatedReply() time.Duration {
	return ms(c.Radio.SimulatedReplyMs)
}
