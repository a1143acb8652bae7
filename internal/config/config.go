package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker   string
	MQTTClientID string
	MQTTQoS      byte
	PayloadCodec string // "json" or "msgpack"
	TopicPrefix  string

	// Commands
	CallTimeoutMs   int
	ArmAttempts     int
	ArmRetryDelayMs int

	// Position check
	PositionToleranceDeg float64

	// Logging
	LogLevel string
	LogFile  string

	// Monitors
	WebServerPort      int
	ConsoleLogInterval int // milliseconds

	// Journal
	JournalPath             string
	JournalSnapshotInterval int // milliseconds, 0 disables snapshots

	// GPS bridge
	GPSSerialPort string
	GPSBaudRate   int

	// Display
	DisplayI2CBus         string // empty picks the first bus
	DisplayUpdateInterval int    // milliseconds

	// Simulator
	SimHomeLat        float64
	SimHomeLon        float64
	SimUpdateInterval int // milliseconds
}

// Defaults returns a Config with every optional key at its default value.
func Defaults() *Config {
	return &Config{
		MQTTClientID:            "flight_command",
		PayloadCodec:            "json",
		TopicPrefix:             "mavros",
		CallTimeoutMs:           5000,
		ArmAttempts:             3,
		ArmRetryDelayMs:         5000,
		PositionToleranceDeg:    0.0001,
		LogLevel:                "info",
		WebServerPort:           8080,
		ConsoleLogInterval:      1000,
		JournalSnapshotInterval: 5000,
		GPSBaudRate:             9600,
		DisplayUpdateInterval:   500,
		SimHomeLat:              47.397742,
		SimHomeLon:              8.545594,
		SimUpdateInterval:       100,
	}
}

// Package-level singleton: InitGlobal sets it once, Get reads it.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines from r on top of Defaults. Blank lines and
// lines starting with # are ignored.
func Parse(r io.Reader) (*Config, error) {
	cfg := Defaults()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func atoi(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return n, nil
}

func atof(key, value string) (float64, error) {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return f, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "MQTT_QOS":
		var qos int
		if qos, err = atoi(key, value); err != nil {
			return err
		}
		if qos < 0 || qos > 2 {
			return fmt.Errorf("MQTT_QOS must be 0-2, got %d", qos)
		}
		c.MQTTQoS = byte(qos)
	case "PAYLOAD_CODEC":
		if value != "json" && value != "msgpack" {
			return fmt.Errorf("PAYLOAD_CODEC must be json or msgpack, got %q", value)
		}
		c.PayloadCodec = value
	case "TOPIC_PREFIX":
		c.TopicPrefix = strings.Trim(value, "/")

	// Commands
	case "CALL_TIMEOUT_MS":
		c.CallTimeoutMs, err = atoi(key, value)
	case "ARM_ATTEMPTS":
		c.ArmAttempts, err = atoi(key, value)
	case "ARM_RETRY_DELAY_MS":
		c.ArmRetryDelayMs, err = atoi(key, value)

	case "POSITION_TOLERANCE_DEG":
		c.PositionToleranceDeg, err = atof(key, value)

	// Logging
	case "LOG_LEVEL":
		c.LogLevel = strings.ToLower(value)
	case "LOG_FILE":
		c.LogFile = value

	// Monitors
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = atoi(key, value)
	case "CONSOLE_LOG_INTERVAL":
		c.ConsoleLogInterval, err = atoi(key, value)

	// Journal
	case "JOURNAL_PATH":
		c.JournalPath = value
	case "JOURNAL_SNAPSHOT_INTERVAL":
		c.JournalSnapshotInterval, err = atoi(key, value)

	// GPS
	case "GPS_SERIAL_PORT":
		c.GPSSerialPort = value
	case "GPS_BAUD_RATE":
		c.GPSBaudRate, err = atoi(key, value)

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_UPDATE_INTERVAL":
		c.DisplayUpdateInterval, err = atoi(key, value)

	// Simulator
	case "SIM_HOME_LAT":
		c.SimHomeLat, err = atof(key, value)
	case "SIM_HOME_LON":
		c.SimHomeLon, err = atof(key, value)
	case "SIM_UPDATE_INTERVAL":
		c.SimUpdateInterval, err = atoi(key, value)

	default:
		return fmt.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks required fields and ranges.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return fmt.Errorf("MQTT_BROKER is required")
	}
	if c.MQTTClientID == "" {
		return fmt.Errorf("MQTT_CLIENT_ID must not be empty")
	}
	if c.CallTimeoutMs < 0 {
		return fmt.Errorf("CALL_TIMEOUT_MS must not be negative")
	}
	if c.ArmAttempts < 1 {
		return fmt.Errorf("ARM_ATTEMPTS must be at least 1")
	}
	if c.ArmRetryDelayMs < 0 {
		return fmt.Errorf("ARM_RETRY_DELAY_MS must not be negative")
	}
	if c.PositionToleranceDeg < 0 {
		return fmt.Errorf("POSITION_TOLERANCE_DEG must not be negative")
	}
	if c.ConsoleLogInterval <= 0 {
		return fmt.Errorf("CONSOLE_LOG_INTERVAL must be positive")
	}
	if c.DisplayUpdateInterval <= 0 {
		return fmt.Errorf("DISPLAY_UPDATE_INTERVAL must be positive")
	}
	if c.SimUpdateInterval <= 0 {
		return fmt.Errorf("SIM_UPDATE_INTERVAL must be positive")
	}
	if c.JournalSnapshotInterval < 0 {
		return fmt.Errorf("JOURNAL_SNAPSHOT_INTERVAL must not be negative")
	}
	return nil
}

// CallTimeout is CALL_TIMEOUT_MS as a duration.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutMs) * time.Millisecond
}

// ArmRetryDelay is ARM_RETRY_DELAY_MS as a duration.
func (c *Config) ArmRetryDelay() time.Duration {
	return time.Duration(c.ArmRetryDelayMs) * time.Millisecond
}

// ClientID derives a per-binary MQTT client id, e.g. "flight_command-web".
// Two binaries on one broker must not share a client id.
func (c *Config) ClientID(role string) string {
	if role == "" {
		return c.MQTTClientID
	}
	return c.MQTTClientID + "-" + role
}

// InitGlobal initializes the global configuration from file.
// Uses sync.Once to ensure this only runs once, even if called multiple times.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance.
// InitGlobal must be called first, or this will return nil.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
