package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseMinimalUsesDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader("MQTT_BROKER=tcp://localhost:1883\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.TopicPrefix != "mavros" {
		t.Errorf("TopicPrefix = %q", cfg.TopicPrefix)
	}
	if cfg.ArmAttempts != 3 || cfg.ArmRetryDelay() != 5*time.Second {
		t.Errorf("arm policy = %d x %v", cfg.ArmAttempts, cfg.ArmRetryDelay())
	}
	if cfg.PayloadCodec != "json" {
		t.Errorf("PayloadCodec = %q", cfg.PayloadCodec)
	}
	if cfg.CallTimeout() != 5*time.Second {
		t.Errorf("CallTimeout = %v", cfg.CallTimeout())
	}
}

func TestParseOverrides(t *testing.T) {
	input := `
# flight command configuration
MQTT_BROKER = tcp://10.0.0.2:1883
MQTT_CLIENT_ID=ground
MQTT_QOS=1
PAYLOAD_CODEC=msgpack
TOPIC_PREFIX=/uav1/mavros/
ARM_ATTEMPTS=5
ARM_RETRY_DELAY_MS=250
POSITION_TOLERANCE_DEG=0.0005
LOG_LEVEL=DEBUG
SIM_HOME_LAT=-33.5
`
	cfg, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.MQTTBroker != "tcp://10.0.0.2:1883" {
		t.Errorf("MQTTBroker = %q", cfg.MQTTBroker)
	}
	if cfg.MQTTQoS != 1 || cfg.PayloadCodec != "msgpack" {
		t.Errorf("qos=%d codec=%q", cfg.MQTTQoS, cfg.PayloadCodec)
	}
	if cfg.TopicPrefix != "uav1/mavros" {
		t.Errorf("TopicPrefix = %q", cfg.TopicPrefix)
	}
	if cfg.ArmAttempts != 5 || cfg.ArmRetryDelay() != 250*time.Millisecond {
		t.Errorf("arm policy = %d x %v", cfg.ArmAttempts, cfg.ArmRetryDelay())
	}
	if cfg.PositionToleranceDeg != 0.0005 {
		t.Errorf("PositionToleranceDeg = %v", cfg.PositionToleranceDeg)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.SimHomeLat != -33.5 {
		t.Errorf("SimHomeLat = %v", cfg.SimHomeLat)
	}
	if got := cfg.ClientID("web"); got != "ground-web" {
		t.Errorf("ClientID = %q", got)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"missing broker", "LOG_LEVEL=info\n", "MQTT_BROKER is required"},
		{"unknown key", "MQTT_BROKER=x\nIMU_LEFT_SPI_DEVICE=/dev/spidev0.0\n", "unknown config key"},
		{"no equals", "MQTT_BROKER\n", "invalid config line 1"},
		{"bad number", "MQTT_BROKER=x\nARM_ATTEMPTS=three\n", "invalid ARM_ATTEMPTS"},
		{"zero attempts", "MQTT_BROKER=x\nARM_ATTEMPTS=0\n", "ARM_ATTEMPTS must be at least 1"},
		{"qos range", "MQTT_BROKER=x\nMQTT_QOS=3\n", "MQTT_QOS must be 0-2"},
		{"codec", "MQTT_BROKER=x\nPAYLOAD_CODEC=xml\n", "PAYLOAD_CODEC"},
		{"negative tolerance", "MQTT_BROKER=x\nPOSITION_TOLERANCE_DEG=-1\n", "POSITION_TOLERANCE_DEG"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, expected it to contain %q", err, tt.want)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flight_config.txt")
	if err := os.WriteFile(path, []byte("MQTT_BROKER=tcp://broker:1883\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MQTTBroker != "tcp://broker:1883" {
		t.Errorf("MQTTBroker = %q", cfg.MQTTBroker)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSampleConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "flight_config.txt"))
	if err != nil {
		t.Fatalf("sample config: %v", err)
	}
	if cfg.JournalPath == "" || cfg.GPSSerialPort == "" || cfg.DisplayI2CBus != "" {
		t.Errorf("sample config = %+v", cfg)
	}
}
