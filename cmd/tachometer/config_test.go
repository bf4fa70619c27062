package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Buttons.Backend != ButtonsGpiod {
		t.Errorf("buttons.backend=%q", cfg.Buttons.Backend)
	}
	if len(cfg.Buttons.Lines) != 3 {
		t.Errorf("buttons.lines=%v", cfg.Buttons.Lines)
	}
	if cfg.Display.Address != 0x3C {
		t.Errorf("display.address=%#x", cfg.Display.Address)
	}
}

func TestLoadConfigFile_OverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tachometer.yaml")
	yml := `
tacho:
  simulate_hz: 250
buttons:
  backend: evdev
  devices: [/dev/input/event3]
serial:
  enabled: true
  port: /dev/ttyACM0
modbus:
  enabled: true
  transport: rtu
  endpoint: /dev/ttyUSB1
  address: 100
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFile: %v", err)
	}
	if cfg.Tacho.SimulateHz != 250 {
		t.Errorf("simulate_hz=%v", cfg.Tacho.SimulateHz)
	}
	if cfg.Tacho.Line != defaultTachoLine {
		t.Errorf("tacho.line lost its default: %d", cfg.Tacho.Line)
	}
	if cfg.Buttons.Backend != ButtonsEvdev || cfg.Buttons.Devices[0] != "/dev/input/event3" {
		t.Errorf("buttons=%+v", cfg.Buttons)
	}
	if cfg.Serial.Baud != defaultSerialBaud {
		t.Errorf("serial.baud=%d", cfg.Serial.Baud)
	}
	if cfg.Modbus.Address != 100 || cfg.Modbus.UnitID != 1 {
		t.Errorf("modbus=%+v", cfg.Modbus)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestParseConfig_RejectsUnknownFields(t *testing.T) {
	_, err := parseConfig([]byte("tacho:\n  lin: 3\n"))
	if err == nil || !strings.Contains(err.Error(), "lin") {
		t.Fatalf("expected unknown-field error, got %v", err)
	}
}

func TestParseConfig_RejectsTrailingDocument(t *testing.T) {
	_, err := parseConfig([]byte("logging:\n  level: info\n---\nlogging:\n  level: debug\n"))
	if err == nil {
		t.Fatalf("expected trailing document error")
	}
}

func TestFlagOverrides_Apply(t *testing.T) {
	cfg := DefaultConfig()

	port := "/dev/ttyUSB0"
	dev := "/dev/input/event5"
	httpPort := 0
	level := "warn"
	FlagOverrides{
		SerialPort:  &port,
		InputDevice: &dev,
		HTTPPort:    &httpPort,
		LogLevel:    &level,
	}.Apply(&cfg)

	if !cfg.Serial.Enabled || cfg.Serial.Port != port {
		t.Errorf("serial=%+v", cfg.Serial)
	}
	if cfg.Buttons.Backend != ButtonsEvdev || len(cfg.Buttons.Devices) != 1 {
		t.Errorf("buttons=%+v", cfg.Buttons)
	}
	if cfg.HTTP.Port != 0 {
		t.Errorf("http.port=%d", cfg.HTTP.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("logging.level=%q", cfg.Logging.Level)
	}

	// Nil overrides leave the config alone.
	before := cfg.Tacho
	FlagOverrides{}.Apply(&cfg)
	if cfg.Tacho != before {
		t.Errorf("empty overrides changed tacho config")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad backend", func(c *Config) { c.Buttons.Backend = "usb" }, "buttons.backend"},
		{"sysfs without pins", func(c *Config) { c.Buttons.Backend = ButtonsSysfs }, "buttons.sysfs_pins"},
		{"evdev without devices", func(c *Config) { c.Buttons.Backend = ButtonsEvdev }, "buttons.devices"},
		{"serial without port", func(c *Config) { c.Serial.Enabled = true }, "serial.port"},
		{"negative simulate", func(c *Config) { c.Tacho.SimulateHz = -1 }, "simulate_hz"},
		{"http port range", func(c *Config) { c.HTTP.Port = 70000 }, "http.port"},
		{"display address", func(c *Config) { c.Display.Enabled = true; c.Display.Address = 0x80 }, "display.address"},
		{"modbus transport", func(c *Config) {
			c.Modbus.Enabled = true
			c.Modbus.Endpoint = "127.0.0.1:502"
			c.Modbus.Transport = "udp"
		}, "modbus.transport"},
		{"modbus endpoint", func(c *Config) { c.Modbus.Enabled = true }, "modbus.endpoint"},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate()=%v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestConfig_ValidateNoneBackendAndSimulator(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Buttons.Backend = ButtonsNone
	cfg.Tacho.Chip = "" // unused when simulating
	cfg.Tacho.SimulateHz = 100
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandPath("~/tacho.yaml"); got != filepath.Join(home, "tacho.yaml") {
		t.Errorf("got %q", got)
	}
	if got := ExpandPath("/etc/tacho.yaml"); got != "/etc/tacho.yaml" {
		t.Errorf("got %q", got)
	}
}
