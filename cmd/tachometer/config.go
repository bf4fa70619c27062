package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration for the tachometer daemon.
//
// Defaults and validation live here so the rest of the code can assume a
// well-formed config. The file is the primary surface; flags override it.
type Config struct {
	Tacho   TachoConfig   `yaml:"tacho"`
	Buttons ButtonsConfig `yaml:"buttons"`
	Serial  SerialConfig  `yaml:"serial"`
	IPC     IPCConfig     `yaml:"ipc"`
	HTTP    HTTPConfig    `yaml:"http"`
	Display DisplayConfig `yaml:"display"`
	Modbus  ModbusConfig  `yaml:"modbus"`
	Logging LoggingConfig `yaml:"logging"`
}

// TachoConfig selects the edge source. SimulateHz > 0 replaces the GPIO line
// with a software pulse train.
type TachoConfig struct {
	Chip       string  `yaml:"chip"`
	Line       int     `yaml:"line"`
	SimulateHz float64 `yaml:"simulate_hz,omitempty"`
}

// Button backends.
const (
	ButtonsGpiod = "gpiod"
	ButtonsSysfs = "sysfs"
	ButtonsEvdev = "evdev"
	ButtonsNone  = "none"
)

type ButtonsConfig struct {
	Backend    string   `yaml:"backend"`
	Chip       string   `yaml:"chip,omitempty"`
	Lines      []int    `yaml:"lines,omitempty"`      // gpiod line offsets
	SysfsPins  []int    `yaml:"sysfs_pins,omitempty"` // sysfs GPIO numbers
	PollMS     int      `yaml:"poll_ms,omitempty"`    // sysfs poll interval
	Devices    []string `yaml:"devices,omitempty"`    // evdev devices
	KeyCodes   []uint16 `yaml:"key_codes,omitempty"`  // evdev key codes that advance the unit
	DebounceMS int      `yaml:"debounce_ms"`
}

type SerialConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    string `yaml:"port,omitempty"`
	Baud    int    `yaml:"baud"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

// HTTPConfig controls the state websocket and display snapshot listener. Port 0 disables it.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

type DisplayConfig struct {
	Enabled bool   `yaml:"enabled"`
	I2CBus  string `yaml:"i2c_bus,omitempty"` // empty picks the first bus
	Address uint16 `yaml:"address"`
}

type ModbusConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Transport string `yaml:"transport"` // "tcp" or "rtu"
	Endpoint  string `yaml:"endpoint,omitempty"`
	UnitID    byte   `yaml:"unit_id"`
	Address   uint16 `yaml:"address"`
	TimeoutMS int    `yaml:"timeout_ms"`
	Baud      int    `yaml:"baud,omitempty"` // rtu only
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
// Keep this aligned with constants.go.
func DefaultConfig() Config {
	return Config{
		Tacho: TachoConfig{
			Chip: defaultGPIOChip,
			Line: defaultTachoLine,
		},
		Buttons: ButtonsConfig{
			Backend:    ButtonsGpiod,
			Chip:       defaultGPIOChip,
			Lines:      []int{defaultButtonALine, defaultButtonBLine, defaultButtonCLine},
			PollMS:     10,
			KeyCodes:   []uint16{KEY_ENTER, KEY_SPACE, KEY_OK},
			DebounceMS: defaultDebounceMS,
		},
		Serial: SerialConfig{
			Baud: defaultSerialBaud,
		},
		IPC: IPCConfig{
			SocketPath: defaultIPCSocketPath,
		},
		HTTP: HTTPConfig{
			Port: defaultHTTPPort,
		},
		Display: DisplayConfig{
			Address: defaultI2CAddress,
		},
		Modbus: ModbusConfig{
			Transport: "tcp",
			UnitID:    1,
			TimeoutMS: defaultModbusTimeout,
			Baud:      defaultSerialBaud,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of DefaultConfig.
// Unknown fields are rejected to catch typos.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return parseConfig(b)
}

func parseConfig(b []byte) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only whitespace/comments are allowed after the document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides carries flag values that take precedence over the config file.
// A nil pointer means the flag was not set.
type FlagOverrides struct {
	TachoChip  *string
	TachoLine  *int
	SimulateHz *float64

	ButtonsBackend *string
	InputDevice    *string

	SerialPort *string
	SerialBaud *int

	IPCSocketPath *string
	HTTPPort      *int

	DisplayEnabled *bool

	ModbusEndpoint *string

	LogLevel *string
}

// Apply merges the overrides into cfg. A non-nil pointer is applied even if it holds a zero value.
func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.TachoChip != nil {
		cfg.Tacho.Chip = *o.TachoChip
	}
	if o.TachoLine != nil {
		cfg.Tacho.Line = *o.TachoLine
	}
	if o.SimulateHz != nil {
		cfg.Tacho.SimulateHz = *o.SimulateHz
	}

	if o.ButtonsBackend != nil {
		cfg.Buttons.Backend = *o.ButtonsBackend
	}
	if o.InputDevice != nil {
		cfg.Buttons.Backend = ButtonsEvdev
		cfg.Buttons.Devices = []string{*o.InputDevice}
	}

	if o.SerialPort != nil {
		cfg.Serial.Port = *o.SerialPort
		cfg.Serial.Enabled = *o.SerialPort != ""
	}
	if o.SerialBaud != nil {
		cfg.Serial.Baud = *o.SerialBaud
	}

	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPPort != nil {
		cfg.HTTP.Port = *o.HTTPPort
	}

	if o.DisplayEnabled != nil {
		cfg.Display.Enabled = *o.DisplayEnabled
	}

	if o.ModbusEndpoint != nil {
		cfg.Modbus.Endpoint = *o.ModbusEndpoint
		cfg.Modbus.Enabled = *o.ModbusEndpoint != ""
	}

	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants and returns a user-friendly error.
// Call it after defaults, file and overrides are applied.
func (c *Config) Validate() error {
	// Tacho
	if c.Tacho.SimulateHz < 0 {
		return errors.New("tacho.simulate_hz must be >= 0")
	}
	if c.Tacho.SimulateHz == 0 {
		if c.Tacho.Chip == "" {
			return errors.New("tacho.chip must not be empty")
		}
		if c.Tacho.Line < 0 {
			return errors.New("tacho.line must be >= 0")
		}
	}

	// Buttons
	if c.Buttons.DebounceMS < 0 {
		return errors.New("buttons.debounce_ms must be >= 0")
	}
	switch c.Buttons.Backend {
	case ButtonsGpiod:
		if c.Buttons.Chip == "" {
			return errors.New("buttons.chip must not be empty for the gpiod backend")
		}
		if len(c.Buttons.Lines) == 0 {
			return errors.New("buttons.lines must not be empty for the gpiod backend")
		}
	case ButtonsSysfs:
		if len(c.Buttons.SysfsPins) == 0 {
			return errors.New("buttons.sysfs_pins must not be empty for the sysfs backend")
		}
		if c.Buttons.PollMS <= 0 {
			return errors.New("buttons.poll_ms must be > 0")
		}
	case ButtonsEvdev:
		if len(c.Buttons.Devices) == 0 {
			return errors.New("buttons.devices must not be empty for the evdev backend")
		}
		for i, dev := range c.Buttons.Devices {
			if dev == "" {
				return fmt.Errorf("buttons.devices[%d] is empty", i)
			}
		}
		if len(c.Buttons.KeyCodes) == 0 {
			return errors.New("buttons.key_codes must not be empty for the evdev backend")
		}
	case ButtonsNone:
	default:
		return fmt.Errorf("buttons.backend must be one of %q, %q, %q or %q",
			ButtonsGpiod, ButtonsSysfs, ButtonsEvdev, ButtonsNone)
	}

	// Serial
	if c.Serial.Enabled {
		if c.Serial.Port == "" {
			return errors.New("serial.enabled is true but serial.port is empty")
		}
		if c.Serial.Baud <= 0 {
			return errors.New("serial.baud must be > 0")
		}
	}

	// HTTP
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port must be between 0 and 65535")
	}

	// Display
	if c.Display.Enabled && (c.Display.Address == 0 || c.Display.Address > 0x7F) {
		return errors.New("display.address must be a 7-bit I2C address")
	}

	// Modbus
	if c.Modbus.Enabled {
		if c.Modbus.Transport != "tcp" && c.Modbus.Transport != "rtu" {
			return errors.New(`modbus.transport must be "tcp" or "rtu"`)
		}
		if c.Modbus.Endpoint == "" {
			return errors.New("modbus.enabled is true but modbus.endpoint is empty")
		}
		if c.Modbus.TimeoutMS <= 0 {
			return errors.New("modbus.timeout_ms must be > 0")
		}
		if c.Modbus.Transport == "rtu" && c.Modbus.Baud <= 0 {
			return errors.New("modbus.baud must be > 0 for the rtu transport")
		}
	}

	// Logging
	if _, err := parseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}

	return nil
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
