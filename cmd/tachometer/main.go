package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("tachometer v%s\n", version)
	fmt.Println("Optical tachometer daemon: slotted-disk rate measurement with serial, IPC and OLED output")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  tachometer [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Timestamps rising edges from a photo-interrupter, averages them over a")
	fmt.Printf("  %d-edge window and reports the rotation rate in rpm, rev/s or rad/s.\n", edgeWindowSize)
	fmt.Println("  The rate is shown on an SSD1306 OLED and answered on a serial line")
	fmt.Println("  protocol, which is also served on a Unix socket:")
	fmt.Println()
	fmt.Printf("    id?     -> %q\n", identityString)
	fmt.Println("    u<n>    -> select unit (0 rpm, 1 rev/s, 2 rad/s), no response")
	fmt.Println("    other   -> \"<value> <unit>\"")
	fmt.Println()
	fmt.Println("OPTIONS:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Run from a config file")
	fmt.Println("  tachometer -config /etc/tachometer.yaml")
	fmt.Println()
	fmt.Println("  # Bench test without hardware (simulated 250 Hz slot rate = 600 rpm)")
	fmt.Println("  tachometer -simulate-hz 250 -buttons none")
	fmt.Println()
	fmt.Println("  # Serve the protocol on a USB serial adapter")
	fmt.Println("  tachometer -serial-port /dev/ttyUSB0 -serial-baud 9600")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - GPIO access needs read/write on /dev/gpiochipN (run as root or add user to 'gpio' group)")
	fmt.Printf("  - Rates below %.2f Hz (%d edges in %d ms) cannot be measured and show as \"<floor\"\n",
		MinFrequency(edgeWindowSize, staleTimeoutMS), edgeWindowSize, staleTimeoutMS)
	fmt.Println()
}

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		tachoChip   = flag.String("tacho-chip", defaultGPIOChip, "GPIO chip of the tacho input")
		tachoLine   = flag.Int("tacho-line", defaultTachoLine, "GPIO line offset of the tacho input")
		simulateHz  = flag.Float64("simulate-hz", 0, "Generate edges in software at this rate instead of reading GPIO (0 = off)")
		buttons     = flag.String("buttons", ButtonsGpiod, "Button backend: gpiod|sysfs|evdev|none")
		inputDevice = flag.String("input-device", "", "Linux input event device for unit buttons (selects the evdev backend)")
		serialPort  = flag.String("serial-port", "", "Serial device for the line protocol (empty = disabled)")
		serialBaud  = flag.Int("serial-baud", defaultSerialBaud, "Serial baud rate")
		ipcSocket   = flag.String("ipc-socket", defaultIPCSocketPath, "Unix domain socket path for the line protocol")
		httpPort    = flag.Int("http-port", defaultHTTPPort, "HTTP port for /ws/state and /display.png (0 = disabled)")
		display     = flag.Bool("display", false, "Drive the SSD1306 OLED over I2C")
		modbusEP    = flag.String("modbus-endpoint", "", "Modbus TCP address or RTU device to export registers to (empty = disabled)")
		logLevelStr = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		showVersion = flag.Bool("version", false, "Print version and exit")
		showHelp    = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags given on the command line override the file.
	var o FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "tacho-chip":
			o.TachoChip = tachoChip
		case "tacho-line":
			o.TachoLine = tachoLine
		case "simulate-hz":
			o.SimulateHz = simulateHz
		case "buttons":
			o.ButtonsBackend = buttons
		case "input-device":
			o.InputDevice = inputDevice
		case "serial-port":
			o.SerialPort = serialPort
		case "serial-baud":
			o.SerialBaud = serialBaud
		case "ipc-socket":
			o.IPCSocketPath = ipcSocket
		case "http-port":
			o.HTTPPort = httpPort
		case "display":
			o.DisplayEnabled = display
		case "modbus-endpoint":
			o.ModbusEndpoint = modbusEP
		case "log-level":
			o.LogLevel = logLevelStr
		}
	})
	o.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(os.Stdout, logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("tachometer stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("shutting down")
}

// run wires the engine to its inputs and outputs and blocks until ctx is
// canceled or any component fails.
func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	logger.Debug("starting tachometer", "version", version)
	logger.Debug("configuration",
		"tacho_chip", cfg.Tacho.Chip,
		"tacho_line", cfg.Tacho.Line,
		"simulate_hz", cfg.Tacho.SimulateHz,
		"buttons", cfg.Buttons.Backend,
		"serial_enabled", cfg.Serial.Enabled,
		"serial_port", cfg.Serial.Port,
		"ipc_socket", cfg.IPC.SocketPath,
		"http_port", cfg.HTTP.Port,
		"display_enabled", cfg.Display.Enabled,
		"modbus_enabled", cfg.Modbus.Enabled,
		"modbus_endpoint", cfg.Modbus.Endpoint)

	timer := NewEdgeTimer(edgeWindowSize, staleTimeoutMS*1000)
	state := NewDaemonState(timer, time.Now())

	// Display: the canvas always renders (for /display.png); the panel is optional.
	var panel Panel
	if cfg.Display.Enabled {
		bus, err := openI2CBus(cfg.Display.I2CBus)
		if err != nil {
			return err
		}
		defer bus.Close()

		oled, err := NewSSD1306(bus, cfg.Display.Address, displayWidth, displayHeight)
		if err != nil {
			return err
		}
		defer func() {
			if err := oled.Off(); err != nil {
				logger.Debug("display off failed", "error", err)
			}
		}()
		panel = oled
		logger.Info("display ready", "bus", cfg.Display.I2CBus, "address", fmt.Sprintf("0x%02X", cfg.Display.Address))
	}
	canvas := NewCanvas(displayWidth, displayHeight, panel)
	sinks := Sinks{Display: canvas}

	var registers *RegisterPublisher
	if cfg.Modbus.Enabled {
		client, err := NewModbusClient(cfg.Modbus)
		if err != nil {
			return err
		}
		registers = NewRegisterPublisher(client, cfg.Modbus.Address, logger)
		sinks.Registers = registers
		logger.Info("modbus export ready", "transport", cfg.Modbus.Transport, "endpoint", cfg.Modbus.Endpoint, "unit_id", cfg.Modbus.UnitID)
	}

	events := make(chan Event, 64)
	broadcasts := make(chan StateBroadcast, 64)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		runDaemon(gctx, events, state, sinks, broadcasts, loopIdleMS*time.Millisecond, logger)
		return nil
	})

	// Edge source
	if cfg.Tacho.SimulateHz > 0 {
		g.Go(func() error { return runEdgeSimulator(gctx, cfg.Tacho.SimulateHz, timer, logger) })
	} else {
		g.Go(func() error { return runTachoGpiod(gctx, cfg.Tacho.Chip, cfg.Tacho.Line, timer, logger) })
	}

	// Unit buttons
	deb := NewDebouncer(cfg.Buttons.DebounceMS)
	switch cfg.Buttons.Backend {
	case ButtonsGpiod:
		g.Go(func() error {
			return runButtonsGpiod(gctx, cfg.Buttons.Chip, cfg.Buttons.Lines, deb, events, logger)
		})
	case ButtonsSysfs:
		poll := time.Duration(cfg.Buttons.PollMS) * time.Millisecond
		g.Go(func() error {
			return runButtonsSysfs(gctx, cfg.Buttons.SysfsPins, poll, deb, events, logger)
		})
	case ButtonsEvdev:
		g.Go(func() error {
			return runButtonsEvdev(gctx, cfg.Buttons.Devices, cfg.Buttons.KeyCodes, deb, events, logger)
		})
	}

	// Line protocol transports
	if cfg.Serial.Enabled {
		g.Go(func() error { return runSerialPort(gctx, cfg.Serial.Port, cfg.Serial.Baud, events, logger) })
	}
	if cfg.IPC.SocketPath != "" {
		g.Go(func() error { return runIPCServer(gctx, cfg.IPC.SocketPath, events, logger) })
	}

	if registers != nil {
		g.Go(func() error { return registers.Run(gctx) })
	}

	// Observers
	if cfg.HTTP.Port > 0 {
		stateServer := NewStateServer(logger, events, StateHubConfig{})
		g.Go(func() error {
			stateServer.Hub().Run(gctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(gctx, stateServer.Hub(), broadcasts, logger)
			return nil
		})
		mux := newHTTPMux(stateServer, canvas, logger)
		g.Go(func() error { return runHTTPServer(gctx, cfg.HTTP.Port, mux, logger) })
	} else {
		// Nobody observes broadcasts; keep the queue drained.
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-broadcasts:
				}
			}
		})
	}

	logger.Info("listening",
		"tacho", tachoSourceName(cfg.Tacho),
		"buttons", cfg.Buttons.Backend,
		"ipc", cfg.IPC.SocketPath,
		"serial", cfg.Serial.Port,
		"http_port", cfg.HTTP.Port)

	return g.Wait()
}

func tachoSourceName(c TachoConfig) string {
	if c.SimulateHz > 0 {
		return fmt.Sprintf("simulated:%gHz", c.SimulateHz)
	}
	return fmt.Sprintf("%s:%d", c.Chip, c.Line)
}
