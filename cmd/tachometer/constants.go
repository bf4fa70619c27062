package main

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_KEY = 0x01

	KEY_ENTER = 28
	KEY_SPACE = 57
	KEY_UP    = 103
	KEY_DOWN  = 108
	KEY_OK    = 0x160
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

// Measurement engine configuration (fixed at build time)
const (
	edgeWindowSize    = 25    // Rising edges per averaging window (N periods need N+1 edges)
	slitsPerRev       = 25    // Slits on the encoder disk
	staleTimeoutMS    = 4000  // Rate becomes unknown this long after the last completed window (ms)
	screensaverIdleMS = 20000 // Display blanks this long after the last valid sample (ms)
	displayRefreshMS  = 500   // Presenter cadence (ms)
	loopIdleMS        = 10    // Idle delay between daemon loop iterations (ms)
)

// Identity string answered to "id?"
const identityString = "Arduino, Tachometer v1.0"

// Hardware defaults (Feather M0 + OLED FeatherWing pin map)
const (
	defaultGPIOChip      = "gpiochip0"
	defaultTachoLine     = 10
	defaultButtonALine   = 9
	defaultButtonBLine   = 6
	defaultButtonCLine   = 5
	defaultDebounceMS    = 50
	defaultSerialBaud    = 9600
	defaultI2CAddress    = 0x3C
	defaultIPCSocketPath = "/tmp/tachometer.sock"
	defaultHTTPPort      = 8080
	defaultModbusTimeout = 1000 // ms

	displayWidth  = 128
	displayHeight = 32
)
