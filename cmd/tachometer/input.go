package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// inputEvent represents a Linux input event structure
// struct input_event { struct timeval time; __u16 type; __u16 code; __s32 value; };
type inputEvent struct {
	Sec   int64
	Usec  int64
	Type  uint16
	Code  uint16
	Value int32
}

var inputEventSize = binary.Size(inputEvent{})

// unitKeyPress is one press of a unit key on one input device.
type unitKeyPress struct {
	Device string
	Code   uint16
}

// source names the press for debouncing and logs: "evdev:<device>:<code>".
func (k unitKeyPress) source() string {
	return fmt.Sprintf("evdev:%s:%d", k.Device, k.Code)
}

// decodeInputEvents decodes every whole event in b and returns the undecoded tail.
func decodeInputEvents(b []byte) ([]inputEvent, []byte) {
	whole := len(b) / inputEventSize * inputEventSize
	if whole == 0 {
		return nil, b
	}
	evs := make([]inputEvent, whole/inputEventSize)
	if err := binary.Read(bytes.NewReader(b[:whole]), binary.LittleEndian, evs); err != nil {
		return nil, b[whole:]
	}
	return evs, b[whole:]
}

// isUnitKeyPress reports whether ev is the initial press of one of codes.
// Autorepeat is ignored: holding a key advances the unit once.
func isUnitKeyPress(ev inputEvent, codes []uint16) bool {
	if ev.Type != EV_KEY || ev.Value != evValuePress {
		return false
	}
	for _, c := range codes {
		if ev.Code == c {
			return true
		}
	}
	return false
}

// runButtonsEvdev watches keyboard-like input devices (USB keypads, IR receivers)
// and turns presses of the configured key codes into ButtonPressed events.
func runButtonsEvdev(ctx context.Context, devices []string, codes []uint16, deb *Debouncer, events chan<- Event, logger *slog.Logger) error {
	if len(devices) == 0 {
		return fmt.Errorf("no input devices configured")
	}

	var files []*os.File
	for _, dev := range devices {
		f, err := os.Open(dev)
		if err != nil {
			for _, o := range files {
				o.Close()
			}
			return fmt.Errorf("open input device %s (run as root or add user to 'input' group): %w", dev, err)
		}
		files = append(files, f)
	}
	defer func() {
		for _, f := range files {
			f.Close()
		}
	}()

	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	presses := make(chan unitKeyPress, 16)
	watchErr := make(chan error, 1)
	go func() { watchErr <- watchUnitKeys(wctx, files, codes, presses) }()

	logger.Info("buttons ready", "backend", "evdev", "devices", devices, "codes", codes)

	for {
		select {
		case <-ctx.Done():
			cancel()
			<-watchErr
			return nil

		case err := <-watchErr:
			if err == nil {
				return nil
			}
			return fmt.Errorf("input watcher stopped: %w", err)

		case k := <-presses:
			src := k.source()
			if !deb.Accept(src, time.Now()) {
				continue
			}
			select {
			case events <- ButtonPressed{Source: src}:
			default:
				logger.Warn("event queue full; dropping button press", "source", src)
			}
		}
	}
}
