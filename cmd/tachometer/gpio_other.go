//go:build !linux

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"
)

var errNotLinux = errors.New("GPIO character devices and evdev require Linux")

func runTachoGpiod(ctx context.Context, chip string, offset int, timer *EdgeTimer, logger *slog.Logger) error {
	return errNotLinux
}

func runButtonsGpiod(ctx context.Context, chip string, offsets []int, deb *Debouncer, events chan<- Event, logger *slog.Logger) error {
	return errNotLinux
}

func watchUnitKeys(ctx context.Context, files []*os.File, codes []uint16, presses chan<- unitKeyPress) error {
	return errNotLinux
}

func runButtonsSysfs(ctx context.Context, pins []int, poll time.Duration, deb *Debouncer, events chan<- Event, logger *slog.Logger) error {
	return errNotLinux
}
