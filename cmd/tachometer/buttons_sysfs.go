//go:build linux

package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"gobot.io/x/gobot/sysfs"
)

// runButtonsSysfs polls exported sysfs GPIO pins. A 1->0 transition on an
// active-low button is one press.
func runButtonsSysfs(ctx context.Context, pins []int, poll time.Duration, deb *Debouncer, events chan<- Event, logger *slog.Logger) error {
	if len(pins) == 0 {
		return fmt.Errorf("no sysfs button pins configured")
	}

	readers := make(map[string]pinReader, len(pins))
	for _, n := range pins {
		p := sysfs.NewDigitalPin(n)
		if err := p.Export(); err != nil {
			return fmt.Errorf("export gpio %d: %w", n, err)
		}
		defer func() {
			_ = p.Unexport()
		}()
		if err := p.Direction("in"); err != nil {
			return fmt.Errorf("set gpio %d direction: %w", n, err)
		}
		readers["sysfs:"+strconv.Itoa(n)] = p
	}

	logger.Info("buttons ready", "backend", "sysfs", "pins", pins)
	return pollButtons(ctx, readers, poll, deb, events, logger)
}
