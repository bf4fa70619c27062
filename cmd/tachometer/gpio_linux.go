//go:build linux

package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/warthog618/gpiod"
)

// runTachoGpiod feeds rising edges of the tacho line into timer until ctx is canceled.
//
// The event handler runs on gpiod's watcher goroutine and only calls OnEdge, which
// is lock-free and allocation-free. Kernel event timestamps are truncated to a
// wrapping uint32 microsecond clock.
func runTachoGpiod(ctx context.Context, chip string, offset int, timer *EdgeTimer, logger *slog.Logger) error {
	line, err := gpiod.RequestLine(chip, offset,
		gpiod.WithConsumer("tachometer"),
		gpiod.WithPullDown,
		gpiod.WithRisingEdge,
		gpiod.WithEventHandler(func(evt gpiod.LineEvent) {
			timer.OnEdge(uint32(evt.Timestamp / time.Microsecond))
		}))
	if err != nil {
		return fmt.Errorf("request tacho line %s:%d: %w", chip, offset, err)
	}
	defer line.Close()

	logger.Info("tacho input ready", "chip", chip, "line", offset)

	<-ctx.Done()
	return nil
}

// runButtonsGpiod turns falling edges (active-low buttons with pull-ups) on any of
// offsets into debounced ButtonPressed events.
func runButtonsGpiod(ctx context.Context, chip string, offsets []int, deb *Debouncer, events chan<- Event, logger *slog.Logger) error {
	if len(offsets) == 0 {
		return fmt.Errorf("no button lines configured")
	}

	lines, err := gpiod.RequestLines(chip, offsets,
		gpiod.WithConsumer("tachometer-buttons"),
		gpiod.WithPullUp,
		gpiod.WithFallingEdge,
		gpiod.WithEventHandler(func(evt gpiod.LineEvent) {
			src := "gpiod:" + strconv.Itoa(evt.Offset)
			if !deb.Accept(src, time.Now()) {
				return
			}
			select {
			case events <- ButtonPressed{Source: src}:
			default:
				logger.Warn("event queue full; dropping button press", "source", src)
			}
		}))
	if err != nil {
		return fmt.Errorf("request button lines %s:%v: %w", chip, offsets, err)
	}
	defer lines.Close()

	logger.Info("buttons ready", "backend", "gpiod", "chip", chip, "lines", offsets)

	<-ctx.Done()
	return nil
}
