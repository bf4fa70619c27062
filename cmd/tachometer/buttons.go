package main

import (
	"context"
	"log/slog"
	"time"
)

// pinReader is the part of a sysfs digital pin the poller uses.
type pinReader interface {
	Read() (int, error)
}

// pollButtons samples every reader each poll interval and emits presses on falling levels.
func pollButtons(ctx context.Context, readers map[string]pinReader, poll time.Duration, deb *Debouncer, events chan<- Event, logger *slog.Logger) error {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	prev := make(map[string]int, len(readers))
	for src := range readers {
		prev[src] = 1 // released
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case now := <-ticker.C:
			for src, r := range readers {
				v, err := r.Read()
				if err != nil {
					logger.Warn("button read failed", "source", src, "error", err)
					continue
				}
				pressed := prev[src] == 1 && v == 0
				prev[src] = v
				if !pressed || !deb.Accept(src, now) {
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
}
