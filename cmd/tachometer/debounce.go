package main

import (
	"sync"
	"time"
)

// Debouncer suppresses repeated presses from the same source inside a time window.
// Contact bounce on the Feather buttons shows up as a burst of edges; only the first
// one in each window counts.
//
// Thread-safe: gpiod handlers, sysfs pollers and evdev readers may call Accept concurrently.
type Debouncer struct {
	window time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

// NewDebouncer creates a debouncer with the given window in milliseconds.
func NewDebouncer(windowMS int) *Debouncer {
	return &Debouncer{
		window: time.Duration(windowMS) * time.Millisecond,
		last:   make(map[string]time.Time, 4),
	}
}

// Accept records a press from source at now and reports whether it should be
// delivered (true if no press from the same source was accepted within the window).
func (d *Debouncer) Accept(source string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.last[source]; ok && now.Sub(prev) < d.window {
		return false
	}
	d.last[source] = now
	return true
}
