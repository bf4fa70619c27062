package main

import "math"

// RateSampler turns completed edge windows into a frequency with a staleness timeout.
//
// It is owned by the daemon goroutine; only the WindowSource crosses goroutines.
type RateSampler struct {
	src       WindowSource
	window    int
	timeoutMS uint32

	freqHz     float64
	lastUpdate uint32 // ms clock at the last consumed window
	fresh      bool
	stale      bool
}

// NewRateSampler builds a sampler reading windows of window periods from src.
// The rate is unknown until the first window completes.
func NewRateSampler(src WindowSource, window int, timeoutMS uint32) *RateSampler {
	return &RateSampler{
		src:       src,
		window:    window,
		timeoutMS: timeoutMS,
		freqHz:    math.NaN(),
		stale:     true,
	}
}

// Poll consumes a completed window if one is ready and then applies the timeout.
// A window spanning more than the timeout is dropped as if it never completed.
// nowMS is a free-running millisecond clock.
func (s *RateSampler) Poll(nowMS uint32) {
	if elapsed, ok := s.src.TakeIfComplete(); ok && elapsed > 0 && elapsed <= s.maxSpanUS() {
		s.freqHz = float64(s.window) * 1e6 / float64(elapsed)
		s.lastUpdate = nowMS
		s.fresh = true
		s.stale = false
	}

	// Checked on every poll, not only when a window arrived.
	if nowMS-s.lastUpdate > s.timeoutMS {
		if !s.stale {
			// A window still accumulating now spans the stall; restart it.
			s.src.Invalidate()
			s.stale = true
		}
		s.freqHz = math.NaN()
	}
}

// maxSpanUS is the longest window that still counts: one that took longer than the
// timeout is below the measurable floor, however it completed.
func (s *RateSampler) maxSpanUS() uint32 {
	return s.timeoutMS * 1000
}

// Current returns the last computed frequency in Hz, NaN when unknown.
func (s *RateSampler) Current() float64 { return s.freqHz }

// Known reports whether Current is a valid rate.
func (s *RateSampler) Known() bool { return !math.IsNaN(s.freqHz) }

// LastUpdate returns the ms clock value of the last valid sample (0 if none yet).
func (s *RateSampler) LastUpdate() uint32 { return s.lastUpdate }

// TakeFresh reports whether a new window was consumed since the previous call.
func (s *RateSampler) TakeFresh() bool {
	f := s.fresh
	s.fresh = false
	return f
}

// MinFrequency returns the slowest edge frequency whose window can complete before
// the staleness timeout: window / timeout_seconds.
func MinFrequency(window int, timeoutMS uint32) float64 {
	if timeoutMS == 0 {
		return math.Inf(1)
	}
	return float64(window) * 1000 / float64(timeoutMS)
}
