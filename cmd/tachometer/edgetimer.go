package main

import "sync/atomic"

// ============================================================================
// EdgeTimer - rising-edge window accumulator
// ============================================================================
//
// OnEdge runs on the edge source goroutine (gpiod event handler or simulator).
// TakeIfComplete and Invalidate run on the daemon goroutine.
//
// Hand-off rules:
//   - count/start/seenGen are touched only by the edge goroutine.
//   - The daemon never writes the accumulator directly; it bumps resetGen and the
//     edge goroutine restarts its window when it notices the new generation.
//   - elapsed/doneGen are published before complete is set; the consumer reads them
//     only after observing complete, and bumps the generation before clearing it.
//
// All timestamps are microseconds on a free-running uint32 clock; durations are
// computed with modular subtraction so a wrap in the middle of a window is harmless.
// ============================================================================

// WindowSource is the consumer side of an EdgeTimer.
type WindowSource interface {
	// TakeIfComplete returns the elapsed microseconds of the last completed window and
	// restarts accumulation. ok is false if no window is ready.
	TakeIfComplete() (elapsedUS uint32, ok bool)

	// Invalidate discards the partially accumulated window.
	Invalidate()
}

// EdgeTimer counts rising edges and measures the time spanned by a fixed window of them.
type EdgeTimer struct {
	window    uint32
	maxSpanUS uint32 // 0 disables the limit

	// edge goroutine only
	count   uint32
	start   uint32
	seenGen uint32

	// hand-off
	elapsed  atomic.Uint32
	doneGen  atomic.Uint32
	complete atomic.Bool
	resetGen atomic.Uint32
}

// NewEdgeTimer returns a timer that completes after window full periods (window+1 edges).
// An edge arriving more than maxSpanUS after the window start begins a new window
// instead, so edges too sparse to measure never add up to a completed window.
func NewEdgeTimer(window int, maxSpanUS uint32) *EdgeTimer {
	if window < 1 {
		window = 1
	}
	return &EdgeTimer{window: uint32(window), maxSpanUS: maxSpanUS}
}

// OnEdge records one rising edge observed at nowUS. It never blocks or allocates.
func (t *EdgeTimer) OnEdge(nowUS uint32) {
	if t.complete.Load() {
		// Waiting for the consumer; further edges are ignored.
		return
	}
	if g := t.resetGen.Load(); g != t.seenGen {
		t.seenGen = g
		t.count = 0
	}

	if t.count > 0 && t.maxSpanUS > 0 && nowUS-t.start > t.maxSpanUS {
		t.count = 0
	}

	t.count++
	if t.count == 1 {
		t.start = nowUS
		return
	}
	if t.count > t.window {
		t.elapsed.Store(nowUS - t.start)
		t.doneGen.Store(t.seenGen)
		t.complete.Store(true)
	}
}

// TakeIfComplete implements WindowSource.
func (t *EdgeTimer) TakeIfComplete() (uint32, bool) {
	if !t.complete.Load() {
		return 0, false
	}
	elapsed := t.elapsed.Load()
	done := t.doneGen.Load()

	// Bump the generation before releasing the edge goroutine so that it restarts
	// from an empty window on its next edge.
	next := t.resetGen.Add(1)
	t.complete.Store(false)

	if done != next-1 {
		// Window began before an Invalidate; it spans the gap and is not usable.
		return 0, false
	}
	return elapsed, true
}

// Invalidate implements WindowSource.
func (t *EdgeTimer) Invalidate() {
	t.resetGen.Add(1)
}
