package main

import (
	"sync"
	"testing"
)

// feed delivers n edges spaced periodUS apart starting at startUS and returns the next timestamp.
func feed(t *EdgeTimer, startUS, periodUS uint32, n int) uint32 {
	ts := startUS
	for i := 0; i < n; i++ {
		t.OnEdge(ts)
		ts += periodUS
	}
	return ts
}

func TestEdgeTimer_NeedsWindowPlusOneEdges(t *testing.T) {
	et := NewEdgeTimer(25, 0)

	feed(et, 0, 1000, 25)
	if _, ok := et.TakeIfComplete(); ok {
		t.Fatalf("window completed after 25 edges, want 26")
	}

	et.OnEdge(25 * 1000)
	elapsed, ok := et.TakeIfComplete()
	if !ok {
		t.Fatalf("window not complete after 26 edges")
	}
	if elapsed != 25000 {
		t.Errorf("elapsed=%d, want 25000", elapsed)
	}

	// Taking clears the flag.
	if _, ok := et.TakeIfComplete(); ok {
		t.Errorf("second take returned a window")
	}
}

func TestEdgeTimer_EdgesIgnoredWhileComplete(t *testing.T) {
	et := NewEdgeTimer(4, 0)

	next := feed(et, 0, 100, 5)
	// These must not disturb the pending result.
	feed(et, next, 7, 10)

	elapsed, ok := et.TakeIfComplete()
	if !ok || elapsed != 400 {
		t.Fatalf("got (%d, %v), want (400, true)", elapsed, ok)
	}
}

func TestEdgeTimer_NextWindowStartsFresh(t *testing.T) {
	et := NewEdgeTimer(4, 0)

	next := feed(et, 0, 100, 5)
	if _, ok := et.TakeIfComplete(); !ok {
		t.Fatalf("first window not complete")
	}

	// Second window at a different period; the first edge after a take is a new start.
	feed(et, next+5000, 250, 5)
	elapsed, ok := et.TakeIfComplete()
	if !ok || elapsed != 1000 {
		t.Fatalf("got (%d, %v), want (1000, true)", elapsed, ok)
	}
}

func TestEdgeTimer_Wraparound(t *testing.T) {
	et := NewEdgeTimer(10, 0)

	start := ^uint32(0) - 4500 // wraps halfway through the window
	feed(et, start, 1000, 11)

	elapsed, ok := et.TakeIfComplete()
	if !ok {
		t.Fatalf("window not complete")
	}
	if elapsed != 10000 {
		t.Errorf("elapsed across wrap=%d, want 10000", elapsed)
	}
}

func TestEdgeTimer_InvalidateRestartsPartialWindow(t *testing.T) {
	et := NewEdgeTimer(4, 0)

	// Three edges, then a long stall.
	feed(et, 0, 100, 3)
	et.Invalidate()

	// A full window after the stall must not include the stalled edges.
	feed(et, 1_000_000, 100, 5)
	elapsed, ok := et.TakeIfComplete()
	if !ok || elapsed != 400 {
		t.Fatalf("got (%d, %v), want (400, true)", elapsed, ok)
	}
}

func TestEdgeTimer_InvalidateDiscardsCompletedStaleWindow(t *testing.T) {
	et := NewEdgeTimer(2, 0)

	feed(et, 0, 100, 3) // complete
	et.Invalidate()

	if _, ok := et.TakeIfComplete(); ok {
		t.Fatalf("window completed before Invalidate was reported")
	}

	feed(et, 10_000, 50, 3)
	elapsed, ok := et.TakeIfComplete()
	if !ok || elapsed != 100 {
		t.Fatalf("got (%d, %v), want (100, true)", elapsed, ok)
	}
}

func TestEdgeTimer_ConcurrentProducerConsumer(t *testing.T) {
	const (
		window   = 5
		periodUS = 40
		edges    = 200_000
	)
	et := NewEdgeTimer(window, 0)

	var wg sync.WaitGroup
	wg.Add(1)
	stop := make(chan struct{})
	go func() {
		defer wg.Done()
		defer close(stop)
		feed(et, 0, periodUS, edges)
	}()

	// Every window the consumer sees must span exactly window periods.
	takes := 0
	for {
		if elapsed, ok := et.TakeIfComplete(); ok {
			takes++
			if elapsed != window*periodUS {
				t.Fatalf("torn window: elapsed=%d, want %d", elapsed, window*periodUS)
			}
		}
		select {
		case <-stop:
			wg.Wait()
			if takes == 0 {
				t.Logf("consumer observed no windows (scheduler never interleaved)")
			}
			return
		default:
		}
	}
}

func TestEdgeTimer_SparseEdgesNeverComplete(t *testing.T) {
	tests := []struct {
		name     string
		periodUS uint32
		edges    int
	}{
		{"below floor", 320_000, 200}, // 3.125 Hz, floor is 6.25 Hz
		{"stray edge per minute", 60_000_000, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			et := NewEdgeTimer(25, 4_000_000)
			ts := uint32(0)
			for i := 0; i < tt.edges; i++ {
				et.OnEdge(ts)
				ts += tt.periodUS
				if elapsed, ok := et.TakeIfComplete(); ok {
					t.Fatalf("edge %d: window completed with elapsed=%d", i, elapsed)
				}
			}
		})
	}
}

func TestEdgeTimer_LateEdgeStartsNewWindow(t *testing.T) {
	et := NewEdgeTimer(4, 1000)

	// Three edges, a gap past the limit, then a full window from the late edge.
	next := feed(et, 0, 100, 3)
	feed(et, next+5000, 100, 5)

	elapsed, ok := et.TakeIfComplete()
	if !ok || elapsed != 400 {
		t.Fatalf("got (%d, %v), want (400, true)", elapsed, ok)
	}
}

func TestEdgeTimer_SpanAtLimitStillCompletes(t *testing.T) {
	et := NewEdgeTimer(4, 400)

	feed(et, 0, 100, 5)
	elapsed, ok := et.TakeIfComplete()
	if !ok || elapsed != 400 {
		t.Fatalf("got (%d, %v), want (400, true)", elapsed, ok)
	}
}

func TestEdgeTimer_ConcurrentInvalidate(t *testing.T) {
	const (
		window   = 5
		periodUS = 40
		edges    = 200_000
	)
	et := NewEdgeTimer(window, 0)

	var wg sync.WaitGroup
	wg.Add(1)
	stop := make(chan struct{})
	go func() {
		defer wg.Done()
		defer close(stop)
		feed(et, 0, periodUS, edges)
	}()

	// Invalidations race the edge goroutine; a window that survives must still be whole.
	polls := 0
	for {
		polls++
		if polls%7 == 0 {
			et.Invalidate()
		}
		if elapsed, ok := et.TakeIfComplete(); ok && elapsed != window*periodUS {
			t.Fatalf("torn window after invalidate: elapsed=%d, want %d", elapsed, window*periodUS)
		}
		select {
		case <-stop:
			wg.Wait()
			return
		default:
		}
	}
}
