package main

import (
	"sync"
	"testing"
	"time"
)

func TestDebouncer_SuppressesBounce(t *testing.T) {
	d := NewDebouncer(50)
	t0 := time.Unix(1000, 0)

	if !d.Accept("gpiod:9", t0) {
		t.Fatalf("first press rejected")
	}
	if d.Accept("gpiod:9", t0.Add(5*time.Millisecond)) {
		t.Errorf("bounce at +5ms accepted")
	}
	if d.Accept("gpiod:9", t0.Add(49*time.Millisecond)) {
		t.Errorf("bounce at +49ms accepted")
	}
	if !d.Accept("gpiod:9", t0.Add(50*time.Millisecond)) {
		t.Errorf("press at +50ms rejected")
	}
}

func TestDebouncer_SourcesIndependent(t *testing.T) {
	d := NewDebouncer(50)
	t0 := time.Unix(1000, 0)

	d.Accept("gpiod:9", t0)
	if !d.Accept("gpiod:6", t0.Add(time.Millisecond)) {
		t.Errorf("press on another button suppressed")
	}
}

func TestDebouncer_ZeroWindowAcceptsAll(t *testing.T) {
	d := NewDebouncer(0)
	t0 := time.Unix(1000, 0)

	for i := 0; i < 3; i++ {
		if !d.Accept("evdev:28", t0) {
			t.Fatalf("press %d rejected with zero window", i)
		}
	}
}

func TestDebouncer_Concurrent(t *testing.T) {
	d := NewDebouncer(1000)
	t0 := time.Unix(1000, 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.Accept("sysfs:5", t0) {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Errorf("accepted=%d concurrent presses, want 1", accepted)
	}
}
