//go:build linux

package main

import (
	"context"
	"os"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// newKeyPipe returns a pipe whose read end is named like an input device.
func newKeyPipe(t *testing.T, name string) (r, w *os.File) {
	t.Helper()
	pr, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	fd, err := unix.Dup(int(pr.Fd()))
	pr.Close()
	if err != nil {
		t.Fatal(err)
	}
	r = os.NewFile(uintptr(fd), name)
	t.Cleanup(func() {
		r.Close()
		w.Close()
	})
	return r, w
}

func TestWatchUnitKeys_MultipleDevices(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r1, w1 := newKeyPipe(t, "/dev/input/event1")
	r2, w2 := newKeyPipe(t, "/dev/input/event2")

	presses := make(chan unitKeyPress, 8)
	done := make(chan error, 1)
	go func() {
		done <- watchUnitKeys(ctx, []*os.File{r1, r2}, []uint16{KEY_ENTER, KEY_OK}, presses)
	}()

	// Release, repeat and unrelated keys are filtered at the source.
	w1.Write(encodeInputEvents(t,
		inputEvent{Type: EV_KEY, Code: KEY_UP, Value: evValuePress},
		inputEvent{Type: EV_KEY, Code: KEY_ENTER, Value: evValuePress},
		inputEvent{Type: EV_KEY, Code: KEY_ENTER, Value: evValueRepeat},
		inputEvent{Type: EV_KEY, Code: KEY_ENTER, Value: evValueRelease},
	).Bytes())
	w2.Write(encodeInputEvents(t,
		inputEvent{Type: EV_KEY, Code: KEY_ENTER, Value: evValuePress},
	).Bytes())

	got := map[unitKeyPress]int{}
	deadline := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case k := <-presses:
			got[k]++
		case <-deadline:
			t.Fatalf("presses=%v, want one per device", got)
		}
	}

	want := []unitKeyPress{
		{Device: "/dev/input/event1", Code: KEY_ENTER},
		{Device: "/dev/input/event2", Code: KEY_ENTER},
	}
	for _, k := range want {
		if got[k] != 1 {
			t.Errorf("press %+v seen %d times, want 1", k, got[k])
		}
	}

	select {
	case k := <-presses:
		t.Errorf("unexpected press %+v", k)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watchUnitKeys after cancel: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher did not stop on cancel")
	}
}

func TestWatchUnitKeys_SplitEvent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r, w := newKeyPipe(t, "/dev/input/event0")
	presses := make(chan unitKeyPress, 1)
	go watchUnitKeys(ctx, []*os.File{r}, []uint16{KEY_ENTER}, presses)

	b := encodeInputEvents(t, inputEvent{Type: EV_KEY, Code: KEY_ENTER, Value: evValuePress}).Bytes()
	w.Write(b[:10])
	time.Sleep(20 * time.Millisecond)
	w.Write(b[10:])

	select {
	case k := <-presses:
		if k.Code != KEY_ENTER {
			t.Errorf("press=%+v", k)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("split event never decoded")
	}
}

func TestWatchUnitKeys_HangupIsError(t *testing.T) {
	r, w := newKeyPipe(t, "/dev/input/event0")
	presses := make(chan unitKeyPress, 1)
	done := make(chan error, 1)
	go func() { done <- watchUnitKeys(context.Background(), []*os.File{r}, []uint16{KEY_ENTER}, presses) }()

	w.Close()
	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("watchUnitKeys returned nil after the device went away")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("watcher ignored hangup")
	}
}

func TestWatchUnitKeys_NoDevices(t *testing.T) {
	if err := watchUnitKeys(context.Background(), nil, []uint16{KEY_ENTER}, nil); err == nil {
		t.Fatalf("expected error with no devices")
	}
}
