package main

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// startTestDaemon runs a daemon over a scripted window source.
func startTestDaemon(t *testing.T, src WindowSource) (chan Event, *DaemonState) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	state := NewDaemonState(src, time.Now())
	events := make(chan Event, 16)
	go runDaemon(ctx, events, state, Sinks{}, nil, time.Millisecond, discardLogger())
	return events, state
}

func TestServeLines_Protocol(t *testing.T) {
	events, _ := startTestDaemon(t, &fakeWindows{pending: []uint32{25000}})

	client, server := net.Pipe()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- serveLines(ctx, server, "test", events, discardLogger()) }()

	r := bufio.NewReader(client)
	ask := func(line string) string {
		t.Helper()
		_ = client.SetDeadline(time.Now().Add(2 * time.Second))
		if _, err := fmt.Fprintf(client, "%s\n", line); err != nil {
			t.Fatalf("write %q: %v", line, err)
		}
		resp, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read after %q: %v", line, err)
		}
		return strings.TrimRight(resp, "\n")
	}

	if got := ask("id?"); got != identityString {
		t.Errorf("id? -> %q", got)
	}

	// Wait for the daemon to consume the window.
	waitUntil(t, time.Second, func() bool { return ask("?") == "2400.0 rpm" }, "rate not available")

	// u2 is silent; the next line's reply proves nothing was written for it.
	if _, err := fmt.Fprintf(client, "u2\n"); err != nil {
		t.Fatal(err)
	}
	if got := ask("?"); got != "251.33 rad/s" {
		t.Errorf("after u2 -> %q", got)
	}

	if got := ask("garbage"); got != "251.33 rad/s" {
		t.Errorf("garbage -> %q", got)
	}

	client.Close()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serveLines: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("serveLines did not return on EOF")
	}
}

// askIPC sends one line on a fresh connection. Unit commands get no reply, so it
// returns "" for them as soon as the line is written.
func askIPC(t *testing.T, socketPath, line string, timeout time.Duration) (string, error) {
	t.Helper()
	conn, err := net.DialTimeout("unix", socketPath, timeout)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
		return "", err
	}
	if cmd, _ := ParseCommand(line); isUnitCommand(cmd) {
		return "", nil
	}
	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	resp, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(resp, "\r\n"), nil
}

func isUnitCommand(cmd Command) bool {
	_, ok := cmd.(CmdSetUnit)
	return ok
}

func TestIPCServer_RoundTrip(t *testing.T) {
	events, _ := startTestDaemon(t, &fakeWindows{})
	sock := filepath.Join(t.TempDir(), "tacho.sock")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runIPCServer(ctx, sock, events, discardLogger()) }()

	waitUntil(t, time.Second, func() bool {
		_, err := askIPC(t, sock, "id?", 200*time.Millisecond)
		return err == nil
	}, "IPC server not accepting")

	got, err := askIPC(t, sock, "id?", time.Second)
	if err != nil || got != identityString {
		t.Fatalf("id? -> (%q, %v)", got, err)
	}

	got, err = askIPC(t, sock, "u1", time.Second)
	if err != nil || got != "" {
		t.Fatalf("u1 -> (%q, %v), want silent", got, err)
	}

	// The unit change travels on another connection; wait for it to land.
	waitUntil(t, time.Second, func() bool {
		got, err := askIPC(t, sock, "?", time.Second)
		return err == nil && got == "nan rev/s"
	}, "unit change not visible over IPC")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("runIPCServer: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("IPC server did not stop")
	}
}
