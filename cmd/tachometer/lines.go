package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// replyTimeout bounds how long a transport waits for the daemon to answer a line.
const replyTimeout = 1 * time.Second

// serveLines reads newline-terminated protocol lines from rw, forwards each one to
// the daemon and writes the response line back. It returns when rw hits EOF or
// a read error, or when ctx is canceled (the caller closes rw to unblock reads).
//
// The protocol has no error channel: a line that cannot be delivered to the daemon
// is dropped and logged, never answered with an error.
func serveLines(ctx context.Context, rw io.ReadWriter, origin string, events chan<- Event, logger *slog.Logger) error {
	scanner := bufio.NewScanner(rw)

	for scanner.Scan() {
		line := scanner.Text()
		logger.Debug("line received", "origin", origin, "line", line)

		reply := make(chan Response, 1)
		select {
		case events <- LineReceived{Line: line, Origin: origin, Reply: reply}:
		case <-ctx.Done():
			return nil
		default:
			logger.Warn("event queue full; dropping line", "origin", origin, "line", line)
			continue
		}

		var resp Response
		select {
		case resp = <-reply:
		case <-ctx.Done():
			return nil
		case <-time.After(replyTimeout):
			logger.Warn("no reply from daemon; dropping line", "origin", origin, "line", line)
			continue
		}

		if !resp.Recognized {
			logger.Debug("unrecognized line treated as rate query", "origin", origin, "line", line)
		}
		if resp.Silent {
			continue
		}
		if _, err := fmt.Fprintf(rw, "%s\n", resp.Text); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("read line: %w", err)
	}
	return nil
}
