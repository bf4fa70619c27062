package main

import (
	"context"
	"fmt"
	"log/slog"

	"go.bug.st/serial"
)

// runSerialPort serves the line protocol on a serial port (8N1) until ctx is canceled.
func runSerialPort(ctx context.Context, path string, baud int, events chan<- Event, logger *slog.Logger) error {
	port, err := serial.Open(path, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", path, err)
	}
	defer port.Close()

	logger.Info("serial listening", "port", path, "baud", baud)

	// Closing the port unblocks the pending Read on shutdown.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = port.Close()
		case <-done:
		}
	}()

	if err := serveLines(ctx, port, "serial", events, logger); err != nil {
		return fmt.Errorf("serial %s: %w", path, err)
	}
	if ctx.Err() == nil {
		return fmt.Errorf("serial %s: port closed", path)
	}
	return nil
}
