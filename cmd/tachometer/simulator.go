package main

import (
	"context"
	"log/slog"
	"time"
)

// runEdgeSimulator produces rising edges at hz on the wrapping microsecond clock,
// for bench testing without a photo-interrupter.
//
// Edge timestamps are computed from the edge index, not from ticker delivery time,
// so the measured rate is exact even when the ticker drifts.
func runEdgeSimulator(ctx context.Context, hz float64, timer *EdgeTimer, logger *slog.Logger) error {
	if hz <= 0 {
		<-ctx.Done()
		return nil
	}

	periodUS := 1e6 / hz
	// Deliver edges in batches so high rates don't need a sub-millisecond ticker.
	step := time.Duration(periodUS) * time.Microsecond
	if step < time.Millisecond {
		step = time.Millisecond
	}
	ticker := time.NewTicker(step)
	defer ticker.Stop()

	logger.Info("edge simulator running", "hz", hz)

	start := time.Now()
	var n uint64
	for {
		select {
		case <-ctx.Done():
			return nil

		case now := <-ticker.C:
			due := uint64(float64(now.Sub(start).Microseconds()) / periodUS)
			for ; n < due; n++ {
				timer.OnEdge(uint32(uint64(float64(n) * periodUS)))
			}
		}
	}
}
