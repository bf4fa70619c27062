package main

import (
	"context"
	"log/slog"
	"time"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// The loop is the cooperative "main loop" of the tachometer:
//   - every idle delay it emits a Tick (sampler poll, presenter cadence)
//   - it reduces button and protocol events as they arrive
//   - it is the only place that executes side effects
//
// Design rules enforced here:
//   - DaemonState is touched only by this goroutine.
//   - Effects never feed events back; there is no re-entrant execution.
//   - Broadcasts are handed off without blocking; a slow observer loses updates.
//
// ============================================================================

// runDaemon runs until ctx is canceled or events is closed.
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	state *DaemonState,
	sinks Sinks,
	broadcasts chan<- StateBroadcast,
	idle time.Duration,
	logger *slog.Logger,
) {
	if state == nil {
		logger.Error("daemon state is nil")
		return
	}
	if idle <= 0 {
		idle = loopIdleMS * time.Millisecond
	}

	ticker := time.NewTicker(idle)
	defer ticker.Stop()

	var effQueue []Effect

	apply := func(ev Event) {
		rr := Reduce(state, ev)
		effQueue = append(effQueue, rr.Effects...)

		for _, b := range rr.Broadcasts {
			if broadcasts == nil {
				break
			}
			select {
			case broadcasts <- b:
			default:
				logger.Debug("broadcast queue full; dropping", "type", broadcastType(b))
			}
		}

		for len(effQueue) > 0 {
			eff := effQueue[0]
			effQueue = effQueue[1:]
			runEffect(sinks, eff, logger)
		}
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return
			}
			apply(ev)

		case now := <-ticker.C:
			apply(Tick{Now: now})
		}
	}
}

func broadcastType(b StateBroadcast) string {
	switch b.(type) {
	case BroadcastRateChanged:
		return "rate_changed"
	case BroadcastUnitChanged:
		return "unit_changed"
	default:
		return "unknown"
	}
}
