package main

import "log/slog"

// FramePublisher exports presenter frames (e.g. to Modbus registers).
type FramePublisher interface {
	Publish(f Frame)
}

// Sinks are the external systems effects talk to. Any field may be nil.
type Sinks struct {
	Display   DisplaySink
	Registers FramePublisher
}

// runEffect executes a single reducer-emitted Effect.
//
// Design rules:
//   - This function is allowed to perform I/O.
//   - It must never call Reduce(); the daemon loop sequences Reduce -> Effects.
//   - It must never block the daemon loop on a slow consumer.
func runEffect(sinks Sinks, eff Effect, logger *slog.Logger) {
	switch e := eff.(type) {
	case EffReply:
		if e.Reply == nil {
			return
		}
		select {
		case e.Reply <- e.Response:
		default:
			logger.Warn("protocol reply channel not ready; dropping response", "text", e.Response.Text)
		}

	case EffRenderFrame:
		if sinks.Display == nil {
			return
		}
		if err := drawFrame(sinks.Display, e.Frame); err != nil {
			logger.Error("display refresh failed", "error", err, "state", e.Frame.State.String())
		}

	case EffPublishRegisters:
		if sinks.Registers == nil {
			return
		}
		sinks.Registers.Publish(e.Frame)

	case EffPublishStateSnapshot:
		if e.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}
		select {
		case e.Reply <- e.Snapshot:
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	default:
		logger.Warn("unknown effect type", "effect", eff.String())
	}
}
