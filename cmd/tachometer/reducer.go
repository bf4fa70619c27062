package main

import "time"

// Reduce applies one event to the daemon state and returns the side effects and
// broadcasts it implies.
//
// Reduce does no I/O and never blocks. It does mutate state in place: the sampler
// consumes completed edge windows through its lock-free source on Tick.
//
// The daemon loop is responsible for executing Effects and publishing Broadcasts.

// ReduceResult is the output of Reduce.
type ReduceResult struct {
	Effects    []Effect
	Broadcasts []StateBroadcast
}

// Reduce is the daemon brain.
func Reduce(s *DaemonState, e Event) ReduceResult {
	var rr ReduceResult
	if s == nil {
		return rr
	}

	switch ev := e.(type) {
	case Tick:
		nowMS := s.Millis(ev.Now)
		s.Sampler.Poll(nowMS)

		if s.Refreshed && nowMS-s.LastRefreshMS < displayRefreshMS {
			return rr
		}
		s.Refreshed = true
		s.LastRefreshMS = nowMS

		f := s.Presenter.Tick(nowMS)
		s.LastFrame = f
		rr.Effects = append(rr.Effects,
			EffRenderFrame{Frame: f},
			EffPublishRegisters{Frame: f},
		)
		rr.Broadcasts = append(rr.Broadcasts, BroadcastRateChanged{Frame: f, At: ev.Now})

	case ButtonPressed:
		s.Units.Next()
		rr.Broadcasts = append(rr.Broadcasts, BroadcastUnitChanged{Unit: s.Units.Current(), At: time.Now()})

	case LineReceived:
		before := s.Units.Current()
		resp := s.Processor.Handle(ev.Line)
		if ev.Reply != nil {
			rr.Effects = append(rr.Effects, EffReply{Reply: ev.Reply, Response: resp})
		}
		if after := s.Units.Current(); after != before {
			rr.Broadcasts = append(rr.Broadcasts, BroadcastUnitChanged{Unit: after, At: time.Now()})
		}

	case RequestStateSnapshot:
		rr.Effects = append(rr.Effects, EffPublishStateSnapshot{
			Reply:    ev.Reply,
			Snapshot: s.Snapshot(time.Now()),
		})

	default:
		// Unknown event type: no-op.
	}

	return rr
}
