package main

import "time"

// DaemonState is the top-level, daemon-owned state container.
//
// Only the daemon goroutine touches it. Other goroutines get copies through
// StateSnapshot (requested via RequestStateSnapshot) or reducer broadcasts.
type DaemonState struct {
	Sampler   *RateSampler
	Units     *UnitSelector
	Processor *CommandProcessor
	Presenter *Presenter

	// Start anchors the millisecond clock used by the sampler and presenter.
	Start time.Time

	// LastRefreshMS is the ms clock of the previous presenter refresh.
	LastRefreshMS uint32
	Refreshed     bool

	// LastFrame is the most recent presenter output.
	LastFrame Frame
}

// NewDaemonState wires the engine around an edge window source using the
// build-time measurement constants.
func NewDaemonState(src WindowSource, start time.Time) *DaemonState {
	sampler := NewRateSampler(src, edgeWindowSize, staleTimeoutMS)
	units := &UnitSelector{}
	return &DaemonState{
		Sampler:   sampler,
		Units:     units,
		Processor: NewCommandProcessor(sampler, units, slitsPerRev),
		Presenter: NewPresenter(sampler, units, edgeWindowSize, slitsPerRev, staleTimeoutMS, screensaverIdleMS),
		Start:     start,
		LastFrame: Frame{State: DisplayScreensaver, Unit: UnitRPM},
	}
}

// Millis converts a wall-clock instant into the free-running ms clock.
func (s *DaemonState) Millis(now time.Time) uint32 {
	return uint32(now.Sub(s.Start) / time.Millisecond)
}

// StateSnapshot is a coherent copy of what the daemon is showing.
type StateSnapshot struct {
	Frame    Frame // last presenter refresh
	Unit     Unit  // selected unit now (may be newer than Frame.Unit)
	RateText string
	At       time.Time
}

// Snapshot builds a StateSnapshot from the current state.
func (s *DaemonState) Snapshot(now time.Time) StateSnapshot {
	return StateSnapshot{
		Frame:    s.LastFrame,
		Unit:     s.Units.Current(),
		RateText: s.Processor.RateText(),
		At:       now,
	}
}
