package main

import "math"

// DisplayState is the presenter's mode for one refresh.
type DisplayState int

const (
	DisplayScreensaver DisplayState = iota
	DisplayUnknown
	DisplayValid
)

func (s DisplayState) String() string {
	switch s {
	case DisplayUnknown:
		return "unknown"
	case DisplayValid:
		return "valid"
	default:
		return "screensaver"
	}
}

var spinnerFrames = [...]byte{'|', '/', '-', '\\'}

// Frame is everything the display needs for one refresh.
type Frame struct {
	State DisplayState
	Unit  Unit

	// Value is the rate in Unit (NaN unless State is DisplayValid).
	Value float64
	// FreqHz is the raw edge frequency (NaN unless State is DisplayValid).
	FreqHz float64

	// Text is the main line: "<value>" or "<floor" (empty for screensaver).
	Text string

	Heartbeat bool
	Spinner   byte
	Seq       uint16
}

// SampleView is what the presenter needs from the sampler.
type SampleView interface {
	Current() float64
	Known() bool
	LastUpdate() uint32
	TakeFresh() bool
}

// Presenter chooses what to show on each display refresh.
type Presenter struct {
	sampler SampleView
	units   *UnitSelector

	window        int
	slits         int
	timeoutMS     uint32
	screensaverMS uint32

	heartbeat bool
	spin      int
	seq       uint16
}

// NewPresenter builds a presenter over the sampler and unit selector.
func NewPresenter(sampler SampleView, units *UnitSelector, window, slits int, timeoutMS, screensaverMS uint32) *Presenter {
	return &Presenter{
		sampler:       sampler,
		units:         units,
		window:        window,
		slits:         slits,
		timeoutMS:     timeoutMS,
		screensaverMS: screensaverMS,
	}
}

// Tick computes the frame for the refresh happening at nowMS.
func (p *Presenter) Tick(nowMS uint32) Frame {
	p.seq++
	fresh := p.sampler.TakeFresh()
	u := p.units.Current()

	f := Frame{
		Unit:    u,
		Value:   math.NaN(),
		FreqHz:  math.NaN(),
		Spinner: spinnerFrames[p.spin],
		Seq:     p.seq,
	}

	if nowMS-p.sampler.LastUpdate() > p.screensaverMS {
		f.State = DisplayScreensaver
		return f
	}

	if !p.sampler.Known() {
		f.State = DisplayUnknown
		f.Text = "<" + u.Format(u.Floor(p.window, p.slits, p.timeoutMS))
		return f
	}

	p.heartbeat = !p.heartbeat
	if fresh {
		p.spin = (p.spin + 1) % len(spinnerFrames)
	}

	freq := p.sampler.Current()
	f.State = DisplayValid
	f.FreqHz = freq
	f.Value = u.Convert(freq, p.slits)
	f.Text = u.Format(f.Value)
	f.Heartbeat = p.heartbeat
	f.Spinner = spinnerFrames[p.spin]
	return f
}
