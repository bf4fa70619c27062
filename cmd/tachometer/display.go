package main

// DisplaySink accepts the small set of draw primitives the presenter output needs.
// Coordinates are pixels from the top-left corner.
type DisplaySink interface {
	Clear()
	SetTextSize(size int)
	SetCursor(x, y int)
	Print(s string)
	FillRect(x, y, w, h int, on bool)
	// Flush pushes the drawn buffer to the device.
	Flush() error
}

// Layout on the 128x32 panel.
const (
	heartbeatSize = 3
	smallTextH    = 8
	smallTextW    = 6
)

// drawFrame renders one presenter frame.
func drawFrame(d DisplaySink, f Frame) error {
	d.Clear()

	switch f.State {
	case DisplayScreensaver:
		// blank

	case DisplayUnknown:
		d.SetTextSize(2)
		d.SetCursor(0, 0)
		d.Print(f.Text)
		d.SetTextSize(1)
		d.SetCursor(0, displayHeight-smallTextH)
		d.Print(f.Unit.String())

	case DisplayValid:
		d.SetTextSize(2)
		d.SetCursor(0, 0)
		d.Print(f.Text)
		d.SetTextSize(1)
		d.SetCursor(0, displayHeight-smallTextH)
		d.Print(f.Unit.String())
		d.SetCursor(displayWidth-smallTextW, displayHeight-smallTextH)
		d.Print(string(f.Spinner))
		if f.Heartbeat {
			d.FillRect(displayWidth-heartbeatSize, 0, heartbeatSize, heartbeatSize, true)
		}
	}

	return d.Flush()
}
