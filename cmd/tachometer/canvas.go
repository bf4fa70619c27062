package main

import (
	"image"
	"image/draw"
	"sync"

	"github.com/fogleman/gg"
)

// Panel receives a finished monochrome frame (e.g. an SSD1306 over I2C).
type Panel interface {
	Show(img image.Image) error
}

// Canvas is a gg-backed DisplaySink. It keeps the last flushed image for previews
// and forwards it to an optional panel.
type Canvas struct {
	dc    *gg.Context
	size  float64
	x, y  float64
	panel Panel

	mu   sync.Mutex
	last *image.RGBA
}

// NewCanvas creates a w x h canvas. panel may be nil.
func NewCanvas(w, h int, panel Panel) *Canvas {
	c := &Canvas{
		dc:    gg.NewContext(w, h),
		size:  1,
		panel: panel,
		last:  image.NewRGBA(image.Rect(0, 0, w, h)),
	}
	c.Clear()
	draw.Draw(c.last, c.last.Bounds(), image.Black, image.Point{}, draw.Src)
	return c
}

func (c *Canvas) Clear() {
	c.dc.SetRGB(0, 0, 0)
	c.dc.Clear()
	c.x, c.y = 0, 0
}

func (c *Canvas) SetTextSize(size int) {
	if size < 1 {
		size = 1
	}
	c.size = float64(size)
}

func (c *Canvas) SetCursor(x, y int) {
	c.x, c.y = float64(x), float64(y)
}

// Print draws s with its top-left corner at the cursor and advances the cursor.
func (c *Canvas) Print(s string) {
	c.dc.Push()
	c.dc.SetRGB(1, 1, 1)
	c.dc.Scale(c.size, c.size)
	c.dc.DrawStringAnchored(s, c.x/c.size, c.y/c.size, 0, 1)
	w, _ := c.dc.MeasureString(s)
	c.dc.Pop()
	c.x += w * c.size
}

func (c *Canvas) FillRect(x, y, w, h int, on bool) {
	if on {
		c.dc.SetRGB(1, 1, 1)
	} else {
		c.dc.SetRGB(0, 0, 0)
	}
	c.dc.DrawRectangle(float64(x), float64(y), float64(w), float64(h))
	c.dc.Fill()
}

// Flush snapshots the canvas and sends it to the panel, if any.
func (c *Canvas) Flush() error {
	src := c.dc.Image()

	c.mu.Lock()
	draw.Draw(c.last, c.last.Bounds(), src, src.Bounds().Min, draw.Src)
	c.mu.Unlock()

	if c.panel == nil {
		return nil
	}
	return c.panel.Show(src)
}

// Snapshot returns a copy of the last flushed frame. Safe for concurrent use.
func (c *Canvas) Snapshot() image.Image {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := image.NewRGBA(c.last.Bounds())
	copy(out.Pix, c.last.Pix)
	return out
}
