package main

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// SSD1306 drives a 128x32 SSD1306 OLED over I2C.
type SSD1306 struct {
	mu  sync.Mutex
	dev *i2c.Dev
	w   int
	h   int
	buf []byte
}

const (
	ssdControlCmd  = 0x00
	ssdControlData = 0x40
)

// ssd1306Init is the power-up sequence for a 128x32 panel with charge pump.
var ssd1306Init = []byte{
	0xAE,       // display off
	0xD5, 0x80, // clock divide
	0xA8, 0x1F, // multiplex 32
	0xD3, 0x00, // display offset
	0x40,       // start line 0
	0x8D, 0x14, // charge pump on
	0x20, 0x00, // horizontal addressing
	0xA1,       // segment remap
	0xC8,       // COM scan descending
	0xDA, 0x02, // COM pins
	0x81, 0x8F, // contrast
	0xD9, 0xF1, // precharge
	0xDB, 0x40, // VCOM detect
	0xA4, // resume from RAM
	0xA6, // normal (not inverted)
	0x2E, // scroll off
	0xAF, // display on
}

// openI2CBus initialises periph host drivers and opens the named bus ("" = first).
func openI2CBus(name string) (i2c.BusCloser, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	bus, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", name, err)
	}
	return bus, nil
}

// NewSSD1306 initialises the panel at addr on bus.
func NewSSD1306(bus i2c.Bus, addr uint16, w, h int) (*SSD1306, error) {
	d := &SSD1306{
		dev: &i2c.Dev{Addr: addr, Bus: bus},
		w:   w,
		h:   h,
		buf: make([]byte, w*h/8),
	}
	if err := d.command(ssd1306Init...); err != nil {
		return nil, fmt.Errorf("ssd1306 init: %w", err)
	}
	return d, nil
}

func (d *SSD1306) command(cmds ...byte) error {
	for _, c := range cmds {
		if _, err := d.dev.Write([]byte{ssdControlCmd, c}); err != nil {
			return err
		}
	}
	return nil
}

// Show implements Panel.
func (d *SSD1306) Show(img image.Image) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	packPages(img, d.w, d.h, d.buf)

	// Column and page window covering the whole panel.
	if err := d.command(0x21, 0, byte(d.w-1), 0x22, 0, byte(d.h/8-1)); err != nil {
		return fmt.Errorf("ssd1306 address window: %w", err)
	}
	out := make([]byte, 0, len(d.buf)+1)
	out = append(out, ssdControlData)
	out = append(out, d.buf...)
	if _, err := d.dev.Write(out); err != nil {
		return fmt.Errorf("ssd1306 write: %w", err)
	}
	return nil
}

// Off blanks the panel.
func (d *SSD1306) Off() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.command(0xAE)
}

// packPages converts img into SSD1306 page-major layout: one byte per column per
// 8-row page, LSB at the top row. Pixels brighter than mid-grey are lit.
func packPages(img image.Image, w, h int, buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
	b := img.Bounds()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			if g.Y > 127 {
				buf[x+(y/8)*w] |= 1 << uint(y%8)
			}
		}
	}
}
