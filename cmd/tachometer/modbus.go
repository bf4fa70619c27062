package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// RegisterWriter writes a block of holding registers.
// This allows for mocking in tests.
type RegisterWriter interface {
	WriteRegisters(addr uint16, regs []uint16) error
	Close() error
}

// modbusHandler is the transport part of a goburrow client handler.
type modbusHandler interface {
	modbus.ClientHandler
	Connect() error
	Close() error
}

// ModbusClient is a single Modbus connection (TCP or RTU) to one slave.
type ModbusClient struct {
	mu      sync.Mutex
	handler modbusHandler
	client  modbus.Client
}

// NewModbusClient connects according to cfg.
func NewModbusClient(cfg ModbusConfig) (*ModbusClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("modbus: endpoint required")
	}
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond

	var h modbusHandler
	switch cfg.Transport {
	case "rtu":
		rh := modbus.NewRTUClientHandler(cfg.Endpoint)
		rh.BaudRate = cfg.Baud
		rh.DataBits = 8
		rh.Parity = "N"
		rh.StopBits = 1
		rh.SlaveId = cfg.UnitID
		rh.Timeout = timeout
		h = rh
	default:
		th := modbus.NewTCPClientHandler(cfg.Endpoint)
		th.SlaveId = cfg.UnitID
		th.Timeout = timeout
		h = th
	}

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("modbus connect %s: %w", cfg.Endpoint, err)
	}

	return &ModbusClient{
		handler: h,
		client:  modbus.NewClient(h),
	}, nil
}

func (c *ModbusClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

func (c *ModbusClient) WriteRegisters(addr uint16, regs []uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.client.WriteMultipleRegisters(addr, uint16(len(regs)), packRegisters(regs))
	return err
}

func packRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}

// frameRegisterCount is the size of the exported block.
const frameRegisterCount = 7

// encodeFrameRegisters lays out a frame as holding registers:
//
//	0   display state (0 screensaver, 1 unknown, 2 valid)
//	1   unit index
//	2-3 displayed value, float32 high word first
//	4-5 frequency in Hz, float32 high word first
//	6   frame sequence
func encodeFrameRegisters(f Frame) []uint16 {
	regs := make([]uint16, frameRegisterCount)
	regs[0] = uint16(f.State)
	regs[1] = uint16(f.Unit)
	v := math.Float32bits(float32(f.Value))
	regs[2], regs[3] = uint16(v>>16), uint16(v)
	hz := math.Float32bits(float32(f.FreqHz))
	regs[4], regs[5] = uint16(hz>>16), uint16(hz)
	regs[6] = f.Seq
	return regs
}

// RegisterPublisher exports frames to a RegisterWriter from its own goroutine so the
// daemon loop never waits on the network. Only the newest pending frame is kept.
type RegisterPublisher struct {
	w      RegisterWriter
	addr   uint16
	logger *slog.Logger

	pending chan Frame
}

// NewRegisterPublisher creates a publisher writing at addr. Call Run to start it.
func NewRegisterPublisher(w RegisterWriter, addr uint16, logger *slog.Logger) *RegisterPublisher {
	return &RegisterPublisher{
		w:       w,
		addr:    addr,
		logger:  logger,
		pending: make(chan Frame, 1),
	}
}

// Publish implements FramePublisher. It never blocks; an unsent frame is replaced.
func (p *RegisterPublisher) Publish(f Frame) {
	for {
		select {
		case p.pending <- f:
			return
		default:
		}
		select {
		case <-p.pending:
		default:
		}
	}
}

// Run writes frames until ctx is canceled, then closes the writer.
func (p *RegisterPublisher) Run(ctx context.Context) error {
	defer p.w.Close()

	failing := false
	for {
		select {
		case <-ctx.Done():
			return nil

		case f := <-p.pending:
			if err := p.w.WriteRegisters(p.addr, encodeFrameRegisters(f)); err != nil {
				// Log the first failure of a streak only; the link retries on every frame.
				if !failing {
					p.logger.Warn("modbus register write failed", "error", err, "addr", p.addr)
				}
				failing = true
				continue
			}
			if failing {
				p.logger.Info("modbus register writes recovered", "addr", p.addr)
			}
			failing = false
		}
	}
}
