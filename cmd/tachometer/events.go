package main

import (
	"fmt"
	"time"
)

// ============================================================================
// Events - inputs to the reducer
// ============================================================================
// Events come from the daemon ticker, button watchers, and the line transports
// (serial port and IPC socket). The daemon loop is the only consumer.
// ============================================================================

// Event is a marker interface for all daemon inputs.
type Event interface {
	eventMarker()
}

// Tick is emitted by the daemon loop once per idle delay.
type Tick struct {
	Now time.Time
}

func (Tick) eventMarker() {}

// ButtonPressed is one debounced press of any unit-advance button.
type ButtonPressed struct {
	Source string // e.g. "gpiod:9", "sysfs:6", "evdev:/dev/input/event0:28" (device and key code)
}

func (ButtonPressed) eventMarker() {}

// LineReceived carries one protocol line from a transport.
// Reply must be buffered; the daemon never blocks on it.
type LineReceived struct {
	Line   string
	Origin string // "serial", "ipc"
	Reply  chan<- Response
}

func (LineReceived) eventMarker() {}

// RequestStateSnapshot asks the daemon for a copy of its state.
type RequestStateSnapshot struct {
	Reply chan<- StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// ============================================================================
// Broadcasts - reducer-emitted notifications for observers (WebSocket clients)
// ============================================================================

// StateBroadcast is a marker interface for outbound state notifications.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastRateChanged is emitted after each presenter refresh.
type BroadcastRateChanged struct {
	Frame Frame
	At    time.Time
}

func (BroadcastRateChanged) broadcastMarker() {}

// BroadcastUnitChanged is emitted when the selected unit changes.
type BroadcastUnitChanged struct {
	Unit Unit
	At   time.Time
}

func (BroadcastUnitChanged) broadcastMarker() {}

// ============================================================================
// Effects - side effects requested by the reducer
// ============================================================================

// Effect is executed by the daemon loop via runEffect.
type Effect interface {
	effectMarker()
	String() string
}

// EffReply answers a protocol line.
type EffReply struct {
	Reply    chan<- Response
	Response Response
}

func (EffReply) effectMarker() {}
func (e EffReply) String() string {
	return fmt.Sprintf("EffReply(text=%q, silent=%v)", e.Response.Text, e.Response.Silent)
}

// EffRenderFrame draws a frame on the display.
type EffRenderFrame struct {
	Frame Frame
}

func (EffRenderFrame) effectMarker() {}
func (e EffRenderFrame) String() string {
	return fmt.Sprintf("EffRenderFrame(state=%s, text=%q)", e.Frame.State, e.Frame.Text)
}

// EffPublishRegisters exports a frame to the register publisher.
type EffPublishRegisters struct {
	Frame Frame
}

func (EffPublishRegisters) effectMarker() {}
func (e EffPublishRegisters) String() string {
	return fmt.Sprintf("EffPublishRegisters(seq=%d)", e.Frame.Seq)
}

// EffPublishStateSnapshot delivers a snapshot to a requester.
type EffPublishStateSnapshot struct {
	Reply    chan<- StateSnapshot
	Snapshot StateSnapshot
}

func (EffPublishStateSnapshot) effectMarker()  {}
func (EffPublishStateSnapshot) String() string { return "EffPublishStateSnapshot()" }
