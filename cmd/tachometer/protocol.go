package main

import (
	"fmt"
	"strconv"
	"strings"
)

// ==============================
// Line protocol commands
// ==============================

// Command is one parsed protocol line.
type Command interface {
	commandMarker()
	String() string
}

// CmdIdentify is "id?".
type CmdIdentify struct{}

func (CmdIdentify) commandMarker() {}
func (CmdIdentify) String() string { return "CmdIdentify()" }

// CmdSetUnit is "u<n>". Index may be out of range; the selector falls back to RPM.
type CmdSetUnit struct {
	Index int
}

func (CmdSetUnit) commandMarker()   {}
func (c CmdSetUnit) String() string { return fmt.Sprintf("CmdSetUnit(index=%d)", c.Index) }

// CmdQueryRate asks for the current rate. Every unrecognized line maps here.
type CmdQueryRate struct{}

func (CmdQueryRate) commandMarker() {}
func (CmdQueryRate) String() string { return "CmdQueryRate()" }

// ParseCommand parses one line. It never fails: unrecognized text yields CmdQueryRate
// with recognized=false so the caller can decide whether to log it.
func ParseCommand(line string) (cmd Command, recognized bool) {
	line = strings.TrimSpace(line)

	if line == "id?" {
		return CmdIdentify{}, true
	}

	if rest, ok := strings.CutPrefix(line, "u"); ok && isSignedDigits(rest) {
		n, err := strconv.Atoi(rest)
		if err != nil {
			// Digits that overflow int still select a unit: the fallback one.
			n = -1
		}
		return CmdSetUnit{Index: n}, true
	}

	// Bare query lines ("" or "?") are the documented way to ask for a rate.
	return CmdQueryRate{}, line == "" || line == "?"
}

// isSignedDigits reports whether s is an optional sign followed by at least one digit.
func isSignedDigits(s string) bool {
	if s != "" && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ==============================
// Processor
// ==============================

// RateReader is the read side of the sampler used by protocol and display code.
type RateReader interface {
	Current() float64
}

// Response is the outcome of one protocol line.
type Response struct {
	Text       string // line to send back, without the newline
	Silent     bool   // true when the command has no response payload
	Recognized bool
}

// CommandProcessor answers protocol lines from the sampler and unit selector.
type CommandProcessor struct {
	rate  RateReader
	units *UnitSelector
	slits int
}

// NewCommandProcessor wires a processor to its collaborators.
func NewCommandProcessor(rate RateReader, units *UnitSelector, slits int) *CommandProcessor {
	return &CommandProcessor{rate: rate, units: units, slits: slits}
}

// Handle executes one line.
func (p *CommandProcessor) Handle(line string) Response {
	cmd, recognized := ParseCommand(line)

	switch c := cmd.(type) {
	case CmdIdentify:
		return Response{Text: identityString, Recognized: recognized}

	case CmdSetUnit:
		p.units.SetByIndex(c.Index)
		return Response{Silent: true, Recognized: recognized}

	default:
		return Response{Text: p.RateText(), Recognized: recognized}
	}
}

// RateText formats the current rate in the selected unit with its suffix.
func (p *CommandProcessor) RateText() string {
	u := p.units.Current()
	return u.FormatWithSuffix(u.Convert(p.rate.Current(), p.slits))
}
