package main

import (
	"math"
	"strconv"
)

// Unit is a display unit for the rotation rate.
type Unit int

const (
	UnitRPM Unit = iota
	UnitRevPerSec
	UnitRadPerSec

	unitCount = 3
)

// String returns the short unit name.
func (u Unit) String() string {
	switch u {
	case UnitRevPerSec:
		return "rev/s"
	case UnitRadPerSec:
		return "rad/s"
	default:
		return "rpm"
	}
}

// Suffix is appended to formatted values, including the leading space.
func (u Unit) Suffix() string { return " " + u.String() }

// Convert maps an edge frequency to this unit.
func (u Unit) Convert(freqHz float64, slits int) float64 {
	switch u {
	case UnitRevPerSec:
		return ToRevPerSec(freqHz, slits)
	case UnitRadPerSec:
		return ToRadPerSec(freqHz, slits)
	default:
		return ToRPM(freqHz, slits)
	}
}

// Decimals returns the number of decimals shown for value v.
func (u Unit) Decimals(v float64) int {
	if u == UnitRPM {
		if v < 100 {
			return 2
		}
		return 1
	}
	if v < 10 {
		return 3
	}
	return 2
}

// Format renders v with the unit precision rule. Unknown values render as "nan".
func (u Unit) Format(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	return strconv.FormatFloat(v, 'f', u.Decimals(v), 64)
}

// FormatWithSuffix renders v followed by the unit suffix.
func (u Unit) FormatWithSuffix(v float64) string { return u.Format(v) + u.Suffix() }

// Floor returns the minimum detectable rate in this unit.
func (u Unit) Floor(window, slits int, timeoutMS uint32) float64 {
	return u.Convert(MinFrequency(window, timeoutMS), slits)
}

func ToRPM(freqHz float64, slits int) float64 { return freqHz / float64(slits) * 60 }

func ToRevPerSec(freqHz float64, slits int) float64 { return freqHz / float64(slits) }

func ToRadPerSec(freqHz float64, slits int) float64 {
	return freqHz / float64(slits) * 2 * math.Pi
}

// UnitSelector holds the active unit.
//
// It is written only by the daemon goroutine (button presses and u<n> commands).
type UnitSelector struct {
	current Unit
}

// Current returns the active unit.
func (s *UnitSelector) Current() Unit { return s.current }

// Next advances to the following unit, wrapping after the last.
func (s *UnitSelector) Next() {
	s.current = (s.current + 1) % unitCount
}

// SetByIndex selects the unit with ordinal i; any other value selects RPM.
func (s *UnitSelector) SetByIndex(i int) {
	if i < 0 || i >= unitCount {
		s.current = UnitRPM
		return
	}
	s.current = Unit(i)
}
