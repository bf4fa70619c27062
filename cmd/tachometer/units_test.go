package main

import (
	"math"
	"testing"
)

func TestConversions(t *testing.T) {
	// 1000 Hz on a 25-slit disk is 40 rev/s.
	const hz = 1000.0

	if got := ToRPM(hz, 25); got != 2400 {
		t.Errorf("ToRPM=%v, want 2400", got)
	}
	if got := ToRevPerSec(hz, 25); got != 40 {
		t.Errorf("ToRevPerSec=%v, want 40", got)
	}
	if got, want := ToRadPerSec(hz, 25), 80*math.Pi; math.Abs(got-want) > 1e-9 {
		t.Errorf("ToRadPerSec=%v, want %v", got, want)
	}
}

func TestUnit_Format(t *testing.T) {
	tests := []struct {
		unit Unit
		v    float64
		want string
	}{
		{UnitRPM, 2400, "2400.0"},
		{UnitRPM, 99.999, "100.00"},
		{UnitRPM, 15, "15.00"},
		{UnitRPM, 100, "100.0"},
		{UnitRevPerSec, 40, "40.00"},
		{UnitRevPerSec, 0.25, "0.250"},
		{UnitRadPerSec, 251.327412, "251.33"},
		{UnitRadPerSec, 1.5707963, "1.571"},
		{UnitRPM, math.NaN(), "nan"},
		{UnitRadPerSec, math.NaN(), "nan"},
	}

	for _, tt := range tests {
		if got := tt.unit.Format(tt.v); got != tt.want {
			t.Errorf("%s.Format(%v)=%q, want %q", tt.unit, tt.v, got, tt.want)
		}
	}
}

func TestUnit_FormatWithSuffix(t *testing.T) {
	if got := UnitRPM.FormatWithSuffix(2400); got != "2400.0 rpm" {
		t.Errorf("got %q", got)
	}
	if got := UnitRevPerSec.FormatWithSuffix(math.NaN()); got != "nan rev/s" {
		t.Errorf("got %q", got)
	}
}

func TestUnit_Floor(t *testing.T) {
	// 25 periods in 4 s on a 25-slit disk: 6.25 Hz = 0.25 rev/s = 15 rpm.
	if got := UnitRPM.Floor(25, 25, 4000); got != 15 {
		t.Errorf("rpm floor=%v, want 15", got)
	}
	if got := UnitRevPerSec.Floor(25, 25, 4000); got != 0.25 {
		t.Errorf("rev/s floor=%v, want 0.25", got)
	}
	if got := UnitRadPerSec.Format(UnitRadPerSec.Floor(25, 25, 4000)); got != "1.571" {
		t.Errorf("rad/s floor=%q, want 1.571", got)
	}
}

func TestUnitSelector_NextCycles(t *testing.T) {
	var s UnitSelector

	want := []Unit{UnitRevPerSec, UnitRadPerSec, UnitRPM, UnitRevPerSec}
	for i, w := range want {
		s.Next()
		if s.Current() != w {
			t.Fatalf("step %d: got %s, want %s", i, s.Current(), w)
		}
	}
}

func TestUnitSelector_SetByIndex(t *testing.T) {
	var s UnitSelector

	s.SetByIndex(2)
	if s.Current() != UnitRadPerSec {
		t.Fatalf("SetByIndex(2)=%s", s.Current())
	}
	for _, bad := range []int{3, -1, 99} {
		s.SetByIndex(2)
		s.SetByIndex(bad)
		if s.Current() != UnitRPM {
			t.Errorf("SetByIndex(%d)=%s, want rpm", bad, s.Current())
		}
	}
}
