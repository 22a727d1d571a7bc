package safety

import (
	"strings"
	"testing"

	"coating-host/pkg/config"
	"coating-host/pkg/emit"
)

func testLimits() Limits {
	return Limits{WidthMm: 800, HeightMm: 600, MinZ: 2, MaxZ: 20, MaxSpeed: 3000}
}

func TestCheckAcceptsInBoundsProgram(t *testing.T) {
	moves := []emit.Move{
		{Rapid: true, Speed: 3000, X: 0, Y: 0, Z: 2, HasZ: true},
		{Speed: 1200, X: 10, Y: 0},
		{Speed: 1200, X: 10, Y: 5},
		{Rapid: true, Speed: 3000, X: 800, Y: 600},
	}
	res := Check(moves, testLimits())
	if !res.OK() {
		t.Fatalf("unexpected violations: %v", res.Violations)
	}
}

func TestCheckFlagsOutOfAreaMoves(t *testing.T) {
	moves := []emit.Move{
		{Speed: 1200, X: 810, Y: 10},
		{Speed: 1200, X: -5, Y: 10},
		{Speed: 1200, X: 10, Y: 601},
	}
	res := Check(moves, testLimits())
	if len(res.Violations) != 3 {
		t.Fatalf("got %d violations, want 3: %v", len(res.Violations), res.Violations)
	}
	if res.First().Axis != "X" || res.First().Index != 0 {
		t.Errorf("unexpected first violation: %v", res.First())
	}
}

func TestCheckFlagsZOutsideBand(t *testing.T) {
	moves := []emit.Move{
		{Rapid: true, Speed: 3000, X: 10, Y: 10, Z: 25, HasZ: true},
		{Rapid: true, Speed: 3000, X: 10, Y: 10, Z: 1, HasZ: true},
		{Rapid: true, Speed: 3000, X: 10, Y: 10, Z: 20, HasZ: true},
	}
	res := Check(moves, testLimits())
	if len(res.Violations) != 2 {
		t.Fatalf("got %d violations, want 2: %v", len(res.Violations), res.Violations)
	}
	for _, v := range res.Violations {
		if v.Axis != "Z" {
			t.Errorf("unexpected axis %s", v.Axis)
		}
	}
}

func TestCheckFlagsBadSpeeds(t *testing.T) {
	moves := []emit.Move{
		{Speed: 4000, X: 10, Y: 10},
		{Speed: 0, X: 20, Y: 10},
	}
	res := Check(moves, testLimits())
	if len(res.Violations) != 2 {
		t.Fatalf("got %d violations, want 2: %v", len(res.Violations), res.Violations)
	}
}

func TestCheckToleratesRounding(t *testing.T) {
	moves := []emit.Move{
		{Speed: 1200, X: 800.0004, Y: 600.0004},
	}
	if res := Check(moves, testLimits()); !res.OK() {
		t.Fatalf("rounding-level overshoot should pass: %v", res.Violations)
	}
}

func TestCheckDisabledAreaSkipsXY(t *testing.T) {
	moves := []emit.Move{
		{Speed: 1200, X: 99999, Y: -50},
	}
	limits := Limits{MinZ: 2, MaxZ: 20}
	if res := Check(moves, limits); !res.OK() {
		t.Fatalf("disabled area should skip X/Y: %v", res.Violations)
	}
}

func TestLimitsFromSettings(t *testing.T) {
	s := config.DefaultSettings()
	limits := LimitsFromSettings(s)

	if limits.WidthMm != 800 || limits.HeightMm != 600 {
		t.Errorf("work area: got %.0fx%.0f, want 800x600", limits.WidthMm, limits.HeightMm)
	}
	if limits.MinZ != 2 || limits.MaxZ != 20 {
		t.Errorf("z band: got [%.0f, %.0f]", limits.MinZ, limits.MaxZ)
	}
	if limits.MaxSpeed != 3000 {
		t.Errorf("max speed: got %.0f", limits.MaxSpeed)
	}
}

func TestViolationString(t *testing.T) {
	v := Violation{Index: 3, Axis: "X", Value: 810.5, Limit: 800}
	if !strings.Contains(v.String(), "move 3") || !strings.Contains(v.String(), "X=810.500") {
		t.Errorf("unexpected format: %s", v.String())
	}
}
