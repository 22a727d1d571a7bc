// Package safety validates a generated program against the machine
// envelope before it is persisted or handed to an operator. A move outside
// the work area or the configured height band must never reach hardware,
// so any violation aborts the run.
package safety

import (
	"fmt"

	"coating-host/pkg/config"
	"coating-host/pkg/emit"
)

// positionTolerance absorbs millimeter rounding from the emitter's %.3f
// output format.
const positionTolerance = 0.0005

// Limits is the machine envelope in millimeters. A limit of zero or less
// disables that check.
type Limits struct {
	// Work area extent. X spans [0, WidthMm], Y spans [0, HeightMm].
	WidthMm  float64
	HeightMm float64

	// Z band the head may occupy.
	MinZ float64
	MaxZ float64

	// Fastest allowed feedrate in mm/min.
	MaxSpeed float64
}

// LimitsFromSettings derives the envelope from the host configuration. The
// work area is configured in canvas pixels and converted here.
func LimitsFromSettings(s *config.Settings) Limits {
	ppm := s.Machine.PixelsPerMm
	if ppm <= 0 {
		ppm = emit.DefaultPixelsPerMm
	}
	minZ, maxZ := s.Process.CoatingHeight, s.Process.SafeHeight
	if minZ > maxZ {
		minZ, maxZ = maxZ, minZ
	}
	return Limits{
		WidthMm:  s.Machine.WorkAreaWidth / ppm,
		HeightMm: s.Machine.WorkAreaHeight / ppm,
		MinZ:     minZ,
		MaxZ:     maxZ,
		MaxSpeed: s.Process.MoveSpeed,
	}
}

// Violation is one move that left the envelope.
type Violation struct {
	// Index is the move's position in the emitted move log.
	Index int
	Axis  string
	Value float64
	Limit float64
}

func (v Violation) String() string {
	return fmt.Sprintf("move %d: %s=%.3f exceeds limit %.3f", v.Index, v.Axis, v.Value, v.Limit)
}

// Result collects the violations of one check.
type Result struct {
	Violations []Violation
}

// OK reports whether the program stayed inside the envelope.
func (r *Result) OK() bool {
	return len(r.Violations) == 0
}

// First returns the first violation for error reporting.
func (r *Result) First() Violation {
	return r.Violations[0]
}

// Check validates every emitted move against the limits.
func Check(moves []emit.Move, limits Limits) *Result {
	res := &Result{}
	for i, m := range moves {
		res.checkAxis(i, "X", m.X, 0, limits.WidthMm)
		res.checkAxis(i, "Y", m.Y, 0, limits.HeightMm)
		if m.HasZ {
			res.checkBand(i, "Z", m.Z, limits.MinZ, limits.MaxZ)
		}
		if limits.MaxSpeed > 0 && m.Speed > limits.MaxSpeed+positionTolerance {
			res.add(i, "F", m.Speed, limits.MaxSpeed)
		}
		if m.Speed <= 0 {
			res.add(i, "F", m.Speed, 0)
		}
	}
	return res
}

// checkAxis validates one axis against [lo, hi]; hi <= 0 disables it.
func (r *Result) checkAxis(idx int, axis string, v, lo, hi float64) {
	if hi <= 0 {
		return
	}
	if v < lo-positionTolerance {
		r.add(idx, axis, v, lo)
	} else if v > hi+positionTolerance {
		r.add(idx, axis, v, hi)
	}
}

// checkBand validates a value against an always-active band.
func (r *Result) checkBand(idx int, axis string, v, lo, hi float64) {
	if v < lo-positionTolerance {
		r.add(idx, axis, v, lo)
	} else if v > hi+positionTolerance {
		r.add(idx, axis, v, hi)
	}
}

func (r *Result) add(idx int, axis string, value, limit float64) {
	r.Violations = append(r.Violations, Violation{Index: idx, Axis: axis, Value: value, Limit: limit})
}
