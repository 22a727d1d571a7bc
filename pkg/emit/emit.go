/*
This file is part of the coating host software suite.

Copyright (C) 2026  Coating Host Project

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package emit turns traversal commands into G-code text. The emitter is
// the single point of pixel-to-millimeter conversion in the pipeline and
// guarantees that no two consecutive emitted lines encode the same
// effective position.
package emit

import (
	"fmt"
	"math"
	"strings"

	"coating-host/pkg/geometry"
)

// DefaultPixelsPerMm is used when the configured scale is zero or negative.
const DefaultPixelsPerMm = 10

// suppressionTolerance is the millimeter-space distance under which a move
// is considered redundant and not emitted.
const suppressionTolerance = 0.001

// Settings holds the machine parameters one emitter instance runs with.
// Speeds are in mm/min, heights in millimeters, PixelsPerMm maps canvas
// pixels to millimeters.
type Settings struct {
	MoveSpeed     float64
	CoatingSpeed  float64
	SafeHeight    float64
	CoatingHeight float64
	PixelsPerMm   float64
}

// Move is one accepted (non-suppressed) machine move, recorded for
// formatter variants that annotate the output.
type Move struct {
	Rapid bool
	Speed float64
	X, Y  float64
	Z     float64
	HasZ  bool
}

// position is a 3D machine position. X and Y carry whichever unit the
// owning field declares; Z is always millimeters.
type position struct {
	x, y, z float64
}

// Emitter accumulates G-code for one generation run. It tracks the last
// position in both pixel and millimeter space so that repeated unit
// conversion cannot drift, and suppresses moves that would not change the
// effective position.
type Emitter struct {
	settings  Settings
	formatter Formatter

	// lastPixel.z mirrors lastMm.z; Z is never pixel-scaled.
	lastPixel position
	lastMm    position

	body  strings.Builder
	moves []Move
}

// New returns an emitter with the plain output format. The head starts at
// the origin with Z at safe height.
func New(settings Settings) *Emitter {
	return NewWithFormatter(settings, PlainFormatter{})
}

// NewWithFormatter returns an emitter using the given output formatter.
func NewWithFormatter(settings Settings, f Formatter) *Emitter {
	return &Emitter{
		settings:  settings,
		formatter: f,
		lastPixel: position{z: settings.SafeHeight},
		lastMm:    position{z: settings.SafeHeight},
	}
}

// Position returns the current head position in pixel space.
func (e *Emitter) Position() geometry.Point {
	return geometry.Point{X: e.lastPixel.x, Y: e.lastPixel.y}
}

// PositionMm returns the current head position in millimeter space,
// including Z.
func (e *Emitter) PositionMm() (x, y, z float64) {
	return e.lastMm.x, e.lastMm.y, e.lastMm.z
}

// TravelTo emits a rapid move to the given pixel coordinates, leaving Z
// unchanged.
func (e *Emitter) TravelTo(x, y float64) {
	e.moveTo(true, e.settings.MoveSpeed, x, y, false, 0)
}

// TravelToZ emits a rapid move to the given pixel coordinates with an
// explicit Z in millimeters.
func (e *Emitter) TravelToZ(x, y, z float64) {
	e.moveTo(true, e.settings.MoveSpeed, x, y, true, z)
}

// CoatTo emits a coating move to the given pixel coordinates at the
// configured coating speed.
func (e *Emitter) CoatTo(x, y float64) {
	e.moveTo(false, e.settings.CoatingSpeed, x, y, false, 0)
}

// CoatToWithSpeed emits a coating move with an explicit speed override.
func (e *Emitter) CoatToWithSpeed(x, y, speed float64) {
	e.moveTo(false, speed, x, y, false, 0)
}

// TravelAtCoatingHeight emits a rapid-speed move forced to coating height,
// used for travel rerouted along a mask boundary.
func (e *Emitter) TravelAtCoatingHeight(x, y float64) {
	e.moveTo(true, e.settings.MoveSpeed, x, y, true, e.settings.CoatingHeight)
}

// SetZ emits a rapid move that changes only Z, holding the current X/Y.
func (e *Emitter) SetZ(z float64) {
	e.moveTo(true, e.settings.MoveSpeed, e.lastPixel.x, e.lastPixel.y, true, z)
}

// RaiseToSafe moves Z to the configured safe height.
func (e *Emitter) RaiseToSafe() {
	e.SetZ(e.settings.SafeHeight)
}

// LowerToCoating moves Z to the configured coating height.
func (e *Emitter) LowerToCoating() {
	e.SetZ(e.settings.CoatingHeight)
}

// NozzleOn emits the dispenser-on command. Unconditional: double-on is
// treated as idempotent by contract, not guarded here.
func (e *Emitter) NozzleOn() {
	e.body.WriteString("M503\n")
}

// NozzleOff emits the dispenser-off command.
func (e *Emitter) NozzleOff() {
	e.body.WriteString("M504\n")
}

// WriteLiteral appends a raw line to the output, newline-terminated. Used
// by the snippet assembler for user-authored blocks.
func (e *Emitter) WriteLiteral(line string) {
	e.body.WriteString(line)
	if !strings.HasSuffix(line, "\n") {
		e.body.WriteByte('\n')
	}
}

// Moves returns a copy of the accepted move log.
func (e *Emitter) Moves() []Move {
	out := make([]Move, len(e.moves))
	copy(out, e.moves)
	return out
}

// GCode returns the accumulated output rendered by the formatter.
func (e *Emitter) GCode() string {
	return e.formatter.Render(e.moves, e.body.String())
}

// pixelsPerMm returns the configured scale with the documented fallback.
func (e *Emitter) pixelsPerMm() float64 {
	if e.settings.PixelsPerMm <= 0 {
		return DefaultPixelsPerMm
	}
	return e.settings.PixelsPerMm
}

// moveTo is the single mutation point. It converts pixel X/Y to
// millimeters and emits one formatted line, unless every specified axis is
// within the suppression tolerance of the last position.
func (e *Emitter) moveTo(rapid bool, speed, px, py float64, hasZ bool, z float64) {
	ppm := e.pixelsPerMm()
	mmX := px / ppm
	mmY := py / ppm

	same := math.Abs(mmX-e.lastMm.x) < suppressionTolerance &&
		math.Abs(mmY-e.lastMm.y) < suppressionTolerance
	if hasZ {
		same = same && math.Abs(z-e.lastMm.z) < suppressionTolerance
	}
	if same {
		return
	}

	cmd := "G1"
	if rapid {
		cmd = "G0"
	}
	line := fmt.Sprintf("%s F%d X%.3f Y%.3f", cmd, int(math.Round(speed)), mmX, mmY)
	if hasZ {
		line += fmt.Sprintf(" Z%.3f", z)
	}
	e.body.WriteString(line)
	e.body.WriteByte('\n')

	mv := Move{Rapid: rapid, Speed: speed, X: mmX, Y: mmY, HasZ: hasZ}
	e.lastPixel.x, e.lastPixel.y = px, py
	e.lastMm.x, e.lastMm.y = mmX, mmY
	if hasZ {
		e.lastPixel.z, e.lastMm.z = z, z
		mv.Z = z
	}
	e.moves = append(e.moves, mv)
}
