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

package emit

import (
	"fmt"
	"strings"
)

// MoveLogSentinel delimits the annotated move-log header block.
const MoveLogSentinel = ";=== MOVE LOG ==="

// Formatter renders the emitter's accumulated output. The plain format is
// canonical; the annotated format exists for machines that consume a
// move-log header in front of the program.
type Formatter interface {
	Render(moves []Move, body string) string
}

// PlainFormatter returns the accumulated body unchanged.
type PlainFormatter struct{}

// Render implements Formatter.
func (PlainFormatter) Render(_ []Move, body string) string {
	return body
}

// AnnotatedFormatter prepends a sentinel-delimited comment block
// enumerating every accepted move with its machine parameters. The block
// is entirely made of comment lines, so the body grammar is unaffected.
type AnnotatedFormatter struct{}

// Render implements Formatter.
func (AnnotatedFormatter) Render(moves []Move, body string) string {
	var b strings.Builder
	b.WriteString(MoveLogSentinel)
	b.WriteByte('\n')
	for i, m := range moves {
		kind := "coat"
		if m.Rapid {
			kind = "rapid"
		}
		fmt.Fprintf(&b, "; %04d %-5s F%d X%.3f Y%.3f", i, kind, int(m.Speed+0.5), m.X, m.Y)
		if m.HasZ {
			fmt.Fprintf(&b, " Z%.3f", m.Z)
		}
		b.WriteByte('\n')
	}
	b.WriteString(MoveLogSentinel)
	b.WriteByte('\n')
	b.WriteString(body)
	return b.String()
}
