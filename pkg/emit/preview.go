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
	"regexp"
	"strconv"
	"strings"
)

// PreviewPoint is one vertex of the derived 3D preview path.
type PreviewPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Rapid bool    `json:"rapid"`
}

var (
	previewCmdRe = regexp.MustCompile(`^(G0|G1)\b`)
	previewXRe   = regexp.MustCompile(`X(-?\d+(?:\.\d+)?)`)
	previewYRe   = regexp.MustCompile(`Y(-?\d+(?:\.\d+)?)`)
	previewZRe   = regexp.MustCompile(`Z(-?\d+(?:\.\d+)?)`)
)

// ParsePreview re-parses emitted G-code into a 3D preview path. Only G0 and
// G1 lines contribute; any axis a line does not specify is carried forward
// from the previous point. The initial carried position is the given start,
// normally the safe-height origin the emitter was created with.
func ParsePreview(text string, startZ float64) []PreviewPoint {
	cur := PreviewPoint{Z: startZ}
	var points []PreviewPoint

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		m := previewCmdRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		cur.Rapid = m[1] == "G0"
		if v, ok := previewAxis(previewXRe, line); ok {
			cur.X = v
		}
		if v, ok := previewAxis(previewYRe, line); ok {
			cur.Y = v
		}
		if v, ok := previewAxis(previewZRe, line); ok {
			cur.Z = v
		}
		points = append(points, cur)
	}
	return points
}

func previewAxis(re *regexp.Regexp, line string) (float64, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
