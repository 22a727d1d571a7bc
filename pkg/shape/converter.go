package shape

import (
	"math"

	"coating-host/pkg/geometry"
)

// DefaultLineSpacing is used when a fill shape carries no usable line
// spacing, matching the editor's default of 5 canvas pixels.
const DefaultLineSpacing = 5.0

// CircleSegments is the fixed polygon resolution for circle outlines.
const CircleSegments = 16

// Convert maps one shape descriptor to raw path segments in absolute
// canvas coordinates according to its coating type.
//
// The contract is deliberately forgiving: unsupported type/coating
// combinations, zero-size geometry, masking shapes and skipped shapes all
// yield an empty slice, never an error. Callers treat "no segments" as
// "nothing to coat".
func Convert(d Descriptor) []geometry.Segment {
	if d.SkipCoating || !d.Coatable() {
		return nil
	}

	switch d.Type {
	case KindRectangle, KindImage:
		return convertRect(d)
	case KindCircle:
		return convertCircle(d)
	default:
		return nil
	}
}

func convertRect(d Descriptor) []geometry.Segment {
	if d.Width <= 0 || d.Height <= 0 {
		return nil
	}

	switch d.CoatingType {
	case CoatingOutline:
		return rectOutline(d)
	case CoatingFill:
		return rectFill(d)
	default:
		return nil
	}
}

// rectOutline traces the four boundary segments clockwise from the
// top-left corner.
func rectOutline(d Descriptor) []geometry.Segment {
	tl := geometry.Point{X: d.X, Y: d.Y}
	tr := geometry.Point{X: d.X + d.Width, Y: d.Y}
	br := geometry.Point{X: d.X + d.Width, Y: d.Y + d.Height}
	bl := geometry.Point{X: d.X, Y: d.Y + d.Height}

	segs := make([]geometry.Segment, 0, 4)
	segs = geometry.AppendSegment(segs, tl, tr, geometry.Coat)
	segs = geometry.AppendSegment(segs, tr, br, geometry.Coat)
	segs = geometry.AppendSegment(segs, br, bl, geometry.Coat)
	segs = geometry.AppendSegment(segs, bl, tl, geometry.Coat)
	return segs
}

// rectFill covers the rectangle with horizontal sweeps at LineSpacing
// intervals, alternating sweep direction per line to minimize travel.
// Line count is floor(height / lineSpacing); when that is zero a single
// sweep at the top edge is still emitted.
func rectFill(d Descriptor) []geometry.Segment {
	spacing := d.LineSpacing
	if spacing <= 0 {
		spacing = DefaultLineSpacing
	}

	numLines := int(math.Floor(d.Height / spacing))
	if numLines < 1 {
		numLines = 1
	}

	segs := make([]geometry.Segment, 0, numLines)
	for i := 0; i < numLines; i++ {
		y := d.Y + float64(i)*spacing
		left := geometry.Point{X: d.X, Y: y}
		right := geometry.Point{X: d.X + d.Width, Y: y}
		if i%2 == 0 {
			segs = geometry.AppendSegment(segs, left, right, geometry.Coat)
		} else {
			segs = geometry.AppendSegment(segs, right, left, geometry.Coat)
		}
	}
	return segs
}

func convertCircle(d Descriptor) []geometry.Segment {
	if d.Radius <= 0 {
		return nil
	}

	switch d.CoatingType {
	case CoatingOutline:
		start := geometry.Point{X: d.X + d.Radius, Y: d.Y}
		arc := geometry.Arc{
			Start:     start,
			End:       start,
			Center:    geometry.Point{X: d.X, Y: d.Y},
			Radius:    d.Radius,
			Direction: geometry.CounterClockwise,
		}
		return arc.Flatten(CircleSegments, geometry.Coat)
	default:
		// Circle fill is not implemented; callers treat the empty
		// result as nothing to coat, not as an error.
		return nil
	}
}
