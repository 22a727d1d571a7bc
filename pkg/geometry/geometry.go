// Package geometry provides the shared 2D segment model for toolpath
// generation: points, directed line segments with machine move semantics,
// and the arc variant that is flattened to line chords before emission.
package geometry

import "math"

// Epsilon is the coordinate tolerance used across the pipeline. Two points
// closer than this on both axes are treated as coincident, and segments
// shorter than this are dropped as degenerate.
const Epsilon = 1e-3

// MoveKind distinguishes positioning moves from coating moves.
type MoveKind int

const (
	// Rapid is a non-productive positioning move, emitted as G0.
	Rapid MoveKind = iota

	// Coat is a controlled-speed move with the dispensing head active,
	// emitted as G1.
	Coat

	// CoatTravel is a rapid-speed positioning move forced to coating
	// height. Masking produces these when rerouting travel along a mask
	// boundary with the contour avoidance strategy.
	CoatTravel
)

// String returns the move kind name.
func (k MoveKind) String() string {
	switch k {
	case Rapid:
		return "rapid"
	case Coat:
		return "coat"
	case CoatTravel:
		return "coat-travel"
	default:
		return "unknown"
	}
}

// Point is a 2D coordinate. Unit-less at this layer: canvas pixels until
// emission, millimeters after. The emitter is the single point of unit
// conversion.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DistanceTo returns the Euclidean distance to other.
func (p Point) DistanceTo(other Point) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Equals reports whether both coordinates are within Epsilon of other.
func (p Point) Equals(other Point) bool {
	return math.Abs(p.X-other.X) < Epsilon && math.Abs(p.Y-other.Y) < Epsilon
}

// Segment is a directed line primitive with machine semantics.
type Segment struct {
	Start Point    `json:"start"`
	End   Point    `json:"end"`
	Kind  MoveKind `json:"kind"`
}

// Length returns the segment length.
func (s Segment) Length() float64 {
	return s.Start.DistanceTo(s.End)
}

// Degenerate reports whether start and end coincide within Epsilon.
// Degenerate segments carry no motion and must not reach the emitter.
func (s Segment) Degenerate() bool {
	return s.Start.Equals(s.End)
}

// Reversed returns the segment traversed in the opposite direction.
func (s Segment) Reversed() Segment {
	return Segment{Start: s.End, End: s.Start, Kind: s.Kind}
}

// AppendSegment appends a segment to dst, dropping degenerate input.
func AppendSegment(dst []Segment, start, end Point, kind MoveKind) []Segment {
	seg := Segment{Start: start, End: end, Kind: kind}
	if seg.Degenerate() {
		return dst
	}
	return append(dst, seg)
}

// ArcDirection selects the traversal direction of an arc.
type ArcDirection int

const (
	// Clockwise traversal.
	Clockwise ArcDirection = iota

	// CounterClockwise traversal.
	CounterClockwise
)

// Arc is the arc segment variant. The machine command set has no arc
// interpolation, so arcs are always flattened to line chords before they
// reach the emitter.
type Arc struct {
	Start     Point
	End       Point
	Center    Point
	Radius    float64
	Direction ArcDirection
}

// DefaultArcSegments is the fixed chord count used when flattening full
// circles and arcs.
const DefaultArcSegments = 16

// Flatten polygonalizes the arc into n line chords of the given move kind.
// When start and end coincide the arc is treated as a full circle. Returns
// nil for non-positive n or radius.
func (a Arc) Flatten(n int, kind MoveKind) []Segment {
	if n <= 0 || a.Radius <= 0 {
		return nil
	}

	startAngle := math.Atan2(a.Start.Y-a.Center.Y, a.Start.X-a.Center.X)
	endAngle := math.Atan2(a.End.Y-a.Center.Y, a.End.X-a.Center.X)

	sweep := endAngle - startAngle
	if a.Start.Equals(a.End) {
		sweep = 2 * math.Pi
	} else if sweep <= 0 {
		sweep += 2 * math.Pi
	}
	if a.Direction == Clockwise {
		sweep = sweep - 2*math.Pi
		if a.Start.Equals(a.End) {
			sweep = -2 * math.Pi
		}
	}

	segments := make([]Segment, 0, n)
	prev := a.pointAt(startAngle)
	for i := 1; i <= n; i++ {
		angle := startAngle + sweep*float64(i)/float64(n)
		next := a.pointAt(angle)
		segments = AppendSegment(segments, prev, next, kind)
		prev = next
	}
	return segments
}

func (a Arc) pointAt(angle float64) Point {
	return Point{
		X: a.Center.X + a.Radius*math.Cos(angle),
		Y: a.Center.Y + a.Radius*math.Sin(angle),
	}
}
