// Package masking removes or reroutes path segments that would carry the
// coating head across an exclusion region at coating height.
package masking

import (
	"math"
	"sort"

	"coating-host/pkg/geometry"
	"coating-host/pkg/pool"
	"coating-host/pkg/shape"
)

// Strategy selects how travel across a masked region is avoided.
type Strategy string

const (
	// StrategyLift raises the head to safe height over the region.
	StrategyLift Strategy = "lift"

	// StrategyContour routes around the region boundary at coating height.
	StrategyContour Strategy = "contour"
)

// Settings holds the masking portion of the coating settings.
type Settings struct {
	Enabled   bool
	Clearance float64
	Avoidance Strategy
}

// Manager filters and reroutes segments against the exclusion regions of
// one generation run. It is the sole owner of the travel avoidance
// decision: the stream it returns is already safe to traverse in order.
type Manager struct {
	settings Settings
	regions  []region
}

// New builds a manager from the run's masking settings and mask shapes.
// Non-mask descriptors and zero-size masks are ignored. Self-intersecting
// or otherwise degenerate mask polygons are not validated.
func New(settings Settings, masks []shape.Descriptor) *Manager {
	m := &Manager{settings: settings}
	if !settings.Enabled {
		return m
	}
	for _, d := range masks {
		if !d.IsMask() {
			continue
		}
		switch d.Type {
		case shape.KindRectangle, shape.KindImage:
			if d.Width <= 0 || d.Height <= 0 {
				continue
			}
			m.regions = append(m.regions, &rectRegion{
				x0: d.X - settings.Clearance,
				y0: d.Y - settings.Clearance,
				x1: d.X + d.Width + settings.Clearance,
				y1: d.Y + d.Height + settings.Clearance,
			})
		case shape.KindCircle:
			if d.Radius <= 0 {
				continue
			}
			m.regions = append(m.regions, &circleRegion{
				center: geometry.Point{X: d.X, Y: d.Y},
				radius: d.Radius + settings.Clearance,
			})
		}
	}
	return m
}

// ApplyToSegments clips the segment stream against the union of all mask
// regions. With masking disabled (or no usable masks) the input slice is
// returned unchanged. Segments wholly inside a cleared region are dropped;
// segments crossing a boundary are split at the intersection points and
// only the outside portions are kept, with an avoidance bridge inserted
// across each interior gap.
func (m *Manager) ApplyToSegments(segments []geometry.Segment) []geometry.Segment {
	if !m.settings.Enabled || len(m.regions) == 0 {
		return segments
	}
	out := make([]geometry.Segment, 0, len(segments))
	for _, seg := range segments {
		out = m.applySegment(out, seg)
	}
	return out
}

// span is a parametric interval of a segment, 0 at Start and 1 at End.
type span struct {
	t0, t1 float64
}

type regionSpan struct {
	span
	regions []region
}

const spanEps = 1e-9

func (m *Manager) applySegment(out []geometry.Segment, seg geometry.Segment) []geometry.Segment {
	var hits []regionSpan
	for _, reg := range m.regions {
		if sp, ok := reg.insideSpan(seg); ok {
			hits = append(hits, regionSpan{span: sp, regions: []region{reg}})
		}
	}
	if len(hits) == 0 {
		return append(out, seg)
	}

	merged := mergeSpans(hits)

	cursor := 0.0
	for _, h := range merged {
		if h.t0 <= spanEps && h.t1 >= 1-spanEps {
			// Wholly inside the union region: drop the segment.
			return out
		}

		out = appendSub(out, seg, cursor, h.t0)

		// Bridge only interior gaps. A gap touching either segment end
		// leaves a plain discontinuity for the optimizer to travel over.
		if h.t0 > spanEps && h.t1 < 1-spanEps {
			out = m.appendBridge(out, pointAt(seg, h.t0), pointAt(seg, h.t1), h.regions)
		}
		cursor = h.t1
	}
	return appendSub(out, seg, cursor, 1)
}

// appendBridge connects entry to exit across a masked gap. Lift inserts a
// Rapid move (the emitter travels it at safe height); contour follows the
// region boundary at coating height. Gaps spanning overlapping regions
// have no single boundary to follow, so they fall back to lift.
func (m *Manager) appendBridge(out []geometry.Segment, entry, exit geometry.Point, regions []region) []geometry.Segment {
	if m.settings.Avoidance == StrategyContour && len(regions) == 1 {
		buf := pool.GetPoints()
		route := regions[0].route(entry, exit, *buf)
		prev := entry
		for _, wp := range route {
			out = geometry.AppendSegment(out, prev, wp, geometry.CoatTravel)
			prev = wp
		}
		*buf = route[:0]
		pool.PutPoints(buf)
		return geometry.AppendSegment(out, prev, exit, geometry.CoatTravel)
	}
	return geometry.AppendSegment(out, entry, exit, geometry.Rapid)
}

func appendSub(out []geometry.Segment, seg geometry.Segment, t0, t1 float64) []geometry.Segment {
	if t1-t0 <= spanEps {
		return out
	}
	return geometry.AppendSegment(out, pointAt(seg, t0), pointAt(seg, t1), seg.Kind)
}

func pointAt(seg geometry.Segment, t float64) geometry.Point {
	return geometry.Point{
		X: seg.Start.X + (seg.End.X-seg.Start.X)*t,
		Y: seg.Start.Y + (seg.End.Y-seg.Start.Y)*t,
	}
}

// mergeSpans merges overlapping inside-intervals so that overlapping mask
// shapes behave as a single union region.
func mergeSpans(spans []regionSpan) []regionSpan {
	sort.Slice(spans, func(i, j int) bool { return spans[i].t0 < spans[j].t0 })

	merged := make([]regionSpan, 0, len(spans))
	cur := spans[0]
	for _, next := range spans[1:] {
		if next.t0 <= cur.t1+spanEps {
			if next.t1 > cur.t1 {
				cur.t1 = next.t1
			}
			cur.regions = append(cur.regions, next.regions...)
		} else {
			merged = append(merged, cur)
			cur = next
		}
	}
	return append(merged, cur)
}

// region is one clearance-expanded exclusion area.
type region interface {
	// insideSpan returns the parametric interval of seg lying inside the
	// region, reporting ok=false when they do not intersect.
	insideSpan(seg geometry.Segment) (span, bool)

	// route appends intermediate waypoints along the region boundary from
	// entry to exit into buf, excluding both endpoints, following the
	// shorter way around.
	route(entry, exit geometry.Point, buf []geometry.Point) []geometry.Point
}

// rectRegion is an axis-aligned rectangle already expanded by clearance.
type rectRegion struct {
	x0, y0, x1, y1 float64
}

// insideSpan clips the segment against the rectangle (Liang-Barsky).
func (r *rectRegion) insideSpan(seg geometry.Segment) (span, bool) {
	dx := seg.End.X - seg.Start.X
	dy := seg.End.Y - seg.Start.Y
	t0, t1 := 0.0, 1.0

	clip := func(p, q float64) bool {
		if p == 0 {
			return q >= 0
		}
		t := q / p
		if p < 0 {
			if t > t1 {
				return false
			}
			if t > t0 {
				t0 = t
			}
		} else {
			if t < t0 {
				return false
			}
			if t < t1 {
				t1 = t
			}
		}
		return true
	}

	if !clip(-dx, seg.Start.X-r.x0) ||
		!clip(dx, r.x1-seg.Start.X) ||
		!clip(-dy, seg.Start.Y-r.y0) ||
		!clip(dy, r.y1-seg.Start.Y) {
		return span{}, false
	}
	if t1-t0 <= spanEps {
		return span{}, false
	}
	return span{t0, t1}, true
}

// route walks the rectangle perimeter the shorter way around, emitting the
// corners passed between entry and exit.
func (r *rectRegion) route(entry, exit geometry.Point, buf []geometry.Point) []geometry.Point {
	w := r.x1 - r.x0
	h := r.y1 - r.y0
	per := 2 * (w + h)

	corners := []struct {
		p geometry.Point
		s float64
	}{
		{geometry.Point{X: r.x0, Y: r.y0}, 0},
		{geometry.Point{X: r.x1, Y: r.y0}, w},
		{geometry.Point{X: r.x1, Y: r.y1}, w + h},
		{geometry.Point{X: r.x0, Y: r.y1}, 2*w + h},
	}

	sE := r.perimeterPos(entry, w, h)
	sX := r.perimeterPos(exit, w, h)

	forward := math.Mod(sX-sE+per, per)
	backward := per - forward

	type waypoint struct {
		p geometry.Point
		d float64
	}
	var pts []waypoint
	if forward <= backward {
		for _, c := range corners {
			d := math.Mod(c.s-sE+per, per)
			if d > spanEps && d < forward-spanEps {
				pts = append(pts, waypoint{c.p, d})
			}
		}
	} else {
		for _, c := range corners {
			d := math.Mod(sE-c.s+per, per)
			if d > spanEps && d < backward-spanEps {
				pts = append(pts, waypoint{c.p, d})
			}
		}
	}
	sort.Slice(pts, func(i, j int) bool { return pts[i].d < pts[j].d })

	route := buf
	for _, wp := range pts {
		route = append(route, wp.p)
	}
	return route
}

// perimeterPos maps a boundary point to its distance along the perimeter,
// measured clockwise from the top-left corner. Points slightly off the
// boundary are projected to the nearest side.
func (r *rectRegion) perimeterPos(p geometry.Point, w, h float64) float64 {
	clampX := math.Min(math.Max(p.X, r.x0), r.x1)
	clampY := math.Min(math.Max(p.Y, r.y0), r.y1)

	dTop := math.Abs(p.Y - r.y0)
	dRight := math.Abs(p.X - r.x1)
	dBottom := math.Abs(p.Y - r.y1)
	dLeft := math.Abs(p.X - r.x0)

	minDist := math.Min(math.Min(dTop, dRight), math.Min(dBottom, dLeft))
	switch minDist {
	case dTop:
		return clampX - r.x0
	case dRight:
		return w + (clampY - r.y0)
	case dBottom:
		return w + h + (r.x1 - clampX)
	default:
		return 2*w + h + (r.y1 - clampY)
	}
}

// circleRegion is a circle already expanded by clearance.
type circleRegion struct {
	center geometry.Point
	radius float64
}

// insideSpan solves |start + t*dir - center|^2 = radius^2 for t.
func (c *circleRegion) insideSpan(seg geometry.Segment) (span, bool) {
	dx := seg.End.X - seg.Start.X
	dy := seg.End.Y - seg.Start.Y
	fx := seg.Start.X - c.center.X
	fy := seg.Start.Y - c.center.Y

	a := dx*dx + dy*dy
	if a <= spanEps {
		return span{}, false
	}
	b := 2 * (fx*dx + fy*dy)
	k := fx*fx + fy*fy - c.radius*c.radius

	disc := b*b - 4*a*k
	if disc <= 0 {
		return span{}, false
	}
	sq := math.Sqrt(disc)
	tA := (-b - sq) / (2 * a)
	tB := (-b + sq) / (2 * a)

	t0 := math.Max(tA, 0)
	t1 := math.Min(tB, 1)
	if t1-t0 <= spanEps {
		return span{}, false
	}
	return span{t0, t1}, true
}

// route follows the circle boundary the shorter way around, flattened to
// chords of at most ~22.5 degrees.
func (c *circleRegion) route(entry, exit geometry.Point, buf []geometry.Point) []geometry.Point {
	aE := math.Atan2(entry.Y-c.center.Y, entry.X-c.center.X)
	aX := math.Atan2(exit.Y-c.center.Y, exit.X-c.center.X)

	sweep := math.Mod(aX-aE, 2*math.Pi)
	if sweep > math.Pi {
		sweep -= 2 * math.Pi
	} else if sweep < -math.Pi {
		sweep += 2 * math.Pi
	}

	n := int(math.Ceil(math.Abs(sweep) / (math.Pi / 8)))
	if n < 1 {
		n = 1
	}

	route := buf
	for i := 1; i < n; i++ {
		angle := aE + sweep*float64(i)/float64(n)
		route = append(route, geometry.Point{
			X: c.center.X + c.radius*math.Cos(angle),
			Y: c.center.Y + c.radius*math.Sin(angle),
		})
	}
	return route
}
