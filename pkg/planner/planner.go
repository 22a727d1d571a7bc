// Package planner orders the disjoint segments of one shape into a single
// connected traversal and drives the G-code emitter through it.
package planner

import (
	"fmt"
	"math"

	"coating-host/pkg/geometry"
	"coating-host/pkg/pool"
	"coating-host/pkg/shape"
)

// Sequence greedily orders segments by nearest endpoint, starting from the
// given location. Each round scans every remaining segment, measuring the
// distance from the current location to both its endpoints; the nearest
// candidate is appended (reversed when its end is the nearer endpoint, so
// traversal always flows from the nearer point) and the current location
// advances to its new end.
//
// Ties keep the first segment in input iteration order, so the result is
// reproducible for identical input. The scan is O(n^2) over the remaining
// set, which is fine at the shape-local segment counts seen here.
func Sequence(segments []geometry.Segment, start geometry.Point) []geometry.Segment {
	scratch := pool.GetSegments()
	remaining := append(*scratch, segments...)
	defer func() {
		*scratch = remaining[:0]
		pool.PutSegments(scratch)
	}()

	ordered := make([]geometry.Segment, 0, len(segments))
	current := start

	for len(remaining) > 0 {
		bestIdx := 0
		bestReversed := false
		bestDist := math.Inf(1)

		for i, seg := range remaining {
			// Strict less-than keeps the earlier candidate on ties,
			// and prefers forward traversal when both endpoints of
			// one segment are equidistant.
			if d := current.DistanceTo(seg.Start); d < bestDist {
				bestDist, bestIdx, bestReversed = d, i, false
			}
			if d := current.DistanceTo(seg.End); d < bestDist {
				bestDist, bestIdx, bestReversed = d, i, true
			}
		}

		chosen := remaining[bestIdx]
		if bestReversed {
			chosen = chosen.Reversed()
		}
		ordered = append(ordered, chosen)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
		current = chosen.End
	}
	return ordered
}

// OrderForVisualization returns the traversal order without emitting
// anything. It shares the sequencing logic with OptimizeAndEmit so the
// preview shown in the editor cannot diverge from what the machine runs.
func OrderForVisualization(segments []geometry.Segment, start geometry.Point) []geometry.Segment {
	return Sequence(segments, start)
}

// Emitter is the subset of the G-code emitter the optimizer drives.
type Emitter interface {
	// Position returns the current head position in pixel space.
	Position() geometry.Point

	// RaiseToSafe moves Z to the configured safe height.
	RaiseToSafe()

	// LowerToCoating moves Z to the configured coating height.
	LowerToCoating()

	// TravelTo performs a rapid move to the given pixel coordinates.
	TravelTo(x, y float64)

	// TravelAtCoatingHeight performs a rapid-speed move forced to
	// coating height, used for masked-contour travel.
	TravelAtCoatingHeight(x, y float64)

	// CoatTo performs a coating move to the given pixel coordinates.
	CoatTo(x, y float64)
}

// ProgressFunc receives a percentage in [0,100] and a status message.
type ProgressFunc func(percent float64, message string)

// OptimizeAndEmit sequences the shape's segments starting from the
// emitter's current position, so tool travel stays optimized across shape
// boundaries, then drives the emitter through the ordered traversal:
// rapid to each coat segment's start at safe height when discontinuous,
// lower, coat to its end. Masking bridges are honored by kind: Rapid
// crosses at safe height, CoatTravel follows the mask boundary at coating
// height. Returns the number of segments traversed.
func OptimizeAndEmit(segments []geometry.Segment, em Emitter, desc shape.Descriptor, onProgress ProgressFunc) int {
	ordered := Sequence(segments, em.Position())
	total := len(ordered)

	name := desc.Name
	if name == "" {
		name = desc.ID
	}

	for i, seg := range ordered {
		switch seg.Kind {
		case geometry.Rapid:
			em.RaiseToSafe()
			em.TravelTo(seg.End.X, seg.End.Y)
		case geometry.CoatTravel:
			if !em.Position().Equals(seg.Start) {
				em.TravelAtCoatingHeight(seg.Start.X, seg.Start.Y)
			}
			em.TravelAtCoatingHeight(seg.End.X, seg.End.Y)
		default:
			if !em.Position().Equals(seg.Start) {
				em.RaiseToSafe()
				em.TravelTo(seg.Start.X, seg.Start.Y)
			}
			em.LowerToCoating()
			em.CoatTo(seg.End.X, seg.End.Y)
		}

		if onProgress != nil {
			onProgress(float64(i+1)/float64(total)*100,
				fmt.Sprintf("coating %s (%d/%d)", name, i+1, total))
		}
	}
	return total
}
