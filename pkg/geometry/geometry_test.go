package geometry

import (
	"math"
	"testing"
)

func TestPointDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b Point
		want float64
	}{
		{"same point", Point{1, 1}, Point{1, 1}, 0},
		{"horizontal", Point{0, 0}, Point{10, 0}, 10},
		{"vertical", Point{0, 0}, Point{0, 5}, 5},
		{"diagonal 3-4-5", Point{0, 0}, Point{3, 4}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.DistanceTo(tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("DistanceTo = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPointEquals(t *testing.T) {
	a := Point{1, 2}
	if !a.Equals(Point{1 + 1e-4, 2 - 1e-4}) {
		t.Error("points within Epsilon should compare equal")
	}
	if a.Equals(Point{1.01, 2}) {
		t.Error("points beyond Epsilon should not compare equal")
	}
}

func TestAppendSegmentDropsDegenerate(t *testing.T) {
	segs := AppendSegment(nil, Point{0, 0}, Point{1e-4, 0}, Coat)
	if len(segs) != 0 {
		t.Errorf("degenerate segment not dropped, got %d segments", len(segs))
	}
	segs = AppendSegment(segs, Point{0, 0}, Point{10, 0}, Coat)
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].Length() != 10 {
		t.Errorf("segment length = %v, want 10", segs[0].Length())
	}
}

func TestSegmentReversed(t *testing.T) {
	s := Segment{Start: Point{1, 2}, End: Point{3, 4}, Kind: Coat}
	r := s.Reversed()
	if r.Start != s.End || r.End != s.Start {
		t.Errorf("Reversed = %+v", r)
	}
	if r.Kind != Coat {
		t.Error("Reversed must preserve move kind")
	}
}

func TestArcFlattenFullCircle(t *testing.T) {
	arc := Arc{
		Start:  Point{110, 50},
		End:    Point{110, 50},
		Center: Point{100, 50},
		Radius: 10,
	}
	segs := arc.Flatten(DefaultArcSegments, Coat)
	if len(segs) != DefaultArcSegments {
		t.Fatalf("expected %d chords, got %d", DefaultArcSegments, len(segs))
	}

	// Chain property: each chord starts where the previous ended.
	for i := 1; i < len(segs); i++ {
		if !segs[i].Start.Equals(segs[i-1].End) {
			t.Errorf("chord %d start %+v != previous end %+v", i, segs[i].Start, segs[i-1].End)
		}
	}
	// Closed: last chord ends at the arc start point.
	if !segs[len(segs)-1].End.Equals(arc.Start) {
		t.Errorf("circle not closed: last end %+v", segs[len(segs)-1].End)
	}
	// Every vertex lies on the circle.
	for i, s := range segs {
		d := s.End.DistanceTo(arc.Center)
		if math.Abs(d-arc.Radius) > 1e-9 {
			t.Errorf("chord %d vertex off circle: r=%v", i, d)
		}
	}
}

func TestArcFlattenInvalid(t *testing.T) {
	arc := Arc{Radius: 0}
	if segs := arc.Flatten(16, Coat); segs != nil {
		t.Errorf("zero-radius arc should flatten to nil, got %d", len(segs))
	}
	arc = Arc{Radius: 5}
	if segs := arc.Flatten(0, Coat); segs != nil {
		t.Errorf("zero chord count should flatten to nil, got %d", len(segs))
	}
}
