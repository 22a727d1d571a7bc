// Package shape defines the editor-owned shape descriptor model and the
// per-shape geometric generators that turn descriptors into coating path
// segments.
package shape

import (
	"sort"

	"coating-host/pkg/geometry"
)

// Kind identifies the geometric type of a shape.
type Kind string

const (
	KindRectangle Kind = "rectangle"
	KindCircle    Kind = "circle"

	// KindImage is a raster image placed on the canvas. Its coating
	// boundary is its bounding box, so it is generated like a rectangle.
	KindImage Kind = "image"
)

// CoatingType selects the coating strategy for a shape.
type CoatingType string

const (
	CoatingFill    CoatingType = "fill"
	CoatingOutline CoatingType = "outline"

	// CoatingMasking marks the shape as an exclusion region rather than
	// something to coat.
	CoatingMasking CoatingType = "masking"
)

// FillPattern selects the area fill strategy.
type FillPattern string

const (
	// FillHorizontal covers the area with horizontal boustrophedon sweeps.
	FillHorizontal FillPattern = "horizontal"
)

// Descriptor is one shape as authored in the external editor. The pipeline
// treats it as an immutable snapshot for the duration of a generation run.
// Numeric fields missing from persisted data decode as zero; the generators
// handle zero values defensively instead of raising.
type Descriptor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type Kind   `json:"type"`

	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Radius float64 `json:"radius"`

	CoatingType  CoatingType `json:"coatingType"`
	CoatingOrder int         `json:"coatingOrder"`
	SkipCoating  bool        `json:"skipCoating"`

	FillPattern FillPattern `json:"fillPattern"`
	LineSpacing float64     `json:"lineSpacing"`

	OutlinePasses int     `json:"outlinePasses"`
	OutlineOffset float64 `json:"outlineOffset"`
}

// Coatable reports whether the shape participates in coating generation.
// Masking shapes and skipped shapes do not.
func (d Descriptor) Coatable() bool {
	if d.SkipCoating {
		return false
	}
	return d.CoatingType == CoatingFill || d.CoatingType == CoatingOutline
}

// IsMask reports whether the shape is an exclusion region.
func (d Descriptor) IsMask() bool {
	return d.CoatingType == CoatingMasking
}

// Center returns the shape center. For circles X/Y already is the center.
func (d Descriptor) Center() geometry.Point {
	if d.Type == KindCircle {
		return geometry.Point{X: d.X, Y: d.Y}
	}
	return geometry.Point{X: d.X + d.Width/2, Y: d.Y + d.Height/2}
}

// SortByCoatingOrder returns the shapes sorted by CoatingOrder, preserving
// input order between equal keys so generation stays deterministic.
func SortByCoatingOrder(shapes []Descriptor) []Descriptor {
	sorted := make([]Descriptor, len(shapes))
	copy(sorted, shapes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CoatingOrder < sorted[j].CoatingOrder
	})
	return sorted
}

// Masks extracts the masking shapes from a shape list.
func Masks(shapes []Descriptor) []Descriptor {
	var masks []Descriptor
	for _, s := range shapes {
		if s.IsMask() {
			masks = append(masks, s)
		}
	}
	return masks
}
