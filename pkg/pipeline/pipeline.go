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

// Package pipeline orchestrates a full generation run: shapes in, final
// G-code program, preview path and per-shape path groups out.
package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"coating-host/pkg/config"
	"coating-host/pkg/emit"
	hosterr "coating-host/pkg/errors"
	"coating-host/pkg/geometry"
	"coating-host/pkg/log"
	"coating-host/pkg/masking"
	"coating-host/pkg/metrics"
	"coating-host/pkg/planner"
	"coating-host/pkg/safety"
	"coating-host/pkg/shape"
	"coating-host/pkg/snippet"
)

// WorkArea is the canvas extent in pixels.
type WorkArea struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PathGroup is the generated traversal for one source shape, in emission
// order. A fresh group replaces any prior group with the same shape id.
type PathGroup struct {
	ID       string             `json:"id"`
	ShapeID  string             `json:"shapeId"`
	Name     string             `json:"name"`
	Segments []geometry.Segment `json:"segments"`
	Visible  bool               `json:"visible"`
	Locked   bool               `json:"locked"`
	Color    string             `json:"color"`
	Order    int                `json:"order"`
}

// Result is the outcome of one generation run.
type Result struct {
	GCode      string              `json:"gcode"`
	Preview    []emit.PreviewPoint `json:"preview"`
	Groups     []PathGroup         `json:"groups"`
	ShapeCount int                 `json:"shapeCount"`
	MoveCount  int                 `json:"moveCount"`
	Duration   time.Duration       `json:"duration"`
}

// ProgressFunc receives a percentage in [0,100] and a status message.
type ProgressFunc = planner.ProgressFunc

const defaultGroupColor = "#4caf50"

// Generator runs the shape-to-G-code pipeline. Safe for sequential reuse;
// each Generate call builds its own emitter and masking state.
type Generator struct {
	settings *config.Settings
	logger   *log.Logger
	metrics  *metrics.CoatingMetrics
}

// NewGenerator returns a generator using the given settings.
func NewGenerator(settings *config.Settings, logger *log.Logger) *Generator {
	if logger == nil {
		logger = log.New("pipeline")
	}
	return &Generator{
		settings: settings,
		logger:   logger,
		metrics:  metrics.GlobalMetrics(),
	}
}

// Generate runs the full pipeline over the given shapes. Shapes are
// processed in coating order; the emitter position is carried across shape
// boundaries so overall travel stays optimized. The run is synchronous but
// yields the scheduler between shapes, and the context is checked at each
// shape boundary.
//
// A run with zero coatable shapes returns a GENERATE_EMPTY error after
// driving progress to 100%; callers distinguish it with
// hosterr.IsNothingToCoat. Any other error aborts the run with no partial
// G-code.
func (g *Generator) Generate(ctx context.Context, shapes []shape.Descriptor, area WorkArea, snippets []snippet.Snippet, onProgress ProgressFunc) (*Result, error) {
	start := time.Now()
	progress := func(percent float64, message string) {
		if onProgress != nil {
			onProgress(percent, message)
		}
	}

	sorted := shape.SortByCoatingOrder(shapes)
	work := coatableShapes(sorted)
	if len(work) == 0 {
		progress(100, "no coatable shapes")
		g.metrics.RecordGeneration("empty", time.Since(start), 0)
		return nil, hosterr.NothingToCoatError()
	}

	mgr := masking.New(g.settings.Masking, shape.Masks(sorted))
	em := emit.NewWithFormatter(g.settings.EmitterSettings(), g.settings.Formatter())

	var groups []PathGroup
	moveTotal := 0

	for i, d := range work {
		if err := ctx.Err(); err != nil {
			return nil, hosterr.Wrap(err, hosterr.ErrGenerateFailed, "generation cancelled")
		}
		if i > 0 {
			// Yield point between shapes so a host UI stays responsive.
			runtime.Gosched()
		}

		group, moves, err := g.processShape(d, i, len(work), mgr, em, progress)
		if err != nil {
			g.logger.ErrorFields("shape processing failed", log.Fields{
				"shape": d.ID,
				"type":  string(d.Type),
				"error": err.Error(),
			})
			g.metrics.RecordError(string(hosterr.ErrGenerateFailed))
			g.metrics.RecordGeneration("failed", time.Since(start), 0)
			return nil, hosterr.GenerationFailedError(d.ID, err)
		}
		moveTotal += moves
		if group != nil {
			groups = append(groups, *group)
		}
	}

	body := em.GCode()
	if strings.TrimSpace(body) == "" {
		g.metrics.RecordGeneration("failed", time.Since(start), 0)
		return nil, hosterr.EmptyBodyError()
	}

	if res := safety.Check(em.Moves(), safety.LimitsFromSettings(g.settings)); !res.OK() {
		v := res.First()
		g.logger.ErrorFields("program leaves machine envelope", log.Fields{
			"violations": len(res.Violations),
			"first":      v.String(),
		})
		g.metrics.RecordError(string(hosterr.ErrGenerateFailed))
		g.metrics.RecordGeneration("failed", time.Since(start), 0)
		return nil, hosterr.New(hosterr.ErrGenerateFailed,
			fmt.Sprintf("program leaves machine envelope: %s", v))
	}

	final := snippet.Assemble(body, snippets, g.snippetContext(area, len(work), moveTotal))
	preview := emit.ParsePreview(final, g.settings.Process.SafeHeight)

	g.recordRunMetrics(em, final, preview, start)
	g.logger.InfoFields("generation complete", log.Fields{
		"shapes":   len(work),
		"segments": moveTotal,
		"bytes":    len(final),
		"duration": time.Since(start).String(),
	})
	progress(100, "generation complete")

	return &Result{
		GCode:      final,
		Preview:    preview,
		Groups:     groups,
		ShapeCount: len(work),
		MoveCount:  moveTotal,
		Duration:   time.Since(start),
	}, nil
}

// processShape converts, masks and emits one shape. A shape whose segments
// are entirely removed by masking yields a nil group and no error.
func (g *Generator) processShape(d shape.Descriptor, idx, total int, mgr *masking.Manager, em *emit.Emitter, progress ProgressFunc) (group *PathGroup, moves int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = hosterr.New(hosterr.ErrRuntime, fmt.Sprintf("panic: %v", r)).SetShape(d.ID)
		}
	}()

	if d.LineSpacing <= 0 {
		d.LineSpacing = g.settings.Process.LineSpacing
	}

	segments := shape.Convert(d)
	masked := mgr.ApplyToSegments(segments)

	g.metrics.RecordShape(string(d.Type))
	g.metrics.RecordSegments(len(segments), len(masked))

	if len(masked) == 0 {
		g.logger.Debug("shape %s produced no segments", d.ID)
		progress(float64(idx+1)/float64(total)*100, fmt.Sprintf("skipped %s", shapeLabel(d)))
		return nil, 0, nil
	}

	// The visualization order and the emission order come from the same
	// sequencer seeded with the same start point, so the group cannot
	// diverge from the emitted program.
	ordered := planner.OrderForVisualization(masked, em.Position())

	em.NozzleOn()
	moves = planner.OptimizeAndEmit(masked, em, d, func(percent float64, message string) {
		progress((float64(idx)+percent/100)/float64(total)*100, message)
	})
	em.NozzleOff()

	return &PathGroup{
		ID:       uuid.NewString(),
		ShapeID:  d.ID,
		Name:     shapeLabel(d),
		Segments: ordered,
		Visible:  true,
		Color:    defaultGroupColor,
		Order:    idx,
	}, moves, nil
}

// snippetContext builds the variable lookup context for the assembler.
func (g *Generator) snippetContext(area WorkArea, shapeCount, moveCount int) map[string]any {
	if area.Width <= 0 {
		area.Width = g.settings.Machine.WorkAreaWidth
	}
	if area.Height <= 0 {
		area.Height = g.settings.Machine.WorkAreaHeight
	}
	return map[string]any{
		"machine": map[string]any{
			"unit":          g.settings.Machine.Unit,
			"safeHeight":    g.settings.Process.SafeHeight,
			"coatingHeight": g.settings.Process.CoatingHeight,
			"moveSpeed":     g.settings.Process.MoveSpeed,
			"coatingSpeed":  g.settings.Process.CoatingSpeed,
		},
		"workArea": map[string]any{
			"width":  area.Width,
			"height": area.Height,
		},
		"job": map[string]any{
			"timestamp":  time.Now().Format(time.RFC3339),
			"shapeCount": shapeCount,
			"moveCount":  moveCount,
		},
	}
}

func (g *Generator) recordRunMetrics(em *emit.Emitter, program string, preview []emit.PreviewPoint, start time.Time) {
	var rapid, coat uint64
	for _, m := range em.Moves() {
		if m.Rapid {
			rapid++
		} else {
			coat++
		}
	}
	g.metrics.RecordMoves(rapid, coat)
	x, y, z := em.PositionMm()
	g.metrics.SetHeadPosition(x, y, z)
	g.metrics.PreviewPoints.Set(nil, float64(len(preview)))
	g.metrics.RecordGeneration("completed", time.Since(start), len(program))
}

func coatableShapes(shapes []shape.Descriptor) []shape.Descriptor {
	var out []shape.Descriptor
	for _, d := range shapes {
		if d.Coatable() {
			out = append(out, d)
		}
	}
	return out
}

func shapeLabel(d shape.Descriptor) string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}
