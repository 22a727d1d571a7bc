// Coating host metrics definitions
//
// Defines all metrics for the coating host including:
// - Generation pipeline metrics
// - Emitted program metrics
// - API server metrics
// - System metrics
//
// Copyright (C) 2026 Coating Host Project
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package metrics

import (
	goruntime "runtime"
	"sync"
	"time"
)

// CoatingMetrics holds all coating-host metrics
type CoatingMetrics struct {
	// Generation pipeline metrics
	GenerationsTotal   *Counter
	GenerationDuration *Histogram
	ShapesProcessed    *Counter
	SegmentsGenerated  *Counter
	SegmentsMasked     *Counter

	// Emitted program metrics
	MovesEmitted  *Counter
	ProgramBytes  *Gauge
	HeadPosition  *Gauge
	PreviewPoints *Gauge

	// API server metrics
	RequestsTotal    *Counter
	WebsocketClients *Gauge

	// System metrics
	HostUptime    *Counter
	GoGoroutines  *Gauge
	GoMemoryHeap  *Gauge
	GoMemoryAlloc *Gauge
	GoGCCycles    *Counter

	// Error metrics
	ErrorsTotal   *Counter
	WarningsTotal *Counter

	// Internal
	startTime time.Time
	registry  *Registry
	mu        sync.RWMutex
}

// NewCoatingMetrics creates and registers all coating-host metrics
func NewCoatingMetrics() *CoatingMetrics {
	cm := &CoatingMetrics{
		startTime: time.Now(),
		registry:  NewRegistry(),
	}

	// Generation pipeline metrics
	cm.GenerationsTotal = NewCounter("coating_generations_total",
		"Total generation runs by outcome")
	cm.GenerationDuration = NewHistogram("coating_generation_seconds",
		"Time spent generating a program", DefaultBuckets())
	cm.ShapesProcessed = NewCounter("coating_shapes_processed_total",
		"Total shapes processed by shape type")
	cm.SegmentsGenerated = NewCounter("coating_segments_generated_total",
		"Total path segments produced by the converter")
	cm.SegmentsMasked = NewCounter("coating_segments_masked_total",
		"Total segments dropped or split by masking")

	// Emitted program metrics
	cm.MovesEmitted = NewCounter("coating_moves_emitted_total",
		"Total emitted machine moves by kind")
	cm.ProgramBytes = NewGauge("coating_program_bytes",
		"Size of the last generated program in bytes")
	cm.HeadPosition = NewGauge("coating_head_position_mm",
		"Final head position of the last generated program")
	cm.PreviewPoints = NewGauge("coating_preview_points",
		"Preview path length of the last generated program")

	// API server metrics
	cm.RequestsTotal = NewCounter("coating_api_requests_total",
		"Total API requests by endpoint")
	cm.WebsocketClients = NewGauge("coating_websocket_clients",
		"Currently connected websocket clients")

	// System metrics
	cm.HostUptime = NewCounter("coating_host_uptime_seconds_total",
		"Total host uptime in seconds")
	cm.GoGoroutines = NewGauge("coating_go_goroutines",
		"Number of active goroutines")
	cm.GoMemoryHeap = NewGauge("coating_go_memory_heap_bytes",
		"Go heap memory in use")
	cm.GoMemoryAlloc = NewGauge("coating_go_memory_alloc_bytes",
		"Go total memory allocated")
	cm.GoGCCycles = NewCounter("coating_go_gc_cycles_total",
		"Total Go garbage collection cycles")

	// Error metrics
	cm.ErrorsTotal = NewCounter("coating_errors_total",
		"Total errors by type")
	cm.WarningsTotal = NewCounter("coating_warnings_total",
		"Total warnings by type")

	// Register all metrics
	cm.registerAll()

	return cm
}

// registerAll registers all metrics with the internal registry
func (cm *CoatingMetrics) registerAll() {
	metrics := []Metric{
		cm.GenerationsTotal, cm.GenerationDuration, cm.ShapesProcessed,
		cm.SegmentsGenerated, cm.SegmentsMasked,
		cm.MovesEmitted, cm.ProgramBytes, cm.HeadPosition, cm.PreviewPoints,
		cm.RequestsTotal, cm.WebsocketClients,
		cm.HostUptime, cm.GoGoroutines, cm.GoMemoryHeap, cm.GoMemoryAlloc,
		cm.GoGCCycles,
		cm.ErrorsTotal, cm.WarningsTotal,
	}
	for _, m := range metrics {
		cm.registry.MustRegister(m)
	}
}

// UpdateSystemMetrics updates Go runtime metrics
func (cm *CoatingMetrics) UpdateSystemMetrics() {
	var m goruntime.MemStats
	goruntime.ReadMemStats(&m)

	cm.GoGoroutines.Set(nil, float64(goruntime.NumGoroutine()))
	cm.GoMemoryHeap.Set(nil, float64(m.HeapAlloc))
	cm.GoMemoryAlloc.Set(nil, float64(m.Alloc))
	cm.GoGCCycles.Add(nil, uint64(m.NumGC)-cm.GoGCCycles.Get(nil))
	cm.HostUptime.Add(nil, uint64(time.Since(cm.startTime).Seconds()))
}

// RecordGeneration records one completed generation run.
// Outcome is one of "completed", "empty", "failed".
func (cm *CoatingMetrics) RecordGeneration(outcome string, duration time.Duration, programBytes int) {
	cm.GenerationsTotal.Inc(Labels{"outcome": outcome})
	cm.GenerationDuration.Observe(nil, duration.Seconds())
	cm.ProgramBytes.Set(nil, float64(programBytes))
}

// RecordShape records one processed shape
func (cm *CoatingMetrics) RecordShape(shapeType string) {
	cm.ShapesProcessed.Inc(Labels{"type": shapeType})
}

// RecordSegments records converter output and masking attrition
func (cm *CoatingMetrics) RecordSegments(generated, afterMasking int) {
	if generated > 0 {
		cm.SegmentsGenerated.Add(nil, uint64(generated))
	}
	if dropped := generated - afterMasking; dropped > 0 {
		cm.SegmentsMasked.Add(nil, uint64(dropped))
	}
}

// RecordMoves records emitted machine moves
func (cm *CoatingMetrics) RecordMoves(rapid, coat uint64) {
	if rapid > 0 {
		cm.MovesEmitted.Add(Labels{"kind": "rapid"}, rapid)
	}
	if coat > 0 {
		cm.MovesEmitted.Add(Labels{"kind": "coat"}, coat)
	}
}

// SetHeadPosition updates the final head position of the last run
func (cm *CoatingMetrics) SetHeadPosition(x, y, z float64) {
	cm.HeadPosition.Set(Labels{"axis": "x"}, x)
	cm.HeadPosition.Set(Labels{"axis": "y"}, y)
	cm.HeadPosition.Set(Labels{"axis": "z"}, z)
}

// RecordRequest records one API request
func (cm *CoatingMetrics) RecordRequest(endpoint string) {
	cm.RequestsTotal.Inc(Labels{"endpoint": endpoint})
}

// RecordError records an error
func (cm *CoatingMetrics) RecordError(errorType string) {
	cm.ErrorsTotal.Inc(Labels{"type": errorType})
}

// RecordWarning records a warning
func (cm *CoatingMetrics) RecordWarning(warningType string) {
	cm.WarningsTotal.Inc(Labels{"type": warningType})
}

// Gather returns all metrics in Prometheus text format
func (cm *CoatingMetrics) Gather() string {
	cm.UpdateSystemMetrics()
	return cm.registry.Gather()
}

// Registry returns the internal registry
func (cm *CoatingMetrics) Registry() *Registry {
	return cm.registry
}

// Global metrics instance
var globalMetrics *CoatingMetrics
var globalMetricsOnce sync.Once

// GlobalMetrics returns the global coating-host metrics instance
func GlobalMetrics() *CoatingMetrics {
	globalMetricsOnce.Do(func() {
		globalMetrics = NewCoatingMetrics()
	})
	return globalMetrics
}
