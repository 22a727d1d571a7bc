// Object pools for the generation hot path
//
// The sequencer builds a scratch copy of every shape's segment list and the
// masking router builds short waypoint lists per bridged region. Both are
// discarded as soon as the shape is done, so they are recycled here instead
// of churning the garbage collector on large projects.
//
// Usage:
//
//	scratch := pool.GetSegments()
//	defer pool.PutSegments(scratch)
//	*scratch = append(*scratch, segments...)
//
// Copyright (C) 2026 Coating Host Project
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package pool

import (
	"sync"

	"coating-host/pkg/geometry"
)

const defaultSegmentCap = 64
const defaultPointCap = 8

var segmentPool = sync.Pool{
	New: func() any {
		s := make([]geometry.Segment, 0, defaultSegmentCap)
		return &s
	},
}

// GetSegments gets an empty segment scratch slice from the pool.
func GetSegments() *[]geometry.Segment {
	return segmentPool.Get().(*[]geometry.Segment)
}

// PutSegments returns a scratch slice to the pool after truncating it.
func PutSegments(s *[]geometry.Segment) {
	if s == nil {
		return
	}
	*s = (*s)[:0]
	segmentPool.Put(s)
}

var pointPool = sync.Pool{
	New: func() any {
		p := make([]geometry.Point, 0, defaultPointCap)
		return &p
	},
}

// GetPoints gets an empty point scratch slice from the pool.
func GetPoints() *[]geometry.Point {
	return pointPool.Get().(*[]geometry.Point)
}

// PutPoints returns a point scratch slice to the pool after truncating it.
func PutPoints(p *[]geometry.Point) {
	if p == nil {
		return
	}
	*p = (*p)[:0]
	pointPool.Put(p)
}
