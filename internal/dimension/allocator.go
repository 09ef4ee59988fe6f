//-------------------------------------------------------------------------
//
// pgEdge Retail Warehouse Pipeline
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package dimension builds the warehouse dimension tables from
// normalized records: surrogate key allocation, SCD type 2 versioning
// for customer and product, type 1 overwrites for geography and ship
// mode, and the calendar date dimension.
package dimension

import "github.com/pgEdge/retail-dwh/internal/model"

// Allocator hands out surrogate keys, one serialized counter per
// dimension. Keys are monotonic, assigned once and never reused. Seed
// it from the sink's high-water marks so keys stay unique across runs
// and restarts.
type Allocator struct {
	next map[model.Dimension]int64
}

// NewAllocator creates an allocator starting every dimension at 1.
func NewAllocator() *Allocator {
	return &Allocator{next: make(map[model.Dimension]int64)}
}

// Seed sets the high-water mark for a dimension. The next key handed
// out will be highWater + 1. Seeding below the current position is
// ignored so a stale mark can never cause key reuse.
func (a *Allocator) Seed(dim model.Dimension, highWater int64) {
	if highWater+1 > a.next[dim] {
		a.next[dim] = highWater + 1
	}
}

// Next returns the next surrogate key for the dimension.
func (a *Allocator) Next(dim model.Dimension) int64 {
	if a.next[dim] == 0 {
		a.next[dim] = 1
	}
	key := a.next[dim]
	a.next[dim]++
	return key
}

// Peek returns the key Next would hand out, without consuming it.
func (a *Allocator) Peek(dim model.Dimension) int64 {
	if a.next[dim] == 0 {
		return 1
	}
	return a.next[dim]
}
