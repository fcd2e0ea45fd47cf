// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package grid implements the fixed-cell spatial index the server uses for
// collision and visibility queries: a map of cell id to a swap-removable
// slice of entity ids, plus a reverse index from entity id to its cell, so
// removal scans only that one cell's slice.
package grid

import (
	"github.com/orbfield/agarnet/internal/world"
)

// CellID identifies one cell of the grid.
type CellID struct {
	Row, Col int
}

type bucketEntry struct {
	cell CellID
	aabb world.AABB
}

// Grid is a fixed-size, cell-bucketed spatial index covering [0, width) x
// [0, height). Queries may return false positives near cell borders;
// callers must re-test against the actual shape.
type Grid struct {
	cellW, cellH float32
	cols, rows   int

	buckets map[CellID][]world.EntityID
	index   map[world.EntityID]bucketEntry
}

// New constructs a Grid covering a width x height map with cellW x cellH
// cells, clamping cell counts to at least 1 so degenerate map sizes never
// divide by zero.
func New(width, height, cellW, cellH float32) *Grid {
	cols := int(width / cellW)
	if cols < 1 {
		cols = 1
	}
	rows := int(height / cellH)
	if rows < 1 {
		rows = 1
	}
	return &Grid{
		cellW:   cellW,
		cellH:   cellH,
		cols:    cols,
		rows:    rows,
		buckets: make(map[CellID][]world.EntityID),
		index:   make(map[world.EntityID]bucketEntry),
	}
}

func (g *Grid) clampCol(x float32) int {
	c := int(x / g.cellW)
	if c < 0 {
		return 0
	}
	if c >= g.cols {
		return g.cols - 1
	}
	return c
}

func (g *Grid) clampRow(y float32) int {
	r := int(y / g.cellH)
	if r < 0 {
		return 0
	}
	if r >= g.rows {
		return g.rows - 1
	}
	return r
}

func (g *Grid) cellsCovering(aabb world.AABB) []CellID {
	minCol, maxCol := g.clampCol(aabb.X), g.clampCol(aabb.X+aabb.Width)
	minRow, maxRow := g.clampRow(aabb.Y), g.clampRow(aabb.Y+aabb.Height)

	cells := make([]CellID, 0, (maxCol-minCol+1)*(maxRow-minRow+1))
	for r := minRow; r <= maxRow; r++ {
		for c := minCol; c <= maxCol; c++ {
			cells = append(cells, CellID{Row: r, Col: c})
		}
	}
	return cells
}

// Add indexes id at aabb. Add must not be called for an id already present;
// callers move an existing entity via Remove then Add.
func (g *Grid) Add(id world.EntityID, aabb world.AABB) {
	cell := CellID{Row: g.clampRow(aabb.Y + aabb.Height/2), Col: g.clampCol(aabb.X + aabb.Width/2)}
	g.buckets[cell] = append(g.buckets[cell], id)
	g.index[id] = bucketEntry{cell: cell, aabb: aabb}
}

// Remove deletes id from the grid. A no-op if id is not present.
func (g *Grid) Remove(id world.EntityID) {
	entry, ok := g.index[id]
	if !ok {
		return
	}
	delete(g.index, id)

	bucket := g.buckets[entry.cell]
	for i, other := range bucket {
		if other == id {
			last := len(bucket) - 1
			bucket[i] = bucket[last]
			bucket = bucket[:last]
			break
		}
	}
	if len(bucket) == 0 {
		delete(g.buckets, entry.cell)
	} else {
		g.buckets[entry.cell] = bucket
	}
}

// Move relocates id to a new aabb. Implemented as Remove then Add: the
// grid never mutates an entry's cell membership in place, since doing so
// correctly would require the same bucket scan Remove already does.
func (g *Grid) Move(id world.EntityID, aabb world.AABB) {
	g.Remove(id)
	g.Add(id, aabb)
}

// Neighbours returns every entity id whose cell overlaps aabb's covering
// cells. The result may contain entities whose true shape does not
// actually intersect aabb; callers re-test.
func (g *Grid) Neighbours(aabb world.AABB) []world.EntityID {
	seen := make(map[world.EntityID]struct{})
	var out []world.EntityID
	for _, cell := range g.cellsCovering(aabb) {
		for _, id := range g.buckets[cell] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

// Len reports how many entities are currently indexed.
func (g *Grid) Len() int {
	return len(g.index)
}
