// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package grid

import (
	"testing"

	"github.com/orbfield/agarnet/internal/world"
)

func TestGrid_AddAndNeighbours(t *testing.T) {
	g := New(3000, 3000, 600, 600)
	g.Add(1, world.AABBFromCircle(world.Vec2f{X: 100, Y: 100}, 20))
	g.Add(2, world.AABBFromCircle(world.Vec2f{X: 2900, Y: 2900}, 20))

	near := g.Neighbours(world.AABBFromCircle(world.Vec2f{X: 110, Y: 110}, 50))
	if !containsID(near, 1) {
		t.Fatalf("expected id 1 among neighbours, got %v", near)
	}
	if containsID(near, 2) {
		t.Fatalf("did not expect id 2 among neighbours near (110,110), got %v", near)
	}
}

func TestGrid_RemoveThenAdd(t *testing.T) {
	g := New(1000, 1000, 100, 100)
	g.Add(1, world.AABBFromCircle(world.Vec2f{X: 50, Y: 50}, 10))
	g.Remove(1)

	if g.Len() != 0 {
		t.Fatalf("expected 0 entries after Remove, got %d", g.Len())
	}
	near := g.Neighbours(world.AABBFromCircle(world.Vec2f{X: 50, Y: 50}, 10))
	if containsID(near, 1) {
		t.Fatalf("removed id still present in neighbours: %v", near)
	}

	g.Move(1, world.AABBFromCircle(world.Vec2f{X: 900, Y: 900}, 10))
	if g.Len() != 1 {
		t.Fatalf("expected 1 entry after re-add, got %d", g.Len())
	}
}

func TestGrid_ClampsOutOfBoundsCoordinates(t *testing.T) {
	g := New(100, 100, 50, 50)
	// Should not panic despite the aabb extending past the map edge.
	g.Add(1, world.AABBFromCircle(world.Vec2f{X: -500, Y: 10000}, 10))
	near := g.Neighbours(world.AABBFromCircle(world.Vec2f{X: 0, Y: 99}, 5))
	if !containsID(near, 1) {
		t.Fatalf("expected out-of-bounds entity clamped into the nearest cell")
	}
}

func containsID(ids []world.EntityID, target world.EntityID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
