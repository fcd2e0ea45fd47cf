// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

// AABB is an axis-aligned bounding box anchored at its top-left corner,
// used by the spatial grid for coarse neighbour queries.
type AABB struct {
	Vec2f
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

// AABBFromCircle returns the AABB tightly bounding a circle, anchored at
// the circle's top-left corner rather than its center.
func AABBFromCircle(center Vec2f, radius float32) AABB {
	return AABB{
		Vec2f:  Vec2f{X: center.X - radius, Y: center.Y - radius},
		Width:  radius * 2,
		Height: radius * 2,
	}
}

// Intersects reports whether a and b overlap.
func (a AABB) Intersects(b AABB) bool {
	return a.X+a.Width >= b.X && a.X <= b.X+b.Width && a.Y+a.Height >= b.Y && a.Y <= b.Height+b.Y
}

// Contains reports whether a fully contains b.
func (a AABB) Contains(b AABB) bool {
	return a.X <= b.X && a.Y <= b.Y && a.X+a.Width >= b.X+b.Width && a.Y+a.Height >= b.Y+b.Height
}

// Center returns the midpoint of a.
func (a AABB) Center() Vec2f {
	return Vec2f{X: a.X + a.Width*0.5, Y: a.Y + a.Height*0.5}
}
