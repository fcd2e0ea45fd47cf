// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import (
	"math"

	"github.com/chewxy/math32"
)

// Vec2f is a float32 2D vector, used for player and orb positions.
type Vec2f struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

func (vec Vec2f) Mul(factor float32) Vec2f {
	vec.X *= factor
	vec.Y *= factor
	return vec
}

func (vec Vec2f) Div(divisor float32) Vec2f {
	return vec.Mul(1.0 / divisor)
}

func (vec Vec2f) AddScaled(otherVec Vec2f, factor float32) Vec2f {
	vec.X += otherVec.X * factor
	vec.Y += otherVec.Y * factor
	return vec
}

func (vec Vec2f) Add(otherVec Vec2f) Vec2f {
	vec.X += otherVec.X
	vec.Y += otherVec.Y
	return vec
}

func (vec Vec2f) Sub(otherVec Vec2f) Vec2f {
	vec.X -= otherVec.X
	vec.Y -= otherVec.Y
	return vec
}

func (vec Vec2f) Dot(otherVec Vec2f) float32 {
	return vec.X*otherVec.X + vec.Y*otherVec.Y
}

func (vec Vec2f) Distance(otherVec Vec2f) float32 {
	return vec.Sub(otherVec).Length()
}

func (vec Vec2f) DistanceSquared(otherVec Vec2f) float32 {
	x := vec.X - otherVec.X
	y := vec.Y - otherVec.Y
	return x*x + y*y
}

func (vec Vec2f) Length() float32 {
	return math32.Hypot(vec.X, vec.Y)
}

func (vec Vec2f) LengthSquared() float32 {
	return vec.X*vec.X + vec.Y*vec.Y
}

func Lerp(a, b, factor float32) float32 {
	return a + (b-a)*factor
}

func (vec Vec2f) Lerp(otherVec Vec2f, factor float32) Vec2f {
	vec.X = Lerp(vec.X, otherVec.X, factor)
	vec.Y = Lerp(vec.Y, otherVec.Y, factor)
	return vec
}

func (vec Vec2f) Abs() Vec2f {
	vec.X = math32.Abs(vec.X)
	vec.Y = math32.Abs(vec.Y)
	return vec
}

func (vec Vec2f) Floor() Vec2f {
	// Use math.Floor instead of math32 because it uses assembly.
	vec.X = float32(math.Floor(float64(vec.X)))
	vec.Y = float32(math.Floor(float64(vec.Y)))
	return vec
}

func (vec Vec2f) Norm() Vec2f {
	l := vec.Length()
	if l == 0 {
		return Vec2f{}
	}
	return vec.Div(l)
}

// ClampToBounds clamps vec into [0, bounds.X-1] x [0, bounds.Y-1], matching
// the server's authoritative map-edge behavior.
func (vec Vec2f) ClampToBounds(bounds Vec2f) Vec2f {
	vec.X = clampf(vec.X, 0, bounds.X-1)
	vec.Y = clampf(vec.Y, 0, bounds.Y-1)
	return vec
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
