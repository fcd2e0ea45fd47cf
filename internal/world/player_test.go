// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import "testing"

func TestPlayer_Eat(t *testing.T) {
	p := NewPlayer(1, "a", Vec2f{}, Vec2f{X: 1000, Y: 1000}, 0)
	before := p.Radius
	p.Eat(MinOrbRadius)
	if p.Radius <= before {
		t.Fatalf("expected radius to grow, got %f (was %f)", p.Radius, before)
	}
	if p.Scale <= 1 {
		t.Fatalf("expected scale > 1 after growth, got %f", p.Scale)
	}
}

func TestPlayer_Eat_ClampsToMaxRadius(t *testing.T) {
	p := NewPlayer(1, "a", Vec2f{}, Vec2f{X: 1000, Y: 1000}, 0)
	p.Radius = MaxRadius
	for i := 0; i < 50; i++ {
		p.Eat(MaxOrbRadius)
	}
	if p.Radius > MaxRadius {
		t.Fatalf("radius exceeded MaxRadius: %f", p.Radius)
	}
}

func TestPlayer_Move_ClampsToField(t *testing.T) {
	field := Vec2f{X: 100, Y: 100}
	p := NewPlayer(1, "a", Vec2f{X: 95, Y: 95}, field, 0)
	p.Inputs = Inputs{X: 100, Y: 100}
	for i := 0; i < 1000; i++ {
		p.Move(1.0 / 50)
	}
	if p.Position.X > field.X-1 || p.Position.Y > field.Y-1 {
		t.Fatalf("player escaped field bounds: %v", p.Position)
	}
}

func TestPlayer_Move_ZeroInputsIsNoop(t *testing.T) {
	p := NewPlayer(1, "a", Vec2f{X: 50, Y: 50}, Vec2f{X: 1000, Y: 1000}, 0)
	p.Move(1.0 / 50)
	if p.Position != (Vec2f{X: 50, Y: 50}) {
		t.Fatalf("expected no movement with zero inputs, got %v", p.Position)
	}
}
