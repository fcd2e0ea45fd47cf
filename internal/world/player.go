// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import "github.com/chewxy/math32"

// Player is a circular, growable entity controlled either by a human peer
// or a bot. Humans and bots share this type; PlayerID.IsBot discriminates.
type Player struct {
	ID       PlayerID
	Name     string
	Position Vec2f
	Radius   float32
	ColorIdx uint8
	Scale    float32
	Inputs   Inputs

	// FieldSize bounds the map this player's position is clamped to.
	FieldSize Vec2f
}

// NewPlayer constructs a player at StartRadius / Scale 1, matching the
// original's Player.__init__ defaults.
func NewPlayer(id PlayerID, name string, position Vec2f, fieldSize Vec2f, colorIdx uint8) *Player {
	return &Player{
		ID:        id,
		Name:      name,
		Position:  position,
		Radius:    StartRadius,
		ColorIdx:  colorIdx,
		Scale:     1,
		FieldSize: fieldSize,
	}
}

// AABB returns the player's current bounding box for grid queries.
func (p *Player) AABB() AABB {
	return AABBFromCircle(p.Position, p.Radius)
}

// ViewAABB returns the rectangle of the world this player can currently
// see, centered on the player and scaled by the player's current zoom.
func (p *Player) ViewAABB() AABB {
	halfW := p.Scale * BaseWidth / 2
	halfH := p.Scale * BaseHeight / 2
	return AABB{
		Vec2f:  Vec2f{X: p.Position.X - halfW, Y: p.Position.Y - halfH},
		Width:  halfW * 2,
		Height: halfH * 2,
	}
}

// Eat grows p by absorbing otherRadius worth of mass, then clamps to
// MaxRadius and recomputes the view scale. This is the server-authoritative
// growth law; it must only ever be called server-side.
func (p *Player) Eat(otherRadius float32) {
	adjusted := otherRadius - EatValueOffset
	p.Radius = math32.Sqrt(p.Radius*p.Radius + adjusted*adjusted)
	if p.Radius > MaxRadius {
		p.Radius = MaxRadius
	}
	p.Scale = math32.Pow(p.Radius/StartRadius, ViewGrowthRate)
}

// Move advances the player's position by dt seconds according to its
// current Inputs, clamping to FieldSize. Larger players move slower;
// a pointer held inside the player's own body dampens velocity instead of
// abruptly cutting it, and small residual velocities are zeroed to avoid
// visible jitter when the pointer sits near the player's center.
func (p *Player) Move(dt float32) {
	mx, my := p.Inputs.X, p.Inputs.Y
	dist := math32.Hypot(mx, my)
	if dist == 0 {
		return
	}

	normX, normY := mx/dist, my/dist
	velocity := BaseVelocity * math32.Pow(StartRadius/p.Radius, VelocitySlowFactor)
	velX, velY := velocity*normX, velocity*normY

	scaledRadius := p.Radius / p.Scale
	if dist < scaledRadius {
		velX *= dist / scaledRadius
		velY *= dist / scaledRadius
	}
	if math32.Abs(velX) < 30 {
		velX = 0
	}
	if math32.Abs(velY) < 30 {
		velY = 0
	}

	p.Position.X += dt * velX
	p.Position.Y += dt * velY
	p.Position = p.Position.ClampToBounds(p.FieldSize)
}

// Respawn resets p in place for a new life: full reset of radius/scale and
// a freshly rolled color, keeping the same struct (and, from the caller's
// perspective, a freshly allocated PlayerID — see AllocatePlayerID).
func (p *Player) Respawn(position Vec2f, colorIdx uint8) {
	p.Position = position
	p.Radius = StartRadius
	p.Scale = 1
	p.ColorIdx = colorIdx
	p.Inputs = Inputs{}
}
