// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import "github.com/orbfield/agarnet/internal/world"

// maxSpawnAttempts bounds the reject-sampling loop below so a nearly-full
// map can never spin forever looking for an empty cell.
const maxSpawnAttempts = 128

// findSpawnLocation samples a uniform (x, y), accepting it only if no
// player within the same grid cell would overlap it on arrival.
func (h *Hub) findSpawnLocation() world.Vec2f {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.findSpawnLocationLocked()
}

func (h *Hub) findSpawnLocationLocked() world.Vec2f {
	r := h.rand()
	defer h.putRand(r)

	for attempt := 0; attempt < maxSpawnAttempts; attempt++ {
		x := r.Float32() * h.cfg.MapWidth
		y := r.Float32() * h.cfg.MapHeight
		candidate := world.Vec2f{X: x, Y: y}

		ok := true
		for _, nid := range h.grid.Neighbours(world.AABBFromCircle(candidate, world.StartRadius)) {
			if !nid.IsPlayer() {
				continue
			}
			other, exists := h.players[nid.AsPlayerID()]
			if !exists {
				continue
			}
			if candidate.Distance(other.Position) <= other.Radius {
				ok = false
				break
			}
		}
		if ok {
			return candidate
		}
	}
	// Degenerate fallback: map is saturated, spawn at the center rather
	// than fail the connection.
	return world.Vec2f{X: h.cfg.MapWidth / 2, Y: h.cfg.MapHeight / 2}
}

// replenishOrbsLocked tops the orb population up to TargetOrbCount, one per
// call at most a bounded batch, spreading the cost of a large deficit
// (e.g. right after server start) across multiple ticks instead of
// blocking one tick for the whole fill.
func (h *Hub) replenishOrbsLocked() {
	const maxPerTick = 20
	r := h.rand()
	defer h.putRand(r)

	added := 0
	for len(h.orbs) < h.cfg.TargetOrbCount && added < maxPerTick {
		id := world.AllocateOrbID(func(id world.OrbID) bool {
			_, used := h.orbs[id]
			return used
		})
		position := world.Vec2f{X: r.Float32() * h.cfg.MapWidth, Y: r.Float32() * h.cfg.MapHeight}
		orb := world.NewOrb(id, position, r)
		h.orbs[id] = orb
		h.grid.Add(world.OrbEntityID(id), orb.AABB())
		added++
	}
}
