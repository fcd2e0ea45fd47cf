// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"github.com/orbfield/agarnet/internal/world"
)

// tick runs one authoritative simulation step: move every player, resolve
// player-player collisions (eat law), resolve player-orb collisions,
// replenish orbs toward the target count. Order matches the original
// main_loop exactly: move-all before any collision pass, so a collision
// never sees a half-updated position from later in the same tick.
func (h *Hub) tick(dt float32) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, player := range h.players {
		player.Move(dt)
		h.grid.Move(world.PlayerEntityID(id), player.AABB())
	}

	h.handlePlayerCollisionsLocked()
	h.handleOrbCollisionsLocked()
	h.replenishOrbsLocked()
}

// handlePlayerCollisionsLocked implements the eat law: a player only
// considers neighbours within its own query radius, skips any neighbour no
// larger than itself (the original's ">= other.radius" early-out), and is
// eaten by a larger neighbour once the distance between centers drops below
// that neighbour's radius minus COLLISION_MARGIN of its own radius.
func (h *Hub) handlePlayerCollisionsLocked() {
	ids := make([]world.PlayerID, 0, len(h.players))
	for id := range h.players {
		ids = append(ids, id)
	}

	for _, id := range ids {
		player, alive := h.players[id]
		if !alive {
			continue // eaten earlier in this same pass
		}
		neighbours := h.grid.Neighbours(player.AABB())
		for _, nid := range neighbours {
			if !nid.IsPlayer() {
				continue
			}
			otherID := nid.AsPlayerID()
			if otherID == id {
				continue
			}
			other, ok := h.players[otherID]
			if !ok {
				continue
			}
			if player.Radius >= other.Radius {
				continue
			}
			margin := player.Radius * world.CollisionMargin
			if player.Position.Distance(other.Position) < other.Radius-margin {
				h.eatPlayerLocked(other, player)
			}
		}
	}
}

// eatPlayerLocked grows eater by victim's radius and marks victim for
// respawn under a freshly allocated PlayerID, mirroring the original's
// player-id re-keying on death.
func (h *Hub) eatPlayerLocked(eater, victim *world.Player) {
	eater.Eat(victim.Radius)

	oldID := victim.ID
	h.grid.Remove(world.PlayerEntityID(oldID))
	delete(h.players, oldID)
	delete(h.playerViews, oldID)

	peer := h.peerByID[oldID]

	counter := &h.nextPlayer
	if oldID.IsBot() {
		counter = &h.nextBot
	}
	newID := world.AllocatePlayerID(counter, oldID.IsBot())
	victim.ID = newID
	victim.Respawn(h.findSpawnLocationLocked(), h.randomColorIdx())
	h.players[newID] = victim
	h.playerViews[newID] = make(map[world.OrbID]struct{})
	h.grid.Add(world.PlayerEntityID(newID), victim.AABB())

	if peer != nil {
		delete(h.peerByID, oldID)
		h.peerByID[newID] = peer
		peer.PlayerID = newID
	}

	h.deaths = append(h.deaths, deathRecord{OldID: oldID, Peer: peer})
}

// handleOrbCollisionsLocked implements orb absorption: same margin-based
// distance check as player collisions, against each player's own radius.
func (h *Hub) handleOrbCollisionsLocked() {
	for _, player := range h.players {
		eaten := h.eatenOrbsFor(player)
		for _, orbID := range eaten {
			orb := h.orbs[orbID]
			if orb == nil {
				continue
			}
			player.Eat(orb.Radius)
			h.grid.Remove(world.OrbEntityID(orbID))
			delete(h.orbs, orbID)
		}
	}
}

func (h *Hub) eatenOrbsFor(player *world.Player) []world.OrbID {
	var eaten []world.OrbID
	for _, nid := range h.grid.Neighbours(player.AABB()) {
		if nid.IsPlayer() {
			continue
		}
		orbID := nid.AsOrbID()
		orb, ok := h.orbs[orbID]
		if !ok {
			continue
		}
		margin := orb.Radius * world.CollisionMargin
		if player.Position.Distance(orb.Position) < player.Radius-margin {
			eaten = append(eaten, orbID)
		}
	}
	return eaten
}

func (h *Hub) randomColorIdx() uint8 {
	r := h.rand()
	defer h.putRand(r)
	return uint8(r.Intn(len(world.PlayerPalette)))
}
