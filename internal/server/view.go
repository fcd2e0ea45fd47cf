// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"github.com/orbfield/agarnet/internal/transport"
	"github.com/orbfield/agarnet/internal/wire"
	"github.com/orbfield/agarnet/internal/world"
)

// sync runs the per-ServerSyncInterval outbound pass: reap dead
// connections, diff each player's orb view, broadcast the player roster,
// and flush any pending death notifications. Mirrors the original's
// sync_state ordering: orb diffs first (since they are the expensive,
// per-player part), then the shared player roster, then deaths.
func (h *Hub) sync() {
	h.reapTimedOutPeers()
	h.enforceInterruptLimit()

	h.mu.Lock()
	players := make([]*world.Player, 0, len(h.players))
	for _, p := range h.players {
		players = append(players, p)
	}
	deaths := h.deaths
	h.deaths = nil
	h.mu.Unlock()

	for _, p := range players {
		h.syncOrbView(p)
	}

	h.syncPlayerRoster(players)

	for _, d := range deaths {
		h.notifyDeath(d)
	}
}

// syncOrbView computes the symmetric difference between a player's current
// orb view and what they were last told about, and sends only the delta,
// reliably, since a dropped orb update would otherwise desync the client's
// rendered world forever.
func (h *Hub) syncOrbView(player *world.Player) {
	h.mu.Lock()
	peer := h.peerByID[player.ID]
	previous := h.playerViews[player.ID]
	h.mu.Unlock()
	if peer == nil || previous == nil {
		return
	}

	view := player.ViewAABB()
	view.Width *= world.FOVMargin
	view.Height *= world.FOVMargin

	current := make(map[world.OrbID]struct{})
	var added []wire.OrbSnapshot
	h.mu.Lock()
	for _, nid := range h.grid.Neighbours(view) {
		if nid.IsPlayer() {
			continue
		}
		orbID := nid.AsOrbID()
		orb, ok := h.orbs[orbID]
		if !ok {
			continue
		}
		current[orbID] = struct{}{}
		if _, already := previous[orbID]; !already {
			added = append(added, wire.OrbSnapshot{
				ID: orbID, X: uint16(orb.Position.X), Y: uint16(orb.Position.Y),
				Radius: uint8(orb.Radius), ColorIdx: orb.ColorIdx,
			})
		}
	}
	var removed []world.OrbID
	for orbID := range previous {
		if _, still := current[orbID]; !still {
			removed = append(removed, orbID)
		}
	}
	h.playerViews[player.ID] = current
	h.mu.Unlock()

	if len(added) == 0 && len(removed) == 0 {
		return
	}

	// A view diff over a fast-moving player can outgrow one datagram; split
	// it so each shard stays under the wire MTU budget, each with its own
	// packet_id so the ack/retransmit scheduler tracks them independently.
	for _, shard := range wire.ShardUpdOrbs(added, removed, world.MaxDatagramSize) {
		shard := shard
		h.transport.SendReliable(peer, func(packetID uint32) []byte {
			shard.PacketID = packetID
			return wire.EncodeUpdOrbs(shard)
		})
	}
}

// syncPlayerRoster broadcasts the full player list (positions, not views —
// interest management here is limited to orbs; client-side culling to the
// player's own view is acceptable because player counts stay small) plus
// the top-5 leaderboard to every connected peer.
func (h *Hub) syncPlayerRoster(players []*world.Player) {
	snapshots := make([]wire.PlayerSnapshot, len(players))
	for i, p := range players {
		snapshots[i] = wire.PlayerSnapshot{
			ID: p.ID, Name: p.Name, X: uint16(p.Position.X), Y: uint16(p.Position.Y),
			ColorIdx: p.ColorIdx, Radius: uint16(p.Radius),
		}
	}
	leaders := leaderNames(players)

	h.transport.ForEachPeer(func(peer *transport.Peer) {
		data := wire.EncodeUpdPlayers(wire.UpdPlayersPayload{
			ServerTime: world.Ticks(h.tickCount),
			Ping:       peer.RTT(),
			Players:    snapshots,
			Leaders:    leaders,
		})
		_ = h.transport.Send(peer.Addr, data)
	})
}

// notifyDeath tells the player who just died (now re-keyed to a new id)
// what their new id is, reliably, since a missed DEATH message would leave
// the client applying inputs and displaying a player id the server has
// already forgotten.
func (h *Hub) notifyDeath(d deathRecord) {
	if d.Peer == nil {
		return
	}
	h.transport.SendReliable(d.Peer, func(packetID uint32) []byte {
		return wire.EncodeDeath(wire.DeathPayload{PacketID: packetID, NewPlayerID: d.Peer.PlayerID})
	})
}

// enforceInterruptLimit resets a silent player's inputs to the zero vector
// once their connection has been quiet longer than PlayerInterruptLimit,
// so a lagging peer coasts to a stop instead of running on stale input.
func (h *Hub) enforceInterruptLimit() {
	h.transport.ForEachPeer(func(peer *transport.Peer) {
		if peer.SilentFor() < world.PlayerInterruptLimit {
			return
		}
		h.mu.Lock()
		if player, ok := h.players[peer.PlayerID]; ok {
			player.Inputs = world.DefaultInputs
		}
		h.mu.Unlock()
	})
}
