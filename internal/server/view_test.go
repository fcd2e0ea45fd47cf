// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"net"
	"testing"

	"github.com/orbfield/agarnet/internal/world"
)

// Scenario: orb-diff-over-lossy-link — syncOrbView sends only the
// symmetric difference between what a player was last told and what is
// now in view, and the view diff stays correct across repeated syncs even
// though none of the frames it sent is ever acked (simulating a lossy link).
func TestSyncOrbView_DiffUnderLoss(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MapWidth, cfg.MapHeight = 1000, 1000
	h := newTestHub(t, cfg)

	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4242}
	player := world.NewPlayer(1, "viewer", world.Vec2f{X: 500, Y: 500}, h.fieldSize(), 0)
	h.players[1] = player
	h.playerViews[1] = map[world.OrbID]struct{}{}
	h.grid.Add(world.PlayerEntityID(1), player.AABB())
	h.peerByID[1] = h.transport.AddPeer(addr, 1)

	r := h.rand()
	orbA := world.NewOrb(1, world.Vec2f{X: 500, Y: 500}, r)
	orbB := world.NewOrb(2, world.Vec2f{X: 510, Y: 500}, r)
	h.putRand(r)
	h.orbs[1] = orbA
	h.orbs[2] = orbB
	h.grid.Add(world.OrbEntityID(1), orbA.AABB())
	h.grid.Add(world.OrbEntityID(2), orbB.AABB())

	h.syncOrbView(player)

	if got := len(h.playerViews[1]); got != 2 {
		t.Fatalf("expected both orbs now in view, got %d", got)
	}

	// Lossy link: the frame above is never acked (no AckPayload delivered);
	// retransmission is not checked here, only that the diff itself is
	// correct across repeated syncs regardless of whether the prior frame
	// was ever acknowledged.
	h.grid.Remove(world.OrbEntityID(2))
	delete(h.orbs, 2)
	h.syncOrbView(player)

	if got := len(h.playerViews[1]); got != 1 {
		t.Fatalf("expected removed orb to drop out of view, got %d entries", got)
	}
}
