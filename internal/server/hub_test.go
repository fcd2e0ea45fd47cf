// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"net"
	"testing"

	"github.com/orbfield/agarnet/internal/wire"
	"github.com/orbfield/agarnet/internal/world"
)

func newTestHub(t *testing.T, cfg Config) *Hub {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return New(cfg, conn, nil)
}

// Scenario: happy-path-grow — a lone player sitting on top of a pile of
// orbs eats all of them in a single tick and its radius strictly increases.
func TestHub_HappyPathGrow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MapWidth, cfg.MapHeight = 1000, 1000
	cfg.BotCount = 0
	cfg.TargetOrbCount = 0
	h := newTestHub(t, cfg)

	player := world.NewPlayer(1, "grower", world.Vec2f{X: 500, Y: 500}, h.fieldSize(), 0)
	h.players[1] = player
	h.playerViews[1] = map[world.OrbID]struct{}{}
	h.grid.Add(world.PlayerEntityID(1), player.AABB())

	before := player.Radius
	for i := 0; i < 20; i++ {
		orb := world.NewOrb(world.OrbID(i+1), player.Position, h.rand())
		h.orbs[orb.ID] = orb
		h.grid.Add(world.OrbEntityID(orb.ID), orb.AABB())
	}

	h.tick(1.0 / 50)

	if player.Radius <= before {
		t.Fatalf("expected radius to grow by eating orbs, got %f (was %f)", player.Radius, before)
	}
	if len(h.orbs) != 0 {
		t.Fatalf("expected all co-located orbs to be eaten, %d remain", len(h.orbs))
	}
}

// Scenario: two-player-eat — a larger player eating a smaller one grows and
// the smaller one is respawned under a freshly allocated id.
func TestHub_TwoPlayerEat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MapWidth, cfg.MapHeight = 1000, 1000
	h := newTestHub(t, cfg)

	big := world.NewPlayer(1, "big", world.Vec2f{X: 500, Y: 500}, h.fieldSize(), 0)
	big.Radius = 200
	small := world.NewPlayer(2, "small", world.Vec2f{X: 505, Y: 500}, h.fieldSize(), 1)
	small.Radius = 50

	h.players[1] = big
	h.players[2] = small
	h.playerViews[1] = map[world.OrbID]struct{}{}
	h.playerViews[2] = map[world.OrbID]struct{}{}
	h.grid.Add(world.PlayerEntityID(1), big.AABB())
	h.grid.Add(world.PlayerEntityID(2), small.AABB())

	h.handlePlayerCollisionsLocked()

	if _, stillExists := h.players[2]; stillExists {
		t.Fatalf("expected original small player id to be removed after being eaten")
	}
	if big.Radius <= 200 {
		t.Fatalf("expected big player to grow, got %f", big.Radius)
	}
	if len(h.deaths) != 1 {
		t.Fatalf("expected one death record, got %d", len(h.deaths))
	}
	// The eaten player's struct is reused under a new id rather than
	// discarded, matching the original's id re-keying on death.
	if small.ID == 2 {
		t.Fatalf("expected small player to be re-keyed to a new id")
	}
	if _, ok := h.players[small.ID]; !ok {
		t.Fatalf("expected respawned player reachable under its new id")
	}
}

// Scenario: server-full — a CONNECT arriving once PlayerLimit is reached is
// rejected with SERVER_FULL rather than admitted.
func TestHub_ServerFull_RejectsConnect(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PlayerLimit = 1
	h := newTestHub(t, cfg)

	h.players[1] = world.NewPlayer(1, "first", world.Vec2f{}, h.fieldSize(), 0)

	h.mu.Lock()
	full := len(h.players) >= h.cfg.PlayerLimit
	h.mu.Unlock()
	if !full {
		t.Fatalf("expected server to report full at PlayerLimit")
	}

	addr := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 4243}
	h.handleConnect(addr, wire.CodeConnect, wire.EncodeConnect(wire.ConnectPayload{Name: "second"}))
	if got := len(h.players); got != 1 {
		t.Fatalf("expected the CONNECT to be rejected, got %d players", got)
	}
	if _, ok := h.transport.PeerByAddr(addr); ok {
		t.Fatalf("expected no peer registered for a rejected CONNECT")
	}
}
