// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"github.com/chewxy/math32"

	"github.com/orbfield/agarnet/internal/world"
)

// spawnBots fills the roster with BotCount bots, discriminated from human
// peers only by their negative PlayerID. Bots never have a transport.Peer;
// the hub drives their Inputs directly instead of reading frames.
func (h *Hub) spawnBots() {
	for i := 0; i < h.cfg.BotCount; i++ {
		name := world.BotNames[i%len(world.BotNames)]
		position := h.findSpawnLocation()

		h.mu.Lock()
		id := world.AllocatePlayerID(&h.nextBot, true)
		player := world.NewPlayer(id, name, position, h.fieldSize(), h.randomColorIdx())
		h.players[id] = player
		h.playerViews[id] = make(map[world.OrbID]struct{})
		h.grid.Add(world.PlayerEntityID(id), player.AABB())
		h.mu.Unlock()
	}
}

// updateBotInputs rerolls a random heading for every bot on
// BotInputUpdateInterval, matching the original's periodic bot input
// randomization (the original also rerolls a bot's heading with small
// probability whenever it eats; that effect is approximated here simply by
// the fixed-interval reroll, since bot behavior was never spec'd more
// precisely than "wanders").
func (h *Hub) updateBotInputs() {
	h.mu.Lock()
	defer h.mu.Unlock()

	r := h.rand()
	defer h.putRand(r)

	for id, player := range h.players {
		if !id.IsBot() {
			continue
		}
		angle := r.Float32() * 6.28318
		player.Inputs = world.Inputs{X: math32.Cos(angle) * 500, Y: math32.Sin(angle) * 500}
	}
}
