// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"net"
	"time"

	"github.com/orbfield/agarnet/internal/transport"
	"github.com/orbfield/agarnet/internal/wire"
	"github.com/orbfield/agarnet/internal/world"
)

func (h *Hub) handleConnect(addr *net.UDPAddr, code wire.Code, frame []byte) {
	if peer, ok := h.transport.PeerByAddr(addr); ok {
		// Already connected; re-ack so a dropped CONNECT reply gets retried.
		h.sendConnectAck(addr, peer.PlayerID)
		return
	}

	if !h.transport.AllowConnect(addr) {
		return
	}

	payload, err := wire.DecodeConnect(frame)
	if err != nil {
		h.log.Warn("malformed connect", "addr", addr, "err", err)
		return
	}

	h.mu.Lock()
	humans := 0
	for pid := range h.players {
		if !pid.IsBot() {
			humans++
		}
	}
	full := humans >= h.cfg.PlayerLimit
	var id world.PlayerID
	if !full {
		id = world.AllocatePlayerID(&h.nextPlayer, false)
	}
	h.mu.Unlock()
	if full {
		_ = h.transport.Send(addr, wire.EncodeDisconnect(wire.DisconnectPayload{Reason: wire.DisconnectReasonServerFull}))
		h.log.Info("rejected connect, server full", "addr", addr)
		return
	}

	h.addPlayer(id, payload.Name, addr)
	h.sendConnectAck(addr, id)
	h.log.Info("player connected", "id", id, "name", payload.Name, "addr", addr)
}

func (h *Hub) sendConnectAck(addr *net.UDPAddr, id world.PlayerID) {
	_ = h.transport.Send(addr, wire.EncodeConnectAck(wire.ConnectAckPayload{
		PlayerID:    id,
		FieldWidth:  uint16(h.cfg.MapWidth),
		FieldHeight: uint16(h.cfg.MapHeight),
	}))
}

func (h *Hub) addPlayer(id world.PlayerID, name string, addr *net.UDPAddr) {
	position := h.findSpawnLocation()
	colorIdx := uint8(0)
	if r := h.rand(); true {
		colorIdx = uint8(r.Intn(len(world.PlayerPalette)))
		h.putRand(r)
	}

	player := world.NewPlayer(id, name, position, h.fieldSize(), colorIdx)

	h.mu.Lock()
	h.players[id] = player
	h.playerViews[id] = make(map[world.OrbID]struct{})
	h.grid.Add(world.PlayerEntityID(id), player.AABB())
	h.mu.Unlock()

	peer := h.transport.AddPeer(addr, id)
	h.mu.Lock()
	h.peerByID[id] = peer
	h.mu.Unlock()
}

func (h *Hub) removePlayer(id world.PlayerID) {
	h.mu.Lock()
	h.grid.Remove(world.PlayerEntityID(id))
	peer := h.peerByID[id]
	delete(h.peerByID, id)
	delete(h.players, id)
	delete(h.playerViews, id)
	h.mu.Unlock()

	if peer != nil {
		h.transport.RemovePeer(peer.Addr)
	}
}

func (h *Hub) handleInputs(addr *net.UDPAddr, code wire.Code, frame []byte) {
	peer, ok := h.transport.PeerByAddr(addr)
	if !ok {
		_ = h.transport.Send(addr, wire.EncodeDisconnect(wire.DisconnectPayload{Reason: wire.DisconnectReasonClient}))
		return
	}
	payload, err := wire.DecodeInputs(frame)
	if err != nil {
		h.log.Warn("malformed inputs", "addr", addr, "err", err)
		return
	}
	peer.Touch()

	h.mu.Lock()
	player, ok := h.players[peer.PlayerID]
	if ok {
		player.Inputs = world.Inputs{X: float32(payload.X), Y: float32(payload.Y)}
	}
	h.mu.Unlock()
}

func (h *Hub) handleAck(addr *net.UDPAddr, code wire.Code, frame []byte) {
	peer, ok := h.transport.PeerByAddr(addr)
	if !ok {
		return
	}
	payload, err := wire.DecodeAck(frame)
	if err != nil {
		return
	}
	peer.Touch()
	h.transport.Ack(peer, payload.PacketID)
}

func (h *Hub) handlePing(addr *net.UDPAddr, code wire.Code, frame []byte) {
	peer, ok := h.transport.PeerByAddr(addr)
	if !ok {
		return
	}
	payload, err := wire.DecodePing(frame)
	if err != nil {
		return
	}
	peer.Touch()
	// The pulse is the ServerTime this peer returned from an UPD_PLAYERS
	// frame; the ticks elapsed since that stamp are its round trip time,
	// reported back to it in later UPD_PLAYERS frames. The pulse is also
	// echoed back, which the client treats only as a sign of life.
	elapsed := world.Ticks(h.tickCount) - payload.ServerPulse
	peer.RecordPing(payload.ServerPulse, time.Duration(elapsed)*world.TickPeriod)
	_ = h.transport.Send(addr, wire.EncodePing(payload))
}

func (h *Hub) handleDisconnect(addr *net.UDPAddr, code wire.Code, frame []byte) {
	peer, ok := h.transport.PeerByAddr(addr)
	if !ok {
		return
	}
	h.removePlayer(peer.PlayerID)
	h.log.Info("player disconnected", "id", peer.PlayerID)
}

// reapTimedOutPeers removes any peer silent for more than world.TimeoutLimit,
// matching the original server's per-sync timeout sweep.
func (h *Hub) reapTimedOutPeers() {
	var stale []world.PlayerID
	h.transport.ForEachPeer(func(p *transport.Peer) {
		if p.SilentFor() > world.TimeoutLimit {
			stale = append(stale, p.PlayerID)
		}
	})
	for _, id := range stale {
		h.removePlayer(id)
	}
}
