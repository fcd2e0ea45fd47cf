// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"net"
	"time"

	"github.com/orbfield/agarnet/internal/wire"
	"github.com/orbfield/agarnet/internal/world"
)

// jitterBufferSize bounds how many UPD_PLAYERS snapshots are retained in
// serverSnapshots. The original keeps only the single most recent one; the
// newest entry supplies the reported ping for ConnectionStats. A snapshot
// arriving out of order is dropped, never inserted into the buffer. The
// delayed "past player" gravity-correction target is tracked separately,
// from the local player's own trajectory.
const jitterBufferSize = 8

// fieldBounds returns the map dimensions the server reported at CONNECT
// time, or (0, 0) before they're known, which callers treat as "skip the
// bounds check" rather than rejecting every frame received before that.
func (c *Client) fieldBounds() (uint16, uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.local == nil {
		return 0, 0
	}
	return uint16(c.local.FieldSize.X), uint16(c.local.FieldSize.Y)
}

func (c *Client) handleUpdPlayers(addr *net.UDPAddr, code wire.Code, frame []byte) {
	fieldWidth, fieldHeight := c.fieldBounds()
	payload, err := wire.DecodeUpdPlayers(frame, fieldWidth, fieldHeight)
	if err != nil {
		c.log.Warn("malformed upd_players", "err", err)
		return
	}

	now := time.Now()
	c.mu.Lock()
	c.lastHeardAt = now

	// Monotonicity guard: a frame older than the newest we've already
	// buffered is dropped rather than reordering the buffer, matching the
	// original's heartbeat/server_pulse check. The comparison is done on the
	// signed 16-bit difference so it keeps working across a Ticks wrap.
	if len(c.serverSnapshots) > 0 && int16(payload.ServerTime-c.serverSnapshots[len(c.serverSnapshots)-1].serverTime) <= 0 {
		c.mu.Unlock()
		return
	}

	snap := snapshot{
		serverTime: payload.ServerTime,
		receivedAt: now,
		players:    payload.Players,
		leaders:    payload.Leaders,
		ping:       payload.Ping,
	}
	c.serverSnapshots = append(c.serverSnapshots, snap)
	if len(c.serverSnapshots) > jitterBufferSize {
		c.serverSnapshots = c.serverSnapshots[len(c.serverSnapshots)-jitterBufferSize:]
	}

	// Refresh the server wall-clock estimate from this frame's round trip
	// time, never letting it regress on an out-of-order arrival.
	rtt := time.Duration(payload.Ping) * time.Millisecond
	if estimate := now.Add(-rtt); c.serverTimeEstimate.IsZero() || estimate.After(c.serverTimeEstimate) {
		c.serverTimeEstimate = estimate
	}

	c.others = make(map[world.PlayerID]wire.PlayerSnapshot, len(payload.Players))
	c.selfInRoster = false
	for _, p := range payload.Players {
		if p.ID == c.localID {
			c.serverSelf = p
			c.selfInRoster = true
			continue
		}
		c.others[p.ID] = p
	}
	c.leaders = payload.Leaders

	c.advancePastPlayerLocked()
	c.mu.Unlock()

	c.SendPing(payload.ServerTime)
}

// advancePastPlayerLocked pops every entry of the local player's own
// trajectory older than half a server sync interval behind the estimated
// server time; the last one popped becomes the delayed target gravity
// correction reconciles against.
func (c *Client) advancePastPlayerLocked() {
	if c.serverTimeEstimate.IsZero() {
		return
	}
	effective := c.serverTimeEstimate.Add(-world.ServerSyncInterval / 2)
	for len(c.pastPlayerQueue) > 0 && !c.pastPlayerQueue[0].at.After(effective) {
		sample := c.pastPlayerQueue[0]
		c.pastPlayerQueue = c.pastPlayerQueue[1:]
		c.pastPlayer = &sample
	}
}

// verifyConnectionLocked implements the reconciliation state machine's
// liveness and sync transitions. The connection is declared dead once the
// estimated server time falls TimeoutLimit behind wall clock; the local
// player is considered desynced, independently, once that gap exceeds the
// much shorter PlayerInterruptLimit or it no longer appears in the
// server's latest roster. On the unsynced-to-synced edge, local position
// and color snap to the server's and the past-player trajectory is
// cleared, so reconciliation resumes from a known-good state instead of
// gravity-correcting across whatever happened while desynced.
func (c *Client) verifyConnectionLocked(now time.Time) {
	if c.serverTimeEstimate.IsZero() {
		return
	}
	delay := now.Sub(c.serverTimeEstimate)
	if delay > world.TimeoutLimit {
		c.connected = false
		return
	}

	synced := delay <= world.PlayerInterruptLimit && c.selfInRoster
	if !c.synced && synced {
		c.resetLocalToServerLocked()
	}
	c.synced = synced
}

// resetLocalToServerLocked snaps the local player's position and color to
// the server's on the unsynced-to-synced edge.
func (c *Client) resetLocalToServerLocked() {
	if c.local != nil {
		c.local.Position = world.Vec2f{X: float32(c.serverSelf.X), Y: float32(c.serverSelf.Y)}
		c.local.ColorIdx = c.serverSelf.ColorIdx
	}
	c.pastPlayer = nil
	c.pastPlayerQueue = nil
}

func (c *Client) handleUpdOrbs(addr *net.UDPAddr, code wire.Code, frame []byte) {
	fieldWidth, fieldHeight := c.fieldBounds()
	payload, err := wire.DecodeUpdOrbs(frame, fieldWidth, fieldHeight)
	if err != nil {
		c.log.Warn("malformed upd_orbs", "err", err)
		return
	}

	c.mu.Lock()
	// At-most-once: a retransmit of a packet id already applied is acked
	// again (the first ack may have been lost) but never re-applied.
	if _, already := c.ackedUpTo[payload.PacketID]; !already {
		for _, o := range payload.Added {
			c.orbs[o.ID] = o
		}
		for _, id := range payload.Removed {
			delete(c.orbs, id)
		}
		c.ackedUpTo[payload.PacketID] = struct{}{}
	}
	addr2 := c.serverAddr
	c.mu.Unlock()

	if addr2 != nil {
		_ = c.transport.Send(addr2, wire.EncodeAck(wire.AckPayload{PacketID: payload.PacketID}))
	}
}

func (c *Client) handleDeath(addr *net.UDPAddr, code wire.Code, frame []byte) {
	payload, err := wire.DecodeDeath(frame)
	if err != nil {
		c.log.Warn("malformed death", "err", err)
		return
	}

	c.mu.Lock()
	if _, already := c.ackedUpTo[payload.PacketID]; !already {
		if c.local != nil {
			c.local.Respawn(c.local.Position, c.local.ColorIdx)
		}
		c.localID = payload.NewPlayerID
		if c.local != nil {
			c.local.ID = payload.NewPlayerID
		}
		c.synced = false
		c.pastPlayerQueue = nil
		c.ackedUpTo[payload.PacketID] = struct{}{}
	}
	addr2 := c.serverAddr
	c.mu.Unlock()

	if addr2 != nil {
		_ = c.transport.Send(addr2, wire.EncodeAck(wire.AckPayload{PacketID: payload.PacketID}))
	}
}

func (c *Client) handlePing(addr *net.UDPAddr, code wire.Code, frame []byte) {
	payload, err := wire.DecodePing(frame)
	if err != nil {
		return
	}
	c.mu.Lock()
	c.lastHeardAt = time.Now()
	c.mu.Unlock()
	_ = payload
}

// SendPing emits a PING carrying pulse, the ServerTime of the UPD_PLAYERS
// frame just applied, so the server can measure this peer's round trip time
// and report it back in later UPD_PLAYERS frames.
func (c *Client) SendPing(pulse world.Ticks) {
	c.mu.Lock()
	addr := c.serverAddr
	c.mu.Unlock()
	if addr == nil {
		return
	}
	_ = c.transport.Send(addr, wire.EncodePing(wire.PingPayload{ServerPulse: pulse}))
}

// ConnectionStats is the (latency, bandwidth, loss, spike) tuple a debug
// overlay reads: the most recently reported round trip time, this
// connection's measured throughput, and the two degraded-network knobs
// currently applied locally.
type ConnectionStats struct {
	LatencyMillis    uint16
	BandwidthBps     float64
	PacketLossRate   float64
	LagSpikeDuration time.Duration
}

// ConnectionStats reports the client's current connection quality.
func (c *Client) ConnectionStats() ConnectionStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectionStatsLocked()
}

// connectionStatsLocked assumes c.mu is already held, for callers (like
// ViewModel) that assemble several locked fields in one pass.
func (c *Client) connectionStatsLocked() ConnectionStats {
	var latency uint16
	if len(c.serverSnapshots) > 0 {
		latency = c.serverSnapshots[len(c.serverSnapshots)-1].ping
	}
	degraded := c.transport.Degraded()
	return ConnectionStats{
		LatencyMillis:    latency,
		BandwidthBps:     c.transport.Bandwidth(),
		PacketLossRate:   degraded.PacketLossRate(),
		LagSpikeDuration: degraded.LagSpikeDuration(),
	}
}
