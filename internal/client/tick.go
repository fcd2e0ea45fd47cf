// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"time"

	"github.com/orbfield/agarnet/internal/wire"
	"github.com/orbfield/agarnet/internal/world"
)

// Tick runs local prediction for dt seconds: move the local player from its
// own inputs, then nudge it a further GravityFactor*dt fraction of the way
// along the vector from the local player's delayed past-player position to
// the server's current one. Comparing server-now to local-now is the
// unstable, butterfly-prone form; comparing server-now to local-then (the
// past-player sample) converges without visible rubber-banding, which is
// why the correction is never applied while unsynced — there is no
// trustworthy past-player sample to compare against yet.
func (c *Client) Tick(dt float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.local == nil {
		return
	}

	c.local.Move(dt)

	if !c.synced {
		c.trackers["server"].Active = false
		c.trackers["past"].Active = false
		return
	}

	serverPos := world.Vec2f{X: float32(c.serverSelf.X), Y: float32(c.serverSelf.Y)}

	past := serverPos
	pastRadius := c.local.Radius
	if c.pastPlayer != nil {
		past = c.pastPlayer.position
		pastRadius = c.pastPlayer.radius
	}

	correction := serverPos.Sub(past)
	c.local.Position = c.local.Position.AddScaled(correction, world.GravityFactor*dt)

	c.trackers["server"].Position = serverPos
	c.trackers["server"].Radius = world.StartRadius
	c.trackers["server"].Active = true

	c.trackers["past"].Position = past
	c.trackers["past"].Radius = pastRadius
	c.trackers["past"].Active = c.pastPlayer != nil
}

// NeedsSync reports whether enough time has passed since the last outbound
// inputs flush to send another, matching ClientSyncInterval.
func (c *Client) NeedsSync() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastSyncedAt) >= world.ClientSyncInterval
}

// SyncInputs runs the client's per-sync reconciliation step: verify the
// connection is still live and synced, and if so, record the local
// player's current trajectory sample and send its inputs to the server.
// Nothing is sent while desynced, matching the original's gate on the same
// condition.
func (c *Client) SyncInputs() {
	now := time.Now()
	c.mu.Lock()
	c.lastSyncedAt = now
	c.verifyConnectionLocked(now)

	addr := c.serverAddr
	synced := c.synced
	connected := c.connected
	var payload wire.InputsPayload
	if synced && c.local != nil {
		payload = wire.InputsPayload{X: int16(c.local.Inputs.X), Y: int16(c.local.Inputs.Y)}
		c.pastPlayerQueue = append(c.pastPlayerQueue, pastPlayerSample{
			at:       now,
			position: c.local.Position,
			radius:   c.local.Radius,
		})
	}
	c.mu.Unlock()

	if !connected || !synced {
		return
	}
	if addr != nil {
		_ = c.transport.Send(addr, wire.EncodeInputs(payload))
	}
}

// SetLocalInputs updates the local player's pointer-relative control
// vector, normally driven by an external input-capture layer out of scope
// for this package.
func (c *Client) SetLocalInputs(x, y float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.local != nil {
		c.local.Inputs = world.Inputs{X: x, Y: y}
	}
}

// LocalPlayer returns a copy of the client's current predicted local state.
func (c *Client) LocalPlayer() world.Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.local == nil {
		return world.Player{}
	}
	return *c.local
}
