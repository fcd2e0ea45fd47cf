// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	"net"
	"testing"
	"time"

	"github.com/orbfield/agarnet/internal/wire"
	"github.com/orbfield/agarnet/internal/world"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	c := New(conn, nil)
	c.localID = 1
	c.local = world.NewPlayer(1, "me", world.Vec2f{X: 0, Y: 0}, world.Vec2f{X: 1000, Y: 1000}, 0)
	return c
}

// Scenario: past-player-gravity — the correction nudges local position by
// GravityFactor*dt*(server − past_player), never (server − local). Inputs
// are left at zero so Move is a no-op and the tick's entire position delta
// is attributable to the correction term, which distinguishes the two
// formulas unambiguously.
func TestClient_GravityCorrectionUsesPastPlayerNotLocal(t *testing.T) {
	c := newTestClient(t)
	c.synced = true
	c.local.Position = world.Vec2f{X: 0, Y: 0}
	c.serverSelf = wire.PlayerSnapshot{ID: 1, X: 100, Y: 0, Radius: 50}
	c.pastPlayer = &pastPlayerSample{position: world.Vec2f{X: 40, Y: 0}, radius: 45}

	const dt = float32(1.0 / 50)
	c.Tick(dt)

	want := world.Vec2f{}.AddScaled(world.Vec2f{X: 60, Y: 0}, world.GravityFactor*dt)
	if c.local.Position != want {
		t.Fatalf("expected correction toward server-minus-past-player %+v, got %+v", want, c.local.Position)
	}

	if !c.trackers["server"].Active || c.trackers["server"].Position != (world.Vec2f{X: 100, Y: 0}) {
		t.Fatalf("expected server tracker at the server's reported position, got %+v", c.trackers["server"])
	}
	if !c.trackers["past"].Active || c.trackers["past"].Position != (world.Vec2f{X: 40, Y: 0}) {
		t.Fatalf("expected past tracker at the delayed past-player position, not the server's, got %+v", c.trackers["past"])
	}
}

// Scenario: past-player-gravity — while desynced, no correction is applied
// at all (there is no trustworthy past-player sample to compare against).
func TestClient_GravityCorrectionSkippedWhileDesynced(t *testing.T) {
	c := newTestClient(t)
	c.synced = false
	c.local.Position = world.Vec2f{X: 0, Y: 0}
	c.serverSelf = wire.PlayerSnapshot{ID: 1, X: 100, Y: 0, Radius: 50}
	c.pastPlayer = &pastPlayerSample{position: world.Vec2f{X: 40, Y: 0}, radius: 45}

	c.Tick(1.0 / 50)

	if c.local.Position != (world.Vec2f{X: 0, Y: 0}) {
		t.Fatalf("expected no correction while desynced, got %+v", c.local.Position)
	}
	if c.trackers["server"].Active || c.trackers["past"].Active {
		t.Fatal("expected both debug trackers inactive while desynced")
	}
}

// Scenario: past-player-gravity — past_player is popped from the queue at
// "server time minus half a sync interval", and the gap between that
// delayed sample and the server's current report stays bounded rather than
// growing with how long the connection has been running.
func TestClient_PastPlayerAdvancesWithBoundedLag(t *testing.T) {
	c := newTestClient(t)
	base := time.Now()

	// Five local trajectory samples, one per ServerSyncInterval, advancing
	// at a constant 100 units per sync, as SyncInputs would append them for
	// a player holding a constant input.
	for i := 0; i < 5; i++ {
		c.pastPlayerQueue = append(c.pastPlayerQueue, pastPlayerSample{
			at:       base.Add(time.Duration(i) * world.ServerSyncInterval),
			position: world.Vec2f{X: float32(i * 100), Y: 0},
			radius:   world.StartRadius,
		})
	}

	// A steady low-latency connection: the server's estimated clock trails
	// wall time by a constant 20ms round trip.
	const rtt = 20 * time.Millisecond
	c.serverTimeEstimate = base.Add(3*world.ServerSyncInterval - rtt)
	c.advancePastPlayerLocked()

	if c.pastPlayer == nil {
		t.Fatal("expected a past-player sample to have been popped")
	}
	if c.pastPlayer.position.X != 200 {
		t.Fatalf("expected the last eligible sample to become past_player, got %+v", c.pastPlayer.position)
	}
	if len(c.pastPlayerQueue) != 2 {
		t.Fatalf("expected the two newer, not-yet-eligible samples to remain queued, got %d", len(c.pastPlayerQueue))
	}

	serverPos := world.Vec2f{X: 300, Y: 0}
	if gap := serverPos.Distance(c.pastPlayer.position); gap <= 0 || gap > 150 {
		t.Fatalf("expected a small, bounded past-player/server gap, got %v", gap)
	}
}

// Scenario: the unsynced-to-synced edge snaps local position and color to
// the server's and clears the past-player queue, rather than letting
// gravity correction drift across whatever happened while desynced.
func TestClient_ResyncSnapsLocalToServer(t *testing.T) {
	c := newTestClient(t)
	c.local.Position = world.Vec2f{X: 999, Y: 999}
	c.local.ColorIdx = 0
	c.pastPlayerQueue = []pastPlayerSample{{position: world.Vec2f{X: 1, Y: 1}}}
	c.serverSelf = wire.PlayerSnapshot{ID: 1, X: 10, Y: 20, ColorIdx: 3, Radius: 50}
	c.selfInRoster = true
	c.serverTimeEstimate = time.Now()

	c.verifyConnectionLocked(time.Now())

	if !c.synced {
		t.Fatal("expected client to become synced")
	}
	if c.local.Position != (world.Vec2f{X: 10, Y: 20}) || c.local.ColorIdx != 3 {
		t.Fatalf("expected local player snapped to server (x,y,color), got %+v", c.local)
	}
	if c.pastPlayer != nil || len(c.pastPlayerQueue) != 0 {
		t.Fatal("expected past-player state cleared on resync")
	}
}

// Scenario: a DEATH frame marks the client unsynced and discards the
// past-player queue, so the next resync starts from a clean snap rather
// than correcting toward pre-death trajectory samples.
func TestClient_DeathMarksUnsyncedAndDiscardsPastPlayerQueue(t *testing.T) {
	c := newTestClient(t)
	c.synced = true
	c.pastPlayerQueue = []pastPlayerSample{{position: world.Vec2f{X: 1, Y: 1}}}

	frame := wire.EncodeDeath(wire.DeathPayload{PacketID: 9, NewPlayerID: 2})
	c.handleDeath(nil, wire.CodeDeath, frame)

	if c.synced {
		t.Fatal("expected death to mark the client unsynced")
	}
	if len(c.pastPlayerQueue) != 0 {
		t.Fatal("expected death to discard the past-player queue")
	}
}

// Scenario: heartbeat-reordering — an UPD_PLAYERS frame with an older
// server_time than the newest buffered snapshot must be dropped rather
// than applied, preserving monotonicity.
func TestClient_DropsOutOfOrderSnapshot(t *testing.T) {
	c := newTestClient(t)

	newer := wire.EncodeUpdPlayers(wire.UpdPlayersPayload{ServerTime: 10, Players: []wire.PlayerSnapshot{{ID: 1, X: 5, Y: 5, Radius: 50}}})
	older := wire.EncodeUpdPlayers(wire.UpdPlayersPayload{ServerTime: 3, Players: []wire.PlayerSnapshot{{ID: 1, X: 999, Y: 999, Radius: 50}}})

	c.handleUpdPlayers(nil, wire.CodeUpdPlayers, newer)
	c.handleUpdPlayers(nil, wire.CodeUpdPlayers, older)

	if len(c.serverSnapshots) != 1 {
		t.Fatalf("expected out-of-order snapshot to be dropped, buffer has %d entries", len(c.serverSnapshots))
	}
	if c.serverSnapshots[0].serverTime != 10 {
		t.Fatalf("expected newest snapshot retained, got serverTime=%d", c.serverSnapshots[0].serverTime)
	}
}

// Scenario: heartbeat-reordering — frames with pulses 5, 3, 7, 4, 6 arrive
// in that order; only 5 and 7 are ever newer than the buffer's tail, so the
// applied set is {5, 7} and the buffer's heartbeat ends at 7.
func TestClient_DropsOutOfOrderSnapshot_FullSequence(t *testing.T) {
	c := newTestClient(t)

	for _, pulse := range []world.Ticks{5, 3, 7, 4, 6} {
		frame := wire.EncodeUpdPlayers(wire.UpdPlayersPayload{
			ServerTime: pulse,
			Players:    []wire.PlayerSnapshot{{ID: 1, X: uint16(pulse), Y: 0, Radius: 50}},
		})
		c.handleUpdPlayers(nil, wire.CodeUpdPlayers, frame)
	}

	var applied []world.Ticks
	for _, snap := range c.serverSnapshots {
		applied = append(applied, snap.serverTime)
	}
	if len(applied) != 2 || applied[0] != 5 || applied[1] != 7 {
		t.Fatalf("expected applied set {5, 7}, got %v", applied)
	}
}

// Scenario: liveness — once the server has been silent past TimeoutLimit,
// the next outbound sync declares the session disconnected.
func TestClient_DeclaresDisconnectAfterTimeout(t *testing.T) {
	c := newTestClient(t)
	c.connected = true
	c.serverTimeEstimate = time.Now().Add(-world.TimeoutLimit - time.Second)

	c.SyncInputs()

	if c.IsConnected() {
		t.Fatal("expected client to declare disconnect after TimeoutLimit of silence")
	}
}

func TestClient_ConnectionStatsReflectsDegradedKnobs(t *testing.T) {
	c := newTestClient(t)
	c.serverSnapshots = append(c.serverSnapshots, snapshot{
		serverTime: 1,
		players:    []wire.PlayerSnapshot{{ID: 1}},
		ping:       42,
	})
	c.Degraded().IncreaseLoss()

	stats := c.ConnectionStats()
	if stats.LatencyMillis != 42 {
		t.Fatalf("expected latency 42, got %d", stats.LatencyMillis)
	}
	if stats.PacketLossRate <= 0 {
		t.Fatalf("expected nonzero packet loss rate after IncreaseLoss, got %v", stats.PacketLossRate)
	}
}

func TestClient_UpdOrbs_AtMostOnceApplication(t *testing.T) {
	c := newTestClient(t)

	frame := wire.EncodeUpdOrbs(wire.UpdOrbsPayload{
		PacketID: 7,
		Added:    []wire.OrbSnapshot{{ID: 1, X: 10, Y: 10, Radius: 19, ColorIdx: 0}},
	})

	c.handleUpdOrbs(nil, wire.CodeUpdOrbs, frame)
	if len(c.orbs) != 1 {
		t.Fatalf("expected orb applied, got %d orbs", len(c.orbs))
	}

	// Simulate a retransmit of the same packet id after the orb was
	// independently removed by later state; it must not reappear.
	delete(c.orbs, 1)
	c.handleUpdOrbs(nil, wire.CodeUpdOrbs, frame)
	if len(c.orbs) != 0 {
		t.Fatalf("expected retransmit to be ignored (at-most-once), got %d orbs", len(c.orbs))
	}
}
