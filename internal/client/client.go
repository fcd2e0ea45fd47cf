// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package client implements the peer side of the protocol: an unbounded
// local-prediction tick, a bounded jitter buffer of server snapshots, and
// the gravity-correction reconciliation step that pulls local state toward
// the server's without visibly snapping.
package client

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/orbfield/agarnet/internal/transport"
	"github.com/orbfield/agarnet/internal/wire"
	"github.com/orbfield/agarnet/internal/world"
)

// snapshot is one server roster update, kept in a small jitter buffer so
// reconciliation can apply updates in server-time order even if UDP
// delivers them out of order.
type snapshot struct {
	serverTime world.Ticks
	receivedAt time.Time
	players    []wire.PlayerSnapshot
	leaders    []string
	ping       uint16
}

// pastPlayerSample is one entry of the local player's own delayed
// trajectory: its position and radius at a given wall-clock moment,
// recorded every sync while synced. Gravity correction reconciles against
// the sample nearest "server time minus half a server sync interval"
// rather than against the local player's current position, since comparing
// server-now to local-now is the unstable form the position sync rationale
// warns against.
type pastPlayerSample struct {
	at       time.Time
	position world.Vec2f
	radius   float32
}

// Client is one connected peer's local state: its own predicted position,
// the most recent reconciled snapshot of every other player, and the orb
// view maintained by at-most-once application of reliable UPD_ORBS deltas.
type Client struct {
	log       *log.Logger
	transport *transport.Transport
	serverAddr *net.UDPAddr

	mu           sync.Mutex
	localID      world.PlayerID
	local        *world.Player
	connected    bool
	lastSyncedAt time.Time
	lastHeardAt  time.Time

	// serverSnapshots holds the most recent few UPD_PLAYERS updates so
	// reconciliation can apply them in server-pulse order even if UDP
	// delivers them out of order. This is the inbound roster jitter buffer,
	// distinct from pastPlayerQueue below, which is the local player's own
	// delayed trajectory.
	serverSnapshots []snapshot

	// synced mirrors the reconciliation state machine: true once the
	// server's estimated clock is within PlayerInterruptLimit of wall time
	// and the local player still appears in the server's roster. Local
	// prediction and outbound inputs are only trusted while synced.
	synced bool

	// serverTimeEstimate is this client's best guess at the server's wall
	// clock, refreshed from each UPD_PLAYERS frame's round trip estimate
	// and never allowed to regress.
	serverTimeEstimate time.Time

	// serverSelf and selfInRoster cache the local player's entry from the
	// most recently applied server roster, used both for the synced check
	// and for the position/color snap on the unsynced-to-synced edge.
	serverSelf   wire.PlayerSnapshot
	selfInRoster bool

	// pastPlayerQueue is the local player's own (position, radius) history,
	// appended once per sync while synced. pastPlayer is the most recently
	// popped entry, advanced as the estimated server time moves forward.
	pastPlayerQueue []pastPlayerSample
	pastPlayer      *pastPlayerSample

	orbs       map[world.OrbID]wire.OrbSnapshot
	ackedUpTo  map[uint32]struct{}

	others map[world.PlayerID]wire.PlayerSnapshot
	leaders []string

	// trackers are debug overlays, never sent over the wire: "server" is
	// the most recently reported authoritative position for the local
	// player, "past" is the delayed past-player target gravity correction
	// pulls the local player's predicted position toward.
	trackers map[string]*world.Tracker

	connectAcked chan struct{}
}

// New constructs a Client bound to conn, not yet connected to any server.
func New(conn *net.UDPConn, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	c := &Client{
		log:          logger,
		transport:    transport.New(conn, transport.DefaultConfig(), logger),
		orbs:         make(map[world.OrbID]wire.OrbSnapshot),
		ackedUpTo:    make(map[uint32]struct{}),
		others:       make(map[world.PlayerID]wire.PlayerSnapshot),
		trackers: map[string]*world.Tracker{
			"server": world.NewTracker("server", world.Color{R: 255, G: 255, B: 255}),
			"past":   world.NewTracker("past", world.Color{R: 255, G: 0, B: 0}),
		},
		connectAcked: make(chan struct{}, 1),
	}
	c.wireHandlers()
	return c
}

func (c *Client) wireHandlers() {
	c.transport.OnCode(wire.CodeConnect, c.handleConnectAck)
	c.transport.OnCode(wire.CodeUpdPlayers, c.handleUpdPlayers)
	c.transport.OnCode(wire.CodeUpdOrbs, c.handleUpdOrbs)
	c.transport.OnCode(wire.CodeDeath, c.handleDeath)
	c.transport.OnCode(wire.CodePing, c.handlePing)
	c.transport.OnCode(wire.CodeDisconnect, c.handleServerDisconnect)
}

// Run starts the transport's reader/ack-scheduler goroutines. It must be
// running before Connect is called.
func (c *Client) Run(ctx context.Context) error {
	return c.transport.Run(ctx)
}

// Degraded exposes the simulated-network knobs for a debug UI to adjust.
func (c *Client) Degraded() *transport.DegradedNetwork { return c.transport.Degraded() }

// IsConnected reports whether a CONNECT has been acknowledged and no
// DISCONNECT or timeout has since torn the session down.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// NotConnectedReason returns a user-presentable message for why the client
// is not currently connected, matching the original's fixed strings.
func (c *Client) NotConnectedReason() string {
	return world.NotConnectedMessage
}
