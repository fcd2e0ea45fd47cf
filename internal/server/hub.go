// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server implements the authoritative simulation: the spatial
// grid, the fixed-tick game loop, per-player view diffing, bot peers, and
// the UDP-facing connection lifecycle built on internal/transport.
package server

import (
	"context"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofrs/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/orbfield/agarnet/internal/grid"
	"github.com/orbfield/agarnet/internal/transport"
	"github.com/orbfield/agarnet/internal/wire"
	"github.com/orbfield/agarnet/internal/world"
)

// Config bundles the tunables a deployment can override.
type Config struct {
	PlayerLimit    int
	BotCount       int
	TargetOrbCount int
	MapWidth       float32
	MapHeight      float32
	Port           int
}

func DefaultConfig() Config {
	return Config{
		PlayerLimit:    world.PlayerLimit,
		BotCount:       8,
		TargetOrbCount: 400,
		MapWidth:       6000,
		MapHeight:      6000,
		Port:           world.NetworkPort,
	}
}

// Hub owns the whole simulation: the grid, every player and orb, every
// connected peer's transport record, and the goroutines that drive ticks,
// the leaderboard, and connection bookkeeping. There is exactly one Hub per
// running server process.
type Hub struct {
	cfg       Config
	instance  uuid.UUID
	log       *log.Logger
	transport *transport.Transport

	mu          sync.Mutex // guards players, orbs, grid, peerByID, playerViews, nextPlayer, nextBot
	grid        *grid.Grid
	players     map[world.PlayerID]*world.Player
	orbs        map[world.OrbID]*world.Orb
	peerByID    map[world.PlayerID]*transport.Peer
	nextPlayer  int32
	nextBot     int32
	nextOrb     uint32
	playerViews map[world.PlayerID]map[world.OrbID]struct{}

	deaths []deathRecord

	startedAt time.Time
	tickCount uint64
	timings   map[string]time.Duration
}

// New constructs a Hub bound to conn. Call Run to start its goroutines.
func New(cfg Config, conn *net.UDPConn, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	id, _ := uuid.NewV4()
	h := &Hub{
		cfg:         cfg,
		instance:    id,
		log:         logger,
		transport:   transport.New(conn, transport.DefaultConfig(), logger),
		grid:        grid.New(cfg.MapWidth, cfg.MapHeight, world.CellWidth, world.CellHeight),
		players:     make(map[world.PlayerID]*world.Player),
		orbs:        make(map[world.OrbID]*world.Orb),
		peerByID:    make(map[world.PlayerID]*transport.Peer),
		playerViews: make(map[world.PlayerID]map[world.OrbID]struct{}),
		timings:     make(map[string]time.Duration),
		startedAt:   time.Now(),
	}
	h.wireHandlers()
	return h
}

func (h *Hub) fieldSize() world.Vec2f {
	return world.Vec2f{X: h.cfg.MapWidth, Y: h.cfg.MapHeight}
}

func (h *Hub) timeFunction(name string, start time.Time) {
	h.mu.Lock()
	h.timings[name] = time.Since(start)
	h.mu.Unlock()
}

// Run starts every Hub goroutine (transport reader/writer/ack-scheduler/stats, sim tick,
// leaderboard/sync ticker, bot AI ticker) and blocks until ctx is cancelled
// or one of them fails.
func (h *Hub) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return h.transport.Run(ctx) })
	g.Go(func() error { return h.tickLoop(ctx) })
	g.Go(func() error { return h.syncLoop(ctx) })
	g.Go(func() error { return h.botLoop(ctx) })

	h.spawnBots()
	h.log.Info("server started", "instance", h.instance, "port", h.cfg.Port, "bots", h.cfg.BotCount)

	return g.Wait()
}

func (h *Hub) tickLoop(ctx context.Context) error {
	ticker := time.NewTicker(world.TickPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			start := time.Now()
			h.tick(1.0 / float32(world.SERVER_GAME_REFRESH_RATE))
			h.timeFunction("tick", start)
			h.tickCount++
		}
	}
}

func (h *Hub) syncLoop(ctx context.Context) error {
	ticker := time.NewTicker(world.ServerSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			start := time.Now()
			h.sync()
			h.timeFunction("sync", start)
		}
	}
}

func (h *Hub) botLoop(ctx context.Context) error {
	ticker := time.NewTicker(world.BotInputUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.updateBotInputs()
		}
	}
}

func (h *Hub) wireHandlers() {
	h.transport.OnCode(wire.CodeConnect, h.handleConnect)
	h.transport.OnCode(wire.CodeInputs, h.handleInputs)
	h.transport.OnCode(wire.CodeAck, h.handleAck)
	h.transport.OnCode(wire.CodePing, h.handlePing)
	h.transport.OnCode(wire.CodeDisconnect, h.handleDisconnect)
}

func (h *Hub) rand() *rand.Rand { return world.Rand() }
func (h *Hub) putRand(r *rand.Rand) { world.PutRand(r) }

// deathRecord carries the transport.Peer captured at the moment of death,
// since by the time deaths are flushed the hub's peerByID map has already
// been re-keyed to the victim's freshly allocated PlayerID.
type deathRecord struct {
	OldID world.PlayerID
	Peer  *transport.Peer
}
