// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import "time"

// Tunable constants grounded in the original implementation's config
// module. These are the defaults; cmd/agarnet-server and cmd/agarnet-client
// may override a subset via flags or config file (see internal/config).
const (
	MaxNameLength = 12

	StartRadius = float32(50)
	MaxRadius   = float32(1200)

	MinOrbRadius = float32(18)
	MaxOrbRadius = float32(20)

	EatValueOffset = float32(10)

	BaseVelocity        = float32(500) // units/sec
	VelocitySlowFactor  = float32(0.4)
	ViewGrowthRate      = float32(0.30)
	CollisionMargin     = float32(0.6)
	FOVMargin           = float32(1.1)
	GravityFactor       = float32(2.0)

	BaseWidth  = float32(2560)
	BaseHeight = float32(1440)

	CellWidth  = float32(600)
	CellHeight = float32(600)

	SERVER_GAME_REFRESH_RATE = 50 // Hz

	ServerSyncInterval   = time.Second / 20
	ClientSyncInterval   = time.Second / 60
	AckInterval          = time.Second / 10
	TimeoutLimit         = 5 * time.Second
	PlayerInterruptLimit = 1 * time.Second
	StatsProbeInterval   = 300 * time.Millisecond
	LagSpikeInterval     = 10 * time.Second

	PlayerLimit = 100

	NetworkPort = 5562

	BotInputUpdateInterval = 2 * time.Second

	// MaxDatagramSize bounds a single UDP payload this server will ever
	// write, comfortably under the common 1500-byte Ethernet MTU once IP
	// and UDP headers are accounted for. UPD_ORBS frames that would
	// exceed it are split into multiple shards, each with its own
	// packet_id, rather than risk IP fragmentation or a dropped send.
	MaxDatagramSize = 1200
)

// BotNames are assigned cyclically to bot peers by spawn index.
var BotNames = [...]string{
	"Google", "Apple", "Facebook", "Amazon", "Microsoft", "Twitter", "Netflix", "Uber",
}

var (
	PlayerDisconnectedMessage = "Player Disconnected."
	NotConnectedMessage       = "Server Connection Interrupted."
	ServerFullMessage         = "Server is full. Try again later."
)
