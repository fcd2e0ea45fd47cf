// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"net/http"

	"github.com/dustin/go-humanize"
	jsoniter "github.com/json-iterator/go"
)

var statusJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// statusSnapshot is the shape served at /status. It is not part of the
// game wire protocol; it exists purely for operator visibility into a
// running process.
type statusSnapshot struct {
	Instance     string           `json:"instance"`
	UptimeHuman  string           `json:"uptime"`
	PlayerCount  int              `json:"player_count"`
	BotCount     int              `json:"bot_count"`
	OrbCount     int              `json:"orb_count"`
	MapWidth     float32          `json:"map_width"`
	MapHeight    float32          `json:"map_height"`
	TickCount    uint64           `json:"tick_count"`
	TimingsMicro map[string]int64 `json:"timings_micro"`
	BandwidthBps float64          `json:"bandwidth_bps"`
}

func (h *Hub) snapshot() statusSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	bots := 0
	for id := range h.players {
		if id.IsBot() {
			bots++
		}
	}

	timings := make(map[string]int64, len(h.timings))
	for name, d := range h.timings {
		timings[name] = d.Microseconds()
	}

	return statusSnapshot{
		Instance:     h.instance.String(),
		UptimeHuman:  humanize.Time(h.startedAt),
		PlayerCount:  len(h.players),
		BotCount:     bots,
		OrbCount:     len(h.orbs),
		MapWidth:     h.cfg.MapWidth,
		MapHeight:    h.cfg.MapHeight,
		TickCount:    h.tickCount,
		TimingsMicro: timings,
		BandwidthBps: h.transport.Bandwidth(),
	}
}

// StatusHandler serves the jsoniter-encoded status snapshot. Registered by
// cmd/agarnet-server on a debug-only net/http mux, never on the game port.
func (h *Hub) StatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		enc := statusJSON.NewEncoder(w)
		_ = enc.Encode(h.snapshot())
	}
}
