// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/orbfield/agarnet/internal/world"
)

// DegradedNetwork holds the runtime knobs used to demonstrate the
// reconciliation and reliability logic under a bad connection. All three
// are stored as atomic int64 fixed point so they can be adjusted
// concurrently from a debug control path without a mutex.
type DegradedNetwork struct {
	addedPingMicros   atomic.Int64 // seconds * 1e6, range [0, 0.7]
	packetLossPermil  atomic.Int64 // percent * 10, range [0, 1000]
	lagSpikeDurMicros atomic.Int64 // seconds * 1e6, range [0, 5]
}

const (
	maxAddedPing  = 700 * time.Millisecond
	maxLossPermil = 1000
	maxSpikeDur   = 5 * time.Second

	pingStep  = 300 * time.Microsecond * 1000 // 0.3s step per call's worth of held key, matches the original's ramp feel
	lossStep  = 3                             // 0.3% per call (stored as permil*10 => step of 3 == 0.3%)
	spikeStep = 2 * time.Millisecond * 1000
)

func (d *DegradedNetwork) AddedPing() time.Duration {
	return time.Duration(d.addedPingMicros.Load()) * time.Microsecond
}

func (d *DegradedNetwork) PacketLossRate() float64 {
	return float64(d.packetLossPermil.Load()) / 1000
}

func (d *DegradedNetwork) LagSpikeDuration() time.Duration {
	return time.Duration(d.lagSpikeDurMicros.Load()) * time.Microsecond
}

func (d *DegradedNetwork) IncreasePing() { d.bump(&d.addedPingMicros, int64(pingStep/time.Microsecond), int64(maxAddedPing/time.Microsecond)) }
func (d *DegradedNetwork) DecreasePing() { d.bump(&d.addedPingMicros, -int64(pingStep/time.Microsecond), int64(maxAddedPing/time.Microsecond)) }

func (d *DegradedNetwork) IncreaseLoss() { d.bump(&d.packetLossPermil, lossStep, maxLossPermil) }
func (d *DegradedNetwork) DecreaseLoss() { d.bump(&d.packetLossPermil, -lossStep, maxLossPermil) }

func (d *DegradedNetwork) IncreaseSpike() {
	d.bump(&d.lagSpikeDurMicros, int64(spikeStep/time.Microsecond), int64(maxSpikeDur/time.Microsecond))
}
func (d *DegradedNetwork) DecreaseSpike() {
	d.bump(&d.lagSpikeDurMicros, -int64(spikeStep/time.Microsecond), int64(maxSpikeDur/time.Microsecond))
}

func (d *DegradedNetwork) bump(v *atomic.Int64, delta, max int64) {
	for {
		old := v.Load()
		next := old + delta
		if next < 0 {
			next = 0
		}
		if next > max {
			next = max
		}
		if v.CompareAndSwap(old, next) {
			return
		}
	}
}

// ShouldDropSend and ShouldDropRecv model the original's
// _simulate_connection_instability: during a lag spike window every send
// and every recv fails outright; otherwise sends fail independently at
// PacketLossRate.
func (d *DegradedNetwork) inLagSpike(now time.Time) bool {
	spike := d.LagSpikeDuration()
	if spike <= 0 {
		return false
	}
	phase := now.Unix() % int64(world.LagSpikeInterval/time.Second)
	return time.Duration(phase)*time.Second < spike
}

func (d *DegradedNetwork) ShouldDropSend(now time.Time, r *rand.Rand) bool {
	if d.inLagSpike(now) {
		return true
	}
	return world.Prob(r, d.PacketLossRate())
}

func (d *DegradedNetwork) ShouldDropRecv(now time.Time) bool {
	return d.inLagSpike(now)
}
