// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

// Inputs is a player's most recently received control vector: the pointer
// position relative to the player's own position, already in world units.
// A zero Inputs means "stop" (no net direction).
type Inputs struct {
	X, Y float32
}

// DefaultInputs is substituted for a player's actual inputs once their
// connection has been silent for PlayerInterruptLimit, so a lagging peer
// coasts to a stop instead of running off under stale control data.
var DefaultInputs = Inputs{}
