// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package client

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/orbfield/agarnet/internal/wire"
	"github.com/orbfield/agarnet/internal/world"
)

var viewModelJSON = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	MarshalFloatWith6Digits: true,
}.Froze()

// ViewModel is the renderer-facing snapshot of everything the client
// currently believes about the world. It is never sent over the wire —
// only the binary codec in internal/wire crosses the network — this
// exists purely so a renderer or a debug tool can consume one JSON blob.
type ViewModel struct {
	Local    world.Player          `json:"local"`
	Others   []wire.PlayerSnapshot `json:"others"`
	Orbs     []wire.OrbSnapshot    `json:"orbs"`
	Leaders  []string              `json:"leaders"`
	Trackers []world.Tracker       `json:"trackers"`
	Stats    ConnectionStats       `json:"stats"`
}

// ViewModel snapshots the client's current state for rendering or
// debugging. Safe for concurrent use.
func (c *Client) ViewModel() ViewModel {
	c.mu.Lock()
	defer c.mu.Unlock()

	vm := ViewModel{Leaders: c.leaders}
	if c.local != nil {
		vm.Local = *c.local
	}
	vm.Others = make([]wire.PlayerSnapshot, 0, len(c.others))
	for _, p := range c.others {
		vm.Others = append(vm.Others, p)
	}
	vm.Orbs = make([]wire.OrbSnapshot, 0, len(c.orbs))
	for _, o := range c.orbs {
		vm.Orbs = append(vm.Orbs, o)
	}
	vm.Trackers = make([]world.Tracker, 0, len(c.trackers))
	for _, tr := range c.trackers {
		vm.Trackers = append(vm.Trackers, *tr)
	}
	vm.Stats = c.connectionStatsLocked()
	return vm
}

// MarshalJSON encodes the client's current ViewModel via jsoniter.
func (c *Client) MarshalJSON() ([]byte, error) {
	return viewModelJSON.Marshal(c.ViewModel())
}
