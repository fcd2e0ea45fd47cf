// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

// Tracker is a named, colored marker kept locally by the client for its
// debug overlay (e.g. a past-player ghost position, or a debug waypoint);
// trackers are never sent over the wire. Trackers carry no physics and are
// never collision targets.
type Tracker struct {
	Title    string
	Position Vec2f
	Radius   float32
	Color    Color
	Active   bool
}

func NewTracker(title string, color Color) *Tracker {
	return &Tracker{Title: title, Color: color, Active: true}
}
