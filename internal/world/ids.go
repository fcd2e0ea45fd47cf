// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import "strconv"

// PlayerID identifies a connected peer (human or bot) for the lifetime of
// one life. A player that dies and respawns is allocated a new PlayerID,
// matching the original implementation's re-keying on death.
type PlayerID int32

// PlayerIDInvalid never appears as a real player.
const PlayerIDInvalid = PlayerID(0)

// IsBot reports whether id belongs to a bot peer. Bots and humans share the
// Player type and are discriminated only by the sign of their id.
func (id PlayerID) IsBot() bool {
	return id < 0
}

func (id PlayerID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// OrbID identifies a collectible orb for its lifetime.
type OrbID uint32

// OrbIDInvalid never appears as a real orb.
const OrbIDInvalid = OrbID(0)

func (id OrbID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// AllocatePlayerID returns a fresh, currently-unused PlayerID with the
// given sign (negative for bots, positive for humans), mirroring the
// original server's forever-incrementing player_id counter but scoped so
// bots and humans never collide.
func AllocatePlayerID(next *int32, bot bool) PlayerID {
	*next++
	if bot {
		return PlayerID(-*next)
	}
	return PlayerID(*next)
}

// AllocateOrbID returns a unique OrbID not currently in use, drawing
// uniformly random ids and rejecting used ones; it panics after 10 tries.
func AllocateOrbID(used func(id OrbID) bool) (uniqueID OrbID) {
	for i := 0; i < 10; i++ {
		uniqueID = OrbID(pseudoRand32())
		if uniqueID == OrbIDInvalid {
			continue
		}
		if !used(uniqueID) {
			return uniqueID
		}
	}
	panic("could not find unique OrbID in 10 tries")
}
