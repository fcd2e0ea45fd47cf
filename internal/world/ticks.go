// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import (
	"fmt"
	"math"
	"time"
)

const (
	// TickPeriod is the fixed authoritative simulation step: 1/SERVER_GAME_REFRESH_RATE.
	TickPeriod     = time.Second / time.Duration(SERVER_GAME_REFRESH_RATE)
	TicksPerSecond = Ticks(time.Second / TickPeriod)
	TicksMax       = Ticks(math.MaxUint16)
)

// Ticks is a time measured in simulation updates. It wraps after 65535
// ticks (~21.8 minutes at 50Hz), which is acceptable because nothing in
// this system compares absolute tick counts across a wrap boundary longer
// than TIMEOUT_LIMIT.
type Ticks uint16

func ToTicks(seconds float32) Ticks {
	return Ticks(seconds * float32(float64(time.Second)/float64(TickPeriod)))
}

func (ticks Ticks) Float() float32 {
	return float32(ticks) * float32(float64(TickPeriod)/float64(time.Second))
}

func (ticks Ticks) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%f", ticks.Float())), nil
}
