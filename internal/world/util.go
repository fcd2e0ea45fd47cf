// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import (
	"math/rand"
	"sync"
	"time"
)

var randPool = sync.Pool{
	New: func() interface{} {
		return rand.New(rand.NewSource(time.Now().UnixNano()))
	},
}

// Rand borrows a goroutine-local *rand.Rand from the pool. Callers must
// return it with PutRand.
func Rand() *rand.Rand {
	return randPool.Get().(*rand.Rand)
}

func PutRand(r *rand.Rand) {
	randPool.Put(r)
}

// Prob has a p probability of returning true.
func Prob(r *rand.Rand, p float64) bool {
	return r.Float64() < p
}

func pseudoRand32() uint32 {
	r := Rand()
	defer PutRand(r)
	return r.Uint32()
}

func UnixMillis() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond/time.Nanosecond)
}
