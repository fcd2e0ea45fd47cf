// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"container/heap"
	"sort"

	"github.com/orbfield/agarnet/internal/world"
)

// playerSet is a min-heap of *world.Player by radius (this game's score),
// used only by topPlayersHeap.
type playerSet []*world.Player

func (s playerSet) Len() int            { return len(s) }
func (s playerSet) Less(i, j int) bool  { return s[i].Radius < s[j].Radius }
func (s playerSet) Swap(i, j int)       { s[i], s[j] = s[j], s[i] }
func (s *playerSet) Push(x interface{}) { *s = append(*s, x.(*world.Player)) }
func (s *playerSet) Pop() interface{} {
	old := *s
	n := len(old)
	item := old[n-1]
	*s = old[:n-1]
	return item
}

// topPlayers returns the top count players by radius, highest first.
// Mirrors the teacher's dual insertion/heap strategy: plain insertion is
// faster for the small counts this leaderboard actually uses (top 5), a
// heap amortizes better if count ever grows large.
func topPlayers(players []*world.Player, count int) []*world.Player {
	if count <= 20 {
		return topPlayersInsert(players, count)
	}
	return topPlayersHeap(players, count)
}

func topPlayersHeap(players []*world.Player, count int) []*world.Player {
	set := make(playerSet, len(players))
	copy(set, players)
	heap.Init(&set)

	// heap.Init builds a min-heap; popping gives ascending order, so we
	// want the largest `count` — pop the smallest len-count times first.
	for set.Len() > count {
		heap.Pop(&set)
	}
	top := make([]*world.Player, len(set))
	copy(top, set)
	sort.Slice(top, func(i, j int) bool { return top[i].Radius > top[j].Radius })
	return top
}

func topPlayersInsert(players []*world.Player, count int) []*world.Player {
	n := len(players)
	if count > n {
		count = n
	}
	sorted := make([]*world.Player, n)
	copy(sorted, players)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Radius > sorted[j].Radius })
	return sorted[:count]
}

// leaderNames returns up to 5 names, highest-radius first, matching the
// original's `self.leaders = sort_players[-5:]`.
func leaderNames(players []*world.Player) []string {
	top := topPlayers(players, 5)
	names := make([]string, len(top))
	for i, p := range top {
		names[i] = p.Name
	}
	return names
}
