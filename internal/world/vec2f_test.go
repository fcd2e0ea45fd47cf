// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package world

import (
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
)

func approx(a, b float32) bool {
	return math32.Abs(a-b) < 0.02
}

func TestVec2f_Distance(t *testing.T) {
	tests := []struct {
		a, b Vec2f
		want float32
	}{
		{Vec2f{0, 0}, Vec2f{3, 4}, 5},
		{Vec2f{1, 1}, Vec2f{1, 1}, 0},
		{Vec2f{-2, 0}, Vec2f{2, 0}, 4},
	}

	for _, test := range tests {
		if got := test.a.Distance(test.b); !approx(got, test.want) {
			t.Errorf("%v.Distance(%v) = %f, want %f", test.a, test.b, got, test.want)
		}
	}
}

func TestVec2f_ClampToBounds(t *testing.T) {
	bounds := Vec2f{X: 100, Y: 200}
	tests := []struct {
		in, want Vec2f
	}{
		{Vec2f{-5, -5}, Vec2f{0, 0}},
		{Vec2f{500, 500}, Vec2f{99, 199}},
		{Vec2f{50, 50}, Vec2f{50, 50}},
	}
	for _, test := range tests {
		if got := test.in.ClampToBounds(bounds); got != test.want {
			t.Errorf("%v.ClampToBounds(%v) = %v, want %v", test.in, bounds, got, test.want)
		}
	}
}

func BenchmarkVec2f_Distance(b *testing.B) {
	const count = 1024
	vectors := make([]Vec2f, count)
	for i := range vectors {
		vectors[i] = Vec2f{X: rand.Float32()*100 - 50, Y: rand.Float32()*100 - 50}
	}
	b.ResetTimer()

	var acc float32
	for i := 0; i < b.N; i++ {
		v := vectors[i&(count-1)]
		acc += v.Distance(vectors[(i+1)&(count-1)])
	}
	_ = acc
}
