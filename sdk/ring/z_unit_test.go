// Copyright 2025 Zintix Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ring

import (
	"testing"

	"github.com/zintix-labs/lerwlab/sdk/core"
	"github.com/zintix-labs/lerwlab/sdk/lattice"
)

// seqUniform 依序回傳 0,1,2,...（對 n 取模）。
type seqUniform struct{ next int }

func (s *seqUniform) Float64() float64 { return 0 }
func (s *seqUniform) IntN(n int) int {
	k := s.next % n
	s.next++
	return k
}

func assertPanic(t *testing.T, f func(), msg string) {
	t.Helper()
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("expected panic for %s, but got none", msg)
		}
	}()
	f()
}

func TestDecodeIsBijection(t *testing.T) {
	for r := 1; r <= 64; r++ {
		if Size(r) != 8*r {
			t.Fatalf("Size(%d) want %d", r, 8*r)
		}
		src := &seqUniform{}
		seen := make(map[lattice.Position]bool, 8*r)
		for k := 0; k < 8*r; k++ {
			p := Step(lattice.Origin, r, src)
			if p.ChebyshevNorm() != r {
				t.Fatalf("r=%d k=%d: %v has norm %d", r, k, p, p.ChebyshevNorm())
			}
			if seen[p] {
				t.Fatalf("r=%d k=%d: duplicate %v", r, k, p)
			}
			seen[p] = true
		}
		if len(seen) != 8*r {
			t.Fatalf("r=%d: want %d distinct points, got %d", r, 8*r, len(seen))
		}
	}
}

func TestUnitRing(t *testing.T) {
	want := []lattice.Position{
		{1, -1}, {1, 0}, {1, 1},
		{-1, -1}, {-1, 0}, {-1, 1},
		{0, 1},
		{0, -1},
	}
	for k, w := range want {
		if got := Decode(1, k); got != w {
			t.Fatalf("Decode(1,%d) want %v, got %v", k, w, got)
		}
	}
}

func TestStepIsRelative(t *testing.T) {
	c := core.New(core.Default().New(42))
	pos := lattice.Position{X: -17, Y: 250}
	for i := 0; i < 5000; i++ {
		r := 1 + i%37
		next := Step(pos, r, c)
		if d := next.Sub(pos); d.ChebyshevNorm() != r {
			t.Fatalf("displacement %v norm want %d", d, r)
		}
		pos = next
	}
}

func TestContractViolations(t *testing.T) {
	assertPanic(t, func() { Decode(0, 0) }, "r=0")
	assertPanic(t, func() { Decode(-2, 0) }, "negative r")
	assertPanic(t, func() { Decode(2, 16) }, "k=8r")
	assertPanic(t, func() { Decode(2, -1) }, "negative k")
	assertPanic(t, func() { Step(lattice.Origin, 0, &seqUniform{}) }, "step r=0")
}
