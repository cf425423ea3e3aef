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

package lattice

import (
	"errors"
	"testing"

	"github.com/zintix-labs/lerwlab/errs"
)

// assertPanic 驗證函數是否如預期觸發 panic
func assertPanic(t *testing.T, f func(), msg string) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Errorf("expected panic for %s, but got none", msg)
			return
		}
		if e, ok := r.(*errs.E); !ok || !errors.Is(e, errs.ErrInvalidArgument) {
			t.Errorf("%s: expected *errs.E invalid argument panic, got %v", msg, r)
		}
	}()
	f()
}

func TestPositionArithmetic(t *testing.T) {
	p := Position{3, -7}
	if got := p.Add(Position{-1, 2}); got != (Position{2, -5}) {
		t.Fatalf("Add got %v", got)
	}
	if got := p.Sub(Position{3, -7}); got != Origin {
		t.Fatalf("Sub got %v", got)
	}
	if p.ChebyshevNorm() != 7 || Origin.ChebyshevNorm() != 0 {
		t.Fatalf("ChebyshevNorm mismatch")
	}
	if p.String() != "(3,-7)" {
		t.Fatalf("String got %s", p)
	}
}

func TestNewOccupancySetBounds(t *testing.T) {
	if _, err := NewOccupancySet(-1); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if _, err := NewOccupancySet(MaxBound + 1); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if _, err := NewOccupancySet(0); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for L=0, got %v", err)
	}
	o, err := NewOccupancySet(1)
	if err != nil {
		t.Fatal(err)
	}
	o.Mark(Origin)
	if !o.IsMarked(Origin) || o.Count() != 1 || o.Bound() != 1 {
		t.Fatalf("L=1 set must hold the origin")
	}
}

func TestMarkUnmark(t *testing.T) {
	const L = 5
	o, err := NewOccupancySet(L)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(o.Bytes()); got != (121+7)>>3 {
		t.Fatalf("byte size want %d, got %d", (121+7)>>3, got)
	}
	for x := -L; x <= L; x++ {
		for y := -L; y <= L; y++ {
			p := Position{x, y}
			if o.IsMarked(p) {
				t.Fatalf("%v marked before Mark", p)
			}
			o.Mark(p)
			if !o.IsMarked(p) {
				t.Fatalf("%v not marked after Mark", p)
			}
			o.Unmark(p)
			if o.IsMarked(p) {
				t.Fatalf("%v still marked after Unmark", p)
			}
		}
	}
}

func TestIsolation(t *testing.T) {
	const L = 4
	o, _ := NewOccupancySet(L)
	p := Position{1, -2}
	o.Mark(p)
	for x := -L; x <= L; x++ {
		for y := -L; y <= L; y++ {
			q := Position{x, y}
			if q == p {
				continue
			}
			o.Mark(q)
			if !o.IsMarked(p) {
				t.Fatalf("marking %v cleared %v", q, p)
			}
			o.Unmark(q)
			if !o.IsMarked(p) {
				t.Fatalf("unmarking %v cleared %v", q, p)
			}
		}
	}
	if o.Count() != 1 {
		t.Fatalf("Count want 1, got %d", o.Count())
	}
}

func TestUnmarkIdempotent(t *testing.T) {
	o, _ := NewOccupancySet(3)
	p := Position{-3, 3}
	o.Unmark(p)
	o.Unmark(p)
	if o.IsMarked(p) {
		t.Fatalf("unmark on empty must stay unmarked")
	}
	o.Mark(p)
	o.Mark(p)
	o.Unmark(p)
	if o.IsMarked(p) || o.Count() != 0 {
		t.Fatalf("double mark then unmark must leave position clear")
	}
}

func TestOutOfBoundPanics(t *testing.T) {
	o, _ := NewOccupancySet(2)
	for _, p := range []Position{{3, 0}, {0, -3}, {-3, 3}, {100, 100}} {
		if o.Contains(p) {
			t.Fatalf("Contains(%v) must be false", p)
		}
		assertPanic(t, func() { o.Mark(p) }, "Mark "+p.String())
		assertPanic(t, func() { o.Unmark(p) }, "Unmark "+p.String())
		assertPanic(t, func() { o.IsMarked(p) }, "IsMarked "+p.String())
	}
	// 邊界上的點合法
	for _, p := range []Position{{2, 2}, {-2, -2}, {2, -2}, {-2, 2}} {
		o.Mark(p)
		if !o.IsMarked(p) {
			t.Fatalf("corner %v must be markable", p)
		}
	}
}

func TestResetAndLoad(t *testing.T) {
	o, _ := NewOccupancySet(3)
	o.Mark(Position{1, 1})
	o.Mark(Position{-3, 2})
	snap := o.Bytes()
	o.Reset()
	if o.Count() != 0 {
		t.Fatalf("Reset must clear all marks")
	}
	if err := o.Load(snap); err != nil {
		t.Fatal(err)
	}
	if !o.IsMarked(Position{1, 1}) || !o.IsMarked(Position{-3, 2}) || o.Count() != 2 {
		t.Fatalf("Load must restore marks")
	}
	if err := o.Load([]byte{1}); err == nil {
		t.Fatalf("Load with wrong length must fail")
	}
}
