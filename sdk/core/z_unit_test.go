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

package core

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/zintix-labs/lerwlab/errs"
)

func allFactories(t *testing.T) []PRNGFactory {
	t.Helper()
	out := make([]PRNGFactory, 0, len(Kinds()))
	for _, k := range Kinds() {
		f, err := FactoryOf(k)
		if err != nil {
			t.Fatalf("factory %s: %v", k, err)
		}
		out = append(out, f)
	}
	return out
}

func TestCoreDeterminism(t *testing.T) {
	for _, f := range allFactories(t) {
		c1 := New(f.New(7))
		c2 := New(f.New(7))
		for i := 0; i < 64; i++ {
			if c1.Uint64() != c2.Uint64() {
				t.Fatalf("[%s] Uint64 mismatch at %d", f.Name(), i)
			}
		}
		if c1.IntN(10) != c2.IntN(10) {
			t.Fatalf("[%s] IntN mismatch", f.Name())
		}
		if c1.Float64() != c2.Float64() {
			t.Fatalf("[%s] Float64 mismatch", f.Name())
		}
	}
}

func TestRanges(t *testing.T) {
	for _, f := range allFactories(t) {
		c := New(f.New(3))
		for i := 0; i < 10000; i++ {
			u := c.Float64()
			if u < 0 || u >= 1 {
				t.Fatalf("[%s] Float64 out of [0,1): %v", f.Name(), u)
			}
			n := 1 + i%97
			if k := c.IntN(n); k < 0 || k >= n {
				t.Fatalf("[%s] IntN(%d) out of range: %d", f.Name(), n, k)
			}
		}
		if got := c.IntN(0); got != -1 {
			t.Fatalf("[%s] IntN(0) want -1, got %d", f.Name(), got)
		}
		if got := c.UintN(0); got != 0 {
			t.Fatalf("[%s] UintN(0) want 0, got %d", f.Name(), got)
		}
	}
}

func TestSnapshotRestore(t *testing.T) {
	for _, f := range allFactories(t) {
		c := New(f.New(99))
		// 跨越 Keyed 的 buffer 邊界
		for i := 0; i < 100; i++ {
			c.Uint64()
		}
		snap, err := c.Snapshot()
		if err != nil {
			t.Fatalf("[%s] snapshot: %v", f.Name(), err)
		}
		want := make([]uint64, 80)
		for i := range want {
			want[i] = c.Uint64()
		}

		other := New(f.New(12345))
		if err := other.Restore(snap); err != nil {
			t.Fatalf("[%s] restore: %v", f.Name(), err)
		}
		for i := range want {
			if got := other.Uint64(); got != want[i] {
				t.Fatalf("[%s] replay mismatch at %d", f.Name(), i)
			}
		}
	}
}

func TestFactoryOfUnknown(t *testing.T) {
	_, err := FactoryOf("mt19937")
	if !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	f, err := FactoryOf("")
	if err != nil || f.Name() != KindPCG64 {
		t.Fatalf("empty kind should map to pcg64, got %v %v", f, err)
	}
}

func TestKeyedKeyLength(t *testing.T) {
	if _, err := NewKeyed(nil); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for empty key, got %v", err)
	}
	if _, err := NewKeyed(make([]byte, 65)); !errors.Is(err, errs.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for long key, got %v", err)
	}
	a, _ := NewKeyed([]byte("lerw"))
	b, _ := NewKeyed([]byte("lerw"))
	for i := 0; i < 10; i++ {
		if a.Uint64() != b.Uint64() {
			t.Fatalf("same key must give same stream")
		}
	}
}

func TestKeyedRestoreLimit(t *testing.T) {
	k := NewKeyedWithSeed(5)
	k.Uint64()
	before, _ := k.Snapshot()

	snap := make([]byte, keyedKeyLen, keyedKeyLen+8)
	snap = binary.BigEndian.AppendUint64(snap, 1<<62)
	err := k.Restore(snap)
	if e, ok := errs.AsErr(err); !ok || e.ErrLv != errs.Warn {
		t.Fatalf("oversized consumed must be a warn, got %v", err)
	}
	after, _ := k.Snapshot()
	if string(before) != string(after) {
		t.Fatalf("rejected restore must not change state")
	}

	at := make([]byte, keyedKeyLen, keyedKeyLen+8)
	at = binary.BigEndian.AppendUint64(at, MaxKeyedConsumed+8)
	if err := k.Restore(at); err == nil {
		t.Fatalf("consumed just above the limit must be rejected")
	}
	ok := make([]byte, keyedKeyLen, keyedKeyLen+8)
	ok = binary.BigEndian.AppendUint64(ok, 4096)
	if err := k.Restore(ok); err != nil {
		t.Fatalf("restore within limit: %v", err)
	}
}
