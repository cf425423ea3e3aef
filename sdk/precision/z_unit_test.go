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

package precision

import (
	"context"
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/zintix-labs/lerwlab/errs"
)

func TestComputeRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		e    float64
		r    int
	}{
		{"zero exponent", 0, 4},
		{"negative exponent", -1.5, 4},
		{"nan exponent", math.NaN(), 4},
		{"inf exponent", math.Inf(1), 4},
		{"zero rmax", 2, 0},
		{"negative rmax", 2, -3},
	}
	for _, tc := range cases {
		if _, err := Compute(tc.e, tc.r); !errors.Is(err, errs.ErrInvalidArgument) {
			t.Fatalf("%s: expected invalid argument, got %v", tc.name, err)
		}
	}
}

func TestWeightsExponentTwo(t *testing.T) {
	w, err := Compute(2, 4)
	if err != nil {
		t.Fatal(err)
	}
	// S = 1 + 1/4 + 1/9 + 1/16 = 205/144
	want := []float64{1, 0.25, 1.0 / 9, 0.0625}
	for i, v := range want {
		if got := Narrow(w.Raw[i]); math.Abs(got-v) > 1e-15 {
			t.Fatalf("w(%d) want %v, got %v", i+1, v, got)
		}
	}
	if got := Narrow(w.Sum); math.Abs(got-205.0/144) > 1e-15 {
		t.Fatalf("sum want %v, got %v", 205.0/144, got)
	}

	p := w.Scaled()
	wantP := []float64{576.0 / 205, 144.0 / 205, 64.0 / 205, 36.0 / 205}
	for i, v := range wantP {
		if math.Abs(p[i]-v) > 1e-12 {
			t.Fatalf("p(%d) want %v, got %v", i+1, v, p[i])
		}
	}
}

func TestScaledMeanIsOne(t *testing.T) {
	for _, tc := range []struct {
		e float64
		r int
	}{{1.5, 1}, {2, 100}, {3.3, 2000}, {0.7, 512}} {
		w, err := Compute(tc.e, tc.r)
		if err != nil {
			t.Fatal(err)
		}
		sum := 0.0
		for _, v := range w.Scaled() {
			if v < 0 {
				t.Fatalf("negative scaled weight for e=%v", tc.e)
			}
			sum += v
		}
		if mean := sum / float64(tc.r); math.Abs(mean-1) > 1e-9 {
			t.Fatalf("e=%v r=%d mean want 1, got %v", tc.e, tc.r, mean)
		}
	}
}

func TestNormalizedSumsToOne(t *testing.T) {
	w, err := Compute(2.5, 300)
	if err != nil {
		t.Fatal(err)
	}
	total := new(big.Float).SetPrec(Prec)
	for i := range w.Raw {
		total.Add(total, w.Normalized(i))
	}
	diff := new(big.Float).Sub(total, big.NewFloat(1))
	if d := math.Abs(Narrow(diff)); d > 1e-60 {
		t.Fatalf("normalized sum deviates from 1 by %g", d)
	}

	probs := w.Probabilities()
	if probs[0] <= probs[1] || probs[1] <= probs[299] {
		t.Fatalf("probabilities must be strictly decreasing in r")
	}
}

func TestLargeExponentKeepsSmallTerms(t *testing.T) {
	// 1000^-40 = 1e-120，float64 可表示；此時 S 幾乎等於 1
	w, err := Compute(40, 1000)
	if err != nil {
		t.Fatal(err)
	}
	got := Narrow(w.Raw[999])
	if got == 0 || math.Abs(got/1e-120-1) > 1e-12 {
		t.Fatalf("w(1000) want ~1e-120, got %g", got)
	}
}

func TestComputeContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ComputeContext(ctx, 2, 10); !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled ctx must abort, got %v", err)
	}
	w, err := ComputeContext(context.Background(), 2, 10)
	if err != nil || w.RMax != 10 {
		t.Fatalf("compute: %v", err)
	}
}
