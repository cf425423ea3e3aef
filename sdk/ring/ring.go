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

// Package ring 在 Chebyshev 半徑 r 的方環上均勻抽一個位移。
//
// 半徑 r (>=1) 的方環是 (2r+1)×(2r+1) 方框扣掉內部 (2r-1)×(2r-1)，共 8r 個點。
// 不列舉點，而是把 k ∈ [0,8r) 直接解碼：
//
//	A 段 [0, 2(2r+1))      : x = ±r，y ∈ [-r, r]        （含四個角）
//	B 段 [2(2r+1), 8r)     : y = ±r，x ∈ [-r+1, r-1]    （不含角）
//
// 每段前半為正號、後半為負號。
package ring

import (
	"github.com/zintix-labs/lerwlab/errs"
	"github.com/zintix-labs/lerwlab/sdk/core"
	"github.com/zintix-labs/lerwlab/sdk/lattice"
)

// Size 回傳半徑 r 的方環點數 8r。
func Size(r int) int {
	return 8 * r
}

// Decode 將 k ∈ [0,8r) 解碼成方環上的位移 (dx,dy)，max(|dx|,|dy|) = r。
//
// r <= 0 或 k 越界為合約違反，panic。
func Decode(r, k int) lattice.Position {
	if r <= 0 {
		errs.Contractf("ring: radius must be positive, got %d", r)
	}
	if k < 0 || k >= 8*r {
		errs.Contractf("ring: index %d outside [0,%d)", k, 8*r)
	}

	side := 2*r + 1
	if k < 2*side {
		sign := 1
		if k >= side {
			sign = -1
		}
		return lattice.Position{X: sign * r, Y: -r + k%side}
	}

	k -= 2 * side
	inner := 2*r - 1
	sign := 1
	if k >= inner {
		sign = -1
	}
	return lattice.Position{X: -r + 1 + k%inner, Y: sign * r}
}

// Step 回傳 pos 加上半徑 r 方環上均勻抽出的位移。
func Step(pos lattice.Position, r int, src core.Uniform) lattice.Position {
	if r <= 0 {
		errs.Contractf("ring: radius must be positive, got %d", r)
	}
	return pos.Add(Decode(r, src.IntN(8*r)))
}
