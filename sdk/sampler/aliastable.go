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

// Package sampler 提供冪律步長的 O(1) 抽樣表。
//
// 本檔案 (aliastable.go) 實作 Vose's Alias Method（浮點版）。
//
// 演算法原理：
//   - 將任意離散分佈轉換為 r_max 個等高槽位的組合。
//   - 每個槽位只存放「自己」和「別名 (Alias)」兩個選項。
//   - 抽樣時先選槽位，再根據 prob 決定是自己還是別名。
//
// 特性：
//   - 建表時間：O(r_max)。
//   - 抽樣時間：O(1)，不配置記憶體。*固定作 1 次 IntN + 1 次 Float64*
//
// 輸入由 sdk/precision 以擴展精度正規化後才轉為 float64，
// 因此本包不需要處理精度問題，只負責配對。
package sampler

import (
	"context"
	"math"

	"github.com/zintix-labs/lerwlab/errs"
	"github.com/zintix-labs/lerwlab/sdk/core"
	"github.com/zintix-labs/lerwlab/sdk/precision"
)

// AliasTable 是步長分佈的 alias 表，索引 i 對應半徑 r = i+1。
//
// 建立後不可變，可在多個 walker 之間唯讀共享。
type AliasTable struct {
	exponent float64
	prob     []float64 // 每格 ∈ [0,1]
	alias    []int     // 每格 ∈ [0,r_max)
	analytic []float64 // 擴展精度算出的 P(r)；NewAliasTable 建的表為 nil
}

// Build 以 exponent 與 rMax 建立步長分佈 P(r) ∝ r^(-exponent) 的 alias 表。
//
// 參數不合法時回傳 errs.ErrInvalidArgument。
func Build(exponent float64, rMax int) (*AliasTable, error) {
	return BuildContext(context.Background(), exponent, rMax)
}

// BuildContext 同 Build；擴展精度計算期間會檢查 ctx。
func BuildContext(ctx context.Context, exponent float64, rMax int) (*AliasTable, error) {
	w, err := precision.ComputeContext(ctx, exponent, rMax)
	if err != nil {
		return nil, err
	}
	at, err := NewAliasTable(w.Scaled())
	if err != nil {
		return nil, err
	}
	at.exponent = exponent
	at.analytic = w.Probabilities()
	return at, nil
}

// NewAliasTable 由已縮放的權重 p（平均值為 1）建立 alias 表。
//
// 配對順序（決定性）：
//  1. 依索引遞增，把 p[i] < 1 的放進 small，其餘放進 large。
//  2. small、large 都以 stack 方式取用：每次各自 pop 最後加入的 l 與 g。
//  3. prob[l] = p[l]，alias[l] = g，p[g] -= 1 - p[l]，再依新值把 g 推回 small 或 large。
//  4. 任一方清空後，剩下的索引一律 prob = 1、alias = 自己。
//
// 浮點誤差只會讓最後留下的索引 p 略偏離 1，步驟 4 將其收斂為 1。
func NewAliasTable(p []float64) (*AliasTable, error) {
	n := len(p)
	if n == 0 {
		return nil, errs.Invalidf("alias table: empty weight vector")
	}

	work := make([]float64, n)
	small := make([]int, 0, n)
	large := make([]int, 0, n)
	for i, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, errs.Invalidf("alias table: weight[%d] must be finite and non-negative, got %v", i, v)
		}
		work[i] = v
		if v < 1 {
			small = append(small, i)
		} else {
			large = append(large, i)
		}
	}

	prob := make([]float64, n)
	alias := make([]int, n)

	for len(small) > 0 && len(large) > 0 {
		l := small[len(small)-1]
		small = small[:len(small)-1]
		g := large[len(large)-1]
		large = large[:len(large)-1]

		prob[l] = work[l]
		alias[l] = g
		work[g] -= 1 - work[l]

		if work[g] < 1 {
			small = append(small, g)
		} else {
			large = append(large, g)
		}
	}
	for _, g := range large {
		prob[g] = 1
		alias[g] = g
	}
	for _, l := range small {
		prob[l] = 1
		alias[l] = l
	}

	return &AliasTable{prob: prob, alias: alias}, nil
}

// Pick 依已抽好的槽位 i 與均勻值 u 回傳半徑（1-based）。
//
// u < prob[i] 回傳 i+1，否則回傳 alias[i]+1。熱路徑，不檢查邊界。
func (at *AliasTable) Pick(i int, u float64) int {
	if u < at.prob[i] {
		return i + 1
	}
	return at.alias[i] + 1
}

// Sample 從 src 抽出一個半徑 r ∈ [1, r_max]。
func (at *AliasTable) Sample(src core.Uniform) int {
	i := src.IntN(len(at.prob))
	return at.Pick(i, src.Float64())
}

// RMax 回傳最大半徑。
func (at *AliasTable) RMax() int { return len(at.prob) }

// Exponent 回傳建表時的尾指數；以 NewAliasTable 直接建立時為 0。
func (at *AliasTable) Exponent() float64 { return at.exponent }

// Prob 回傳 prob 的複本。
func (at *AliasTable) Prob() []float64 { return append([]float64(nil), at.prob...) }

// Alias 回傳 alias 的複本。
func (at *AliasTable) Alias() []int { return append([]int(nil), at.alias...) }

// Analytic 回傳解析分佈 P(r) = r^(-e)/S 的複本（r = i+1），作為統計檢定的期望值。
//
// 由 NewAliasTable 直接建立的表沒有解析分佈，此時退回 Mass。
func (at *AliasTable) Analytic() []float64 {
	if at.analytic == nil {
		return at.Mass()
	}
	return append([]float64(nil), at.analytic...)
}

// Mass 回傳表所編碼的 P(r)（r = i+1），用於驗證與報表。
//
// Mass[j] = (Σ_i [i==j]·prob[i] + [alias[i]==j]·(1-prob[i])) / r_max
func (at *AliasTable) Mass() []float64 {
	n := len(at.prob)
	out := make([]float64, n)
	for i, pr := range at.prob {
		out[i] += pr
		out[at.alias[i]] += 1 - pr
	}
	inv := 1 / float64(n)
	for i := range out {
		out[i] *= inv
	}
	return out
}
