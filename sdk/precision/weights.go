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

// Package precision 以擴展精度計算冪律步長的權重 w(r) = r^(-e)。
//
// 為什麼需要擴展精度：
//   - r_max 或 e 很大時，w(r_max) 可能比 w(1) 小上百個數量級。
//   - 以 float64 累加 S = Σ w(r)、再做 w(r)/S，小項的有效位數幾乎全數流失。
//
// 因此本包：
//  1. 以 Prec 位元計算 w(r) = exp(-e · ln r)
//  2. 以相同精度累加 S、相除、乘上 r_max
//  3. 最後才透過 Narrow 轉成 float64 交給 alias table
//
// 這是整個核心唯一「精度敏感」的步驟；下游（sdk/sampler）一律使用 float64。
//
// 精度限制：若 w(r)/S · r_max 小於 float64 最小次正規數（約 4.9e-324），
// Narrow 會得到 0，該半徑在抽樣上等同不可能發生。這是已知的精度限制，不是錯誤。
package precision

import (
	"context"
	"math"
	"math/big"

	"github.com/ALTree/bigfloat"
	"github.com/zintix-labs/lerwlab/errs"
)

// Prec 是擴展精度的位元數（7 個 32-bit limb）。
const Prec uint = 224

// Weights 保存一組冪律權重的擴展精度中間結果。
//
// 索引 i 對應半徑 r = i+1。建立後不可變。
type Weights struct {
	Exponent float64
	RMax     int
	Raw      []*big.Float // w(r) = r^(-e)
	Sum      *big.Float   // S = Σ w(r)
}

// ctxCheckEvery 是 ComputeContext 檢查取消的間隔（項數）。
const ctxCheckEvery = 4096

// Compute 以擴展精度計算 r = 1..rMax 的 w(r) 與其總和 S。
//
// exponent 必須為有限正數，rMax 必須 >= 1，否則回傳 errs.ErrInvalidArgument。
// 時間 O(rMax)，每項一次 Log 與一次 Exp（Prec 位元）。
func Compute(exponent float64, rMax int) (*Weights, error) {
	return ComputeContext(context.Background(), exponent, rMax)
}

// ComputeContext 同 Compute，但每 ctxCheckEvery 項檢查一次 ctx，取消時回傳包裝後的 ctx.Err()。
func ComputeContext(ctx context.Context, exponent float64, rMax int) (*Weights, error) {
	if math.IsNaN(exponent) || math.IsInf(exponent, 0) || exponent <= 0 {
		return nil, errs.Invalidf("precision: exponent must be a finite positive number, got %v", exponent)
	}
	if rMax < 1 {
		return nil, errs.Invalidf("precision: r_max must be >= 1, got %d", rMax)
	}

	negE := newFloat().SetFloat64(-exponent)
	sum := newFloat()
	raw := make([]*big.Float, rMax)

	// w(1) = 1^(-e) = 1
	raw[0] = newFloat().SetInt64(1)
	sum.Add(sum, raw[0])

	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "precision: compute canceled")
	}
	arg := newFloat()
	for r := 2; r <= rMax; r++ {
		if r%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errs.Wrap(err, "precision: compute canceled")
			}
		}
		arg.SetInt64(int64(r))
		lnr := bigfloat.Log(arg)
		arg.Mul(lnr, negE)
		w := bigfloat.Exp(arg)
		raw[r-1] = w
		sum.Add(sum, w)
	}

	return &Weights{
		Exponent: exponent,
		RMax:     rMax,
		Raw:      raw,
		Sum:      sum,
	}, nil
}

// Normalized 回傳 w(r)/S（擴展精度），i 為 0-based 索引。
func (w *Weights) Normalized(i int) *big.Float {
	return newFloat().Quo(w.Raw[i], w.Sum)
}

// Scaled 回傳 alias table 的輸入 p(r) = (w(r)/S) · r_max，已轉為 float64。
//
// 除法與乘法都在擴展精度內完成，只有最後一步經 Narrow 轉型。
// 依定義 p 的算術平均為 1。
func (w *Weights) Scaled() []float64 {
	n := newFloat().SetInt64(int64(w.RMax))
	out := make([]float64, w.RMax)
	q := newFloat()
	for i, raw := range w.Raw {
		q.Quo(raw, w.Sum)
		q.Mul(q, n)
		out[i] = Narrow(q)
	}
	return out
}

// Probabilities 回傳解析機率 P(r) = w(r)/S（float64），供統計檢定使用。
func (w *Weights) Probabilities() []float64 {
	out := make([]float64, w.RMax)
	q := newFloat()
	for i, raw := range w.Raw {
		q.Quo(raw, w.Sum)
		out[i] = Narrow(q)
	}
	return out
}

// Narrow 是擴展精度與 float64 的唯一轉換點（round-to-nearest）。
//
// 下溢回傳 0、上溢回傳 ±Inf；對正規化後的機率而言只有下溢可能發生。
func Narrow(x *big.Float) float64 {
	f, _ := x.Float64()
	return f
}

func newFloat() *big.Float {
	return new(big.Float).SetPrec(Prec).SetMode(big.ToNearestEven)
}
