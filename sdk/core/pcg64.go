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

// The PCG algorithm is designed by Melissa O'Neill.
// The bounded generation logic (UintN/IntN) follows the multiply-shift
// rejection method used by the Go standard library (math/rand/v2).

package core

import (
	"crypto/rand"
	"math"
	"math/big"
	"math/bits"
	r2 "math/rand/v2"
)

// PCG64 亂數產生器（128-bit 狀態，64-bit 輸出）
type PCG64 struct {
	rng *r2.PCG
}

// NewPCG64 使用加密隨機來源產生 seed，建立新的 PCG64 實例。
func NewPCG64() *PCG64 {
	seed, _ := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	return NewPCG64WithSeed(seed.Int64())
}

// NewPCG64WithSeed 以指定 seed 建立新的 PCG64 實例。
//
// seed 經 splitmix64 展開成兩個 64-bit 狀態字，避免相鄰 seed 產生相關序列。
func NewPCG64WithSeed(seed int64) *PCG64 {
	x := uint64(seed) ^ (0x9e3779b97f4a7c15)
	hi := splitmix64(x)
	lo := splitmix64(x ^ 0xDA942042E4DD58B5)
	return &PCG64{rng: r2.NewPCG(hi, lo)}
}

// Uint64 回傳非負整數uint64亂數
func (r *PCG64) Uint64() uint64 {
	return r.rng.Uint64()
}

// UintN 產出[0,n) 的uint整數，若 max == 0 回傳 0
func (r *PCG64) UintN(max uint) uint {
	if max == 0 {
		return 0
	}
	return uint(uint64n(r, uint64(max)))
}

// IntN 產出[0,n) 的整數，若 max <= 0 回傳 -1
func (r *PCG64) IntN(max int) int {
	if max <= 0 {
		return -1
	}
	return int(uint64n(r, uint64(max)))
}

// Float64 產出float64(53bits精度)
func (r *PCG64) Float64() float64 {
	return float53(r.Uint64())
}

// Restore 恢復內部狀態
func (r *PCG64) Restore(data []byte) error {
	return r.rng.UnmarshalBinary(data)
}

// Snapshot 取得當下內部狀態
func (r *PCG64) Snapshot() ([]byte, error) {
	return r.rng.MarshalBinary()
}

// splitmix64 將輸入值混洗成新的 64-bit 狀態，用於種子展開。
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

func mul64(a, b uint64) (hi, lo uint64) {
	return bits.Mul64(a, b)
}
