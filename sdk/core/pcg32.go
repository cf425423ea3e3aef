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
	"math"
	"math/bits"

	"github.com/zintix-labs/lerwlab/errs"
)

const pcg32Multiplier = 6364136223846793005

// PCG32 為 64-bit 狀態、32-bit 輸出的 PCG (XSH RR) 產生器。
// 介面設計對齊 PCG64 版本，便於在 core.Core 中互換。
//
// Float64 以兩次 32-bit 輸出組成 53-bit mantissa，
// 避免 32-bit 精度讓 alias table 中極小的 prob[i] 被量化成 0。
type PCG32 struct {
	state uint64
	inc   uint64
}

// NewPCG32WithSeed 以指定 seed（stream 固定為 1）建立 PCG32。
func NewPCG32WithSeed(seed int64) *PCG32 {
	r := &PCG32{}
	r.initWithSeed(seed, 1)
	return r
}

// Uint32 回傳非負整數uint32亂數。
func (r *PCG32) Uint32() uint32 {
	return r.nextUint32()
}

// Uint64 回傳非負整數uint64亂數
func (r *PCG32) Uint64() uint64 {
	return (uint64(r.nextUint32()) << 32) | uint64(r.nextUint32())
}

// UintN 產出[0,n) 的uint整數，若 max == 0 回傳 0
func (r *PCG32) UintN(max uint) uint {
	if max == 0 {
		return 0
	}
	if uint64(max) <= math.MaxUint32 {
		return uint(r.randBelowUint32(uint32(max)))
	}
	return uint(uint64n(r, uint64(max)))
}

// IntN 回傳 [0,n) 的亂數；若 n <= 0 回傳 -1。
func (r *PCG32) IntN(max int) int {
	if max <= 0 {
		return -1
	}
	if uint64(max) <= math.MaxUint32 {
		return int(r.randBelowUint32(uint32(max)))
	}
	return int(uint64n(r, uint64(max)))
}

// Float64 回傳 [0,1) 的浮點亂數（53-bit 精度）。
func (r *PCG32) Float64() float64 {
	return float53(r.Uint64())
}

// Restore 由 Snapshot 的 16 bytes（state, inc）還原。
func (r *PCG32) Restore(data []byte) error {
	if len(data) != 16 {
		return errs.Warnf("pcg32 restore: want 16 bytes, got %d", len(data))
	}
	inc := binary.BigEndian.Uint64(data[8:])
	if inc&1 == 0 {
		return errs.NewWarn("pcg32 restore: stream increment must be odd")
	}
	r.state = binary.BigEndian.Uint64(data[:8])
	r.inc = inc
	return nil
}

// Snapshot 取得當下內部狀態(state, inc)
func (r *PCG32) Snapshot() ([]byte, error) {
	b := make([]byte, 0, 16)
	b = binary.BigEndian.AppendUint64(b, r.state)
	b = binary.BigEndian.AppendUint64(b, r.inc)
	return b, nil
}

// PCG 建議的初始化流程：先用 stream 初始化一次，再加 seed，最後再 step。
func (r *PCG32) initWithSeed(baseSeed int64, seq uint64) {
	r.state = 0
	r.inc = (seq << 1) | 1
	r.nextUint32()
	r.state += uint64(baseSeed)
	r.nextUint32()
}

func (r *PCG32) nextUint32() uint32 {
	oldstate := r.state
	r.state = oldstate*pcg32Multiplier + r.inc
	xorshifted := uint32(((oldstate >> 18) ^ oldstate) >> 27)
	rot := uint32(oldstate >> 59)
	return bits.RotateLeft32(xorshifted, -int(rot))
}

func (r *PCG32) randBelowUint32(bound uint32) uint32 {
	threshold := -bound % bound
	for {
		v := r.nextUint32()
		if v >= threshold {
			return v % bound
		}
	}
}
