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
	"math/bits"

	"github.com/zintix-labs/lerwlab/errs"
)

// MaxBound 限制 L，使 (2L+1)² 個 bit 不超過 1 GiB。
const MaxBound = 46340

// OccupancySet 是 [-L,L]² 上的 bit-packed 佔用集合。
//
// 位置 (x,y) 的線性索引 idx = (x+L) + (y+L)·(2L+1)；byte = idx>>3，bit = idx&7。
// L 於建立後固定。每個 walker 獨佔一份，不可跨 goroutine 共享。
//
// Mark / Unmark / IsMarked 的前置條件是 Contains(p)；違反時 panic（程式錯誤，不回傳 error）。
// walker 應先以 Contains 判斷是否越界。
type OccupancySet struct {
	bound int
	side  int
	bits  []byte
}

// NewOccupancySet 建立半寬為 bound 的佔用集合。bound 須在 [1, MaxBound]。
func NewOccupancySet(bound int) (*OccupancySet, error) {
	if bound < 1 || bound > MaxBound {
		return nil, errs.Invalidf("occupancy: bound must be in [1,%d], got %d", MaxBound, bound)
	}
	side := 2*bound + 1
	n := side * side
	return &OccupancySet{
		bound: bound,
		side:  side,
		bits:  make([]byte, (n+7)>>3),
	}, nil
}

// Bound 回傳 L。
func (o *OccupancySet) Bound() int { return o.bound }

// Contains 回傳 p 是否位於 [-L,L]²。
func (o *OccupancySet) Contains(p Position) bool {
	return p.X >= -o.bound && p.X <= o.bound && p.Y >= -o.bound && p.Y <= o.bound
}

func (o *OccupancySet) index(p Position) int {
	if !o.Contains(p) {
		errs.Contractf("occupancy: position %s outside bound %d", p, o.bound)
	}
	return (p.X + o.bound) + (p.Y+o.bound)*o.side
}

// Mark 將 p 標記為已佔用。
func (o *OccupancySet) Mark(p Position) {
	idx := o.index(p)
	o.bits[idx>>3] |= 1 << (idx & 7)
}

// Unmark 清除 p；對未標記的位置為 no-op。
func (o *OccupancySet) Unmark(p Position) {
	idx := o.index(p)
	o.bits[idx>>3] &^= 1 << (idx & 7)
}

// IsMarked 回傳 p 是否已標記。
func (o *OccupancySet) IsMarked(p Position) bool {
	idx := o.index(p)
	return o.bits[idx>>3]&(1<<(idx&7)) != 0
}

// Count 回傳已標記的位置數。O(size)，非熱路徑。
func (o *OccupancySet) Count() int {
	n := 0
	for _, b := range o.bits {
		n += bits.OnesCount8(b)
	}
	return n
}

// Reset 清除所有標記，保留配置的記憶體以便下一次 walk 重用。
func (o *OccupancySet) Reset() {
	clear(o.bits)
}

// Bytes 回傳內部 bit 陣列的複本（快照用）。
func (o *OccupancySet) Bytes() []byte {
	return append([]byte(nil), o.bits...)
}

// ByteLen 回傳 bit 陣列的位元組數。
func (o *OccupancySet) ByteLen() int { return len(o.bits) }

// Load 以 Bytes 的輸出覆寫內容；長度不符回傳 Warn 錯誤。
func (o *OccupancySet) Load(b []byte) error {
	if len(b) != len(o.bits) {
		return errs.Warnf("occupancy: snapshot length %d, want %d", len(b), len(o.bits))
	}
	copy(o.bits, b)
	return nil
}
