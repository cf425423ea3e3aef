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
	"io"

	"github.com/tuneinsight/lattigo/v4/utils"
	"github.com/zintix-labs/lerwlab/errs"
	"golang.org/x/crypto/sha3"
)

const (
	keyedKeyLen = 32
	keyedBufLen = 512
)

// MaxKeyedConsumed 是 Restore 接受的最大快轉量（4 GiB）。
// 快轉成本與 consumed 成正比，超過上限的快照一律拒絕。
const MaxKeyedConsumed uint64 = 1 << 32

// Keyed 是以 XOF（lattigo KeyedPRNG, blake2b）為底的亂數來源。
//
// 用途：需要「可由任意 key 派生、跨平台輸出一致」的串流時使用（例如對外公布的審計 key）。
// 速度比 PCG 慢，但輸出只取決於 key 與已消耗的 byte 數。
//
// 狀態 = key + consumed，因此 Snapshot 只需 key 與計數；Restore 會重建 XOF 並快轉。
type Keyed struct {
	key      []byte
	prng     *utils.KeyedPRNG
	buf      [keyedBufLen]byte
	off      int    // buf 內已使用位置
	consumed uint64 // 已交付給呼叫端的 byte 數
}

// NewKeyedWithSeed 以 SHAKE256(seed) 派生 32-byte key 建立 Keyed。
func NewKeyedWithSeed(seed int64) *Keyed {
	var in [8]byte
	binary.BigEndian.PutUint64(in[:], uint64(seed))
	key := make([]byte, keyedKeyLen)
	sha3.ShakeSum256(key, in[:])
	k, err := NewKeyed(key)
	if err != nil {
		// 32-byte key 不可能被 blake2b 拒絕
		panic(err)
	}
	return k
}

// NewKeyed 以指定 key 建立 Keyed（key 長度 1..64）。
func NewKeyed(key []byte) (*Keyed, error) {
	if len(key) == 0 || len(key) > 64 {
		return nil, errs.Invalidf("keyed prng: key length must be in [1,64], got %d", len(key))
	}
	k := &Keyed{key: append([]byte(nil), key...)}
	if err := k.reset(); err != nil {
		return nil, err
	}
	return k, nil
}

func (k *Keyed) reset() error {
	prng, err := utils.NewKeyedPRNG(k.key)
	if err != nil {
		return errs.Wrap(err, "keyed prng: init xof")
	}
	k.prng = prng
	k.off = keyedBufLen
	k.consumed = 0
	return nil
}

func (k *Keyed) refill() {
	if _, err := k.prng.Read(k.buf[:]); err != nil {
		panic(errs.Wrap(err, "keyed prng: xof read"))
	}
	k.off = 0
}

// Uint64 回傳非負整數uint64亂數
func (k *Keyed) Uint64() uint64 {
	if k.off+8 > keyedBufLen {
		k.refill()
	}
	v := binary.LittleEndian.Uint64(k.buf[k.off:])
	k.off += 8
	k.consumed += 8
	return v
}

// UintN 產出[0,n) 的uint整數，若 max == 0 回傳 0
func (k *Keyed) UintN(max uint) uint {
	if max == 0 {
		return 0
	}
	return uint(uint64n(k, uint64(max)))
}

// IntN 產出[0,n) 的整數，若 max <= 0 回傳 -1
func (k *Keyed) IntN(max int) int {
	if max <= 0 {
		return -1
	}
	return int(uint64n(k, uint64(max)))
}

// Float64 產出float64(53bits精度)
func (k *Keyed) Float64() float64 {
	return float53(k.Uint64())
}

// Snapshot 回傳 key || consumed(8 bytes, big endian)
func (k *Keyed) Snapshot() ([]byte, error) {
	out := make([]byte, 0, len(k.key)+8)
	out = append(out, k.key...)
	out = binary.BigEndian.AppendUint64(out, k.consumed)
	return out, nil
}

// Restore 重建 XOF 並快轉到 consumed 位置。
func (k *Keyed) Restore(data []byte) error {
	if len(data) < 9 || len(data) > 64+8 {
		return errs.Warnf("keyed restore: bad snapshot length %d", len(data))
	}
	key := data[:len(data)-8]
	consumed := binary.BigEndian.Uint64(data[len(data)-8:])
	if consumed%8 != 0 {
		return errs.Warnf("keyed restore: consumed must be a multiple of 8, got %d", consumed)
	}
	if consumed > MaxKeyedConsumed {
		return errs.Warnf("keyed restore: consumed %d exceeds limit %d", consumed, MaxKeyedConsumed)
	}
	k.key = append(k.key[:0], key...)
	if err := k.reset(); err != nil {
		return err
	}
	blocks := consumed / keyedBufLen
	if blocks > 0 {
		if _, err := io.CopyN(io.Discard, k.prng, int64(blocks*keyedBufLen)); err != nil {
			return errs.Wrap(err, "keyed restore: fast-forward")
		}
	}
	k.refill()
	k.off = int(consumed % keyedBufLen)
	k.consumed = consumed
	return nil
}
