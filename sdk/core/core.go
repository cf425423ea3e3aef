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

// Package core 提供 lerwlab 的亂數來源。
//
// 步長抽樣（alias table）與環上抽樣（ring）只需要兩種能力：
//   - Float64：[0,1) 的均勻實數
//   - IntN：[0,n) 的均勻整數
//
// 兩者皆要求「同 seed 可重現」，以便測試回放與模擬審計。
package core

import (
	"fmt"
	"strings"

	"github.com/zintix-labs/lerwlab/errs"
)

// Uniform 是抽樣熱路徑所需的最小亂數能力。
//
// sdk/sampler 與 sdk/ring 只依賴此介面，測試可用決定性的 stub 取代。
type Uniform interface {
	// Float64 回傳 [0,1) 的浮點亂數。
	Float64() float64
	// IntN 回傳 [0,max) 的 int 亂數，若 max <= 0 回傳 -1。
	IntN(int) int
}

// RAND 定義核心亂數取樣能力。
//
// 為什麼要求 PRNG 同時提供 Uint64 / Float64 / UintN / IntN？
//   - 不同 PRNG 的原生輸出寬度不同（PCG32 為 32-bit），bounded 生成交由實作自己決定最合適的路徑。
//   - Float64 的精度（32-bit vs 53-bit）也由實作明確表達。
type RAND interface {
	Uniform
	// Uint64 回傳非負 uint64 亂數。
	Uint64() uint64
	// UintN 回傳 [0,max) 的 uint 亂數，若 max == 0 回傳 0。
	UintN(uint) uint
}

// Restorable 定義可快照與還原的狀態介面。
type Restorable interface {
	// Snapshot 回傳可用於還原的序列化狀態。
	Snapshot() ([]byte, error)
	// Restore 依序列化狀態還原 PRNG 內部狀態。
	Restore([]byte) error
}

// PRNG 定義 Core 所需的亂數來源，需同時支援取樣與狀態保存/還原。
type PRNG interface {
	RAND
	Restorable
}

// PRNGFactory 以 seed 建立 PRNG。
//
// 合約：同一實作、同一版本下 New(seed) 必須是決定性的。
// 多 walker 併發時由上層以 baseSeed 派生子 seed，每個 walker 持有獨立的 PRNG。
type PRNGFactory interface {
	New(int64) PRNG
	Name() string
}

// PRNG 種類名稱（對應設定檔 rng 欄位）
const (
	KindPCG64 = "pcg64"
	KindPCG32 = "pcg32"
	KindKeyed = "keyed"
)

type pcg64Factory struct{}

func (pcg64Factory) New(seed int64) PRNG { return NewPCG64WithSeed(seed) }
func (pcg64Factory) Name() string        { return KindPCG64 }

type pcg32Factory struct{}

func (pcg32Factory) New(seed int64) PRNG { return NewPCG32WithSeed(seed) }
func (pcg32Factory) Name() string        { return KindPCG32 }

type keyedFactory struct{}

func (keyedFactory) New(seed int64) PRNG { return NewKeyedWithSeed(seed) }
func (keyedFactory) Name() string        { return KindKeyed }

// Default 回傳預設的 PCG64 工廠。
func Default() PRNGFactory { return pcg64Factory{} }

// FactoryOf 依名稱取得 PRNG 工廠；空字串視為預設（pcg64）。
func FactoryOf(kind string) (PRNGFactory, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindPCG64:
		return pcg64Factory{}, nil
	case KindPCG32:
		return pcg32Factory{}, nil
	case KindKeyed:
		return keyedFactory{}, nil
	default:
		return nil, errs.Invalidf("unknown rng kind: %q", kind)
	}
}

// Kinds 回傳所有支援的 PRNG 種類。
func Kinds() []string {
	return []string{KindPCG64, KindPCG32, KindKeyed}
}

// Core 封裝 PRNG，並提供 walker 常用的取樣方法。
type Core struct {
	PRNG
}

// New 允許使用外部自實現的 PRNG 建立 Core。
func New(rng PRNG) *Core {
	return &Core{rng}
}

func (c *Core) String() string {
	if c == nil || c.PRNG == nil {
		return "core<nil>"
	}
	return fmt.Sprintf("core<%T>", c.PRNG)
}

// uint64Source 是 bounded 生成共用的最小輸入。
type uint64Source interface {
	Uint64() uint64
}

// uint64n 回傳 [0,n) 的無偏亂數（基於乘法高位與拒絕採樣）。
func uint64n(r uint64Source, n uint64) uint64 {
	if n&(n-1) == 0 { // n is power of two, can mask
		return r.Uint64() & (n - 1)
	}
	hi, lo := mul64(r.Uint64(), n)
	if lo < n {
		thresh := -n % n
		for lo < thresh {
			hi, lo = mul64(r.Uint64(), n)
		}
	}
	return hi
}

// float53 以 53-bit mantissa 產出 [0,1)。
func float53(x uint64) float64 {
	return float64(x>>11) * (1.0 / (1 << 53))
}
