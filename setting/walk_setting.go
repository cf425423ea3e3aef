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

// Package setting 定義單一長程 walk 的設定檔格式與驗證。
//
// 一份設定檔描述一組「尾指數 + 最大步長 + 格點邊界 + 步數上限 + 亂數種類」，
// 由 catalog 以 walk_id / walk_name 索引。
package setting

import (
	"math"
	"strings"

	"github.com/zintix-labs/lerwlab/errs"
	"github.com/zintix-labs/lerwlab/sdk/core"
	"github.com/zintix-labs/lerwlab/sdk/lattice"
)

// WID 是 walk 設定在 catalog 內的唯一 ID。
type WID int

// MaxRMax 是單張 alias 表允許的最大半徑。
const MaxRMax = 1 << 22

// WalkSetting 是一組 walk 參數。
type WalkSetting struct {
	WalkName string  `yaml:"walk_name" json:"walk_name"`
	WalkID   WID     `yaml:"walk_id"   json:"walk_id"`
	Exponent float64 `yaml:"exponent"  json:"exponent"` // 尾指數 e，P(r) ∝ r^(-e)
	RMax     int     `yaml:"r_max"     json:"r_max"`    // 最大步長
	Bound    int     `yaml:"bound"     json:"bound"`    // 格點半寬 L
	Steps    int     `yaml:"steps"     json:"steps"`    // 每次 walk 的步數上限
	RNG      string  `yaml:"rng"       json:"rng"`      // pcg64 | pcg32 | keyed，空白為 pcg64
}

func (ws *WalkSetting) init() error {
	ws.WalkName = strings.ToLower(strings.TrimSpace(ws.WalkName))
	ws.RNG = strings.ToLower(strings.TrimSpace(ws.RNG))
	if ws.RNG == "" {
		ws.RNG = core.KindPCG64
	}
	return ws.Valid()
}

// Valid 檢查所有欄位；任何錯誤皆為 errs.ErrInvalidArgument。
func (ws *WalkSetting) Valid() error {
	if ws.WalkName == "" {
		return errs.Invalidf("walk setting: walk_name required")
	}
	if math.IsNaN(ws.Exponent) || math.IsInf(ws.Exponent, 0) || ws.Exponent <= 0 {
		return errs.Invalidf("walk %s: exponent must be a finite positive number, got %v", ws.WalkName, ws.Exponent)
	}
	if ws.RMax < 1 || ws.RMax > MaxRMax {
		return errs.Invalidf("walk %s: r_max must be in [1,%d], got %d", ws.WalkName, MaxRMax, ws.RMax)
	}
	if ws.Bound < 1 || ws.Bound > lattice.MaxBound {
		return errs.Invalidf("walk %s: bound must be in [1,%d], got %d", ws.WalkName, lattice.MaxBound, ws.Bound)
	}
	if ws.Steps < 1 {
		return errs.Invalidf("walk %s: steps must be >= 1, got %d", ws.WalkName, ws.Steps)
	}
	if _, err := core.FactoryOf(ws.RNG); err != nil {
		return errs.Invalidf("walk %s: unknown rng %q (want one of %s)", ws.WalkName, ws.RNG, strings.Join(core.Kinds(), ", "))
	}
	return nil
}

// Factory 回傳此設定指定的 PRNG 工廠。
func (ws *WalkSetting) Factory() core.PRNGFactory {
	f, err := core.FactoryOf(ws.RNG)
	if err != nil {
		// Valid 已保證 RNG 合法
		return core.Default()
	}
	return f
}
