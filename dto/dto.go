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

package dto

import (
	"github.com/zintix-labs/lerwlab/corefmt"
	"github.com/zintix-labs/lerwlab/errs"
	"github.com/zintix-labs/lerwlab/sdk/buf"
	"github.com/zintix-labs/lerwlab/sdk/lattice"
	"github.com/zintix-labs/lerwlab/sdk/sampler"
	"github.com/zintix-labs/lerwlab/setting"
)

type WalkResult struct {
	UID             string             `json:"uid,omitempty"` // 對應請求的 uid
	WalkName        string             `json:"walk"`
	WalkID          setting.WID        `json:"wid"`
	Steps           int                `json:"steps"`
	Revisits        int                `json:"revisits"`
	Exited          bool               `json:"exited"`
	Final           lattice.Position   `json:"final"`
	MaxDisplacement int                `json:"max_displacement"`
	Path            []lattice.Position `json:"path,omitempty"`
	Truncated       bool               `json:"truncated,omitempty"`
	State           WalkState          `json:"walk_state"`
}

// WalkState 回傳 walk 前後的 RNG 快照（base64url）。
type WalkState struct {
	StartCoreSnapB64U string `json:"start_b64u"`
	AfterCoreSnapB64U string `json:"after_b64u"`
}

// NewWalkResultDTO 深拷貝路徑，呼叫後 buffer 可以安全重用。
func NewWalkResultDTO(wr *buf.WalkResult, start, after []byte) (WalkResult, error) {
	if wr == nil {
		return WalkResult{}, errs.NewWarn("walk result is nil")
	}
	dto := WalkResult{
		WalkName:        wr.WalkName,
		WalkID:          wr.WalkID,
		Steps:           wr.Steps,
		Revisits:        wr.Revisits,
		Exited:          wr.Exited,
		Final:           wr.Final,
		MaxDisplacement: wr.MaxDisplacement,
		Truncated:       wr.Truncated,
		State: WalkState{
			StartCoreSnapB64U: corefmt.EncodeBase64URL(start),
			AfterCoreSnapB64U: corefmt.EncodeBase64URL(after),
		},
	}
	if wr.Trace && len(wr.Path) > 0 {
		dto.Path = make([]lattice.Position, len(wr.Path))
		copy(dto.Path, wr.Path)
	}
	return dto, nil
}

// TableResult 是 alias table 的檢視結構。
type TableResult struct {
	Exponent float64   `json:"exponent"`
	RMax     int       `json:"r_max"`
	Prob     []float64 `json:"prob"`
	Alias    []int     `json:"alias"`    // 0-based 欄位索引
	Mass     []float64 `json:"mass"`     // 表所編碼的 P(r)，Mass[i] 對應半徑 i+1
	Analytic []float64 `json:"analytic"` // 擴展精度的 r^(-e)/S，適合度檢定的期望值
}

func NewTableResultDTO(at *sampler.AliasTable) TableResult {
	return TableResult{
		Exponent: at.Exponent(),
		RMax:     at.RMax(),
		Prob:     at.Prob(),
		Alias:    at.Alias(),
		Mass:     at.Mass(),
		Analytic: at.Analytic(),
	}
}
