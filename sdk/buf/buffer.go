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

// Package buf 提供 walker 熱路徑上可重用的結果 buffer。
package buf

import (
	"github.com/zintix-labs/lerwlab/sdk/lattice"
	"github.com/zintix-labs/lerwlab/setting"
)

// MaxTrace 是單次 walk 最多保留的路徑點數（含原點）。
const MaxTrace = 10000

// StepResult 是單一步的結果。
//
// Exit 為 true 時 To 是越界的目標點，walker 位置不變（To 未被標記）。
type StepResult struct {
	From    lattice.Position
	To      lattice.Position
	Radius  int
	Revisit bool // To 在移動前已被佔用
	Exit    bool // To 超出 [-L,L]²，walk 終止
}

// WalkResult 保存一次完整 walk 的結果。
type WalkResult struct {
	WalkName        string
	WalkID          setting.WID
	Steps           int              // 成功移動的步數
	Revisits        int              // 落在已佔用格點的步數
	Exited          bool             // 是否因越界終止
	Final           lattice.Position // 終點
	MaxDisplacement int              // 過程中離原點最遠的 Chebyshev 距離
	Trace           bool             // 是否記錄路徑
	Path            []lattice.Position
	Truncated       bool // 路徑超過 MaxTrace 被截斷
	IsWalkEnd       bool
}

func NewWalkResult(ws *setting.WalkSetting) *WalkResult {
	return &WalkResult{
		WalkName: ws.WalkName,
		WalkID:   ws.WalkID,
	}
}

// Begin 清空內容並記錄起點；trace 為 true 時保留路徑。
func (w *WalkResult) Begin(start lattice.Position, trace bool) {
	w.Steps = 0
	w.Revisits = 0
	w.Exited = false
	w.Final = start
	w.MaxDisplacement = start.ChebyshevNorm()
	w.Trace = trace
	w.Path = w.Path[:0]
	w.Truncated = false
	w.IsWalkEnd = false
	if trace {
		w.Path = append(w.Path, start)
	}
}

// Append 累加一步；越界步會結束 walk。
func (w *WalkResult) Append(st StepResult) {
	if w.IsWalkEnd {
		panic("walk is already end, but still send new step")
	}
	if st.Exit {
		w.Exited = true
		w.IsWalkEnd = true
		return
	}
	w.Steps++
	if st.Revisit {
		w.Revisits++
	}
	w.Final = st.To
	if d := st.To.ChebyshevNorm(); d > w.MaxDisplacement {
		w.MaxDisplacement = d
	}
	if w.Trace {
		if len(w.Path) < MaxTrace {
			w.Path = append(w.Path, st.To)
		} else {
			w.Truncated = true
		}
	}
}

func (w *WalkResult) End() {
	w.IsWalkEnd = true
}
