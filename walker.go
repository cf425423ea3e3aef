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

package lerwlab

import (
	"encoding/binary"
	"sync"

	"github.com/zintix-labs/lerwlab/corefmt"
	"github.com/zintix-labs/lerwlab/dto"
	"github.com/zintix-labs/lerwlab/errs"
	"github.com/zintix-labs/lerwlab/recorder"
	"github.com/zintix-labs/lerwlab/sdk/buf"
	"github.com/zintix-labs/lerwlab/sdk/core"
	"github.com/zintix-labs/lerwlab/sdk/lattice"
	"github.com/zintix-labs/lerwlab/sdk/ring"
	"github.com/zintix-labs/lerwlab/sdk/sampler"
	"github.com/zintix-labs/lerwlab/setting"
)

// Walker 驅動單一 walk：每步先以 alias table 抽半徑 r，再在 Chebyshev 環上均勻抽一點。
//
// 持有：
//   - RNG 核心（Core）：每台 walker 獨立。
//   - alias table：唯讀，可被多台 walker 共用。
//   - 佔用集：大小為 (2L+1)² bits，建一次後以 Reset 重用。
//
// 並發語意：同一台 Walker 不應被多 goroutine 同時驅動；Walk 以 mutex 保護，熱路徑（Step/Run）不上鎖。
//
// Buffer 語意：Step 與 Run 回傳的指標指向可重用 buffer，下一次呼叫會覆寫。需要保留時請轉成 DTO。
type Walker struct {
	walkName string
	walkId   setting.WID
	ws       *setting.WalkSetting
	cf       core.PRNGFactory
	core     *core.Core
	table    *sampler.AliasTable
	occ      *lattice.OccupancySet
	pos      lattice.Position
	step     buf.StepResult
	result   *buf.WalkResult
	mu       sync.Mutex
	initseed int64 // 出生 seed（便於追溯；完整重現請用 Snapshot/Restore）
}

func newWalkerWithSeed(ws *setting.WalkSetting, at *sampler.AliasTable, seed int64) (*Walker, error) {
	if ws == nil || at == nil {
		return nil, errs.NewFatal("walk setting and alias table are required")
	}
	if at.RMax() != ws.RMax || at.Exponent() != ws.Exponent {
		return nil, errs.Fatalf("alias table (e=%v, r_max=%d) does not match walk %s", at.Exponent(), at.RMax(), ws.WalkName)
	}
	occ, err := lattice.NewOccupancySet(ws.Bound)
	if err != nil {
		return nil, err
	}
	cf := ws.Factory()
	w := &Walker{
		walkName: ws.WalkName,
		walkId:   ws.WalkID,
		ws:       ws,
		cf:       cf,
		core:     core.New(cf.New(seed)),
		table:    at,
		occ:      occ,
		result:   buf.NewWalkResult(ws),
		initseed: seed,
	}
	w.Reset(false)
	return w, nil
}

// Reset 清空佔用集、回到原點並標記原點。
func (w *Walker) Reset(trace bool) {
	w.occ.Reset()
	w.pos = lattice.Origin
	w.occ.Mark(w.pos)
	w.result.Begin(w.pos, trace)
}

// Step 走一步。
//
// 目標點超出 [-L,L]² 時 Exit=true 且位置不變；否則 Revisit 回報目標是否已被佔用，接著標記並移動。
func (w *Walker) Step() *buf.StepResult {
	r := w.table.Sample(w.core)
	to := ring.Step(w.pos, r, w.core)
	st := &w.step
	st.From = w.pos
	st.To = to
	st.Radius = r
	st.Revisit = false
	st.Exit = false
	if !w.occ.Contains(to) {
		st.Exit = true
		return st
	}
	st.Revisit = w.occ.IsMarked(to)
	w.occ.Mark(to)
	w.pos = to
	return st
}

// Run 從原點開始走到 steps 步或越界為止；steps <= 0 時使用設定值。
//
// rec 可為 nil；不為 nil 時每一步與整個 walk 都會被紀錄。
func (w *Walker) Run(steps int, trace bool, rec *recorder.StepRecorder) *buf.WalkResult {
	if steps <= 0 {
		steps = w.ws.Steps
	}
	w.Reset(trace)
	for i := 0; i < steps; i++ {
		st := w.Step()
		if rec != nil {
			rec.RecordStep(st)
		}
		w.result.Append(*st)
		if st.Exit {
			break
		}
	}
	if !w.result.IsWalkEnd {
		w.result.End()
	}
	if rec != nil {
		rec.RecordWalk(w.result)
	}
	return w.result
}

// Walk 是對外入口：驗證請求、必要時切換 RNG 起點、跑一個完整 walk 並轉成 DTO。
//
// 帶 seed 或 start_b64u 時視為重放，結束後 walker 的 RNG 會還原，不影響後續請求的亂數流。
func (w *Walker) Walk(req *dto.WalkRequest) (dto.WalkResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.valid(req); err != nil {
		return dto.WalkResult{}, err
	}
	snap, err := req.StartSnap()
	if err != nil {
		return dto.WalkResult{}, err
	}
	if req.Seed != nil && snap != nil {
		return dto.WalkResult{}, errs.NewWarn("seed and start_state are mutually exclusive")
	}
	if req.Seed != nil {
		if snap, err = w.cf.New(*req.Seed).Snapshot(); err != nil {
			return dto.WalkResult{}, errs.Wrap(err, "seed snapshot failed")
		}
	}

	rem, err := w.SnapshotCore()
	if err != nil {
		return dto.WalkResult{}, errs.NewFatal("before snapshot error " + err.Error())
	}
	start := rem
	if snap != nil {
		if err := w.RestoreCore(snap); err != nil {
			return dto.WalkResult{}, errs.Wrap(errs.Invalidf("%v", err), "restore core failed")
		}
		start = snap
	}

	wr := w.Run(req.Steps, req.Trace, nil)

	after, err := w.SnapshotCore()
	if err != nil {
		if e := w.RestoreCore(rem); e != nil {
			return dto.WalkResult{}, errs.NewFatal("fall back err " + e.Error())
		}
		return dto.WalkResult{}, errs.NewWarn("after snapshot error " + err.Error())
	}
	if snap != nil {
		if err := w.RestoreCore(rem); err != nil {
			return dto.WalkResult{}, errs.NewFatal("restore core back err " + err.Error())
		}
	}
	res, err := dto.NewWalkResultDTO(wr, start, after)
	res.UID = req.UID
	return res, err
}

func (w *Walker) valid(req *dto.WalkRequest) error {
	if req == nil {
		return errs.NewWarn("nil walk request")
	}
	if req.WalkID != w.walkId {
		return errs.NewWarn("walk id is not matched")
	}
	if req.WalkName != "" && req.WalkName != w.walkName {
		return errs.NewWarn("walk name is not matched")
	}
	if req.Steps < 0 || req.Steps > w.ws.Steps {
		return errs.Warnf("steps must be in [0, %d]", w.ws.Steps)
	}
	return nil
}

func (w *Walker) Position() lattice.Position { return w.pos }

func (w *Walker) IsMarked(p lattice.Position) bool {
	return w.occ.Contains(p) && w.occ.IsMarked(p)
}

func (w *Walker) Setting() *setting.WalkSetting { return w.ws }

func (w *Walker) Seed() int64 { return w.initseed }

// SnapshotCore 取得 RNG 狀態。
func (w *Walker) SnapshotCore() ([]byte, error) {
	return w.core.Snapshot()
}

// RestoreCore 還原 RNG 狀態。
func (w *Walker) RestoreCore(src []byte) error {
	return w.core.Restore(src)
}

// Snapshot 取得完整 walker 狀態：RNG、目前位置與 zstd 壓縮後的佔用集，三個 frame 依序串接。
//
// 用於長 walk 的 checkpoint；還原後繼續 Step 會與未中斷時走出同一條路徑。
func (w *Walker) Snapshot() ([]byte, error) {
	cs, err := w.core.Snapshot()
	if err != nil {
		return nil, errs.Wrap(err, "core snapshot failed")
	}
	pos := binary.AppendVarint(nil, int64(w.pos.X))
	pos = binary.AppendVarint(pos, int64(w.pos.Y))
	occ, err := corefmt.Compress(w.occ.Bytes())
	if err != nil {
		return nil, err
	}
	out := corefmt.AppendBlobFrame(nil, cs)
	out = corefmt.AppendBlobFrame(out, pos)
	return corefmt.AppendBlobFrame(out, occ), nil
}

// Restore 由 Snapshot 的輸出還原；任何欄位不合法都不會改動 walker。
func (w *Walker) Restore(src []byte) error {
	cs, rest, err := corefmt.NextBlobFrame(src)
	if err != nil {
		return err
	}
	posRaw, rest, err := corefmt.NextBlobFrame(rest)
	if err != nil {
		return err
	}
	occZ, err := corefmt.DecodeBlobFrame(rest)
	if err != nil {
		return err
	}

	x, n := binary.Varint(posRaw)
	if n <= 0 {
		return errs.Invalidf("walker snapshot: bad position")
	}
	y, m := binary.Varint(posRaw[n:])
	if m <= 0 || n+m != len(posRaw) {
		return errs.Invalidf("walker snapshot: bad position")
	}
	pos := lattice.Position{X: int(x), Y: int(y)}
	if !w.occ.Contains(pos) {
		return errs.Invalidf("walker snapshot: position %v outside bound %d", pos, w.occ.Bound())
	}
	bits, err := corefmt.Decompress(occZ, uint64(w.occ.ByteLen()))
	if err != nil {
		return err
	}
	if len(bits) != w.occ.ByteLen() {
		return errs.Invalidf("walker snapshot: occupancy length %d, want %d", len(bits), w.occ.ByteLen())
	}
	old, err := w.core.Snapshot()
	if err != nil {
		return errs.Wrap(err, "core snapshot failed")
	}
	if err := w.core.Restore(cs); err != nil {
		_ = w.core.Restore(old)
		return errs.Wrap(errs.Invalidf("%v", err), "core restore failed")
	}
	if err := w.occ.Load(bits); err != nil {
		return err
	}
	// 目前位置必定被佔用
	w.occ.Mark(pos)
	w.pos = pos
	w.result.Begin(pos, false)
	return nil
}
