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
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zintix-labs/lerwlab/dto"
	"github.com/zintix-labs/lerwlab/errs"
	"github.com/zintix-labs/lerwlab/sdk/sampler"
	"github.com/zintix-labs/lerwlab/setting"
)

// WalkerPool 管理「某一份設定」的所有 walker 實例。
//
// walker 的佔用集很大，因此預先建好並重複借用：
//  1. pool：健康且可用的 walker，供 Walk() 借出 / 歸還。
//  2. 執行中 panic 或回報 fatal 的 walker 直接丟棄（只記次數），再補上一台新的。
//
// 累計故障超過 maxFailures 代表系統正在連續故障，pool 會自行關閉讓上層接管。
// 丟棄的 walker 不保留任何參照，佔用集可立即回收。
type WalkerPool struct {
	walkName      string
	walkId        setting.WID
	ws            *setting.WalkSetting
	table         *sampler.AliasTable
	seedMaker     *seedMaker
	pool          chan *Walker  // 可用 walker
	failures      atomic.Int32  // 被淘汰的 walker 數
	maxFailures   int32
	done          chan struct{} // 關閉訊號：關閉後不再允許借出/歸還/補機
	closeOnce     sync.Once
	poolsize      int
	rebuild       atomic.Int32 // 補機次數
	inflight      atomic.Int32 // 使用中
	panics        atomic.Int32
	fatals        atomic.Int32
	closeReason   atomic.Value // string
	closeInflight atomic.Int32 // 關閉當下 inflight（快照）
	closeAvail    atomic.Int32 // 關閉當下 len(pool)
	closeFailures atomic.Int32 // 關閉當下 failures
}

// defaultMaxFailures 是 pool 自行關閉前可容忍的累計淘汰數。
const defaultMaxFailures = 100

// newWalkerPool 預先建立 n 台 walker（至少 1 台），seed 由 seedMaker 依序派生。
func newWalkerPool(n int, ws *setting.WalkSetting, at *sampler.AliasTable, seed int64) (*WalkerPool, error) {
	n = max(1, n)
	p := &WalkerPool{
		walkName:    ws.WalkName,
		walkId:      ws.WalkID,
		ws:          ws,
		table:       at,
		seedMaker:   newSeedMaker(seed),
		pool:        make(chan *Walker, n),
		maxFailures: defaultMaxFailures,
		done:        make(chan struct{}),
		poolsize:    n,
	}
	p.closeReason.Store("")
	p.closeInflight.Store(-1)
	p.closeAvail.Store(-1)
	p.closeFailures.Store(-1)

	for i := 0; i < n; i++ {
		w, err := newWalkerWithSeed(ws, at, p.seedMaker.next())
		if err != nil {
			return nil, err
		}
		p.pool <- w
	}
	return p, nil
}

func (p *WalkerPool) Close() {
	p.closeWithReason("closed")
}

func (p *WalkerPool) Closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// closeWithReason 進入關閉狀態並記錄原因（只寫入一次）。
func (p *WalkerPool) closeWithReason(reason string) {
	p.closeOnce.Do(func() {
		if reason == "" {
			reason = "closed"
		}
		p.closeReason.Store(reason)
		p.closeInflight.Store(p.inflight.Load())
		p.closeAvail.Store(int32(len(p.pool)))
		p.closeFailures.Store(p.failures.Load())
		close(p.done)
	})
}

// isFatalErr 只有明確宣告 Fatal 的錯誤代表 walker 狀態不可信；請求類錯誤不淘汰 walker。
func isFatalErr(err error) bool {
	if e, ok := errs.AsErr(err); ok {
		return e.ErrLv == errs.Fatal
	}
	return false
}

func (p *WalkerPool) Walk(ctx context.Context, req *dto.WalkRequest) (res dto.WalkResult, err error) {
	var w *Walker
	borrowed := false
	select {
	case <-p.done:
		return res, errs.NewFatal("walker pool closed: " + p.ClosedReason())
	case <-ctx.Done():
		return res, errs.NewWarn("walk canceled/timeout: " + ctx.Err().Error())
	case w = <-p.pool:
		borrowed = true
		p.inflight.Add(1)
	}
	if w == nil {
		return res, errs.NewFatal("walker pool got nil walker")
	}

	var isPanic bool
	defer func() {
		if borrowed {
			p.inflight.Add(-1)
		}
		if r := recover(); r != nil {
			isPanic = true
			p.panics.Add(1)
			err = errs.NewFatal(fmt.Sprintf("walker %s panic : %v", w.walkName, r))
		}
		if p.Closed() {
			return
		}

		if isPanic || isFatalErr(err) {
			if !isPanic {
				p.fatals.Add(1)
			}
			w = nil
			if p.failures.Add(1) > p.maxFailures {
				p.closeWithReason("overwhelmed_by_failures")
				if err == nil {
					err = errs.NewFatal("walker pool overwhelmed by failures")
				}
				return
			}

			fresh, buildErr := newWalkerWithSeed(p.ws, p.table, p.seedMaker.next())
			p.rebuild.Add(1)
			if buildErr != nil {
				err = errs.NewFatal(fmt.Sprintf("walker %s can not build", p.walkName))
				p.closeWithReason("rebuild_failed")
				return
			}
			select {
			case <-p.done:
			case p.pool <- fresh:
			}
			return
		}

		select {
		case <-p.done:
		case p.pool <- w:
		}
	}()

	res, err = w.Walk(req)
	return
}

func (p *WalkerPool) PoolSize() int { return p.poolsize }

func (p *WalkerPool) Inflight() int { return int(p.inflight.Load()) }

func (p *WalkerPool) ReBuild() int { return int(p.rebuild.Load()) }

func (p *WalkerPool) Panics() int { return int(p.panics.Load()) }

func (p *WalkerPool) Fatals() int { return int(p.fatals.Load()) }

// Available 回傳當下可借出的 walker 數（近似值）。
func (p *WalkerPool) Available() int { return len(p.pool) }

func (p *WalkerPool) ClosedReason() string {
	if v := p.closeReason.Load(); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// WalkerPoolMetrics 是拉取式的觀測快照，不綁任何 metrics SDK。
//
// Available 來自 len(chan)，高併發下為近似值。
// Close* 欄位只在關閉時寫入一次，未關閉時為 -1。
type WalkerPoolMetrics struct {
	WalkName string      `json:"walk_name"`
	WalkID   setting.WID `json:"walk_id"`

	PoolSize      int    `json:"pool_size"`
	Available     int    `json:"available"`
	Inflight      int    `json:"inflight"`
	Failures      int    `json:"failures"`
	Rebuild       int    `json:"rebuild"`
	Panics        int    `json:"panics"`
	Fatals        int    `json:"fatals"`
	Closed        bool   `json:"closed"`
	CloseReason   string `json:"close_reason"`

	CloseInflight int `json:"close_inflight"`
	CloseAvail    int `json:"close_avail"`
	CloseFailures int `json:"close_failures"`
}

func (p *WalkerPool) Metrics() WalkerPoolMetrics {
	return WalkerPoolMetrics{
		WalkName:      p.walkName,
		WalkID:        p.walkId,
		PoolSize:      p.poolsize,
		Available:     len(p.pool),
		Inflight:      int(p.inflight.Load()),
		Failures:      int(p.failures.Load()),
		Rebuild:       int(p.rebuild.Load()),
		Panics:        int(p.panics.Load()),
		Fatals:        int(p.fatals.Load()),
		Closed:        p.Closed(),
		CloseReason:   p.ClosedReason(),
		CloseInflight: int(p.closeInflight.Load()),
		CloseAvail:    int(p.closeAvail.Load()),
		CloseFailures: int(p.closeFailures.Load()),
	}
}
