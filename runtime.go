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
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zintix-labs/lerwlab/catalog"
	"github.com/zintix-labs/lerwlab/dto"
	"github.com/zintix-labs/lerwlab/errs"
	"github.com/zintix-labs/lerwlab/setting"
	"github.com/zintix-labs/lerwlab/stats"
)

// MaxTableRMax 是對外請求（/table、/stat、自訂設定模擬）允許的最大 r_max。
const MaxTableRMax = 100000

// MaxSimWalks 限制單一 Sim 請求的 walk 總數。
const MaxSimWalks = 1000000

// MaxSimWorkers 限制單一 Sim 請求的併發數。
const MaxSimWorkers = 64

// MaxCustomBound 限制外部設定的 lattice 半寬；每台 walker 的佔用集為 (2L+1)² bits。
const MaxCustomBound = 4096

type WalkRuntime struct {
	lab *Lab

	// 每份設定一個 pool
	pools map[setting.WID]*WalkerPool
	ids   []setting.WID

	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	reason    atomic.Value // string

	poolSize int
}

func (rt *WalkRuntime) checkOpen(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return errs.NewWarn("request canceled/timeout: " + ctx.Err().Error())
	case <-rt.done:
		rt.closed.Store(true)
		return errs.NewFatal("walk runtime closed: " + rt.ClosedReason())
	default:
		return nil
	}
}

// Walk 把請求交給對應設定的 walker 池。
func (rt *WalkRuntime) Walk(ctx context.Context, req *dto.WalkRequest) (dto.WalkResult, error) {
	if err := rt.checkOpen(ctx); err != nil {
		return dto.WalkResult{}, err
	}
	wp, ok := rt.pools[req.WalkID]
	if !ok {
		return dto.WalkResult{}, errs.NewWarn("walk id not found")
	}
	return wp.Walk(ctx, req)
}

// SimBySetting 以呼叫端提供的設定（不需註冊）跑模擬；規模限制與 Sim 相同。
func (rt *WalkRuntime) SimBySetting(ctx context.Context, ws *setting.WalkSetting, walks, workers int, seed *int64) (*stats.WalkReport, time.Duration, error) {
	if err := rt.checkOpen(ctx); err != nil {
		return nil, 0, err
	}
	if ws == nil {
		return nil, 0, errs.NewWarn("walk setting is required")
	}
	if ws.Bound > MaxCustomBound {
		return nil, 0, errs.Invalidf("bound must be <= %d for custom settings", MaxCustomBound)
	}
	if ws.RMax > MaxTableRMax {
		return nil, 0, errs.Invalidf("r_max must be <= %d for custom settings", MaxTableRMax)
	}
	if err := validSimSize(walks, workers); err != nil {
		return nil, 0, err
	}
	var s int64
	if seed != nil {
		s = *seed
	} else {
		var err error
		if s, err = cryptoSeed(); err != nil {
			return nil, 0, err
		}
	}
	sim, err := rt.lab.NewSimulatorBySettingContext(ctx, ws, s)
	if err != nil {
		return nil, 0, err
	}
	return sim.SimMPContext(ctx, walks, max(1, workers), false)
}

// Lab 回傳建立此 runtime 的 Lab。
func (rt *WalkRuntime) Lab() *Lab {
	return rt.lab
}

// Sim 以獨立的 Simulator 跑 walks 次 walk（不占用 walker 池），回傳統計報表。
func (rt *WalkRuntime) Sim(ctx context.Context, req *dto.SimRequest) (*stats.WalkReport, time.Duration, error) {
	if err := rt.checkOpen(ctx); err != nil {
		return nil, 0, err
	}
	if _, ok := rt.pools[req.WalkID]; !ok {
		return nil, 0, errs.NewWarn("walk id not found")
	}
	if err := validSimSize(req.Walks, req.Workers); err != nil {
		return nil, 0, err
	}
	workers := max(1, req.Workers)
	var (
		sim *Simulator
		err error
	)
	if req.Seed != nil {
		sim, err = rt.lab.NewSimulatorWithSeed(req.WalkID, *req.Seed)
	} else {
		sim, err = rt.lab.NewSimulator(req.WalkID)
	}
	if err != nil {
		return nil, 0, err
	}
	return sim.SimMPContext(ctx, req.Walks, workers, false)
}

// validSimSize 檢查對外模擬請求的規模上限；workers 為 0 視為 1。
func validSimSize(walks, workers int) error {
	if walks < 1 || walks > MaxSimWalks {
		return errs.Warnf("walks must be in [1, %d]", MaxSimWalks)
	}
	if workers < 0 || workers > MaxSimWorkers {
		return errs.Warnf("workers must be in [0, %d]", MaxSimWorkers)
	}
	return nil
}

// Table 回傳 alias table 的檢視結構。
func (rt *WalkRuntime) Table(ctx context.Context, req *dto.TableRequest) (dto.TableResult, error) {
	if err := rt.checkOpen(ctx); err != nil {
		return dto.TableResult{}, err
	}
	if req.RMax > MaxTableRMax {
		return dto.TableResult{}, errs.Warnf("r_max must be <= %d", MaxTableRMax)
	}
	at, err := rt.lab.TableContext(ctx, req.Exponent, req.RMax)
	if err != nil {
		return dto.TableResult{}, err
	}
	return dto.NewTableResultDTO(at), nil
}

func (rt *WalkRuntime) Settings() ([]catalog.Summary, error) {
	return rt.lab.Summary()
}

func (rt *WalkRuntime) Metrics() []WalkerPoolMetrics {
	out := make([]WalkerPoolMetrics, 0, len(rt.ids))
	for _, id := range rt.ids {
		out = append(out, rt.pools[id].Metrics())
	}
	return out
}

// Close 關閉 runtime 與所有 pool；可重複呼叫。
func (rt *WalkRuntime) Close() {
	rt.closeWithReason("closed")
}

func (rt *WalkRuntime) closeWithReason(reason string) {
	rt.closeOnce.Do(func() {
		if reason == "" {
			reason = "closed"
		}
		rt.reason.Store(reason)
		rt.closed.Store(true)
		close(rt.done)
		for _, id := range rt.ids {
			rt.pools[id].closeWithReason(reason)
		}
		rt.lab.log.Info("walk runtime closed", slog.String("reason", reason))
	})
}

// Shutdown 讓 runtime 可以註冊成 app.Component。
func (rt *WalkRuntime) Shutdown(ctx context.Context) error {
	rt.Close()
	return nil
}

// Run 阻塞直到 runtime 被關閉；定期把 pool 觀測寫進 debug log。
func (rt *WalkRuntime) Run() error {
	tk := time.NewTicker(time.Minute)
	defer tk.Stop()
	for {
		select {
		case <-rt.done:
			return nil
		case <-tk.C:
			for _, m := range rt.Metrics() {
				rt.lab.log.Debug("walker pool",
					slog.String("walk", m.WalkName),
					slog.Int("available", m.Available),
					slog.Int("inflight", m.Inflight),
					slog.Int("rebuild", m.Rebuild),
					slog.Bool("closed", m.Closed))
			}
		}
	}
}

func (rt *WalkRuntime) Closed() bool {
	return rt.closed.Load()
}

func (rt *WalkRuntime) ClosedReason() string {
	if v := rt.reason.Load(); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
