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
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/zintix-labs/lerwlab/errs"
	"github.com/zintix-labs/lerwlab/recorder"
	"github.com/zintix-labs/lerwlab/sdk/sampler"
	"github.com/zintix-labs/lerwlab/setting"
	"github.com/zintix-labs/lerwlab/stats"
)

const capPrepare int = 64

// Simulator 以一或多台 walker 大量跑 walk，平行紀錄後合併成統計報表。
//
// 第一台 walker 使用初始 seed，其餘由 seedMaker 派生，因此同一 seed + 同一 workers 數可完整重現。
type Simulator struct {
	WalkName  string
	WalkID    setting.WID
	ws        *setting.WalkSetting
	table     *sampler.AliasTable
	initSeed  int64
	seedmaker *seedMaker
	log       *slog.Logger
	wBuf      []*Walker                // 併發 walker
	rBuf      []*recorder.StepRecorder // 併發紀錄員
}

func newSimulatorWithSeed(ws *setting.WalkSetting, at *sampler.AliasTable, seed int64, log *slog.Logger) (*Simulator, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Simulator{
		WalkName:  ws.WalkName,
		WalkID:    ws.WalkID,
		ws:        ws,
		table:     at,
		initSeed:  seed,
		seedmaker: newSeedMaker(seed),
		log:       log,
		wBuf:      make([]*Walker, 1, capPrepare),
		rBuf:      make([]*recorder.StepRecorder, 0, capPrepare),
	}
	w, err := newWalkerWithSeed(ws, at, seed)
	if err != nil {
		return nil, err
	}
	s.wBuf[0] = w
	return s, nil
}

// Sim 單線模擬：一台 walker 連續跑 walks 次，回傳統計結果與用時。
func (s *Simulator) Sim(walks int, showpb bool) (*stats.WalkReport, time.Duration, error) {
	return s.SimMPContext(context.Background(), walks, 1, showpb)
}

// SimMP 以 workers 台 walker 平行跑共 walks 次 walk，合併統計結果。
func (s *Simulator) SimMP(walks int, workers int, showpb bool) (*stats.WalkReport, time.Duration, error) {
	return s.SimMPContext(context.Background(), walks, workers, showpb)
}

// SimMPContext 與 SimMP 相同，但每個 walk 之間會檢查 ctx；取消時回傳 Warn 錯誤。
//
// walks 平均分給 workers，前 walks%workers 台多跑一次。
func (s *Simulator) SimMPContext(ctx context.Context, walks int, workers int, showpb bool) (*stats.WalkReport, time.Duration, error) {
	defer s.reset()
	if workers <= 0 {
		return nil, 0, errs.NewWarn("workers must > 0")
	}
	if walks < 1 {
		return nil, 0, errs.NewWarn("walks must > 0")
	}
	workers = min(workers, walks)
	for len(s.wBuf) < workers {
		w, err := newWalkerWithSeed(s.ws, s.table, s.seedmaker.next())
		if err != nil {
			return nil, 0, err
		}
		s.wBuf = append(s.wBuf, w)
	}
	expected := s.table.Analytic()
	for len(s.rBuf) < workers {
		r, err := recorder.NewStepRecorder(s.ws, expected)
		if err != nil {
			return nil, 0, err
		}
		s.rBuf = append(s.rBuf, r)
	}

	s.log.Info("simulation started",
		slog.String("walk", s.WalkName),
		slog.Int("walks", walks),
		slog.Int("workers", workers),
		slog.Int64("seed", s.initSeed))

	var canceled atomic.Bool
	wg := new(sync.WaitGroup)
	wg.Add(workers)
	bar := pb.StartNew(walks)
	if !showpb {
		bar.SetWriter(io.Discard)
	}
	base, extra := walks/workers, walks%workers
	for i := 0; i < workers; i++ {
		n := base
		if i < extra {
			n++
		}
		go func(w *Walker, rec *recorder.StepRecorder, n int) {
			defer wg.Done()
			for range n {
				if ctx.Err() != nil {
					canceled.Store(true)
					return
				}
				w.Run(0, false, rec)
				bar.Increment()
			}
		}(s.wBuf[i], s.rBuf[i], n)
	}
	wg.Wait()
	used := time.Since(bar.StartTime())
	bar.Finish()

	if canceled.Load() {
		return nil, used, errs.NewWarn("simulation canceled/timeout: " + ctx.Err().Error())
	}
	rec, err := recorder.MergeStepRecorder(s.rBuf[:workers])
	if err != nil {
		return nil, used, err
	}
	report := rec.Done()
	s.log.Info("simulation finished",
		slog.String("walk", s.WalkName),
		slog.Int("total_steps", report.Summary.TotalSteps),
		slog.Float64("exit_rate", report.Summary.ExitRate),
		slog.Float64("gof_p", report.GOF.PValue),
		slog.Duration("elapsed", used))
	return report, used, nil
}

// Walker 回傳第一台 walker（使用初始 seed），方便與單獨建立的 Walker 比對。
func (s *Simulator) Walker() *Walker {
	return s.wBuf[0]
}

func (s *Simulator) reset() {
	s.rBuf = s.rBuf[:0]
}

const mask63 = uint64(1<<63) - 1

type seedMaker struct {
	state atomic.Uint64 // always in [0, 2^63)
}

func newSeedMaker(seed int64) *seedMaker {
	s := &seedMaker{}
	s.state.Store(uint64(seed) & mask63)
	return s
}

// next 以全週期 LCG（mod 2^63）推進 state，再用可逆的 mix63 打散。
//
// 可能被多個 goroutine 同時呼叫（WalkerPool 補機），state 以 CAS 推進，每次呼叫取得唯一的值。
func (s *seedMaker) next() int64 {
	for {
		old := s.state.Load()
		next := (old*6364136223846793005 + 1442695040888963407) & mask63
		if s.state.CompareAndSwap(old, next) {
			return int64(mix63(next)) // 一定非負
		}
	}
}

// mix63：只用可逆的 bit 操作與乘奇數（mod 2^63）
func mix63(x uint64) uint64 {
	x &= mask63
	x ^= x >> 30
	x = (x * 0xBF58476D1CE4E5B9) & mask63
	x ^= x >> 27
	x = (x * 0x94D049BB133111EB) & mask63
	x ^= x >> 31
	return x & mask63
}
