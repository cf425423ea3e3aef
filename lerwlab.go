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

// Package lerwlab 提供長程 lattice walk 實驗室的「組裝入口（assembler）」與「運行入口（runtime entry）」。
//
// Lab 把兩個地基組裝在一起，並提供建立 Walker / Simulator / Runtime 的入口：
//  1. Catalog：walk 設定目錄，定義有哪些設定、各自對應的設定檔名稱（ConfigName）。
//  2. TableCache：依 (exponent, r_max) 共用的 alias table；表建好後唯讀，可被任意多個 walker 共用。
//     catalog 內設定的表常駐；其餘（自訂設定、/table 查詢）放在有上限的 ad-hoc 快取，
//     並以 semaphore 限制同時建表的數量。
//
// Lab 本身不綁定任何「檔案路徑」概念：設定檔來源一律以 fs.FS 的形式注入。
// RNG 工廠由每份設定的 rng 欄位決定（pcg64 | pcg32 | keyed）。
//
// 典型使用情境：
//
//	lab, _ := lerwlab.NewAuto(lerwlab.Configs(cfgFS), nil)
//	w, _ := lab.NewWalkerWithSeed(1, 42)
//	res := w.Run(0, false, nil)
package lerwlab

import (
	"context"
	"crypto/rand"
	"io/fs"
	"log/slog"
	"math"
	"math/big"
	"time"

	"github.com/zintix-labs/lerwlab/catalog"
	"github.com/zintix-labs/lerwlab/errs"
	"github.com/zintix-labs/lerwlab/sdk/sampler"
	"github.com/zintix-labs/lerwlab/setting"
	"golang.org/x/sync/semaphore"
)

const (
	// AdhocTableLimit 是 ad-hoc 快取最多保留的表數量。
	AdhocTableLimit = 8
	// adhocBuilds 是同時進行的 ad-hoc 建表上限。
	adhocBuilds = 2
)

// Configs 用來把一或多個設定檔來源（fs.FS）打包成 New() 需要的參數。
//
// 可以用 go:embed 把設定編進 binary，也可以用 os.DirFS 在本機開發時讀取目錄。
func Configs(cfgs ...fs.FS) []fs.FS {
	return cfgs
}

// Lab 是組裝器與運行入口。
//
//   - 註冊階段：建立 catalog、掃描設定檔、檢查重複與缺漏。
//   - 執行階段：Freeze 後依設定 ID 建立 Walker / Simulator / Runtime。
//
// runtime 一旦開始就不應再變更 Catalog。
type Lab struct {
	cat      *catalog.Catalog
	tables   *sampler.TableCache // catalog 設定用，常駐
	adhoc    *sampler.TableCache // 其餘參數，有上限
	adhocSem *semaphore.Weighted
	log      *slog.Logger
	sum      []catalog.Summary
}

// New 建立一個 Lab instance（註冊階段）。
//
// log 為 nil 時不輸出任何日誌。
func New(cfgs []fs.FS, log *slog.Logger) (*Lab, error) {
	if len(cfgs) == 0 {
		return nil, errs.NewFatal("configs required")
	}
	cata, err := catalog.New(cfgs...)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Lab{
		cat:      cata,
		tables:   sampler.NewTableCache(),
		adhoc:    sampler.NewBoundedTableCache(AdhocTableLimit),
		adhocSem: semaphore.NewWeighted(adhocBuilds),
		log:      log,
	}, nil
}

// NewAuto 掃描所有設定檔、註冊並 Freeze，直接進入執行階段。
func NewAuto(cfgs []fs.FS, log *slog.Logger) (*Lab, error) {
	lab, err := New(cfgs, log)
	if err != nil {
		return nil, err
	}
	if err := lab.RegisterAll(); err != nil {
		return nil, err
	}
	lab.Freeze()
	return lab, nil
}

func (l *Lab) Register(ents ...catalog.Entry) error {
	return l.cat.Register(ents...)
}

// RegisterAll 解析所有設定檔並以檔內宣告的 walk_id / walk_name 一次性註冊。
//
// Fail-fast 且原子：任何一個檔案失敗都不會留下半完成的 catalog。
func (l *Lab) RegisterAll() error {
	if err := l.cat.Discover(); err != nil {
		return err
	}
	l.log.Debug("catalog discovered", slog.Int("settings", len(l.cat.IDs())))
	return nil
}

func (l *Lab) Freeze() {
	l.cat.Freeze()
}

func (l *Lab) EntryByID(id setting.WID) (catalog.Entry, bool) {
	return l.cat.GetByID(id)
}

func (l *Lab) EntryByName(name string) (catalog.Entry, bool) {
	return l.cat.GetByName(name)
}

func (l *Lab) IDs() []setting.WID {
	return l.cat.IDs()
}

func (l *Lab) All() []catalog.Entry {
	return l.cat.All()
}

// Logger 回傳 Lab 使用的 logger（永不為 nil）。
func (l *Lab) Logger() *slog.Logger {
	return l.log
}

func (l *Lab) Summary() ([]catalog.Summary, error) {
	if !l.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	if l.sum != nil {
		return l.sum, nil
	}
	ids := l.cat.IDs()
	cs := make([]catalog.Summary, 0, len(ids))
	for _, id := range ids {
		ws, err := l.cat.SettingByID(id)
		if err != nil {
			return nil, err
		}
		cs = append(cs, catalog.SummaryOf(ws))
	}
	l.sum = cs
	return l.sum, nil
}

// Setting 依 ID 取得設定（每次回傳新解析的複本）。
func (l *Lab) Setting(id setting.WID) (*setting.WalkSetting, error) {
	if !l.cat.IsFrozen() {
		return nil, errs.NewFatal("catalog is not frozen yet")
	}
	return l.cat.SettingByID(id)
}

// Table 取得（必要時建立）指定參數的 alias table。
func (l *Lab) Table(exponent float64, rMax int) (*sampler.AliasTable, error) {
	return l.TableContext(context.Background(), exponent, rMax)
}

// TableContext 先查 catalog 設定的常駐表，沒有才走 ad-hoc 快取。
//
// ad-hoc 建表需先取得 semaphore；ctx 取消時放棄等待並回傳包裝後的 ctx.Err()。
func (l *Lab) TableContext(ctx context.Context, exponent float64, rMax int) (*sampler.AliasTable, error) {
	if at, ok := l.tables.Lookup(exponent, rMax); ok {
		return at, nil
	}
	if at, ok := l.adhoc.Lookup(exponent, rMax); ok {
		return at, nil
	}
	if err := l.adhocSem.Acquire(ctx, 1); err != nil {
		return nil, errs.Wrap(err, "alias table build canceled")
	}
	defer l.adhocSem.Release(1)
	return l.buildTable(ctx, l.adhoc, exponent, rMax)
}

// registeredTable 取得 catalog 設定的常駐表。
func (l *Lab) registeredTable(ws *setting.WalkSetting) (*sampler.AliasTable, error) {
	return l.buildTable(context.Background(), l.tables, ws.Exponent, ws.RMax)
}

func (l *Lab) buildTable(ctx context.Context, c *sampler.TableCache, exponent float64, rMax int) (*sampler.AliasTable, error) {
	_, cached := c.Lookup(exponent, rMax)
	start := time.Now()
	at, err := c.GetContext(ctx, exponent, rMax)
	if err != nil {
		return nil, err
	}
	if !cached {
		l.log.Debug("alias table built",
			slog.Float64("exponent", exponent),
			slog.Int("r_max", rMax),
			slog.Duration("elapsed", time.Since(start)))
	}
	return at, nil
}

// NewWalker 以 crypto/rand seed 建立 Walker。
func (l *Lab) NewWalker(id setting.WID) (*Walker, error) {
	seed, err := cryptoSeed()
	if err != nil {
		return nil, err
	}
	return l.NewWalkerWithSeed(id, seed)
}

// NewWalkerWithSeed 以指定 seed 建立 Walker；同一份設定 + 同一個 seed 會走出同一條路徑。
func (l *Lab) NewWalkerWithSeed(id setting.WID, seed int64) (*Walker, error) {
	ws, err := l.Setting(id)
	if err != nil {
		return nil, err
	}
	return l.newWalker(ws, seed)
}

func (l *Lab) newWalker(ws *setting.WalkSetting, seed int64) (*Walker, error) {
	at, err := l.registeredTable(ws)
	if err != nil {
		return nil, err
	}
	return newWalkerWithSeed(ws, at, seed)
}

func (l *Lab) NewSimulator(id setting.WID) (*Simulator, error) {
	seed, err := cryptoSeed()
	if err != nil {
		return nil, err
	}
	return l.NewSimulatorWithSeed(id, seed)
}

func (l *Lab) NewSimulatorWithSeed(id setting.WID, seed int64) (*Simulator, error) {
	ws, err := l.Setting(id)
	if err != nil {
		return nil, err
	}
	at, err := l.registeredTable(ws)
	if err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(ws, at, seed, l.log)
}

// NewSimulatorBySetting 以外部設定（不需在 catalog 註冊）建立 Simulator。
func (l *Lab) NewSimulatorBySetting(ws *setting.WalkSetting, seed int64) (*Simulator, error) {
	return l.NewSimulatorBySettingContext(context.Background(), ws, seed)
}

// NewSimulatorBySettingContext 同 NewSimulatorBySetting；建表期間觀察 ctx。
func (l *Lab) NewSimulatorBySettingContext(ctx context.Context, ws *setting.WalkSetting, seed int64) (*Simulator, error) {
	if ws == nil {
		return nil, errs.NewWarn("walk setting is required")
	}
	if err := ws.Valid(); err != nil {
		return nil, err
	}
	at, err := l.TableContext(ctx, ws.Exponent, ws.RMax)
	if err != nil {
		return nil, err
	}
	return newSimulatorWithSeed(ws, at, seed, l.log)
}

// NewSimulatorByJSON 解析 JSON 設定後建立 Simulator。
func (l *Lab) NewSimulatorByJSON(raw []byte, seed int64) (*Simulator, error) {
	ws, err := setting.FromJSON(raw)
	if err != nil {
		return nil, err
	}
	return l.NewSimulatorBySetting(ws, seed)
}

// BuildRuntime Freeze catalog 後為每個設定建立 walker 池。
func (l *Lab) BuildRuntime(poolSize int) (*WalkRuntime, error) {
	l.Freeze()
	ids := l.cat.IDs()
	if len(ids) == 0 {
		return nil, errs.NewFatal("no walks registered")
	}

	rt := &WalkRuntime{
		lab:      l,
		pools:    make(map[setting.WID]*WalkerPool, len(ids)),
		ids:      ids,
		done:     make(chan struct{}),
		poolSize: max(1, poolSize),
	}
	rt.reason.Store("")

	for _, id := range ids {
		ws, err := l.Setting(id)
		if err != nil {
			return nil, err
		}
		at, err := l.registeredTable(ws)
		if err != nil {
			return nil, err
		}
		seed, err := cryptoSeed()
		if err != nil {
			return nil, err
		}
		wp, err := newWalkerPool(rt.poolSize, ws, at, seed)
		if err != nil {
			return nil, err
		}
		rt.pools[id] = wp
	}
	l.log.Info("walk runtime ready", slog.Int("walks", len(ids)), slog.Int("pool_size", rt.poolSize))
	return rt, nil
}

// cryptoSeed 以 crypto/rand 產生非負 seed，避免對外服務時 RNG 可預測。
func cryptoSeed() (int64, error) {
	seed, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return 0, errs.Wrap(err, "new crypto seed error in go std lib")
	}
	return seed.Int64(), nil
}
