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

// Package logger 組裝服務端使用的 slog.Logger。
//
// 三種模式：dev（text/stderr/debug）、prod（JSON/stdout/info，時間類欄位轉毫秒）、silence。
// 請求路徑上建議搭配 AsyncHandler，避免 I/O 延遲回傳到 walk / sim 請求。
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zintix-labs/lerwlab/errs"
)

type LogMode uint8

const (
	ModeDev LogMode = iota
	ModeProd
	ModeSilence
)

// Service 是每筆 log 附帶的 service 欄位值。
const Service = "lerwlab"

// ParseMode 解析 dev|prod|silence（大小寫不拘，也接受 ModeDev 這類舊寫法）。
func ParseMode(s string) (LogMode, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "Mode")) {
	case "", "dev":
		return ModeDev, nil
	case "prod":
		return ModeProd, nil
	case "silence":
		return ModeSilence, nil
	}
	return ModeDev, errs.Warnf("unknown log mode %q (dev|prod|silence)", s)
}

// NewDefaultLogger 依模式建立同步 logger。
func NewDefaultLogger(mode LogMode) *slog.Logger {
	return slog.New(buildHandler(mode, nil))
}

// NewDefaultAsyncLogger 依模式建立非同步 logger（buffer 8192）。
func NewDefaultAsyncLogger(mode LogMode) *slog.Logger {
	return slog.New(NewAsyncHandler(buildHandler(mode, nil), 8192))
}

// NewLogger 以呼叫端組裝的 Handler 建立 logger；nil 時使用 dev 模式。
func NewLogger(h slog.Handler) *slog.Logger {
	if h == nil {
		h = buildHandler(ModeDev, nil)
	}
	return slog.New(h)
}

// NewAsync 依模式建立非同步 logger，並回傳 handler 供關閉與讀取 Dropped。
func NewAsync(buf int, mode LogMode) (*slog.Logger, *AsyncHandler) {
	ah := NewAsyncHandler(buildHandler(mode, nil), buf)
	return slog.New(ah), ah
}

// AsyncHandler 把 Handle 改成 enqueue，由單一背景 goroutine 依序寫出。
//
// 隊列滿或已 Close 時直接丟棄並計數（Dropped），請求路徑永遠不會等待 I/O。
// slog.Logger 會忽略 Handle 的 error，因此 I/O 錯誤由 next 自行處理。
type AsyncHandler struct {
	next slog.Handler
	d    *dispatcher
}

type dispatcher struct {
	ch      chan queued
	closed  chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	dropped atomic.Uint64
}

type queued struct {
	ctx     context.Context
	rec     slog.Record
	handler slog.Handler
}

// NewAsyncHandler 包裝 next；buf <= 0 時為 1024。
func NewAsyncHandler(next slog.Handler, buf int) *AsyncHandler {
	if next == nil {
		next = buildHandler(ModeDev, nil)
	}
	if buf <= 0 {
		buf = 1024
	}
	d := &dispatcher{
		ch:     make(chan queued, buf),
		closed: make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return &AsyncHandler{next: next, d: d}
}

func (h *AsyncHandler) Ready() bool {
	return h != nil && h.d != nil
}

// Dropped 回傳因隊列滿或關閉後寫入而丟棄的筆數。
func (h *AsyncHandler) Dropped() uint64 {
	if !h.Ready() {
		return 0
	}
	return h.d.dropped.Load()
}

// Close 停止接收並寫完隊列中剩餘的 log；可重複呼叫。
func (h *AsyncHandler) Close() {
	if !h.Ready() {
		return
	}
	h.d.once.Do(func() { close(h.d.closed) })
	h.d.wg.Wait()
}

func (d *dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case it := <-d.ch:
			it.write()
		case <-d.closed:
			for {
				select {
				case it := <-d.ch:
					it.write()
				default:
					return
				}
			}
		}
	}
}

func (it queued) write() {
	if it.handler != nil {
		_ = it.handler.Handle(it.ctx, it.rec)
	}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *AsyncHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.Ready() {
		return nil
	}
	select {
	case <-h.d.closed:
		h.d.dropped.Add(1)
		return nil
	default:
	}
	// Record 的 attrs 可能與呼叫端共用底層陣列，跨 goroutine 前必須 Clone
	it := queued{ctx: ctx, rec: r.Clone(), handler: h.next}
	select {
	case h.d.ch <- it:
	default:
		h.d.dropped.Add(1)
	}
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{next: h.next.WithAttrs(attrs), d: h.d}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{next: h.next.WithGroup(name), d: h.d}
}

// durationsAsMillis 把 walk 延遲、建表耗時這類 Duration 欄位轉成毫秒浮點數，方便 log 聚合。
func durationsAsMillis(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindDuration {
		return slog.Float64(a.Key+"_ms", float64(a.Value.Duration())/float64(time.Millisecond))
	}
	return a
}

// buildHandler 依模式建立 handler；w 為 nil 時使用模式預設輸出。
func buildHandler(mode LogMode, w io.Writer) slog.Handler {
	var h slog.Handler
	switch mode {
	case ModeProd:
		if w == nil {
			w = os.Stdout
		}
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:       slog.LevelInfo,
			ReplaceAttr: durationsAsMillis,
		})
	case ModeSilence:
		return slog.DiscardHandler
	default:
		if w == nil {
			w = os.Stderr
		}
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return h.WithAttrs([]slog.Attr{slog.String("service", Service)})
}
