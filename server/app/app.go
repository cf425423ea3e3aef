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

// Package app 提供應用程式生命週期管理（App），負責統一啟動與關閉多個 Component。
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"
)

// DefaultShutdownTimeout 是所有 Component 共用的關閉期限。
const DefaultShutdownTimeout = 5 * time.Second

// App 啟動所有註冊的 Component，並在收到 OS 信號、ctx 結束或任一 Component 返回時協調關閉。
//
// 關閉依註冊順序進行：先註冊 HTTP server 再註冊 WalkRuntime，
// 進行中的請求會先排空，之後才關閉 walker 池。
type App struct {
	comps   []Component
	log     *slog.Logger
	timeout time.Duration
}

// New 建立一個新的 App 實例。
func New() *App {
	return &App{log: slog.New(slog.DiscardHandler), timeout: DefaultShutdownTimeout}
}

// NewWith 建立 App 並依序註冊 Component。
func NewWith(comps ...Component) *App {
	app := New()
	for _, c := range comps {
		app.Register(c)
	}
	return app
}

// Register 將一個 Component 註冊到 App 中，該 Component 將在 Run 時被管理。
func (a *App) Register(c Component) {
	a.comps = append(a.comps, c)
}

// WithLogger 設定生命週期事件的 logger；nil 忽略。
func (a *App) WithLogger(log *slog.Logger) *App {
	if log != nil {
		a.log = log
	}
	return a
}

// WithShutdownTimeout 設定關閉期限；<= 0 忽略。
func (a *App) WithShutdownTimeout(d time.Duration) *App {
	if d > 0 {
		a.timeout = d
	}
	return a
}

// Run 以 SIGINT/SIGTERM 作為結束信號執行 RunContext。
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext 並行執行所有 Component.Run，阻塞直到 ctx 結束或任一 Component 返回。
//
//   - ctx 結束：關閉所有 Component，回傳關閉過程的錯誤（正常為 nil）。
//   - Component 返回：關閉所有 Component，回傳該錯誤與關閉錯誤的合併。
func (a *App) RunContext(ctx context.Context) error {
	if len(a.comps) == 0 {
		return errors.New("app: no components registered")
	}
	errCh := make(chan error, len(a.comps))
	for _, c := range a.comps {
		go func(c Component) {
			errCh <- c.Run()
		}(c)
	}
	a.log.Info("app started", slog.Int("components", len(a.comps)))

	select {
	case <-ctx.Done():
		a.log.Info("app stopping", slog.String("cause", context.Cause(ctx).Error()))
		return a.shutdown()
	case err := <-errCh:
		if err != nil {
			a.log.Error("component stopped", slog.Any("err", err))
		} else {
			a.log.Info("component stopped")
		}
		return errors.Join(err, a.shutdown())
	}
}

// shutdown 在同一個期限內依序呼叫所有 Component.Shutdown。
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	var all []error
	for _, c := range a.comps {
		if err := c.Shutdown(ctx); err != nil {
			name := fmt.Sprintf("%T", c)
			a.log.Warn("shutdown failed", slog.String("component", name), slog.Any("err", err))
			all = append(all, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(all...)
}
