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

package netsvr

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const defaultAddr string = ":5808"

const (
	readHeaderTimeout = 5 * time.Second
	// readTimeout 涵蓋 /v1/stat 的 histogram 上傳（上限 5MB）。
	readTimeout = 10 * time.Second
	// writeTimeout 需大於 /v1/sim 的處理上限，否則長模擬的回應會被截斷。
	writeTimeout = 90 * time.Second
	idleTimeout  = 120 * time.Second
)

// ChiAdapter 以 chi 實作 NetSvr；handler 與 middleware 都是標準 net/http 介面。
type ChiAdapter struct {
	router chi.Router
	server *http.Server
	addr   string
}

// NewChiServer 建立監聽 addr 的 ChiAdapter。
func NewChiServer(addr string) *ChiAdapter {
	cr := chi.NewRouter()
	return &ChiAdapter{
		router: cr,
		server: &http.Server{
			Addr:              addr,
			Handler:           cr,
			ReadHeaderTimeout: readHeaderTimeout,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
		},
		addr: addr,
	}
}

// NewChiServerDefault 建立監聽 :5808 的 ChiAdapter。
func NewChiServerDefault() *ChiAdapter {
	return NewChiServer(defaultAddr)
}

// Ready 檢查 adapter 是由建構子建立的根路由，且位址可解析為 host:port。
func (c *ChiAdapter) Ready() bool {
	if c == nil || c.router == nil || c.server == nil || c.server.Handler != c.router {
		return false
	}
	_, _, err := net.SplitHostPort(c.addr)
	return err == nil
}

// Run 阻塞直到 server 停止；經 Shutdown 正常關閉時回傳 nil。
func (c *ChiAdapter) Run() error {
	if err := c.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 停止接受新連線並等待進行中的 walk / sim 請求完成。
func (c *ChiAdapter) Shutdown(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}

func (c *ChiAdapter) Use(mw func(http.Handler) http.Handler) {
	c.router.Use(mw)
}

func (c *ChiAdapter) Get(path string, h http.HandlerFunc) {
	c.router.Get(path, h)
}

func (c *ChiAdapter) Post(path string, h http.HandlerFunc) {
	c.router.Post(path, h)
}

// Handle 掛載任意 http.Handler（例如 Prometheus exposition）。
func (c *ChiAdapter) Handle(path string, h http.Handler) {
	c.router.Handle(path, h)
}

// Group 在 path 底下建立子路由；子 adapter 沒有 server，無法控制啟停。
func (c *ChiAdapter) Group(path string, fn func(NetRouter)) {
	c.router.Route(path, func(r chi.Router) {
		fn(&ChiAdapter{router: r})
	})
}

func (c *ChiAdapter) Address() string {
	return c.addr
}

// Handler 回傳根路由，供 httptest 直接驅動。
func (c *ChiAdapter) Handler() http.Handler {
	return c.router
}
