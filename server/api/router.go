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

package api

import (
	"log/slog"

	"github.com/zintix-labs/lerwlab"
	v1 "github.com/zintix-labs/lerwlab/server/api/v1"
	"github.com/zintix-labs/lerwlab/server/metrics"
	"github.com/zintix-labs/lerwlab/server/netsvr"
	"github.com/zintix-labs/lerwlab/server/netsvr/middleware"
	"github.com/zintix-labs/lerwlab/server/svrcfg"
)

// RegisterRoutes 建立 runtime 並註冊所有路由；回傳的 runtime 交由 app 管理生命週期。
func RegisterRoutes(svr netsvr.NetSvr, sCfg *svrcfg.SvrCfg) (*lerwlab.WalkRuntime, error) {
	rt, err := sCfg.Lab.BuildRuntime(sCfg.PoolSize)
	if err != nil {
		return nil, err
	}
	m := metrics.New(rt)
	registerMiddleware(svr, sCfg.Log)
	svr.Handle("/metrics", m.Handler())
	registerV1API(svr, rt, m, sCfg.Log)
	return rt, nil
}

func registerMiddleware(svr netsvr.NetSvr, log *slog.Logger) {
	svr.Use(middleware.RequestID)
	svr.Use(middleware.AccessLog(log))
	svr.Use(middleware.Recover(log))
	svr.Use(middleware.Compression)
}

func registerV1API(svr netsvr.NetSvr, rt *lerwlab.WalkRuntime, m *metrics.Metrics, log *slog.Logger) {
	wh := v1.NewWalkHandler(rt, m, log)
	sh := v1.NewSimHandler(rt, m, log)
	svr.Group("/v1", func(vOne netsvr.NetRouter) {
		vOne.Get("/walk", wh.Walk)
		vOne.Post("/walk", wh.Walk)
		vOne.Get("/table", wh.Table)
		vOne.Get("/settings", wh.Settings)
		vOne.Get("/metrics", wh.Metrics)

		vOne.Get("/sim", sh.Sim)
		vOne.Post("/sim", sh.Sim)
		vOne.Post("/simbycfg", sh.SimByCfg)
		vOne.Post("/stat", sh.Stat)
	})
}
