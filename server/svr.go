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

package server

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/zintix-labs/lerwlab/errs"
	"github.com/zintix-labs/lerwlab/server/api"
	"github.com/zintix-labs/lerwlab/server/app"
	"github.com/zintix-labs/lerwlab/server/netsvr"
	"github.com/zintix-labs/lerwlab/server/svrcfg"
)

func Run(sCfg *svrcfg.SvrCfg) {
	if err := sCfg.Vaild(); err != nil {
		// 防止外層傳入的 logger 不可用
		fmt.Fprintln(os.Stderr, err)
		return
	}
	var svr *netsvr.ChiAdapter
	if sCfg.Addr != "" {
		svr = netsvr.NewChiServer(sCfg.Addr)
	} else {
		svr = netsvr.NewChiServerDefault()
	}
	RunWithSvr(sCfg, svr)
}

func RunWithSvr(sCfg *svrcfg.SvrCfg, svr netsvr.NetSvr) {
	if err := sCfg.Vaild(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return
	}
	if svr == nil {
		sCfg.Log.Error(errs.NewFatal("svr is required").Error())
		return
	}
	if s, ok := svr.(*netsvr.ChiAdapter); ok && !s.Ready() {
		sCfg.Log.Error(errs.NewFatal("default server is not ready").Error())
		return
	}

	rt, err := api.RegisterRoutes(svr, sCfg)
	if err != nil {
		sCfg.Log.Error("register routes failed", slog.Any("err", err))
		return
	}

	a := app.NewWith(svr, rt).WithLogger(sCfg.Log)
	if s, ok := svr.(*netsvr.ChiAdapter); ok {
		sCfg.Log.Info("[lerwlab] listening on http://localhost" + s.Address())
	} else {
		sCfg.Log.Info("[lerwlab] listening")
	}
	if err := a.Run(); err != nil {
		sCfg.Log.Error("app stopped", slog.Any("err", err))
	}
}
