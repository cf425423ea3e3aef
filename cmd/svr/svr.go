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

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zintix-labs/lerwlab"
	"github.com/zintix-labs/lerwlab/demo/demo_configs"
	"github.com/zintix-labs/lerwlab/server"
	"github.com/zintix-labs/lerwlab/server/logger"
	"github.com/zintix-labs/lerwlab/server/svrcfg"
)

// 以內嵌的 demo 設定啟動 HTTP 服務；正式部署請自行組裝 Lab 與 svrcfg。
func main() {
	cfg, err := loadConfigFromFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	server.Run(cfg)
}

type config struct {
	LogMode  string
	PoolSize int
	Addr     string
	CfgDir   string
}

func loadConfigFromFlags() (*svrcfg.SvrCfg, error) {
	cfg := new(config)
	flag.StringVar(&cfg.LogMode, "log-mode", "dev", "log mode: dev|prod|silence")
	flag.IntVar(&cfg.PoolSize, "buf", 3, "number of walker instances per walk setting")
	flag.StringVar(&cfg.Addr, "addr", "", "listen address (default :5808)")
	flag.StringVar(&cfg.CfgDir, "cfg-dir", "", "extra directory of walk settings, merged with the demo configs")

	flag.Parse()

	mode, err := logger.ParseMode(cfg.LogMode)
	if err != nil {
		return nil, err
	}
	log, _ := logger.NewAsync(4096, mode)

	cfgs := lerwlab.Configs(demo_configs.FS)
	if cfg.CfgDir != "" {
		cfgs = append(cfgs, os.DirFS(cfg.CfgDir))
	}
	lab, err := lerwlab.NewAuto(cfgs, log)
	if err != nil {
		return nil, err
	}
	sCfg := &svrcfg.SvrCfg{
		Log:      log,
		PoolSize: cfg.PoolSize,
		Addr:     cfg.Addr,
		Lab:      lab,
	}
	return sCfg, nil
}
