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

package svrcfg

import (
	"log/slog"

	"github.com/zintix-labs/lerwlab"
	"github.com/zintix-labs/lerwlab/errs"
	"github.com/zintix-labs/lerwlab/server/logger"
)

type SvrCfg struct {
	Log      *slog.Logger
	PoolSize int    // 每份設定的 walker 池大小
	Addr     string // 監聽位址；空字串使用預設 :5808
	Lab      *lerwlab.Lab
}

func (sc *SvrCfg) Vaild() error {
	if sc.Log != nil {
		if ah, ok := sc.Log.Handler().(*logger.AsyncHandler); ok && !ah.Ready() {
			return errs.NewFatal("nil default log handler: async handler is nil")
		}
	} else {
		sc.Log, _ = logger.NewAsync(1024, logger.ModeDev)
	}

	// 1 <= PoolSize <= 10；佔用集很大，池不宜過深
	sc.PoolSize = max(1, sc.PoolSize)
	sc.PoolSize = min(10, sc.PoolSize)
	if sc.Lab == nil {
		return errs.NewFatal("lab is required")
	}
	return nil
}
