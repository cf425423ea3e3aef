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

package v1

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/zintix-labs/lerwlab"
	"github.com/zintix-labs/lerwlab/dto"
	"github.com/zintix-labs/lerwlab/errs"
	"github.com/zintix-labs/lerwlab/server/httperr"
	"github.com/zintix-labs/lerwlab/server/metrics"
	"github.com/zintix-labs/lerwlab/setting"
	"github.com/zintix-labs/lerwlab/stats"
)

const simTimeout = 60 * time.Second

type SimHandler struct {
	rt  *lerwlab.WalkRuntime
	m   *metrics.Metrics
	log *slog.Logger
}

func NewSimHandler(rt *lerwlab.WalkRuntime, m *metrics.Metrics, log *slog.Logger) *SimHandler {
	return &SimHandler{rt: rt, m: m, log: log}
}

// 內部結構 不影響外部 也不被外部使用
type simResponse struct {
	Stats    *stats.WalkReport `json:"stats"`
	UsedTime int64             `json:"used_ms"`
}

// Sim 對已註冊的設定跑 walks 次 walk 並回傳統計報表。
func (sh *SimHandler) Sim(w http.ResponseWriter, q *http.Request) {
	req, err := dto.DecodeSimRequest(q)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(q.Context(), simTimeout)
	defer cancel()

	st, used, err := sh.rt.Sim(ctx, req)
	if err != nil {
		httperr.Log(sh.log, "sim failed", err)
		httperr.Errs(w, errs.Wrap(err, "simulate err"))
		return
	}
	sh.m.ObserveSim(st.Summary.WalkName, st.Summary.Walks, used)
	writeJSON(w, simResponse{Stats: st, UsedTime: used.Milliseconds()})
}

// SimByCfg 以 body 內的 JSON 設定跑模擬；設定不需事先註冊。
func (sh *SimHandler) SimByCfg(w http.ResponseWriter, r *http.Request) {
	type simByCfgRequest struct {
		Walks   int             `json:"walks"`
		Workers int             `json:"workers,omitempty"`
		Setting json.RawMessage `json:"cfg"`
		Seed    *int64          `json:"seed,omitempty"`
	}
	req := new(simByCfgRequest)
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		httperr.Errs(w, errs.Warnf("invalid json: %v", err))
		return
	}
	if len(req.Setting) == 0 {
		httperr.Errs(w, errs.NewWarn("cfg is required"))
		return
	}
	ws, err := setting.FromJSON(req.Setting)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), simTimeout)
	defer cancel()

	st, used, err := sh.rt.SimBySetting(ctx, ws, req.Walks, req.Workers, req.Seed)
	if err != nil {
		httperr.Log(sh.log, "sim by cfg failed", err)
		httperr.Errs(w, err)
		return
	}
	// 外部設定的名稱不可控，統一歸在同一個 label
	sh.m.ObserveSim("custom", st.Summary.Walks, used)
	writeJSON(w, simResponse{Stats: st, UsedTime: used.Milliseconds()})
}

// Stat 對外部取得的步長 histogram 做 P(r) 適合度檢定。
//
// hist[i] 為半徑 i+1 的次數，長度必須等於 r_max。
func (sh *SimHandler) Stat(w http.ResponseWriter, r *http.Request) {
	type statRequest struct {
		Exponent float64 `json:"exponent"`
		RMax     int     `json:"r_max"`
		Hist     []int   `json:"hist"`
	}
	req := new(statRequest)
	r.Body = http.MaxBytesReader(w, r.Body, 5<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		httperr.Errs(w, errs.Warnf("invalid json: %v", err))
		return
	}
	if len(req.Hist) != req.RMax {
		httperr.Errs(w, errs.Warnf("hist length %d must equal r_max %d", len(req.Hist), req.RMax))
		return
	}
	for _, c := range req.Hist {
		if c < 0 {
			httperr.Errs(w, errs.NewWarn("hist counts must be non-negative"))
			return
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), tableTimeout)
	defer cancel()
	tab, err := sh.rt.Table(ctx, &dto.TableRequest{Exponent: req.Exponent, RMax: req.RMax})
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	writeJSON(w, stats.ChiSquaredGOF(req.Hist, tab.Analytic))
}
