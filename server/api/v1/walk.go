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

	"github.com/google/uuid"
	"github.com/zintix-labs/lerwlab"
	"github.com/zintix-labs/lerwlab/dto"
	"github.com/zintix-labs/lerwlab/server/httperr"
	"github.com/zintix-labs/lerwlab/server/metrics"
)

const walkTimeout = 5 * time.Second

// tableTimeout 涵蓋 ad-hoc 建表（含等待 semaphore）。
const tableTimeout = 30 * time.Second

type WalkHandler struct {
	rt  *lerwlab.WalkRuntime
	m   *metrics.Metrics
	log *slog.Logger
}

func NewWalkHandler(rt *lerwlab.WalkRuntime, m *metrics.Metrics, log *slog.Logger) *WalkHandler {
	return &WalkHandler{rt: rt, m: m, log: log}
}

// Walk 跑一個完整 walk：GET 以 query 帶參數，POST 可額外帶 start_state 重放。
//
// 未帶 uid 時由 server 產生，並在結果中回傳。
func (h *WalkHandler) Walk(w http.ResponseWriter, q *http.Request) {
	req, err := dto.DecodeWalkRequest(q)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	if req.UID == "" {
		req.UID = uuid.NewString()
	}
	ctx, cancel := context.WithTimeout(q.Context(), walkTimeout)
	defer cancel()

	start := time.Now()
	result, err := h.rt.Walk(ctx, req)
	h.m.ObserveWalk(result.WalkName, result, err, time.Since(start))
	if err != nil {
		httperr.Log(h.log, "walk failed", err)
		httperr.Errs(w, err)
		return
	}
	writeJSON(w, result)
}

// Table 回傳指定 (exponent, r_max) 的 alias table。
func (h *WalkHandler) Table(w http.ResponseWriter, q *http.Request) {
	req, err := dto.DecodeTableRequest(q)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(q.Context(), tableTimeout)
	defer cancel()
	result, err := h.rt.Table(ctx, req)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	writeJSON(w, result)
}

func (h *WalkHandler) Settings(w http.ResponseWriter, q *http.Request) {
	sum, err := h.rt.Settings()
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	writeJSON(w, sum)
}

func (h *WalkHandler) Metrics(w http.ResponseWriter, q *http.Request) {
	writeJSON(w, h.rt.Metrics())
}

// writeJSON 先編碼到記憶體，避免寫到一半才出錯。
func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		httperr.Errs(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(append(b, '\n'))
}
