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

package dto

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/zintix-labs/lerwlab/corefmt"
	"github.com/zintix-labs/lerwlab/errs"
	"github.com/zintix-labs/lerwlab/setting"
)

// maxBody 限制 POST body 大小（1MiB）
const maxBody = 1 << 20

type WalkRequest struct {
	UID        string      `json:"uid"`                   // 唯一識別碼
	WalkName   string      `json:"walk"`                  // 設定名稱（可省略，帶了就必須與 wid 一致）
	WalkID     setting.WID `json:"wid"`                   // 設定編號
	Steps      int         `json:"steps,omitempty"`       // 最多步數；0 表示使用設定值
	Trace      bool        `json:"trace,omitempty"`       // 回傳路徑（上限 buf.MaxTrace 點）
	Seed       *int64      `json:"seed,omitempty"`        // 可選：以 seed 起一個新的 RNG
	StartState *StartState `json:"start_state,omitempty"` // 可選：以快照重放
}

// StartState 是由呼叫端帶入的 RNG 起始狀態。
//
// walk 永遠從原點、空的佔用集開始，因此只要 RNG 狀態相同就能完整重現路徑。
// 回應中的 after_b64u 可作為下一次的 start_b64u，延續同一條亂數流。
type StartState struct {
	StartCoreSnapB64U string `json:"start_b64u,omitempty"`
}

func (ss *StartState) HasPayload() bool {
	return ss != nil && ss.StartCoreSnapB64U != ""
}

// StartSnap 解出起始 RNG 快照；沒有帶時回傳 nil。
func (wr *WalkRequest) StartSnap() ([]byte, error) {
	if !wr.StartState.HasPayload() {
		return nil, nil
	}
	snap, err := corefmt.DecodeBase64URL(wr.StartState.StartCoreSnapB64U)
	if err != nil {
		return nil, errs.Wrap(err, "core snap decode failed")
	}
	return snap, nil
}

// DecodeWalkRequest 把 HTTP 請求解碼成 WalkRequest。
//
// GET 從 query string 讀取 uid/walk/wid/steps/trace/seed；start_state 只能經由 POST JSON 帶入。
// 這裡只做解碼與型別轉換，wid 是否存在、steps 是否超過設定值由 runtime 判斷。
func DecodeWalkRequest(r *http.Request) (*WalkRequest, error) {
	if r == nil {
		return nil, errs.NewWarn("nil request")
	}
	req := new(WalkRequest)
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		req.UID = q.Get("uid")
		req.WalkName = q.Get("walk")
		wid, err := queryInt(q, "wid")
		if err != nil {
			return nil, err
		}
		req.WalkID = setting.WID(wid)
		if req.Steps, err = queryInt(q, "steps"); err != nil {
			return nil, err
		}
		if s := q.Get("trace"); s != "" {
			v, err := strconv.ParseBool(s)
			if err != nil {
				return nil, errs.Warnf("invalid trace: %v", err)
			}
			req.Trace = v
		}
		if s := q.Get("seed"); s != "" {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, errs.Warnf("invalid seed: %v", err)
			}
			req.Seed = &v
		}
		return req, nil
	case http.MethodPost:
		if err := decodeBody(r, req); err != nil {
			return nil, err
		}
		return req, nil
	default:
		return nil, errs.NewWarn("method not allowed")
	}
}

type SimRequest struct {
	WalkID  setting.WID `json:"wid"`
	Walks   int         `json:"walks"`
	Workers int         `json:"workers,omitempty"` // 0 視為 1
	Seed    *int64      `json:"seed,omitempty"`
}

// DecodeSimRequest 支援 GET（wid/walks/workers/seed）與 POST JSON。
func DecodeSimRequest(r *http.Request) (*SimRequest, error) {
	if r == nil {
		return nil, errs.NewWarn("nil request")
	}
	req := new(SimRequest)
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		wid, err := queryInt(q, "wid")
		if err != nil {
			return nil, err
		}
		req.WalkID = setting.WID(wid)
		if req.Walks, err = queryInt(q, "walks"); err != nil {
			return nil, err
		}
		if req.Workers, err = queryInt(q, "workers"); err != nil {
			return nil, err
		}
		if s := q.Get("seed"); s != "" {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, errs.Warnf("invalid seed: %v", err)
			}
			req.Seed = &v
		}
		return req, nil
	case http.MethodPost:
		if err := decodeBody(r, req); err != nil {
			return nil, err
		}
		return req, nil
	default:
		return nil, errs.NewWarn("method not allowed")
	}
}

type TableRequest struct {
	Exponent float64
	RMax     int
}

// DecodeTableRequest 只接受 GET：exponent 與 r_max 皆為必填。
func DecodeTableRequest(r *http.Request) (*TableRequest, error) {
	if r == nil {
		return nil, errs.NewWarn("nil request")
	}
	if r.Method != http.MethodGet {
		return nil, errs.NewWarn("method not allowed")
	}
	q := r.URL.Query()
	s := q.Get("exponent")
	if s == "" {
		return nil, errs.NewWarn("exponent is required")
	}
	e, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errs.Warnf("invalid exponent: %v", err)
	}
	if q.Get("r_max") == "" {
		return nil, errs.NewWarn("r_max is required")
	}
	rMax, err := queryInt(q, "r_max")
	if err != nil {
		return nil, err
	}
	return &TableRequest{Exponent: e, RMax: rMax}, nil
}

func queryInt(q url.Values, key string) (int, error) {
	s := q.Get(key)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errs.Warnf("invalid %s: %v", key, err)
	}
	return v, nil
}

// decodeBody 以嚴格模式解 JSON：限制大小、拒絕未知欄位、拒絕多餘內容。
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.Warnf("invalid json: %v", err)
	}
	if dec.More() {
		return errs.NewWarn(fmt.Sprintf("invalid json: trailing data after %T", v))
	}
	return nil
}
