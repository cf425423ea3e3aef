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
	"bytes"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
	"github.com/zintix-labs/lerwlab"
	"github.com/zintix-labs/lerwlab/corefmt"
	"github.com/zintix-labs/lerwlab/dto"
	"github.com/zintix-labs/lerwlab/server/netsvr"
	"github.com/zintix-labs/lerwlab/server/svrcfg"
	"github.com/zintix-labs/lerwlab/stats"
)

var testFS = fstest.MapFS{
	"tiny.yaml": &fstest.MapFile{Data: []byte(`walk_id: 1
walk_name: tiny
exponent: 2.0
r_max: 8
bound: 32
steps: 200
rng: pcg64
`)},
}

var keyedFS = fstest.MapFS{
	"keyed.yaml": &fstest.MapFile{Data: []byte(`walk_id: 3
walk_name: keyed
exponent: 2.5
r_max: 8
bound: 32
steps: 200
rng: keyed
`)},
}

func newTestServer(t *testing.T) (http.Handler, *lerwlab.WalkRuntime) {
	t.Helper()
	return newTestServerWith(t, testFS)
}

func newTestServerWith(t *testing.T, fsys fstest.MapFS) (http.Handler, *lerwlab.WalkRuntime) {
	t.Helper()
	lab, err := lerwlab.NewAuto(lerwlab.Configs(fsys), nil)
	require.NoError(t, err)
	sCfg := &svrcfg.SvrCfg{Log: nil, PoolSize: 2, Lab: lab}
	require.NoError(t, sCfg.Vaild())

	svr := netsvr.NewChiServer(":0")
	rt, err := RegisterRoutes(svr, sCfg)
	require.NoError(t, err)
	t.Cleanup(rt.Close)
	return svr.Handler(), rt
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWalkGetAndReplay(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/v1/walk?wid=1&seed=42&trace=true", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var first dto.WalkResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	require.Equal(t, "tiny", first.WalkName)
	require.NotEmpty(t, first.State.StartCoreSnapB64U)
	require.NotEmpty(t, first.State.AfterCoreSnapB64U)
	require.Equal(t, first.Steps+1, len(first.Path))

	replay := map[string]any{
		"wid":         1,
		"trace":       true,
		"start_state": map[string]string{"start_b64u": first.State.StartCoreSnapB64U},
	}
	rec = do(t, h, http.MethodPost, "/v1/walk", replay)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var again dto.WalkResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	require.Equal(t, first.Path, again.Path)
	require.Equal(t, first.Final, again.Final)
	require.Equal(t, first.State.AfterCoreSnapB64U, again.State.AfterCoreSnapB64U)
}

func TestWalkBadRequests(t *testing.T) {
	h, _ := newTestServer(t)

	cases := []struct {
		name   string
		method string
		target string
		body   any
	}{
		{"unknown wid", http.MethodGet, "/v1/walk?wid=99", nil},
		{"bad wid", http.MethodGet, "/v1/walk?wid=abc", nil},
		{"name mismatch", http.MethodGet, "/v1/walk?wid=1&walk=other", nil},
		{"unknown field", http.MethodPost, "/v1/walk", map[string]any{"wid": 1, "nope": true}},
		{"bad snapshot", http.MethodPost, "/v1/walk", map[string]any{
			"wid": 1, "start_state": map[string]string{"start_b64u": "!!"},
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := do(t, h, c.method, c.target, c.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestTableAndStat(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/v1/table?exponent=2&r_max=8", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tab dto.TableResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tab))
	require.Len(t, tab.Prob, 8)
	require.Len(t, tab.Alias, 8)
	sum := 0.0
	for _, m := range tab.Mass {
		sum += m
	}
	require.InDelta(t, 1.0, sum, 1e-9)

	rec = do(t, h, http.MethodGet, "/v1/table?exponent=2", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	require.Len(t, tab.Analytic, 8)
	require.InDelta(t, 1.0/(1+1.0/4+1.0/9+1.0/16+1.0/25+1.0/36+1.0/49+1.0/64), tab.Analytic[0], 1e-12)

	// 依解析分佈比例構造的 histogram 應該通過檢定
	hist := make([]int, len(tab.Analytic))
	for i, p := range tab.Analytic {
		hist[i] = int(p * 100000)
	}
	rec = do(t, h, http.MethodPost, "/v1/stat", map[string]any{"exponent": 2, "r_max": 8, "hist": hist})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var gof stats.GOFReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &gof))
	require.Greater(t, gof.PValue, 0.5)

	rec = do(t, h, http.MethodPost, "/v1/stat", map[string]any{"exponent": 2, "r_max": 8, "hist": []int{1, 2}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSimRoutes(t *testing.T) {
	h, _ := newTestServer(t)

	type simResp struct {
		Stats    *stats.WalkReport `json:"stats"`
		UsedTime int64             `json:"used_ms"`
	}

	rec := do(t, h, http.MethodGet, "/v1/sim?wid=1&walks=40&workers=2&seed=7", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got simResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Stats)
	require.Equal(t, 40, got.Stats.Summary.Walks)
	require.Len(t, got.Stats.Radius.Hist, 8)

	rec = do(t, h, http.MethodGet, "/v1/sim?wid=1&walks=0", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	cfg := map[string]any{
		"walk_id": 9, "walk_name": "custom", "exponent": 2.5,
		"r_max": 4, "bound": 16, "steps": 50, "rng": "pcg32",
	}
	rec = do(t, h, http.MethodPost, "/v1/simbycfg", map[string]any{"cfg": cfg, "walks": 10, "seed": 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got = simResp{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "custom", got.Stats.Summary.WalkName)
	require.Equal(t, 10, got.Stats.Summary.Walks)

	cfg["bound"] = 100000
	rec = do(t, h, http.MethodPost, "/v1/simbycfg", map[string]any{"cfg": cfg, "walks": 10})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// 自訂設定的 r_max 與 /table 共用上限，超過時不建表
	cfg["bound"] = 16
	cfg["r_max"] = lerwlab.MaxTableRMax + 1
	rec = do(t, h, http.MethodPost, "/v1/simbycfg", map[string]any{"cfg": cfg, "walks": 1})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/v1/simbycfg", map[string]any{"walks": 10})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettingsAndMetrics(t *testing.T) {
	h, rt := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/v1/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sums []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sums))
	require.Len(t, sums, 1)
	require.Equal(t, "tiny", sums[0]["name"])

	rec = do(t, h, http.MethodGet, "/v1/walk?wid=1&seed=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var ms []lerwlab.WalkerPoolMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ms))
	require.Len(t, ms, 1)
	require.Equal(t, 2, ms[0].PoolSize)
	require.Equal(t, 2, ms[0].Available)

	rt.Close()
	rec = do(t, h, http.MethodGet, "/v1/walk?wid=1", nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCompressedResponse(t *testing.T) {
	h, _ := newTestServer(t)
	get := func(target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := get("/v1/table?exponent=2&r_max=256")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	// 小回應不壓縮
	rec = get("/v1/settings")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("Content-Encoding"))
}

func TestErrorBody(t *testing.T) {
	h, _ := newTestServer(t)
	rec := do(t, h, http.MethodGet, "/v1/walk?wid=99", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body struct {
		Status int    `json:"status"`
		Level  string `json:"level"`
		Error  string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, http.StatusBadRequest, body.Status)
	require.Equal(t, "warn", body.Level)
	require.NotEmpty(t, body.Error)
}

func TestWalkUIDAndPrometheus(t *testing.T) {
	h, _ := newTestServer(t)

	rec := do(t, h, http.MethodGet, "/v1/walk?wid=1&uid=abc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res dto.WalkResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Equal(t, "abc", res.UID)

	rec = do(t, h, http.MethodGet, "/v1/walk?wid=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res = dto.WalkResult{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	require.Len(t, res.UID, 36)

	rec = do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	require.Contains(t, body, `lerwlab_pool_size{walk="tiny",wid="1"} 2`)
	require.Contains(t, body, `lerwlab_walks_total{result=`)
}

func TestWalkKeyedSnapshotLimit(t *testing.T) {
	h, _ := newTestServerWith(t, keyedFS)

	rec := do(t, h, http.MethodGet, "/v1/walk?wid=3&seed=9", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	snap := make([]byte, 32, 40)
	snap = binary.BigEndian.AppendUint64(snap, 1<<62)
	body := map[string]any{
		"wid":         3,
		"start_state": map[string]string{"start_b64u": corefmt.EncodeBase64URL(snap)},
	}
	rec = do(t, h, http.MethodPost, "/v1/walk", body)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	// 被拒絕的快照不影響後續請求
	rec = do(t, h, http.MethodGet, "/v1/walk?wid=3&seed=9", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
