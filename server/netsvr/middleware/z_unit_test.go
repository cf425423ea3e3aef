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

package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

func TestNegotiate(t *testing.T) {
	cases := map[string]string{
		"":                       "",
		"gzip":                   "gzip",
		"gzip, deflate, br":      "gzip",
		"gzip;q=0.5, zstd":       "zstd",
		"zstd;q=0, gzip":         "gzip",
		"ZSTD":                   "zstd",
		"gzip;q=0.0, zstd;q=0":   "",
		"identity, gzip;q=0.001": "gzip",
	}
	for accept, want := range cases {
		require.Equal(t, want, negotiate(accept), accept)
	}
}

func serveBody(body string, status int, accept string) *httptest.ResponseRecorder {
	h := Compression(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	req := httptest.NewRequest(http.MethodGet, "/v1/table", nil)
	req.Header.Set("Accept-Encoding", accept)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCompressionThreshold(t *testing.T) {
	small := `{"walk_id":1}`
	rec := serveBody(small, http.StatusOK, "gzip")
	require.Empty(t, rec.Header().Get("Content-Encoding"))
	require.Equal(t, small, rec.Body.String())
	require.Contains(t, rec.Header().Values("Vary"), "Accept-Encoding")

	large := "[" + strings.Repeat("0.125,", DefaultCompressConfig.MinSize) + "1]"
	rec = serveBody(large, http.StatusOK, "gzip")
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	gr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	got, err := io.ReadAll(gr)
	require.NoError(t, err)
	require.Equal(t, large, string(got))

	rec = serveBody(large, http.StatusBadRequest, "zstd")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "zstd", rec.Header().Get("Content-Encoding"))
	zr, err := zstd.NewReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer zr.Close()
	got, err = io.ReadAll(zr)
	require.NoError(t, err)
	require.Equal(t, large, string(got))
}

func TestCompressionNoBody(t *testing.T) {
	rec := serveBody("", http.StatusNoContent, "gzip, zstd")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, rec.Header().Get("Content-Encoding"))
	require.Zero(t, rec.Body.Len())
}

func TestRequestIDHeader(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetReqIdNumPart(r)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/walk", nil))
	id := rec.Header().Get(HeaderRequestID)
	require.NotEmpty(t, id)
	require.True(t, strings.HasSuffix(id, "-"+seen), id)

	req := httptest.NewRequest(http.MethodGet, "/v1/walk", nil)
	req.Header.Set(HeaderRequestID, "upstream-7")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "upstream-7", rec.Header().Get(HeaderRequestID))
	require.Equal(t, "7", seen)
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	h := Recover(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("table missing")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/sim", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "table missing")
	require.Contains(t, buf.String(), "http.panic")
	require.Contains(t, buf.String(), "/v1/sim")

	abort := Recover(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	require.PanicsWithValue(t, http.ErrAbortHandler, func() {
		abort.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
