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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChiAdapterReady(t *testing.T) {
	require.True(t, NewChiServerDefault().Ready())
	require.True(t, NewChiServer("127.0.0.1:0").Ready())
	require.False(t, NewChiServer("5808").Ready())
	var nilAdapter *ChiAdapter
	require.False(t, nilAdapter.Ready())
}

func TestChiAdapterRoutes(t *testing.T) {
	svr := NewChiServer(":0")
	svr.Handle("/metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("lerwlab_pool_size 1"))
	}))
	svr.Group("/v1", func(r NetRouter) {
		r.Get("/walk", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
		r.Post("/walk", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusCreated) })
	})

	cases := []struct {
		method, target string
		want           int
	}{
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/v1/walk", http.StatusOK},
		{http.MethodPost, "/v1/walk", http.StatusCreated},
		{http.MethodDelete, "/v1/walk", http.StatusMethodNotAllowed},
		{http.MethodGet, "/v1/spin", http.StatusNotFound},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		svr.Handler().ServeHTTP(rec, httptest.NewRequest(c.method, c.target, nil))
		require.Equal(t, c.want, rec.Code, c.method+" "+c.target)
	}
}

func TestChiAdapterShutdownIsCleanStop(t *testing.T) {
	svr := NewChiServer("127.0.0.1:0")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, svr.Shutdown(ctx))
	require.NoError(t, svr.Run())
}
