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

package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/zintix-labs/lerwlab"
	"github.com/zintix-labs/lerwlab/dto"
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

func TestObserveWalk(t *testing.T) {
	m := New(nil)
	m.ObserveWalk("tiny", dto.WalkResult{Steps: 10}, nil, time.Millisecond)
	m.ObserveWalk("tiny", dto.WalkResult{Steps: 3, Exited: true}, nil, time.Millisecond)
	m.ObserveWalk("tiny", dto.WalkResult{}, errors.New("boom"), time.Millisecond)

	require.Equal(t, 1.0, testutil.ToFloat64(m.walks.WithLabelValues("tiny", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.walks.WithLabelValues("tiny", "exit")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.walks.WithLabelValues("tiny", "error")))

	m.ObserveSim("tiny", 500, time.Second)
	require.Equal(t, 500.0, testutil.ToFloat64(m.simWalks.WithLabelValues("tiny")))

	var nilM *Metrics
	nilM.ObserveWalk("tiny", dto.WalkResult{}, nil, 0)
	nilM.ObserveSim("tiny", 1, 0)
}

func TestPoolCollectorExposition(t *testing.T) {
	lab, err := lerwlab.NewAuto(lerwlab.Configs(testFS), nil)
	require.NoError(t, err)
	rt, err := lab.BuildRuntime(3)
	require.NoError(t, err)
	defer rt.Close()

	m := New(rt)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	require.True(t, strings.Contains(text, `lerwlab_pool_size{walk="tiny",wid="1"} 3`), text)
	require.True(t, strings.Contains(text, `lerwlab_pool_available{walk="tiny",wid="1"} 3`), text)
	require.True(t, strings.Contains(text, `lerwlab_pool_closed{walk="tiny",wid="1"} 0`), text)
	require.True(t, strings.Contains(text, `lerwlab_pool_failures_total{walk="tiny",wid="1"} 0`), text)
}
