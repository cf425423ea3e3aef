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

// Package metrics 以 Prometheus 暴露 walker 池狀態與請求統計，掛在 GET /metrics。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zintix-labs/lerwlab"
	"github.com/zintix-labs/lerwlab/dto"
)

const namespace = "lerwlab"

// Metrics 持有獨立的 registry，多個 server（或測試）之間不共享全域狀態。
//
// nil *Metrics 的 Observe 系列方法不做任何事。
type Metrics struct {
	reg *prometheus.Registry

	walks       *prometheus.CounterVec   // walk, result
	walkLatency *prometheus.HistogramVec // walk
	walkSteps   *prometheus.HistogramVec // walk
	simWalks    *prometheus.CounterVec   // walk
	simLatency  prometheus.Histogram
}

func New(rt *lerwlab.WalkRuntime) *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	m := &Metrics{
		reg: reg,
		walks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "walks_total",
			Help:      "Walk requests by setting and result (ok|exit|error).",
		}, []string{"walk", "result"}),
		walkLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "walk_duration_seconds",
			Help:      "Walk request latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms ~ 0.8s
		}, []string{"walk"}),
		walkSteps: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "walk_steps",
			Help:      "Moves taken per walk before exit or step limit.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"walk"}),
		simWalks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sim_walks_total",
			Help:      "Walks executed by simulation requests.",
		}, []string{"walk"}),
		simLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sim_duration_seconds",
			Help:      "Simulation request latency.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	reg.MustRegister(collectors.NewGoCollector())
	if rt != nil {
		reg.MustRegister(&poolCollector{rt: rt})
	}
	return m
}

// Handler 回傳 Prometheus text exposition。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Registry 供測試以 testutil 讀值。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

func (m *Metrics) ObserveWalk(walk string, res dto.WalkResult, err error, used time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case res.Exited:
		result = "exit"
	}
	m.walks.WithLabelValues(walk, result).Inc()
	if err != nil {
		return
	}
	m.walkLatency.WithLabelValues(walk).Observe(used.Seconds())
	m.walkSteps.WithLabelValues(walk).Observe(float64(res.Steps))
}

func (m *Metrics) ObserveSim(walk string, walks int, used time.Duration) {
	if m == nil {
		return
	}
	m.simWalks.WithLabelValues(walk).Add(float64(walks))
	m.simLatency.Observe(used.Seconds())
}

// poolCollector 在每次 scrape 時讀取 runtime 的池狀態，不另外保存。
type poolCollector struct {
	rt *lerwlab.WalkRuntime
}

var (
	poolLabels    = []string{"walk", "wid"}
	descAvailable = prometheus.NewDesc(namespace+"_pool_available", "Idle walkers in the pool.", poolLabels, nil)
	descInflight  = prometheus.NewDesc(namespace+"_pool_inflight", "Walk requests currently running.", poolLabels, nil)
	descSize      = prometheus.NewDesc(namespace+"_pool_size", "Configured walkers per pool.", poolLabels, nil)
	descRebuild   = prometheus.NewDesc(namespace+"_pool_rebuild_total", "Walkers rebuilt after failure.", poolLabels, nil)
	descPanics    = prometheus.NewDesc(namespace+"_pool_panics_total", "Recovered walker panics.", poolLabels, nil)
	descFatals    = prometheus.NewDesc(namespace+"_pool_fatals_total", "Fatal walker errors.", poolLabels, nil)
	descFailures  = prometheus.NewDesc(namespace+"_pool_failures_total", "Walkers retired after a panic or fatal error.", poolLabels, nil)
	descClosed    = prometheus.NewDesc(namespace+"_pool_closed", "1 when the pool has been closed.", poolLabels, nil)
)

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{descAvailable, descInflight, descSize, descRebuild, descPanics, descFatals, descFailures, descClosed} {
		ch <- d
	}
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	for _, pm := range c.rt.Metrics() {
		lv := []string{pm.WalkName, strconv.Itoa(int(pm.WalkID))}
		closed := 0.0
		if pm.Closed {
			closed = 1
		}
		ch <- prometheus.MustNewConstMetric(descAvailable, prometheus.GaugeValue, float64(pm.Available), lv...)
		ch <- prometheus.MustNewConstMetric(descInflight, prometheus.GaugeValue, float64(pm.Inflight), lv...)
		ch <- prometheus.MustNewConstMetric(descSize, prometheus.GaugeValue, float64(pm.PoolSize), lv...)
		ch <- prometheus.MustNewConstMetric(descRebuild, prometheus.CounterValue, float64(pm.Rebuild), lv...)
		ch <- prometheus.MustNewConstMetric(descPanics, prometheus.CounterValue, float64(pm.Panics), lv...)
		ch <- prometheus.MustNewConstMetric(descFatals, prometheus.CounterValue, float64(pm.Fatals), lv...)
		ch <- prometheus.MustNewConstMetric(descFailures, prometheus.CounterValue, float64(pm.Failures), lv...)
		ch <- prometheus.MustNewConstMetric(descClosed, prometheus.GaugeValue, closed, lv...)
	}
}
