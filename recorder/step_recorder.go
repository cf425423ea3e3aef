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

package recorder

import (
	"fmt"

	"github.com/zintix-labs/lerwlab/errs"
	"github.com/zintix-labs/lerwlab/sdk/buf"
	"github.com/zintix-labs/lerwlab/setting"
	"github.com/zintix-labs/lerwlab/stats"
)

// StepRecorder walk 紀錄員
//
// StepRecorder 逐步累加步長 histogram，逐 walk 累加結局，並透過 Done 輸出統計報表。
// 非併發安全：每個 worker 持有自己的 recorder，結束後再以 MergeStepRecorder 合併。
type StepRecorder struct {
	WalkName string
	WalkID   setting.WID
	Exponent float64
	RMax     int
	Bound    int
	RNG      string
	Expected []float64 // 解析分佈 P(r) = r^(-e)/S，Expected[i] 對應半徑 i+1
	Basic    *BasicRecord
	Radius   []int // Radius[i] 為半徑 i+1 的抽中次數
}

// BasicRecord walk 層級的累計
type BasicRecord struct {
	Walks           int
	TotalSteps      int
	Exits           int
	Revisits        int
	MaxDisplacement int
	FinalNormSum    int
	FinalNormSqSum  int // 平方和
}

func NewStepRecorder(ws *setting.WalkSetting, expected []float64) (*StepRecorder, error) {
	s := new(StepRecorder)
	if ws == nil {
		return s, errs.NewFatal("walk setting is nil")
	}
	if len(expected) != ws.RMax {
		return s, errs.NewFatal(fmt.Sprintf("expected distribution length %d does not match r_max %d", len(expected), ws.RMax))
	}
	s.WalkName = ws.WalkName
	s.WalkID = ws.WalkID
	s.Exponent = ws.Exponent
	s.RMax = ws.RMax
	s.Bound = ws.Bound
	s.RNG = ws.RNG
	s.Expected = expected
	s.Basic = new(BasicRecord)
	s.Radius = make([]int, ws.RMax)
	return s, nil
}

func MergeStepRecorder(r []*StepRecorder) (*StepRecorder, error) {
	if len(r) == 0 {
		return nil, errs.NewFatal("merge step record err : nothing to merge")
	}
	r0 := r[0]
	s := &StepRecorder{
		WalkName: r0.WalkName,
		WalkID:   r0.WalkID,
		Exponent: r0.Exponent,
		RMax:     r0.RMax,
		Bound:    r0.Bound,
		RNG:      r0.RNG,
		Expected: r0.Expected,
		Basic:    new(BasicRecord),
		Radius:   make([]int, r0.RMax),
	}
	for _, v := range r {
		if v.WalkName != r0.WalkName || v.WalkID != r0.WalkID {
			return s, errs.NewFatal("merge step record err : different walk")
		}
		if v.Exponent != r0.Exponent || v.RMax != r0.RMax || v.Bound != r0.Bound {
			return s, errs.NewFatal("merge step record err : different walk parameters")
		}
		s.Basic.Walks += v.Basic.Walks
		s.Basic.TotalSteps += v.Basic.TotalSteps
		s.Basic.Exits += v.Basic.Exits
		s.Basic.Revisits += v.Basic.Revisits
		s.Basic.FinalNormSum += v.Basic.FinalNormSum
		s.Basic.FinalNormSqSum += v.Basic.FinalNormSqSum
		s.Basic.MaxDisplacement = max(s.Basic.MaxDisplacement, v.Basic.MaxDisplacement)
		for i, c := range v.Radius {
			s.Radius[i] += c
		}
	}
	return s, nil
}

// RecordStep 紀錄單步抽到的半徑（越界的那一步也算一次抽樣）。
func (s *StepRecorder) RecordStep(st *buf.StepResult) {
	if st.Radius >= 1 && st.Radius <= len(s.Radius) {
		s.Radius[st.Radius-1]++
	}
}

// RecordWalk 以完成的 walk 更新 walk 層級統計。
func (s *StepRecorder) RecordWalk(wr *buf.WalkResult) {
	b := s.Basic
	b.Walks++
	b.TotalSteps += wr.Steps
	b.Revisits += wr.Revisits
	if wr.Exited {
		b.Exits++
	}
	if wr.MaxDisplacement > b.MaxDisplacement {
		b.MaxDisplacement = wr.MaxDisplacement
	}
	n := wr.Final.ChebyshevNorm()
	b.FinalNormSum += n
	b.FinalNormSqSum += n * n
}

func (s *StepRecorder) Done() *stats.WalkReport {
	hist := make([]int, len(s.Radius))
	copy(hist, s.Radius)
	report := &stats.WalkReport{
		Summary: &stats.SummaryReport{
			WalkName:        s.WalkName,
			WalkID:          s.WalkID,
			Exponent:        s.Exponent,
			RMax:            s.RMax,
			Bound:           s.Bound,
			RNG:             s.RNG,
			Walks:           s.Basic.Walks,
			TotalSteps:      s.Basic.TotalSteps,
			Exits:           s.Basic.Exits,
			Revisits:        s.Basic.Revisits,
			MaxDisplacement: s.Basic.MaxDisplacement,
			FinalNormSum:    float64(s.Basic.FinalNormSum),
			FinalNormSqSum:  float64(s.Basic.FinalNormSqSum),
		},
		Radius: &stats.RadiusReport{
			Hist:     hist,
			Expected: s.Expected,
		},
	}
	report.Done()
	return report
}
