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
	"testing"

	"github.com/zintix-labs/lerwlab/sdk/buf"
	"github.com/zintix-labs/lerwlab/sdk/lattice"
	"github.com/zintix-labs/lerwlab/setting"
)

func testSetting() *setting.WalkSetting {
	return &setting.WalkSetting{
		WalkName: "rec",
		WalkID:   3,
		Exponent: 2,
		RMax:     4,
		Bound:    16,
		Steps:    10,
		RNG:      "pcg64",
	}
}

var testExpected = []float64{576.0 / 820, 144.0 / 820, 64.0 / 820, 36.0 / 820}

// feed 模擬一個 walk：依序走 radii，最後一步是否越界由 exit 決定。
func feed(t *testing.T, s *StepRecorder, radii []int, exit bool) {
	t.Helper()
	wr := buf.NewWalkResult(testSetting())
	wr.Begin(lattice.Origin, false)
	pos := lattice.Origin
	for i, r := range radii {
		st := buf.StepResult{From: pos, To: pos.Add(lattice.Position{X: r}), Radius: r}
		if exit && i == len(radii)-1 {
			st.Exit = true
		} else {
			pos = st.To
		}
		s.RecordStep(&st)
		wr.Append(st)
		if st.Exit {
			break
		}
	}
	wr.End()
	s.RecordWalk(wr)
}

func TestNewStepRecorderValidates(t *testing.T) {
	if _, err := NewStepRecorder(nil, testExpected); err == nil {
		t.Fatalf("nil setting must fail")
	}
	if _, err := NewStepRecorder(testSetting(), testExpected[:2]); err == nil {
		t.Fatalf("length mismatch must fail")
	}
}

func TestRecordAndDone(t *testing.T) {
	s, err := NewStepRecorder(testSetting(), testExpected)
	if err != nil {
		t.Fatal(err)
	}
	feed(t, s, []int{1, 1, 2}, false)
	feed(t, s, []int{4, 3}, true)

	b := s.Basic
	if b.Walks != 2 || b.TotalSteps != 4 || b.Exits != 1 {
		t.Fatalf("basic mismatch: %+v", b)
	}
	if b.MaxDisplacement != 4 || b.FinalNormSum != 8 || b.FinalNormSqSum != 32 {
		t.Fatalf("displacement mismatch: %+v", b)
	}
	if s.Radius[0] != 2 || s.Radius[1] != 1 || s.Radius[2] != 1 || s.Radius[3] != 1 {
		t.Fatalf("exit step radius must be counted: %v", s.Radius)
	}

	rep := s.Done()
	if rep.Summary.Walks != 2 || rep.Summary.MeanSteps != 2 || rep.Summary.ExitRate != 0.5 {
		t.Fatalf("report mismatch: %+v", rep.Summary)
	}
	if rep.Radius.Samples != 5 || rep.GOF == nil {
		t.Fatalf("radius report mismatch: %+v", rep.Radius)
	}
	rep.Radius.Hist[0] = 99
	if s.Radius[0] != 2 {
		t.Fatalf("report must not alias recorder histogram")
	}
}

func TestMerge(t *testing.T) {
	a, _ := NewStepRecorder(testSetting(), testExpected)
	b, _ := NewStepRecorder(testSetting(), testExpected)
	feed(t, a, []int{1, 2}, false)
	feed(t, b, []int{3}, true)
	feed(t, b, []int{1}, false)

	m, err := MergeStepRecorder([]*StepRecorder{a, b})
	if err != nil {
		t.Fatal(err)
	}
	if m.Basic.Walks != 3 || m.Basic.TotalSteps != 3 || m.Basic.Exits != 1 {
		t.Fatalf("merged basic mismatch: %+v", m.Basic)
	}
	if m.Radius[0] != 2 || m.Radius[1] != 1 || m.Radius[2] != 1 {
		t.Fatalf("merged radius mismatch: %v", m.Radius)
	}

	other := testSetting()
	other.Bound = 99
	c, _ := NewStepRecorder(other, testExpected)
	if _, err := MergeStepRecorder([]*StepRecorder{a, c}); err == nil {
		t.Fatalf("different parameters must not merge")
	}
	if _, err := MergeStepRecorder(nil); err == nil {
		t.Fatalf("empty merge must fail")
	}
}
