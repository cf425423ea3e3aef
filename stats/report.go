package stats

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/zintix-labs/lerwlab/setting"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var lang language.Tag = language.English

// 信賴區間
type CI struct {
	Lo float64 `json:"Lo"`
	Hi float64 `json:"Hi"`
}

// WalkReport 一組 walk 的統計報告
type WalkReport struct {
	Summary *SummaryReport `json:"Summary"`
	Radius  *RadiusReport  `json:"Radius"`
	GOF     *GOFReport     `json:"GOF"`
	isDone  bool
}

// SummaryReport walk 層級的結果
type SummaryReport struct {
	WalkName        string      `json:"WalkName"`
	WalkID          setting.WID `json:"WalkID"`
	Exponent        float64     `json:"Exponent"`
	RMax            int         `json:"RMax"`
	Bound           int         `json:"Bound"`
	RNG             string      `json:"RNG"`
	Walks           int         `json:"Walks"`
	TotalSteps      int         `json:"TotalSteps"`      // 成功移動的步數（不含越界的那一步）
	Exits           int         `json:"Exits"`           // 因越界而終止的 walk 數
	ExitRate        float64     `json:"ExitRate"`        // Exits / Walks
	ExitCI          CI          `json:"ExitCI"`          // Clopper–Pearson 95%
	Revisits        int         `json:"Revisits"`        // 落在已佔用格點的步數
	RevisitRate     float64     `json:"RevisitRate"`     // Revisits / TotalSteps
	MeanSteps       float64     `json:"MeanSteps"`       // 每個 walk 平均步數
	MaxDisplacement int         `json:"MaxDisplacement"` // 所有 walk 中離原點最遠的 Chebyshev 距離
	MeanFinalNorm   float64     `json:"MeanFinalNorm"`   // 終點 Chebyshev 距離平均
	FinalNormSqSum  float64     `json:"FinalNormSqSum"`  // 終點距離平方和（合併用）
	FinalNormSum    float64     `json:"FinalNormSum"`    // 終點距離和（合併用）
}

// RadiusReport 步長分佈
//
// Hist[i] 為半徑 i+1 被抽中的次數（含越界那一步，它也是一次合法抽樣）。
type RadiusReport struct {
	Hist         []int     `json:"Hist"`
	Expected     []float64 `json:"Expected"` // 表所編碼的 P(r)
	Samples      int       `json:"Samples"`
	Mean         float64   `json:"Mean"`
	Std          float64   `json:"Std"`
	ExpectedMean float64   `json:"ExpectedMean"`
}

// Done 將累積計數轉換為最終統計結果並鎖定 isDone 標記。
//
// 紀錄過程只累加整數；Done 一次性計算比率、均值、信賴區間與適合度檢定。
func (s *WalkReport) Done() {
	if s.isDone {
		return
	}
	sum := s.Summary
	if sum.Walks > 0 {
		sum.MeanSteps = float64(sum.TotalSteps) / float64(sum.Walks)
		sum.MeanFinalNorm = sum.FinalNormSum / float64(sum.Walks)
	}
	sum.ExitRate, sum.ExitCI = proportionCICP(sum.Exits, sum.Walks, 0.95)
	if sum.TotalSteps > 0 {
		sum.RevisitRate = float64(sum.Revisits) / float64(sum.TotalSteps)
	}

	rad := s.Radius
	rad.Samples = 0
	for _, c := range rad.Hist {
		rad.Samples += c
	}
	rad.Mean, rad.Std = radiusMeanStd(rad.Hist)
	rad.ExpectedMean = 0
	for i, p := range rad.Expected {
		rad.ExpectedMean += float64(i+1) * p
	}
	g := ChiSquaredGOF(rad.Hist, rad.Expected)
	s.GOF = &g
	s.isDone = true
}

// ExitRate 回傳越界比率
func (s *WalkReport) ExitRate() float64 {
	if s.Summary.Walks == 0 {
		return 0
	}
	return float64(s.Summary.Exits) / float64(s.Summary.Walks)
}

func (s *WalkReport) WriteWith(w io.Writer, rep WalkReportRender) error {
	s.Done()
	return rep.Write(w, s)
}

// StdOut 輸出耗時與摘要表
func (s *WalkReport) StdOut(ut time.Duration) {
	s.Done()
	formatDuration(ut, s.Summary.TotalSteps)
	sk, sm := s.fmtBasic()
	fmt.Println(fmtTable(s.Summary.WalkName, sk, sm))
}

// ============================================================
// ** 內部方法 **
// ============================================================

// radiusMeanStd 以 histogram 為權重計算半徑的均值與樣本標準差。
func radiusMeanStd(hist []int) (float64, float64) {
	n := 0
	for _, c := range hist {
		n += c
	}
	if n == 0 {
		return 0, 0
	}
	x := make([]float64, len(hist))
	w := make([]float64, len(hist))
	for i, c := range hist {
		x[i] = float64(i + 1)
		w[i] = float64(c)
	}
	if n < 2 {
		return stat.Mean(x, w), 0
	}
	return stat.MeanStdDev(x, w)
}

// Clopper–Pearson exact CI for binomial proportion (k successes out of n)
func proportionCICP(k int, n int, confidence float64) (pHat float64, ci CI) {
	if n == 0 {
		return 0, CI{0, 1}
	}
	alpha := 1 - confidence
	pHat = float64(k) / float64(n)

	if k == 0 {
		ci.Lo = 0
	} else {
		b := distuv.Beta{Alpha: float64(k), Beta: float64(n - k + 1)}
		ci.Lo = b.Quantile(alpha / 2)
	}
	if k == n {
		ci.Hi = 1
	} else {
		b := distuv.Beta{Alpha: float64(k + 1), Beta: float64(n - k)}
		ci.Hi = b.Quantile(1 - alpha/2)
	}
	return
}

func formatDuration(d time.Duration, steps int) {
	p := message.NewPrinter(lang)
	if d < 0 {
		d = -d
	}
	sec := d.Seconds()
	if sec <= 0 {
		sec = 1e-9
	}
	sps := int(float64(steps) / sec)
	if sec < 60.0 {
		p.Printf("used: %.2f seconds\nsps : %d steps/sec\n", sec, sps)
		return
	}
	s := int(d.Seconds()) % 60
	m := int(d.Minutes()) % 60
	h := int(d.Hours())
	if h == 0 {
		p.Printf("used: %dm %ds\nsps : %d steps/sec\n", m, s, sps)
		return
	}
	p.Printf("used: %dh:%dm:%ds\nsps : %d steps/sec\n", h, m, s, sps)
}

func (s *WalkReport) fmtBasic() ([]string, map[string]string) {
	p := message.NewPrinter(lang)
	sum, rad, g := s.Summary, s.Radius, s.GOF
	basic := map[string]string{
		"Walk Name":        sum.WalkName,
		"Walk ID":          fmt.Sprintf("%d", sum.WalkID),
		"Exponent / RMax":  p.Sprintf("%.3f / %d", sum.Exponent, sum.RMax),
		"Bound / RNG":      p.Sprintf("%d / %s", sum.Bound, sum.RNG),
		"Walks":            p.Sprintf("%d", sum.Walks),
		"Total Steps":      p.Sprintf("%d", sum.TotalSteps),
		"Mean Steps":       p.Sprintf("%.2f", sum.MeanSteps),
		"Exit Rate":        p.Sprintf("%.2f %%", 100.0*sum.ExitRate),
		"Exit 95% CI":      p.Sprintf("[%.2f%%,%.2f%%]", 100.0*sum.ExitCI.Lo, 100.0*sum.ExitCI.Hi),
		"Revisit Rate":     p.Sprintf("%.4f %%", 100.0*sum.RevisitRate),
		"Max Displacement": p.Sprintf("%d", sum.MaxDisplacement),
		"Mean Final Norm":  p.Sprintf("%.2f", sum.MeanFinalNorm),
		"Radius Mean":      p.Sprintf("%.4f (exp %.4f)", rad.Mean, rad.ExpectedMean),
		"Radius STD":       p.Sprintf("%.4f", rad.Std),
		"Chi2 / DoF":       p.Sprintf("%.2f / %d", g.Statistic, g.DoF),
		"GOF p-value":      p.Sprintf("%.4f", g.PValue),
	}
	keys := []string{
		"Walk Name", "Walk ID", "Exponent / RMax", "Bound / RNG", "Walks", "Total Steps", "Mean Steps",
		"Exit Rate", "Exit 95% CI", "Revisit Rate", "Max Displacement", "Mean Final Norm",
		"Radius Mean", "Radius STD", "Chi2 / DoF", "GOF p-value",
	}
	return keys, basic
}

func fmtTable(title string, keys []string, msg map[string]string) string {
	p := message.NewPrinter(lang)
	maxKeyLen := 0
	maxValLen := 0
	for k, m := range msg {
		if w := runewidth.StringWidth(k); w > maxKeyLen {
			maxKeyLen = w
		}
		if w := runewidth.StringWidth(m); w > maxValLen {
			maxValLen = w
		}
	}
	maxKeyLen += 2
	maxValLen += 2

	divider := "+" + strings.Repeat("-", maxKeyLen) + "+" + strings.Repeat("-", maxValLen) + "+\n"
	top := "+" + strings.Repeat("-", maxKeyLen+1+maxValLen) + "+\n"

	totalInner := maxKeyLen + maxValLen + 1
	titleW := runewidth.StringWidth(title)

	left := (totalInner - titleW) / 2
	right := totalInner - titleW - left

	var sb strings.Builder
	sb.WriteString(top)
	sb.WriteString(p.Sprintf("|%s%s%s|\n", blank(left), title, blank(right)))
	sb.WriteString(divider)
	for _, k := range keys {
		sb.WriteString(p.Sprintf("| %s%s | %s%s |\n", k, blank(maxKeyLen-2-runewidth.StringWidth(k)), msg[k], blank(maxValLen-2-runewidth.StringWidth(msg[k]))))
	}
	sb.WriteString(divider)
	return sb.String()
}

func blank(w int) string {
	if w < 1 {
		return ""
	}
	return strings.Repeat(" ", w)
}

// finite 把 NaN / Inf 換成 0，避免 JSON 編碼失敗。
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
