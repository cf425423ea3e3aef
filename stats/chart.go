package stats

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// maxChartRadius 限制圖上的半徑數量，尾端以單一 ">" 欄合併。
const maxChartRadius = 200

// RenderChart 輸出步長分佈的 HTML 頁面：經驗頻率（bar）對上 P(r)（line），y 軸為對數。
func (s *WalkReport) RenderChart(w io.Writer) error {
	s.Done()
	labels, empirical, expected := chartSeries(s.Radius)

	title := fmt.Sprintf("%s  P(r) ∝ r^-%.3g", s.Summary.WalkName, s.Summary.Exponent)
	subtitle := fmt.Sprintf("walks=%d samples=%d chi2=%.2f dof=%d p=%.4f",
		s.Summary.Walks, s.Radius.Samples, s.GOF.Statistic, s.GOF.DoF, s.GOF.PValue)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1200px", Height: "600px"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}, opts.DataZoom{Type: "slider"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "r"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "P(r)", Type: "log"}),
	)
	bar.SetXAxis(labels).
		AddSeries("empirical", toBarItems(empirical)).
		SetSeriesOptions(charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}))

	line := charts.NewLine()
	line.SetXAxis(labels).AddSeries("expected", toLineItems(expected))
	bar.Overlap(line)

	page := components.NewPage()
	page.AddCharts(bar)
	return page.Render(w)
}

// chartSeries 取前 maxChartRadius 個半徑，其餘合併成最後一欄。
func chartSeries(rad *RadiusReport) (labels []string, empirical, expected []float64) {
	n := len(rad.Expected)
	shown := min(n, maxChartRadius)
	labels = make([]string, 0, shown+1)
	empirical = make([]float64, 0, shown+1)
	expected = make([]float64, 0, shown+1)
	total := float64(max(rad.Samples, 1))

	for i := 0; i < shown; i++ {
		labels = append(labels, strconv.Itoa(i+1))
		empirical = append(empirical, float64(histAt(rad.Hist, i))/total)
		expected = append(expected, rad.Expected[i])
	}
	if n > shown {
		var obs, exp float64
		for i := shown; i < n; i++ {
			obs += float64(histAt(rad.Hist, i))
			exp += rad.Expected[i]
		}
		labels = append(labels, ">"+strconv.Itoa(shown))
		empirical = append(empirical, obs/total)
		expected = append(expected, exp)
	}
	return labels, empirical, expected
}

func histAt(h []int, i int) int {
	if i < len(h) {
		return h[i]
	}
	return 0
}

func toBarItems(vals []float64) []opts.BarData {
	out := make([]opts.BarData, len(vals))
	for i, v := range vals {
		out[i] = opts.BarData{Value: v}
	}
	return out
}

func toLineItems(vals []float64) []opts.LineData {
	out := make([]opts.LineData, len(vals))
	for i, v := range vals {
		out[i] = opts.LineData{Value: v}
	}
	return out
}
