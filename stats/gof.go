package stats

import (
	"gonum.org/v1/gonum/stat/distuv"
)

// MinExpected 是卡方檢定每格最低期望次數；不足的相鄰格會被合併。
const MinExpected = 5.0

// GOFReport 步長分佈對 P(r) 的卡方適合度檢定
type GOFReport struct {
	Statistic float64 `json:"Statistic"`
	DoF       int     `json:"DoF"`
	Bins      int     `json:"Bins"`   // 合併後的格數
	PValue    float64 `json:"PValue"` // P(χ²_DoF >= Statistic)
}

// ChiSquaredGOF 以 observed（Hist[i] 為半徑 i+1 的次數）對 expected 機率做卡方檢定。
//
// 由小半徑往大半徑累積，期望次數達 MinExpected 才結成一格；
// 尾端不足的部分併入最後一格。樣本數為 0 或只剩一格時回傳 PValue = 1。
func ChiSquaredGOF(observed []int, expected []float64) GOFReport {
	n := 0
	for _, c := range observed {
		n += c
	}
	if n == 0 || len(expected) == 0 {
		return GOFReport{PValue: 1}
	}
	total := float64(n)

	obsBins := make([]float64, 0, len(expected))
	expBins := make([]float64, 0, len(expected))
	var obs, exp float64
	for i, p := range expected {
		if i < len(observed) {
			obs += float64(observed[i])
		}
		exp += p * total
		if exp >= MinExpected {
			obsBins = append(obsBins, obs)
			expBins = append(expBins, exp)
			obs, exp = 0, 0
		}
	}
	if exp > 0 || obs > 0 {
		if len(expBins) == 0 {
			obsBins = append(obsBins, obs)
			expBins = append(expBins, exp)
		} else {
			last := len(expBins) - 1
			obsBins[last] += obs
			expBins[last] += exp
		}
	}

	bins := len(expBins)
	if bins < 2 {
		return GOFReport{Bins: bins, PValue: 1}
	}
	chi2 := 0.0
	for i := range expBins {
		if expBins[i] <= 0 {
			continue
		}
		d := obsBins[i] - expBins[i]
		chi2 += d * d / expBins[i]
	}
	dof := bins - 1
	return GOFReport{
		Statistic: finite(chi2),
		DoF:       dof,
		Bins:      bins,
		PValue:    distuv.ChiSquared{K: float64(dof)}.Survival(chi2),
	}
}
