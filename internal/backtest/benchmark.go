package backtest

import (
	"time"

	"quantlab/internal/market"
)

// Comparison 为策略相对基准的回归统计。输入退化（如基准零方差）时
// 对应字段为 nil 而非报错，保留可用的部分指标。
type Comparison struct {
	Alpha            *float64
	Beta             *float64
	InformationRatio *float64
	Overlap          int
}

// Compare 将策略逐K收益对基准逐K收益做最小二乘回归，
// 仅使用两个序列共有时间戳上的收益对。
func Compare(res *Result, benchmark market.Series, periodsPerYear float64) Comparison {
	if periodsPerYear <= 0 {
		periodsPerYear = 252
	}

	benchReturns := make(map[time.Time]float64, benchmark.Len())
	for i := 1; i < benchmark.Len(); i++ {
		prev := benchmark.Bars[i-1].Close
		if prev == 0 {
			continue
		}
		benchReturns[benchmark.Bars[i].Timestamp] = benchmark.Bars[i].Close/prev - 1
	}

	var stratR, benchR []float64
	for i := 1; i < len(res.EquityCurve); i++ {
		br, ok := benchReturns[res.EquityCurve[i].Timestamp]
		if !ok {
			continue
		}
		prev := res.EquityCurve[i-1].Equity
		if prev == 0 {
			continue
		}
		stratR = append(stratR, res.EquityCurve[i].Equity/prev-1)
		benchR = append(benchR, br)
	}

	cmp := Comparison{Overlap: len(stratR)}
	if len(stratR) < 2 {
		return cmp
	}

	meanS, _ := meanStd(stratR)
	meanB, varB := meanVariance(benchR)
	if varB > 0 {
		beta := covariance(stratR, benchR, meanS, meanB) / varB
		alpha := (meanS - beta*meanB) * periodsPerYear
		cmp.Beta = &beta
		cmp.Alpha = &alpha
	}

	excess := make([]float64, len(stratR))
	for i := range stratR {
		excess[i] = stratR[i] - benchR[i]
	}
	meanE, stdE := meanStd(excess)
	if stdE > 0 {
		ir := meanE / stdE
		cmp.InformationRatio = &ir
	}
	return cmp
}

func meanVariance(values []float64) (float64, float64) {
	mean, std := meanStd(values)
	return mean, std * std
}

func covariance(a, b []float64, meanA, meanB float64) float64 {
	if len(a) < 2 {
		return 0
	}
	sum := 0.0
	for i := range a {
		sum += (a[i] - meanA) * (b[i] - meanB)
	}
	return sum / float64(len(a)-1)
}
