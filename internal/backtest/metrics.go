package backtest

import (
	"fmt"
	"math"
)

// Report 记录回测绩效指标。指针字段在数学上无定义时为 nil，
// 例如无亏损交易时的盈亏比。
type Report struct {
	TotalReturn     float64
	CAGR            float64
	AnnualizedVol   float64
	Sharpe          float64
	Sortino         *float64
	MaxDrawdown     float64
	MaxDrawdownBars int
	Calmar          *float64
	WinRate         float64
	ProfitFactor    *float64
	NumTrades       int
}

// AnalyzerConfig 控制指标年化口径。
type AnalyzerConfig struct {
	RiskFreeRate   float64
	PeriodsPerYear float64
}

func (c AnalyzerConfig) normalize() AnalyzerConfig {
	cfg := c
	if cfg.PeriodsPerYear <= 0 {
		cfg.PeriodsPerYear = 252
	}
	return cfg
}

// Analyze 由回测结果派生绩效报告，为纯函数。
func Analyze(res *Result, cfg AnalyzerConfig) Report {
	cfg = cfg.normalize()

	report := Report{NumTrades: len(res.Trades)}
	if len(res.EquityCurve) == 0 || res.InitialCapital <= 0 {
		return report
	}

	final := res.FinalEquity
	numBars := float64(len(res.EquityCurve))
	report.TotalReturn = final/res.InitialCapital - 1

	if final > 0 {
		report.CAGR = math.Pow(final/res.InitialCapital, cfg.PeriodsPerYear/numBars) - 1
	} else {
		report.CAGR = -1
	}

	returns := res.Returns()
	mean, std := meanStd(returns)
	report.AnnualizedVol = std * math.Sqrt(cfg.PeriodsPerYear)

	excess := mean - cfg.RiskFreeRate/cfg.PeriodsPerYear
	if std > 0 {
		report.Sharpe = excess / std * math.Sqrt(cfg.PeriodsPerYear)
	}

	if downside := downsideDeviation(returns); downside > 0 {
		sortino := excess / downside * math.Sqrt(cfg.PeriodsPerYear)
		report.Sortino = &sortino
	}

	report.MaxDrawdown, report.MaxDrawdownBars = drawdown(res.EquityCurve)
	if report.MaxDrawdown > 0 {
		calmar := report.CAGR / report.MaxDrawdown
		report.Calmar = &calmar
	}

	report.WinRate, report.ProfitFactor = tradeStats(res.Trades)
	return report
}

// drawdown 返回最大回撤比例及净值严格低于历史峰值的最长连续K线数。
func drawdown(curve []EquityPoint) (float64, int) {
	var peak float64
	maxDD := 0.0
	maxRun, run := 0, 0

	for _, p := range curve {
		if p.Equity >= peak {
			peak = p.Equity
			run = 0
			continue
		}
		run++
		if run > maxRun {
			maxRun = run
		}
		if peak > 0 {
			if dd := (peak - p.Equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD, maxRun
}

func tradeStats(trades []Trade) (winRate float64, profitFactor *float64) {
	if len(trades) == 0 {
		return 0, nil
	}

	wins := 0
	grossProfit, grossLoss := 0.0, 0.0
	for _, t := range trades {
		if t.RealizedPnL > 0 {
			wins++
			grossProfit += t.RealizedPnL
		} else if t.RealizedPnL < 0 {
			grossLoss += -t.RealizedPnL
		}
	}

	winRate = float64(wins) / float64(len(trades))
	if grossLoss > 0 {
		pf := grossProfit / grossLoss
		profitFactor = &pf
	}
	return winRate, profitFactor
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	if len(values) > 1 {
		variance /= float64(len(values) - 1)
	}
	return mean, math.Sqrt(variance)
}

// downsideDeviation 仅对负收益计算标准差，无负收益时返回 0。
func downsideDeviation(returns []float64) float64 {
	sum := 0.0
	count := 0
	for _, r := range returns {
		if r < 0 {
			sum += r * r
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(count))
}

// Objective 从绩效报告提取目标指标值，第二返回值表示该指标是否有定义。
type Objective func(Report) (float64, bool)

var objectives = map[string]Objective{
	"sharpe":        func(r Report) (float64, bool) { return r.Sharpe, true },
	"sortino":       func(r Report) (float64, bool) { return deref(r.Sortino) },
	"calmar":        func(r Report) (float64, bool) { return deref(r.Calmar) },
	"total_return":  func(r Report) (float64, bool) { return r.TotalReturn, true },
	"cagr":          func(r Report) (float64, bool) { return r.CAGR, true },
	"profit_factor": func(r Report) (float64, bool) { return deref(r.ProfitFactor) },
	"win_rate":      func(r Report) (float64, bool) { return r.WinRate, true },
}

// ObjectiveByName 按名称查找目标指标提取函数。
func ObjectiveByName(name string) (Objective, error) {
	obj, ok := objectives[name]
	if !ok {
		return nil, fmt.Errorf("backtest: 未知的目标指标 %q", name)
	}
	return obj, nil
}

func deref(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}
