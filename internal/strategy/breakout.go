package strategy

import (
	talib "github.com/markcheno/go-talib"

	"quantlab/internal/market"
)

var _ Strategy = (*Breakout)(nil)

// Breakout 为 N 根K线高低点突破策略：收盘价突破前 N 根最高价做多，
// 跌破前 N 根最低价做空，未突破时维持原方向。
type Breakout struct{}

// Name 返回策略标识。
func (b *Breakout) Name() string { return "breakout" }

// ParamSpace 声明突破回看期。
func (b *Breakout) ParamSpace() ParamSpace {
	return ParamSpace{
		{Name: "lookback", Values: []float64{10, 20, 55}, Min: 5, Max: 250, Default: 20},
	}
}

// Warmup 返回预热期：回看窗口需完全位于决策K线之前。
func (b *Breakout) Warmup(params ParamSet) int {
	return int(b.ParamSpace().Value(params, "lookback")) + 1
}

// Signals 比较前一根收盘价与再往前 N 根的极值。
func (b *Breakout) Signals(series market.Series, params ParamSet) ([]Signal, error) {
	warmup, err := prepare(b, series, params)
	if err != nil {
		return nil, err
	}

	lookback := int(b.ParamSpace().Value(params, "lookback"))

	closes := series.Closes()
	highest := talib.Max(series.Highs(), lookback)
	lowest := talib.Min(series.Lows(), lookback)

	signals := make([]Signal, series.Len())
	current := Flat
	for i := warmup; i < series.Len(); i++ {
		// highest[i-2] 覆盖 [i-1-lookback, i-2]，不含决策K线自身。
		switch {
		case closes[i-1] > highest[i-2]:
			current = Long
		case closes[i-1] < lowest[i-2]:
			current = Short
		}
		signals[i] = current
	}
	return signals, nil
}
