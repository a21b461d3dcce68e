package strategy

import (
	talib "github.com/markcheno/go-talib"

	"quantlab/internal/market"
)

var _ Strategy = (*Momentum)(nil)

// Momentum 为动量策略：回看期内涨幅为正做多，为负做空。
type Momentum struct{}

// Name 返回策略标识。
func (m *Momentum) Name() string { return "momentum" }

// ParamSpace 声明回看期与触发阈值（百分比）。
func (m *Momentum) ParamSpace() ParamSpace {
	return ParamSpace{
		{Name: "lookback", Values: []float64{10, 20, 40, 60}, Min: 2, Max: 250, Default: 20},
		{Name: "threshold", Min: 0, Max: 10, Default: 0},
	}
}

// Warmup 返回预热期：ROC 生效需要 lookback 根，再加一根信号延迟。
func (m *Momentum) Warmup(params ParamSet) int {
	return int(m.ParamSpace().Value(params, "lookback")) + 1
}

// Signals 依据前一根收盘的变动率产出信号。
func (m *Momentum) Signals(series market.Series, params ParamSet) ([]Signal, error) {
	warmup, err := prepare(m, series, params)
	if err != nil {
		return nil, err
	}

	space := m.ParamSpace()
	lookback := int(space.Value(params, "lookback"))
	threshold := space.Value(params, "threshold")

	roc := talib.Roc(series.Closes(), lookback)

	signals := make([]Signal, series.Len())
	for i := warmup; i < series.Len(); i++ {
		switch {
		case roc[i-1] > threshold:
			signals[i] = Long
		case roc[i-1] < -threshold:
			signals[i] = Short
		default:
			signals[i] = Flat
		}
	}
	return signals, nil
}
