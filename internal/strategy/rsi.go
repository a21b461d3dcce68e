package strategy

import (
	"fmt"

	talib "github.com/markcheno/go-talib"

	"quantlab/internal/market"
)

var _ Strategy = (*RSIThreshold)(nil)

// RSIThreshold 为 RSI 阈值策略：超卖做多，超买做空，回到中性区平仓。
type RSIThreshold struct{}

// Name 返回策略标识。
func (r *RSIThreshold) Name() string { return "rsi_threshold" }

// ParamSpace 声明 RSI 周期与上下阈值。
func (r *RSIThreshold) ParamSpace() ParamSpace {
	return ParamSpace{
		{Name: "period", Values: []float64{7, 14, 21}, Min: 2, Max: 100, Default: 14},
		{Name: "lower", Min: 5, Max: 45, Default: 30},
		{Name: "upper", Min: 55, Max: 95, Default: 70},
	}
}

// Warmup 返回预热期：RSI 生效需要 period 根，再加一根信号延迟。
func (r *RSIThreshold) Warmup(params ParamSet) int {
	return int(r.ParamSpace().Value(params, "period")) + 1
}

// Signals 依据前一根收盘的 RSI 产出信号。
func (r *RSIThreshold) Signals(series market.Series, params ParamSet) ([]Signal, error) {
	warmup, err := prepare(r, series, params)
	if err != nil {
		return nil, err
	}

	space := r.ParamSpace()
	period := int(space.Value(params, "period"))
	lower := space.Value(params, "lower")
	upper := space.Value(params, "upper")
	if lower >= upper {
		return nil, fmt.Errorf("%w: lower=%g 必须小于 upper=%g", ErrInvalidParameter, lower, upper)
	}

	rsi := talib.Rsi(series.Closes(), period)

	signals := make([]Signal, series.Len())
	current := Flat
	for i := warmup; i < series.Len(); i++ {
		switch {
		case rsi[i-1] < lower:
			current = Long
		case rsi[i-1] > upper:
			current = Short
		case current == Long && rsi[i-1] >= 50:
			current = Flat
		case current == Short && rsi[i-1] <= 50:
			current = Flat
		}
		signals[i] = current
	}
	return signals, nil
}
