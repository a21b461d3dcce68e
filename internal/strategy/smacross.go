package strategy

import (
	"fmt"

	talib "github.com/markcheno/go-talib"

	"quantlab/internal/market"
)

// 编译期接口检查。
var _ Strategy = (*SMACross)(nil)

// SMACross 为双均线交叉策略：快线在慢线上方做多，下方做空。
type SMACross struct{}

// Name 返回策略标识。
func (s *SMACross) Name() string { return "sma_cross" }

// ParamSpace 声明快慢均线窗口。
func (s *SMACross) ParamSpace() ParamSpace {
	return ParamSpace{
		{Name: "fast", Values: []float64{5, 10, 15, 20}, Min: 2, Max: 100, Default: 10},
		{Name: "slow", Values: []float64{20, 50, 100, 200}, Min: 5, Max: 400, Default: 50},
	}
}

// Warmup 返回预热期长度，取慢线窗口。
func (s *SMACross) Warmup(params ParamSet) int {
	return int(s.ParamSpace().Value(params, "slow"))
}

// Signals 产出逐K信号，第 i 根信号由第 i-1 根收盘时的均线状态决定。
func (s *SMACross) Signals(series market.Series, params ParamSet) ([]Signal, error) {
	warmup, err := prepare(s, series, params)
	if err != nil {
		return nil, err
	}

	space := s.ParamSpace()
	fast := int(space.Value(params, "fast"))
	slow := int(space.Value(params, "slow"))
	if fast >= slow {
		return nil, fmt.Errorf("%w: fast=%d 必须小于 slow=%d", ErrInvalidParameter, fast, slow)
	}

	closes := series.Closes()
	fastMA := talib.Sma(closes, fast)
	slowMA := talib.Sma(closes, slow)

	signals := make([]Signal, series.Len())
	for i := warmup; i < series.Len(); i++ {
		switch {
		case fastMA[i-1] > slowMA[i-1]:
			signals[i] = Long
		case fastMA[i-1] < slowMA[i-1]:
			signals[i] = Short
		default:
			signals[i] = Flat
		}
	}
	return signals, nil
}
