package strategy

import (
	"quantlab/internal/market"
)

var _ Strategy = (*BuyHold)(nil)

// BuyHold 为买入持有基准策略：自首根K线起始终做多。
type BuyHold struct{}

// Name 返回策略标识。
func (b *BuyHold) Name() string { return "buy_hold" }

// ParamSpace 无可调参数。
func (b *BuyHold) ParamSpace() ParamSpace { return nil }

// Warmup 返回 0，买入持有无需预热。
func (b *BuyHold) Warmup(ParamSet) int { return 0 }

// Signals 对每根K线产出做多信号。
func (b *BuyHold) Signals(series market.Series, params ParamSet) ([]Signal, error) {
	if _, err := prepare(b, series, params); err != nil {
		return nil, err
	}

	signals := make([]Signal, series.Len())
	for i := range signals {
		signals[i] = Long
	}
	return signals, nil
}
