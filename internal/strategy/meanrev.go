package strategy

import (
	talib "github.com/markcheno/go-talib"

	"quantlab/internal/market"
)

var _ Strategy = (*MeanReversion)(nil)

// MeanReversion 为均值回归策略：收盘价对滚动均值的 z 分数越过阈值时反向建仓，
// 回到零轴附近平仓。
type MeanReversion struct{}

// Name 返回策略标识。
func (m *MeanReversion) Name() string { return "mean_reversion" }

// ParamSpace 声明滚动窗口与进出场 z 阈值。
func (m *MeanReversion) ParamSpace() ParamSpace {
	return ParamSpace{
		{Name: "window", Values: []float64{10, 20, 30}, Min: 5, Max: 200, Default: 20},
		{Name: "entry_z", Min: 0.5, Max: 4, Default: 2},
		{Name: "exit_z", Min: 0, Max: 2, Default: 0.5},
	}
}

// Warmup 返回预热期，取滚动窗口长度。
func (m *MeanReversion) Warmup(params ParamSet) int {
	return int(m.ParamSpace().Value(params, "window"))
}

// Signals 依据前一根收盘的 z 分数产出信号，持仓状态在信号间延续。
func (m *MeanReversion) Signals(series market.Series, params ParamSet) ([]Signal, error) {
	warmup, err := prepare(m, series, params)
	if err != nil {
		return nil, err
	}

	space := m.ParamSpace()
	window := int(space.Value(params, "window"))
	entryZ := space.Value(params, "entry_z")
	exitZ := space.Value(params, "exit_z")

	closes := series.Closes()
	mean := talib.Sma(closes, window)
	std := talib.StdDev(closes, window, 1.0)

	signals := make([]Signal, series.Len())
	current := Flat
	for i := warmup; i < series.Len(); i++ {
		if std[i-1] == 0 {
			signals[i] = current
			continue
		}

		z := (closes[i-1] - mean[i-1]) / std[i-1]
		switch {
		case z <= -entryZ:
			current = Long
		case z >= entryZ:
			current = Short
		case current == Long && z >= -exitZ:
			current = Flat
		case current == Short && z <= exitZ:
			current = Flat
		}
		signals[i] = current
	}
	return signals, nil
}
