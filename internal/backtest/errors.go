package backtest

import "errors"

var (
	// ErrDataGap 表示相邻K线的时间间隔超过了配置容忍度。
	ErrDataGap = errors.New("backtest: data gap exceeds tolerance")
)
