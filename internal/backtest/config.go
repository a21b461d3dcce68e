package backtest

import (
	"math"
	"time"
)

// ExecutionPrice 决定换仓成交价取自哪根K线。信号由上一根收盘数据生成，
// 默认在信号生效的当根开盘价成交，避免同K线前视。
type ExecutionPrice string

const (
	// PriceOpen 在信号生效K线的开盘价成交（默认）。
	PriceOpen ExecutionPrice = "open"
	// PriceClose 在信号生效K线的收盘价成交，需显式配置。
	PriceClose ExecutionPrice = "close"
)

// GapPolicy 决定检测到数据缺口后的处理方式。
type GapPolicy string

const (
	// GapAbort 中止回测并返回 ErrDataGap。
	GapAbort GapPolicy = "abort"
	// GapCarry 记录告警后继续，缺口期间沿用原持仓。
	GapCarry GapPolicy = "carry"
)

// CommissionModel 描述手续费：每笔固定费用与按名义价值的比例费率可叠加。
type CommissionModel struct {
	PerTrade float64
	Rate     float64
}

// Cost 返回一次成交的手续费。
func (c CommissionModel) Cost(quantity, price float64) float64 {
	if quantity == 0 {
		return 0
	}
	return c.PerTrade + math.Abs(quantity)*price*c.Rate
}

// SlippageModel 以固定基点对成交价做不利方向调整。
type SlippageModel struct {
	Bps float64
}

// Adjust 返回滑点调整后的成交价，买入上调、卖出下调。
func (s SlippageModel) Adjust(price float64, buying bool) float64 {
	if buying {
		return price * (1 + s.Bps/10000)
	}
	return price * (1 - s.Bps/10000)
}

// Config 定义一次回测的执行参数。
type Config struct {
	InitialCapital float64
	TargetExposure float64
	Commission     CommissionModel
	Slippage       SlippageModel
	AllowShort     bool
	Execution      ExecutionPrice
	GapTolerance   time.Duration
	GapPolicy      GapPolicy
	Timeframe      string
}

func (c *Config) normalize() Config {
	cfg := *c
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = 10000
	}
	if cfg.TargetExposure <= 0 {
		cfg.TargetExposure = 1.0
	}
	if cfg.Execution == "" {
		cfg.Execution = PriceOpen
	}
	if cfg.GapPolicy == "" {
		cfg.GapPolicy = GapCarry
	}
	return cfg
}
