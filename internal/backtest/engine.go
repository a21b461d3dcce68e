package backtest

import (
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"quantlab/internal/market"
	"quantlab/internal/strategy"
)

// Trade 记录一次已平仓的往返交易。Quantity 带符号，空头为负。
type Trade struct {
	EntryTime    time.Time
	ExitTime     time.Time
	EntryPrice   float64
	ExitPrice    float64
	Quantity     float64
	Commission   float64
	SlippageCost float64
	RealizedPnL  float64
}

// EquityPoint 为逐K线的净值标记。
type EquityPoint struct {
	Timestamp time.Time
	Equity    float64
}

// Result 汇总一次回测：净值曲线每根K线一个点，交易按平仓时间排列。
// 结果由产生它的 Run 调用独占，之后只读。
type Result struct {
	EquityCurve    []EquityPoint
	Trades         []Trade
	InitialCapital float64
	FinalEquity    float64
}

// Returns 返回逐K收益率序列，长度为净值曲线长度减一。
func (r *Result) Returns() []float64 {
	if len(r.EquityCurve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(r.EquityCurve)-1)
	for i := 1; i < len(r.EquityCurve); i++ {
		prev := r.EquityCurve[i-1].Equity
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, r.EquityCurve[i].Equity/prev-1)
	}
	return out
}

// position 跟踪当前未平仓头寸。
type position struct {
	quantity   float64
	entryTime  time.Time
	entryPrice float64
	commission float64
	slippage   float64
}

// Engine 将策略信号逐K线转换为持仓变化并记账。
// 单次 Run 为其输入的纯函数，可在多个 goroutine 中各自持有实例并行执行。
type Engine struct {
	cfg    Config
	logger *zap.Logger
}

// NewEngine 构建回测引擎。
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg.normalize(), logger: logger}
}

// Run 执行完整回测流程。
func (e *Engine) Run(series market.Series, strat strategy.Strategy, params strategy.ParamSet) (*Result, error) {
	if strat == nil {
		return nil, fmt.Errorf("backtest: strategy 不能为空")
	}

	if e.cfg.Timeframe != "" {
		interval, err := market.ParseTimeframe(e.cfg.Timeframe)
		if err != nil {
			return nil, err
		}
		series, err = market.Resample(series, interval)
		if err != nil {
			return nil, err
		}
	}

	if e.cfg.GapTolerance > 0 {
		if gap := series.MaxGap(); gap > e.cfg.GapTolerance {
			if e.cfg.GapPolicy == GapAbort {
				return nil, fmt.Errorf("%w: 最大缺口 %s 超过容忍度 %s", ErrDataGap, gap, e.cfg.GapTolerance)
			}
			e.logger.Warn("检测到数据缺口，沿用原持仓继续",
				zap.String("symbol", series.Symbol),
				zap.Duration("gap", gap),
				zap.Duration("tolerance", e.cfg.GapTolerance),
			)
		}
	}

	signals, err := strat.Signals(series, params)
	if err != nil {
		return nil, err
	}
	if len(signals) != series.Len() {
		return nil, fmt.Errorf("%w: 策略 %s 返回 %d 个信号，期望 %d",
			strategy.ErrComputation, strat.Name(), len(signals), series.Len())
	}

	cash := e.cfg.InitialCapital
	var pos position
	trades := make([]Trade, 0, 16)
	curve := make([]EquityPoint, 0, series.Len())

	for i, bar := range series.Bars {
		desired := signals[i]
		if !e.cfg.AllowShort && desired == strategy.Short {
			desired = strategy.Flat
		}

		execPrice := bar.Open
		if e.cfg.Execution == PriceClose {
			execPrice = bar.Close
		}

		if directionOf(pos.quantity) != desired && execPrice > 0 {
			// 翻转仓位拆为两次独立成交：先平旧仓，再开新仓。
			if pos.quantity != 0 {
				cash, trades = e.closePosition(&pos, execPrice, bar.Timestamp, cash, trades)
			}
			if desired != strategy.Flat {
				qty := math.Floor(cash * e.cfg.TargetExposure / execPrice)
				if qty > 0 {
					cash = e.openPosition(&pos, qty*float64(desired), execPrice, bar.Timestamp, cash)
				}
			}
		}

		curve = append(curve, EquityPoint{
			Timestamp: bar.Timestamp,
			Equity:    cash + pos.quantity*bar.Close,
		})
	}

	final := e.cfg.InitialCapital
	if len(curve) > 0 {
		final = curve[len(curve)-1].Equity
	}

	return &Result{
		EquityCurve:    curve,
		Trades:         trades,
		InitialCapital: e.cfg.InitialCapital,
		FinalEquity:    final,
	}, nil
}

func (e *Engine) openPosition(pos *position, quantity, price float64, ts time.Time, cash float64) float64 {
	fill := e.cfg.Slippage.Adjust(price, quantity > 0)
	commission := e.cfg.Commission.Cost(quantity, price)

	pos.quantity = quantity
	pos.entryTime = ts
	pos.entryPrice = fill
	pos.commission = commission
	pos.slippage = math.Abs(quantity * (fill - price))

	return cash - quantity*fill - commission
}

func (e *Engine) closePosition(pos *position, price float64, ts time.Time, cash float64, trades []Trade) (float64, []Trade) {
	// 平仓方向与持仓相反：平多为卖出，平空为买入。
	fill := e.cfg.Slippage.Adjust(price, pos.quantity < 0)
	commission := e.cfg.Commission.Cost(pos.quantity, price)
	slippage := pos.slippage + math.Abs(pos.quantity*(fill-price))
	totalCommission := pos.commission + commission

	trades = append(trades, Trade{
		EntryTime:    pos.entryTime,
		ExitTime:     ts,
		EntryPrice:   pos.entryPrice,
		ExitPrice:    fill,
		Quantity:     pos.quantity,
		Commission:   totalCommission,
		SlippageCost: slippage,
		RealizedPnL:  (fill-pos.entryPrice)*pos.quantity - totalCommission,
	})

	cash += pos.quantity * fill
	cash -= commission
	*pos = position{}
	return cash, trades
}

func directionOf(quantity float64) strategy.Signal {
	switch {
	case quantity > 0:
		return strategy.Long
	case quantity < 0:
		return strategy.Short
	default:
		return strategy.Flat
	}
}
