package optimize

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"quantlab/internal/backtest"
	"quantlab/internal/market"
	"quantlab/internal/strategy"
)

// WalkForwardConfig 定义滚动样本内/样本外划分。三个长度均以K线根数计。
type WalkForwardConfig struct {
	TrainLen int
	TestLen  int
	Step     int
	Search   Config
}

// Window 记录单个滚动窗口：区间为K线下标半开区间 [start, end)。
type Window struct {
	TrainStart   int
	TrainEnd     int
	TestStart    int
	TestEnd      int
	ChosenParams strategy.ParamSet
	TestReport   backtest.Report
}

// WalkForwardResult 汇总全部窗口及拼接后的样本外净值曲线。
// 拼接曲线是无前视偏差的权威绩效估计。
type WalkForwardResult struct {
	Windows        []Window
	StitchedEquity []backtest.EquityPoint
	StitchedReport backtest.Report
}

// WalkForward 执行滚动优化：每个窗口仅以样本内K线搜索参数，
// 冻结最优参数后在紧随其后的样本外区间评估，并将样本外净值段
// 以前段末值为基准拼接成连续曲线。
type WalkForward struct {
	cfg    WalkForwardConfig
	logger *zap.Logger
}

// NewWalkForward 构建滚动优化器。
func NewWalkForward(cfg WalkForwardConfig, logger *zap.Logger) *WalkForward {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WalkForward{cfg: cfg, logger: logger}
}

// Run 执行完整的滚动优化流程。窗口构造或评估失败均为致命错误，
// 单个坏窗口会破坏拼接曲线的完整性。
func (w *WalkForward) Run(ctx context.Context, series market.Series, strat strategy.Strategy) (*WalkForwardResult, error) {
	if w.cfg.TrainLen <= 0 || w.cfg.TestLen <= 0 || w.cfg.Step <= 0 {
		return nil, fmt.Errorf("%w: 窗口长度与步长必须为正 (train=%d test=%d step=%d)",
			strategy.ErrInvalidParameter, w.cfg.TrainLen, w.cfg.TestLen, w.cfg.Step)
	}
	if w.cfg.Step < w.cfg.TestLen {
		return nil, fmt.Errorf("%w: step=%d 小于 test_len=%d 会导致样本外区间重叠",
			strategy.ErrInvalidParameter, w.cfg.Step, w.cfg.TestLen)
	}

	// 末尾不足一个完整样本外区间的窗口直接丢弃。
	var windows []Window
	for i := 0; ; i++ {
		trainStart := i * w.cfg.Step
		trainEnd := trainStart + w.cfg.TrainLen
		testEnd := trainEnd + w.cfg.TestLen
		if testEnd > series.Len() {
			break
		}
		windows = append(windows, Window{
			TrainStart: trainStart,
			TrainEnd:   trainEnd,
			TestStart:  trainEnd,
			TestEnd:    testEnd,
		})
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("%w: %d 根K线不足以构成 train=%d + test=%d 的窗口",
			strategy.ErrInsufficientData, series.Len(), w.cfg.TrainLen, w.cfg.TestLen)
	}

	optimizer := New(w.cfg.Search, w.logger)
	engineCfg := w.cfg.Search.Engine

	result := &WalkForwardResult{
		Windows:        make([]Window, 0, len(windows)),
		StitchedEquity: make([]backtest.EquityPoint, 0, len(windows)*w.cfg.TestLen),
	}
	var allTrades []backtest.Trade

	for idx, win := range windows {
		trainSeries, err := series.Slice(win.TrainStart, win.TrainEnd)
		if err != nil {
			return nil, fmt.Errorf("optimize: 构造窗口 %d 样本内区间失败: %w", idx, err)
		}

		optResult, err := optimizer.Run(ctx, trainSeries, strat)
		if err != nil {
			return nil, fmt.Errorf("optimize: 窗口 %d 样本内搜索失败: %w", idx, err)
		}
		best, ok := optResult.Best()
		if !ok {
			return nil, fmt.Errorf("optimize: 窗口 %d 无任何有效的参数评估", idx)
		}

		testSeries, err := series.Slice(win.TestStart, win.TestEnd)
		if err != nil {
			return nil, fmt.Errorf("optimize: 构造窗口 %d 样本外区间失败: %w", idx, err)
		}

		engine := backtest.NewEngine(engineCfg, w.logger)
		testRes, err := engine.Run(testSeries, strat, best.Params)
		if err != nil {
			return nil, fmt.Errorf("optimize: 窗口 %d 样本外回测失败: %w", idx, err)
		}

		win.ChosenParams = best.Params
		win.TestReport = backtest.Analyze(testRes, w.cfg.Search.Analyzer)
		result.Windows = append(result.Windows, win)
		allTrades = append(allTrades, testRes.Trades...)

		// 以前一段末值为基准重定标，保证拼接曲线连续。
		scale := 1.0
		if n := len(result.StitchedEquity); n > 0 {
			scale = result.StitchedEquity[n-1].Equity / testRes.InitialCapital
		}
		for _, p := range testRes.EquityCurve {
			result.StitchedEquity = append(result.StitchedEquity, backtest.EquityPoint{
				Timestamp: p.Timestamp,
				Equity:    p.Equity * scale,
			})
		}

		w.logger.Info("完成滚动窗口",
			zap.Int("window", idx),
			zap.Int("train_start", win.TrainStart),
			zap.Int("test_start", win.TestStart),
			zap.String("params", best.Params.Key()),
			zap.Float64("objective", best.Objective),
		)
	}

	stitched := &backtest.Result{
		EquityCurve:    result.StitchedEquity,
		Trades:         allTrades,
		InitialCapital: initialCapital(engineCfg),
		FinalEquity:    result.StitchedEquity[len(result.StitchedEquity)-1].Equity,
	}
	result.StitchedReport = backtest.Analyze(stitched, w.cfg.Search.Analyzer)
	return result, nil
}

func initialCapital(cfg backtest.Config) float64 {
	if cfg.InitialCapital > 0 {
		return cfg.InitialCapital
	}
	return 10000
}
