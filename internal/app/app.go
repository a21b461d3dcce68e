package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"quantlab/internal/backtest"
	"quantlab/internal/config"
	"quantlab/internal/datasource"
	"quantlab/internal/market"
	"quantlab/internal/optimize"
	"quantlab/internal/store"
	"quantlab/internal/strategy"
)

// App 聚合核心依赖并驱动一次完整的回测/优化流程。
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *store.Store
	provider datasource.Provider
	registry *strategy.Registry
}

// New 创建 App 实例。provider 为空时由配置构造默认 ccxt 客户端。
func New(cfg *config.Config, logger *zap.Logger, st *store.Store, provider datasource.Provider) (*App, error) {
	if provider == nil {
		client, err := datasource.NewClient(cfg.Data, logger)
		if err != nil {
			return nil, err
		}
		provider = client
	}

	return &App{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		provider: provider,
		registry: strategy.DefaultRegistry(),
	}, nil
}

// Registry 返回策略注册表，供调用方注册自定义策略。
func (a *App) Registry() *strategy.Registry {
	return a.registry
}

// Run 执行完整流程：拉取行情、参数搜索（可选滚动验证）、基准对比、落库。
// 行情拉取在模拟开始前完成，结果写入在模拟结束后进行，模拟循环内无任何IO。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("回测系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("exchange", a.cfg.Data.Exchange),
		zap.String("symbol", a.cfg.Data.Symbol),
		zap.String("strategy", a.cfg.Optimizer.Strategy),
	)

	strat, err := a.registry.Get(a.cfg.Optimizer.Strategy)
	if err != nil {
		return err
	}

	series, err := a.provider.FetchBars(ctx, a.cfg.Data.Symbol, a.cfg.Data.Timeframe, int64(a.cfg.Data.Limit))
	if err != nil {
		return fmt.Errorf("拉取历史K线失败: %w", err)
	}
	a.logger.Info("历史K线就绪", zap.Int("bars", series.Len()))

	var benchmark market.Series
	if a.cfg.Data.BenchmarkSymbol != "" {
		benchmark, err = a.provider.FetchBars(ctx, a.cfg.Data.BenchmarkSymbol, a.cfg.Data.Timeframe, int64(a.cfg.Data.Limit))
		if err != nil {
			return fmt.Errorf("拉取基准K线失败: %w", err)
		}
	}

	searchCfg := a.searchConfig()
	meta := store.RunMeta{
		Strategy:  strat.Name(),
		Symbol:    a.cfg.Data.Symbol,
		CreatedAt: time.Now(),
	}

	if a.cfg.WalkForward.Enable {
		return a.runWalkForward(ctx, series, benchmark, strat, searchCfg, meta)
	}
	return a.runOptimize(ctx, series, benchmark, strat, searchCfg, meta)
}

func (a *App) runWalkForward(ctx context.Context, series, benchmark market.Series, strat strategy.Strategy, searchCfg optimize.Config, meta store.RunMeta) error {
	wf := optimize.NewWalkForward(optimize.WalkForwardConfig{
		TrainLen: a.cfg.WalkForward.TrainLen,
		TestLen:  a.cfg.WalkForward.TestLen,
		Step:     a.cfg.WalkForward.Step,
		Search:   searchCfg,
	}, a.logger)

	result, err := wf.Run(ctx, series, strat)
	if err != nil {
		return fmt.Errorf("滚动优化失败: %w", err)
	}

	a.logger.Info("滚动优化完成",
		zap.Int("windows", len(result.Windows)),
		zap.Float64("oos_total_return", result.StitchedReport.TotalReturn),
		zap.Float64("oos_sharpe", result.StitchedReport.Sharpe),
		zap.Float64("oos_max_drawdown", result.StitchedReport.MaxDrawdown),
	)

	a.logBenchmark(&backtest.Result{EquityCurve: result.StitchedEquity}, benchmark)

	if err := a.store.SaveWalkForward(ctx, meta, searchCfg.Objective, result); err != nil {
		return err
	}
	return nil
}

func (a *App) runOptimize(ctx context.Context, series, benchmark market.Series, strat strategy.Strategy, searchCfg optimize.Config, meta store.RunMeta) error {
	optimizer := optimize.New(searchCfg, a.logger)
	result, err := optimizer.Run(ctx, series, strat)
	if err != nil {
		return fmt.Errorf("参数搜索失败: %w", err)
	}

	best, ok := result.Best()
	if !ok {
		return fmt.Errorf("参数搜索无任何有效评估")
	}

	a.logger.Info("参数搜索完成",
		zap.Int("evaluations", len(result.Evaluations)),
		zap.String("best_params", best.Params.Key()),
		zap.Float64("best_objective", best.Objective),
	)

	engine := backtest.NewEngine(searchCfg.Engine, a.logger)
	bestRun, err := engine.Run(series, strat, best.Params)
	if err != nil {
		return fmt.Errorf("最优参数复跑失败: %w", err)
	}
	report := backtest.Analyze(bestRun, searchCfg.Analyzer)

	a.logBenchmark(bestRun, benchmark)

	if err := a.store.SaveOptimization(ctx, meta, string(searchCfg.Mode), result); err != nil {
		return err
	}
	if err := a.store.SaveBacktest(ctx, meta, best.Params, report, bestRun.FinalEquity); err != nil {
		return err
	}
	return nil
}

func (a *App) logBenchmark(res *backtest.Result, benchmark market.Series) {
	if benchmark.Len() == 0 {
		return
	}

	cmp := backtest.Compare(res, benchmark, a.cfg.Backtest.PeriodsPerYear)
	fields := []zap.Field{zap.Int("overlap", cmp.Overlap)}
	if cmp.Alpha != nil {
		fields = append(fields, zap.Float64("alpha", *cmp.Alpha))
	}
	if cmp.Beta != nil {
		fields = append(fields, zap.Float64("beta", *cmp.Beta))
	}
	if cmp.InformationRatio != nil {
		fields = append(fields, zap.Float64("information_ratio", *cmp.InformationRatio))
	}
	a.logger.Info("基准对比", fields...)
}

func (a *App) searchConfig() optimize.Config {
	bt := a.cfg.Backtest
	return optimize.Config{
		Mode:      optimize.Mode(a.cfg.Optimizer.Mode),
		Samples:   a.cfg.Optimizer.Samples,
		Seed:      a.cfg.Optimizer.Seed,
		Workers:   a.cfg.Optimizer.Workers,
		Objective: a.cfg.Optimizer.Objective,
		Engine: backtest.Config{
			InitialCapital: bt.InitialCapital,
			TargetExposure: bt.TargetExposure,
			Commission: backtest.CommissionModel{
				PerTrade: bt.CommissionPerTrade,
				Rate:     bt.CommissionRate,
			},
			Slippage:     backtest.SlippageModel{Bps: bt.SlippageBps},
			AllowShort:   bt.AllowShort,
			Execution:    backtest.ExecutionPrice(bt.Execution),
			GapTolerance: bt.GapTolerance,
			GapPolicy:    backtest.GapPolicy(bt.GapPolicy),
			Timeframe:    bt.ResampleTimeframe,
		},
		Analyzer: backtest.AnalyzerConfig{
			RiskFreeRate:   bt.RiskFreeRate,
			PeriodsPerYear: bt.PeriodsPerYear,
		},
	}
}
