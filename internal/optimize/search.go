package optimize

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"quantlab/internal/backtest"
	"quantlab/internal/market"
	"quantlab/internal/strategy"
)

// Mode 为参数搜索方式。
type Mode string

const (
	// ModeGrid 对全部离散维度做笛卡尔积穷举。
	ModeGrid Mode = "grid"
	// ModeRandom 从各维度独立均匀采样。
	ModeRandom Mode = "random"
)

// Config 定义一次参数优化。Space 可收窄策略自身声明的参数空间，
// 为空时使用 strategy.ParamSpace() 的完整声明。
type Config struct {
	Mode      Mode
	Samples   int
	Seed      int64
	Workers   int
	Objective string
	Space     strategy.ParamSpace
	Engine    backtest.Config
	Analyzer  backtest.AnalyzerConfig
}

func (c *Config) normalize() Config {
	cfg := *c
	if cfg.Mode == "" {
		cfg.Mode = ModeGrid
	}
	if cfg.Samples <= 0 {
		cfg.Samples = 100
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Objective == "" {
		cfg.Objective = "sharpe"
	}
	return cfg
}

// Evaluation 为单个参数集的评估结果。Err 非空表示该次评估失败，
// 失败项保留在结果中但排在全部成功项之后。
type Evaluation struct {
	Params    strategy.ParamSet
	Report    backtest.Report
	Objective float64
	Valid     bool
	Err       error
}

// Result 为按目标指标降序排列的全部评估。
type Result struct {
	ObjectiveMetric string
	Evaluations     []Evaluation
}

// Best 返回排名第一的成功评估。
func (r *Result) Best() (Evaluation, bool) {
	if len(r.Evaluations) == 0 {
		return Evaluation{}, false
	}
	top := r.Evaluations[0]
	if top.Err != nil || !top.Valid {
		return Evaluation{}, false
	}
	return top, true
}

// Optimizer 在策略声明的参数空间内搜索最优配置。
// 各参数集的评估彼此独立，分发到有界工作池并行执行；
// 排序在全部评估完成后进行，输出与串行执行完全一致。
type Optimizer struct {
	cfg    Config
	logger *zap.Logger
}

// New 构建优化器。
func New(cfg Config, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{cfg: cfg.normalize(), logger: logger}
}

// Run 执行搜索并返回排名结果。
func (o *Optimizer) Run(ctx context.Context, series market.Series, strat strategy.Strategy) (*Result, error) {
	objective, err := backtest.ObjectiveByName(o.cfg.Objective)
	if err != nil {
		return nil, err
	}

	space := o.cfg.Space
	if space == nil {
		space = strat.ParamSpace()
	}
	candidates, err := o.enumerate(space)
	if err != nil {
		return nil, err
	}

	o.logger.Debug("开始参数搜索",
		zap.String("strategy", strat.Name()),
		zap.String("mode", string(o.cfg.Mode)),
		zap.Int("candidates", len(candidates)),
		zap.Int("workers", o.cfg.Workers),
	)

	evals := make([]Evaluation, len(candidates))
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(o.cfg.Workers)

	for i, params := range candidates {
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			eval := Evaluation{Params: params}
			engine := backtest.NewEngine(o.cfg.Engine, o.logger)
			res, runErr := engine.Run(series, strat, params)
			if runErr != nil {
				eval.Err = runErr
			} else {
				eval.Report = backtest.Analyze(res, o.cfg.Analyzer)
				eval.Objective, eval.Valid = objective(eval.Report)
			}
			evals[i] = eval
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	rank(evals, space)
	return &Result{ObjectiveMetric: o.cfg.Objective, Evaluations: evals}, nil
}

func (o *Optimizer) enumerate(space strategy.ParamSpace) ([]strategy.ParamSet, error) {
	switch o.cfg.Mode {
	case ModeGrid:
		return gridCandidates(space)
	case ModeRandom:
		return randomCandidates(space, o.cfg.Samples, o.cfg.Seed), nil
	default:
		return nil, fmt.Errorf("optimize: 不支持的搜索模式 %q", o.cfg.Mode)
	}
}

// gridCandidates 按维度声明顺序展开笛卡尔积，任一维度无离散取值即报错。
func gridCandidates(space strategy.ParamSpace) ([]strategy.ParamSet, error) {
	for _, axis := range space {
		if !axis.Discrete() {
			return nil, fmt.Errorf("%w: 网格搜索要求维度 %q 声明离散取值",
				strategy.ErrInvalidParameter, axis.Name)
		}
	}

	out := []strategy.ParamSet{{}}
	for _, axis := range space {
		next := make([]strategy.ParamSet, 0, len(out)*len(axis.Values))
		for _, base := range out {
			for _, v := range axis.Values {
				ps := base.Clone()
				ps[axis.Name] = v
				next = append(next, ps)
			}
		}
		out = next
	}
	return out, nil
}

// randomCandidates 以固定种子做可复现的独立均匀采样，允许重复样本。
func randomCandidates(space strategy.ParamSpace, samples int, seed int64) []strategy.ParamSet {
	rng := rand.New(rand.NewSource(seed))

	out := make([]strategy.ParamSet, 0, samples)
	for i := 0; i < samples; i++ {
		ps := make(strategy.ParamSet, len(space))
		for _, axis := range space {
			if axis.Discrete() {
				ps[axis.Name] = axis.Values[rng.Intn(len(axis.Values))]
			} else {
				ps[axis.Name] = axis.Min + rng.Float64()*(axis.Max-axis.Min)
			}
		}
		out = append(out, ps)
	}
	return out
}

// rank 对评估排序：成功项按目标指标降序，平局先比偏离默认值的参数个数，
// 再比参数串字典序；失败项整体置后并保持枚举顺序。
func rank(evals []Evaluation, space strategy.ParamSpace) {
	sort.SliceStable(evals, func(i, j int) bool {
		a, b := evals[i], evals[j]
		aOK := a.Err == nil && a.Valid
		bOK := b.Err == nil && b.Valid
		if aOK != bOK {
			return aOK
		}
		if !aOK {
			return false
		}
		if a.Objective != b.Objective {
			return a.Objective > b.Objective
		}
		aCount := space.NonDefaultCount(a.Params)
		bCount := space.NonDefaultCount(b.Params)
		if aCount != bCount {
			return aCount < bCount
		}
		return a.Params.Key() < b.Params.Key()
	})
}
