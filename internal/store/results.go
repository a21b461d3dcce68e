package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"quantlab/internal/backtest"
	"quantlab/internal/optimize"
	"quantlab/internal/strategy"
)

// RunMeta 为一次运行的公共元数据。
type RunMeta struct {
	Strategy  string
	Symbol    string
	CreatedAt time.Time
}

func (m RunMeta) createdAt() string {
	ts := m.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return ts.UTC().Format(time.RFC3339)
}

// SaveBacktest 写入一次回测的绩效摘要。
func (s *Store) SaveBacktest(ctx context.Context, meta RunMeta, params strategy.ParamSet, report backtest.Report, finalEquity float64) error {
	paramsJSON, err := encodeParams(params)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO backtest_runs (strategy, symbol, params, total_return, cagr, sharpe,
			max_drawdown, win_rate, profit_factor, num_trades, final_equity, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.Strategy, meta.Symbol, paramsJSON,
		report.TotalReturn, report.CAGR, report.Sharpe,
		report.MaxDrawdown, report.WinRate, nullable(report.ProfitFactor),
		report.NumTrades, finalEquity, meta.createdAt(),
	)
	if err != nil {
		return fmt.Errorf("store: 写入回测记录失败: %w", err)
	}
	return nil
}

// SaveOptimization 写入一次参数搜索的摘要与最优参数。
func (s *Store) SaveOptimization(ctx context.Context, meta RunMeta, mode string, result *optimize.Result) error {
	var bestParams any
	var bestObjective any
	if best, ok := result.Best(); ok {
		encoded, err := encodeParams(best.Params)
		if err != nil {
			return err
		}
		bestParams = encoded
		bestObjective = best.Objective
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO optimization_runs (strategy, symbol, mode, objective, evaluations,
			best_params, best_objective, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.Strategy, meta.Symbol, mode, result.ObjectiveMetric,
		len(result.Evaluations), bestParams, bestObjective, meta.createdAt(),
	)
	if err != nil {
		return fmt.Errorf("store: 写入优化记录失败: %w", err)
	}
	return nil
}

// SaveWalkForward 在单个事务内写入滚动优化摘要与全部窗口明细。
func (s *Store) SaveWalkForward(ctx context.Context, meta RunMeta, objective string, result *optimize.WalkForwardResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: 开启事务失败: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO walkforward_runs (strategy, symbol, objective, windows,
			oos_total_return, oos_sharpe, oos_max_drawdown, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.Strategy, meta.Symbol, objective, len(result.Windows),
		result.StitchedReport.TotalReturn, result.StitchedReport.Sharpe,
		result.StitchedReport.MaxDrawdown, meta.createdAt(),
	)
	if err != nil {
		err = fmt.Errorf("store: 写入滚动优化记录失败: %w", err)
		return err
	}

	runID, err := res.LastInsertId()
	if err != nil {
		err = fmt.Errorf("store: 获取运行ID失败: %w", err)
		return err
	}

	for i, win := range result.Windows {
		paramsJSON, encErr := encodeParams(win.ChosenParams)
		if encErr != nil {
			err = encErr
			return err
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO walkforward_windows (run_id, window_index, train_start, train_end,
				test_start, test_end, params, test_return, test_sharpe)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, i, win.TrainStart, win.TrainEnd, win.TestStart, win.TestEnd,
			paramsJSON, win.TestReport.TotalReturn, win.TestReport.Sharpe,
		); err != nil {
			err = fmt.Errorf("store: 写入窗口明细失败: %w", err)
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("store: 提交事务失败: %w", err)
	}
	return nil
}

func encodeParams(params strategy.ParamSet) (string, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("store: 序列化参数失败: %w", err)
	}
	return string(data), nil
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
