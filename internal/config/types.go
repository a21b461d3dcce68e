package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Data        DataConfig        `mapstructure:"data"`
	Backtest    BacktestConfig    `mapstructure:"backtest"`
	Optimizer   OptimizerConfig   `mapstructure:"optimizer"`
	WalkForward WalkForwardConfig `mapstructure:"walkforward"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// DataConfig 描述历史K线来源。
type DataConfig struct {
	Exchange        string      `mapstructure:"exchange"`
	Symbol          string      `mapstructure:"symbol"`
	BenchmarkSymbol string      `mapstructure:"benchmark_symbol"`
	Timeframe       string      `mapstructure:"timeframe"`
	Limit           int         `mapstructure:"limit"`
	APIKey          string      `mapstructure:"api_key"`
	APISecret       string      `mapstructure:"api_secret"`
	UseSandbox      bool        `mapstructure:"use_sandbox"`
	Retry           RetryConfig `mapstructure:"retry"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// BacktestConfig 控制模拟执行与指标年化口径。
type BacktestConfig struct {
	InitialCapital     float64       `mapstructure:"initial_capital"`
	TargetExposure     float64       `mapstructure:"target_exposure"`
	CommissionPerTrade float64       `mapstructure:"commission_per_trade"`
	CommissionRate     float64       `mapstructure:"commission_rate"`
	SlippageBps        float64       `mapstructure:"slippage_bps"`
	AllowShort         bool          `mapstructure:"allow_short"`
	Execution          string        `mapstructure:"execution"`
	GapTolerance       time.Duration `mapstructure:"gap_tolerance"`
	GapPolicy          string        `mapstructure:"gap_policy"`
	ResampleTimeframe  string        `mapstructure:"resample_timeframe"`
	RiskFreeRate       float64       `mapstructure:"risk_free_rate"`
	PeriodsPerYear     float64       `mapstructure:"periods_per_year"`
}

// OptimizerConfig 控制参数搜索。
type OptimizerConfig struct {
	Strategy  string `mapstructure:"strategy"`
	Mode      string `mapstructure:"mode"`
	Samples   int    `mapstructure:"samples"`
	Seed      int64  `mapstructure:"seed"`
	Workers   int    `mapstructure:"workers"`
	Objective string `mapstructure:"objective"`
}

// WalkForwardConfig 控制滚动样本内/样本外验证。
type WalkForwardConfig struct {
	Enable   bool `mapstructure:"enable"`
	TrainLen int  `mapstructure:"train_len"`
	TestLen  int  `mapstructure:"test_len"`
	Step     int  `mapstructure:"step"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Data.Exchange == "" {
		err = multierr.Append(err, errors.New("data.exchange 不能为空"))
	}
	if c.Data.Symbol == "" {
		err = multierr.Append(err, errors.New("data.symbol 不能为空"))
	}
	if c.Data.Timeframe == "" {
		err = multierr.Append(err, errors.New("data.timeframe 不能为空"))
	}
	if c.Data.Limit <= 0 {
		err = multierr.Append(err, errors.New("data.limit 必须大于0"))
	}
	if c.Data.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("data.retry.max_attempts 必须大于0"))
	}
	if c.Data.Retry.MinDelay <= 0 || c.Data.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("data.retry.delay 必须为正"))
	}
	if c.Data.Retry.MinDelay > c.Data.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("data.retry.min_delay 不能大于 max_delay"))
	}
	if c.Backtest.InitialCapital <= 0 {
		err = multierr.Append(err, errors.New("backtest.initial_capital 必须大于0"))
	}
	if c.Backtest.TargetExposure <= 0 || c.Backtest.TargetExposure > 1 {
		err = multierr.Append(err, errors.New("backtest.target_exposure 必须位于(0,1]"))
	}
	if c.Backtest.CommissionPerTrade < 0 || c.Backtest.CommissionRate < 0 {
		err = multierr.Append(err, errors.New("backtest.commission 不能为负"))
	}
	if c.Backtest.SlippageBps < 0 || c.Backtest.SlippageBps > 500 {
		err = multierr.Append(err, errors.New("backtest.slippage_bps 应位于[0,500]"))
	}
	if c.Backtest.Execution != "open" && c.Backtest.Execution != "close" {
		err = multierr.Append(err, errors.New("backtest.execution 必须为 open 或 close"))
	}
	if c.Backtest.GapPolicy != "abort" && c.Backtest.GapPolicy != "carry" {
		err = multierr.Append(err, errors.New("backtest.gap_policy 必须为 abort 或 carry"))
	}
	if c.Backtest.PeriodsPerYear <= 0 {
		err = multierr.Append(err, errors.New("backtest.periods_per_year 必须大于0"))
	}
	if c.Optimizer.Strategy == "" {
		err = multierr.Append(err, errors.New("optimizer.strategy 不能为空"))
	}
	if c.Optimizer.Mode != "grid" && c.Optimizer.Mode != "random" {
		err = multierr.Append(err, errors.New("optimizer.mode 必须为 grid 或 random"))
	}
	if c.Optimizer.Mode == "random" && c.Optimizer.Samples <= 0 {
		err = multierr.Append(err, errors.New("optimizer.samples 必须大于0"))
	}
	if c.Optimizer.Workers < 0 {
		err = multierr.Append(err, errors.New("optimizer.workers 不能为负"))
	}
	if c.Optimizer.Objective == "" {
		err = multierr.Append(err, errors.New("optimizer.objective 不能为空"))
	}
	if c.WalkForward.Enable {
		if c.WalkForward.TrainLen <= 0 || c.WalkForward.TestLen <= 0 || c.WalkForward.Step <= 0 {
			err = multierr.Append(err, errors.New("walkforward 窗口长度与步长必须大于0"))
		}
		if c.WalkForward.Step < c.WalkForward.TestLen {
			err = multierr.Append(err, errors.New("walkforward.step 不能小于 test_len，样本外区间不允许重叠"))
		}
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
