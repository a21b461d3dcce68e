package config

import (
	"errors"
	"fmt"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "quantlab"
)

// Load 读取配置文件并结合环境变量返回 Config。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")

	v.SetDefault("data.exchange", "binanceusdm")
	v.SetDefault("data.symbol", "BTC/USDT:USDT")
	v.SetDefault("data.benchmark_symbol", "BTC/USDT:USDT")
	v.SetDefault("data.timeframe", "1h")
	v.SetDefault("data.limit", 1000)
	v.SetDefault("data.use_sandbox", false)
	v.SetDefault("data.retry.max_attempts", 5)
	v.SetDefault("data.retry.min_delay", "500ms")
	v.SetDefault("data.retry.max_delay", "5s")

	v.SetDefault("backtest.initial_capital", 10000)
	v.SetDefault("backtest.target_exposure", 1.0)
	v.SetDefault("backtest.commission_per_trade", 0)
	v.SetDefault("backtest.commission_rate", 0.0004)
	v.SetDefault("backtest.slippage_bps", 2)
	v.SetDefault("backtest.allow_short", true)
	v.SetDefault("backtest.execution", "open")
	v.SetDefault("backtest.gap_tolerance", "0s")
	v.SetDefault("backtest.gap_policy", "carry")
	v.SetDefault("backtest.risk_free_rate", 0)
	v.SetDefault("backtest.periods_per_year", 8760)

	v.SetDefault("optimizer.strategy", "sma_cross")
	v.SetDefault("optimizer.mode", "grid")
	v.SetDefault("optimizer.samples", 100)
	v.SetDefault("optimizer.seed", 42)
	v.SetDefault("optimizer.workers", 0)
	v.SetDefault("optimizer.objective", "sharpe")

	v.SetDefault("walkforward.enable", true)
	v.SetDefault("walkforward.train_len", 500)
	v.SetDefault("walkforward.test_len", 100)
	v.SetDefault("walkforward.step", 100)

	v.SetDefault("database.path", "data/quantlab.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
