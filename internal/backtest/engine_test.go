package backtest

import (
	"errors"
	"testing"
	"time"

	"quantlab/internal/market"
	"quantlab/internal/strategy"
)

// scriptStrategy 按预置脚本逐K输出信号，用于精确控制换仓时点。
type scriptStrategy struct {
	signals []strategy.Signal
}

func (s *scriptStrategy) Name() string                    { return "script" }
func (s *scriptStrategy) ParamSpace() strategy.ParamSpace { return nil }
func (s *scriptStrategy) Warmup(strategy.ParamSet) int    { return 0 }
func (s *scriptStrategy) Signals(series market.Series, _ strategy.ParamSet) ([]strategy.Signal, error) {
	out := make([]strategy.Signal, series.Len())
	copy(out, s.signals)
	return out, nil
}

func TestRun_EquityCurveMatchesBarCount(t *testing.T) {
	series := risingSeries(t, 252)
	engine := NewEngine(Config{InitialCapital: 10000}, nil)

	res, err := engine.Run(series, &strategy.BuyHold{}, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(res.EquityCurve) != series.Len() {
		t.Errorf("equity curve length = %d, want %d", len(res.EquityCurve), series.Len())
	}
	for i, p := range res.EquityCurve {
		if !p.Timestamp.Equal(series.Bars[i].Timestamp) {
			t.Fatalf("equity point %d timestamp = %v, want %v", i, p.Timestamp, series.Bars[i].Timestamp)
		}
	}
}

func TestRun_BuyHoldWithoutCostsTracksPrice(t *testing.T) {
	series := risingSeries(t, 252)
	engine := NewEngine(Config{
		InitialCapital: 10000,
		TargetExposure: 1.0,
		Execution:      PriceOpen,
	}, nil)

	res, err := engine.Run(series, &strategy.BuyHold{}, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	report := Analyze(res, AnalyzerConfig{PeriodsPerYear: 252})

	firstOpen := series.Bars[0].Open
	lastClose := series.Bars[series.Len()-1].Close
	want := lastClose/firstOpen - 1
	if report.TotalReturn != want {
		t.Errorf("TotalReturn = %v, want exactly %v", report.TotalReturn, want)
	}
	if report.MaxDrawdown != 0 {
		t.Errorf("MaxDrawdown = %v, want 0 on a monotonically rising series", report.MaxDrawdown)
	}
	if report.MaxDrawdownBars != 0 {
		t.Errorf("MaxDrawdownBars = %d, want 0", report.MaxDrawdownBars)
	}
	if len(res.Trades) != 0 {
		t.Errorf("closed trades = %d, want 0 for a never-exited position", len(res.Trades))
	}
}

func TestRun_TradesAreWellFormed(t *testing.T) {
	series := risingSeries(t, 8)
	script := &scriptStrategy{signals: []strategy.Signal{
		strategy.Flat, strategy.Long, strategy.Long, strategy.Flat,
		strategy.Short, strategy.Short, strategy.Flat, strategy.Long,
	}}

	engine := NewEngine(Config{InitialCapital: 10000, AllowShort: true}, nil)
	res, err := engine.Run(series, script, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(res.Trades) != 2 {
		t.Fatalf("closed trades = %d, want 2", len(res.Trades))
	}
	for i, tr := range res.Trades {
		if !tr.EntryTime.Before(tr.ExitTime) {
			t.Errorf("trade %d: entry %v not before exit %v", i, tr.EntryTime, tr.ExitTime)
		}
		if tr.Quantity == 0 {
			t.Errorf("trade %d: quantity is zero", i)
		}
	}
	if res.Trades[0].Quantity <= 0 {
		t.Errorf("first trade quantity = %v, want long (positive)", res.Trades[0].Quantity)
	}
	if res.Trades[1].Quantity >= 0 {
		t.Errorf("second trade quantity = %v, want short (negative)", res.Trades[1].Quantity)
	}

	// 多头在第1根开盘进场、第3根开盘离场。
	if !res.Trades[0].EntryTime.Equal(series.Bars[1].Timestamp) {
		t.Errorf("first trade entry = %v, want bar 1 timestamp", res.Trades[0].EntryTime)
	}
	if !res.Trades[0].ExitTime.Equal(series.Bars[3].Timestamp) {
		t.Errorf("first trade exit = %v, want bar 3 timestamp", res.Trades[0].ExitTime)
	}
}

func TestRun_ShortsSuppressedWhenDisallowed(t *testing.T) {
	series := risingSeries(t, 8)
	script := &scriptStrategy{signals: []strategy.Signal{
		strategy.Flat, strategy.Long, strategy.Long, strategy.Flat,
		strategy.Short, strategy.Short, strategy.Flat, strategy.Long,
	}}

	engine := NewEngine(Config{InitialCapital: 10000, AllowShort: false}, nil)
	res, err := engine.Run(series, script, nil)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(res.Trades) != 1 {
		t.Fatalf("closed trades = %d, want 1 with shorts disabled", len(res.Trades))
	}
	for i, tr := range res.Trades {
		if tr.Quantity < 0 {
			t.Errorf("trade %d has short quantity %v with shorts disabled", i, tr.Quantity)
		}
	}
}

func TestRun_CommissionAndSlippageReduceEquity(t *testing.T) {
	series := risingSeries(t, 20)
	script := &scriptStrategy{signals: []strategy.Signal{
		strategy.Flat, strategy.Long, strategy.Long, strategy.Long, strategy.Flat,
	}}

	free := NewEngine(Config{InitialCapital: 10000}, nil)
	costly := NewEngine(Config{
		InitialCapital: 10000,
		Commission:     CommissionModel{Rate: 0.001},
		Slippage:       SlippageModel{Bps: 5},
	}, nil)

	freeRes, err := free.Run(series, script, nil)
	if err != nil {
		t.Fatalf("cost-free Run returned error: %v", err)
	}
	costRes, err := costly.Run(series, script, nil)
	if err != nil {
		t.Fatalf("costly Run returned error: %v", err)
	}

	if costRes.FinalEquity >= freeRes.FinalEquity {
		t.Errorf("final equity with costs %v, want below cost-free %v",
			costRes.FinalEquity, freeRes.FinalEquity)
	}

	tr := costRes.Trades[0]
	if tr.Commission <= 0 {
		t.Errorf("trade commission = %v, want positive", tr.Commission)
	}
	if tr.SlippageCost <= 0 {
		t.Errorf("trade slippage cost = %v, want positive", tr.SlippageCost)
	}
}

func TestRun_GapAbortReturnsErrDataGap(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []market.Bar{
		{Timestamp: base, Open: 100, High: 101, Low: 99, Close: 100, Volume: 1},
		{Timestamp: base.Add(time.Hour), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1},
		{Timestamp: base.Add(10 * time.Hour), Open: 100, High: 101, Low: 99, Close: 100, Volume: 1},
	}
	series, err := market.NewSeries("BTC/USDT", bars)
	if err != nil {
		t.Fatalf("NewSeries returned error: %v", err)
	}

	engine := NewEngine(Config{
		InitialCapital: 10000,
		GapTolerance:   time.Hour,
		GapPolicy:      GapAbort,
	}, nil)

	if _, err := engine.Run(series, &strategy.BuyHold{}, nil); !errors.Is(err, ErrDataGap) {
		t.Errorf("Run error = %v, want ErrDataGap", err)
	}

	carry := NewEngine(Config{
		InitialCapital: 10000,
		GapTolerance:   time.Hour,
		GapPolicy:      GapCarry,
	}, nil)
	if _, err := carry.Run(series, &strategy.BuyHold{}, nil); err != nil {
		t.Errorf("Run with carry policy returned error: %v", err)
	}
}

// lengthLiar 返回与输入不等长的信号切片。
type lengthLiar struct{}

func (lengthLiar) Name() string                    { return "liar" }
func (lengthLiar) ParamSpace() strategy.ParamSpace { return nil }
func (lengthLiar) Warmup(strategy.ParamSet) int    { return 0 }
func (lengthLiar) Signals(market.Series, strategy.ParamSet) ([]strategy.Signal, error) {
	return []strategy.Signal{strategy.Long}, nil
}

func TestRun_SignalLengthMismatchIsComputationError(t *testing.T) {
	series := risingSeries(t, 10)
	engine := NewEngine(Config{InitialCapital: 10000}, nil)

	if _, err := engine.Run(series, lengthLiar{}, nil); !errors.Is(err, strategy.ErrComputation) {
		t.Errorf("Run error = %v, want ErrComputation", err)
	}
}

// risingSeries 构造单调上涨的日线序列，open[0]=100，可被初始资金整除。
func risingSeries(t *testing.T, n int) market.Series {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]market.Bar, n)
	for i := range bars {
		open := 100 + float64(i)
		bars[i] = market.Bar{
			Timestamp: base.AddDate(0, 0, i),
			Open:      open,
			High:      open + 1,
			Low:       open - 0.25,
			Close:     open + 0.5,
			Volume:    1000,
		}
	}
	s, err := market.NewSeries("BTC/USDT", bars)
	if err != nil {
		t.Fatalf("NewSeries returned error: %v", err)
	}
	return s
}
