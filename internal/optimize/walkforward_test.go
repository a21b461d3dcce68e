package optimize

import (
	"context"
	"errors"
	"sync"
	"testing"

	"quantlab/internal/backtest"
	"quantlab/internal/market"
	"quantlab/internal/strategy"
)

// probeStrategy 记录每次评估收到的序列区间，用于验证训练阶段
// 看不到样本外数据。
type probeStrategy struct {
	mu   sync.Mutex
	seen []market.Series
}

func (p *probeStrategy) Name() string { return "probe" }
func (p *probeStrategy) ParamSpace() strategy.ParamSpace {
	return strategy.ParamSpace{
		{Name: "start", Values: []float64{1, 2}, Default: 1},
	}
}
func (p *probeStrategy) Warmup(strategy.ParamSet) int { return 1 }

func (p *probeStrategy) Signals(series market.Series, params strategy.ParamSet) ([]strategy.Signal, error) {
	p.mu.Lock()
	p.seen = append(p.seen, series)
	p.mu.Unlock()

	start := int(p.ParamSpace().Value(params, "start"))
	signals := make([]strategy.Signal, series.Len())
	for i := start; i < series.Len(); i++ {
		signals[i] = strategy.Long
	}
	return signals, nil
}

func TestWalkForward_WindowGeometry(t *testing.T) {
	series := optSeries(t, 100)
	wf := NewWalkForward(WalkForwardConfig{
		TrainLen: 40,
		TestLen:  20,
		Step:     20,
		Search:   Config{Mode: ModeGrid, Objective: "total_return", Workers: 1},
	}, nil)

	result, err := wf.Run(context.Background(), series, &probeStrategy{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	// 100 根：窗口起点 0/20/40，40+20 超出的窗口被丢弃。
	if len(result.Windows) != 3 {
		t.Fatalf("windows = %d, want 3", len(result.Windows))
	}

	wantTotal := 0
	for i, win := range result.Windows {
		if win.TrainEnd-win.TrainStart != 40 {
			t.Errorf("window %d train length = %d, want 40", i, win.TrainEnd-win.TrainStart)
		}
		if win.TestEnd-win.TestStart != 20 {
			t.Errorf("window %d test length = %d, want 20", i, win.TestEnd-win.TestStart)
		}
		if win.TestStart != win.TrainEnd {
			t.Errorf("window %d test start = %d, want contiguous with train end %d",
				i, win.TestStart, win.TrainEnd)
		}
		if win.ChosenParams == nil {
			t.Errorf("window %d has no chosen parameters", i)
		}
		wantTotal += win.TestEnd - win.TestStart
	}

	if len(result.StitchedEquity) != wantTotal {
		t.Errorf("stitched equity length = %d, want sum of test lengths %d",
			len(result.StitchedEquity), wantTotal)
	}
}

func TestWalkForward_StitchedCurveIsContinuous(t *testing.T) {
	series := optSeries(t, 100)
	wf := NewWalkForward(WalkForwardConfig{
		TrainLen: 40,
		TestLen:  20,
		Step:     20,
		Search: Config{
			Mode:      ModeGrid,
			Objective: "total_return",
			Workers:   1,
			Engine:    backtest.Config{InitialCapital: 10000},
		},
	}, nil)

	result, err := wf.Run(context.Background(), series, &probeStrategy{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	for i := 1; i < len(result.StitchedEquity); i++ {
		prev, cur := result.StitchedEquity[i-1], result.StitchedEquity[i]
		if !prev.Timestamp.Before(cur.Timestamp) {
			t.Fatalf("stitched point %d timestamp %v not after %v", i, cur.Timestamp, prev.Timestamp)
		}
		ratio := cur.Equity / prev.Equity
		if ratio > 1.5 || ratio < 0.5 {
			t.Fatalf("stitched point %d jumps by ratio %v, segments not rebased", i, ratio)
		}
	}
}

func TestWalkForward_TrainingNeverSeesTestBars(t *testing.T) {
	series := optSeries(t, 100)
	probe := &probeStrategy{}
	wf := NewWalkForward(WalkForwardConfig{
		TrainLen: 40,
		TestLen:  20,
		Step:     20,
		Search:   Config{Mode: ModeGrid, Objective: "total_return", Workers: 1},
	}, nil)

	result, err := wf.Run(context.Background(), series, probe)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	for i, win := range result.Windows {
		testStart := series.Bars[win.TestStart].Timestamp
		for _, seen := range probe.seen {
			if seen.Len() != win.TrainEnd-win.TrainStart {
				continue // 样本外评估
			}
			first := seen.Bars[0].Timestamp
			if !first.Equal(series.Bars[win.TrainStart].Timestamp) {
				continue // 其他窗口的样本内区间
			}
			last := seen.Bars[seen.Len()-1].Timestamp
			if !last.Before(testStart) {
				t.Errorf("window %d training saw bar at %v, on or after test start %v",
					i, last, testStart)
			}
		}
	}
}

func TestWalkForward_RejectsOverlappingTestWindows(t *testing.T) {
	wf := NewWalkForward(WalkForwardConfig{
		TrainLen: 40,
		TestLen:  20,
		Step:     10, // step < test_len
		Search:   Config{Mode: ModeGrid, Objective: "total_return"},
	}, nil)

	_, err := wf.Run(context.Background(), optSeries(t, 100), &probeStrategy{})
	if !errors.Is(err, strategy.ErrInvalidParameter) {
		t.Errorf("Run error = %v, want ErrInvalidParameter for step < test_len", err)
	}
}

func TestWalkForward_InsufficientBars(t *testing.T) {
	wf := NewWalkForward(WalkForwardConfig{
		TrainLen: 80,
		TestLen:  30,
		Step:     30,
		Search:   Config{Mode: ModeGrid, Objective: "total_return"},
	}, nil)

	_, err := wf.Run(context.Background(), optSeries(t, 100), &probeStrategy{})
	if !errors.Is(err, strategy.ErrInsufficientData) {
		t.Errorf("Run error = %v, want ErrInsufficientData when no full window fits", err)
	}
}
