package backtest

import (
	"math"
	"testing"
	"time"

	"quantlab/internal/market"
)

func TestCompare_IdenticalSeriesHasUnitBeta(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	closes := []float64{100, 102, 99, 104, 103, 108}

	bars := make([]market.Bar, len(closes))
	curve := make([]EquityPoint, len(closes))
	for i, c := range closes {
		ts := base.AddDate(0, 0, i)
		bars[i] = market.Bar{Timestamp: ts, Open: c, High: c, Low: c, Close: c, Volume: 1}
		curve[i] = EquityPoint{Timestamp: ts, Equity: c * 100}
	}
	benchmark, err := market.NewSeries("BTC/USDT", bars)
	if err != nil {
		t.Fatalf("NewSeries returned error: %v", err)
	}

	res := &Result{EquityCurve: curve, InitialCapital: closes[0] * 100, FinalEquity: curve[len(curve)-1].Equity}
	cmp := Compare(res, benchmark, 252)

	if cmp.Overlap != len(closes)-1 {
		t.Errorf("Overlap = %d, want %d", cmp.Overlap, len(closes)-1)
	}
	if cmp.Beta == nil {
		t.Fatal("Beta is nil, want defined")
	}
	if math.Abs(*cmp.Beta-1) > 1e-9 {
		t.Errorf("Beta = %v, want 1 for identical return streams", *cmp.Beta)
	}
	if cmp.Alpha == nil {
		t.Fatal("Alpha is nil, want defined")
	}
	if math.Abs(*cmp.Alpha) > 1e-9 {
		t.Errorf("Alpha = %v, want 0 for identical return streams", *cmp.Alpha)
	}
	if cmp.InformationRatio != nil {
		t.Errorf("InformationRatio = %v, want nil when excess returns have zero variance", *cmp.InformationRatio)
	}
}

func TestCompare_FlatBenchmarkLeavesBetaNil(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	bars := make([]market.Bar, 5)
	curve := make([]EquityPoint, 5)
	for i := range bars {
		ts := base.AddDate(0, 0, i)
		bars[i] = market.Bar{Timestamp: ts, Open: 100, High: 100, Low: 100, Close: 100, Volume: 1}
		curve[i] = EquityPoint{Timestamp: ts, Equity: 10000 + float64(i)*123}
	}
	benchmark, err := market.NewSeries("BTC/USDT", bars)
	if err != nil {
		t.Fatalf("NewSeries returned error: %v", err)
	}

	res := &Result{EquityCurve: curve, InitialCapital: 10000, FinalEquity: curve[4].Equity}
	cmp := Compare(res, benchmark, 252)

	if cmp.Beta != nil {
		t.Errorf("Beta = %v, want nil for zero-variance benchmark", *cmp.Beta)
	}
	if cmp.Alpha != nil {
		t.Errorf("Alpha = %v, want nil for zero-variance benchmark", *cmp.Alpha)
	}
	if cmp.InformationRatio == nil {
		t.Error("InformationRatio is nil, want defined against a flat benchmark")
	}
}

func TestCompare_NoTimestampOverlap(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	bars := make([]market.Bar, 5)
	for i := range bars {
		c := 100 + float64(i)
		bars[i] = market.Bar{Timestamp: base.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	benchmark, err := market.NewSeries("BTC/USDT", bars)
	if err != nil {
		t.Fatalf("NewSeries returned error: %v", err)
	}

	curve := make([]EquityPoint, 5)
	for i := range curve {
		// 时间戳错开一年，不与基准重叠。
		curve[i] = EquityPoint{Timestamp: base.AddDate(1, 0, i), Equity: 10000 + float64(i)*10}
	}
	res := &Result{EquityCurve: curve, InitialCapital: 10000, FinalEquity: curve[4].Equity}

	cmp := Compare(res, benchmark, 252)
	if cmp.Overlap != 0 {
		t.Errorf("Overlap = %d, want 0", cmp.Overlap)
	}
	if cmp.Alpha != nil || cmp.Beta != nil || cmp.InformationRatio != nil {
		t.Error("expected all regression fields nil without overlapping timestamps")
	}
}
