package market

import (
	"fmt"
	"time"
)

const (
	// Timeframe1h 为默认回测周期。
	Timeframe1h = "1h"
	// Timeframe4h 为可选的聚合周期。
	Timeframe4h = "4h"
	// Timeframe1d 为日线周期。
	Timeframe1d = "1d"
)

// Bar 代表单根K线，加载后不再修改。
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Series 为同一交易对按时间升序排列的K线序列。
type Series struct {
	Symbol string
	Bars   []Bar
}

// NewSeries 构造 Series 并校验时间戳严格递增。
func NewSeries(symbol string, bars []Bar) (Series, error) {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return Series{}, fmt.Errorf("market: 第%d根K线时间戳未递增 (%s >= %s)",
				i, bars[i-1].Timestamp.Format(time.RFC3339), bars[i].Timestamp.Format(time.RFC3339))
		}
	}
	return Series{Symbol: symbol, Bars: bars}, nil
}

// Len 返回序列长度。
func (s Series) Len() int {
	return len(s.Bars)
}

// Slice 返回 [start, end) 区间的子序列，共享底层数组。
func (s Series) Slice(start, end int) (Series, error) {
	if start < 0 || end > len(s.Bars) || start > end {
		return Series{}, fmt.Errorf("market: 切片区间 [%d, %d) 超出序列范围 [0, %d)", start, end, len(s.Bars))
	}
	return Series{Symbol: s.Symbol, Bars: s.Bars[start:end]}, nil
}

// Closes 返回收盘价序列副本，便于指标计算。
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Highs 返回最高价序列副本。
func (s Series) Highs() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.High
	}
	return out
}

// Lows 返回最低价序列副本。
func (s Series) Lows() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Low
	}
	return out
}

// MaxGap 返回序列中相邻K线的最大时间间隔。
func (s Series) MaxGap() time.Duration {
	var max time.Duration
	for i := 1; i < len(s.Bars); i++ {
		if gap := s.Bars[i].Timestamp.Sub(s.Bars[i-1].Timestamp); gap > max {
			max = gap
		}
	}
	return max
}

// ParseTimeframe 将周期字符串转换为时长，支持 1m/5m/1h/4h/1d 等格式。
func ParseTimeframe(tf string) (time.Duration, error) {
	if len(tf) < 2 {
		return 0, fmt.Errorf("market: 无法解析周期 %q", tf)
	}

	var n int
	if _, err := fmt.Sscanf(tf[:len(tf)-1], "%d", &n); err != nil || n <= 0 {
		return 0, fmt.Errorf("market: 无法解析周期 %q", tf)
	}

	switch tf[len(tf)-1] {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("market: 不支持的周期单位 %q", tf)
	}
}
