package market

import (
	"fmt"
	"time"
)

// Resample 将序列聚合到更粗的周期。聚合规则：首根子K线的开盘价、
// 末根子K线的收盘价、区间最高价、区间最低价、成交量求和。
func Resample(s Series, interval time.Duration) (Series, error) {
	if interval <= 0 {
		return Series{}, fmt.Errorf("market: 聚合周期必须为正，收到 %s", interval)
	}
	if len(s.Bars) == 0 {
		return Series{Symbol: s.Symbol}, nil
	}

	out := make([]Bar, 0, len(s.Bars))
	var bucket Bar
	var bucketStart time.Time
	open := false

	for _, b := range s.Bars {
		start := b.Timestamp.Truncate(interval)
		if !open || !start.Equal(bucketStart) {
			if open {
				out = append(out, bucket)
			}
			bucketStart = start
			bucket = Bar{
				Timestamp: start,
				Open:      b.Open,
				High:      b.High,
				Low:       b.Low,
				Close:     b.Close,
				Volume:    b.Volume,
			}
			open = true
			continue
		}

		if b.High > bucket.High {
			bucket.High = b.High
		}
		if b.Low < bucket.Low {
			bucket.Low = b.Low
		}
		bucket.Close = b.Close
		bucket.Volume += b.Volume
	}
	out = append(out, bucket)

	return Series{Symbol: s.Symbol, Bars: out}, nil
}
