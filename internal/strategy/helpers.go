package strategy

import (
	"fmt"

	"quantlab/internal/market"
)

// prepare 统一执行参数校验与预热期检查，返回预热长度。
func prepare(s Strategy, series market.Series, params ParamSet) (int, error) {
	if err := s.ParamSpace().Validate(params); err != nil {
		return 0, err
	}

	warmup := s.Warmup(params)
	if series.Len() <= warmup {
		return 0, fmt.Errorf("%w: 策略 %s 需要超过 %d 根K线，实际 %d",
			ErrInsufficientData, s.Name(), warmup, series.Len())
	}
	return warmup, nil
}
