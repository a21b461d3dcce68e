package strategy

import "errors"

var (
	// ErrInsufficientData 表示K线数量不足以覆盖策略预热期。
	ErrInsufficientData = errors.New("strategy: insufficient data")
	// ErrInvalidParameter 表示参数集违反了声明的参数空间约束。
	ErrInvalidParameter = errors.New("strategy: invalid parameter")
	// ErrComputation 表示信号计算过程自身出错。
	ErrComputation = errors.New("strategy: signal computation failed")
)
