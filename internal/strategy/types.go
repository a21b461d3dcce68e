package strategy

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"quantlab/internal/market"
)

// Signal 表示策略在某根K线上期望持有的方向。
type Signal int8

const (
	// Flat 表示空仓。
	Flat Signal = 0
	// Long 表示做多。
	Long Signal = 1
	// Short 表示做空。
	Short Signal = -1
)

// String 返回信号的可读名称。
func (s Signal) String() string {
	switch s {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// ParamSet 为一组具名参数取值。
type ParamSet map[string]float64

// Clone 返回参数集的深拷贝。
func (p ParamSet) Clone() ParamSet {
	out := make(ParamSet, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Key 返回按参数名排序后的稳定字符串，用于确定性排序与持久化。
func (p ParamSet) Key() string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for i, name := range names {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%s=%g", name, p[name])
	}
	return sb.String()
}

// Axis 描述参数空间中的一个维度。离散维度给出 Values，
// 连续维度给出 [Min, Max] 区间。
type Axis struct {
	Name    string
	Values  []float64
	Min     float64
	Max     float64
	Default float64
}

// Discrete 判断该维度是否为离散取值。
func (a Axis) Discrete() bool {
	return len(a.Values) > 0
}

// Contains 判断取值是否落在该维度允许范围内。
func (a Axis) Contains(v float64) bool {
	if a.Discrete() {
		for _, allowed := range a.Values {
			if allowed == v {
				return true
			}
		}
		return false
	}
	return v >= a.Min && v <= a.Max
}

// ParamSpace 为策略声明的全部参数维度。
type ParamSpace []Axis

// Axis 按名称查找维度。
func (ps ParamSpace) Axis(name string) (Axis, bool) {
	for _, a := range ps {
		if a.Name == name {
			return a, true
		}
	}
	return Axis{}, false
}

// Defaults 返回全部维度的默认取值。
func (ps ParamSpace) Defaults() ParamSet {
	out := make(ParamSet, len(ps))
	for _, a := range ps {
		out[a.Name] = a.Default
	}
	return out
}

// Validate 校验参数集是否满足空间约束，未知参数与越界取值均视为非法。
func (ps ParamSpace) Validate(params ParamSet) error {
	for name, v := range params {
		axis, ok := ps.Axis(name)
		if !ok {
			return fmt.Errorf("%w: 未声明的参数 %q", ErrInvalidParameter, name)
		}
		if !axis.Contains(v) {
			return fmt.Errorf("%w: 参数 %s=%g 超出允许范围", ErrInvalidParameter, name, v)
		}
	}
	return nil
}

// Value 返回参数取值，缺省时回落到维度默认值。
func (ps ParamSpace) Value(params ParamSet, name string) float64 {
	if v, ok := params[name]; ok {
		return v
	}
	if axis, ok := ps.Axis(name); ok {
		return axis.Default
	}
	return math.NaN()
}

// NonDefaultCount 统计偏离默认值的参数个数，用于排名的确定性平局处理。
func (ps ParamSpace) NonDefaultCount(params ParamSet) int {
	count := 0
	for _, axis := range ps {
		if v, ok := params[axis.Name]; ok && v != axis.Default {
			count++
		}
	}
	return count
}

// Strategy 为策略能力接口：声明参数空间，并对整段K线序列产出逐K信号。
// Signals 返回的切片与输入序列等长；第 i 个信号是该根K线期间期望持有的
// 方向，只能由时间戳早于该K线的历史数据推导，前 warmup 根必须为 Flat。
type Strategy interface {
	Name() string
	ParamSpace() ParamSpace
	Warmup(params ParamSet) int
	Signals(series market.Series, params ParamSet) ([]Signal, error)
}
