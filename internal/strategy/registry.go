package strategy

import (
	"fmt"
	"sort"
)

// Registry 按名称管理一组策略，支持内置与用户自定义策略共存。
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry 创建空的策略注册表。
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// DefaultRegistry 返回预注册全部内置策略的注册表。
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&SMACross{})
	r.Register(&Momentum{})
	r.Register(&MeanReversion{})
	r.Register(&Breakout{})
	r.Register(&RSIThreshold{})
	r.Register(&BuyHold{})
	return r
}

// Register 以策略名称为键注册策略，重名时覆盖。
func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

// Get 按名称查找策略。
func (r *Registry) Get(name string) (Strategy, error) {
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("strategy: 未注册的策略 %q", name)
	}
	return s, nil
}

// List 返回已注册策略名称的有序列表。
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
