package datasource

import "errors"

var (
	// ErrMaintenance 表示交易所处于维护状态，需要上层跳过本次拉取。
	ErrMaintenance = errors.New("exchange on maintenance")
)
