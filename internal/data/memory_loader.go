package data

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/opsxjacky/backtest-context/pkg/types"
)

// MemoryLoader 内存数据源, 用于测试和命令行试跑
//
// 未预置数据时, 定位符的查询参数即为配置.
type MemoryLoader struct {
	values types.RawConfig
}

// NewMemoryLoader 创建内存加载器
func NewMemoryLoader(values types.RawConfig) *MemoryLoader {
	return &MemoryLoader{values: values}
}

// SourceType 返回数据源类型
func (l *MemoryLoader) SourceType() string {
	return "memory"
}

// Initialize 未预置数据时使用定位符参数
func (l *MemoryLoader) Initialize(storage types.Locator, _ zerolog.Logger) error {
	if l.values != nil {
		return nil
	}
	l.values = make(types.RawConfig, len(storage.Params))
	for k, v := range storage.Params {
		l.values[k] = v
	}
	return nil
}

// Load 返回配置副本
func (l *MemoryLoader) Load(_ context.Context) (types.RawConfig, error) {
	out := make(types.RawConfig, len(l.values))
	for k, v := range l.values {
		out[k] = v
	}
	return out, nil
}
