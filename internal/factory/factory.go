package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/opsxjacky/backtest-context/internal/locator"
	"github.com/opsxjacky/backtest-context/internal/logger"
	"github.com/opsxjacky/backtest-context/internal/normalize"
	"github.com/opsxjacky/backtest-context/pkg/types"
)

const component = "context_factory"

// Loader 后端配置加载接口, 每个具体后端必须实现
type Loader interface {
	// Load 加载原始配置
	Load(ctx context.Context) (types.RawConfig, error)
}

// Initializer 可选接口: 后端根据定位符建立连接或句柄
type Initializer interface {
	Initialize(storage types.Locator, log zerolog.Logger) error
}

// Factory 上下文工厂
type Factory struct {
	storage types.Locator
	loader  Loader
	log     zerolog.Logger

	now       func() time.Time
	location  *time.Location
	calendar  normalize.Calendar
	frequency normalize.Frequency

	built types.Context
}

// Option 工厂选项
type Option func(*Factory)

// WithLogger 设置日志器
func WithLogger(l zerolog.Logger) Option {
	return func(f *Factory) {
		f.log = logger.Component(l, component)
	}
}

// WithClock 设置当前时间来源
func WithClock(now func() time.Time) Option {
	return func(f *Factory) {
		if now != nil {
			f.now = now
		}
	}
}

// WithLocation 设置日期解析的默认时区
func WithLocation(loc *time.Location) Option {
	return func(f *Factory) {
		if loc != nil {
			f.location = loc
		}
	}
}

// WithCalendar 设置默认交易日历
func WithCalendar(cal normalize.Calendar) Option {
	return func(f *Factory) {
		if cal != nil {
			f.calendar = cal
		}
	}
}

// WithDefaultFrequency 设置默认采样频率
func WithDefaultFrequency(freq normalize.Frequency) Option {
	return func(f *Factory) {
		f.frequency = freq
	}
}

// New 解析定位符并初始化后端
func New(storage string, loader Loader, opts ...Option) (*Factory, error) {
	if loader == nil {
		return nil, errors.New("loader not set")
	}

	f := &Factory{
		storage:   locator.Parse(storage),
		loader:    loader,
		log:       logger.Component(log.Logger, component),
		now:       time.Now,
		location:  time.UTC,
		calendar:  normalize.Everyday,
		frequency: normalize.Daily,
	}
	for _, opt := range opts {
		opt(f)
	}

	f.log.Debug().
		Str("uri", f.storage.URI).
		Strs("path", f.storage.Path).
		Int("params", len(f.storage.Params)).
		Msg("Parsed storage")

	if initializer, ok := loader.(Initializer); ok {
		if err := initializer.Initialize(f.storage, f.log); err != nil {
			return nil, fmt.Errorf("failed to initialize storage %q: %w", f.storage.URI, err)
		}
	}
	return f, nil
}

// Storage 返回解析后的定位符
func (f *Factory) Storage() types.Locator {
	return f.storage
}

// Log 返回供后端使用的日志器
func (f *Factory) Log() *zerolog.Logger {
	return &f.log
}

// Build 加载并归一化配置, 结果只构建一次
func (f *Factory) Build(ctx context.Context) (types.Context, error) {
	if f.built != nil {
		return f.built, nil
	}

	cfg, err := f.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load context: %w", err)
	}
	if cfg == nil {
		cfg = types.RawConfig{}
	}

	converted := normalize.DataTypes(cfg)
	res := normalize.Dates(cfg,
		normalize.WithNow(f.now),
		normalize.WithLocation(f.location),
		normalize.WithCalendar(f.calendar),
		normalize.WithDefaultFrequency(f.frequency),
	)
	if res.Fallback != nil {
		f.log.Warn().Err(res.Fallback).Msg("Dates degraded to defaults")
	}

	f.log.Info().
		Int("keys", len(cfg)).
		Int("converted", converted).
		Bool("live", res.Live).
		Str("frequency", string(res.Frequency)).
		Int("index", len(res.Index)).
		Msg("Context built")

	f.built = types.Context(cfg)
	return f.built, nil
}

// Close 释放后端持有的资源
func (f *Factory) Close() error {
	if c, ok := f.loader.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
