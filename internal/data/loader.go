package data

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/opsxjacky/backtest-context/pkg/types"
)

var (
	ErrUnknownBackend  = errors.New("unknown backend")
	ErrMissingPath     = errors.New("storage locator has no file path")
	ErrMissingHost     = errors.New("storage locator has no host")
	ErrMissingKey      = errors.New("storage locator has no key")
	ErrContextNotFound = errors.New("context not found")
)

// Source 配置数据源接口
type Source interface {
	// Initialize 根据定位符准备连接或文件句柄
	Initialize(storage types.Locator, log zerolog.Logger) error

	// Load 加载原始配置
	Load(ctx context.Context) (types.RawConfig, error)

	// SourceType 数据源类型
	SourceType() string
}

// Options 创建数据源时的可调参数
type Options struct {
	HTTPTimeout    time.Duration
	HTTPMaxElapsed time.Duration
	HTTPRate       float64
}

// builders 已注册的数据源
var builders = map[string]func(Options) Source{
	"yaml":     func(Options) Source { return NewYAMLLoader() },
	"csv":      func(Options) Source { return NewCSVLoader() },
	"env":      func(Options) Source { return NewEnvLoader() },
	"postgres": func(Options) Source { return NewPostgresLoader() },
	"redis":    func(Options) Source { return NewRedisLoader() },
	"http": func(o Options) Source {
		return NewHTTPLoader(o.HTTPTimeout, o.HTTPMaxElapsed, o.HTTPRate)
	},
	"memory": func(Options) Source { return NewMemoryLoader(nil) },
}

// New 按类型创建数据源
func New(kind string, opts Options) (Source, error) {
	build, ok := builders[strings.ToLower(kind)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", ErrUnknownBackend, kind, strings.Join(Kinds(), ", "))
	}
	return build(opts), nil
}

// Kinds 返回已注册的数据源类型
func Kinds() []string {
	kinds := make([]string, 0, len(builders))
	for k := range builders {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// filePath 由定位符还原文件路径; uri 为空表示绝对路径
func filePath(loc types.Locator) (string, error) {
	if loc.URI == "" && len(loc.Path) == 0 {
		return "", ErrMissingPath
	}
	parts := append([]string{loc.URI}, loc.Path...)
	if loc.URI == "" {
		parts[0] = string(filepath.Separator)
	}
	return filepath.Join(parts...), nil
}
