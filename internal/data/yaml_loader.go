package data

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/opsxjacky/backtest-context/pkg/types"
)

// YAMLLoader YAML 文件数据源
//
// 定位符: <dir>/<file>.yaml[?section=<name>], section 选择顶层的一个映射.
type YAMLLoader struct {
	path    string
	section string
	log     zerolog.Logger
}

// NewYAMLLoader 创建 YAML 加载器
func NewYAMLLoader() *YAMLLoader {
	return &YAMLLoader{log: zerolog.Nop()}
}

// SourceType 返回数据源类型
func (l *YAMLLoader) SourceType() string {
	return "yaml"
}

// Initialize 解析文件路径与可选的 section
func (l *YAMLLoader) Initialize(storage types.Locator, log zerolog.Logger) error {
	path, err := filePath(storage)
	if err != nil {
		return err
	}
	l.path = path
	l.section = storage.Param("section", "")
	l.log = log.With().Str("source", l.SourceType()).Str("path", path).Logger()
	return nil
}

// Load 从文件加载配置
func (l *YAMLLoader) Load(_ context.Context) (types.RawConfig, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if l.section != "" {
		section, ok := doc[l.section].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: section %q in %s", ErrContextNotFound, l.section, l.path)
		}
		doc = section
	}

	l.log.Debug().Int("keys", len(doc)).Msg("Loaded yaml config")
	return types.RawConfig(doc), nil
}
