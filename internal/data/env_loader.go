package data

import (
	"context"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/opsxjacky/backtest-context/pkg/types"
)

// EnvLoader dotenv 文件数据源
//
// 定位符: <dir>/<file>.env[?prefix=BT_]; 键转为小写, 设置 prefix 时只保留带前缀的键并去掉前缀.
type EnvLoader struct {
	path   string
	prefix string
	log    zerolog.Logger
}

// NewEnvLoader 创建 dotenv 加载器
func NewEnvLoader() *EnvLoader {
	return &EnvLoader{log: zerolog.Nop()}
}

// SourceType 返回数据源类型
func (l *EnvLoader) SourceType() string {
	return "env"
}

// Initialize 解析文件路径与前缀
func (l *EnvLoader) Initialize(storage types.Locator, log zerolog.Logger) error {
	path, err := filePath(storage)
	if err != nil {
		return err
	}
	l.path = path
	l.prefix = storage.Param("prefix", "")
	l.log = log.With().Str("source", l.SourceType()).Str("path", path).Logger()
	return nil
}

// Load 读取文件, 不修改进程环境变量
func (l *EnvLoader) Load(_ context.Context) (types.RawConfig, error) {
	values, err := godotenv.Read(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}

	cfg := make(types.RawConfig, len(values))
	for key, value := range values {
		if l.prefix != "" {
			trimmed, ok := strings.CutPrefix(key, l.prefix)
			if !ok || trimmed == "" {
				continue
			}
			key = trimmed
		}
		cfg[strings.ToLower(key)] = value
	}

	l.log.Debug().Int("keys", len(cfg)).Msg("Loaded env config")
	return cfg, nil
}
