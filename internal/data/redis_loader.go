package data

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/opsxjacky/backtest-context/pkg/types"
)

// RedisLoader Redis 哈希数据源
//
// 定位符: host:port/<db>/<hash key>[?password=]
type RedisLoader struct {
	client *redis.Client
	key    string
	log    zerolog.Logger
}

// NewRedisLoader 创建 Redis 加载器
func NewRedisLoader() *RedisLoader {
	return &RedisLoader{log: zerolog.Nop()}
}

// SourceType 返回数据源类型
func (l *RedisLoader) SourceType() string {
	return "redis"
}

// Initialize 创建客户端; 连接在首次命令时建立
func (l *RedisLoader) Initialize(storage types.Locator, log zerolog.Logger) error {
	addr := storage.URI
	if addr == "" {
		addr = "localhost:6379"
	}

	db, err := strconv.Atoi(storage.Segment(0, "0"))
	if err != nil {
		return fmt.Errorf("invalid redis db %q: %w", storage.Segment(0, ""), err)
	}

	// 哈希键可能包含 /, 剩余路径段原样拼回
	l.key = storage.Param("key", "")
	if len(storage.Path) > 1 {
		l.key = strings.Join(storage.Path[1:], "/")
	}
	if l.key == "" {
		return ErrMissingKey
	}

	l.client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: storage.Param("password", ""),
		DB:       db,
	})
	l.log = log.With().Str("source", l.SourceType()).Str("key", l.key).Logger()
	return nil
}

// Load 读取整个哈希
func (l *RedisLoader) Load(ctx context.Context) (types.RawConfig, error) {
	if l.client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	values, err := l.client.HGetAll(ctx, l.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read hash %s: %w", l.key, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrContextNotFound, l.key)
	}

	cfg := make(types.RawConfig, len(values))
	for k, v := range values {
		cfg[k] = v
	}

	l.log.Debug().Int("keys", len(cfg)).Msg("Loaded redis config")
	return cfg, nil
}

// Close 关闭客户端
func (l *RedisLoader) Close() error {
	if l.client == nil {
		return nil
	}
	return l.client.Close()
}
