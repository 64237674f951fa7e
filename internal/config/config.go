package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/opsxjacky/backtest-context/internal/data"
	"github.com/opsxjacky/backtest-context/internal/normalize"
)

// Config 工具运行配置
type Config struct {
	LogLevel       string
	Timezone       string
	Frequency      string
	Calendar       string
	HTTPTimeout    time.Duration
	HTTPMaxElapsed time.Duration
	HTTPRate       float64
}

// Load 从可选的 .env 文件和环境变量加载配置
//
// envFile 为空时尝试当前目录的 .env, 文件不存在不算错误. 已存在的环境变量优先.
func Load(envFile string) (*Config, error) {
	path := envFile
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if envFile != "" || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	cfg := &Config{
		LogLevel:       getEnvWithDefault("BTCTX_LOG_LEVEL", "info"),
		Timezone:       getEnvWithDefault("BTCTX_TIMEZONE", "UTC"),
		Frequency:      getEnvWithDefault("BTCTX_FREQUENCY", string(normalize.Daily)),
		Calendar:       getEnvWithDefault("BTCTX_CALENDAR", "everyday"),
		HTTPTimeout:    getEnvDurationWithDefault("BTCTX_HTTP_TIMEOUT", 30*time.Second),
		HTTPMaxElapsed: getEnvDurationWithDefault("BTCTX_HTTP_MAX_ELAPSED", 30*time.Second),
		HTTPRate:       getEnvFloatWithDefault("BTCTX_HTTP_RATE", 5),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid BTCTX_TIMEZONE: %w", err)
	}
	if _, ok := normalize.ParseFrequency(c.Frequency); !ok {
		return fmt.Errorf("invalid BTCTX_FREQUENCY: %q", c.Frequency)
	}
	if _, ok := normalize.CalendarByName(c.Calendar); !ok {
		return fmt.Errorf("invalid BTCTX_CALENDAR: %q", c.Calendar)
	}
	return nil
}

// GetLocation 获取默认时区
func (c *Config) GetLocation() *time.Location {
	if loc, err := time.LoadLocation(c.Timezone); err == nil {
		return loc
	}
	return time.UTC
}

// GetFrequency 获取默认采样频率
func (c *Config) GetFrequency() normalize.Frequency {
	if f, ok := normalize.ParseFrequency(c.Frequency); ok {
		return f
	}
	return normalize.Daily
}

// GetCalendar 获取默认交易日历
func (c *Config) GetCalendar() normalize.Calendar {
	if cal, ok := normalize.CalendarByName(c.Calendar); ok {
		return cal
	}
	return normalize.Everyday
}

// SourceOptions 转换为数据源选项
func (c *Config) SourceOptions() data.Options {
	return data.Options{
		HTTPTimeout:    c.HTTPTimeout,
		HTTPMaxElapsed: c.HTTPMaxElapsed,
		HTTPRate:       c.HTTPRate,
	}
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// 纯数字按秒处理
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
