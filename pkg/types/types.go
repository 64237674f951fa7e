package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// 上下文中由日期归一化写入的派生键
const (
	KeyStart     = "start"
	KeyEnd       = "end"
	KeyLive      = "live"
	KeyIndex     = "index"
	KeyFrequency = "frequency"
	KeyTimezone  = "timezone"
	KeyCalendar  = "calendar"
)

// Locator 存储定位符的结构化表示
type Locator struct {
	URI    string            `yaml:"uri" json:"uri"`
	Path   []string          `yaml:"path" json:"path"`
	Params map[string]string `yaml:"params" json:"params"`
}

// Param 获取查询参数, 不存在时返回默认值
func (l Locator) Param(key, defaultValue string) string {
	if v, ok := l.Params[key]; ok && v != "" {
		return v
	}
	return defaultValue
}

// Segment 获取第i个路径段, 越界时返回默认值
func (l Locator) Segment(i int, defaultValue string) string {
	if i >= 0 && i < len(l.Path) {
		return l.Path[i]
	}
	return defaultValue
}

// String 还原为定位符字符串 (参数按键排序)
func (l Locator) String() string {
	var b strings.Builder
	b.WriteString(l.URI)
	for _, seg := range l.Path {
		b.WriteByte('/')
		b.WriteString(seg)
	}
	if len(l.Params) > 0 {
		keys := make([]string, 0, len(l.Params))
		for k := range l.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i == 0 {
				b.WriteByte('?')
			} else {
				b.WriteByte('&')
			}
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(l.Params[k])
		}
	}
	return b.String()
}

// RawConfig 后端加载的原始配置 (字符串或原生类型)
type RawConfig map[string]any

// Context 归一化后的运行上下文
type Context map[string]any

// Live 是否为实盘/流式上下文
func (c Context) Live() bool {
	v, _ := c[KeyLive].(bool)
	return v
}

// Index 交易日历索引
func (c Context) Index() []time.Time {
	v, _ := c[KeyIndex].([]time.Time)
	return v
}

// Frequency 采样频率
func (c Context) Frequency() string {
	v, _ := c[KeyFrequency].(string)
	return v
}

// Text 获取字符串值, 非字符串值按 fmt 格式化
func (c Context) Text(key string) (string, bool) {
	v, ok := c[key]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// Int 获取整数值
func (c Context) Int(key string) (int, bool) {
	switch v := c[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

// Float 获取浮点值 (整数会被提升)
func (c Context) Float(key string) (float64, bool) {
	switch v := c[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Bool 获取布尔值
func (c Context) Bool(key string) (bool, bool) {
	v, ok := c[key].(bool)
	return v, ok
}

// Time 获取时间值
func (c Context) Time(key string) (time.Time, bool) {
	v, ok := c[key].(time.Time)
	return v, ok
}

// BacktestConfig 回测配置 (上下文的强类型视图)
type BacktestConfig struct {
	StartDate      time.Time
	EndDate        time.Time
	InitialCapital float64
	Symbols        []string
	Benchmark      string
	Live           bool
	Frequency      string
}

// ToBacktestConfig 转换为回测配置
func (c Context) ToBacktestConfig() (BacktestConfig, error) {
	startDate, ok := c.Time(KeyStart)
	if !ok {
		return BacktestConfig{}, fmt.Errorf("invalid start: %v", c[KeyStart])
	}

	cfg := BacktestConfig{
		StartDate: startDate,
		Live:      c.Live(),
		Frequency: c.Frequency(),
	}

	// 实盘上下文允许没有结束日期
	if endDate, ok := c.Time(KeyEnd); ok {
		cfg.EndDate = endDate
	} else if !cfg.Live {
		return BacktestConfig{}, fmt.Errorf("invalid end: %v", c[KeyEnd])
	}

	if capital, ok := c.Float("initial_capital"); ok {
		cfg.InitialCapital = capital
	} else if capital, ok := c.Float("capital"); ok {
		cfg.InitialCapital = capital
	}

	if universe, ok := c.Text("universe"); ok {
		for _, s := range strings.Split(universe, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.Symbols = append(cfg.Symbols, s)
			}
		}
	}

	cfg.Benchmark, _ = c.Text("benchmark")
	return cfg, nil
}
