package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opsxjacky/backtest-context/pkg/types"
)

// MaxIndexLen 日历索引的最大长度, 超出时索引退化为空
const MaxIndexLen = 1 << 20

var (
	ErrMissingBound     = errors.New("missing date bound")
	ErrInvalidDate      = errors.New("unable to parse date")
	ErrInvertedRange    = errors.New("start is after end")
	ErrIndexTooLarge    = errors.New("index exceeds maximum length")
	ErrUnknownFrequency = errors.New("unknown frequency")
	ErrUnknownCalendar  = errors.New("unknown calendar")
	ErrInvalidTimezone  = errors.New("invalid timezone")

	// errOpenEnd end=now, 按缺失结束日期处理, 不算退化
	errOpenEnd = errors.New("open end")
)

// openEnd 表示开放区间的结束日期取值
const openEnd = "now"

// dateFormats 支持的日期格式, 首选 2006/01/02
var dateFormats = []string{
	"2006/01/02",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"20060102",
}

// DateResult 日期归一化结果
//
// 归一化永不失败; Fallback 汇总所有退化原因, 无退化时为 nil.
type DateResult struct {
	Start     time.Time
	End       time.Time
	Live      bool
	Index     []time.Time
	Frequency Frequency
	Fallback  error
}

type dateOptions struct {
	now       func() time.Time
	location  *time.Location
	calendar  Calendar
	frequency Frequency
}

// DateOption 日期归一化选项
type DateOption func(*dateOptions)

// WithNow 设置当前时间来源
func WithNow(now func() time.Time) DateOption {
	return func(o *dateOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLocation 设置解析日期时使用的默认时区
func WithLocation(loc *time.Location) DateOption {
	return func(o *dateOptions) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithCalendar 设置默认交易日历
func WithCalendar(cal Calendar) DateOption {
	return func(o *dateOptions) {
		if cal != nil {
			o.calendar = cal
		}
	}
}

// WithDefaultFrequency 设置未提供 frequency 时的默认频率
func WithDefaultFrequency(f Frequency) DateOption {
	return func(o *dateOptions) {
		if _, ok := ParseFrequency(string(f)); ok && f != "" {
			o.frequency = f
		}
	}
}

// Dates 原地归一化日期相关字段, 写入 live / index / frequency
func Dates(cfg types.RawConfig, opts ...DateOption) DateResult {
	o := dateOptions{
		now:       time.Now,
		location:  time.UTC,
		calendar:  Everyday,
		frequency: Daily,
	}
	for _, opt := range opts {
		opt(&o)
	}

	var issues []error

	loc := o.location
	if name, raw, ok := setting(cfg, types.KeyTimezone); ok {
		if l, err := time.LoadLocation(name); err == nil && name != "" {
			loc = l
		} else {
			issues = append(issues, fmt.Errorf("%w: %v", ErrInvalidTimezone, raw))
		}
	}

	freq := o.frequency
	if s, raw, ok := setting(cfg, types.KeyFrequency); ok {
		if f, valid := ParseFrequency(s); valid && isString(raw) {
			freq = f
		} else {
			issues = append(issues, fmt.Errorf("%w: %v", ErrUnknownFrequency, raw))
		}
	}

	cal := o.calendar
	if s, raw, ok := setting(cfg, types.KeyCalendar); ok {
		if c, valid := CalendarByName(s); valid && isString(raw) {
			cal = c
		} else {
			issues = append(issues, fmt.Errorf("%w: %v", ErrUnknownCalendar, raw))
		}
	}

	now := o.now().In(loc)
	res := DateResult{Live: true, Frequency: freq}

	start, startErr := parseBound(cfg, types.KeyStart, loc)
	if startErr == nil {
		res.Start = start
		cfg[types.KeyStart] = start
	} else {
		issues = append(issues, startErr)
	}

	end, endErr := parseBound(cfg, types.KeyEnd, loc)
	switch {
	case endErr == nil:
		res.End = end
		cfg[types.KeyEnd] = end
		// 结束日期不早于当前时刻视为实盘
		res.Live = startErr != nil || !end.Before(now)
	case errors.Is(endErr, ErrMissingBound), errors.Is(endErr, errOpenEnd):
		// 没有结束日期或 end=now: 开放区间, 索引延伸到当前时刻
		end = now
		endErr = nil
	default:
		issues = append(issues, endErr)
	}

	if startErr == nil && endErr == nil {
		index, err := buildIndex(start, end, freq, cal)
		if err != nil {
			issues = append(issues, err)
		}
		res.Index = index
	}
	if res.Index == nil {
		res.Index = []time.Time{}
	}

	cfg[types.KeyLive] = res.Live
	cfg[types.KeyIndex] = res.Index
	cfg[types.KeyFrequency] = string(res.Frequency)
	res.Fallback = errors.Join(issues...)
	return res
}

// parseBound 解析单个日期边界
func parseBound(cfg types.RawConfig, key string, loc *time.Location) (time.Time, error) {
	raw, ok := cfg[key]
	if !ok || raw == nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrMissingBound, key)
	}

	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case string:
		if key == types.KeyEnd && strings.EqualFold(strings.TrimSpace(v), openEnd) {
			return time.Time{}, errOpenEnd
		}
		return parseDate(key, v, loc)
	case int:
		// 数据类型归一化会把 20120101 这类日期转成整数
		return parseDate(key, strconv.Itoa(v), loc)
	}
	return time.Time{}, fmt.Errorf("%w: %s=%v", ErrInvalidDate, key, raw)
}

// parseDate 按支持的格式依次尝试解析
func parseDate(key, dateStr string, loc *time.Location) (time.Time, error) {
	for _, format := range dateFormats {
		if t, err := time.ParseInLocation(format, dateStr, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %s=%q", ErrInvalidDate, key, dateStr)
}

// buildIndex 生成 [start, end] 区间内按频率步进、经日历过滤的升序去重索引
func buildIndex(start, end time.Time, freq Frequency, cal Calendar) ([]time.Time, error) {
	if start.After(end) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvertedRange,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	// time.Time.Sub 在约 292 年处饱和, 按秒估算步数
	steps := (end.Unix() - start.Unix()) / int64(freq.approx()/time.Second)
	if steps >= MaxIndexLen {
		return nil, fmt.Errorf("%w: ~%d %s steps", ErrIndexTooLarge, steps, freq)
	}

	index := make([]time.Time, 0, steps+1)
	for t := start; !t.After(end); t = freq.next(t) {
		if !cal.IsTradingTime(t) {
			continue
		}
		if n := len(index); n > 0 && !index[n-1].Before(t) {
			continue
		}
		if len(index) >= MaxIndexLen {
			return nil, fmt.Errorf("%w: more than %d %s steps", ErrIndexTooLarge, MaxIndexLen, freq)
		}
		index = append(index, t)
	}
	return index, nil
}

// setting 读取可选的字符串设置; nil 视为未设置
func setting(cfg types.RawConfig, key string) (string, any, bool) {
	raw, ok := cfg[key]
	if !ok || raw == nil {
		return "", nil, false
	}
	s, _ := raw.(string)
	return s, raw, true
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}
