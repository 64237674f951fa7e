package normalize

import (
	"strings"
	"time"
)

// Frequency 采样频率
type Frequency string

const (
	Minute Frequency = "minute"
	Hourly Frequency = "hourly"
	Daily  Frequency = "daily"
	Weekly Frequency = "weekly"
)

// ParseFrequency 解析频率标识, 忽略大小写与首尾空白
func ParseFrequency(s string) (Frequency, bool) {
	switch f := Frequency(strings.ToLower(strings.TrimSpace(s))); f {
	case Minute, Hourly, Daily, Weekly:
		return f, true
	case "":
		return Daily, true
	}
	return "", false
}

// approx 单步的近似时长, 仅用于估算索引长度
func (f Frequency) approx() time.Duration {
	switch f {
	case Minute:
		return time.Minute
	case Hourly:
		return time.Hour
	case Weekly:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// next 返回下一个采样时刻; 日/周按日历推进以保持跨夏令时的本地时刻
func (f Frequency) next(t time.Time) time.Time {
	switch f {
	case Minute:
		return t.Add(time.Minute)
	case Hourly:
		return t.Add(time.Hour)
	case Weekly:
		return t.AddDate(0, 0, 7)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// Calendar 交易日历
type Calendar interface {
	IsTradingTime(t time.Time) bool
}

// CalendarFunc 函数形式的交易日历
type CalendarFunc func(t time.Time) bool

// IsTradingTime 实现 Calendar
func (f CalendarFunc) IsTradingTime(t time.Time) bool {
	return f(t)
}

var (
	// Everyday 以自然日近似交易日
	Everyday Calendar = CalendarFunc(func(time.Time) bool { return true })

	// Weekdays 剔除周六周日
	Weekdays Calendar = CalendarFunc(func(t time.Time) bool {
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	})
)

// CalendarByName 按名称查找交易日历
func CalendarByName(name string) (Calendar, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "everyday", "all":
		return Everyday, true
	case "weekdays", "business":
		return Weekdays, true
	}
	return nil, false
}
