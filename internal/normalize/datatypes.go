package normalize

import (
	"regexp"
	"strconv"

	"github.com/opsxjacky/backtest-context/pkg/types"
)

var (
	intPattern   = regexp.MustCompile(`^-?\d+$`)
	floatPattern = regexp.MustCompile(`^-?(\d+\.\d*|\.\d+|\d+)([eE][-+]?\d+)?$`)
)

// DataTypes 原地将字符串值收窄为 bool / int / float64, 返回转换的键数
//
// 只检查字符串值, 因此重复执行不会改变结果.
func DataTypes(cfg types.RawConfig) int {
	converted := 0
	for key, value := range cfg {
		s, ok := value.(string)
		if !ok {
			continue
		}
		if v, ok := Coerce(s); ok {
			cfg[key] = v
			converted++
		}
	}
	return converted
}

// Coerce 按 bool → int → float 的顺序尝试转换单个字符串
func Coerce(s string) (any, bool) {
	switch s {
	case "true":
		return true, true
	case "false":
		return false, true
	}

	// 整数形式的字符串溢出时保持原样, 不退化为浮点
	if intPattern.MatchString(s) {
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
		return nil, false
	}

	if floatPattern.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return nil, false
}
