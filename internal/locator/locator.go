package locator

import (
	"strings"

	"github.com/opsxjacky/backtest-context/pkg/types"
)

// Parse 解析存储定位符 <uri>[/<segment>...][?<key>=<value>[&...]]
//
// 解析永不失败: 无法识别的输入会退化为默认字段, 由具体后端决定如何处理.
func Parse(storage string) types.Locator {
	loc := types.Locator{
		Path:   []string{},
		Params: map[string]string{},
	}

	rest := storage
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		parseQuery(rest[i+1:], loc.Params)
		rest = rest[:i]
	}

	i := strings.IndexByte(rest, '/')
	if i < 0 {
		loc.URI = rest
		return loc
	}
	loc.URI = rest[:i]

	for _, seg := range strings.Split(rest[i+1:], "/") {
		if seg != "" {
			loc.Path = append(loc.Path, seg)
		}
	}
	return loc
}

// parseQuery 解析查询块, 重复键以最后一次为准
func parseQuery(query string, params map[string]string) {
	for _, pair := range strings.Split(query, "&") {
		key, value, _ := strings.Cut(pair, "=")
		if key == "" {
			continue
		}
		params[key] = value
	}
}
