package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/opsxjacky/backtest-context/pkg/types"
)

// CSVLoader CSV 文件数据源
//
// 每行一个 key,value; 表头可选, 以 # 开头的行为注释.
type CSVLoader struct {
	path string
	log  zerolog.Logger
}

// NewCSVLoader 创建 CSV 加载器
func NewCSVLoader() *CSVLoader {
	return &CSVLoader{log: zerolog.Nop()}
}

// SourceType 返回数据源类型
func (l *CSVLoader) SourceType() string {
	return "csv"
}

// Initialize 解析文件路径
func (l *CSVLoader) Initialize(storage types.Locator, log zerolog.Logger) error {
	path, err := filePath(storage)
	if err != nil {
		return err
	}
	l.path = path
	l.log = log.With().Str("source", l.SourceType()).Str("path", path).Logger()
	return nil
}

// Load 加载配置
func (l *CSVLoader) Load(_ context.Context) (types.RawConfig, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", l.path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	keyCol, valueCol := 0, 1
	if len(records) > 0 {
		if k, v, ok := parseHeader(records[0]); ok {
			keyCol, valueCol = k, v
			records = records[1:]
		}
	}

	cfg := make(types.RawConfig, len(records))
	skipped := 0
	for _, row := range records {
		if keyCol >= len(row) || valueCol >= len(row) {
			skipped++ // 跳过列数不足的行
			continue
		}
		key := strings.TrimSpace(row[keyCol])
		if key == "" {
			skipped++
			continue
		}
		cfg[key] = strings.TrimSpace(row[valueCol])
	}

	l.log.Debug().Int("keys", len(cfg)).Int("skipped", skipped).Msg("Loaded csv config")
	return cfg, nil
}

// parseHeader 识别表头, 返回键列与值列的索引
func parseHeader(header []string) (int, int, bool) {
	keyCol, valueCol := -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "key", "name", "property", "param":
			keyCol = i
		case "value", "val":
			valueCol = i
		}
	}
	if keyCol < 0 || valueCol < 0 {
		return 0, 0, false
	}
	return keyCol, valueCol, true
}
