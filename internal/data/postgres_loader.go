package data

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"

	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/opsxjacky/backtest-context/pkg/types"
)

// PostgresLoader PostgreSQL 数据源
//
// 定位符: host:port/<db>/<table>?user=&password=&sslmode=&name=
// 表结构: (name TEXT, key TEXT, value TEXT), 一个 name 对应一份配置.
type PostgresLoader struct {
	db    *sql.DB
	table string
	name  string
	log   zerolog.Logger
}

// NewPostgresLoader 创建 PostgreSQL 加载器, 连接在 Initialize 时建立
func NewPostgresLoader() *PostgresLoader {
	return &PostgresLoader{log: zerolog.Nop()}
}

// NewPostgresLoaderWithDB 使用已有连接创建加载器
func NewPostgresLoaderWithDB(db *sql.DB) *PostgresLoader {
	return &PostgresLoader{db: db, log: zerolog.Nop()}
}

// SourceType 返回数据源类型
func (l *PostgresLoader) SourceType() string {
	return "postgres"
}

// Initialize 打开连接并检查可用性
func (l *PostgresLoader) Initialize(storage types.Locator, log zerolog.Logger) error {
	l.table = storage.Segment(1, "contexts")
	l.name = storage.Param("name", "default")
	l.log = log.With().Str("source", l.SourceType()).Str("table", l.table).Logger()

	if l.db != nil {
		return nil
	}

	db, err := sql.Open("postgres", connString(storage))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	l.db = db
	return nil
}

// connString 构造 postgres:// 连接串
func connString(storage types.Locator) string {
	host := storage.URI
	if host == "" {
		host = "localhost:5432"
	} else if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "5432")
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   host,
		Path:   "/" + storage.Segment(0, "backtest"),
	}
	if user := storage.Param("user", ""); user != "" {
		if password, ok := storage.Params["password"]; ok {
			u.User = url.UserPassword(user, password)
		} else {
			u.User = url.User(user)
		}
	}
	q := url.Values{}
	q.Set("sslmode", storage.Param("sslmode", "disable"))
	u.RawQuery = q.Encode()
	return u.String()
}

// Load 读取 name 对应的全部键值
func (l *PostgresLoader) Load(ctx context.Context) (types.RawConfig, error) {
	if l.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := fmt.Sprintf("SELECT key, value FROM %s WHERE name = $1", pq.QuoteIdentifier(l.table))
	rows, err := l.db.QueryContext(ctx, query, l.name)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", l.table, err)
	}
	defer rows.Close()

	cfg := types.RawConfig{}
	for rows.Next() {
		var key string
		var value sql.NullString
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if value.Valid {
			cfg[key] = value.String
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(cfg) == 0 {
		return nil, fmt.Errorf("%w: %s in %s", ErrContextNotFound, l.name, l.table)
	}

	l.log.Debug().Str("name", l.name).Int("keys", len(cfg)).Msg("Loaded postgres config")
	return cfg, nil
}

// Close 关闭连接
func (l *PostgresLoader) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}
