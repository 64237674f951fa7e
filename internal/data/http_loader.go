package data

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/opsxjacky/backtest-context/pkg/types"
)

// HTTPLoader 远程 JSON 数据源
//
// 定位符: host:port/<path...>[?scheme=https&<query>], 响应体须为 JSON 对象.
type HTTPLoader struct {
	httpClient      *http.Client
	limiter         *rate.Limiter
	maxElapsed      time.Duration
	initialInterval time.Duration
	url             string
	logger          zerolog.Logger
}

// NewHTTPLoader 创建带限速与重试的远程加载器
func NewHTTPLoader(timeout, maxElapsed time.Duration, rps float64) *HTTPLoader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxElapsed <= 0 {
		maxElapsed = 30 * time.Second
	}
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &HTTPLoader{
		httpClient:      &http.Client{Timeout: timeout},
		limiter:         rate.NewLimiter(limit, 1),
		maxElapsed:      maxElapsed,
		initialInterval: backoff.DefaultInitialInterval,
		logger:          zerolog.Nop(),
	}
}

// SourceType 返回数据源类型
func (l *HTTPLoader) SourceType() string {
	return "http"
}

// Initialize 由定位符拼出请求地址
func (l *HTTPLoader) Initialize(storage types.Locator, log zerolog.Logger) error {
	if storage.URI == "" {
		return ErrMissingHost
	}

	q := url.Values{}
	for k, v := range storage.Params {
		if k != "scheme" {
			q.Set(k, v)
		}
	}
	u := url.URL{
		Scheme:   storage.Param("scheme", "http"),
		Host:     storage.URI,
		Path:     "/" + strings.Join(storage.Path, "/"),
		RawQuery: q.Encode(),
	}
	l.url = u.String()
	l.logger = log.With().Str("source", l.SourceType()).Str("host", storage.URI).Logger()
	return nil
}

// Load 拉取远程配置, 失败时指数退避重试
func (l *HTTPLoader) Load(ctx context.Context) (types.RawConfig, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	var body []byte
	attempt := 0
	operation := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}
		req.Header.Set("Accept", "application/json")

		resp, err := l.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("HTTP request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode/100 != 2 {
			err := fmt.Errorf("unexpected status code: %d", resp.StatusCode)
			// 客户端错误重试无意义
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return backoff.Permanent(err)
			}
			l.logger.Debug().Int("attempt", attempt).Int("status", resp.StatusCode).Msg("Retrying")
			return err
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response body: %w", err)
		}
		return nil
	}

	backoffStrategy := backoff.NewExponentialBackOff()
	backoffStrategy.InitialInterval = l.initialInterval
	backoffStrategy.MaxElapsedTime = l.maxElapsed

	if err := backoff.Retry(operation, backoff.WithContext(backoffStrategy, ctx)); err != nil {
		return nil, fmt.Errorf("after %d attempts: %w", attempt, err)
	}

	cfg, err := decodeObject(body)
	if err != nil {
		l.logger.Error().Err(err).Str("response", truncate(string(body), 256)).Msg("Error parsing JSON")
		return nil, err
	}

	l.logger.Debug().Int("keys", len(cfg)).Int("attempts", attempt).Msg("Loaded remote config")
	return cfg, nil
}

// decodeObject 解析 JSON 对象; 数字保留原文以便交给类型归一化
func decodeObject(body []byte) (types.RawConfig, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("parsing JSON: expected an object")
	}

	cfg := make(types.RawConfig, len(doc))
	for k, v := range doc {
		if n, ok := v.(json.Number); ok {
			cfg[k] = n.String()
			continue
		}
		cfg[k] = v
	}
	return cfg, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
