package data

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsxjacky/backtest-context/internal/locator"
	"github.com/opsxjacky/backtest-context/pkg/types"
)

func newTestHTTPLoader(t *testing.T, srv *httptest.Server, path string) *HTTPLoader {
	t.Helper()
	l := NewHTTPLoader(time.Second, 2*time.Second, 0)
	l.initialInterval = 5 * time.Millisecond
	host := strings.TrimPrefix(srv.URL, "http://")
	require.NoError(t, l.Initialize(locator.Parse(host+path), zerolog.Nop()))
	return l
}

func TestHTTPLoader(t *testing.T) {
	t.Run("Should fetch a JSON object", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/contexts/momentum", r.URL.Path)
			assert.Equal(t, "v2", r.URL.Query().Get("version"))
			assert.Empty(t, r.URL.Query().Get("scheme"))
			_, _ = w.Write([]byte(`{"start":"2012/01/01","capital":125,"ratio":0.5,"live":false,"tags":["a"]}`))
		}))
		defer srv.Close()

		cfg, err := newTestHTTPLoader(t, srv, "/contexts/momentum?version=v2&scheme=http").Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "2012/01/01", cfg["start"])
		assert.Equal(t, "125", cfg["capital"])
		assert.Equal(t, "0.5", cfg["ratio"])
		assert.Equal(t, false, cfg["live"])
		assert.Equal(t, []any{"a"}, cfg["tags"])
	})

	t.Run("Should retry server errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"a":"b"}`))
		}))
		defer srv.Close()

		cfg, err := newTestHTTPLoader(t, srv, "/ctx").Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, types.RawConfig{"a": "b"}, cfg)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("Should not retry client errors", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := newTestHTTPLoader(t, srv, "/ctx").Load(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("Should accept any 2xx status", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"start":"2012/01/01"}`))
		}))
		defer srv.Close()

		cfg, err := newTestHTTPLoader(t, srv, "/ctx").Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "2012/01/01", cfg["start"])
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("Should not retry an empty 204 response", func(t *testing.T) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		_, err := newTestHTTPLoader(t, srv, "/ctx").Load(context.Background())
		assert.ErrorContains(t, err, "parsing JSON")
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("Should reject non-object bodies", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`["not","an","object"]`))
		}))
		defer srv.Close()

		_, err := newTestHTTPLoader(t, srv, "/ctx").Load(context.Background())
		assert.ErrorContains(t, err, "parsing JSON")
	})

	t.Run("Should stop when the context is cancelled", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newTestHTTPLoader(t, srv, "/ctx").Load(ctx)
		assert.Error(t, err)
	})

	t.Run("Should require a host", func(t *testing.T) {
		err := NewHTTPLoader(0, 0, 0).Initialize(locator.Parse("/only/path"), zerolog.Nop())
		assert.ErrorIs(t, err, ErrMissingHost)
	})
}
