package data

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsxjacky/backtest-context/internal/locator"
	"github.com/opsxjacky/backtest-context/pkg/types"
)

func TestNew(t *testing.T) {
	t.Run("Should build every registered backend", func(t *testing.T) {
		for _, kind := range Kinds() {
			src, err := New(kind, Options{})
			require.NoError(t, err)
			assert.Equal(t, kind, src.SourceType())
		}
	})

	t.Run("Should be case insensitive", func(t *testing.T) {
		src, err := New("YAML", Options{})
		require.NoError(t, err)
		assert.Equal(t, "yaml", src.SourceType())
	})

	t.Run("Should reject unknown backends", func(t *testing.T) {
		_, err := New("mongo", Options{})
		assert.ErrorIs(t, err, ErrUnknownBackend)
		assert.Contains(t, err.Error(), "postgres")
	})
}

func TestFilePath(t *testing.T) {
	tests := []struct {
		storage  string
		expected string
	}{
		{"ctx.yaml", "ctx.yaml"},
		{"conf/ctx.yaml", filepath.Join("conf", "ctx.yaml")},
		{"/etc/backtest/ctx.yaml?section=a", filepath.Join(string(filepath.Separator), "etc", "backtest", "ctx.yaml")},
	}
	for _, tt := range tests {
		t.Run(tt.storage, func(t *testing.T) {
			path, err := filePath(locator.Parse(tt.storage))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, path)
		})
	}

	_, err := filePath(locator.Parse("?section=a"))
	assert.ErrorIs(t, err, ErrMissingPath)
}

func TestMemoryLoader(t *testing.T) {
	t.Run("Should use locator params when not seeded", func(t *testing.T) {
		l := NewMemoryLoader(nil)
		require.NoError(t, l.Initialize(locator.Parse("mem?start=2012/01/01&fake=true"), zerolog.Nop()))
		cfg, err := l.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, types.RawConfig{"start": "2012/01/01", "fake": "true"}, cfg)
	})

	t.Run("Should return a copy of seeded values", func(t *testing.T) {
		l := NewMemoryLoader(types.RawConfig{"a": "1"})
		require.NoError(t, l.Initialize(locator.Parse("mem?b=2"), zerolog.Nop()))
		cfg, err := l.Load(context.Background())
		require.NoError(t, err)
		cfg["a"] = 1

		again, err := l.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, types.RawConfig{"a": "1"}, again)
	})
}
