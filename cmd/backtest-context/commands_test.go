package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	chdir(t, t.TempDir())
	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseCommand(t *testing.T) {
	t.Run("Should print the decomposed locator", func(t *testing.T) {
		out, err := execute(t, "parse", "localhost:1234/some/where?fake=true")
		require.NoError(t, err)

		var loc struct {
			URI    string            `yaml:"uri"`
			Path   []string          `yaml:"path"`
			Params map[string]string `yaml:"params"`
		}
		require.NoError(t, yaml.Unmarshal([]byte(out), &loc))
		assert.Equal(t, "localhost:1234", loc.URI)
		assert.Equal(t, []string{"some", "where"}, loc.Path)
		assert.Equal(t, map[string]string{"fake": "true"}, loc.Params)
	})

	t.Run("Should reject unknown formats", func(t *testing.T) {
		_, err := execute(t, "parse", "x", "--format", "xml")
		assert.ErrorContains(t, err, "unknown format")
	})
}

func TestBuildCommand(t *testing.T) {
	t.Run("Should build from the memory backend", func(t *testing.T) {
		out, err := execute(t, "build", "mem?start=2012/01/01&end=2012/01/10&capital=100&fake=true",
			"--backend", "memory", "--format", "json")
		require.NoError(t, err)

		var ctx map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &ctx))
		assert.Equal(t, false, ctx["live"])
		assert.Equal(t, true, ctx["fake"])
		assert.Equal(t, float64(100), ctx["capital"])
		assert.Equal(t, "daily", ctx["frequency"])
		assert.Equal(t, "2012-01-01T00:00:00Z", ctx["start"])
		index, ok := ctx["index"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, float64(10), index["len"])
		assert.Equal(t, "2012-01-10T00:00:00Z", index["last"])
	})

	t.Run("Should print the full index on request", func(t *testing.T) {
		out, err := execute(t, "build", "mem?start=2012/01/01&end=2012/01/03",
			"--backend", "memory", "--format", "json", "--full-index")
		require.NoError(t, err)

		var ctx map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &ctx))
		assert.Len(t, ctx["index"], 3)
	})

	t.Run("Should build from a yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ctx.yaml")
		require.NoError(t, os.WriteFile(path, []byte("backtest:\n  start: \"2012/01/01\"\n  end: \"2012/01/05\"\n"), 0o600))

		out, err := execute(t, "build", path+"?section=backtest")
		require.NoError(t, err)
		assert.Contains(t, out, "live: false")
		assert.Contains(t, out, "len: 5")
	})

	t.Run("Should fail on unknown backends", func(t *testing.T) {
		_, err := execute(t, "build", "x", "--backend", "mongo")
		assert.ErrorContains(t, err, "unknown backend")
	})

	t.Run("Should propagate load failures", func(t *testing.T) {
		_, err := execute(t, "build", filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorContains(t, err, "failed to load context")
	})
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(prev))
	})
}
