package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"data_dir":        "/srv/syncstore",
		"sync_interval":   "10s",
		"max_tries":       9,
		"dead_letter_ttl": "168h",
	})

	t.Run("loads from flags", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "/srv/syncstore", cfg.DataDir)
		assert.Equal(t, 10*time.Second, cfg.SyncInterval)
		assert.Equal(t, 9, cfg.MaxTries)
		assert.Equal(t, 7*24*time.Hour, cfg.DeadLetterTTL)
	})

	t.Run("no config flag means no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{DataDir: "/keep/me", SyncInterval: 42 * time.Second}
		parseJson(cfg)

		assert.Equal(t, "/keep/me", cfg.DataDir)
		assert.Equal(t, 42*time.Second, cfg.SyncInterval)
	})

	t.Run("fields absent from the file keep earlier values", func(t *testing.T) {
		partial := writeTempJSON(t, dir, "partial.json", map[string]any{
			"data_dir": "/only/dir",
		})
		os.Args = []string{"testbin", "-config", partial}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "/only/dir", cfg.DataDir)
		assert.Equal(t, 30*time.Second, cfg.SyncInterval)
		assert.Equal(t, 5, cfg.MaxTries)
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
