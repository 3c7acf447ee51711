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
		"guardian_url":          "https://guardian.example",
		"check_interval":        "12s",
		"pairing_poll_interval": 2000000000,
		"log_format":            "json",
	})

	t.Run("loads from flags", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "https://guardian.example", cfg.GuardianURL)
		assert.Equal(t, 12*time.Second, cfg.CheckInterval)
		assert.Equal(t, 2*time.Second, cfg.PairingPollInterval)
		assert.Equal(t, "json", cfg.LogFormat)
		assert.Equal(t, 300*time.Second, cfg.PairingTimeout, "absent keys keep earlier values")
	})

	t.Run("no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{GuardianURL: "defaults", CheckInterval: 42 * time.Second}
		parseJson(cfg)

		assert.Equal(t, "defaults", cfg.GuardianURL)
		assert.Equal(t, 42*time.Second, cfg.CheckInterval)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})

	t.Run("missing file → panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", filepath.Join(dir, "absent.json")}
		require.Panics(t, func() { parseJson(&Config{}) })
	})
}
