package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
database: build/graph.db
languages: [go]
ignore:
  - "gen/"
workers: 3
cycle_kinds: [calls, uses, implements]
watch:
  debounce: 750ms
log:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "build/graph.db", cfg.Database)
	assert.Equal(t, []string{"go"}, cfg.Languages)
	assert.Equal(t, []string{"gen/"}, cfg.Ignore)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, []string{"calls", "uses", "implements"}, cfg.CycleKinds)
	assert.Equal(t, 750*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "workers: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, ".isg/isg.db", cfg.Database)
	assert.Equal(t, 200*time.Millisecond, cfg.Watch.Debounce)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("ISG_DB", "/tmp/env.db")
	t.Setenv("ISG_LANGUAGES", "go, rust")
	t.Setenv("ISG_IGNORE", "a/,b/")
	t.Setenv("ISG_WORKERS", "8")
	t.Setenv("ISG_CYCLE_KINDS", "calls")
	t.Setenv("ISG_DEBOUNCE", "1s")
	t.Setenv("ISG_LOG_LEVEL", "warn")
	t.Setenv("ISG_LOG_FORMAT", "json")

	cfg, err := Load(writeConfig(t, "database: file.db\nignore: [c/]\nworkers: 1\n"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/env.db", cfg.Database)
	assert.Equal(t, []string{"go", "rust"}, cfg.Languages)
	assert.Equal(t, []string{"c/", "a/", "b/"}, cfg.Ignore)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, []string{"calls"}, cfg.CycleKinds)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
		want string
	}{
		{name: "bad yaml", body: "workers: [", want: "parse"},
		{name: "negative workers", body: "workers: -1", want: "workers"},
		{name: "bad format", body: "log:\n  format: xml", want: "log.format"},
		{name: "empty database", body: `database: ""`, want: "database"},
		{name: "unknown language", body: "languages: [go, cobol]", want: `unsupported language "cobol"`},
		{name: "bad env workers", env: map[string]string{"ISG_WORKERS": "many"}, want: "ISG_WORKERS"},
		{name: "bad env debounce", env: map[string]string{"ISG_DEBOUNCE": "soon"}, want: "ISG_DEBOUNCE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSplitList(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b ,"))
	assert.Nil(t, splitList(" , "))
}
