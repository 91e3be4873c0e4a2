package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default("/srv/dil")

	assert.Equal(t, filepath.Join("/srv/dil", "db", "dil.sqlite"), cfg.DBPath)
	assert.Equal(t, filepath.Join("/srv/dil", "index"), cfg.IndexDir)
	assert.Equal(t, "dil", cfg.IDProvider)
	assert.Equal(t, "/dil/api", cfg.APIPrefix)
	assert.Equal(t, DefaultPageSize, cfg.PageSize)
	assert.Equal(t, "0.0.0.0:9090", cfg.Addr())
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, "absent.toml"), dir)

	require.NoError(t, err)
	assert.Equal(t, Default(dir).DBPath, cfg.DBPath)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dil.toml")
	data := `
db_path = "/var/lib/dil/dil.sqlite"
port = 8000
mode = "prod"
page_size = 20
cors_origins = ["https://dil.example.org"]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path, dir)

	require.NoError(t, err)
	assert.Equal(t, "/var/lib/dil/dil.sqlite", cfg.DBPath)
	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, "prod", cfg.Mode)
	assert.Equal(t, 20, cfg.PageSize)
	assert.Equal(t, []string{"https://dil.example.org"}, cfg.CORSOrigins)
	assert.Equal(t, Default(dir).IndexDir, cfg.IndexDir)
}

func TestLoad_BadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dil.toml")
	require.NoError(t, os.WriteFile(path, []byte("port = \"eighty\""), 0o644))

	_, err := Load(path, dir)

	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"DIL_PORT":         "7000",
		"DIL_ID_PROVIDER":  "bnf",
		"DIL_CORS_ORIGINS": "https://a.example, https://b.example",
	}
	cfg := Default(t.TempDir())

	err := cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	require.NoError(t, err)
	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, "bnf", cfg.IDProvider)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestApplyEnv_BadInt(t *testing.T) {
	cfg := Default(t.TempDir())

	err := cfg.applyEnv(func(k string) (string, bool) {
		if k == "DIL_PAGE_SIZE" {
			return "lots", true
		}
		return "", false
	})

	assert.ErrorContains(t, err, "DIL_PAGE_SIZE")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no db", func(c *Config) { c.DBPath = "" }},
		{"no index", func(c *Config) { c.IndexDir = "" }},
		{"port", func(c *Config) { c.Port = 70000 }},
		{"page size", func(c *Config) { c.PageSize = MaxPageSize + 1 }},
		{"prefix", func(c *Config) { c.APIPrefix = "dil/api" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
