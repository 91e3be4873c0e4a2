// Package config loads the runtime settings from a TOML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// Config holds the settings of the server and the CLI.
type Config struct {
	DBPath     string `toml:"db_path"`
	IndexDir   string `toml:"index_dir"`
	ImageStore string `toml:"image_store"`
	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	Mode       string `toml:"mode"`
	IDProvider string `toml:"id_provider"`
	APIPrefix  string `toml:"api_prefix"`
	PageSize   int    `toml:"page_size"`
	// CORSOrigins lists the origins allowed to call the API; empty allows
	// any origin.
	CORSOrigins []string `toml:"cors_origins"`
}

// Default returns the settings used when no file or variable overrides them.
// Paths are relative to dataDir.
func Default(dataDir string) *Config {
	if dataDir == "" {
		dataDir = "."
	}
	return &Config{
		DBPath:     filepath.Join(dataDir, "db", "dil.sqlite"),
		IndexDir:   filepath.Join(dataDir, "index"),
		ImageStore: filepath.Join(dataDir, "images"),
		Host:       "0.0.0.0",
		Port:       9090,
		Mode:       "dev",
		IDProvider: "dil",
		APIPrefix:  "/dil/api",
		PageSize:   DefaultPageSize,
	}
}

// Load reads path (optional; a missing file is not an error), then applies
// DIL_* environment variables, then validates.
func Load(path, dataDir string) (*Config, error) {
	cfg := Default(dataDir)
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"DIL_DB_PATH":     &c.DBPath,
		"DIL_INDEX_DIR":   &c.IndexDir,
		"DIL_IMAGE_STORE": &c.ImageStore,
		"DIL_HOST":        &c.Host,
		"DIL_MODE":        &c.Mode,
		"DIL_ID_PROVIDER": &c.IDProvider,
		"DIL_API_PREFIX":  &c.APIPrefix,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	ints := map[string]*int{
		"DIL_PORT":      &c.Port,
		"DIL_PAGE_SIZE": &c.PageSize,
	}
	if v, ok := lookup("DIL_CORS_ORIGINS"); ok {
		c.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.CORSOrigins = append(c.CORSOrigins, o)
			}
		}
	}
	for key, dst := range ints {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}
	if c.IndexDir == "" {
		return errors.New("index_dir is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.PageSize <= 0 || c.PageSize > MaxPageSize {
		return fmt.Errorf("page_size must be between 1 and %d", MaxPageSize)
	}
	if c.APIPrefix != "" && !strings.HasPrefix(c.APIPrefix, "/") {
		return fmt.Errorf("api_prefix %q must start with /", c.APIPrefix)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
