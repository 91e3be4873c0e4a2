package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/renderinc/dil/internal/catalog"
	"github.com/renderinc/dil/internal/config"
	"github.com/renderinc/dil/internal/consistency"
	"github.com/renderinc/dil/internal/ident"
	"github.com/renderinc/dil/internal/imagestore"
	"github.com/renderinc/dil/internal/logger"
	"github.com/renderinc/dil/internal/search"
	"github.com/renderinc/dil/internal/storage"
)

var (
	configPath string
	dataDir    string
)

var rootCmd = &cobra.Command{
	Use:   "dil",
	Short: "DIL printers database: store, search index and read API",
	Long: `dil manages the prosopographical database of printers and lithographers:
the relational store, the full-text index of persons and the read API.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "./data", "directory for the database, index and images")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds the handles shared by the commands.
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	db    *storage.DB
	index *search.Index
}

// openApp loads the configuration and opens the store, and the index when
// withIndex is set.
func openApp(withIndex bool) (*app, error) {
	cfg, err := config.Load(configPath, dataDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Mode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a := &app{cfg: cfg, log: log, db: db}
	if withIndex {
		if a.index, err = search.Open(cfg.IndexDir); err != nil {
			db.Close()
			return nil, fmt.Errorf("open search index: %w", err)
		}
	}
	return a, nil
}

func (a *app) Close() {
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.log.Warn("close index", "error", err)
		}
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn("close database", "error", err)
	}
	a.log.Sync()
}

// catalog builds the write path. The index hook is wired only when the index
// is open; the image store hooks only when withImages is set.
func (a *app) catalog(withImages bool) (*catalog.Service, error) {
	var opts []consistency.Option
	if a.index != nil {
		opts = append(opts, consistency.WithIndex(a.index, a.db))
	}
	if withImages {
		files, err := imagestore.New(a.cfg.ImageStore)
		if err != nil {
			return nil, err
		}
		opts = append(opts, consistency.WithImageStore(files))
	}
	enforcer := consistency.New(a.log, ident.NewGenerator(a.cfg.IDProvider), opts...)
	return catalog.New(a.log, a.db, enforcer), nil
}
