package main

import (
	"github.com/spf13/cobra"

	"github.com/renderinc/dil/internal/sync"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the full-text index of persons",
}

var indexCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an empty index, replacing any existing one",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.index.Rebuild(cmd.Context(), nil, 0); err != nil {
			return err
		}
		cmd.Printf("Empty index created at %s\n", a.cfg.IndexDir)
		return nil
	},
}

var indexPopulateCmd = &cobra.Command{
	Use:   "populate",
	Short: "Rebuild the index from every person in the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := sync.NewWorker(a.log, a.db, a.index, nil).Reindex(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Println("=== Reindex Complete ===")
		cmd.Printf("Persons:   %d\n", stats.TotalPersons)
		cmd.Printf("Indexed:   %d\n", stats.Indexed)
		cmd.Printf("Duration:  %v\n", stats.Duration)
		return nil
	},
}

func init() {
	indexCmd.AddCommand(indexCreateCmd, indexPopulateCmd)
	rootCmd.AddCommand(indexCmd)
}
