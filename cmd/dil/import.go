package main

import (
	"github.com/spf13/cobra"

	"github.com/renderinc/dil/internal/search"
	"github.com/renderinc/dil/internal/sync"
)

var (
	importSkipIndex    bool
	importRenameImages bool
)

var importCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Load the tab separated table exports found in dir",
	Long: `Loads tables/table_*.tsv and relations/*.tsv from dir, parents first.
Rows go through the same rules as any other write: missing identifiers are
generated and rows pointing at unknown records are rejected. The index is
rebuilt once every table is loaded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		// Rows are indexed in one pass at the end rather than one by one.
		svc, err := a.catalog(importRenameImages)
		if err != nil {
			return err
		}
		stats, err := sync.NewWorker(a.log, a.db, nil, svc).Import(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		cmd.Println("=== Import Complete ===")
		for _, t := range stats.Tables {
			cmd.Printf("%-22s %6d rows  %6d inserted  %6d rejected\n", t.Kind.Table()+":", t.Rows, t.Inserted, t.Errors)
		}
		cmd.Printf("Duration: %v\n", stats.Duration)

		if importSkipIndex {
			return nil
		}
		if a.index, err = search.Open(a.cfg.IndexDir); err != nil {
			return err
		}
		rs, err := sync.NewWorker(a.log, a.db, a.index, nil).Reindex(cmd.Context())
		if err != nil {
			return err
		}
		cmd.Printf("Indexed %d persons in %v\n", rs.Indexed, rs.Duration)
		return nil
	},
}

func init() {
	importCmd.Flags().BoolVar(&importSkipIndex, "skip-index", false, "do not rebuild the index afterwards")
	importCmd.Flags().BoolVar(&importRenameImages, "rename-images", false, "rename image files in the store to their identifiers")
	rootCmd.AddCommand(importCmd)
}
