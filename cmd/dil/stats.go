package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/renderinc/dil/internal/query"
	"github.com/renderinc/dil/internal/storage"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show row counts and index size",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		cmd.Println("=== Database ===")
		for _, k := range storage.Kinds {
			n, err := a.db.Count(cmd.Context(), k)
			if err != nil {
				return err
			}
			cmd.Printf("%-22s %d\n", k.Table()+":", n)
		}

		indexCount, err := a.index.Count()
		if err != nil {
			return err
		}
		cmd.Println()
		cmd.Println("=== Index ===")
		cmd.Printf("%-22s %d\n", "documents:", indexCount)
		return nil
	},
}

var getPersonHTML bool

var getPersonCmd = &cobra.Command{
	Use:   "get-person <id>",
	Short: "Print a person with patents and addresses as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		printer, err := query.New(a.log, a.db, nil, a.cfg.PageSize).ReadPrinter(cmd.Context(), args[0], getPersonHTML)
		if err != nil {
			return err
		}
		data, err := json.MarshalIndent(printer, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(data))
		return nil
	},
}

func init() {
	getPersonCmd.Flags().BoolVar(&getPersonHTML, "html", false, "keep the rich text markup")
	rootCmd.AddCommand(statsCmd, getPersonCmd)
}
