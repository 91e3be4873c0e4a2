package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/renderinc/dil/internal/dilerr"
	"github.com/renderinc/dil/internal/textnorm"
)

var (
	searchContent string
	searchLimit   int
)

var searchCmd = &cobra.Command{
	Use:   "search [name]",
	Short: "Search persons by name and/or content",
	Long: `Searches the person index. Every term must match (AND). Quote a phrase to
match it whole, end a term with * for a prefix, or with ~ for fuzzy matching.

  dil search "Dupont Jean"
  dil search --content "lithographe rue"
  dil search Martin --content imprim*`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var name string
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" && searchContent == "" {
			return errors.New("give a name, --content, or both")
		}

		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		hits, err := a.index.Search(cmd.Context(), name, searchContent, searchLimit)
		if err != nil {
			return err
		}
		if len(hits) == 0 {
			cmd.Println("No results found")
			return nil
		}

		ids := make([]string, 0, len(hits))
		for id := range hits {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return hits[ids[i]].Score > hits[ids[j]].Score })

		cmd.Printf("\nFound %d results:\n\n", len(ids))
		for i, id := range ids {
			label := id
			p, err := a.db.PersonByIDDil(cmd.Context(), id)
			switch {
			case err == nil:
				label = fmt.Sprintf("%s %s (%s)", p.Lastname, textnorm.Firstnames(p.Firstnames), id)
			case !errors.Is(err, dilerr.ErrNotFound):
				return err
			}
			cmd.Printf("%d. %s\n", i+1, label)
			cmd.Printf("   Score: %.3f\n", hits[id].Score)
			if hl := hits[id].Highlight; hl != "" {
				cmd.Printf("   Preview: %s\n", hl)
			}
			cmd.Println()
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchContent, "content", "", "query on biographical text and patent references")
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results (0 for all)")
	rootCmd.AddCommand(searchCmd)
}
