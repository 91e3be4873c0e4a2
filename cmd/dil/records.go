package main

import (
	"github.com/spf13/cobra"

	"github.com/renderinc/dil/internal/storage"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <kind> <id>",
	Short: "Delete a record and everything linked to it",
	Long: `Deletes the record of the given kind (person, patent, city, address, image,
patent_relation, patent_address, person_address, patent_image). Link rows go
with it, the search index follows and a deleted image loses its file.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := storage.ParseKind(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		svc, err := a.catalog(true)
		if err != nil {
			return err
		}
		if err := svc.Delete(cmd.Context(), kind, args[1]); err != nil {
			return err
		}
		cmd.Printf("Deleted %s %s\n", kind, args[1])
		return nil
	},
}

var unpin bool

var pinCmd = &cobra.Command{
	Use:   "pin <patent_image_id>",
	Short: "Pin an image on its patent, unpinning the others",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(true)
		if err != nil {
			return err
		}
		defer a.Close()

		svc, err := a.catalog(false)
		if err != nil {
			return err
		}
		if err := svc.SetPinned(cmd.Context(), args[0], !unpin); err != nil {
			return err
		}
		if unpin {
			cmd.Printf("Unpinned %s\n", args[0])
		} else {
			cmd.Printf("Pinned %s\n", args[0])
		}
		return nil
	},
}

func init() {
	pinCmd.Flags().BoolVar(&unpin, "off", false, "unpin instead")
	rootCmd.AddCommand(deleteCmd, pinCmd)
}
