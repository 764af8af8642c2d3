/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"
)

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a book",
	Long: `Delete a book by id. The change is flushed to the storage backend
before the command exits.

Example:
  bookshelf delete 3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		bookStore, _, closeStore, err := openStore(cmd)
		if err != nil {
			return err
		}

		if err := bookStore.Delete(cmd.Context(), id); err != nil {
			_ = closeStore()
			return err
		}
		if err := closeStore(); err != nil {
			return err
		}

		cmd.Printf("Deleted book %d\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
