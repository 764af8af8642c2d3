/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a book",
	Long: `Show a single book by id.

Example:
  bookshelf get 3`,
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
		defer closeStore()

		b, err := bookStore.Get(cmd.Context(), id)
		if err != nil {
			return err
		}

		return outputBook(cmd, b)
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func parseID(raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid book id %q: must be an integer", raw)
	}
	return id, nil
}
