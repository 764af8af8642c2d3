/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/bookshelf/pkg/book"
)

// addCmd represents the add command
var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a book",
	Long: `Add a book to the collection. The new id is assigned by the store.

Examples:
  bookshelf add --title "Dune" --author "Frank Herbert" --year 1965
  bookshelf add --title "1984" --author "George Orwell" --isbn 978-0451524935`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var candidate book.Candidate
		candidate.Title, _ = cmd.Flags().GetString("title")
		candidate.Author, _ = cmd.Flags().GetString("author")
		if cmd.Flags().Changed("year") {
			year, _ := cmd.Flags().GetInt("year")
			candidate.Year = &year
		}
		if cmd.Flags().Changed("genre") {
			genre, _ := cmd.Flags().GetString("genre")
			candidate.Genre = &genre
		}
		if cmd.Flags().Changed("isbn") {
			isbn, _ := cmd.Flags().GetString("isbn")
			candidate.ISBN = &isbn
		}

		bookStore, _, closeStore, err := openStore(cmd)
		if err != nil {
			return err
		}

		created, err := bookStore.Create(cmd.Context(), candidate)
		if err != nil {
			_ = closeStore()
			return err
		}
		if err := closeStore(); err != nil {
			return err
		}

		return outputBook(cmd, created)
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().String("title", "", "Title (required)")
	addCmd.Flags().String("author", "", "Author (required)")
	addCmd.Flags().Int("year", 0, "Publication year")
	addCmd.Flags().String("genre", "", "Genre")
	addCmd.Flags().String("isbn", "", "ISBN-13")
	_ = addCmd.MarkFlagRequired("title")
	_ = addCmd.MarkFlagRequired("author")
}
