/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ssargent/bookshelf/pkg/query"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List books",
	Long: `List books with the same search, filter, sort and pagination rules as
GET /books.

Examples:
  bookshelf list
  bookshelf list --search war --sort year --order desc
  bookshelf list --author orwell --page 2 --limit 5 -o json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromContext(cmd)
		if err != nil {
			return err
		}

		params := query.DefaultParams()
		params.Search, _ = cmd.Flags().GetString("search")
		params.Author, _ = cmd.Flags().GetString("author")
		params.Sort, _ = cmd.Flags().GetString("sort")
		params.Order, _ = cmd.Flags().GetString("order")
		params.Page, _ = cmd.Flags().GetInt("page")
		params.Limit, _ = cmd.Flags().GetInt("limit")
		if cmd.Flags().Changed("year") {
			year, _ := cmd.Flags().GetInt("year")
			params.Year = &year
		}
		if !cmd.Flags().Changed("limit") {
			params.Limit = cfg.Query.DefaultLimit
		}

		bookStore, _, closeStore, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeStore()

		engine := query.NewEngine(query.EngineConfig{
			DefaultLimit: cfg.Query.DefaultLimit,
			MaxLimit:     cfg.Query.MaxLimit,
		})
		result := engine.Execute(bookStore.List(cmd.Context()), params)

		return outputResult(cmd, result)
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().String("search", "", "Case-insensitive substring of the title")
	listCmd.Flags().String("author", "", "Case-insensitive substring of the author")
	listCmd.Flags().Int("year", 0, "Exact publication year")
	listCmd.Flags().String("sort", query.DefaultSort, "Field to sort by")
	listCmd.Flags().String("order", query.DefaultOrder, "Sort order (asc or desc)")
	listCmd.Flags().Int("page", query.DefaultPage, "Page number, starting at 1")
	listCmd.Flags().Int("limit", query.DefaultLimit, "Books per page")
}
