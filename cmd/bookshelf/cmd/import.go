/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/bookshelf/pkg/book"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import books from a JSON file",
	Long: `Import a JSON array of books. Ids in the file are ignored and new ids
are assigned in file order. Every record is validated before any is added,
so a file with an invalid record imports nothing. Use - to read stdin.

Example:
  bookshelf import books.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		candidates, err := readCandidates(cmd, args[0])
		if err != nil {
			return err
		}

		var errs []error
		for i, c := range candidates {
			if err := book.Validate(c); err != nil {
				errs = append(errs, fmt.Errorf("record %d (%q): %w", i, c.Title, err))
			}
		}
		if len(errs) > 0 {
			return errors.Join(errs...)
		}

		bookStore, _, closeStore, err := openStore(cmd)
		if err != nil {
			return err
		}

		for _, c := range candidates {
			if _, err := bookStore.Create(cmd.Context(), c); err != nil {
				_ = closeStore()
				return err
			}
		}
		if err := closeStore(); err != nil {
			return err
		}

		cmd.Printf("Imported %d books (%d total)\n", len(candidates), bookStore.Len())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func readCandidates(cmd *cobra.Command, path string) ([]book.Candidate, error) {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open import file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var records []struct {
		ID *int `json:"id,omitempty"`
		book.Candidate
	}
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to parse import file: %w", err)
	}

	candidates := make([]book.Candidate, len(records))
	for i, rec := range records {
		candidates[i] = rec.Candidate
	}
	return candidates, nil
}
