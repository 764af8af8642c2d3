package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ssargent/bookshelf/pkg/book"
	"github.com/ssargent/bookshelf/pkg/query"
)

func outputFormat(cmd *cobra.Command) string {
	format, _ := cmd.Flags().GetString("output")
	return format
}

// outputBook displays a single book
func outputBook(cmd *cobra.Command, b book.Book) error {
	if outputFormat(cmd) == "json" {
		return outputJSON(cmd.OutOrStdout(), b)
	}
	return outputBookTable(cmd.OutOrStdout(), b)
}

// outputResult displays one page of a list query
func outputResult(cmd *cobra.Command, result query.Result) error {
	if outputFormat(cmd) == "json" {
		return outputJSON(cmd.OutOrStdout(), result)
	}
	return outputResultTable(cmd.OutOrStdout(), result)
}

func outputJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputBookTable displays a single book in table format
func outputBookTable(out io.Writer, b book.Book) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "ID:\t%d\n", b.ID)
	fmt.Fprintf(w, "Title:\t%s\n", b.Title)
	fmt.Fprintf(w, "Author:\t%s\n", b.Author)
	fmt.Fprintf(w, "Year:\t%s\n", formatInt(b.Year))
	fmt.Fprintf(w, "Genre:\t%s\n", formatString(b.Genre))
	fmt.Fprintf(w, "ISBN:\t%s\n", formatString(b.ISBN))

	return nil
}

// outputResultTable displays a page of books in table format
func outputResultTable(out io.Writer, result query.Result) error {
	if len(result.Items) == 0 {
		fmt.Fprintf(out, "No books found (%d matching)\n", result.Total)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tYEAR\tGENRE")
	for _, b := range result.Items {
		title := b.Title
		if r := []rune(title); len(r) > 40 {
			title = string(r[:37]) + "..."
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", b.ID, title, b.Author, formatInt(b.Year), formatString(b.Genre))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\nPage %d, %d of %d books\n", result.Page, len(result.Items), result.Total)
	return nil
}

func formatInt(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}

func formatString(v *string) string {
	if v == nil || *v == "" {
		return "-"
	}
	return *v
}
