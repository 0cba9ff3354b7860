package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s0up4200/mircrew/filter"
	"github.com/s0up4200/mircrew/mircrew"
)

var filterExpr string

// searchCmd represents the search command
var searchCmd = &cobra.Command{
	Use:   "search <title>",
	Short: "Search topics by title",
	Long: `Search the forum for topics whose title matches the given words.

Results can be narrowed with an expression over ID, Title, URL and Tags.
Helpers: year(), hasTag(tag), includes(s, sub), hasPrefix(s, p), hasSuffix(s, p),
lower(s) and upper(s). The case-sensitive operators contains, startsWith,
endsWith and matches also work, e.g.
  mircrew search "mary poppins" --filter 'hasTag("1080p") and year() > 2000'
  mircrew search "mary poppins" --filter 'includes(Title, "returns") or Title endsWith "[720p]"'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringVarP(&filterExpr, "filter", "f", "", "filter expression")
	searchCmd.Flags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	title := strings.Join(args, " ")

	// Parse filter before touching the forum
	var f *filter.Filter
	if filterExpr != "" {
		var err error
		f, err = filter.Compile(filterExpr)
		if err != nil {
			return fmt.Errorf("invalid filter expression: %w", err)
		}
	}

	logger.Info().Str("title", title).Msg("Searching topics")

	results, err := client.SearchMovie(cmd.Context(), title)
	if err != nil {
		return describeError(err)
	}

	if f != nil {
		total := len(results)
		if results, err = f.Apply(results); err != nil {
			return err
		}
		logger.Debug().Str("filter", f.String()).Int("total", total).Int("matched", len(results)).Msg("Filter applied")
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(cmd, results)
	}

	// Display results
	if len(results) == 0 {
		fmt.Fprintln(out, "No topics found.")
		return nil
	}

	fmt.Fprintf(out, "\nFound %d topics:\n", len(results))
	fmt.Fprintln(out, strings.Repeat("-", 80))

	for _, r := range results {
		fmt.Fprintf(out, "• [%s] %s\n", r.ID, r.Title)
		fmt.Fprintf(out, "  %s\n", r.URL)
	}

	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// describeError adds a hint for the error kinds a user can act on
func describeError(err error) error {
	switch mircrew.KindOf(err) {
	case mircrew.KindAuthentication:
		return fmt.Errorf("%w (check %s and %s)", err, mircrew.EnvUsername, mircrew.EnvPassword)
	case mircrew.KindParsing:
		return fmt.Errorf("%w (the forum layout may have changed)", err)
	}

	var e *mircrew.Error
	if errors.As(err, &e) && e.IsNotFound() {
		return fmt.Errorf("%w (look up topic ids with 'mircrew search')", err)
	}
	return err
}
