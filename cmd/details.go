package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// detailsCmd represents the details command
var detailsCmd = &cobra.Command{
	Use:   "details <id>",
	Short: "Show the release details of a topic",
	Long:  `Load a topic and print the metadata found in its first post.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDetails,
}

func init() {
	detailsCmd.Flags().BoolVar(&jsonOutput, "json", false, "print details as JSON")
}

func runDetails(cmd *cobra.Command, args []string) error {
	details, err := client.GetMovieDetails(cmd.Context(), args[0])
	if err != nil {
		return describeError(err)
	}

	if jsonOutput {
		return printJSON(cmd, details)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", details.Title)
	fmt.Fprintf(out, "%s\n\n", details.URL)

	fields := []struct {
		label string
		value *string
	}{
		{"Year", details.Year},
		{"Genre", details.Genre},
		{"Quality", details.Quality},
		{"Size", details.Size},
		{"Posted by", details.PostedBy},
		{"Posted on", details.PostedDate},
	}
	for _, field := range fields {
		if field.value != nil {
			fmt.Fprintf(out, "%-10s %s\n", field.label+":", *field.value)
		}
	}

	if details.Description != nil {
		fmt.Fprintf(out, "\n%s\n", *details.Description)
	}

	return nil
}
