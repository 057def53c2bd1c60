package main

import (
	"github.com/spf13/cobra"

	"github.com/holvi-cloud/holvi/provision"
)

var listName string

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked buckets",
	Long: `List tracked buckets.

Plain users see their own projects. Members of the elevated groups see
every owner's projects with ownership attribution.`,
	Example: `  holvi list --identity-id u-123 --email dev@example.com
  holvi list --name analytics --identity-id u-123 --email dev@example.com`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVar(&listName, "name", "", "Narrow the listing to one project")
}

func runList(cmd *cobra.Command, args []string) error {
	act, err := actor()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	summaries, err := a.service.List(ctx, act, provision.ListInput{DisplayName: listName})
	if err != nil {
		return err
	}
	return printJSON(summaries)
}
