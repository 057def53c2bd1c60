package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/holvi-cloud/holvi/provision"
)

// deleteCmd represents the delete command
var deleteCmd = &cobra.Command{
	Use:   "delete <project-name>",
	Short: "Delete a project's bucket",
	Long: `Delete a project's bucket.

The bucket is emptied and removed; the record is kept with a full audit
trail. Whether the bucket will be automatically restored depends on who
deleted it, and the answer is always printed.`,
	Example: `  holvi delete analytics --identity-id u-123 --email dev@example.com
  holvi delete analytics --identity-id op-9 --email ops@example.com --groups business-admins`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
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

	out, err := a.service.Delete(ctx, act, provision.DeleteInput{DisplayName: args[0]})
	if err != nil {
		return err
	}

	if out.ShouldHeal {
		fmt.Println("Note: this bucket will be automatically restored by reconciliation.")
	}
	return printJSON(out)
}
