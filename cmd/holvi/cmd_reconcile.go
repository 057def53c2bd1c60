package main

import (
	"github.com/spf13/cobra"
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run a single reconciliation pass",
	Long: `Run a single reconciliation pass.

Every tracked record is checked against the backend: missing buckets whose
deletion lacked authority are restored with their recorded configuration,
and active records with no backing bucket are flagged as anomalies.`,
	Example: `  holvi reconcile
  holvi reconcile --config holvi.yaml`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.engine.Run(ctx)
	if err != nil {
		return err
	}
	return printJSON(result)
}
