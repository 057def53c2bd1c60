package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/holvi-cloud/holvi/provision"
	"github.com/holvi-cloud/holvi/types"
)

var (
	createVersioning bool
	createPolicyMode string
	createPolicyFile string
)

// createCmd represents the create command
var createCmd = &cobra.Command{
	Use:   "create <project-name>",
	Short: "Provision a bucket for a project",
	Long: `Provision a bucket for a project.

The bucket gets a globally unique name derived from the environment and
project name, with public access blocked, encryption at rest, and the
requested versioning and lifecycle policy applied.`,
	Example: `  holvi create analytics --identity-id u-123 --email dev@example.com
  holvi create analytics --policy auto-archive
  holvi create analytics --policy custom --policy-file lifecycle.json
  holvi create scratch --versioning=false`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)

	createCmd.Flags().BoolVar(&createVersioning, "versioning", true, "Enable object versioning")
	createCmd.Flags().StringVar(&createPolicyMode, "policy", "none", "Lifecycle policy mode (none, auto-archive, auto-delete, custom)")
	createCmd.Flags().StringVar(&createPolicyFile, "policy-file", "", "Path to a custom lifecycle policy document (JSON)")
}

func runCreate(cmd *cobra.Command, args []string) error {
	act, err := actor()
	if err != nil {
		return err
	}

	var policyDoc json.RawMessage
	if createPolicyFile != "" {
		data, err := os.ReadFile(createPolicyFile) // #nosec G304 -- path is intentional user input
		if err != nil {
			return fmt.Errorf("read policy file: %w", err)
		}
		policyDoc = data
	}

	ctx := cmd.Context()
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.service.Create(ctx, act, provision.CreateInput{
		DisplayName:  args[0],
		Versioning:   &createVersioning,
		PolicyMode:   types.PolicyMode(createPolicyMode),
		CustomPolicy: policyDoc,
	})
	if err != nil {
		return err
	}
	return printJSON(out)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
