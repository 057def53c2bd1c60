package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"

	configPath    string
	identityID    string
	identityEmail string
	identityGrps  []string

	rootCmd = &cobra.Command{
		Use:   "holvi",
		Short: "Bucket Lifecycle Reconciliation Engine",
		Long: `Holvi - Bucket Lifecycle Reconciliation Engine

Holvi provisions project buckets with a security baseline, tracks them in
a record store, and keeps the backend consistent with recorded intent.
Buckets deleted without proper authority are automatically restored by the
reconciliation loop.`,
		Version: version,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`Holvi {{.Version}} - Bucket Lifecycle Reconciliation Engine
`)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&identityID, "identity-id", "", "Acting identity id")
	rootCmd.PersistentFlags().StringVar(&identityEmail, "email", "", "Acting identity email")
	rootCmd.PersistentFlags().StringSliceVar(&identityGrps, "groups", nil, "Acting identity group claims")
}
